package shared

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
//
// Secrets may be left blank in the file and supplied through the environment (see [Config.ApplyEnv]).
// The value is treated as immutable once the process has started.
type Config struct {
	Database DatabaseConfig `toml:"database"`
	Server   ServerConfig   `toml:"server"`
	OAuth    OAuthConfig    `toml:"oauth"`
	YouTube  YouTubeConfig  `toml:"youtube"`
	Vault    VaultConfig    `toml:"vault"`
	Log      LogConfig      `toml:"log"`
}

// DatabaseConfig contains database connection settings.
//
// Driver is either "sqlite3" or "pgx".
type DatabaseConfig struct {
	Driver       string `toml:"driver"`
	DSN          string `toml:"dsn"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host        string `toml:"host"`
	Port        int    `toml:"port"`
	StateSecret string `toml:"state_secret"`
}

// OAuthConfig contains the Google OAuth client identity and endpoints.
type OAuthConfig struct {
	ClientID     string        `toml:"client_id"`
	ClientSecret string        `toml:"client_secret"`
	RedirectURI  string        `toml:"redirect_uri"`
	AuthURL      string        `toml:"auth_url"`
	TokenURL     string        `toml:"token_url"`
	Scopes       []string      `toml:"scopes"`
	Timeout      time.Duration `toml:"timeout"`
}

// YouTubeConfig contains YouTube Data API settings.
type YouTubeConfig struct {
	BaseURL           string        `toml:"base_url"`
	APIKey            string        `toml:"api_key"`
	Timeout           time.Duration `toml:"timeout"`
	PageSize          int           `toml:"page_size"`
	RequestsPerSecond float64       `toml:"requests_per_second"`
}

// VaultConfig controls access token caching.
type VaultConfig struct {
	ExpiryMargin     time.Duration `toml:"expiry_margin"`
	DefaultExpiresIn time.Duration `toml:"default_expires_in"`
}

// LogConfig contains logger settings.
type LogConfig struct {
	Level string `toml:"level"`
}

// Addr returns the host:port pair the HTTP server listens on.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// BaseURL returns the externally reachable base URL of the HTTP server.
func (s ServerConfig) BaseURL() string {
	host := s.Host
	if host == "" || host == "0.0.0.0" {
		host = "localhost"
	}
	return fmt.Sprintf("http://%s:%d", host, s.Port)
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Values missing from the file keep the defaults from the embedded example config.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// LoadEnvFile loads KEY=VALUE pairs from a dotenv file into the process environment.
//
// A missing file is not an error. Variables already set in the environment win.
func LoadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides configuration values with environment variables.
//
//	TAPEDECK_DATABASE_DRIVER, TAPEDECK_DATABASE_DSN (or DATABASE_URL)
//	GOOGLE_CLIENT_ID, GOOGLE_CLIENT_SECRET, GOOGLE_REDIRECT_URI
//	YOUTUBE_API_KEY, TAPEDECK_STATE_SECRET, TAPEDECK_PORT, TAPEDECK_LOG_LEVEL
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if lookup == nil {
		lookup = os.LookupEnv
	}

	set := func(dst *string, keys ...string) {
		for _, key := range keys {
			if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
				*dst = strings.TrimSpace(v)
				return
			}
		}
	}

	set(&c.Database.Driver, "TAPEDECK_DATABASE_DRIVER")
	set(&c.Database.DSN, "TAPEDECK_DATABASE_DSN", "DATABASE_URL")
	set(&c.OAuth.ClientID, "GOOGLE_CLIENT_ID")
	set(&c.OAuth.ClientSecret, "GOOGLE_CLIENT_SECRET")
	set(&c.OAuth.RedirectURI, "GOOGLE_REDIRECT_URI")
	set(&c.YouTube.APIKey, "YOUTUBE_API_KEY")
	set(&c.Server.StateSecret, "TAPEDECK_STATE_SECRET")
	set(&c.Log.Level, "TAPEDECK_LOG_LEVEL")

	var port string
	set(&port, "TAPEDECK_PORT")
	if p, err := strconv.Atoi(port); err == nil && p > 0 {
		c.Server.Port = p
	}
}

// ValidateDatabase checks the settings every command touching storage needs.
func (c *Config) ValidateDatabase() error {
	var missing []string
	if c.Database.Driver == "" {
		missing = append(missing, "database.driver")
	}
	if c.Database.DSN == "" {
		missing = append(missing, "database.dsn")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingConfig, strings.Join(missing, ", "))
	}

	switch c.Database.Driver {
	case "sqlite3", "pgx":
	default:
		return fmt.Errorf("%w: unsupported database driver %q", ErrInvalidConfig, c.Database.Driver)
	}
	return nil
}

// Validate checks that every process-wide secret required to run the service is present.
func (c *Config) Validate() error {
	if err := c.ValidateDatabase(); err != nil {
		return err
	}

	var missing []string
	for _, field := range []struct {
		name  string
		value string
	}{
		{"oauth.client_id", c.OAuth.ClientID},
		{"oauth.client_secret", c.OAuth.ClientSecret},
		{"oauth.token_url", c.OAuth.TokenURL},
		{"youtube.api_key", c.YouTube.APIKey},
		{"server.state_secret", c.Server.StateSecret},
	} {
		if strings.TrimSpace(field.value) == "" {
			missing = append(missing, field.name)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingConfig, strings.Join(missing, ", "))
	}

	if c.Vault.ExpiryMargin < 0 || c.Vault.DefaultExpiresIn <= 0 {
		return fmt.Errorf("%w: vault durations must be positive", ErrInvalidConfig)
	}
	return nil
}
