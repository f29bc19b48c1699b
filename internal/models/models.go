package models

import (
	"fmt"
	"strings"

	"github.com/desertthunder/tapedeck/internal/shared"
)

// Model is implemented by every persisted entity.
type Model interface {
	Validate() error // Validate checks required fields before a write
}

// Provider identifies the OAuth provider a credential belongs to.
type Provider string

const (
	ProviderGoogle Provider = "google"
)

// ParseProvider returns the [Provider] named by s.
func ParseProvider(s string) (Provider, error) {
	switch p := Provider(strings.ToLower(strings.TrimSpace(s))); p {
	case ProviderGoogle:
		return p, nil
	default:
		return "", fmt.Errorf("%w: unknown provider %q", shared.ErrInvalidInput, s)
	}
}

// Source tags where a playlist or track came from.
type Source string

const (
	SourceInternal Source = "internal"
	SourceYouTube  Source = "youtube"
	SourceSpotify  Source = "spotify"

	DefaultSource = SourceYouTube
)

// ParseSource returns the [Source] named by s. Blank input yields [DefaultSource].
func ParseSource(s string) (Source, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return DefaultSource, nil
	}

	switch src := Source(s); src {
	case SourceInternal, SourceYouTube, SourceSpotify:
		return src, nil
	default:
		return "", fmt.Errorf("%w: unknown source %q", shared.ErrValidation, s)
	}
}
