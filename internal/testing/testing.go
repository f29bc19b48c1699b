// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"testing"

	"github.com/desertthunder/tapedeck/internal/models"
	"github.com/desertthunder/tapedeck/internal/shared"
)

// MemoryCredentialStore is an in-memory credential store that counts writes.
type MemoryCredentialStore struct {
	mu     sync.Mutex
	creds  map[string]models.Credential
	puts   int
	GetErr error
	PutErr error
}

func NewMemoryCredentialStore(creds ...*models.Credential) *MemoryCredentialStore {
	s := &MemoryCredentialStore{creds: map[string]models.Credential{}}
	for _, c := range creds {
		s.creds[c.Key()] = *c
	}
	return s
}

func (s *MemoryCredentialStore) Get(ctx context.Context, userID string, provider models.Provider) (*models.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.GetErr != nil {
		return nil, s.GetErr
	}

	c, ok := s.creds[models.CredentialKey(userID, provider)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrNoCredential, models.CredentialKey(userID, provider))
	}
	return &c, nil
}

func (s *MemoryCredentialStore) Put(ctx context.Context, cred *models.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.PutErr != nil {
		return s.PutErr
	}
	s.creds[cred.Key()] = *cred
	s.puts++
	return nil
}

// UpdateAccessToken mirrors the conditional update of the SQL repository.
func (s *MemoryCredentialStore) UpdateAccessToken(ctx context.Context, cred *models.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.PutErr != nil {
		return s.PutErr
	}
	cur, ok := s.creds[cred.Key()]
	if !ok || cur.RefreshToken != cred.RefreshToken {
		return fmt.Errorf("%w: %s", shared.ErrCredentialChanged, cred.Key())
	}
	cur.AccessToken = cred.AccessToken
	cur.ExpiresAt = cred.ExpiresAt
	cur.LastRefreshedAt = cred.LastRefreshedAt
	s.creds[cred.Key()] = cur
	s.puts++
	return nil
}

func (s *MemoryCredentialStore) Delete(ctx context.Context, userID string, provider models.Provider) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.creds, models.CredentialKey(userID, provider))
	return nil
}

// Puts reports how many successful writes the store has seen.
func (s *MemoryCredentialStore) Puts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.puts
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

var _ io.ReadCloser = (*FCloser)(nil)

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}
