// Package credential resolves secrets from the environment or the system keyring.
package credential

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/99designs/keyring"
)

const serviceName = "portfolio"

// Well-known credential keys.
const (
	KeyOpenAI = "openai-api-key"
	KeyRemote = "remote-api-key"
)

// ErrNotFound is returned when a credential is in neither the environment nor the keyring.
var ErrNotFound = errors.New("credential not found")

// Opener opens a keyring. Replaced in tests.
type Opener func() (keyring.Keyring, error)

// Store reads and writes credentials in a keyring.
type Store struct {
	open Opener
}

// NewStore creates a store backed by the system keyring.
func NewStore() *Store {
	return &Store{open: openKeyring}
}

// NewStoreWithOpener creates a store backed by a custom keyring.
func NewStoreWithOpener(open Opener) *Store {
	return &Store{open: open}
}

// openKeyring returns a configured keyring instance.
func openKeyring() (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  "~/.config/portfolio/credentials",
		FilePasswordFunc:         keyring.FixedStringPrompt("portfolio-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// Get retrieves a credential value by key from the keyring.
func (s *Store) Get(key string) (string, error) {
	ring, err := s.open()
	if err != nil {
		return "", err
	}

	item, err := ring.Get(key)
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return "", fmt.Errorf("getting credential %q: %w", key, ErrNotFound)
		}
		return "", fmt.Errorf("getting credential %q: %w", key, err)
	}

	return string(item.Data), nil
}

// Set stores a credential value by key in the keyring.
func (s *Store) Set(key, value string) error {
	ring, err := s.open()
	if err != nil {
		return err
	}

	err = ring.Set(keyring.Item{
		Key:   key,
		Data:  []byte(value),
		Label: serviceName + " " + key,
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", key, err)
	}

	return nil
}

// Delete removes a credential by key from the keyring.
func (s *Store) Delete(key string) error {
	ring, err := s.open()
	if err != nil {
		return err
	}

	if err := ring.Remove(key); err != nil {
		return fmt.Errorf("deleting credential %q: %w", key, err)
	}

	return nil
}

// Resolve returns the first non-blank value among preset (usually from config
// or the environment), the envVar environment variable and the keyring entry
// for key.
func (s *Store) Resolve(preset, envVar, key string) (string, error) {
	if v := strings.TrimSpace(preset); v != "" {
		return v, nil
	}
	if envVar != "" {
		if v := strings.TrimSpace(os.Getenv(envVar)); v != "" {
			return v, nil
		}
	}

	v, err := s.Get(key)
	if err != nil {
		return "", err
	}
	if v = strings.TrimSpace(v); v == "" {
		return "", fmt.Errorf("getting credential %q: %w", key, ErrNotFound)
	}
	return v, nil
}

// LooksLikeOpenAIKey reports whether key has the shape of an OpenAI API key.
// Malformed keys are treated as missing.
func LooksLikeOpenAIKey(key string) bool {
	return strings.HasPrefix(key, "sk-") && len(key) > len("sk-") && !strings.ContainsAny(key, " \t\r\n")
}
