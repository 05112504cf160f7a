// Package insight produces the status digest and recommendations for a
// project portfolio, using a text-generation provider when one is available
// and a deterministic analyzer otherwise.
package insight

import (
	"context"
	"errors"
	"fmt"
)

// ErrProviderUnavailable is returned by providers that cannot be used, for
// example because no credential is configured.
var ErrProviderUnavailable = errors.New("insight provider unavailable")

// Provider generates free text for a prompt.
type Provider interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Name() string
}

// ProviderError wraps any failure of a provider call. It never leaves Engine.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("insight provider %s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Compile-time interface check
var _ Provider = Unavailable{}

// Unavailable is the provider used when no real provider is configured.
type Unavailable struct {
	Reason string
}

// Generate always fails with ErrProviderUnavailable.
func (u Unavailable) Generate(ctx context.Context, prompt string) (string, error) {
	if u.Reason != "" {
		return "", fmt.Errorf("%w: %s", ErrProviderUnavailable, u.Reason)
	}
	return "", ErrProviderUnavailable
}

// Name returns "unavailable".
func (u Unavailable) Name() string {
	return "unavailable"
}
