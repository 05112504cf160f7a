package insight

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hyperengineering/portfolio/internal/types"
)

// DefaultTimeout bounds a single provider call.
const DefaultTimeout = 15 * time.Second

// Engine summarizes a portfolio. Summarize never fails: any provider problem
// is absorbed and answered by Analyze.
type Engine struct {
	provider Provider
	timeout  time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithTimeout sets the provider call budget.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithClock overrides the clock used by the prompt and the fallback analyzer.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithLogger sets the logger; slog.Default() is used otherwise.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// NewEngine creates an engine. A nil provider is treated as Unavailable.
func NewEngine(p Provider, opts ...Option) *Engine {
	if p == nil {
		p = Unavailable{}
	}
	e := &Engine{
		provider: p,
		timeout:  DefaultTimeout,
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("component", "insight")
	return e
}

// ProviderName returns the name of the configured provider.
func (e *Engine) ProviderName() string {
	return e.provider.Name()
}

// Summarize returns the digest for projects. Empty input never reaches the
// provider.
func (e *Engine) Summarize(ctx context.Context, projects []types.Project) types.Insight {
	if len(projects) == 0 {
		return emptyInsight()
	}

	now := e.now()
	text, err := e.generate(ctx, BuildPrompt(projects, now))
	if err != nil {
		e.logger.Info("provider failed, using fallback",
			"action", "fallback",
			"provider", e.provider.Name(),
			"error", err,
		)
		return Analyze(projects, now)
	}

	in := ParseResponse(text)
	e.logger.Debug("provider insight",
		"action", "summarize",
		"provider", e.provider.Name(),
		"recommendations", len(in.Recommendations),
	)
	return in
}

type generateResult struct {
	text string
	err  error
}

// generate calls the provider under the timeout. A provider that panics or
// ignores its context is reported as a ProviderError.
func (e *Engine) generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	done := make(chan generateResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- generateResult{err: fmt.Errorf("provider panic: %v", r)}
			}
		}()
		text, err := e.provider.Generate(ctx, prompt)
		done <- generateResult{text: text, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			return "", &ProviderError{Provider: e.provider.Name(), Err: res.err}
		}
		return res.text, nil
	case <-ctx.Done():
		return "", &ProviderError{Provider: e.provider.Name(), Err: ctx.Err()}
	}
}
