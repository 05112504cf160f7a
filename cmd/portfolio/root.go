package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/hyperengineering/portfolio/internal/analytics"
	"github.com/hyperengineering/portfolio/internal/cache"
	"github.com/hyperengineering/portfolio/internal/config"
	"github.com/hyperengineering/portfolio/internal/credential"
	"github.com/hyperengineering/portfolio/internal/insight"
	"github.com/hyperengineering/portfolio/internal/remote"
	"github.com/hyperengineering/portfolio/internal/validation"
)

// Version is set at build time via ldflags: -ldflags "-X main.Version=1.0.0"
var Version = "dev"

// remoteRetryBase is the first backoff step for retried remote reads.
const remoteRetryBase = 200 * time.Millisecond

var (
	remoteURLOverride string
	jsonOutput        bool
)

// newCredentialStore is replaced in tests to keep the system keyring untouched.
var newCredentialStore = credential.NewStore

var rootCmd = &cobra.Command{
	Use:          "portfolio",
	Short:        "Portfolio - project insight service",
	Long:         "Serve and query project predictions, insights and analytics backed by a remote project store.",
	SilenceUsage: true,
	RunE:         runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&remoteURLOverride, "remote", "",
		"Remote project store URL (overrides config and PORTFOLIO_REMOTE_URL)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false,
		"Output in JSON format")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(devstoreCmd)
	rootCmd.AddCommand(projectsCmd)
	rootCmd.AddCommand(predictCmd)
	rootCmd.AddCommand(insightsCmd)
	rootCmd.AddCommand(analyticsCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(credentialCmd)
}

// loadConfig reads .env (if present), then the layered config, and applies
// the --remote override.
func loadConfig() (*config.Config, error) {
	// Missing .env is the normal case outside development
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if remoteURLOverride != "" {
		cfg.Remote.BaseURL = remoteURLOverride
	}
	return cfg, nil
}

// app holds the collaborators shared by the client-side commands.
type app struct {
	cfg    *config.Config
	creds  *credential.Store
	remote *remote.Client
	cache  *cache.Cache
}

// newApp loads config, sets up logging on the command's stderr and builds
// the remote client and an empty cache.
func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	setupLogging(cmd.ErrOrStderr(), cfg)

	creds := newCredentialStore()
	client := newRemoteClient(cfg, creds)
	return &app{
		cfg:    cfg,
		creds:  creds,
		remote: client,
		cache:  cache.New(client),
	}, nil
}

// load populates the cache, rendering failures the way the UI would.
func (a *app) load(ctx context.Context) error {
	if err := a.cache.Load(ctx); err != nil {
		return explainError("load projects", err)
	}
	return nil
}

// insightEngine builds the engine for the configured provider.
func (a *app) insightEngine() *insight.Engine {
	return newInsightEngine(a.cfg, a.creds)
}

// analyticsSource returns the configured graphics source, or the one named
// by override when set.
func (a *app) analyticsSource(override string) (analytics.Source, error) {
	return newAnalyticsSource(a.cfg, a.remote, a.cache, override)
}

func newRemoteClient(cfg *config.Config, creds *credential.Store) *remote.Client {
	opts := []remote.Option{
		remote.WithTimeout(time.Duration(cfg.Remote.Timeout)),
		remote.WithRetry(uint64(cfg.Remote.MaxRetries), remoteRetryBase),
	}

	key, err := creds.Resolve(cfg.Remote.APIKey, "", credential.KeyRemote)
	switch {
	case err == nil:
		opts = append(opts, remote.WithAPIKey(key))
	case errors.Is(err, credential.ErrNotFound):
		slog.Debug("no remote api key configured", "component", "cli")
	default:
		slog.Warn("remote api key lookup failed", "component", "cli", "error", err)
	}

	return remote.NewClient(cfg.Remote.BaseURL, opts...)
}

// newInsightEngine selects the OpenAI provider when a well-formed key is
// available and the Unavailable provider otherwise. Either way Summarize
// answers through the fallback analyzer when the provider cannot.
func newInsightEngine(cfg *config.Config, creds *credential.Store) *insight.Engine {
	opts := []insight.Option{insight.WithTimeout(time.Duration(cfg.Insight.Timeout))}

	if cfg.Insight.Provider == config.ProviderNone {
		return insight.NewEngine(insight.Unavailable{Reason: "disabled by configuration"}, opts...)
	}

	key, err := creds.Resolve(cfg.Insight.APIKey, "OPENAI_API_KEY", credential.KeyOpenAI)
	if err != nil {
		slog.Info("insight provider unavailable", "component", "cli", "reason", "no api key", "error", err)
		return insight.NewEngine(insight.Unavailable{Reason: "no api key"}, opts...)
	}
	if !credential.LooksLikeOpenAIKey(key) {
		slog.Warn("insight provider unavailable", "component", "cli", "reason", "malformed api key")
		return insight.NewEngine(insight.Unavailable{Reason: "malformed api key"}, opts...)
	}

	provider := insight.NewOpenAI(key, cfg.Insight.Model)
	slog.Debug("insight provider selected", "component", "cli", "provider", "openai", "model", provider.ModelName())
	return insight.NewEngine(provider, opts...)
}

func newAnalyticsSource(cfg *config.Config, client *remote.Client, c *cache.Cache, override string) (analytics.Source, error) {
	name := cfg.Remote.Analytics
	if override != "" {
		name = strings.ToLower(override)
	}

	switch name {
	case config.AnalyticsRemote:
		return analytics.NewRemote(client), nil
	case config.AnalyticsLocal:
		return analytics.NewLocal(c.Snapshot), nil
	default:
		return nil, fmt.Errorf("unknown analytics source %q (want %s or %s)", name, config.AnalyticsRemote, config.AnalyticsLocal)
	}
}

// draftFlags pairs draft fields with the projects create/update flags that
// set them, in flag order.
var draftFlags = []struct{ field, flag string }{
	{validation.FieldName, "--name"},
	{validation.FieldDescription, "--description"},
	{validation.FieldStatus, "--status"},
	{validation.FieldStartDate, "--start"},
	{validation.FieldEndDate, "--end"},
}

// explainError renders a cache or remote failure as a concise message plus
// the fields to fix. Drafts rejected before the network name the flags.
func explainError(action string, err error) error {
	var de *validation.DraftError
	if errors.As(err, &de) {
		var flags []string
		for _, f := range draftFlags {
			if de.HasField(f.field) {
				flags = append(flags, f.flag)
			}
		}
		if len(flags) > 0 {
			return fmt.Errorf("%s: %s (fix: %s)", action, de.Message, strings.Join(flags, ", "))
		}
	}

	fb := cache.Explain(err)
	if len(fb.Fields) > 0 {
		return fmt.Errorf("%s: %s (fields: %s)", action, fb.Message, strings.Join(fb.Fields, ", "))
	}
	return fmt.Errorf("%s: %s", action, fb.Message)
}

// startWorker launches a background worker goroutine that respects context cancellation.
// Workers are tracked via WaitGroup for graceful shutdown.
func startWorker(ctx context.Context, wg *sync.WaitGroup, name string, fn func(ctx context.Context)) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		slog.Info("worker started", "worker", name)
		fn(ctx)
		slog.Info("worker stopped", "worker", name)
	}()
}
