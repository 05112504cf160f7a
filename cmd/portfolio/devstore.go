package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hyperengineering/portfolio/internal/devstore"
	"github.com/hyperengineering/portfolio/internal/store"
)

var (
	devstorePort   int
	devstoreDBPath string
)

var devstoreCmd = &cobra.Command{
	Use:   "devstore",
	Short: "Run the reference remote project store",
	Long: `Serve the remote project REST contract from a local SQLite database.
Point the service at it with --remote http://localhost:<port>/api.`,
	Args: cobra.NoArgs,
	RunE: runDevstore,
}

func init() {
	devstoreCmd.Flags().IntVar(&devstorePort, "port", 0,
		"Listen port (overrides config and PORTFOLIO_DEVSTORE_PORT)")
	devstoreCmd.Flags().StringVar(&devstoreDBPath, "db", "",
		"SQLite database path (overrides config and PORTFOLIO_DEVSTORE_DB_PATH)")
}

func runDevstore(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	setupLogging(os.Stdout, cfg)

	port := cfg.Devstore.Port
	if devstorePort != 0 {
		port = devstorePort
	}
	dbPath := cfg.Devstore.DBPath
	if devstoreDBPath != "" {
		dbPath = devstoreDBPath
	}

	db, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			slog.Error("store close error", "error", err)
		}
	}()

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	slog.Info("devstore ready", "db", dbPath, "base_path", devstore.BasePath)

	// Clients send the remote key, so the store checks for that same key.
	srv := &http.Server{
		Handler:      devstore.NewServer(db, devstore.WithAPIKey(cfg.Remote.APIKey)).Router(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout),
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout),
	}
	return serveHTTP(ctx, srv, ln, time.Duration(cfg.Server.ShutdownTimeout))
}
