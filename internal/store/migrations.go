package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/pressly/goose/v3"

	"github.com/hyperengineering/portfolio/migrations"
)

// Migrate applies the embedded migrations that db has not seen yet and
// returns the resulting schema version. Each call uses its own provider, so
// stores may open concurrently.
func Migrate(ctx context.Context, db *sql.DB) (int64, error) {
	provider, err := goose.NewProvider(goose.DialectSQLite3, db, migrations.FS)
	if err != nil {
		return 0, fmt.Errorf("migration provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return 0, fmt.Errorf("apply migrations: %w", err)
	}
	for _, r := range results {
		slog.Debug("migration applied",
			"component", "store",
			"version", r.Source.Version,
			"duration_ms", r.Duration.Milliseconds(),
		)
	}

	version, err := provider.GetDBVersion(ctx)
	if err != nil {
		return 0, fmt.Errorf("schema version: %w", err)
	}
	return version, nil
}
