package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"github.com/hyperengineering/portfolio/internal/types"
)

// compile-time check
var _ Store = (*SQLiteStore)(nil)

// timestampLayout is fixed-width so stored timestamps sort lexically.
const timestampLayout = "2006-01-02T15:04:05.000000000Z"

const projectColumns = `id, name, description, status, start_date, end_date, created_at, updated_at`

// SQLiteStore represents the SQLite-backed project database.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore opens (creating if needed) the database at dbPath and
// brings its schema up to date. ":memory:" gives a private in-memory store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Pragmas are per connection and every :memory: connection is its own
	// database, so the pool is held to one connection.
	db.SetMaxOpenConns(1)

	for _, pragma := range connectionPragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	version, err := Migrate(context.Background(), db)
	if err != nil {
		db.Close()
		return nil, err
	}
	slog.Debug("project store opened", "component", "store", "path", dbPath, "schema_version", version)

	return &SQLiteStore{db: db, now: time.Now}, nil
}

// connectionPragmas run once per open. WAL lets the devstore read while a
// write is in flight; busy_timeout rides out lock contention.
var connectionPragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA foreign_keys=ON",
	"PRAGMA synchronous=NORMAL",
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// scanProject scans a row into a Project, parsing stored dates and timestamps.
func scanProject(scanner interface{ Scan(...any) error }) (*types.Project, error) {
	var p types.Project
	var status, startDate, createdAt, updatedAt string
	var endDate sql.NullString

	err := scanner.Scan(
		&p.ID,
		&p.Name,
		&p.Description,
		&status,
		&startDate,
		&endDate,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.Status = types.ProjectStatus(status)

	start, err := types.ParseDate(startDate)
	if err != nil {
		return nil, fmt.Errorf("parse start_date: %w", err)
	}
	p.StartDate = start

	if endDate.Valid {
		end, err := types.ParseDate(endDate.String)
		if err != nil {
			return nil, fmt.Errorf("parse end_date: %w", err)
		}
		p.EndDate = &end
	}

	if t, err := time.Parse(timestampLayout, createdAt); err == nil {
		p.CreatedAt = t
	}
	if t, err := time.Parse(timestampLayout, updatedAt); err == nil {
		p.UpdatedAt = t
	}

	return &p, nil
}

func nullableDate(d *types.Date) sql.NullString {
	if d == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

// ListProjects returns every live project in creation order.
func (s *SQLiteStore) ListProjects(ctx context.Context) ([]types.Project, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+projectColumns+`
		FROM projects
		WHERE deleted_at IS NULL
		ORDER BY created_at ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query projects: %w", err)
	}
	defer rows.Close()

	projects := []types.Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		projects = append(projects, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return projects, nil
}

// GetProject retrieves a project by ID.
func (s *SQLiteStore) GetProject(ctx context.Context, id string) (*types.Project, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+projectColumns+`
		FROM projects
		WHERE id = ? AND deleted_at IS NULL
	`, id)

	p, err := scanProject(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan row: %w", err)
	}

	return p, nil
}

// CreateProject stores a new project with a ULID identifier.
func (s *SQLiteStore) CreateProject(ctx context.Context, draft types.ProjectDraft) (*types.Project, error) {
	now := s.now().UTC()
	p := types.Project{
		ID:          ulid.Make().String(),
		Name:        strings.TrimSpace(draft.Name),
		Description: draft.Description,
		Status:      draft.Status,
		StartDate:   draft.StartDate,
		EndDate:     draft.EndDate,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO projects (`+projectColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		p.ID,
		p.Name,
		p.Description,
		string(p.Status),
		p.StartDate.String(),
		nullableDate(p.EndDate),
		now.Format(timestampLayout),
		now.Format(timestampLayout),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateName
		}
		return nil, fmt.Errorf("insert project: %w", err)
	}

	return &p, nil
}

// UpdateProject replaces the mutable fields of a live project.
func (s *SQLiteStore) UpdateProject(ctx context.Context, id string, draft types.ProjectDraft) (*types.Project, error) {
	now := s.now().UTC().Format(timestampLayout)

	result, err := s.db.ExecContext(ctx, `
		UPDATE projects
		SET name = ?, description = ?, status = ?, start_date = ?, end_date = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`,
		strings.TrimSpace(draft.Name),
		draft.Description,
		string(draft.Status),
		draft.StartDate.String(),
		nullableDate(draft.EndDate),
		now,
		id,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateName
		}
		return nil, fmt.Errorf("update project: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return nil, ErrNotFound
	}

	return s.GetProject(ctx, id)
}

// DeleteProject soft-deletes a project so its name can be reused.
func (s *SQLiteStore) DeleteProject(ctx context.Context, id string) error {
	now := s.now().UTC().Format(timestampLayout)

	result, err := s.db.ExecContext(ctx, `
		UPDATE projects
		SET deleted_at = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`, now, now, id)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// CountByStatus returns the number of live projects per status.
func (s *SQLiteStore) CountByStatus(ctx context.Context) (map[types.ProjectStatus]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT status, COUNT(*)
		FROM projects
		WHERE deleted_at IS NULL
		GROUP BY status
	`)
	if err != nil {
		return nil, fmt.Errorf("count by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[types.ProjectStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		counts[types.ProjectStatus(status)] = n
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return counts, nil
}
