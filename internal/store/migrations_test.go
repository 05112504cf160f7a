package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func migratedDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "projects.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	version, err := Migrate(context.Background(), db)
	require.NoError(t, err)
	require.Equal(t, int64(1), version, "schema version")
	return db
}

func insertRaw(db *sql.DB, id, name, status string) error {
	now := time.Now().UTC().Format(timestampLayout)
	_, err := db.Exec(`INSERT INTO projects (id, name, status, start_date, created_at, updated_at)
		VALUES (?, ?, ?, '2025-01-10', ?, ?)`, id, name, status, now, now)
	return err
}

func TestMigrate_CreatesSchema(t *testing.T) {
	db := migratedDB(t)

	_, err := db.Exec(`SELECT ` + projectColumns + `, deleted_at FROM projects LIMIT 0`)
	require.NoError(t, err, "projects table incomplete")

	for _, idx := range []string{"idx_projects_name_active", "idx_projects_status", "idx_projects_created_at"} {
		var name string
		err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'index' AND name = ?`, idx).Scan(&name)
		assert.NoError(t, err, "index %s", idx)
	}
}

func TestMigrate_RerunKeepsData(t *testing.T) {
	db := migratedDB(t)
	require.NoError(t, insertRaw(db, "p1", "Apollo", "in_progress"))

	version, err := Migrate(context.Background(), db)
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)

	var name string
	require.NoError(t, db.QueryRow(`SELECT name FROM projects WHERE id = 'p1'`).Scan(&name))
	assert.Equal(t, "Apollo", name)
}

func TestSchema_Constraints(t *testing.T) {
	db := migratedDB(t)

	assert.Error(t, insertRaw(db, "p1", "Apollo", "archived"), "status outside the enumeration was accepted")
	require.NoError(t, insertRaw(db, "p2", "Apollo", "in_progress"))
	assert.Error(t, insertRaw(db, "p3", "APOLLO", "completed"), "active names must be unique regardless of case")

	_, err := db.Exec(`UPDATE projects SET deleted_at = '2025-02-01T00:00:00.000000000Z' WHERE id = 'p2'`)
	require.NoError(t, err)
	assert.NoError(t, insertRaw(db, "p4", "apollo", "in_progress"), "name of a deleted project should be reusable")

	var description string
	var endDate sql.NullString
	require.NoError(t, db.QueryRow(`SELECT description, end_date FROM projects WHERE id = 'p4'`).Scan(&description, &endDate))
	assert.Empty(t, description)
	assert.False(t, endDate.Valid, "end_date should default to NULL")
}

func TestNewSQLiteStore_ConnectionSetup(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "dir", "projects.db")
	s, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer s.Close()

	assert.FileExists(t, dbPath)

	checks := []struct {
		pragma string
		want   string
	}{
		{"journal_mode", "wal"},
		{"busy_timeout", "5000"},
		{"foreign_keys", "1"},
		{"synchronous", "1"},
	}
	for _, c := range checks {
		var got string
		require.NoError(t, s.db.QueryRow("PRAGMA "+c.pragma).Scan(&got), "PRAGMA %s", c.pragma)
		assert.Equal(t, c.want, got, "PRAGMA %s", c.pragma)
	}
}

func TestNewSQLiteStore_ConcurrentOpens(t *testing.T) {
	dir := t.TempDir()

	var wg sync.WaitGroup
	errs := make(chan error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := NewSQLiteStore(filepath.Join(dir, string(rune('a'+i))+".db"))
			if err != nil {
				errs <- err
				return
			}
			s.Close()
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err, "concurrent open")
	}
}
