package store

import (
	"errors"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var (
	ErrNotFound      = errors.New("project not found")
	ErrDuplicateName = errors.New("a project with this name already exists")
)

// isUniqueViolation reports whether err is SQLite rejecting a duplicate key,
// which for projects means a name already held by an active project.
func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	return errors.As(err, &se) && se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
}
