// Package testing provides test helpers shared across packages.
package testing

import (
	"path/filepath"
	"testing"

	"github.com/Thetason/korean-stock-daily-report/internal/database"
)

// NewTestDB creates a migrated SQLite database in a temporary directory.
// The returned cleanup closes the connection and is safe to call twice;
// it is also registered with t.Cleanup.
func NewTestDB(t *testing.T, name string) (*database.DB, func()) {
	t.Helper()

	db, err := database.New(database.Config{
		Path: filepath.Join(t.TempDir(), name+".db"),
		Name: name,
	})
	if err != nil {
		t.Fatalf("Failed to create test database %s: %v", name, err)
	}

	if err := db.Migrate(); err != nil {
		_ = db.Close()
		t.Fatalf("Failed to migrate test database %s: %v", name, err)
	}

	closed := false
	cleanup := func() {
		if closed {
			return
		}
		closed = true
		_ = db.Close()
	}
	t.Cleanup(cleanup)
	return db, cleanup
}
