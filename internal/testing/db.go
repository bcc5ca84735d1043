// Package testing provides test helpers shared across lvglgen packages.
package testing

import (
	"path/filepath"
	"testing"

	"github.com/aristath/lvglgen/internal/database"
)

// NewTestDB creates a migrated history database in a per-test directory.
// Returns the database and a cleanup function that closes the connection.
// The cleanup function is idempotent and is also registered with t.Cleanup.
func NewTestDB(t *testing.T, name string) (*database.DB, func()) {
	t.Helper()

	db, err := database.New(database.Config{
		Path:    filepath.Join(t.TempDir(), name+".db"),
		Profile: database.ProfileStandard,
		Name:    name,
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
		if err := db.Close(); err != nil {
			// Log error but don't fail test
			t.Logf("Warning: Failed to close test database %s: %v", name, err)
		}
	}
	t.Cleanup(cleanup)
	return db, cleanup
}
