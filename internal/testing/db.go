// Package testing provides shared mocks, fixtures, and database helpers
// for tests across the project.
package testing

import (
	"database/sql"
	"fmt"
	"os"
	"testing"

	"github.com/foliosync/foliosync/internal/database"
)

// NewTestDB creates a file-backed SQLite database for testing and
// returns it with a cleanup function that closes the connection and
// removes the file. Stores create their own tables on construction, so
// no schema is applied here.
func NewTestDB(t *testing.T, name string) (*database.DB, func()) {
	t.Helper()

	tmpFile, err := os.CreateTemp("", fmt.Sprintf("test_%s_*.db", name))
	if err != nil {
		t.Fatalf("Failed to create temporary database file: %v", err)
	}
	tmpPath := tmpFile.Name()
	_ = tmpFile.Close()

	db, err := database.New(database.Config{
		Path: tmpPath,
		Name: name,
	})
	if err != nil {
		_ = os.Remove(tmpPath)
		t.Fatalf("Failed to create test database %s: %v", name, err)
	}

	return db, func() {
		if err := db.Close(); err != nil {
			t.Logf("Warning: Failed to close test database %s: %v", name, err)
		}
		if err := os.Remove(tmpPath); err != nil {
			t.Logf("Warning: Failed to remove temporary database file %s: %v", tmpPath, err)
		}
	}
}

// GetRawConnection returns the raw *sql.DB from a database.DB instance
// for tests that construct stores directly.
func GetRawConnection(db *database.DB) *sql.DB {
	return db.Conn()
}
