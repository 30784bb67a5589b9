package testutil

import (
	"testing"

	"task-tracker-api/internal/database"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewInMemoryDB creates an in-memory SQLite DB and runs migrations.
func NewInMemoryDB() (*gorm.DB, error) {
	return database.Open(database.Options{
		Driver: "sqlite",
		DSN:    ":memory:",
		Logger: logger.Default.LogMode(logger.Silent),
	})
}

// MustInMemoryDB is NewInMemoryDB for tests; the DB is closed on cleanup.
func MustInMemoryDB(t testing.TB) *gorm.DB {
	t.Helper()
	db, err := NewInMemoryDB()
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { _ = database.Close(db) })
	return db
}
