package testutil

import (
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"hintwheel/internal/models"
)

// OpenTestDB opens an in-memory SQLite database with the full schema.
func OpenTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}

	if err := db.AutoMigrate(
		&models.Hint{},
		&models.User{},
		&models.Activity{},
	); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}

	return db
}
