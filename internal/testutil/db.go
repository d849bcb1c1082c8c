package testutil

import (
	"path/filepath"
	"testing"

	"gorm.io/gorm"

	"github.com/tair/price-tracker/internal/tracker/repository"
	"github.com/tair/price-tracker/pkg/database"
)

// NewSQLiteDB opens a migrated sqlite database in a temp dir
func NewSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := database.NewGormConnection(database.Config{
		Driver: database.DriverSQLite,
		Path:   filepath.Join(t.TempDir(), "test.db"),
	})
	if err != nil {
		t.Fatalf("NewGormConnection() failed: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	if err := repository.NewGormProductRepository(db).AutoMigrate(); err != nil {
		t.Fatalf("AutoMigrate() failed: %v", err)
	}
	return db
}

// NewRepository returns a traced repository over a fresh sqlite database
func NewRepository(t *testing.T) *repository.GormProductRepositoryWithTracing {
	t.Helper()
	return repository.NewGormProductRepositoryWithTracing(NewSQLiteDB(t))
}
