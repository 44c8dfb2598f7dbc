package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SetupTestDB opens a migrated in-memory SQLite store.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := ConnectDB(context.Background(), &Config{
		Driver:   DriverSQLite,
		Path:     ":memory:",
		LogLevel: logger.Silent,
	})
	require.NoError(t, err)

	require.NoError(t, Migrate(context.Background(), db))

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}
