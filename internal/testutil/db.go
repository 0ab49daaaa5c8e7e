package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"

	"invoicehub/internal/domain/subscriptions"
	"invoicehub/internal/domain/users"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var dbSeq atomic.Int64

// OpenDB returns a fresh in-memory SQLite database migrated with all domain
// models. Each call gets its own database; the single-connection pool keeps
// concurrent test writers on one shared handle.
func OpenDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:testdb%d?mode=memory&cache=shared", dbSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := db.AutoMigrate(
		&users.User{},
		&subscriptions.Subscription{},
		&subscriptions.RegistrationCounter{},
	); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return db
}
