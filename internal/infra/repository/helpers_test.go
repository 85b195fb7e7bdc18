package repository

import (
	"testing"
	"time"

	"keystore/internal/domain/model"
	"keystore/internal/infra/db"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// インメモリSQLite（接続1本）でスキーマを作る
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.Migrate(gdb))
	return gdb
}

var baseTime = time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)

func strPtr(s string) *string { return &s }

func seedProduct(t *testing.T, gdb *gorm.DB, p model.Product) model.Product {
	t.Helper()
	if p.Currency == "" {
		p.Currency = "jpy"
	}
	if p.Slug == "" {
		p.Slug = p.ID
	}
	require.NoError(t, gdb.Create(&p).Error)
	return p
}

func seedOrder(t *testing.T, gdb *gorm.DB, o model.Order) model.Order {
	t.Helper()
	if o.Currency == "" {
		o.Currency = "jpy"
	}
	if o.UpdatedAt.IsZero() {
		o.UpdatedAt = o.CreatedAt
	}
	require.NoError(t, gdb.Create(&o).Error)
	return o
}
