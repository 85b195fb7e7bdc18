package usecase_test

import (
	"testing"

	"keystore/internal/domain/model"
	"keystore/internal/infra/db"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// 実DB（インメモリSQLite）を使うテスト用
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

func mustCreate(t *testing.T, gdb *gorm.DB, v interface{}) {
	t.Helper()
	require.NoError(t, gdb.Create(v).Error)
}

func productFixture(id string, group *string, inventory int64) *model.Product {
	return &model.Product{
		ID:        id,
		Slug:      id,
		Name:      "Product " + id,
		Price:     1000,
		Currency:  "jpy",
		Inventory: inventory,
		GroupID:   group,
		IsActive:  true,
	}
}
