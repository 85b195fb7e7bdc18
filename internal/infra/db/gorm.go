package db

import (
	"fmt"
	"log/slog"
	"time"

	"keystore/internal/config"
	"keystore/internal/domain/model"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Connect はDBに接続して *gorm.DB を返す。
func Connect(cfg config.DB, log *slog.Logger) (*gorm.DB, error) {
	dialector, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}

	gdb, err := gorm.Open(dialector, &gorm.Config{
		//一意制約違反を gorm.ErrDuplicatedKey にそろえる
		TranslateError: true,
		Logger:         newGormLogger(log),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Driver, err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return gdb, nil
}

func dialectorFor(cfg config.DB) (gorm.Dialector, error) {
	switch cfg.Driver {
	case "postgres":
		return postgres.Open(cfg.URL), nil
	case "mysql":
		return mysql.Open(cfg.URL), nil
	case "sqlite":
		return sqlite.Open(cfg.URL), nil
	default:
		return nil, fmt.Errorf("unsupported db driver %q", cfg.Driver)
	}
}

// Migrate はこのサービスが持つテーブルを作る
func Migrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(
		&model.Product{},
		&model.Order{},
		&model.OrderItem{},
		&model.License{},
		&model.InventoryAdjustment{},
		&model.WebhookEvent{},
		&model.OutboxMessage{},
		&model.AuditLog{},
	)
}

// gormのSQLログはWarn以上だけslogへ流す
func newGormLogger(log *slog.Logger) logger.Interface {
	return logger.New(
		slog.NewLogLogger(log.Handler(), slog.LevelWarn),
		logger.Config{
			SlowThreshold:             500 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		},
	)
}
