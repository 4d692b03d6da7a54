// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file contains database bootstrapping helpers for
// SQLite (pure Go driver) and PostgreSQL, plus schema migrations.
package repo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-realty-backend/internal/domain"
)

// ErrNotFound is gorm.ErrRecordNotFound under the repo's name.
var ErrNotFound = gorm.ErrRecordNotFound

// Open dispatches on driver ("sqlite" or "postgres").
func Open(driver, sqlitePath, postgresDSN string) (*gorm.DB, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", "sqlite":
		return OpenSQLite(sqlitePath)
	case "postgres", "postgresql":
		return OpenPostgres(postgresDSN)
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", driver)
	}
}

type poolLimits struct {
	open, idle int
}

var (
	sqlitePool   = poolLimits{open: 10, idle: 10}
	postgresPool = poolLimits{open: 25, idle: 10}

	// WAL lets readers run alongside the single writer; the busy timeout
	// absorbs short write contention instead of failing with SQLITE_BUSY.
	sqlitePragmas = []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
)

func (p poolLimits) apply(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	sqlDB.SetMaxOpenConns(p.open)
	sqlDB.SetMaxIdleConns(p.idle)
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	return nil
}

// OpenSQLite opens (or creates) the database file at path. The parent
// directory must already exist.
func OpenSQLite(path string) (*gorm.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if _, err := os.Stat(dir); err != nil {
			return nil, err
		}
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}
	for _, pragma := range sqlitePragmas {
		if err := db.Exec(pragma).Error; err != nil {
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	if err := sqlitePool.apply(db); err != nil {
		return nil, err
	}
	return db, nil
}

// OpenPostgres connects through the pgx-backed GORM driver. Driver errors
// are translated so unique violations surface as gorm.ErrDuplicatedKey.
func OpenPostgres(dsn string) (*gorm.DB, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("DATABASE_URL must not be empty for postgres")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}
	if err := postgresPool.apply(db); err != nil {
		return nil, err
	}
	return db, nil
}

// AutoMigrate creates or updates every table owned by the service.
// Order matters for the foreign keys: users and properties first.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.User{},
		&domain.Property{},
		&domain.Sale{},
		&domain.Favorite{},
		&domain.DeviceToken{},
		&domain.Notification{},
	)
}

// isDuplicate detects unique-constraint violations across drivers that may
// not map to gorm.ErrDuplicatedKey.
func isDuplicate(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint") ||
		strings.Contains(low, "constraint failed: unique") ||
		strings.Contains(low, "duplicate key")
}
