package database

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"library/internal/config"
)

const slowQueryThreshold = 200 * time.Millisecond

const sqlitePrefix = "sqlite://"

// Open connects to Postgres and applies the pool settings from cfg. A
// DATABASE_URL of the form sqlite://<path> opens a local SQLite file instead,
// for development without a Postgres server.
func Open(cfg config.Config, log zerolog.Logger) (*gorm.DB, error) {
	if path, ok := strings.CutPrefix(cfg.DatabaseURL, sqlitePrefix); ok {
		return OpenSQLite(path, log)
	}

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), GormConfig(log))
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get generic DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	return db, nil
}

// GormConfig translates driver errors into gorm's portable ones (duplicate
// key in particular) and routes gorm's own log output through log.
func GormConfig(log zerolog.Logger) *gorm.Config {
	gormLog := log.With().Str("component", "gorm").Logger()
	return &gorm.Config{
		TranslateError: true,
		Logger: logger.New(&gormLog, logger.Config{
			SlowThreshold:             slowQueryThreshold,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
		NowFunc: func() time.Time { return time.Now().UTC() },
	}
}

// OpenSQLite opens the SQLite database at path with foreign keys enforced.
// SQLite allows a single writer, so the pool is capped at one connection and
// units of work are serialized by database/sql.
func OpenSQLite(path string, log zerolog.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path+"?_foreign_keys=on&_busy_timeout=5000"), GormConfig(log))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get generic DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	return db, nil
}
