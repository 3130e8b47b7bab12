package repository

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	slogGorm "github.com/orandin/slog-gorm"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Supported database drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// ErrUnsupportedDriver is returned by OpenGorm for unknown drivers.
var ErrUnsupportedDriver = errors.New("unsupported database driver")

// GormOption configures OpenGorm.
type GormOption func(*gormConfig)

type gormConfig struct {
	logger   *slog.Logger
	maxConns int
}

// WithGormLogger routes gorm's logs through l.
func WithGormLogger(l *slog.Logger) GormOption {
	return func(c *gormConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMaxConns caps open connections. SQLite always uses one.
func WithMaxConns(n int) GormOption {
	return func(c *gormConfig) {
		if n > 0 {
			c.maxConns = n
		}
	}
}

// OpenGorm opens a gorm connection for driver ("postgres" or "sqlite").
func OpenGorm(driver, dsn string, opts ...GormOption) (*gorm.DB, error) {
	cfg := gormConfig{logger: slog.Default(), maxConns: 16}
	for _, opt := range opts {
		opt(&cfg)
	}

	var dial gorm.Dialector
	isSqlite := false
	openConns := cfg.maxConns
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case DriverPostgres:
		dial = postgres.Open(dsn)
	case DriverSQLite:
		dial = sqlite.Open(dsn)
		openConns = 1
		isSqlite = true
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, driver)
	}

	db, err := gorm.Open(dial, &gorm.Config{
		SkipDefaultTransaction: true,
		TranslateError:         true,
		Logger:                 slogGorm.New(slogGorm.WithLogger(cfg.logger)),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}

	sqldb, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqldb.SetMaxOpenConns(openConns)
	sqldb.SetConnMaxIdleTime(time.Hour)

	if isSqlite && !strings.Contains(dsn, ":memory:") {
		if err := db.Exec("PRAGMA journal_mode=WAL;").Error; err != nil {
			return nil, err
		}
		if err := db.Exec("PRAGMA synchronous=normal;").Error; err != nil {
			return nil, err
		}
	}
	return db, nil
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
