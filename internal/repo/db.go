// Package repo is the GORM persistence layer: connection bootstrap, schema
// migration and the query functions used by the services.
package repo

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/tbourn/votehub-backend/internal/domain"
)

// Supported values for the DB_DRIVER setting.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// SlowQuery is the duration above which a statement is logged at warn.
var SlowQuery = 200 * time.Millisecond

type pool struct {
	maxOpen  int
	idleTime time.Duration
	lifetime time.Duration
}

var (
	// One writer at a time; a small pool keeps readers from starving it.
	sqlitePool   = pool{maxOpen: 10, idleTime: 5 * time.Minute, lifetime: 30 * time.Minute}
	postgresPool = pool{maxOpen: 25, idleTime: 5 * time.Minute, lifetime: 30 * time.Minute}
)

var sqlitePragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA foreign_keys=ON",
	"PRAGMA busy_timeout=5000",
}

// Open connects using the named driver. For sqlite dsn is a file path, for
// postgres a libpq connection string or URL.
func Open(driver, dsn string) (*gorm.DB, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", DriverSQLite:
		return OpenSQLite(dsn)
	case DriverPostgres:
		return OpenPostgres(dsn)
	default:
		return nil, fmt.Errorf("unsupported db driver %q", driver)
	}
}

// OpenSQLite opens or creates the database file at path. The parent
// directory must exist.
func OpenSQLite(path string) (*gorm.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if _, err := os.Stat(dir); err != nil {
			return nil, err
		}
	}
	db, err := gorm.Open(sqlite.Open(path), gormConfig())
	if err != nil {
		return nil, err
	}
	for _, p := range sqlitePragmas {
		if err := db.Exec(p).Error; err != nil {
			return nil, fmt.Errorf("sqlite %q: %w", p, err)
		}
	}
	return db, sqlitePool.apply(db)
}

// OpenPostgres opens a PostgreSQL connection pool.
func OpenPostgres(dsn string) (*gorm.DB, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("postgres: empty DATABASE_URL")
	}
	db, err := gorm.Open(postgres.Open(dsn), gormConfig())
	if err != nil {
		return nil, err
	}
	return db, postgresPool.apply(db)
}

func (p pool) apply(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	sqlDB.SetMaxOpenConns(p.maxOpen)
	sqlDB.SetMaxIdleConns(p.maxOpen)
	sqlDB.SetConnMaxIdleTime(p.idleTime)
	sqlDB.SetConnMaxLifetime(p.lifetime)
	return nil
}

func gormConfig() *gorm.Config {
	return &gorm.Config{Logger: queryLogger{}}
}

// queryLogger sends GORM's statement log to zerolog: failed statements at
// error and slow ones at warn. Not-found lookups are expected and dropped.
type queryLogger struct{}

func (l queryLogger) LogMode(logger.LogLevel) logger.Interface { return l }

func (queryLogger) Info(ctx context.Context, msg string, args ...any) {
	logFor(ctx).Info().Msgf(msg, args...)
}

func (queryLogger) Warn(ctx context.Context, msg string, args ...any) {
	logFor(ctx).Warn().Msgf(msg, args...)
}

func (queryLogger) Error(ctx context.Context, msg string, args ...any) {
	logFor(ctx).Error().Msgf(msg, args...)
}

func (queryLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	elapsed := time.Since(begin)
	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
		sql, rows := fc()
		logFor(ctx).Error().Err(err).Str("sql", sql).Int64("rows", rows).Dur("elapsed", elapsed).Msg("query failed")
	case SlowQuery > 0 && elapsed > SlowQuery:
		sql, rows := fc()
		logFor(ctx).Warn().Str("sql", sql).Int64("rows", rows).Dur("elapsed", elapsed).Msg("slow query")
	}
}

// logFor prefers the request logger carried by ctx.
func logFor(ctx context.Context) *zerolog.Logger {
	if ctx != nil {
		if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
			return l
		}
	}
	return &log.Logger
}

// EnableTracing registers the OpenTelemetry GORM plugin so every query
// becomes a child span of the request that issued it.
func EnableTracing(db *gorm.DB) error {
	return db.Use(tracing.NewPlugin())
}

// Models lists every table owned by this service, in dependency order.
func Models() []any {
	return []any{
		&domain.VoteTypeConfig{},
		&domain.Topic{},
		&domain.Vote{},
		&domain.VoteResultsCache{},
		&domain.TopicSimilaritySuggestion{},
		&domain.Profile{},
		&domain.ProfileDemographics{},
		&domain.Idempotency{},
	}
}

// AutoMigrate creates or updates the schema for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(Models()...)
}
