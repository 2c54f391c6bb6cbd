package database

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"chatdesk/internal/shared/config"
	appLogger "chatdesk/internal/shared/logger"
)

var (
	db   *gorm.DB
	dbMu sync.RWMutex
)

const slowQueryThreshold = 200 * time.Millisecond

// Open connects to MySQL with pool settings from cfg. Timestamps are read and
// written in UTC so period and grace deadlines compare correctly across hosts.
func Open(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	dialector := mysql.New(mysql.Config{
		DSN:                       cfg.GetDSN(),
		SkipInitializeWithVersion: true,
	})

	conn, err := gorm.Open(dialector, &gorm.Config{
		Logger:      newGormLogger(),
		PrepareStmt: true,
		NowFunc:     func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to billing database %s: %w", cfg.Database, err)
	}

	if err := configurePool(conn, cfg); err != nil {
		return nil, err
	}
	return conn, nil
}

func newGormLogger() gormlogger.Interface {
	return gormlogger.New(&filteredLogger{}, gormlogger.Config{
		SlowThreshold:             slowQueryThreshold,
		LogLevel:                  gormlogger.Warn,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}

func configurePool(conn *gorm.DB, cfg *config.DatabaseConfig) error {
	sqlDB, err := conn.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	return nil
}

// Init opens the process-wide connection used by the server, worker and migrate commands.
func Init(cfg *config.DatabaseConfig) error {
	conn, err := Open(cfg)
	if err != nil {
		return err
	}

	dbMu.Lock()
	db = conn
	dbMu.Unlock()

	appLogger.Info("billing database connected", "database", cfg.Database, "max_open_conns", cfg.MaxOpenConns)
	return nil
}

// Get returns the database connection
func Get() *gorm.DB {
	dbMu.RLock()
	defer dbMu.RUnlock()
	return db
}

// Close closes the database connection
func Close() error {
	dbMu.RLock()
	currentDB := db
	dbMu.RUnlock()

	if currentDB == nil {
		return nil
	}

	sqlDB, err := currentDB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("failed to close database connection: %w", err)
	}

	appLogger.Info("database connection closed")
	return nil
}

// filteredLogger routes GORM output into the process logger by severity.
type filteredLogger struct{}

func (l *filteredLogger) Printf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	switch classify(msg) {
	case severitySkip:
	case severityError:
		appLogger.Error("database error", "details", msg)
	case severitySlow:
		appLogger.Warn("slow query", "details", msg, "threshold", slowQueryThreshold)
	default:
		appLogger.Get().Debug("database query", "details", msg)
	}
}

type severity int

const (
	severityDebug severity = iota
	severitySkip
	severityError
	severitySlow
)

func classify(msg string) severity {
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "select version()"):
		return severitySkip
	case strings.Contains(lower, "[error]"):
		return severityError
	case strings.Contains(lower, "slow sql"):
		return severitySlow
	default:
		return severityDebug
	}
}
