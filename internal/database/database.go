package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/killallgit/testimony-api/internal/models"
	"github.com/killallgit/testimony-api/pkg/config"
	"github.com/killallgit/testimony-api/pkg/logger"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type DB struct {
	*gorm.DB
}

// Options describes how to open the database
type Options struct {
	Driver          string
	Path            string // sqlite file, ":memory:" or "" for an in-memory database
	DSN             string // postgres connection string
	Verbose         bool
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Initialize opens a sqlite database at dbPath
func Initialize(dbPath string, verbose bool) (*DB, error) {
	return Open(Options{Driver: DriverSQLite, Path: dbPath, Verbose: verbose})
}

// FromConfig opens the database described by the database config section
func FromConfig(cfg config.DatabaseConfig) (*DB, error) {
	return Open(Options{
		Driver:          cfg.Driver,
		Path:            cfg.Path,
		DSN:             cfg.DSN,
		Verbose:         cfg.Verbose,
		MaxOpenConns:    cfg.MaxConnections,
		MaxIdleConns:    cfg.MaxIdleConnections,
		ConnMaxLifetime: cfg.ConnectionMaxLifetime,
	})
}

// Open creates a new database connection
func Open(opts Options) (*DB, error) {
	logLevel := gormlogger.Error
	if opts.Verbose {
		logLevel = gormlogger.Info
	}

	gormConfig := &gorm.Config{
		Logger: gormlogger.Default.LogMode(logLevel),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}

	var (
		dialector gorm.Dialector
		inMemory  bool
	)

	switch opts.Driver {
	case DriverPostgres:
		if opts.DSN == "" {
			return nil, fmt.Errorf("postgres driver requires a dsn")
		}
		dialector = postgres.Open(opts.DSN)
	case DriverSQLite, "":
		path := opts.Path
		inMemory = path == "" || path == ":memory:"
		if inMemory {
			path = ":memory:"
		} else {
			dir := filepath.Dir(path)
			if dir != "" && dir != "." {
				if err := os.MkdirAll(dir, 0755); err != nil {
					return nil, fmt.Errorf("failed to create database directory: %w", err)
				}
			}
			path += "?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000"
		}
		dialector = sqlite.Open(path)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", opts.Driver)
	}

	db, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying SQL database: %w", err)
	}

	maxOpen, maxIdle := opts.MaxOpenConns, opts.MaxIdleConns
	if maxOpen <= 0 {
		maxOpen = 10
	}
	if maxIdle <= 0 {
		maxIdle = 5
	}
	// Every connection to ":memory:" is a separate database
	if inMemory {
		maxOpen, maxIdle = 1, 1
	}
	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(maxIdle)
	if opts.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(opts.ConnMaxLifetime)
	} else {
		sqlDB.SetConnMaxLifetime(time.Hour)
	}

	if opts.Driver == DriverPostgres {
		if err := db.Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
			return nil, fmt.Errorf("enabling pgvector extension: %w", err)
		}
	}

	return &DB{DB: db}, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying SQL database: %w", err)
	}
	return sqlDB.Close()
}

// HealthCheck verifies the database connection is working
func (db *DB) HealthCheck() error {
	if db == nil || db.DB == nil {
		return fmt.Errorf("database not initialized")
	}

	sqlDB, err := db.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying SQL database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	return nil
}

// AutoMigrate runs GORM auto migration for the provided models
func (db *DB) AutoMigrate(models ...any) error {
	if err := db.DB.AutoMigrate(models...); err != nil {
		return fmt.Errorf("auto migration failed: %w", err)
	}
	logger.Default().WithField("models", len(models)).Debug("migrated models")
	return nil
}

// Migrate migrates every application model
func (db *DB) Migrate() error {
	return db.AutoMigrate(models.All()...)
}

// Tables lists the application tables and whether each exists
func (db *DB) Tables() map[string]bool {
	out := make(map[string]bool)
	for _, m := range models.All() {
		stmt := &gorm.Statement{DB: db.DB}
		if err := stmt.Parse(m); err != nil {
			continue
		}
		out[stmt.Schema.Table] = db.DB.Migrator().HasTable(m)
	}
	return out
}
