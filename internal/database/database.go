package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"github.com/upcast-project/upconsent/internal/config"
)

const pingTimeout = 10 * time.Second

// DB wraps the MySQL pool backing the document tables
type DB struct {
	*sqlx.DB
	logger *logrus.Logger
}

// connectorConfig maps the database settings onto a driver config.
// Documents carry their own timestamps, so only parseTime is needed.
func connectorConfig(cfg *config.DatabaseConfig) *mysql.Config {
	mc := mysql.NewConfig()
	mc.User = cfg.User
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(cfg.Hostname, strconv.Itoa(cfg.Port))
	mc.DBName = cfg.Database
	mc.ParseTime = true
	mc.MultiStatements = true
	return mc
}

// Initialize opens the pool and verifies the server answers
func Initialize(cfg *config.DatabaseConfig, logger *logrus.Logger) (*DB, error) {
	mc := connectorConfig(cfg)

	logger.WithFields(logrus.Fields{
		"addr":     mc.Addr,
		"database": mc.DBName,
	}).Info("Connecting to MySQL...")

	connector, err := mysql.NewConnector(mc)
	if err != nil {
		return nil, fmt.Errorf("invalid mysql settings: %w", err)
	}

	pool := sqlx.NewDb(sql.OpenDB(connector), "mysql")
	pool.SetMaxOpenConns(cfg.MaxOpenConns)
	pool.SetMaxIdleConns(cfg.MaxIdleConns)
	pool.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	if err := pool.PingContext(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to reach mysql at %s: %w", mc.Addr, err)
	}

	logger.Info("Connected to MySQL")
	return NewFromSQLX(pool, logger), nil
}

// NewFromSQLX wraps an existing connection, used with sqlmock in tests
func NewFromSQLX(db *sqlx.DB, logger *logrus.Logger) *DB {
	return &DB{DB: db, logger: logger}
}

// EnsureSchema creates the document tables when they do not exist
func (db *DB) EnsureSchema(ctx context.Context) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i+1, err)
		}
	}
	db.logger.WithField("tables", len(schema)).Debug("Document tables ready")
	return nil
}

// HealthCheck pings the server
func (db *DB) HealthCheck(ctx context.Context) error {
	if db == nil || db.DB == nil {
		return errors.New("mysql pool is not open")
	}
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("mysql ping failed: %w", err)
	}
	return nil
}

// Close releases the pool
func (db *DB) Close() error {
	if db == nil || db.DB == nil {
		return nil
	}
	db.logger.Info("Closing MySQL pool...")
	return db.DB.Close()
}

// WithTx runs fn inside a read-committed transaction. The transaction is
// committed when fn returns nil and rolled back otherwise, panics included.
func (db *DB) WithTx(ctx context.Context, fn func(tx *sqlx.Tx) error) (err error) {
	tx, err := db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err = fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			db.logger.WithError(rbErr).Error("Failed to roll back transaction")
		}
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// LogStats writes the pool counters at debug level
func (db *DB) LogStats() {
	stats := db.DB.Stats()
	db.logger.WithFields(logrus.Fields{
		"open":          stats.OpenConnections,
		"in_use":        stats.InUse,
		"idle":          stats.Idle,
		"waits":         stats.WaitCount,
		"wait_duration": stats.WaitDuration.String(),
	}).Debug("MySQL pool stats")
}
