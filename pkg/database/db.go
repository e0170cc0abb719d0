package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/taiyoimmt-ops/tiktok-growth-director/internal/constants"
	"github.com/taiyoimmt-ops/tiktok-growth-director/pkg/config"
	errs "github.com/taiyoimmt-ops/tiktok-growth-director/pkg/errors"
)

// DB wraps the MySQL pool that stores batch run history and progress events.
type DB struct {
	conn         *sql.DB
	readTimeout  time.Duration
	writeTimeout time.Duration
}

// Open connects with pool settings from cfg and creates missing tables.
func Open(ctx context.Context, cfg *config.Config) (*DB, error) {
	dsn, err := mysql.ParseDSN(cfg.DatabaseURL)
	if err != nil {
		return nil, errs.NewDB("database.Open", "invalid DSN", err)
	}
	// DATETIME columns scan into time.Time.
	dsn.ParseTime = true
	dsn.Loc = time.UTC

	conn, err := sql.Open("mysql", dsn.FormatDSN())
	if err != nil {
		return nil, errs.NewDB("database.Open", "open pool", err)
	}
	conn.SetMaxOpenConns(cfg.DBMaxOpenConns)
	conn.SetMaxIdleConns(cfg.DBMaxIdleConns)
	conn.SetConnMaxLifetime(cfg.DBConnMaxLifetime)

	db := &DB{
		conn:         conn,
		readTimeout:  constants.DBReadTimeoutDefault,
		writeTimeout: constants.DBWriteTimeoutDefault,
	}
	if err := db.Ping(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	if err := db.migrate(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

// Wrap adopts an existing handle; used by integration tests.
func Wrap(conn *sql.DB) *DB {
	return &DB{conn: conn, readTimeout: constants.DBReadTimeoutDefault, writeTimeout: constants.DBWriteTimeoutDefault}
}

func (db *DB) Conn() *sql.DB { return db.conn }

func (db *DB) Close() error { return db.conn.Close() }

// Ping checks connectivity within the read timeout.
func (db *DB) Ping(ctx context.Context) error {
	ctx, cancel := db.withReadTimeout(ctx)
	defer cancel()
	if err := db.conn.PingContext(ctx); err != nil {
		return errs.NewDB("database.Ping", "database unreachable", err)
	}
	return nil
}

func (db *DB) withReadTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, db.readTimeout)
}

func (db *DB) withWriteTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, db.writeTimeout)
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS batch_runs (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		batch_id VARCHAR(64) NOT NULL,
		area_id VARCHAR(16) NOT NULL,
		status VARCHAR(16) NOT NULL,
		exit_code INT NULL,
		slides INT NOT NULL DEFAULT 0,
		error TEXT NULL,
		elapsed_ms BIGINT NOT NULL DEFAULT 0,
		finished_at DATETIME(6) NOT NULL,
		KEY idx_area (area_id, id),
		KEY idx_batch (batch_id)
	)`,
	`CREATE TABLE IF NOT EXISTS run_events (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		run_id VARCHAR(64) NOT NULL,
		seq INT NOT NULL,
		type VARCHAR(16) NOT NULL,
		stage VARCHAR(32) NOT NULL,
		msg TEXT NOT NULL,
		at DATETIME(6) NOT NULL,
		KEY idx_run (run_id, seq)
	)`,
}

func (db *DB) migrate(ctx context.Context) error {
	ctx, cancel := db.withWriteTimeout(ctx)
	defer cancel()
	for _, ddl := range schema {
		if _, err := db.conn.ExecContext(ctx, ddl); err != nil {
			return errs.NewDB("database.migrate", "create table", err)
		}
	}
	return nil
}
