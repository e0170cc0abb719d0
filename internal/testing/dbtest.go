package testutil

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/taiyoimmt-ops/tiktok-growth-director/pkg/config"
	"github.com/taiyoimmt-ops/tiktok-growth-director/pkg/database"
)

// DBTest provides a real MySQL connection for integration tests.
// It uses DATABASE_URL_TEST and skips the test when it is not set.
type DBTest struct {
	T   *testing.T
	DB  *database.DB
	SQL *sql.DB
}

func NewDBTest(t *testing.T) *DBTest {
	t.Helper()
	url := os.Getenv("DATABASE_URL_TEST")
	if url == "" {
		t.Skip("DATABASE_URL_TEST not set; skipping integration tests")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	db, err := database.Open(ctx, &config.Config{
		DatabaseURL:       url,
		DBMaxOpenConns:    4,
		DBMaxIdleConns:    2,
		DBConnMaxLifetime: time.Minute,
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	d := &DBTest{T: t, DB: db, SQL: db.Conn()}
	t.Cleanup(d.Close)
	return d
}

func (d *DBTest) Close() {
	_ = d.DB.Close()
}

// Truncate empties the run history and event tables.
func (d *DBTest) Truncate() {
	d.T.Helper()
	for _, table := range []string{"batch_runs", "run_events"} {
		if _, err := d.SQL.Exec("DELETE FROM " + table); err != nil {
			d.T.Fatalf("truncate %s: %v", table, err)
		}
	}
}

// WithTx runs fn inside a transaction and rolls back by default.
func (d *DBTest) WithTx(fn func(tx *sql.Tx)) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	tx, err := d.SQL.BeginTx(ctx, nil)
	if err != nil {
		d.T.Fatalf("begin tx: %v", err)
	}
	defer tx.Rollback()
	fn(tx)
}
