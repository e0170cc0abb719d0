package events

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore keeps progress events in Postgres. Selected when EVENTS_DSN is a
// postgres:// URL.
type PGStore struct {
	pool  *pgxpool.Pool
	table string
}

// OpenPGStore connects and ensures the events table exists.
func OpenPGStore(ctx context.Context, dsn string, maxConns int) (*PGStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse EVENTS_DSN: %w", err)
	}
	if maxConns <= 0 {
		maxConns = 2
	}
	cfg.MaxConns = int32(maxConns)
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect events store: %w", err)
	}
	s := &PGStore{pool: pool, table: "run_events"}
	if err := s.ensureTable(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PGStore) Close() { s.pool.Close() }

// Ping is used by the health checker.
func (s *PGStore) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

func (s *PGStore) ensureTable(ctx context.Context) error {
	ddl := `CREATE TABLE IF NOT EXISTS ` + s.table + ` (
		id BIGSERIAL PRIMARY KEY,
		run_id TEXT NOT NULL,
		seq INT NOT NULL,
		type TEXT NOT NULL,
		stage TEXT NOT NULL,
		msg TEXT NOT NULL,
		at TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS ` + s.table + `_run_idx ON ` + s.table + ` (run_id, seq);`
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("ensure %s: %w", s.table, err)
	}
	return nil
}

func (s *PGStore) Append(ctx context.Context, evs ...Progress) error {
	if len(evs) == 0 {
		return nil
	}
	b := &pgx.Batch{}
	for _, p := range evs {
		at := p.At
		if at.IsZero() {
			at = time.Now()
		}
		b.Queue(`INSERT INTO `+s.table+` (run_id, seq, type, stage, msg, at) VALUES ($1,$2,$3,$4,$5,$6)`,
			p.RunID, p.Seq, string(p.Type), p.Stage, p.Message, at)
	}
	br := s.pool.SendBatch(ctx, b)
	defer br.Close()
	for range evs {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("insert event: %w", err)
		}
	}
	return nil
}

func (s *PGStore) ListByRun(ctx context.Context, runID string) ([]Progress, error) {
	rows, err := s.pool.Query(ctx, `SELECT run_id, seq, type, stage, msg, at FROM `+s.table+` WHERE run_id = $1 ORDER BY seq, id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []Progress
	for rows.Next() {
		var p Progress
		var typ string
		if err := rows.Scan(&p.RunID, &p.Seq, &typ, &p.Stage, &p.Message, &p.At); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		p.Type = Type(typ)
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PGStore) RecentRuns(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx, `SELECT run_id FROM `+s.table+` GROUP BY run_id ORDER BY MAX(id) DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()
	return pgx.CollectRows(rows, pgx.RowTo[string])
}
