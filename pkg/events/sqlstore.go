package events

import (
	"context"
	"fmt"
	"time"

	"github.com/taiyoimmt-ops/tiktok-growth-director/pkg/database"
)

// SQLStore keeps progress events in the MySQL run_events table created by
// database.Open.
type SQLStore struct {
	db *database.DB
}

func NewSQLStore(db *database.DB) *SQLStore { return &SQLStore{db: db} }

func (s *SQLStore) Append(ctx context.Context, evs ...Progress) error {
	if len(evs) == 0 {
		return nil
	}
	tx, err := s.db.Conn().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO run_events (run_id, seq, type, stage, msg, at) VALUES (?,?,?,?,?,?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, p := range evs {
		at := p.At
		if at.IsZero() {
			at = time.Now()
		}
		if _, err := stmt.ExecContext(ctx, p.RunID, p.Seq, string(p.Type), p.Stage, p.Message, at.UTC()); err != nil {
			return fmt.Errorf("insert event: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *SQLStore) ListByRun(ctx context.Context, runID string) ([]Progress, error) {
	rows, err := s.db.Conn().QueryContext(ctx, `SELECT run_id, seq, type, stage, msg, at FROM run_events WHERE run_id = ? ORDER BY seq ASC, id ASC`, runID)
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

func (s *SQLStore) RecentRuns(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Conn().QueryContext(ctx, `SELECT run_id FROM run_events GROUP BY run_id ORDER BY MAX(id) DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan run id: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
