package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/taiyoimmt-ops/tiktok-growth-director/internal/models"
	errs "github.com/taiyoimmt-ops/tiktok-growth-director/pkg/errors"
)

// RunRecord is one persisted job outcome.
type RunRecord struct {
	BatchID    string
	AreaID     string
	Status     models.JobState
	ExitCode   *int
	Slides     int
	Error      string
	ElapsedMS  int64
	FinishedAt time.Time
}

// RecordJobCtx stores one scheduler job outcome.
func (db *DB) RecordJobCtx(ctx context.Context, batchID string, js models.JobStatus) error {
	ctx, cancel := db.withWriteTimeout(ctx)
	defer cancel()

	var exit sql.NullInt64
	if js.ExitCode != nil {
		exit = sql.NullInt64{Int64: int64(*js.ExitCode), Valid: true}
	}
	var slides int
	var msg sql.NullString
	var elapsed int64
	if r := js.Result; r != nil {
		slides = r.Slides
		elapsed = r.ElapsedMS
		if r.Error != "" {
			msg = sql.NullString{String: r.Error, Valid: true}
		}
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO batch_runs (batch_id, area_id, status, exit_code, slides, error, elapsed_ms, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		batchID, js.ID, string(js.Status), exit, slides, msg, elapsed, time.Now().UTC())
	if err != nil {
		return errs.NewDB("database.RecordJobCtx", "insert batch run", err)
	}
	return nil
}

// HistoryByAreaCtx returns the outcomes recorded for one area, newest first.
func (db *DB) HistoryByAreaCtx(ctx context.Context, areaID string, limit int) ([]RunRecord, error) {
	ctx, cancel := db.withReadTimeout(ctx)
	defer cancel()
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.QueryContext(ctx,
		`SELECT batch_id, area_id, status, exit_code, slides, error, elapsed_ms, finished_at
		 FROM batch_runs WHERE area_id = ? ORDER BY id DESC LIMIT ?`, areaID, limit)
	if err != nil {
		return nil, errs.NewDB("database.HistoryByAreaCtx", "query batch runs", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var r RunRecord
		var status string
		var exit sql.NullInt64
		var msg sql.NullString
		if err := rows.Scan(&r.BatchID, &r.AreaID, &status, &exit, &r.Slides, &msg, &r.ElapsedMS, &r.FinishedAt); err != nil {
			return nil, errs.NewDB("database.HistoryByAreaCtx", "scan batch run", err)
		}
		r.Status = models.JobState(status)
		if exit.Valid {
			v := int(exit.Int64)
			r.ExitCode = &v
		}
		r.Error = msg.String
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.NewDB("database.HistoryByAreaCtx", "row iteration error", err)
	}
	return out, nil
}
