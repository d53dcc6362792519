// Package history persists finished planning runs in a local SQLite file.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"transfer-planner/internal/domain"
)

type Store struct {
	db *sql.DB
}

// Open creates or opens the run history database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening history db: %w", err)
	}
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS runs (
  id TEXT PRIMARY KEY,
  started_at INTEGER NOT NULL,
  finished_at INTEGER NOT NULL,
  state TEXT NOT NULL,
  error_message TEXT,
  output_files TEXT NOT NULL DEFAULT '',
  params_json TEXT NOT NULL
);
`); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating runs table: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Record inserts one finished run.
func (s *Store) Record(ctx context.Context, rec domain.RunRecord) error {
	params, err := json.Marshal(rec.Parameters)
	if err != nil {
		return fmt.Errorf("encoding parameters: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, finished_at, state, error_message, output_files, params_json)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.StartedAt.UnixMilli(),
		rec.FinishedAt.UnixMilli(),
		string(rec.State),
		rec.Error,
		strings.Join(rec.OutputFiles, "\n"),
		string(params),
	)
	if err != nil {
		return fmt.Errorf("inserting run %s: %w", rec.ID, err)
	}
	return nil
}

// Recent returns the most recently finished runs, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]domain.RunRecord, error) {
	if limit <= 0 {
		limit = 25
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, finished_at, state, error_message, output_files, params_json
       FROM runs ORDER BY finished_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var out []domain.RunRecord
	for rows.Next() {
		var (
			id, state, filesRaw, paramsJSON string
			startedMs, finishedMs           int64
			errorMsg                        sql.NullString
		)
		if err := rows.Scan(&id, &startedMs, &finishedMs, &state, &errorMsg, &filesRaw, &paramsJSON); err != nil {
			return nil, err
		}
		rec := domain.RunRecord{
			ID:         id,
			StartedAt:  time.UnixMilli(startedMs),
			FinishedAt: time.UnixMilli(finishedMs),
			State:      domain.RunState(state),
		}
		if errorMsg.Valid {
			rec.Error = errorMsg.String
		}
		if filesRaw != "" {
			rec.OutputFiles = strings.Split(filesRaw, "\n")
		}
		if err := json.Unmarshal([]byte(paramsJSON), &rec.Parameters); err != nil {
			return nil, fmt.Errorf("decoding parameters of run %s: %w", id, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
