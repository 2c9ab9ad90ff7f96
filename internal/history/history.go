// Package history keeps a record of finished research runs, newest first.
// Postgres backs it in deployment; Memory serves tests and database-less
// setups.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/lib/pq"

	"github.com/Adithya-Monish-Kumar-K/research-assistant/pkg/postgres"
)

// Record is one stored run.
type Record struct {
	RunID      string    `json:"run_id"`
	Topic      string    `json:"topic"`
	Status     string    `json:"status"`
	ErrorKind  string    `json:"error_kind,omitempty"`
	ErrorStage string    `json:"error_stage,omitempty"`
	Message    string    `json:"message,omitempty"`
	Summary    string    `json:"summary,omitempty"`
	Insight    string    `json:"insight,omitempty"`
	Sources    []string  `json:"sources"`
	LatencyMs  int64     `json:"latency_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

// Store saves and lists run records.
type Store interface {
	Save(ctx context.Context, rec Record) error
	List(ctx context.Context, limit int) ([]Record, error)
}

// Schema creates the runs table.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS research_runs (
		run_id      TEXT PRIMARY KEY,
		topic       TEXT NOT NULL,
		status      TEXT NOT NULL,
		error_kind  TEXT NOT NULL DEFAULT '',
		error_stage TEXT NOT NULL DEFAULT '',
		message     TEXT NOT NULL DEFAULT '',
		summary     TEXT NOT NULL DEFAULT '',
		insight     TEXT NOT NULL DEFAULT '',
		sources     TEXT[] NOT NULL DEFAULT '{}',
		latency_ms  BIGINT NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS research_runs_created_at_idx ON research_runs (created_at DESC)`,
}

type PostgresStore struct {
	db     *postgres.Client
	logger *slog.Logger
}

func NewPostgresStore(db *postgres.Client) *PostgresStore {
	return &PostgresStore{
		db:     db,
		logger: slog.Default().With("component", "history-store"),
	}
}

func (s *PostgresStore) Save(ctx context.Context, rec Record) error {
	if rec.Sources == nil {
		rec.Sources = []string{}
	}
	_, err := s.db.DB.ExecContext(ctx,
		`INSERT INTO research_runs
			(run_id, topic, status, error_kind, error_stage, message, summary, insight, sources, latency_ms, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (run_id) DO NOTHING`,
		rec.RunID, rec.Topic, rec.Status, rec.ErrorKind, rec.ErrorStage, rec.Message,
		rec.Summary, rec.Insight, pq.Array(rec.Sources), rec.LatencyMs, rec.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("saving research run %s: %w", rec.RunID, err)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, limit int) ([]Record, error) {
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT run_id, topic, status, error_kind, error_stage, message, summary, insight, sources, latency_ms, created_at
		 FROM research_runs ORDER BY created_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing research runs: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		rec, err := scan(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func scan(rows *sql.Rows) (Record, error) {
	var rec Record
	err := rows.Scan(&rec.RunID, &rec.Topic, &rec.Status, &rec.ErrorKind, &rec.ErrorStage, &rec.Message,
		&rec.Summary, &rec.Insight, pq.Array(&rec.Sources), &rec.LatencyMs, &rec.CreatedAt)
	if err != nil {
		return Record{}, fmt.Errorf("scanning research run: %w", err)
	}
	return rec, nil
}

// Memory is a bounded in-process Store.
type Memory struct {
	mu      sync.RWMutex
	records []Record
	max     int
}

func NewMemory(max int) *Memory {
	if max <= 0 {
		max = 500
	}
	return &Memory{max: max}
}

func (m *Memory) Save(_ context.Context, rec Record) error {
	rec.Sources = slices.Clone(rec.Sources)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	if len(m.records) > m.max {
		m.records = m.records[len(m.records)-m.max:]
	}
	return nil
}

func (m *Memory) List(_ context.Context, limit int) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Record, 0, min(limit, len(m.records)))
	for i := len(m.records) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.records[i])
	}
	return out, nil
}
