package report

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/and161185/node-watchdog/internal/utils"
	"github.com/and161185/node-watchdog/model"
	"github.com/jackc/pgx/v5/pgxpool"
)

const createReportsTable = `
create table if not exists reports (
	id bigserial primary key,
	generated_at timestamptz not null,
	severity text not null,
	score double precision not null,
	anomaly_count int not null,
	degraded boolean not null,
	payload jsonb not null
)`

// PostgresSink stores reports as jsonb rows.
type PostgresSink struct {
	db *pgxpool.Pool
}

// NewPostgresSink connects to the database and ensures the reports table
// exists.
func NewPostgresSink(ctx context.Context, databaseDsn string) (*PostgresSink, error) {
	db, err := pgxpool.New(ctx, databaseDsn)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	if _, err := db.Exec(ctx, createReportsTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("create table: %w", err)
	}
	return &PostgresSink{db: db}, nil
}

// Write inserts the report, retrying transient connection failures.
func (s *PostgresSink) Write(ctx context.Context, r *model.Report) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	err = utils.WithRetry(ctx, func() error {
		_, err := s.db.Exec(ctx,
			`insert into reports (generated_at, severity, score, anomaly_count, degraded, payload)
			 values ($1, $2, $3, $4, $5, $6)`,
			r.GeneratedAt, r.Severity, r.Score, len(r.Anomalies), r.Summary.Degraded(), payload)
		return err
	})
	if err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (s *PostgresSink) Close() {
	s.db.Close()
}

// Ping checks database connectivity.
func (s *PostgresSink) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}
