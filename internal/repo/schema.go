package repo

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema — таблицы учёта runs и tasks. Все выражения идемпотентны.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS pipeline_runs (
		id              UUID PRIMARY KEY,
		pipeline        TEXT NOT NULL,
		params_file     TEXT NOT NULL,
		status          TEXT NOT NULL,
		started_at      TIMESTAMPTZ,
		finished_at     TIMESTAMPTZ,
		error           TEXT,
		idempotency_key TEXT,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS pipeline_runs_idempotency_key
		ON pipeline_runs (idempotency_key) WHERE idempotency_key IS NOT NULL`,
	`CREATE INDEX IF NOT EXISTS pipeline_runs_status ON pipeline_runs (status, created_at)`,
	`CREATE TABLE IF NOT EXISTS pipeline_tasks (
		id          UUID PRIMARY KEY,
		run_id      UUID NOT NULL REFERENCES pipeline_runs (id) ON DELETE CASCADE,
		node_id     TEXT NOT NULL,
		kind        TEXT NOT NULL,
		label       TEXT,
		attempt     INT NOT NULL DEFAULT 0,
		status      TEXT NOT NULL,
		payload     JSONB,
		outputs     JSONB,
		started_at  TIMESTAMPTZ,
		finished_at TIMESTAMPTZ,
		error       TEXT,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (run_id, node_id)
	)`,
}

// EnsureSchema создаёт таблицы, если их нет.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
