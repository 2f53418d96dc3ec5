package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/varflow/internal/domain"
)

// TaskRepo — учёт узлов run в таблице pipeline_tasks.
type TaskRepo struct {
	pool *pgxpool.Pool
}

// NewTaskRepo создаёт новый TaskRepo.
func NewTaskRepo(pool *pgxpool.Pool) *TaskRepo {
	return &TaskRepo{pool: pool}
}

const taskColumns = `id, run_id, node_id, kind, label, attempt, status, payload, outputs,
	started_at, finished_at, error, created_at`

// Create сохраняет новый task.
func (r *TaskRepo) Create(ctx context.Context, task *domain.Task) error {
	payloadJSON, err := marshalJSON(task.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	query := `
		INSERT INTO pipeline_tasks (id, run_id, node_id, kind, label, attempt, status, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = r.pool.Exec(ctx, query,
		task.ID,
		task.RunID,
		task.NodeID,
		task.Kind,
		nullString(task.Label),
		task.Attempt,
		task.Status,
		payloadJSON,
		task.CreatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("insert task %s: %w", task.NodeID, ErrAlreadyExists)
	}
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

// Update обновляет попытку, статус, payload и результаты task.
func (r *TaskRepo) Update(ctx context.Context, task *domain.Task) error {
	payloadJSON, err := marshalJSON(task.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	outputsJSON, err := marshalJSON(task.Outputs)
	if err != nil {
		return fmt.Errorf("marshal outputs: %w", err)
	}

	query := `
		UPDATE pipeline_tasks
		SET attempt = $2, status = $3, payload = $4, outputs = $5,
		    started_at = $6, finished_at = $7, error = $8
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query,
		task.ID,
		task.Attempt,
		task.Status,
		payloadJSON,
		outputsJSON,
		task.StartedAt,
		task.FinishedAt,
		nullString(task.Error),
	)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetByID возвращает task по ID.
func (r *TaskRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM pipeline_tasks WHERE id = $1`
	return scanTask(r.pool.QueryRow(ctx, query, id))
}

// ListByRunID возвращает все tasks run в порядке создания.
func (r *TaskRepo) ListByRunID(ctx context.Context, runID uuid.UUID) ([]domain.Task, error) {
	query := `SELECT ` + taskColumns + `
		FROM pipeline_tasks
		WHERE run_id = $1
		ORDER BY created_at ASC, node_id ASC
	`
	rows, err := r.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("list tasks by run_id: %w", err)
	}
	defer rows.Close()

	var tasks []domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

// CountByRunAndStatus возвращает количество tasks run в статусе.
func (r *TaskRepo) CountByRunAndStatus(ctx context.Context, runID uuid.UUID, status domain.TaskStatus) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM pipeline_tasks WHERE run_id = $1 AND status = $2
	`, runID, status).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count tasks: %w", err)
	}
	return count, nil
}

func scanTask(row rowScanner) (*domain.Task, error) {
	var task domain.Task
	var payloadJSON, outputsJSON []byte
	var label, taskError *string

	err := row.Scan(
		&task.ID,
		&task.RunID,
		&task.NodeID,
		&task.Kind,
		&label,
		&task.Attempt,
		&task.Status,
		&payloadJSON,
		&outputsJSON,
		&task.StartedAt,
		&task.FinishedAt,
		&taskError,
		&task.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan task: %w", err)
	}

	if payloadJSON != nil {
		if err := json.Unmarshal(payloadJSON, &task.Payload); err != nil {
			return nil, fmt.Errorf("unmarshal payload: %w", err)
		}
	}
	if outputsJSON != nil {
		if err := json.Unmarshal(outputsJSON, &task.Outputs); err != nil {
			return nil, fmt.Errorf("unmarshal outputs: %w", err)
		}
	}
	task.Label = derefString(label)
	task.Error = derefString(taskError)

	return &task, nil
}

// marshalJSON возвращает nil для пустой карты (NULL в jsonb).
func marshalJSON(m map[string]any) ([]byte, error) {
	if len(m) == 0 {
		return nil, nil
	}
	return json.Marshal(m)
}
