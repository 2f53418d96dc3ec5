package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/varflow/internal/domain"
	"github.com/shaiso/varflow/internal/pipeline"
)

// Run DTOs

// CreateRunRequest — запрос на запуск конвейера.
type CreateRunRequest struct {
	Pipeline       string `json:"pipeline" validate:"required,oneof=variant-load accession"`
	ParamsFile     string `json:"params_file" validate:"required"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

// RunResponse — ответ с run.
type RunResponse struct {
	ID             uuid.UUID  `json:"id"`
	Pipeline       string     `json:"pipeline"`
	ParamsFile     string     `json:"params_file"`
	Status         string     `json:"status"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	FinishedAt     *time.Time `json:"finished_at,omitempty"`
	DurationMs     int64      `json:"duration_ms,omitempty"`
	Error          string     `json:"error,omitempty"`
	IdempotencyKey string     `json:"idempotency_key,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// RunFromDomain конвертирует domain.Run в RunResponse.
func RunFromDomain(r domain.Run) RunResponse {
	return RunResponse{
		ID:             r.ID,
		Pipeline:       string(r.Pipeline),
		ParamsFile:     r.ParamsFile,
		Status:         string(r.Status),
		StartedAt:      r.StartedAt,
		FinishedAt:     r.FinishedAt,
		DurationMs:     r.Duration().Milliseconds(),
		Error:          r.Error,
		IdempotencyKey: r.IdempotencyKey,
		CreatedAt:      r.CreatedAt,
	}
}

// Task DTOs

// TaskResponse — ответ с task.
type TaskResponse struct {
	ID         uuid.UUID      `json:"id"`
	RunID      uuid.UUID      `json:"run_id"`
	NodeID     string         `json:"node_id"`
	Kind       string         `json:"kind"`
	Label      string         `json:"label,omitempty"`
	Attempt    int            `json:"attempt"`
	Status     string         `json:"status"`
	Outputs    map[string]any `json:"outputs,omitempty"`
	StartedAt  *time.Time     `json:"started_at,omitempty"`
	FinishedAt *time.Time     `json:"finished_at,omitempty"`
	Error      string         `json:"error,omitempty"`
}

// TaskFromDomain конвертирует domain.Task в TaskResponse.
func TaskFromDomain(t domain.Task) TaskResponse {
	return TaskResponse{
		ID:         t.ID,
		RunID:      t.RunID,
		NodeID:     t.NodeID,
		Kind:       string(t.Kind),
		Label:      t.Label,
		Attempt:    t.Attempt,
		Status:     string(t.Status),
		Outputs:    t.Outputs,
		StartedAt:  t.StartedAt,
		FinishedAt: t.FinishedAt,
		Error:      t.Error,
	}
}

// Plan DTOs

// PlanRequest — запрос на построение графа.
type PlanRequest struct {
	Pipeline   string `json:"pipeline" validate:"required,oneof=variant-load accession"`
	ParamsFile string `json:"params_file" validate:"required"`
}

// PlanResponse — граф и отброшенные элементы.
type PlanResponse struct {
	Pipeline string           `json:"pipeline"`
	Nodes    []domain.TaskDef `json:"nodes"`
	Classes  map[string]int   `json:"classes,omitempty"`
	Rejected []string         `json:"rejected,omitempty"`
}

// PlanFromPipeline конвертирует pipeline.Plan в PlanResponse.
func PlanFromPipeline(p *pipeline.Plan) PlanResponse {
	rejected := make([]string, len(p.Rejected))
	for i, r := range p.Rejected {
		rejected[i] = r.Error()
	}
	return PlanResponse{
		Pipeline: string(p.Pipeline),
		Nodes:    p.Spec.Tasks,
		Classes:  p.Classes,
		Rejected: rejected,
	}
}

// Schedule DTOs

// ScheduleResponse — ответ с расписанием.
type ScheduleResponse struct {
	Name        string     `json:"name"`
	CronExpr    string     `json:"cron,omitempty"`
	IntervalSec int        `json:"interval_sec,omitempty"`
	Timezone    string     `json:"timezone,omitempty"`
	Pipeline    string     `json:"pipeline"`
	ParamsFile  string     `json:"params_file"`
	NextDueAt   *time.Time `json:"next_due_at,omitempty"`
	LastRunAt   *time.Time `json:"last_run_at,omitempty"`
}

// ScheduleFromDomain конвертирует domain.Schedule в ScheduleResponse.
func ScheduleFromDomain(s domain.Schedule) ScheduleResponse {
	return ScheduleResponse{
		Name:        s.Name,
		CronExpr:    s.CronExpr,
		IntervalSec: s.IntervalSec,
		Timezone:    s.Timezone,
		Pipeline:    string(s.Pipeline),
		ParamsFile:  s.ParamsFile,
		NextDueAt:   s.NextDueAt,
		LastRunAt:   s.LastRunAt,
	}
}
