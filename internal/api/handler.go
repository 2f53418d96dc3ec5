package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/shaiso/varflow/internal/domain"
	"github.com/shaiso/varflow/internal/mq"
	"github.com/shaiso/varflow/internal/pipeline"
	"github.com/shaiso/varflow/internal/repo"
	"github.com/shaiso/varflow/internal/telemetry"
)

// RunReader — чтение runs (repo.RunRepo).
type RunReader interface {
	List(ctx context.Context, filter repo.RunFilter) ([]domain.Run, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Run, error)
}

// TaskReader — чтение tasks (repo.TaskRepo).
type TaskReader interface {
	ListByRunID(ctx context.Context, runID uuid.UUID) ([]domain.Task, error)
}

// RunRequester — постановка запуска в очередь (mq.Publisher).
type RunRequester interface {
	PublishRunRequested(ctx context.Context, payload mq.RunRequestedPayload) error
}

// Planner — построение графа без выполнения (pipeline.Service).
type Planner interface {
	Prepare(req pipeline.Request) (*pipeline.Params, *pipeline.Plan, error)
}

// ScheduleLister — активные расписания (scheduler.Scheduler).
type ScheduleLister interface {
	Schedules() []domain.Schedule
}

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	runs      RunReader
	tasks     TaskReader
	requester RunRequester
	planner   Planner
	schedules ScheduleLister
	logger    *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	Runs      RunReader
	Tasks     TaskReader
	Requester RunRequester
	Planner   Planner
	Schedules ScheduleLister
	Logger    *slog.Logger
}

// log возвращает логгер запроса (с request_id), если он есть.
func (h *Handler) log(r *http.Request) *slog.Logger {
	return telemetry.FromContextOr(r.Context(), h.logger)
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		runs:      cfg.Runs,
		tasks:     cfg.Tasks,
		requester: cfg.Requester,
		planner:   cfg.Planner,
		schedules: cfg.Schedules,
		logger:    logger,
	}
}
