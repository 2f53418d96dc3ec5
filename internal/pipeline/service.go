package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/shaiso/varflow/internal/domain"
	"github.com/shaiso/varflow/internal/gate"
	"github.com/shaiso/varflow/internal/orchestrator"
	"github.com/shaiso/varflow/internal/telemetry"
	"github.com/shaiso/varflow/internal/worker"
)

// RunLookup проверяет, был ли уже run с ключом идемпотентности (repo.RunRepo).
type RunLookup interface {
	ExistsByIdempotencyKey(ctx context.Context, key string) (bool, error)
}

// Service планирует и выполняет конвейеры.
//
// Каждый run получает собственный worker с инструментами из своего
// файла параметров. Учёт в БД и события общие для всех runs.
type Service struct {
	runStore  orchestrator.RunStore
	taskStore orchestrator.TaskStore
	publisher orchestrator.Publisher
	runs      RunLookup
	watcher   gate.Watcher
	parallel  int
	logger    *slog.Logger

	active atomic.Int32
}

// Config — конфигурация Service.
type Config struct {
	// Учёт в БД (опционально)
	RunStore  orchestrator.RunStore
	TaskStore orchestrator.TaskStore
	Runs      RunLookup

	// MQ (опционально)
	Publisher orchestrator.Publisher

	// Watcher — наблюдатель для watch-gate (если nil — FSWatcher).
	Watcher gate.Watcher

	// Parallel — переопределяет parallel из файла параметров.
	Parallel int

	Logger *slog.Logger
}

// New создаёт Service.
func New(cfg Config) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		runStore:  cfg.RunStore,
		taskStore: cfg.TaskStore,
		publisher: cfg.Publisher,
		runs:      cfg.Runs,
		watcher:   cfg.Watcher,
		parallel:  cfg.Parallel,
		logger:    logger,
	}
}

// Request — запрос на запуск конвейера.
type Request struct {
	Pipeline       domain.PipelineKind
	ParamsFile     string
	IdempotencyKey string
}

// Result — план и итог выполнения.
type Result struct {
	Params *Params              `json:"-"`
	Plan   *Plan                `json:"plan"`
	Report *orchestrator.Report `json:"report,omitempty"`
}

// Prepare читает параметры и строит план без выполнения.
func (s *Service) Prepare(req Request) (*Params, *Plan, error) {
	if !req.Pipeline.IsValid() {
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownPipeline, req.Pipeline)
	}

	params, err := LoadParams(req.ParamsFile)
	if err != nil {
		return nil, nil, err
	}

	planner, err := NewPlanner(params, s.logger)
	if err != nil {
		return nil, nil, err
	}

	plan, err := planner.Plan(req.Pipeline)
	if err != nil {
		return params, nil, err
	}
	return params, plan, nil
}

// Run планирует и выполняет конвейер.
//
// Ошибка — *orchestrator.RunFailedError, если упали узлы или часть
// элементов отброшена при планировании. ErrNoWorkItems — граф пуст.
func (s *Service) Run(ctx context.Context, req Request) (*Result, error) {
	if req.IdempotencyKey != "" && s.runs != nil {
		exists, err := s.runs.ExistsByIdempotencyKey(ctx, req.IdempotencyKey)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrRunLookup, err)
		}
		if exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateRun, req.IdempotencyKey)
		}
	}

	params, plan, err := s.Prepare(req)
	if err != nil {
		return nil, err
	}
	result := &Result{Params: params, Plan: plan}

	if plan.Empty() {
		return result, errors.Join(ErrNoWorkItems, plan.Err())
	}
	if err := plan.Layout.Ensure(); err != nil {
		return result, err
	}

	orch := s.orchestrator(params)

	run := domain.NewRun(req.Pipeline, req.ParamsFile)
	run.IdempotencyKey = req.IdempotencyKey

	s.active.Add(1)
	defer s.active.Add(-1)

	telemetry.WithRunID(s.logger, run.ID.String()).Info("starting pipeline",
		"pipeline", req.Pipeline,
		"params", req.ParamsFile,
		"project", params.ProjectAccession,
	)

	result.Report, err = orch.Execute(ctx, run, plan.Spec)
	return result, err
}

// Active возвращает количество выполняемых runs.
func (s *Service) Active() int {
	return int(s.active.Load())
}

// orchestrator собирает оркестратор для одного run.
func (s *Service) orchestrator(params *Params) *orchestrator.Orchestrator {
	parallel := s.parallel
	if parallel <= 0 {
		parallel = params.Parallel
	}

	w := worker.New(worker.Config{
		Tools:   params.Tools,
		Watcher: s.watcher,
		Logger:  s.logger,
	})

	return orchestrator.New(orchestrator.Config{
		Worker:    w,
		Parallel:  parallel,
		RunStore:  s.runStore,
		TaskStore: s.taskStore,
		Publisher: s.publisher,
		Logger:    s.logger,
	})
}
