package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/shaiso/varflow/internal/domain"
	"github.com/shaiso/varflow/internal/engine"
	"github.com/shaiso/varflow/internal/gate"
	"github.com/shaiso/varflow/internal/mq"
	"github.com/shaiso/varflow/internal/telemetry"
	"github.com/shaiso/varflow/internal/worker"
)

// Default configuration values.
const (
	defaultParallel = 4
)

// TaskExecutor выполняет отдельный task (worker.Worker).
type TaskExecutor interface {
	Execute(ctx context.Context, task *domain.Task, policy *domain.RetryPolicy) (*worker.ExecutionResult, error)
}

// RunStore — учёт runs (repo.RunRepo).
type RunStore interface {
	Create(ctx context.Context, run *domain.Run) error
	Update(ctx context.Context, run *domain.Run) error
}

// TaskStore — учёт tasks (repo.TaskRepo).
type TaskStore interface {
	Create(ctx context.Context, task *domain.Task) error
	Update(ctx context.Context, task *domain.Task) error
}

// Publisher — публикация событий (mq.Publisher).
type Publisher interface {
	PublishTaskCompleted(ctx context.Context, payload mq.TaskCompletedPayload) error
	PublishRunFinished(ctx context.Context, payload mq.RunFinishedPayload) error
}

// Orchestrator выполняет граф конвейера в процессе.
//
// Orchestrator:
//   - Валидирует PipelineSpec и строит DAG
//   - Запускает готовые узлы параллельно (не более Parallel одновременно)
//   - Передаёт outputs зависимостей в payload под ключом "inputs"
//   - Собирает static-gate узлы через gate.Static
//   - Помечает SKIPPED узлы, зависимость которых упала
//   - Финализирует run (SUCCEEDED/FAILED/CANCELLED)
//
// Gate-узлы не занимают слот параллелизма.
type Orchestrator struct {
	worker TaskExecutor

	// Учёт и события (опционально)
	runStore  RunStore
	taskStore TaskStore
	publisher Publisher

	sem *semaphore.Weighted

	// Active runs — runs в процессе выполнения (runID → state)
	activeRuns map[uuid.UUID]*RunState
	mu         sync.RWMutex

	logger *slog.Logger
}

// Config — конфигурация Orchestrator.
type Config struct {
	// Worker (опционально; если nil — worker.New с DefaultTools)
	Worker TaskExecutor

	// Parallel — максимум одновременно выполняемых узлов (default: 4).
	Parallel int

	// Учёт в БД (опционально)
	RunStore  RunStore
	TaskStore TaskStore

	// MQ (опционально)
	Publisher Publisher

	// Logger
	Logger *slog.Logger
}

// New создаёт новый Orchestrator.
func New(cfg Config) *Orchestrator {
	parallel := cfg.Parallel
	if parallel <= 0 {
		parallel = defaultParallel
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	w := cfg.Worker
	if w == nil {
		w = worker.New(worker.Config{Logger: logger})
	}

	return &Orchestrator{
		worker:     w,
		runStore:   cfg.RunStore,
		taskStore:  cfg.TaskStore,
		publisher:  cfg.Publisher,
		sem:        semaphore.NewWeighted(int64(parallel)),
		activeRuns: make(map[uuid.UUID]*RunState),
		logger:     logger,
	}
}

// Report — итог выполнения run.
type Report struct {
	Run *domain.Run `json:"run"`

	// Tasks — tasks в топологическом порядке.
	Tasks []*domain.Task `json:"tasks"`

	// Failed — упавшие узлы (без SKIPPED).
	Failed []string `json:"failed,omitempty"`
}

// nodeResult — результат выполнения узла, отправляемый в цикл run.
type nodeResult struct {
	node *engine.Node

	result *worker.ExecutionResult
	err    error

	// gateResult — итог static gate.
	gateResult *gate.Result

	// notStarted — узел не был запущен (run отменён до получения слота).
	notStarted bool
}

// Execute выполняет run до завершения всех узлов.
//
// Возвращает Report в любом случае, кроме невалидного spec.
// Ошибка: *RunFailedError, если есть упавшие узлы или spec.Rejected
// не пуст, ErrRunCancelled при отмене ctx.
func (o *Orchestrator) Execute(ctx context.Context, run *domain.Run, spec *domain.PipelineSpec) (*Report, error) {
	state := NewRunState(run, spec)
	if err := state.Initialize(); err != nil {
		return nil, err
	}

	if err := o.addActiveRun(state); err != nil {
		return nil, err
	}
	defer o.removeActiveRun(run.ID)

	logger := telemetry.WithRunID(o.logger, run.ID.String())
	ctx = telemetry.WithLogger(ctx, logger)
	logger.Info("run started",
		"pipeline", run.Pipeline,
		"spec", spec.Name,
		"nodes", state.DAG.Size(),
	)

	// Учёт в БД не должен обрываться отменой run
	storeCtx := context.WithoutCancel(ctx)

	run.MarkRunning()
	o.saveRun(storeCtx, logger, run)
	for _, task := range state.Tasks() {
		if o.taskStore != nil {
			if err := o.taskStore.Create(storeCtx, task); err != nil {
				logger.Warn("failed to record task", "node_id", task.NodeID, "error", err)
			}
		}
	}

	results := make(chan nodeResult)
	inflight := 0

	// Static gates ждут отчётов с начала run
	for _, node := range state.DAG.GetGateNodes() {
		if node.Task.Kind != domain.KindStaticGate {
			continue
		}
		o.startStaticGate(ctx, state, node, results)
		inflight++
	}

	for {
		if ctx.Err() == nil {
			for _, node := range state.GetReadyNodes() {
				o.dispatch(ctx, state, node, spec.Retry, results)
				inflight++
			}
		}

		if inflight == 0 {
			break
		}

		res := <-results
		inflight--
		o.handleResult(storeCtx, logger, state, res)
	}

	return o.finalize(ctx, storeCtx, logger, state)
}

// startStaticGate переводит gate в RUNNING и ждёт его набор в отдельной горутине.
func (o *Orchestrator) startStaticGate(ctx context.Context, state *RunState, node *engine.Node, results chan<- nodeResult) {
	task := state.GetTask(node.ID)
	task.MarkRunning()
	state.MarkNodeRunning(node.ID)

	g := state.Gate(node.ID)
	telemetry.WithGate(telemetry.FromContextOr(ctx, o.logger), node.ID).Debug("gate waiting", "ids", g.IDs())
	go func() {
		result, err := g.Await(ctx)
		if err != nil {
			err = fmt.Errorf("%w: pending %s", err, strings.Join(g.Pending(), ", "))
		}
		results <- nodeResult{node: node, gateResult: &result, err: err}
	}()
}

// dispatch запускает узел в отдельной горутине.
func (o *Orchestrator) dispatch(ctx context.Context, state *RunState, node *engine.Node, policy *domain.RetryPolicy, results chan<- nodeResult) {
	task := state.GetTask(node.ID)
	payload := maps.Clone(node.Task.Args)
	if payload == nil {
		payload = make(map[string]any)
	}
	payload["inputs"] = state.Inputs(node)
	task.Payload = payload

	state.MarkNodeRunning(node.ID)
	nodeCtx, release := state.WatchContext(ctx, node.ID)

	go func() {
		if !node.IsGate() {
			if err := o.sem.Acquire(ctx, 1); err != nil {
				results <- nodeResult{node: node, err: err, notStarted: true}
				return
			}
			defer o.sem.Release(1)
		}

		task.MarkRunning()
		if o.taskStore != nil {
			if err := o.taskStore.Update(context.WithoutCancel(ctx), task); err != nil {
				o.logger.Warn("failed to record task start", "run_id", task.RunID, "node_id", task.NodeID, "error", err)
			}
		}

		result, err := o.worker.Execute(nodeCtx, task, policy)
		release()
		results <- nodeResult{node: node, result: result, err: err}
	}()
}

// handleResult применяет результат узла к состоянию run.
func (o *Orchestrator) handleResult(ctx context.Context, logger *slog.Logger, state *RunState, res nodeResult) {
	task := state.GetTask(res.node.ID)

	switch {
	case res.notStarted:
		o.skip(ctx, logger, state, res.node, "run cancelled")
		return

	case res.gateResult != nil:
		o.handleGateResult(task, res)
		if res.err != nil {
			state.SetError(res.node.ID, res.err)
		}

	case res.err != nil:
		task.MarkFailed(res.err.Error())
		state.SetError(res.node.ID, res.err)

	case res.result != nil && res.result.Error != "":
		task.MarkFailedWithOutputs(res.result.Error, res.result.Outputs)

	default:
		var outputs map[string]any
		if res.result != nil {
			outputs = res.result.Outputs
		}
		task.MarkSucceeded(outputs)
	}

	if res.node.IsGate() {
		telemetry.ObserveGateWait(string(res.node.Task.Kind), task.Duration())
	}

	o.finish(ctx, logger, state, res.node)
}

// handleGateResult переводит итог static gate в статус task.
//
// PartialFailure — FAILED, но outputs успешных узлов сохраняются.
func (o *Orchestrator) handleGateResult(task *domain.Task, res nodeResult) {
	if res.err != nil {
		task.MarkFailed(res.err.Error())
		return
	}

	outputs := make(map[string]any, len(res.gateResult.Outcomes))
	for _, outcome := range res.gateResult.Outcomes {
		if outcome.OK {
			outputs[outcome.ID] = outcome.Outputs
		}
	}
	gateOutputs := map[string]any{
		"status":  string(res.gateResult.Status),
		"outputs": outputs,
	}

	if res.gateResult.Status == gate.AllOK {
		task.MarkSucceeded(gateOutputs)
		return
	}

	gateOutputs["failed"] = res.gateResult.Failed
	task.MarkFailedWithOutputs(
		fmt.Sprintf("partial failure: %s", strings.Join(res.gateResult.Failed, ", ")),
		gateOutputs,
	)
}

// finish фиксирует терминальный статус узла и распространяет его.
//
// Static-gate зависимые получают отчёт. Остальные зависимые упавшего
// или пропущенного узла помечаются SKIPPED. Watch-gate, для которых
// узел был последним производителем, прерываются, если набрать
// expected уже нельзя.
func (o *Orchestrator) finish(ctx context.Context, logger *slog.Logger, state *RunState, node *engine.Node) {
	task := state.GetTask(node.ID)
	state.MarkNodeDone(node.ID, task.Status)

	log := telemetry.WithNodeID(logger, node.ID).With("kind", node.Task.Kind, "status", task.Status)
	switch {
	case node.IsGate():
		log = telemetry.WithGate(log, node.ID)
	case node.Task.Label != "":
		log = telemetry.WithGroup(log, node.Task.Label)
	}
	switch task.Status {
	case domain.TaskStatusSucceeded:
		log.Info("task succeeded", "attempt", task.Attempt, "duration", task.Duration())
	case domain.TaskStatusFailed:
		log.Error("task failed", "attempt", task.Attempt, "error", task.Error)
	default:
		log.Warn("task skipped", "reason", task.Error)
	}

	telemetry.ObserveTask(string(task.Kind), string(task.Status))
	o.saveTask(ctx, logger, task)

	for _, id := range state.ExhaustWatches(node.ID) {
		telemetry.WithGate(logger, id).Warn("watch gate cannot complete, upstream exhausted", "last_producer", node.ID)
	}

	for _, dependent := range node.Dependents {
		if g := state.Gate(dependent.ID); g != nil {
			err := g.Report(gate.Outcome{
				ID:      node.ID,
				OK:      task.Status == domain.TaskStatusSucceeded,
				Error:   task.Error,
				Outputs: task.Outputs,
			})
			if err != nil {
				logger.Error("gate report rejected", "gate", dependent.ID, "node_id", node.ID, "error", err)
			}
			continue
		}

		if task.Status != domain.TaskStatusSucceeded && !state.IsDone(dependent.ID) {
			o.skip(ctx, logger, state, dependent, fmt.Sprintf("dependency %s %s", node.ID, strings.ToLower(string(task.Status))))
		}
	}
}

// skip помечает узел SKIPPED и распространяет статус дальше.
func (o *Orchestrator) skip(ctx context.Context, logger *slog.Logger, state *RunState, node *engine.Node, reason string) {
	state.GetTask(node.ID).MarkSkipped(reason)
	o.finish(ctx, logger, state, node)
}

// finalize завершает run по состоянию узлов.
func (o *Orchestrator) finalize(ctx, storeCtx context.Context, logger *slog.Logger, state *RunState) (*Report, error) {
	run := state.Run

	// Узлы, которые так и не были запущены из-за отмены
	for _, node := range state.DAG.Order {
		if !state.IsDone(node.ID) {
			o.skip(storeCtx, logger, state, node, "run cancelled")
		}
	}

	report := &Report{Run: run, Tasks: state.Tasks(), Failed: state.FailedNodes()}

	var runErr error
	switch {
	case ctx.Err() != nil:
		run.MarkCancelled()
		run.Error = context.Cause(ctx).Error()
		runErr = fmt.Errorf("%w: %w", ErrRunCancelled, context.Cause(ctx))
	case len(report.Failed) > 0 || len(state.Spec.Rejected) > 0:
		failedErr := &RunFailedError{
			RunID:    run.ID,
			Failed:   report.Failed,
			Rejected: state.Spec.Rejected,
			Errs:     state.Errors(),
		}
		run.MarkFailed(failedErr.Error())
		runErr = failedErr
	default:
		run.MarkSucceeded()
	}

	o.saveRun(storeCtx, logger, run)
	telemetry.ObserveRun(string(run.Pipeline), string(run.Status))

	if o.publisher != nil {
		payload := mq.RunFinishedPayload{
			RunID:       run.ID,
			Pipeline:    string(run.Pipeline),
			Status:      string(run.Status),
			Error:       run.Error,
			FailedNodes: report.Failed,
		}
		if err := o.publisher.PublishRunFinished(storeCtx, payload); err != nil {
			logger.Warn("failed to publish run.finished", "error", err)
		}
	}

	stats := state.Stats()
	logger.Info("run finished",
		"status", run.Status,
		"duration", run.Duration(),
		"succeeded", stats.CompletedNodes,
		"failed", stats.FailedNodes,
		"skipped", stats.SkippedNodes,
	)

	return report, runErr
}

// saveRun записывает run, если учёт включён.
func (o *Orchestrator) saveRun(ctx context.Context, logger *slog.Logger, run *domain.Run) {
	if o.runStore == nil {
		return
	}

	var err error
	if run.Status == domain.RunStatusRunning {
		err = o.runStore.Create(ctx, run)
	} else {
		err = o.runStore.Update(ctx, run)
	}
	if err != nil {
		logger.Warn("failed to record run", "status", run.Status, "error", err)
	}
}

// saveTask записывает терминальный статус task и публикует task.completed.
func (o *Orchestrator) saveTask(ctx context.Context, logger *slog.Logger, task *domain.Task) {
	if o.taskStore != nil {
		if err := o.taskStore.Update(ctx, task); err != nil {
			logger.Warn("failed to record task", "node_id", task.NodeID, "error", err)
		}
	}

	if o.publisher == nil {
		return
	}
	payload := mq.TaskCompletedPayload{
		RunID:   task.RunID,
		TaskID:  task.ID,
		NodeID:  task.NodeID,
		Kind:    string(task.Kind),
		Label:   task.Label,
		Status:  string(task.Status),
		Error:   task.Error,
		Attempt: task.Attempt,
	}
	if err := o.publisher.PublishTaskCompleted(ctx, payload); err != nil {
		// Не возвращаем ошибку — статус записан, событие вторично
		logger.Warn("failed to publish task.completed", "node_id", task.NodeID, "error", err)
	}
}

// addActiveRun добавляет run в активные.
func (o *Orchestrator) addActiveRun(state *RunState) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, exists := o.activeRuns[state.RunID()]; exists {
		return ErrRunAlreadyActive
	}

	o.activeRuns[state.RunID()] = state
	return nil
}

// removeActiveRun удаляет run из активных.
func (o *Orchestrator) removeActiveRun(runID uuid.UUID) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.activeRuns, runID)
}

// ActiveRunsCount возвращает количество активных runs.
func (o *Orchestrator) ActiveRunsCount() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.activeRuns)
}

// GetActiveRunStats возвращает статистику по активному run.
func (o *Orchestrator) GetActiveRunStats(runID uuid.UUID) (RunStats, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	state, exists := o.activeRuns[runID]
	if !exists {
		return RunStats{}, false
	}

	return state.Stats(), true
}

// IsCancellation проверяет, вызвана ли ошибка отменой run.
// Ошибки узлов внутри *RunFailedError отменой run не считаются.
func IsCancellation(err error) bool {
	var failed *RunFailedError
	if errors.As(err, &failed) {
		return false
	}
	return errors.Is(err, ErrRunCancelled) || errors.Is(err, context.Canceled)
}
