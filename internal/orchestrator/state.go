package orchestrator

import (
	"context"
	"fmt"
	"maps"
	"sync"

	"github.com/google/uuid"

	"github.com/shaiso/varflow/internal/domain"
	"github.com/shaiso/varflow/internal/engine"
	"github.com/shaiso/varflow/internal/gate"
	"github.com/shaiso/varflow/internal/worker"
)

// RunState — состояние выполнения одного run в памяти.
//
// RunState создаётся когда Orchestrator начинает выполнение run
// и удаляется когда run завершается (SUCCEEDED/FAILED/CANCELLED).
//
// Содержит:
//   - Run и PipelineSpec
//   - Построенный DAG
//   - Task для каждого узла
//   - Static gate для каждого узла static-gate
//   - Отслеживание статуса каждого узла
type RunState struct {
	// Run — выполняемый run.
	Run *domain.Run

	// Spec — граф конвейера.
	Spec *domain.PipelineSpec

	// DAG — граф зависимостей узлов.
	DAG *engine.DAG

	// completed — успешно завершённые узлы (nodeID → true).
	completed map[string]bool

	// running — узлы в процессе выполнения (nodeID → true).
	running map[string]bool

	// done — узлы в любом терминальном статусе (nodeID → true).
	done map[string]bool

	// tasks — tasks узлов (nodeID → Task).
	tasks map[string]*domain.Task

	// gates — ожидаемые наборы static-gate узлов (nodeID → Static).
	gates map[string]*gate.Static

	// watches — watch-gate узлы с производителями (nodeID → watchWait).
	watches map[string]*watchWait

	// producers — watch-gate, ожидающие узел (producerID → gate IDs).
	producers map[string][]string

	// errs — ошибки упавших узлов (nodeID → error).
	errs map[string]error

	// mu — мьютекс для потокобезопасного доступа.
	mu sync.RWMutex
}

// NewRunState создаёт новый RunState.
func NewRunState(run *domain.Run, spec *domain.PipelineSpec) *RunState {
	return &RunState{
		Run:       run,
		Spec:      spec,
		completed: make(map[string]bool),
		running:   make(map[string]bool),
		done:      make(map[string]bool),
		tasks:     make(map[string]*domain.Task),
		gates:     make(map[string]*gate.Static),
		watches:   make(map[string]*watchWait),
		producers: make(map[string][]string),
		errs:      make(map[string]error),
	}
}

// watchWait — ожидание watch-gate: его производители и отмена.
type watchWait struct {
	producers []string
	expected  int
	cancel    context.CancelCauseFunc
}

// Initialize валидирует PipelineSpec, строит DAG и создаёт tasks.
//
// Для каждого static-gate узла создаётся gate.Static с набором
// его зависимостей, чтобы отчёты могли приходить до запуска gate.
func (s *RunState) Initialize() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := engine.Validate(s.Spec); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSpec, err)
	}

	dag, err := engine.BuildDAG(s.Spec)
	if err != nil {
		return fmt.Errorf("%w: build DAG: %w", ErrInvalidSpec, err)
	}
	s.DAG = dag

	for _, node := range dag.Order {
		s.tasks[node.ID] = domain.NewTask(s.Run.ID, node.Task, maps.Clone(node.Task.Args))

		if node.Task.Kind == domain.KindStaticGate {
			ids := make([]string, len(node.DependsOn))
			for i, dep := range node.DependsOn {
				ids[i] = dep.ID
			}
			s.gates[node.ID] = gate.NewStatic(node.ID, ids)
		}

		if node.Task.Kind == domain.KindWatchGate && len(node.Task.Producers) > 0 {
			s.watches[node.ID] = &watchWait{
				producers: node.Task.Producers,
				expected:  worker.GetConfigInt(node.Task.Args, "expected"),
			}
			for _, p := range node.Task.Producers {
				s.producers[p] = append(s.producers[p], node.ID)
			}
		}
	}

	return nil
}

// GetReadyNodes возвращает узлы, готовые к выполнению.
// Static-gate узлы сюда не попадают: они запускаются в начале run.
func (s *RunState) GetReadyNodes() []*engine.Node {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ready := s.DAG.GetReadyNodes(s.completed, s.running, s.done)
	nodes := ready[:0]
	for _, node := range ready {
		if node.Task.Kind != domain.KindStaticGate {
			nodes = append(nodes, node)
		}
	}
	return nodes
}

// MarkNodeRunning помечает узел как выполняющийся.
func (s *RunState) MarkNodeRunning(nodeID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.running[nodeID] = true
}

// MarkNodeDone помечает узел как завершённый с данным статусом.
func (s *RunState) MarkNodeDone(nodeID string, status domain.TaskStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.running, nodeID)
	s.done[nodeID] = true
	if status == domain.TaskStatusSucceeded {
		s.completed[nodeID] = true
	}
}

// IsDone проверяет, завершён ли узел.
func (s *RunState) IsDone(nodeID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.done[nodeID]
}

// GetTask возвращает task узла.
func (s *RunState) GetTask(nodeID string) *domain.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.tasks[nodeID]
}

// Gate возвращает static gate узла.
func (s *RunState) Gate(nodeID string) *gate.Static {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.gates[nodeID]
}

// WatchContext возвращает контекст выполнения watch-gate узла.
// Для узла без производителей возвращается ctx без изменений.
func (s *RunState) WatchContext(ctx context.Context, nodeID string) (context.Context, context.CancelFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w := s.watches[nodeID]
	if w == nil {
		return ctx, func() {}
	}
	watchCtx, cancel := context.WithCancelCause(ctx)
	w.cancel = cancel
	return watchCtx, func() {
		s.mu.Lock()
		w.cancel = nil
		s.mu.Unlock()
		cancel(nil)
	}
}

// ExhaustWatches прерывает watch-gate, которые уже не могут завершиться:
// все производители в терминальном статусе, а успешных меньше expected.
// Проверяются только gate, ожидающие узел nodeID. Возвращает прерванные gate.
func (s *RunState) ExhaustWatches(nodeID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var exhausted []string
	for _, id := range s.producers[nodeID] {
		w := s.watches[id]
		if w == nil || w.cancel == nil || w.expected <= 0 {
			continue
		}
		succeeded := 0
		for _, p := range w.producers {
			if !s.done[p] {
				succeeded = -1
				break
			}
			if s.completed[p] {
				succeeded++
			}
		}
		if succeeded < 0 || succeeded >= w.expected {
			continue
		}
		w.cancel(gate.ErrUpstreamExhausted)
		w.cancel = nil
		exhausted = append(exhausted, id)
	}
	return exhausted
}

// SetError сохраняет ошибку упавшего узла.
func (s *RunState) SetError(nodeID string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.errs[nodeID] = err
}

// Errors возвращает ошибки упавших узлов в топологическом порядке.
func (s *RunState) Errors() []error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var errs []error
	for _, node := range s.DAG.Order {
		if err := s.errs[node.ID]; err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// Inputs собирает outputs успешных зависимостей узла.
func (s *RunState) Inputs(node *engine.Node) map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inputs := make(map[string]any, len(node.DependsOn))
	for _, dep := range node.DependsOn {
		if task := s.tasks[dep.ID]; task != nil && task.Outputs != nil {
			inputs[dep.ID] = task.Outputs
		}
	}
	return inputs
}

// IsComplete проверяет, все ли узлы в терминальном статусе.
func (s *RunState) IsComplete() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.DAG.IsComplete(s.done)
}

// FailedNodes возвращает упавшие узлы в топологическом порядке.
// SKIPPED узлы не включаются.
func (s *RunState) FailedNodes() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	failed := make([]string, 0)
	for _, node := range s.DAG.Order {
		if s.tasks[node.ID].Status == domain.TaskStatusFailed {
			failed = append(failed, node.ID)
		}
	}
	return failed
}

// Tasks возвращает tasks в топологическом порядке.
func (s *RunState) Tasks() []*domain.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tasks := make([]*domain.Task, 0, len(s.DAG.Order))
	for _, node := range s.DAG.Order {
		tasks = append(tasks, s.tasks[node.ID])
	}
	return tasks
}

// RunID возвращает ID run.
func (s *RunState) RunID() uuid.UUID {
	return s.Run.ID
}

// Stats возвращает статистику выполнения.
func (s *RunState) Stats() RunStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := RunStats{TotalNodes: len(s.tasks), RunningNodes: len(s.running)}
	for id := range s.done {
		switch s.tasks[id].Status {
		case domain.TaskStatusSucceeded:
			stats.CompletedNodes++
		case domain.TaskStatusFailed:
			stats.FailedNodes++
		case domain.TaskStatusSkipped:
			stats.SkippedNodes++
		}
	}
	stats.PendingNodes = stats.TotalNodes - len(s.done) - stats.RunningNodes
	return stats
}

// RunStats — статистика выполнения run.
type RunStats struct {
	TotalNodes     int
	CompletedNodes int
	RunningNodes   int
	FailedNodes    int
	SkippedNodes   int
	PendingNodes   int
}
