package worker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shaiso/varflow/internal/domain"
	"github.com/shaiso/varflow/internal/gate"
)

// Executor — интерфейс для выполнения конкретного типа узла.
//
// task.Payload содержит аргументы узла и outputs зависимостей
// под ключом "inputs".
type Executor interface {
	Execute(ctx context.Context, task *domain.Task) (*ExecutionResult, error)
}

// ExecutionResult — результат выполнения task.
type ExecutionResult struct {
	// Outputs — выходные данные выполнения (пути созданных файлов и т.п.).
	Outputs map[string]any

	// Error — сообщение об ошибке (логическая ошибка выполнения).
	// Инфраструктурные ошибки возвращаются через error в Execute().
	Error string
}

// Registry — реестр executor'ов по типу узла.
type Registry struct {
	executors map[domain.TaskKind]Executor
}

// NewRegistry создаёт реестр с executor'ами по умолчанию.
//
// static-gate не регистрируется: его исполняет оркестратор,
// которому принадлежит набор ожидаемых узлов.
func NewRegistry(tools Tools, watcher gate.Watcher, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	if watcher == nil {
		watcher = gate.NewFSWatcher(logger)
	}

	r := &Registry{executors: make(map[domain.TaskKind]Executor)}
	r.Register(domain.KindSymlink, &SymlinkExecutor{})
	r.Register(domain.KindWriteConfig, &WriteConfigExecutor{})
	r.Register(domain.KindMerge, &ToolExecutor{Tool: "merge", Argv: tools.Merge, Prepare: prepareMerge, Logger: logger})
	r.Register(domain.KindLoad, &ToolExecutor{Tool: "load", Argv: tools.Load, Prepare: prepareConfigTool, Logger: logger})
	r.Register(domain.KindAccession, &ToolExecutor{Tool: "accession", Argv: tools.Accession, Prepare: prepareConfigTool, Logger: logger})
	r.Register(domain.KindCompress, &ToolExecutor{Tool: "compress", Argv: tools.Compress, Prepare: prepareCompress, Logger: logger})
	r.Register(domain.KindIndex, &IndexExecutor{
		TBI: &ToolExecutor{Tool: "tabix", Argv: tools.TabixIndex, Prepare: prepareIndex(".tbi"), Logger: logger},
		CSI: &ToolExecutor{Tool: "csi-index", Argv: tools.CSIIndex, Prepare: prepareIndex(".csi"), Logger: logger},
	})
	r.Register(domain.KindPublish, &ToolExecutor{Tool: "publish", Argv: tools.Publish, Prepare: preparePublish, Logger: logger})
	r.Register(domain.KindWatchGate, &WatchGateExecutor{Watcher: watcher, Logger: logger})
	r.Register(domain.KindSummary, &SummaryExecutor{})
	return r
}

// Register добавляет executor для типа узла.
func (r *Registry) Register(kind domain.TaskKind, executor Executor) {
	r.executors[kind] = executor
}

// Get возвращает executor для типа узла.
func (r *Registry) Get(kind domain.TaskKind) (Executor, error) {
	executor, ok := r.executors[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTaskKind, kind)
	}
	return executor, nil
}
