package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/shaiso/varflow/internal/domain"
	"github.com/shaiso/varflow/internal/gate"
	"github.com/shaiso/varflow/internal/telemetry"
)

// WatchGateExecutor — executor для узла "watch-gate".
//
// Ждёт expected новых файлов по шаблону в каталоге. Файлы старше
// начала выполнения узла не учитываются.
//
// Payload:
//   - dir (string): наблюдаемый каталог
//   - pattern (string): шаблон имени файла (filepath.Match)
//   - expected (int): ожидаемое количество файлов
//   - timeout_sec (int): ограничение ожидания (0 — без ограничения;
//     планировщик всегда задаёт положительное значение)
type WatchGateExecutor struct {
	Watcher gate.Watcher
	Logger  *slog.Logger
}

// Execute блокируется до завершения gate, таймаута или отмены ctx.
func (e *WatchGateExecutor) Execute(ctx context.Context, task *domain.Task) (*ExecutionResult, error) {
	dir, err := requireString(task.Payload, "dir")
	if err != nil {
		return nil, err
	}
	pattern, err := requireString(task.Payload, "pattern")
	if err != nil {
		return nil, err
	}

	start := time.Now()
	if task.StartedAt != nil {
		start = *task.StartedAt
	}
	timeout := time.Duration(GetConfigInt(task.Payload, "timeout_sec")) * time.Second
	expected := GetConfigOptionalInt(task.Payload, "expected")

	logger := telemetry.WithGate(telemetry.FromContextOr(ctx, e.Logger), task.NodeID)
	logger.Info("watching for outputs",
		"dir", dir,
		"pattern", pattern,
		"expected", GetConfigInt(task.Payload, "expected"),
		"timeout", timeout,
	)

	matched, err := gate.AwaitCount(ctx, e.Watcher, dir, pattern, expected, start, timeout)
	if err != nil {
		return nil, err
	}

	return &ExecutionResult{
		Outputs: map[string]any{"matched": matched, "count": len(matched)},
	}, nil
}
