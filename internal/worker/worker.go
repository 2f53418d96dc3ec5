package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shaiso/varflow/internal/domain"
	"github.com/shaiso/varflow/internal/gate"
	"github.com/shaiso/varflow/internal/telemetry"
)

// Worker выполняет отдельные tasks.
//
// Worker не хранит состояния run: task передаётся оркестратором
// уже в статусе RUNNING, а результат возвращается ему же.
// Retry выполняется в процессе, без повторной постановки в очередь.
type Worker struct {
	registry *Registry
	logger   *slog.Logger
}

// Config — конфигурация Worker.
type Config struct {
	// Tools — команды внешних инструментов (незаданные берутся из DefaultTools).
	Tools Tools

	// Watcher — наблюдатель каталога для watch-gate (если nil — FSWatcher).
	Watcher gate.Watcher

	// Registry (опционально; если nil — используется NewRegistry())
	Registry *Registry

	// Logger
	Logger *slog.Logger
}

// New создаёт новый Worker.
func New(cfg Config) *Worker {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	registry := cfg.Registry
	if registry == nil {
		registry = NewRegistry(cfg.Tools.WithDefaults(), cfg.Watcher, logger)
	}

	return &Worker{
		registry: registry,
		logger:   logger,
	}
}

// Execute выполняет task с retry согласно policy.
//
// task должен быть в статусе RUNNING. Статус не меняется, кроме
// сброса и повторного MarkRunning между попытками.
func (w *Worker) Execute(ctx context.Context, task *domain.Task, policy *domain.RetryPolicy) (*ExecutionResult, error) {
	executor, err := w.registry.Get(task.Kind)
	if err != nil {
		return nil, err
	}

	maxAttempts := 1
	if policy != nil && policy.MaxAttempts > 0 {
		maxAttempts = policy.MaxAttempts
	}

	var lastResult *ExecutionResult
	var lastErr error

	for {
		lastResult, lastErr = executor.Execute(ctx, task)

		// Успех — инфраструктурной ошибки нет и логической ошибки нет
		if lastErr == nil && (lastResult == nil || lastResult.Error == "") {
			if lastResult == nil {
				lastResult = &ExecutionResult{}
			}
			return lastResult, nil
		}

		if !shouldRetry(lastResult, lastErr) {
			break
		}

		if !task.CanRetry(maxAttempts) {
			if maxAttempts > 1 {
				lastErr = errors.Join(ErrRetryExhausted, resultError(lastResult, lastErr))
			}
			break
		}

		delay := calculateBackoff(task.Attempt, policy)

		telemetry.WithNodeID(telemetry.FromContextOr(ctx, w.logger), task.NodeID).Warn("retrying task",
			"attempt", task.Attempt,
			"delay", delay,
			"error", resultError(lastResult, lastErr),
		)

		// Ждём с учётом context
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}

		// Сброс и новая попытка
		task.ResetForRetry()
		task.MarkRunning()
	}

	return lastResult, lastErr
}

// shouldRetry определяет, нужно ли делать retry.
//
// Повторяются только сбои внешних инструментов и логические ошибки.
// Ошибки payload, таймауты gate и отмена context не повторяются.
func shouldRetry(result *ExecutionResult, execErr error) bool {
	if execErr == nil {
		return result != nil && result.Error != ""
	}
	if errors.Is(execErr, context.Canceled) || errors.Is(execErr, context.DeadlineExceeded) {
		return false
	}
	return errors.Is(execErr, ErrToolFailed)
}

// resultError сводит два уровня ошибок к одному error.
func resultError(result *ExecutionResult, execErr error) error {
	if execErr != nil {
		return execErr
	}
	if result != nil && result.Error != "" {
		return errors.New(result.Error)
	}
	return nil
}

// calculateBackoff вычисляет задержку перед retry.
func calculateBackoff(attempt int, policy *domain.RetryPolicy) time.Duration {
	if policy == nil {
		return time.Second
	}

	initialDelay := time.Duration(policy.InitialDelayMs) * time.Millisecond
	if initialDelay <= 0 {
		initialDelay = time.Second
	}

	maxDelay := time.Duration(policy.MaxDelayMs) * time.Millisecond
	if maxDelay <= 0 {
		maxDelay = 30 * time.Second
	}

	var delay time.Duration
	switch policy.Backoff {
	case "exponential":
		// delay = initialDelay * 2^(attempt-1)
		delay = initialDelay
		for i := 1; i < attempt; i++ {
			delay *= 2
			if delay > maxDelay {
				delay = maxDelay
				break
			}
		}
	default:
		// "fixed" или неизвестный — используем initialDelay
		delay = initialDelay
	}

	if delay > maxDelay {
		delay = maxDelay
	}

	return delay
}
