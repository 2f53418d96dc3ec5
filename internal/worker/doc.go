// Package worker выполняет отдельные tasks графа конвейера.
//
// # Обзор
//
// Worker получает от оркестратора task в статусе RUNNING, выбирает
// executor по типу узла и выполняет его с retry согласно RetryPolicy.
// Результат (outputs или ошибка) возвращается оркестратору.
//
//	w := worker.New(worker.Config{
//	    Tools:  params.Tools,
//	    Logger: logger,
//	})
//
//	result, err := w.Execute(ctx, task, spec.Retry)
//
// # Executor
//
// Интерфейс для выполнения конкретного типа узла:
//
//	type Executor interface {
//	    Execute(ctx context.Context, task *domain.Task) (*ExecutionResult, error)
//	}
//
// Реализации:
//   - ToolExecutor — внешний инструмент (merge, load, accession, compress, publish)
//   - IndexExecutor — tabix (.tbi) или bcftools index (.csi)
//   - SymlinkExecutor — ссылка на единственный файл группы
//   - WriteConfigExecutor — запись конфигурации задания (jobconfig.Sink)
//   - WatchGateExecutor — ожидание файлов в каталоге (gate.AwaitCount)
//   - SummaryExecutor — YAML-отчёт финального шага
//
// static-gate исполняет оркестратор.
//
// # Внешние инструменты
//
// Команды задаются в Tools как argv-шаблоны и не ищутся глобально.
// Интерпретируется только код возврата: ненулевой код даёт *ToolError,
// stdout и stderr пишутся в файлы <logs_dir>/<node_id>.{out,err}.log.
// Отмена ctx завершает процесс.
//
// # Retry
//
// Повторяются только сбои внешних инструментов (ErrToolFailed).
//
// Стратегии backoff:
//   - "exponential": delay = initialDelay * 2^(attempt-1), capped at maxDelay
//   - "fixed": delay = initialDelay
package worker
