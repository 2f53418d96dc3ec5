// Package telemetry обеспечивает наблюдаемость varflow.
//
// Включает:
//   - logging.go — structured logging через slog (LOG_LEVEL, LOG_FORMAT)
//   - metrics.go — Prometheus метрики tasks, gates, групп и runs
//
// Атрибуты логов: run_id, node_id, group, gate.
// Демон экспортирует метрики на /metrics.
package telemetry
