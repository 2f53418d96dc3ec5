// Package orchestrator выполняет граф конвейера в процессе.
//
// Orchestrator отвечает за:
//   - Валидацию PipelineSpec и построение DAG
//   - Запуск готовых узлов через worker с ограничением параллелизма
//   - Сбор static-gate узлов (gate.Static): отчёт приходит от каждой
//     зависимости, в том числе упавшей или пропущенной
//   - Пометку SKIPPED для узлов, чья зависимость упала
//   - Финализацию run (SUCCEEDED/FAILED/CANCELLED)
//
// Учёт в БД и публикация событий опциональны: RunStore, TaskStore
// и Publisher могут быть nil.
//
// Состояние run изменяет только цикл Execute; горутины узлов
// возвращают результат через канал.
package orchestrator
