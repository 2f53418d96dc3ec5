// Package pipeline собирает конвейеры variant-load и accession
// в графы узлов и запускает их через orchestrator.
//
// Планирование:
//   - sheet: чтение таблицы метаданных
//   - engine.Classify: маршрутизация по режиму агрегации
//   - engine.GroupBy и engine.DecideMergeStrategy: один файл на группу
//   - jobconfig.Synthesizer: конфигурация задания на группу или файл
//
// Элемент, не прошедший любой из этапов, не получает узлов и
// записывается в Plan.Rejected; run по такому плану завершается FAILED.
package pipeline
