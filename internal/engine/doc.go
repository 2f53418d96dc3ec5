// Package engine содержит ядро планирования конвейеров.
//
// Включает:
//   - classify.go — классификация строк по режиму агрегации
//   - group.go    — стабильная группировка и проверка однородности групп
//   - merge.go    — выбор стратегии: symlink или слияние
//   - validate.go — валидация PipelineSpec
//   - dag.go      — построение и обход DAG
//   - template.go — рендеринг argv внешних инструментов ({{ .output }})
//
// Всё в пакете синхронно и без побочных эффектов. Выполнение графа
// находится в orchestrator и worker.
package engine
