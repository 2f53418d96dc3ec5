// Package cli реализует команды утилиты varflow.
//
// # Команды
//
//   - load, accession: спланировать и выполнить конвейер в процессе
//   - plan: показать граф без выполнения
//   - classify: классифицировать строки таблицы метаданных
//   - submit: поставить запуск в очередь демона (runs.pending)
//   - runs: история runs из PostgreSQL
//
// Каждая команда создаётся фабричной функцией (NewLoadCmd и т.д.),
// принимающей замыкания для ленивого создания зависимостей после
// парсинга PersistentFlags.
//
// # Output
//
// Поддерживает два режима:
//   - Таблицы (text/tabwriter) по умолчанию
//   - JSON с флагом --json
//
// Данные выводятся в stdout, сообщения и отброшенные элементы в stderr.
// Это позволяет использовать pipe: varflow plan accession p.yaml --json | jq .
package cli
