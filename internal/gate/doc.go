// Package gate реализует fan-in синхронизацию перед финальным шагом.
//
// Две формы:
//   - Static — ждёт отчёты от фиксированного набора узлов и возвращает
//     AllOK или PartialFailure со списком неудачных.
//   - Gate / AwaitCount — ждёт заданное количество различных файлов
//     по шаблону в каталоге. События поставляет Watcher (FSWatcher
//     на fsnotify в продакшене), учёт ведёт Gate.
package gate
