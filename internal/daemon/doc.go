// Package daemon связывает очередь runs.pending, расписания и
// pipeline.Service в процессе varflow-daemon.
//
//   - RunRequestHandler: обработчик mq.Consumer для запросов на запуск
//   - Submitter: публикует запуски расписаний в runs.pending
//   - Health: состояние для /healthz
package daemon
