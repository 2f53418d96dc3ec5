// Package mq связывает varflow с RabbitMQ.
//
// Структура:
//   - connection.go — соединение с ожиданием брокера и reconnect
//   - topology.go   — объявление exchanges, queues, bindings
//   - publisher.go  — конверт Message и публикация событий
//   - consumer.go   — потребление очереди с ack/requeue/DLQ
//
// Типы сообщений:
//   - run.requested  — запрос на запуск конвейера (потребитель: демон)
//   - task.completed — узел графа завершён
//   - run.finished   — run завершён
//
// Exchanges:
//   - varflow.runs   — запросы на запуск
//   - varflow.events — события выполнения
//   - varflow.dlq    — отклонённые запросы
package mq
