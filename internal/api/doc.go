// Package api содержит HTTP API демона.
//
// Структура:
//   - handler.go          — Handler с DI (чтение runs, publisher, planner)
//   - routes.go           — регистрация маршрутов
//   - middleware.go       — middleware (logging, recovery)
//   - response.go         — унифицированные JSON-ответы и обработка ошибок
//   - dto.go              — Data Transfer Objects (request/response)
//   - run_handler.go      — обработчики для /runs
//   - plan_handler.go     — граф конвейера без выполнения
//   - schedule_handler.go — расписания демона
//
// Запуски не выполняются в обработчике: POST /runs ставит запрос
// в runs.pending и отвечает 202.
package api
