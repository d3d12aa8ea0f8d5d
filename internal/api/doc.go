// Package api содержит HTTP API сервер.
//
// Структура:
//   - handler.go           — Handler с DI (репозитории, publisher, logger)
//   - routes.go            — регистрация маршрутов
//   - middleware.go        — middleware (logging, recovery)
//   - response.go          — унифицированные JSON-ответы и обработка ошибок
//   - dto.go               — Data Transfer Objects (request/response)
//   - algorithm_handler.go — обработчики для /algorithms
//   - snapshot_handler.go  — обработчики для /snapshots
//
// API предоставляет REST endpoints для публикации версий алгоритмов и
// управления снапшотами (создание, просмотр, запрос отмены).
package api
