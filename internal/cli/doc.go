// Package cli реализует инструмент командной строки Reputa.
//
// # Обзор
//
// CLI — клиентская утилита для взаимодействия с Reputa API.
// Работает через HTTP, не импортирует внутренние пакеты системы.
// CLI используется для публикации алгоритмов и управления снапшотами.
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент для Reputa API. Инкапсулирует все HTTP-запросы,
// парсинг ответов (DataResponse, ListResponse, ErrorResponse)
// и обработку ошибок.
//
//	client := cli.NewClient("http://localhost:8080")
//	defs, err := client.ListAlgorithms()
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON (json.MarshalIndent) — с флагом --json
//
// Данные выводятся в stdout, сообщения (Success/Error) — в stderr.
// Это позволяет использовать pipe: reputa snapshot list --json | jq .
//
// ## Commands
//
// Cobra-команды организованы по ресурсам:
//   - algorithm: list, versions, show, publish
//   - snapshot: list, start, show, cancel
//
// Каждая группа создаётся через фабричную функцию (NewSnapshotCmd и т.д.),
// принимающую clientFn и outputFn — замыкания для ленивого создания
// Client и Output после парсинга PersistentFlags.
package cli
