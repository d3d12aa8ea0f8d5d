// Package orchestrator выполняет жизненный цикл снапшотов репутации.
//
// Оркестратор — единственный писатель статуса и outputs снапшота.
// Конвейер для одного снапшота:
//
//  1. Guarded-переход queued → running
//  2. Разрешение замороженного пресета в определение алгоритма (registry)
//  3. Материализация зависимостей данных (deps), с retry по LongRunPolicy
//  4. Маршрутизация runtime → очередь воркеров (routing)
//  5. Отправка compute-вызова: ExecutionRef персистится до публикации
//  6. Финализация по durable результату из compute.results
//
// Отмена кооперативная: флаг проверяется на границах шагов, mid-step
// прерываний нет. Терминальные статусы необратимы; поздние результаты
// compute для терминальных снапшотов отбрасываются.
//
// События приходят из RabbitMQ; при недоступном брокере queued снапшоты
// подхватывает polling fallback.
package orchestrator
