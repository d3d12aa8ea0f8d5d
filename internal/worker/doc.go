// Package worker выполняет compute-вызовы одного runtime-пула.
//
// # Обзор
//
// Worker — stateless компонент, потребляющий вызовы из своей очереди
// (compute.typescript, compute.python) и выполняющий алгоритм через
// compute.Dispatcher. Worker отвечает за:
//
//   - Проверку актуальности вызова (snapshot ждёт именно этот invocation)
//   - Выполнение алгоритма с таймаутом LongRunPolicy
//   - Retry только для идемпотентных реализаций
//   - Публикацию durable результата в compute.results
//
// Воркер никогда не пишет в snapshot: статус и outputs мутирует только
// оркестратор по полученному результату. Поэтому упавший или
// задублированный воркер не может испортить состояние — худший исход
// это повторное выполнение идемпотентного алгоритма.
//
// # Retry
//
// Retry выполняется in-process, не через requeue в RabbitMQ: это даёт
// точный контроль над backoff и подсчётом попыток.
//
//   - Идемпотентные реализации — до LongRunPolicy.MaxAttempts попыток
//   - Неидемпотентные — ровно одна попытка
//   - Дефиниционные ошибки (UnsupportedAlgorithm, MissingInput,
//     InvalidInputType) не ретраятся никогда
//
// # Масштабирование
//
// Workers масштабируются горизонтально: несколько экземпляров потребляют
// из одной очереди. Один процесс обслуживает ровно одну очередь runtime.
package worker
