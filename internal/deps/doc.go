// Package deps — разрешение внешних зависимостей данных перед выполнением
// алгоритма.
//
// Resolver по имени зависимости выкачивает данные из внешнего API
// (постраничный cursor-цикл, детали — с ограниченной конкурентностью),
// нормализует их и материализует ровно один артефакт по детерминированному
// ключу deps/<snapshotID>/<имя>.json. Запись — перезаписью: повторный вызов
// после частичного сбоя безопасен, идемпотентность обеспечивается ключом.
//
// Сам snapshot resolver'ы не мутируют и собственного состояния не хранят.
//
// Диспетчеризация — закрытый набор известных ключей; нераспознанный ключ —
// дефект программы (fail fast), а не ретраябельная ситуация. Транзиентные
// ошибки I/O ретраит оркестратор целым шагом (LongRunPolicy), поэтому
// внутри resolver'а своего retry-цикла нет.
package deps
