// Package registry разрешает (key, version) в неизменяемое определение
// алгоритма.
//
// Таблица определений строится один раз при старте процесса и после этого
// не меняется — конкурентные чтения безопасны без синхронизации.
// Resolve — чистый lookup без побочных эффектов.
//
// Порядок версий — semantic versioning: major, затем minor, затем patch
// численно; версия с prerelease сортируется строго ниже той же
// major.minor.patch без prerelease; build-метаданные на порядок не влияют.
package registry
