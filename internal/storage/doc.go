// Package storage — object storage артефактов (MinIO / S3-совместимое).
//
// Адресация детерминированная: <namespace>/<snapshotID>/<artifact-name>.
// Каждый ключ пишет ровно один producer (dependency resolver или
// compute-функция), перезаписью, а не дозаписью — повторное выполнение
// шага после частичного сбоя безопасно. Конкурентные чтения безопасны.
//
// Ограничения content-type и размера — забота storage-слоя развёртывания,
// не этого пакета.
package storage
