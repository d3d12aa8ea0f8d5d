package worker

import "errors"

// Ошибки воркера.
var (
	// ErrSnapshotNotFound — snapshot вызова не найден в БД.
	ErrSnapshotNotFound = errors.New("snapshot not found")

	// ErrStaleInvocation — вызов не соответствует текущему состоянию
	// снапшота (терминален или ExecutionRef указывает на другой вызов).
	ErrStaleInvocation = errors.New("stale invocation")

	// ErrRetryExhausted — все попытки выполнения исчерпаны.
	ErrRetryExhausted = errors.New("retry attempts exhausted")
)
