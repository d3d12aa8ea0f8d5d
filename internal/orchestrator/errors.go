package orchestrator

import "errors"

// Ошибки оркестратора.
var (
	// ErrSnapshotNotFound — snapshot не найден в БД.
	ErrSnapshotNotFound = errors.New("snapshot not found")

	// ErrSnapshotAlreadyActive — snapshot уже обрабатывается.
	ErrSnapshotAlreadyActive = errors.New("snapshot already being processed")

	// ErrSnapshotNotQueued — snapshot не в статусе queued.
	ErrSnapshotNotQueued = errors.New("snapshot is not in queued status")

	// ErrCancelled — отмена запрошена и выполнена на границе шага.
	ErrCancelled = errors.New("snapshot cancelled")

	// ErrStaleResult — результат compute пришёл для терминального снапшота
	// или с чужим invocation_id. Результат отбрасывается.
	ErrStaleResult = errors.New("stale compute result")
)
