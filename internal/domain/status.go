package domain

// SnapshotStatus — статус выполнения snapshot.
//
// Жизненный цикл:
//
//	queued → running → completed
//	                 ↘ failed
//	         (или) → cancelled (из queued или running)
//
// Переходы монотонны: из терминального статуса выхода нет.
type SnapshotStatus string

const (
	// SnapshotQueued — snapshot создан и ожидает оркестрации.
	SnapshotQueued SnapshotStatus = "queued"

	// SnapshotRunning — оркестрация в процессе выполнения.
	SnapshotRunning SnapshotStatus = "running"

	// SnapshotCompleted — алгоритм выполнен, outputs записаны.
	SnapshotCompleted SnapshotStatus = "completed"

	// SnapshotFailed — выполнение завершилось ошибкой (после всех retry).
	SnapshotFailed SnapshotStatus = "failed"

	// SnapshotCancelled — выполнение отменено по запросу.
	SnapshotCancelled SnapshotStatus = "cancelled"
)

// IsValid возвращает true для известного статуса.
func (s SnapshotStatus) IsValid() bool {
	switch s {
	case SnapshotQueued, SnapshotRunning, SnapshotCompleted, SnapshotFailed, SnapshotCancelled:
		return true
	default:
		return false
	}
}

// IsTerminal возвращает true, если статус финальный (snapshot завершён).
func (s SnapshotStatus) IsTerminal() bool {
	switch s {
	case SnapshotCompleted, SnapshotFailed, SnapshotCancelled:
		return true
	default:
		return false
	}
}

// CanCancel возвращает true, если из статуса разрешён переход в cancelled.
// Отмена возможна только из queued или running.
func (s SnapshotStatus) CanCancel() bool {
	return s == SnapshotQueued || s == SnapshotRunning
}
