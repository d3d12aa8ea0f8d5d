package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/savichev/reputa/internal/domain"
)

// SnapshotRepo — репозиторий для работы со снапшотами.
//
// Переходы статуса выполняются guarded UPDATE'ами с условием на текущий
// статус: переход в терминальное состояние из уже терминального вернёт
// ноль затронутых строк и ErrInvalidState. Так поздний результат compute
// для отменённого или упавшего снапшота отбрасывается на уровне БД.
type SnapshotRepo struct {
	pool *pgxpool.Pool
}

// NewSnapshotRepo создаёт новый SnapshotRepo.
func NewSnapshotRepo(pool *pgxpool.Pool) *SnapshotRepo {
	return &SnapshotRepo{pool: pool}
}

const snapshotColumns = `id, status, preset, queue_overrides, execution_ref, outputs, failure,
       cancel_requested, created_at, updated_at`

// Create создаёт новый snapshot.
// QueueOverrides замораживаются вместе с пресетом: после создания
// маршрутизация снапшота не зависит от конфигурации процессов.
func (r *SnapshotRepo) Create(ctx context.Context, snap *domain.Snapshot) error {
	presetJSON, err := json.Marshal(snap.Preset)
	if err != nil {
		return fmt.Errorf("marshal preset: %w", err)
	}

	var overridesJSON []byte
	if snap.QueueOverrides != nil {
		overridesJSON, err = json.Marshal(snap.QueueOverrides)
		if err != nil {
			return fmt.Errorf("marshal queue overrides: %w", err)
		}
	}

	query := `
		INSERT INTO snapshots (id, status, preset, queue_overrides, cancel_requested, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = r.pool.Exec(ctx, query,
		snap.ID,
		snap.Status,
		presetJSON,
		overridesJSON,
		snap.CancelRequested,
		snap.CreatedAt,
		snap.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

// GetByID возвращает snapshot по ID.
func (r *SnapshotRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Snapshot, error) {
	query := `SELECT ` + snapshotColumns + ` FROM snapshots WHERE id = $1`
	return scanSnapshot(r.pool.QueryRow(ctx, query, id))
}

// List возвращает список снапшотов с фильтрацией.
func (r *SnapshotRepo) List(ctx context.Context, filter SnapshotFilter) ([]domain.Snapshot, error) {
	query := `
		SELECT ` + snapshotColumns + `
		FROM snapshots
		WHERE ($1::text IS NULL OR status = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.pool.Query(ctx, query,
		nullString(string(filter.Status)),
		filter.Limit,
		filter.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	return collectSnapshots(rows)
}

// ListQueued возвращает снапшоты в статусе queued (старые первыми).
// Используется polling-фолбэком оркестратора.
func (r *SnapshotRepo) ListQueued(ctx context.Context, limit int) ([]domain.Snapshot, error) {
	query := `
		SELECT ` + snapshotColumns + `
		FROM snapshots
		WHERE status = 'queued'
		ORDER BY created_at ASC
		LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list queued snapshots: %w", err)
	}
	defer rows.Close()

	return collectSnapshots(rows)
}

// ListRunning возвращает снапшоты в статусе running.
// Используется при рестарте оркестратора для возобновления работы.
func (r *SnapshotRepo) ListRunning(ctx context.Context, limit int) ([]domain.Snapshot, error) {
	query := `
		SELECT ` + snapshotColumns + `
		FROM snapshots
		WHERE status = 'running'
		ORDER BY created_at ASC
		LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list running snapshots: %w", err)
	}
	defer rows.Close()

	return collectSnapshots(rows)
}

// MarkRunning переводит snapshot из queued в running.
func (r *SnapshotRepo) MarkRunning(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE snapshots
		SET status = 'running', updated_at = $2
		WHERE id = $1 AND status = 'queued'
	`
	return r.guardedExec(ctx, query, id, time.Now())
}

// SetExecutionRef записывает ссылку на отправленный compute-вызов.
// Ссылка записывается до публикации вызова: после рестарта оркестратор
// по её наличию отличает "вызов уже в полёте" от "вызов ещё не отправлен".
func (r *SnapshotRepo) SetExecutionRef(ctx context.Context, id uuid.UUID, ref domain.ExecutionRef) error {
	refJSON, err := json.Marshal(ref)
	if err != nil {
		return fmt.Errorf("marshal execution ref: %w", err)
	}

	query := `
		UPDATE snapshots
		SET execution_ref = $2, updated_at = $3
		WHERE id = $1 AND status = 'running'
	`
	return r.guardedExec(ctx, query, id, refJSON, time.Now())
}

// MarkCompleted переводит snapshot из running в completed.
// Outputs и статус записываются одним UPDATE: частично завершённого
// снапшота не существует ни в один момент времени.
func (r *SnapshotRepo) MarkCompleted(ctx context.Context, id uuid.UUID, outputs map[string]any) error {
	outputsJSON, err := json.Marshal(outputs)
	if err != nil {
		return fmt.Errorf("marshal outputs: %w", err)
	}

	query := `
		UPDATE snapshots
		SET status = 'completed', outputs = $2, updated_at = $3
		WHERE id = $1 AND status = 'running'
	`
	return r.guardedExec(ctx, query, id, outputsJSON, time.Now())
}

// MarkFailed переводит snapshot в failed с записью ошибки.
func (r *SnapshotRepo) MarkFailed(ctx context.Context, id uuid.UUID, failure domain.Failure) error {
	failureJSON, err := json.Marshal(failure)
	if err != nil {
		return fmt.Errorf("marshal failure: %w", err)
	}

	query := `
		UPDATE snapshots
		SET status = 'failed', failure = $2, updated_at = $3
		WHERE id = $1 AND status IN ('queued', 'running')
	`
	return r.guardedExec(ctx, query, id, failureJSON, time.Now())
}

// MarkCancelled переводит snapshot в cancelled.
func (r *SnapshotRepo) MarkCancelled(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE snapshots
		SET status = 'cancelled', updated_at = $2
		WHERE id = $1 AND status IN ('queued', 'running')
	`
	return r.guardedExec(ctx, query, id, time.Now())
}

// RequestCancel выставляет флаг отмены.
// Для терминального снапшота флаг не выставляется — ErrInvalidState.
func (r *SnapshotRepo) RequestCancel(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE snapshots
		SET cancel_requested = TRUE, updated_at = $2
		WHERE id = $1 AND status IN ('queued', 'running')
	`
	return r.guardedExec(ctx, query, id, time.Now())
}

// guardedExec выполняет UPDATE с условием на статус.
// Ноль затронутых строк: либо snapshot не существует, либо он уже не в
// том статусе, из которого разрешён переход.
func (r *SnapshotRepo) guardedExec(ctx context.Context, query string, id uuid.UUID, args ...any) error {
	result, err := r.pool.Exec(ctx, query, append([]any{id}, args...)...)
	if err != nil {
		return fmt.Errorf("update snapshot: %w", err)
	}
	if result.RowsAffected() == 0 {
		var exists bool
		if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM snapshots WHERE id = $1)`, id).Scan(&exists); err != nil {
			return fmt.Errorf("check snapshot exists: %w", err)
		}
		if !exists {
			return ErrNotFound
		}
		return ErrInvalidState
	}
	return nil
}

// --- Helpers ---

// SnapshotFilter — параметры фильтрации снапшотов.
type SnapshotFilter struct {
	Status domain.SnapshotStatus
	Limit  int
	Offset int
}

// scanSnapshot сканирует одну строку в Snapshot.
func scanSnapshot(row pgx.Row) (*domain.Snapshot, error) {
	var snap domain.Snapshot
	var presetJSON, overridesJSON, refJSON, outputsJSON, failureJSON []byte

	err := row.Scan(
		&snap.ID,
		&snap.Status,
		&presetJSON,
		&overridesJSON,
		&refJSON,
		&outputsJSON,
		&failureJSON,
		&snap.CancelRequested,
		&snap.CreatedAt,
		&snap.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan snapshot: %w", err)
	}

	if err := json.Unmarshal(presetJSON, &snap.Preset); err != nil {
		return nil, fmt.Errorf("unmarshal preset: %w", err)
	}
	if overridesJSON != nil {
		if err := json.Unmarshal(overridesJSON, &snap.QueueOverrides); err != nil {
			return nil, fmt.Errorf("unmarshal queue overrides: %w", err)
		}
	}
	if refJSON != nil {
		if err := json.Unmarshal(refJSON, &snap.ExecutionRef); err != nil {
			return nil, fmt.Errorf("unmarshal execution ref: %w", err)
		}
	}
	if outputsJSON != nil {
		if err := json.Unmarshal(outputsJSON, &snap.Outputs); err != nil {
			return nil, fmt.Errorf("unmarshal outputs: %w", err)
		}
	}
	if failureJSON != nil {
		if err := json.Unmarshal(failureJSON, &snap.Failure); err != nil {
			return nil, fmt.Errorf("unmarshal failure: %w", err)
		}
	}

	return &snap, nil
}

// collectSnapshots сканирует все строки результата.
func collectSnapshots(rows pgx.Rows) ([]domain.Snapshot, error) {
	var snaps []domain.Snapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, *snap)
	}
	return snaps, rows.Err()
}

// nullString возвращает nil для пустой строки (для NULL в БД).
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
