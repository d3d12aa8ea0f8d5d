package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/savichev/reputa/internal/domain"
	"github.com/savichev/reputa/internal/mq"
	"github.com/savichev/reputa/internal/repo"
	"github.com/savichev/reputa/internal/telemetry"
)

// handleSnapshotQueued обрабатывает событие о новом queued снапшоте.
func (o *Orchestrator) handleSnapshotQueued(ctx context.Context, delivery *mq.Delivery) error {
	payload, err := mq.ParsePayload[mq.SnapshotQueuedPayload](&delivery.Message)
	if err != nil {
		o.logger.Error("failed to parse snapshot.queued payload", "error", err)
		return err
	}

	o.logger.Debug("received snapshot.queued event", "snapshot_id", payload.SnapshotID)

	if o.isActive(payload.SnapshotID) {
		o.logger.Debug("snapshot already active, skipping", "snapshot_id", payload.SnapshotID)
		return nil
	}

	if err := o.processSnapshot(ctx, payload.SnapshotID); err != nil {
		if errors.Is(err, ErrSnapshotNotFound) {
			// Событие обогнало запись в БД — подхватится polling'ом
			o.logger.Debug("snapshot not yet visible", "snapshot_id", payload.SnapshotID)
			return nil
		}
		o.logger.Error("failed to process snapshot",
			"snapshot_id", payload.SnapshotID,
			"error", err,
		)
		return err
	}

	return nil
}

// handleComputeResult обрабатывает durable результат compute-вызова.
//
// Поздний результат — для терминального снапшота или с чужим
// invocation_id — отбрасывается: совершившийся терминальный переход
// (например, отмена) необратим.
func (o *Orchestrator) handleComputeResult(ctx context.Context, delivery *mq.Delivery) error {
	payload, err := mq.ParsePayload[mq.ComputeResultPayload](&delivery.Message)
	if err != nil {
		o.logger.Error("failed to parse compute.result payload", "error", err)
		return err
	}

	logger := telemetry.WithSnapshotID(o.logger, payload.SnapshotID.String())
	logger.Debug("received compute.result event",
		"invocation_id", payload.InvocationID,
		"status", payload.Status,
	)

	if err := o.applyComputeResult(ctx, payload); err != nil {
		// Stale-результат — штатная ситуация, ack без повторной доставки
		if errors.Is(err, ErrStaleResult) {
			telemetry.StaleResults.Inc()
			logger.Info("stale compute result dropped",
				"invocation_id", payload.InvocationID,
				"reason", err,
			)
			return nil
		}
		return err
	}

	return nil
}

// applyComputeResult применяет результат к снапшоту.
// Результат для терминального снапшота или с чужим invocation_id —
// ErrStaleResult: совершившийся терминальный переход необратим.
func (o *Orchestrator) applyComputeResult(ctx context.Context, payload mq.ComputeResultPayload) error {
	snap, err := o.snapshots.GetByID(ctx, payload.SnapshotID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			o.logger.Warn("compute result for unknown snapshot, dropped",
				"snapshot_id", payload.SnapshotID)
			return nil
		}
		return fmt.Errorf("get snapshot: %w", err)
	}

	if snap.Status.IsTerminal() {
		return fmt.Errorf("%w: snapshot is %s", ErrStaleResult, snap.Status)
	}

	if snap.ExecutionRef == nil || snap.ExecutionRef.InvocationID != payload.InvocationID {
		return fmt.Errorf("%w: invocation mismatch", ErrStaleResult)
	}

	if payload.Status == mq.ResultStatusSucceeded {
		return o.completeSnapshot(ctx, snap, payload.Outputs)
	}

	failure := domain.NewFailure(domain.FailureCompute, "compute invocation failed",
		"invocation_id", payload.InvocationID.String())
	if payload.Failure != nil {
		failure = *payload.Failure
	}
	return o.failSnapshot(ctx, snap.ID, failure)
}

// handleSnapshotCancel обрабатывает запрос отмены снапшота.
//
// Отмена разрешена из queued и running; терминальный snapshot не
// трогается. Конвейер, не видевший события, заметит флаг отмены на
// ближайшей границе шага.
func (o *Orchestrator) handleSnapshotCancel(ctx context.Context, delivery *mq.Delivery) error {
	payload, err := mq.ParsePayload[mq.SnapshotCancelPayload](&delivery.Message)
	if err != nil {
		o.logger.Error("failed to parse snapshot.cancel payload", "error", err)
		return err
	}

	o.logger.Debug("received snapshot.cancel event", "snapshot_id", payload.SnapshotID)

	snap, err := o.snapshots.GetByID(ctx, payload.SnapshotID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			o.logger.Warn("cancel for unknown snapshot, dropped",
				"snapshot_id", payload.SnapshotID)
			return nil
		}
		return fmt.Errorf("get snapshot: %w", err)
	}

	if snap.Status.IsTerminal() {
		// Отмена терминального снапшота — no-op
		return nil
	}

	// Guarded-переход разрешён из queued и running. Поздний результат
	// уже отправленного вызова будет отброшен как stale.
	return o.cancelSnapshot(ctx, snap.ID)
}

// completeSnapshot переводит snapshot в completed с результатами.
// Outputs и статус записываются одной операцией персистентности.
func (o *Orchestrator) completeSnapshot(ctx context.Context, snap *domain.Snapshot, outputs map[string]any) error {
	err := o.persist(ctx, func(ctx context.Context) error {
		return o.snapshots.MarkCompleted(ctx, snap.ID, outputs)
	})
	if err != nil {
		if errors.Is(err, repo.ErrInvalidState) {
			// Snapshot успел стать терминальным между чтением и записью
			return fmt.Errorf("%w: snapshot became terminal", ErrStaleResult)
		}
		return fmt.Errorf("mark completed: %w", err)
	}

	telemetry.SnapshotsFinished.WithLabelValues(string(domain.SnapshotCompleted)).Inc()
	o.logger.Info("snapshot completed",
		"snapshot_id", snap.ID,
		"outputs", len(outputs),
	)
	return nil
}
