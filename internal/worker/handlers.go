package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/savichev/reputa/internal/compute"
	"github.com/savichev/reputa/internal/domain"
	"github.com/savichev/reputa/internal/mq"
	"github.com/savichev/reputa/internal/registry"
	"github.com/savichev/reputa/internal/repo"
	"github.com/savichev/reputa/internal/telemetry"
)

// handleComputeInvoke обрабатывает один compute-вызов из очереди.
func (w *Worker) handleComputeInvoke(ctx context.Context, delivery *mq.Delivery) error {
	payload, err := mq.ParsePayload[mq.ComputeInvokePayload](&delivery.Message)
	if err != nil {
		w.logger.Error("failed to parse compute.invoke payload", "error", err)
		return err
	}

	logger := telemetry.WithSnapshotID(w.logger, payload.SnapshotID.String())
	logger.Debug("received compute.invoke event", "invocation_id", payload.InvocationID)

	if err := w.processInvoke(ctx, payload); err != nil {
		// Ожидаемые ситуации — ack без повторной доставки
		if errors.Is(err, ErrSnapshotNotFound) || errors.Is(err, ErrStaleInvocation) {
			logger.Debug("invocation not processed", "reason", err)
			return nil
		}
		logger.Error("failed to process invocation", "error", err)
		return err
	}

	return nil
}

// processInvoke выполняет алгоритм и публикует durable результат.
func (w *Worker) processInvoke(ctx context.Context, payload mq.ComputeInvokePayload) error {
	snap, err := w.snapshots.GetByID(ctx, payload.SnapshotID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrSnapshotNotFound, payload.SnapshotID)
		}
		return fmt.Errorf("get snapshot: %w", err)
	}

	// Вызов валиден, только пока snapshot ждёт именно его
	if snap.Status.IsTerminal() {
		return fmt.Errorf("%w: snapshot is %s", ErrStaleInvocation, snap.Status)
	}
	if snap.ExecutionRef == nil || snap.ExecutionRef.InvocationID != payload.InvocationID {
		return fmt.Errorf("%w: invocation mismatch", ErrStaleInvocation)
	}

	logger := telemetry.WithAlgorithm(
		telemetry.WithSnapshotID(w.logger, snap.ID.String()),
		snap.Preset.Key, snap.Preset.Version,
	)
	logger.Info("compute invocation started", "invocation_id", payload.InvocationID)

	started := time.Now()
	result, execErr := w.executeWithRetry(ctx, snap)
	telemetry.ComputeDuration.WithLabelValues(snap.Preset.Key).
		Observe(time.Since(started).Seconds())

	if execErr == nil {
		logger.Info("compute invocation succeeded",
			"invocation_id", payload.InvocationID,
			"duration", time.Since(started),
		)
		return w.publishResult(ctx, mq.ComputeResultPayload{
			SnapshotID:   snap.ID,
			InvocationID: payload.InvocationID,
			Status:       mq.ResultStatusSucceeded,
			Outputs:      result.Outputs,
			Attempt:      payload.Attempt,
		})
	}

	failure := classifyComputeError(execErr, snap)
	logger.Warn("compute invocation failed",
		"invocation_id", payload.InvocationID,
		"kind", failure.Kind,
		"error", execErr,
	)
	return w.publishResult(ctx, mq.ComputeResultPayload{
		SnapshotID:   snap.ID,
		InvocationID: payload.InvocationID,
		Status:       mq.ResultStatusFailed,
		Failure:      &failure,
		Attempt:      payload.Attempt,
	})
}

// executeWithRetry выполняет алгоритм с retry по LongRunPolicy.
//
// Ретраятся только реализации, объявленные идемпотентными: для остальных
// первая же ошибка терминальна. Дефиниционные ошибки (нет реализации,
// невалидные входы) не ретраятся никогда.
func (w *Worker) executeWithRetry(ctx context.Context, snap *domain.Snapshot) (*compute.Result, error) {
	policy := domain.LongRunPolicy

	maxAttempts := 1
	if def, err := w.registry.Resolve(snap.Preset.Key, snap.Preset.Version); err == nil && def.Idempotent {
		maxAttempts = policy.MaxAttempts
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(policy.Delay(attempt - 1)):
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, policy.Timeout)
		result, err := w.dispatcher.Dispatch(attemptCtx, snap)
		cancel()

		if err == nil {
			return result, nil
		}
		lastErr = err

		if !retryable(err) || ctx.Err() != nil {
			return nil, lastErr
		}

		w.logger.Warn("compute attempt failed",
			"snapshot_id", snap.ID,
			"attempt", attempt,
			"max_attempts", maxAttempts,
			"error", err,
		)
	}

	if maxAttempts > 1 {
		return nil, fmt.Errorf("%w: %v", ErrRetryExhausted, lastErr)
	}
	return nil, lastErr
}

// retryable возвращает false для дефиниционных ошибок вычисления.
// Registry-промахи тоже дефиниционные: таблица определений неизменяема
// на время жизни процесса, повторная попытка даст тот же ответ.
func retryable(err error) bool {
	switch {
	case errors.Is(err, compute.ErrUnsupportedAlgorithm),
		errors.Is(err, compute.ErrMissingInput),
		errors.Is(err, compute.ErrInvalidInputType),
		errors.Is(err, registry.ErrKeyNotFound),
		errors.Is(err, registry.ErrVersionNotFound):
		return false
	default:
		return true
	}
}

// publishResult публикует durable результат вычисления.
func (w *Worker) publishResult(ctx context.Context, payload mq.ComputeResultPayload) error {
	if err := w.publisher.PublishComputeResult(ctx, payload); err != nil {
		// Nack вернёт вызов в очередь: повторная доставка безопасна,
		// stale-вызовы отфильтрует processInvoke
		return fmt.Errorf("publish compute result: %w", err)
	}
	return nil
}

// classifyComputeError сопоставляет ошибку выполнения с FailureKind.
func classifyComputeError(err error, snap *domain.Snapshot) domain.Failure {
	key := snap.Preset.Key

	switch {
	case errors.Is(err, compute.ErrUnsupportedAlgorithm):
		return domain.NewFailure(domain.FailureUnsupportedAlgorithm, err.Error(),
			"algorithm_key", key)

	case errors.Is(err, compute.ErrMissingInput):
		return domain.NewFailure(domain.FailureMissingInput, err.Error(),
			"algorithm_key", key)

	case errors.Is(err, compute.ErrInvalidInputType):
		return domain.NewFailure(domain.FailureInvalidInputType, err.Error(),
			"algorithm_key", key)

	// Registry воркера отстал от registry оркестратора (деплойный skew):
	// на снапшоте должен быть различимый kind, а не общий ComputeFailed
	case errors.Is(err, registry.ErrKeyNotFound):
		return domain.NewFailure(domain.FailureKeyNotFound, err.Error(),
			"algorithm_key", key)

	case errors.Is(err, registry.ErrVersionNotFound):
		return domain.NewFailure(domain.FailureVersionNotFound, err.Error(),
			"algorithm_key", key, "algorithm_version", snap.Preset.Version)

	default:
		return domain.NewFailure(domain.FailureCompute, err.Error(),
			"algorithm_key", key)
	}
}
