package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/savichev/reputa/internal/deps"
	"github.com/savichev/reputa/internal/domain"
	"github.com/savichev/reputa/internal/mq"
	"github.com/savichev/reputa/internal/registry"
	"github.com/savichev/reputa/internal/repo"
	"github.com/savichev/reputa/internal/routing"
	"github.com/savichev/reputa/internal/telemetry"
)

// processSnapshot ведёт snapshot по конвейеру оркестрации.
//
// Метод идемпотентен относительно дубликатов событий: терминальный snapshot
// — no-op, queued снапшот берётся guarded-переходом в running (второй
// вызов перехода получит ErrInvalidState и выйдет), running snapshot с
// отправленным вызовом просто ждёт результата.
func (o *Orchestrator) processSnapshot(ctx context.Context, id uuid.UUID) error {
	if err := o.addActive(id); err != nil {
		return nil
	}
	defer o.removeActive(id)

	snap, err := o.snapshots.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrSnapshotNotFound, id)
		}
		return fmt.Errorf("get snapshot: %w", err)
	}

	if snap.Status.IsTerminal() {
		return nil
	}

	if snap.CancelRequested {
		return o.cancelSnapshot(ctx, snap.ID)
	}

	switch snap.Status {
	case domain.SnapshotQueued:
		if err := o.persist(ctx, func(ctx context.Context) error {
			return o.snapshots.MarkRunning(ctx, snap.ID)
		}); err != nil {
			if errors.Is(err, repo.ErrInvalidState) {
				// Кто-то уже взял snapshot в работу
				return nil
			}
			return fmt.Errorf("mark running: %w", err)
		}
		telemetry.SnapshotsStarted.Inc()
		snap.MarkRunning()

	case domain.SnapshotRunning:
		if snap.ExecutionRef != nil {
			// Вызов в полёте — ждём durable результата из compute.results
			o.logger.Debug("snapshot has in-flight invocation",
				"snapshot_id", snap.ID,
				"invocation_id", snap.ExecutionRef.InvocationID,
			)
			return nil
		}
		// Рестарт до отправки вызова: повторяем конвейер с разрешения
		// определения. Материализация зависимостей идемпотентна.

	default:
		return fmt.Errorf("%w: %s is %s", ErrSnapshotNotQueued, snap.ID, snap.Status)
	}

	return o.runPipeline(ctx, snap)
}

// runPipeline выполняет шаги конвейера для running снапшота:
// разрешение определения → зависимости → маршрутизация → compute-вызов.
func (o *Orchestrator) runPipeline(ctx context.Context, snap *domain.Snapshot) error {
	logger := telemetry.WithSnapshotID(o.logger, snap.ID.String())

	// 1. Разрешение определения алгоритма. Ошибки дефиниционные —
	// одна попытка (LookupPolicy), сразу терминальный failed.
	lookupCtx, cancel := context.WithTimeout(ctx, domain.LookupPolicy.Timeout)
	def, err := o.resolveDefinition(lookupCtx, snap)
	cancel()
	if err != nil {
		return o.failSnapshot(ctx, snap.ID, classify(err, snap))
	}

	logger = telemetry.WithAlgorithm(logger, def.Key, def.Version)
	logger.Info("algorithm resolved", "runtime", def.Runtime)

	// 2. Граница шага: кооперативная отмена.
	if cancelled, err := o.cancelIfRequested(ctx, snap.ID); err != nil || cancelled {
		return err
	}

	// 3. Материализация зависимостей данных, по одной, в порядке объявления.
	for _, dep := range def.Dependencies {
		if err := o.resolveDependency(ctx, snap, dep); err != nil {
			if errors.Is(err, ErrCancelled) {
				return nil
			}
			return o.failSnapshot(ctx, snap.ID, domain.NewFailure(
				domain.FailureDependency,
				fmt.Sprintf("dependency %s: %v", dep, err),
				"dependency", dep,
				"algorithm_key", def.Key,
			))
		}
		logger.Info("dependency materialized", "dependency", dep)
	}

	// 4. Граница шага: кооперативная отмена.
	if cancelled, err := o.cancelIfRequested(ctx, snap.ID); err != nil || cancelled {
		return err
	}

	// 5. Маршрутизация runtime → очередь. Overrides заморожены на snapshot
	// при создании: возобновлённая оркестрация маршрутизируется идентично.
	queue, err := routing.RouteQueue(def.Runtime, snap.Overrides())
	if err != nil {
		return o.failSnapshot(ctx, snap.ID, classify(err, snap))
	}

	// 6. Отправка compute-вызова. ExecutionRef персистится до публикации:
	// после рестарта по его наличию видно, что вызов мог уйти в очередь.
	if o.publisher == nil {
		return o.failSnapshot(ctx, snap.ID, domain.NewFailure(
			domain.FailureInternal,
			"compute dispatch unavailable: no message broker connection",
			"queue", queue,
		))
	}

	ref := domain.ExecutionRef{
		InvocationID: uuid.New(),
		Queue:        queue,
		Attempt:      1,
	}
	if err := o.persist(ctx, func(ctx context.Context) error {
		return o.snapshots.SetExecutionRef(ctx, snap.ID, ref)
	}); err != nil {
		if errors.Is(err, repo.ErrInvalidState) {
			// Snapshot успели отменить — вызов не отправляем
			return nil
		}
		return fmt.Errorf("set execution ref: %w", err)
	}

	if err := o.publisher.PublishComputeInvoke(ctx, queue, mq.ComputeInvokePayload{
		SnapshotID:   snap.ID,
		InvocationID: ref.InvocationID,
		Attempt:      ref.Attempt,
	}); err != nil {
		return o.failSnapshot(ctx, snap.ID, domain.NewFailure(
			domain.FailureInternal,
			fmt.Sprintf("publish compute invoke: %v", err),
			"queue", queue,
		))
	}

	telemetry.ComputeInvocations.WithLabelValues(queue).Inc()
	logger.Info("compute invocation dispatched",
		"invocation_id", ref.InvocationID,
		"queue", queue,
	)
	return nil
}

// resolveDefinition разрешает замороженный пресет в определение алгоритма.
func (o *Orchestrator) resolveDefinition(ctx context.Context, snap *domain.Snapshot) (domain.AlgorithmDefinition, error) {
	if err := ctx.Err(); err != nil {
		return domain.AlgorithmDefinition{}, err
	}
	return o.registry.Resolve(snap.Preset.Key, snap.Preset.Version)
}

// resolveDependency материализует одну зависимость с retry по LongRunPolicy.
// Между попытками проверяется флаг отмены: исчерпание retry терминально.
func (o *Orchestrator) resolveDependency(ctx context.Context, snap *domain.Snapshot, dep string) error {
	policy := domain.LongRunPolicy

	var lastErr error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		if attempt > 1 {
			if cancelled, err := o.cancelIfRequested(ctx, snap.ID); err != nil {
				return err
			} else if cancelled {
				return ErrCancelled
			}

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(policy.Delay(attempt - 1)):
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, policy.Timeout)
		started := time.Now()
		lastErr = o.deps.Resolve(attemptCtx, dep, snap.ID.String())
		cancel()

		telemetry.DependencyResolveDuration.WithLabelValues(dep).
			Observe(time.Since(started).Seconds())

		if lastErr == nil {
			return nil
		}
		// Неизвестный ключ зависимости — дефект определения алгоритма,
		// retry не поможет: терминальный failed с первой попытки.
		if errors.Is(lastErr, deps.ErrUnknownDependency) {
			return lastErr
		}
		if ctx.Err() != nil {
			return lastErr
		}

		o.logger.Warn("dependency resolve attempt failed",
			"snapshot_id", snap.ID,
			"dependency", dep,
			"attempt", attempt,
			"max_attempts", policy.MaxAttempts,
			"error", lastErr,
		)
	}

	return lastErr
}

// cancelIfRequested проверяет флаг отмены на границе шага.
// Возвращает true, если snapshot был отменён.
func (o *Orchestrator) cancelIfRequested(ctx context.Context, id uuid.UUID) (bool, error) {
	snap, err := o.snapshots.GetByID(ctx, id)
	if err != nil {
		return false, fmt.Errorf("refresh snapshot: %w", err)
	}

	if !snap.CancelRequested || snap.Status.IsTerminal() {
		return false, nil
	}

	if err := o.cancelSnapshot(ctx, id); err != nil {
		return false, err
	}
	return true, nil
}

// cancelSnapshot переводит snapshot в cancelled.
func (o *Orchestrator) cancelSnapshot(ctx context.Context, id uuid.UUID) error {
	err := o.persist(ctx, func(ctx context.Context) error {
		return o.snapshots.MarkCancelled(ctx, id)
	})
	if err != nil {
		if errors.Is(err, repo.ErrInvalidState) {
			// Уже терминален — отменять нечего
			return nil
		}
		return fmt.Errorf("mark cancelled: %w", err)
	}

	telemetry.SnapshotsFinished.WithLabelValues(string(domain.SnapshotCancelled)).Inc()
	o.logger.Info("snapshot cancelled", "snapshot_id", id)
	return nil
}

// failSnapshot переводит snapshot в failed с записью классифицированной
// ошибки. Промежуточные (ретраенные) ошибки сюда не попадают — только
// итоговая.
func (o *Orchestrator) failSnapshot(ctx context.Context, id uuid.UUID, failure domain.Failure) error {
	err := o.persist(ctx, func(ctx context.Context) error {
		return o.snapshots.MarkFailed(ctx, id, failure)
	})
	if err != nil {
		if errors.Is(err, repo.ErrInvalidState) {
			o.logger.Debug("snapshot already terminal, failure dropped",
				"snapshot_id", id,
				"kind", failure.Kind,
			)
			return nil
		}
		return fmt.Errorf("mark failed: %w", err)
	}

	telemetry.SnapshotsFinished.WithLabelValues(string(domain.SnapshotFailed)).Inc()
	o.logger.Warn("snapshot failed",
		"snapshot_id", id,
		"kind", failure.Kind,
		"message", failure.Message,
	)
	return nil
}

// persist выполняет операцию персистентности с retry по PersistPolicy.
// ErrInvalidState и ErrNotFound не ретраятся: это ответ, а не сбой.
func (o *Orchestrator) persist(ctx context.Context, fn func(ctx context.Context) error) error {
	policy := domain.PersistPolicy

	var lastErr error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return lastErr
			case <-time.After(policy.Delay(attempt - 1)):
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, policy.Timeout)
		lastErr = fn(attemptCtx)
		cancel()

		if lastErr == nil ||
			errors.Is(lastErr, repo.ErrInvalidState) ||
			errors.Is(lastErr, repo.ErrNotFound) {
			return lastErr
		}
	}
	return lastErr
}

// classify сопоставляет ошибку конвейера с FailureKind для записи на snapshot.
func classify(err error, snap *domain.Snapshot) domain.Failure {
	key := snap.Preset.Key
	version := snap.Preset.Version

	switch {
	case errors.Is(err, registry.ErrKeyNotFound):
		return domain.NewFailure(domain.FailureKeyNotFound, err.Error(),
			"algorithm_key", key)

	case errors.Is(err, registry.ErrVersionNotFound):
		return domain.NewFailure(domain.FailureVersionNotFound, err.Error(),
			"algorithm_key", key, "algorithm_version", version)

	case errors.Is(err, routing.ErrUnsupportedRuntime):
		return domain.NewFailure(domain.FailureUnsupportedRuntime, err.Error(),
			"algorithm_key", key)

	default:
		return domain.NewFailure(domain.FailureInternal, err.Error(),
			"algorithm_key", key)
	}
}
