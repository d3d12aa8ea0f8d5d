package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/savichev/reputa/internal/domain"
	"github.com/savichev/reputa/internal/mq"
)

// Default configuration values.
const (
	defaultPollInterval = 10 * time.Second
	defaultBatchSize    = 100
)

// snapshotStore — персистентность снапшотов, которую использует оркестратор.
// Реализуется repo.SnapshotRepo; в тестах подменяется fixture-хранилищем.
type snapshotStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Snapshot, error)
	ListQueued(ctx context.Context, limit int) ([]domain.Snapshot, error)
	ListRunning(ctx context.Context, limit int) ([]domain.Snapshot, error)
	MarkRunning(ctx context.Context, id uuid.UUID) error
	SetExecutionRef(ctx context.Context, id uuid.UUID, ref domain.ExecutionRef) error
	MarkCompleted(ctx context.Context, id uuid.UUID, outputs map[string]any) error
	MarkFailed(ctx context.Context, id uuid.UUID, failure domain.Failure) error
	MarkCancelled(ctx context.Context, id uuid.UUID) error
}

// algorithmSource — разрешение определений алгоритмов.
// Реализуется registry.Registry.
type algorithmSource interface {
	Resolve(key, version string) (domain.AlgorithmDefinition, error)
}

// dependencySet — материализация зависимостей данных.
// Реализуется deps.Set.
type dependencySet interface {
	Resolve(ctx context.Context, key, snapshotID string) error
}

// computePublisher — отправка compute-вызовов в очередь runtime.
// Реализуется mq.Publisher; nil в polling-only режиме недопустим —
// без брокера снапшоты падают с Internal на шаге dispatch.
type computePublisher interface {
	PublishComputeInvoke(ctx context.Context, queue string, payload mq.ComputeInvokePayload) error
}

// Orchestrator выполняет жизненный цикл снапшотов.
//
// Orchestrator — единственный компонент, который мутирует статус и outputs
// снапшота. Он:
//   - Получает новые снапшоты из очереди RabbitMQ (event-driven)
//   - Периодически проверяет queued снапшоты в БД (polling fallback)
//   - Разрешает определение алгоритма и очередь runtime
//   - Материализует зависимости данных
//   - Отправляет compute-вызов и финализирует снапшот по его результату
type Orchestrator struct {
	snapshots snapshotStore
	registry  algorithmSource
	deps      dependencySet
	publisher computePublisher

	conn *mq.Connection

	// Активные снапшоты — обрабатываются прямо сейчас этим процессом.
	active map[uuid.UUID]struct{}
	mu     sync.Mutex

	queuedConsumer *mq.Consumer
	resultConsumer *mq.Consumer
	cancelConsumer *mq.Consumer

	pollInterval time.Duration
	batchSize    int

	logger     *slog.Logger
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// Config — конфигурация Orchestrator.
type Config struct {
	Snapshots snapshotStore
	Registry  algorithmSource
	Deps      dependencySet
	Publisher computePublisher

	// Conn — соединение с RabbitMQ. Nil — polling-only режим.
	Conn *mq.Connection

	// Polling configuration
	PollInterval time.Duration // интервал polling (default: 10s)
	BatchSize    int           // количество снапшотов за один poll (default: 100)

	Logger *slog.Logger
}

// New создаёт новый Orchestrator.
func New(cfg Config) *Orchestrator {
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Orchestrator{
		snapshots:    cfg.Snapshots,
		registry:     cfg.Registry,
		deps:         cfg.Deps,
		publisher:    cfg.Publisher,
		conn:         cfg.Conn,
		active:       make(map[uuid.UUID]struct{}),
		pollInterval: pollInterval,
		batchSize:    batchSize,
		logger:       logger,
	}
}

// Start запускает Orchestrator.
//
// Запускает:
//   - Consumer для snapshots.queued
//   - Consumer для compute.results
//   - Consumer для snapshots.cancel
//   - Polling горутину для fallback
//   - Возобновление running снапшотов, переживших рестарт
func (o *Orchestrator) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	o.cancelFunc = cancel

	o.logger.Info("starting orchestrator",
		"poll_interval", o.pollInterval,
		"batch_size", o.batchSize,
	)

	if o.conn != nil {
		o.queuedConsumer = mq.NewConsumer(o.conn, o.logger, mq.ConsumerConfig{
			Queue:    string(mq.QueueSnapshotsQueued),
			Handler:  o.handleSnapshotQueued,
			Prefetch: 10,
		})
		o.resultConsumer = mq.NewConsumer(o.conn, o.logger, mq.ConsumerConfig{
			Queue:    string(mq.QueueComputeResults),
			Handler:  o.handleComputeResult,
			Prefetch: 10,
		})
		o.cancelConsumer = mq.NewConsumer(o.conn, o.logger, mq.ConsumerConfig{
			Queue:    string(mq.QueueSnapshotsCancel),
			Handler:  o.handleSnapshotCancel,
			Prefetch: 10,
		})

		for _, c := range []*mq.Consumer{o.queuedConsumer, o.resultConsumer, o.cancelConsumer} {
			o.wg.Add(1)
			go func() {
				defer o.wg.Done()
				if err := c.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
					o.logger.Error("consumer error", "error", err)
				}
			}()
		}
	}

	// Возобновляем снапшоты, оставшиеся в running после рестарта
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.resume(ctx)
	}()

	// Polling fallback
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.pollLoop(ctx)
	}()

	o.logger.Info("orchestrator started")
	return nil
}

// Stop останавливает Orchestrator.
func (o *Orchestrator) Stop() {
	o.logger.Info("stopping orchestrator...")

	if o.cancelFunc != nil {
		o.cancelFunc()
	}

	for _, c := range []*mq.Consumer{o.queuedConsumer, o.resultConsumer, o.cancelConsumer} {
		if c != nil {
			c.Stop()
		}
	}

	o.wg.Wait()

	o.logger.Info("orchestrator stopped")
}

// resume подхватывает снапшоты, оставшиеся в running после рестарта.
//
// Снапшот с записанным ExecutionRef не трогаем: вызов уже в полёте, его
// durable-результат придёт через compute.results. Снапшот без ExecutionRef
// перезапускается с разрешения определения — зависимости идемпотентны,
// повторная материализация безопасна.
func (o *Orchestrator) resume(ctx context.Context) {
	running, err := o.snapshots.ListRunning(ctx, o.batchSize)
	if err != nil {
		o.logger.Error("failed to list running snapshots", "error", err)
		return
	}

	for i := range running {
		snap := &running[i]
		if snap.ExecutionRef != nil {
			o.logger.Info("snapshot awaiting in-flight compute result",
				"snapshot_id", snap.ID,
				"invocation_id", snap.ExecutionRef.InvocationID,
			)
			continue
		}

		if err := o.processSnapshot(ctx, snap.ID); err != nil {
			o.logger.Error("failed to resume snapshot",
				"snapshot_id", snap.ID,
				"error", err,
			)
		}
	}
}

// pollLoop — цикл polling для fallback.
func (o *Orchestrator) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(o.pollInterval)
	defer ticker.Stop()

	// Первый poll сразу при старте (подхватываем снапшоты, созданные пока были выключены)
	o.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.poll(ctx)
		}
	}
}

// poll выполняет один цикл polling.
func (o *Orchestrator) poll(ctx context.Context) {
	queued, err := o.snapshots.ListQueued(ctx, o.batchSize)
	if err != nil {
		o.logger.Error("failed to list queued snapshots", "error", err)
		return
	}

	if len(queued) == 0 {
		return
	}

	o.logger.Debug("poll found queued snapshots", "count", len(queued))

	for i := range queued {
		snap := &queued[i]

		if o.isActive(snap.ID) {
			continue
		}

		if err := o.processSnapshot(ctx, snap.ID); err != nil {
			o.logger.Error("failed to process snapshot from poll",
				"snapshot_id", snap.ID,
				"error", err,
			)
		}
	}
}

// isActive проверяет, обрабатывается ли snapshot этим процессом.
func (o *Orchestrator) isActive(id uuid.UUID) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, exists := o.active[id]
	return exists
}

// addActive добавляет snapshot в активные.
func (o *Orchestrator) addActive(id uuid.UUID) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, exists := o.active[id]; exists {
		return ErrSnapshotAlreadyActive
	}
	o.active[id] = struct{}{}
	return nil
}

// removeActive удаляет snapshot из активных.
func (o *Orchestrator) removeActive(id uuid.UUID) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.active, id)
}

// ActiveCount возвращает количество активных снапшотов.
func (o *Orchestrator) ActiveCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.active)
}
