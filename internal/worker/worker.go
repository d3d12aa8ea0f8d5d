package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/savichev/reputa/internal/compute"
	"github.com/savichev/reputa/internal/domain"
	"github.com/savichev/reputa/internal/mq"
	"github.com/savichev/reputa/internal/routing"
)

// Default configuration values.
const (
	defaultPrefetch = 5
)

// snapshotSource — чтение снапшотов. Воркер никогда не пишет в snapshot:
// единственный писатель статуса — оркестратор.
type snapshotSource interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Snapshot, error)
}

// algorithmSource — разрешение определений (для флага Idempotent).
type algorithmSource interface {
	Resolve(key, version string) (domain.AlgorithmDefinition, error)
}

// dispatcher — выполнение алгоритма по замороженному пресету.
// Реализуется compute.Dispatcher.
type dispatcher interface {
	Dispatch(ctx context.Context, snap *domain.Snapshot) (*compute.Result, error)
}

// resultPublisher — публикация durable результата вычисления.
type resultPublisher interface {
	PublishComputeResult(ctx context.Context, payload mq.ComputeResultPayload) error
}

// Worker выполняет compute-вызовы одного runtime-пула.
//
// Worker — stateless компонент, который:
//   - Потребляет вызовы из своей очереди (compute.<runtime>)
//   - Выполняет алгоритм через compute.Dispatcher
//   - Ретраит только идемпотентные реализации (LongRunPolicy)
//   - Публикует durable результат в compute.results
//
// Workers масштабируются горизонтально — несколько экземпляров
// могут потреблять из одной очереди.
type Worker struct {
	snapshots  snapshotSource
	registry   algorithmSource
	dispatcher dispatcher
	publisher  resultPublisher

	conn  *mq.Connection
	queue string

	consumer *mq.Consumer

	logger     *slog.Logger
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// Config — конфигурация Worker.
type Config struct {
	Snapshots  snapshotSource
	Registry   algorithmSource
	Dispatcher dispatcher
	Publisher  resultPublisher

	// Conn — соединение с RabbitMQ. Обязательно: вызовы существуют
	// только как сообщения очереди.
	Conn *mq.Connection

	// Queue — очередь runtime-пула этого воркера.
	// Пустая — очередь TypeScript-пула по умолчанию.
	Queue string

	Logger *slog.Logger
}

// New создаёт новый Worker.
func New(cfg Config) *Worker {
	queue := cfg.Queue
	if queue == "" {
		queue = routing.DefaultTypescriptQueue
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Worker{
		snapshots:  cfg.Snapshots,
		registry:   cfg.Registry,
		dispatcher: cfg.Dispatcher,
		publisher:  cfg.Publisher,
		conn:       cfg.Conn,
		queue:      queue,
		logger:     logger.With("queue", queue),
	}
}

// Start запускает Worker.
func (w *Worker) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	w.cancelFunc = cancel

	w.logger.Info("starting worker")

	w.consumer = mq.NewConsumer(w.conn, w.logger, mq.ConsumerConfig{
		Queue:    w.queue,
		Handler:  w.handleComputeInvoke,
		Prefetch: defaultPrefetch,
	})

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		if err := w.consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			w.logger.Error("invoke consumer error", "error", err)
		}
	}()

	w.logger.Info("worker started")
	return nil
}

// Stop останавливает Worker.
func (w *Worker) Stop() {
	w.logger.Info("stopping worker...")

	if w.cancelFunc != nil {
		w.cancelFunc()
	}

	if w.consumer != nil {
		w.consumer.Stop()
	}

	w.wg.Wait()

	w.logger.Info("worker stopped")
}
