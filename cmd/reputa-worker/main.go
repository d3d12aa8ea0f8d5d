// Reputa Worker — выполняет compute-вызовы одного runtime-пула.
//
// Worker:
//   - Получает вызовы из своей очереди (compute.typescript, compute.python)
//   - Выполняет алгоритм через compute.Dispatcher
//   - Реализует retry для идемпотентных реализаций
//   - Публикует durable результат в compute.results
//
// Workers масштабируются горизонтально; один процесс — одна очередь.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/savichev/reputa/internal/compute"
	"github.com/savichev/reputa/internal/mq"
	"github.com/savichev/reputa/internal/registry"
	"github.com/savichev/reputa/internal/repo"
	"github.com/savichev/reputa/internal/routing"
	"github.com/savichev/reputa/internal/storage"
	"github.com/savichev/reputa/internal/telemetry"
	"github.com/savichev/reputa/internal/worker"
)

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting reputa-worker")

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// DB pool
	pool, err := repo.NewPool(ctx)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("database connected")

	// Создаём репозитории
	snapshotRepo := repo.NewSnapshotRepo(pool)
	algorithmRepo := repo.NewAlgorithmRepo(pool)

	// Реестр алгоритмов на момент старта
	defs, err := algorithmRepo.ListAll(ctx)
	if err != nil {
		logger.Error("failed to load algorithm definitions", "error", err)
		os.Exit(1)
	}
	reg := registry.New(defs)

	// Object storage: dispatcher читает артефакты зависимостей и пишет
	// результаты вычислений
	storageCfg, err := storage.ConfigFromEnv()
	if err != nil {
		logger.Error("invalid storage config", "error", err)
		os.Exit(1)
	}
	minioClient, err := storage.NewMinIOClient(storageCfg)
	if err != nil {
		logger.Error("failed to create MinIO client", "error", err)
		os.Exit(1)
	}
	if err := storage.EnsureBucket(ctx, minioClient, storageCfg); err != nil {
		logger.Error("failed to ensure bucket", "error", err)
		os.Exit(1)
	}
	store := storage.NewStore(minioClient, storageCfg.Bucket)
	logger.Info("object storage ready", "bucket", storageCfg.Bucket)

	// RabbitMQ: для воркера обязателен — вызовы существуют только как
	// сообщения очереди
	mqURL := os.Getenv("RABBITMQ_URL")
	if mqURL == "" {
		mqURL = mq.DefaultURL()
	}

	mqConn, err := mq.NewConnection(mqURL, logger)
	if err != nil {
		logger.Error("failed to connect to RabbitMQ", "error", err)
		os.Exit(1)
	}
	defer mqConn.Close()
	logger.Info("RabbitMQ connected")

	queue := os.Getenv("WORKER_QUEUE")
	if queue == "" {
		queue = routing.DefaultTypescriptQueue
	}

	if err := mq.SetupTopology(ctx, mqConn, queue); err != nil {
		logger.Warn("failed to setup topology", "error", err)
	}

	// Создаём worker
	w := worker.New(worker.Config{
		Snapshots:  snapshotRepo,
		Registry:   reg,
		Dispatcher: compute.NewDispatcher(reg, store),
		Publisher:  mq.NewPublisher(mqConn, logger),
		Conn:       mqConn,
		Queue:      queue,
		Logger:     logger,
	})

	// Запускаем worker
	if err := w.Start(ctx); err != nil {
		logger.Error("failed to start worker", "error", err)
		os.Exit(1)
	}

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	port := ":8082"
	if v := os.Getenv("WORKER_PORT"); v != "" {
		port = ":" + v
	}

	go func() {
		logger.Info("listening", "addr", port)
		if err := http.ListenAndServe(port, mux); err != nil {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	// Ожидаем сигнал завершения
	<-ctx.Done()

	// Останавливаем worker
	w.Stop()
	logger.Info("reputa-worker stopped")
}
