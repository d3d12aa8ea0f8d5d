// Reputa Orchestrator — управляет выполнением снапшотов.
//
// Orchestrator:
//   - Получает queued снапшоты из RabbitMQ (и polling-фолбэком из БД)
//   - Резолвит определение алгоритма и его зависимости
//   - Отправляет compute-вызов в очередь runtime-пула
//   - Финализирует snapshot по полученному результату
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/savichev/reputa/internal/deps"
	"github.com/savichev/reputa/internal/mq"
	"github.com/savichev/reputa/internal/orchestrator"
	"github.com/savichev/reputa/internal/registry"
	"github.com/savichev/reputa/internal/repo"
	"github.com/savichev/reputa/internal/routing"
	"github.com/savichev/reputa/internal/storage"
	"github.com/savichev/reputa/internal/telemetry"
)

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting reputa-orchestrator")

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

	// Реестр алгоритмов — неизменяемый слепок опубликованных определений
	// на момент старта. Публикация новой версии требует рестарта.
	defs, err := algorithmRepo.ListAll(ctx)
	if err != nil {
		logger.Error("failed to load algorithm definitions", "error", err)
		os.Exit(1)
	}
	reg := registry.New(defs)
	logger.Info("algorithm registry loaded", "keys", len(reg.Keys()))

	// Object storage для артефактов зависимостей
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

	// Resolvers зависимостей: внешний API сообщества → object storage
	communityURL := os.Getenv("COMMUNITY_API_URL")
	if communityURL == "" {
		communityURL = "http://localhost:8090"
	}
	depSet := deps.NewSet(logger,
		&deps.CommunityVotesResolver{BaseURL: communityURL, Store: store},
		&deps.MemberActivityResolver{BaseURL: communityURL, Store: store},
	)

	// RabbitMQ
	orchCfg := orchestrator.Config{
		Snapshots: snapshotRepo,
		Registry:  reg,
		Deps:      depSet,
		Logger:    logger,
	}

	mqURL := os.Getenv("RABBITMQ_URL")
	if mqURL == "" {
		mqURL = mq.DefaultURL()
	}

	mqConn, err := mq.NewConnection(mqURL, logger)
	if err != nil {
		logger.Warn("RabbitMQ not available, running in polling-only mode", "error", err)
	} else {
		defer mqConn.Close()
		logger.Info("RabbitMQ connected")

		// Создаём топологию, включая очереди runtime-пулов
		if err := mq.SetupTopology(ctx, mqConn,
			routing.DefaultTypescriptQueue,
			routing.DefaultPythonQueue,
		); err != nil {
			logger.Warn("failed to setup topology", "error", err)
		}

		orchCfg.Conn = mqConn
		orchCfg.Publisher = mq.NewPublisher(mqConn, logger)
	}

	// Создаём orchestrator
	orch := orchestrator.New(orchCfg)

	// Запускаем orchestrator
	if err := orch.Start(ctx); err != nil {
		logger.Error("failed to start orchestrator", "error", err)
		os.Exit(1)
	}

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	port := ":8083"
	if v := os.Getenv("ORCH_PORT"); v != "" {
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

	// Останавливаем orchestrator
	orch.Stop()
	logger.Info("reputa-orchestrator stopped")
}
