package api

import (
	"log/slog"

	"github.com/savichev/reputa/internal/mq"
	"github.com/savichev/reputa/internal/repo"
)

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	snapshotRepo  *repo.SnapshotRepo
	algorithmRepo *repo.AlgorithmRepo
	publisher     *mq.Publisher
	logger        *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	SnapshotRepo  *repo.SnapshotRepo
	AlgorithmRepo *repo.AlgorithmRepo
	Publisher     *mq.Publisher
	Logger        *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	return &Handler{
		snapshotRepo:  cfg.SnapshotRepo,
		algorithmRepo: cfg.AlgorithmRepo,
		publisher:     cfg.Publisher,
		logger:        cfg.Logger,
	}
}
