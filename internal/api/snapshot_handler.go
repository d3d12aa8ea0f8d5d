package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/savichev/reputa/internal/domain"
	"github.com/savichev/reputa/internal/registry"
	"github.com/savichev/reputa/internal/repo"
)

// ListSnapshots возвращает список снапшотов с фильтрацией.
// GET /api/v1/snapshots?status=...&limit=...&offset=...
func (h *Handler) ListSnapshots(w http.ResponseWriter, r *http.Request) {
	filter := repo.SnapshotFilter{Limit: 50}

	if status := r.URL.Query().Get("status"); status != "" {
		filter.Status = domain.SnapshotStatus(status)
		if !filter.Status.IsValid() {
			BadRequest(w, "invalid status")
			return
		}
	}
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		filter.Limit = int(mustParseInt(limitStr, 50))
	}
	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		filter.Offset = int(mustParseInt(offsetStr, 0))
	}

	snaps, err := h.snapshotRepo.List(r.Context(), filter)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]SnapshotResponse, len(snaps))
	for i, snap := range snaps {
		result[i] = SnapshotFromDomain(snap)
	}

	List(w, result, len(result))
}

// CreateSnapshot создаёт новый snapshot.
// POST /api/v1/snapshots
//
// Версия резолвится на момент создания: пустая version означает latest.
// Разрешённая версия вместе с параметрами замораживается в пресете —
// поздние публикации под тем же ключом на snapshot не влияют.
func (h *Handler) CreateSnapshot(w http.ResponseWriter, r *http.Request) {
	var req CreateSnapshotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	if req.AlgorithmKey == "" {
		BadRequest(w, "algorithm_key is required")
		return
	}

	defs, err := h.algorithmRepo.ListByKey(r.Context(), req.AlgorithmKey)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	def, err := registry.New(defs).Resolve(req.AlgorithmKey, req.Version)
	if err != nil {
		if errors.Is(err, registry.ErrKeyNotFound) || errors.Is(err, registry.ErrVersionNotFound) {
			NotFound(w, err.Error())
			return
		}
		InternalError(w, h.logger, err)
		return
	}

	now := time.Now()
	snap := &domain.Snapshot{
		ID:     uuid.New(),
		Status: domain.SnapshotQueued,
		Preset: domain.FrozenPreset{
			Key:     def.Key,
			Version: def.Version,
			Inputs:  req.Inputs,
		},
		// Переопределения очередей замораживаются вместе с пресетом
		QueueOverrides: req.QueueOverrides,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := h.snapshotRepo.Create(r.Context(), snap); err != nil {
		InternalError(w, h.logger, err)
		return
	}

	// Публикуем событие в очередь; при недоступном брокере snapshot
	// подхватит polling-фолбэк оркестратора
	if h.publisher != nil {
		if err := h.publisher.PublishSnapshotQueued(r.Context(), snap.ID); err != nil {
			h.logger.Warn("failed to publish snapshot.queued", "snapshot_id", snap.ID, "error", err)
		}
	}

	Created(w, SnapshotFromDomain(*snap))
}

// GetSnapshot возвращает snapshot по ID.
// GET /api/v1/snapshots/{id}
func (h *Handler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid snapshot id")
		return
	}

	snap, err := h.snapshotRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "snapshot not found") {
		return
	}

	Success(w, SnapshotFromDomain(*snap))
}

// CancelSnapshot запрашивает отмену snapshot.
// POST /api/v1/snapshots/{id}/cancel
//
// API выставляет только флаг: терминальный переход выполняет оркестратор
// на ближайшей границе шага. Для уже завершённого snapshot — 422.
func (h *Handler) CancelSnapshot(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid snapshot id")
		return
	}

	if err := h.snapshotRepo.RequestCancel(r.Context(), id); err != nil {
		if errors.Is(err, repo.ErrInvalidState) {
			InvalidState(w, "snapshot is already finished")
			return
		}
		if HandleRepoError(w, h.logger, err, "snapshot not found") {
			return
		}
	}

	if h.publisher != nil {
		if err := h.publisher.PublishSnapshotCancel(r.Context(), id); err != nil {
			h.logger.Warn("failed to publish snapshot.cancel", "snapshot_id", id, "error", err)
		}
	}

	snap, err := h.snapshotRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "snapshot not found") {
		return
	}

	Success(w, SnapshotFromDomain(*snap))
}

// mustParseInt парсит строку в int с дефолтным значением.
func mustParseInt(s string, defaultVal int64) int64 {
	if n, err := json.Number(s).Int64(); err == nil {
		return n
	}
	return defaultVal
}
