package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/savichev/reputa/internal/domain"
	"github.com/savichev/reputa/internal/registry"
	"github.com/savichev/reputa/internal/routing"
)

// ListAlgorithms возвращает все опубликованные определения.
// GET /api/v1/algorithms
func (h *Handler) ListAlgorithms(w http.ResponseWriter, r *http.Request) {
	defs, err := h.algorithmRepo.ListAll(r.Context())
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]AlgorithmResponse, len(defs))
	for i, def := range defs {
		result[i] = AlgorithmFromDomain(def)
	}

	List(w, result, len(result))
}

// PublishAlgorithm публикует новую версию алгоритма.
// POST /api/v1/algorithms
//
// Пара (key, version) неизменяема: повторная публикация — 409, даже с
// идентичным телом. Исправление опубликованной версии — это новая версия.
func (h *Handler) PublishAlgorithm(w http.ResponseWriter, r *http.Request) {
	var req PublishAlgorithmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	if err := registry.ValidateKey(req.Key); err != nil {
		BadRequest(w, err.Error())
		return
	}
	if err := registry.ValidateVersion(req.Version); err != nil {
		BadRequest(w, err.Error())
		return
	}

	runtime := domain.Runtime(req.Runtime)
	if _, err := routing.RouteQueue(runtime, domain.QueueOverrides{}); err != nil {
		BadRequest(w, err.Error())
		return
	}

	def := &domain.AlgorithmDefinition{
		Key:          req.Key,
		Version:      req.Version,
		Runtime:      runtime,
		Inputs:       req.Inputs,
		Outputs:      req.Outputs,
		Dependencies: req.Dependencies,
		Idempotent:   req.Idempotent,
		Description:  req.Description,
		PublishedAt:  time.Now(),
	}

	if err := h.algorithmRepo.Insert(r.Context(), def); err != nil {
		HandleRepoError(w, h.logger, err, "")
		return
	}

	Created(w, AlgorithmFromDomain(*def))
}

// ListAlgorithmVersions возвращает все версии ключа.
// GET /api/v1/algorithms/{key}
func (h *Handler) ListAlgorithmVersions(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")

	defs, err := h.algorithmRepo.ListByKey(r.Context(), key)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}
	if len(defs) == 0 {
		NotFound(w, "algorithm not found")
		return
	}

	result := make([]AlgorithmResponse, len(defs))
	for i, def := range defs {
		result[i] = AlgorithmFromDomain(def)
	}

	List(w, result, len(result))
}

// GetAlgorithm возвращает определение по ключу и версии.
// GET /api/v1/algorithms/{key}/{version}
//
// version=latest разрешается в наивысшую опубликованную версию.
func (h *Handler) GetAlgorithm(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	version := r.PathValue("version")
	if version == "latest" {
		version = ""
	}

	defs, err := h.algorithmRepo.ListByKey(r.Context(), key)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	def, err := registry.New(defs).Resolve(key, version)
	if err != nil {
		NotFound(w, err.Error())
		return
	}

	Success(w, AlgorithmFromDomain(def))
}
