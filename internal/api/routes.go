package api

import (
	"net/http"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Middleware chain
	chain := Chain(
		Recovery(h.logger),
		Logging(h.logger),
	)

	// Algorithms
	mux.Handle("GET /api/v1/algorithms", chain(http.HandlerFunc(h.ListAlgorithms)))
	mux.Handle("POST /api/v1/algorithms", chain(http.HandlerFunc(h.PublishAlgorithm)))
	mux.Handle("GET /api/v1/algorithms/{key}", chain(http.HandlerFunc(h.ListAlgorithmVersions)))
	mux.Handle("GET /api/v1/algorithms/{key}/{version}", chain(http.HandlerFunc(h.GetAlgorithm)))

	// Snapshots
	mux.Handle("GET /api/v1/snapshots", chain(http.HandlerFunc(h.ListSnapshots)))
	mux.Handle("POST /api/v1/snapshots", chain(http.HandlerFunc(h.CreateSnapshot)))
	mux.Handle("GET /api/v1/snapshots/{id}", chain(http.HandlerFunc(h.GetSnapshot)))
	mux.Handle("POST /api/v1/snapshots/{id}/cancel", chain(http.HandlerFunc(h.CancelSnapshot)))
}
