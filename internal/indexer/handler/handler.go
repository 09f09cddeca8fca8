// Package handler exposes the administrative index rebuild over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/internal/indexer/rebuild"
	apperrors "github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/pkg/logger"
)

type Rebuilder interface {
	Rebuild(ctx context.Context) (rebuild.Result, error)
	Status() rebuild.Status
}

type Handler struct {
	rebuilder Rebuilder
	logger    *slog.Logger
}

func New(rebuilder Rebuilder) *Handler {
	return &Handler{
		rebuilder: rebuilder,
		logger:    slog.Default().With("component", "admin-handler"),
	}
}

// Register mounts the admin routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/admin/rebuild", h.Rebuild)
	mux.HandleFunc("GET /api/v1/admin/rebuild", h.Status)
}

type rebuildResponse struct {
	DocumentsIndexed int    `json:"documentsIndexed"`
	SynonymRules     int    `json:"synonymRules"`
	DurationMs       int64  `json:"durationMs"`
	Step             string `json:"step,omitempty"`
	Error            string `json:"error,omitempty"`
}

// Rebuild runs a rebuild synchronously. Failures report the step that
// failed and the documents written before it. A client that disconnects
// does not cancel the rebuild.
func (h *Handler) Rebuild(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())
	res, err := h.rebuilder.Rebuild(context.WithoutCancel(r.Context()))
	body := rebuildResponse{
		DocumentsIndexed: res.DocumentsIndexed,
		SynonymRules:     res.SynonymRules,
		DurationMs:       res.Duration.Milliseconds(),
	}
	if err == nil {
		log.Info("rebuild requested and completed", "documents_indexed", res.DocumentsIndexed)
		h.writeJSON(w, http.StatusOK, body)
		return
	}

	body.Error = err.Error()
	status := apperrors.HTTPStatusCode(err)
	var rerr *rebuild.RebuildError
	if errors.As(err, &rerr) {
		body.Step = string(rerr.Step)
		if !apperrors.IsEngineFailure(err) {
			status = http.StatusInternalServerError
		}
	}
	log.Error("rebuild request failed", "step", body.Step, "error", err)
	h.writeJSON(w, status, body)
}

func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.rebuilder.Status())
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}
