// Package handler exposes the recipe search and interaction endpoints over
// HTTP.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/internal/searcher/service"
	apperrors "github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/pkg/logger"
)

// maxBodyBytes bounds interaction request bodies.
const maxBodyBytes = 4 << 10

type Searcher interface {
	Search(ctx context.Context, text string, pageSize int) (*service.Response, error)
}

type Recorder interface {
	RecordLike(ctx context.Context, recipeID, userID string) (catalog.LikeResult, error)
	RecordUnlike(ctx context.Context, recipeID, userID string) (catalog.LikeResult, error)
	RecordView(ctx context.Context, recipeID, userID string) (int64, error)
	ViewHistory(ctx context.Context, userID string, limit int) ([]string, error)
}

// CacheAdmin is implemented by the query cache.
type CacheAdmin interface {
	Stats() (hits, misses int64)
	Invalidate(ctx context.Context) error
}

type Handler struct {
	searcher Searcher
	recorder Recorder
	cache    CacheAdmin
	throttle func(http.Handler) http.Handler
	logger   *slog.Logger
}

// New creates a Handler. cache may be nil when caching is disabled.
func New(searcher Searcher, recorder Recorder, cache CacheAdmin) *Handler {
	return &Handler{
		searcher: searcher,
		recorder: recorder,
		cache:    cache,
		logger:   slog.Default().With("component", "search-handler"),
	}
}

// ThrottleInteractions wraps the like, unlike and view routes with mw.
// Call it before Register.
func (h *Handler) ThrottleInteractions(mw func(http.Handler) http.Handler) *Handler {
	h.throttle = mw
	return h
}

// Register mounts the handler's routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	interaction := func(fn http.HandlerFunc) http.Handler {
		if h.throttle == nil {
			return fn
		}
		return h.throttle(fn)
	}
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.Handle("POST /api/v1/recipes/{id}/like", interaction(h.Like))
	mux.Handle("POST /api/v1/recipes/{id}/unlike", interaction(h.Unlike))
	mux.Handle("POST /api/v1/recipes/{id}/view", interaction(h.View))
	mux.HandleFunc("GET /api/v1/users/{uid}/views", h.ViewHistory)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		h.writeError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}
	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 {
			h.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	resp, err := h.searcher.Search(r.Context(), q, limit)
	if err != nil {
		h.writeAppError(r.Context(), w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

type interactionRequest struct {
	UID string `json:"uid"`
}

type likeResponse struct {
	ID      string `json:"id"`
	Likes   int64  `json:"likes"`
	Changed bool   `json:"changed"`
}

type viewResponse struct {
	ID         string `json:"id"`
	ViewClicks int64  `json:"viewClicks"`
}

func (h *Handler) Like(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, h.recorder.RecordLike)
}

func (h *Handler) Unlike(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, h.recorder.RecordUnlike)
}

func (h *Handler) toggle(w http.ResponseWriter, r *http.Request, fn func(context.Context, string, string) (catalog.LikeResult, error)) {
	id := r.PathValue("id")
	uid, ok := h.decodeUID(w, r)
	if !ok {
		return
	}
	res, err := fn(r.Context(), id, uid)
	if err != nil {
		h.writeAppError(r.Context(), w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, likeResponse{ID: id, Likes: res.Likes, Changed: res.Changed})
}

func (h *Handler) View(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	uid, ok := h.decodeUID(w, r)
	if !ok {
		return
	}
	clicks, err := h.recorder.RecordView(r.Context(), id, uid)
	if err != nil {
		h.writeAppError(r.Context(), w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, viewResponse{ID: id, ViewClicks: clicks})
}

type historyResponse struct {
	UID     string   `json:"uid"`
	Recipes []string `json:"recipes"`
}

func (h *Handler) ViewHistory(w http.ResponseWriter, r *http.Request) {
	uid := r.PathValue("uid")
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			h.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	ids, err := h.recorder.ViewHistory(r.Context(), uid, limit)
	if err != nil {
		h.writeAppError(r.Context(), w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, historyResponse{UID: uid, Recipes: ids})
}

func (h *Handler) decodeUID(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req interactionRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return "", false
	}
	if req.UID == "" {
		h.writeError(w, http.StatusBadRequest, "field 'uid' is required")
		return "", false
	}
	return req.UID, true
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}

	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}
	if err := h.cache.Invalidate(r.Context()); err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

// writeAppError maps err to a status code. Only AppError messages reach the
// client; anything else is logged and reported generically.
func (h *Handler) writeAppError(ctx context.Context, w http.ResponseWriter, err error) {
	status := apperrors.HTTPStatusCode(err)
	var appErr *apperrors.AppError
	switch {
	case errors.As(err, &appErr):
		h.writeError(w, status, appErr.Message)
	case status == http.StatusNotFound:
		h.writeError(w, status, "recipe not found")
	default:
		logger.FromContext(ctx).Error("request failed", "error", err)
		h.writeError(w, status, http.StatusText(status))
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
