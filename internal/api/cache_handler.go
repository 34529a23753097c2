package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"userservice/pkg/cache"
	"userservice/pkg/logger"
)

// CacheHandler exposes manual warm-up and invalidation of the user cache.
type CacheHandler struct {
	cacheManager  cache.CacheStrategy
	warmUpManager *cache.WarmUpManager
	logger        logger.Logger
}

type CacheInvalidateRequest struct {
	UserID *int64 `json:"user_id,omitempty"`
}

func NewCacheHandler(cacheManager cache.CacheStrategy, warmUpManager *cache.WarmUpManager, logger logger.Logger) *CacheHandler {
	return &CacheHandler{
		cacheManager:  cacheManager,
		warmUpManager: warmUpManager,
		logger:        logger,
	}
}

func (h *CacheHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/cache/warmup", h.handleWarmUp)
	mux.HandleFunc("POST /api/cache/invalidate", h.handleInvalidate)
}

func (h *CacheHandler) handleWarmUp(w http.ResponseWriter, r *http.Request) {
	if err := h.warmUpManager.WarmUp(r.Context()); err != nil {
		h.logger.ErrorContext(r.Context(), "Cache warm-up failed", map[string]interface{}{"error": err.Error()})
		writeError(w, http.StatusInternalServerError, "cache warm-up failed", nil)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "success",
		"timestamp": time.Now().UTC(),
	})
}

// handleInvalidate always drops both user lists, plus the single user
// entry when user_id is given. An empty body is allowed.
func (h *CacheHandler) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	var req CacheInvalidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}

	keys := []string{cache.UserListAllKey, cache.UserListActiveKey}
	if req.UserID != nil {
		keys = append(keys, cache.UserCacheKey(*req.UserID))
	}

	h.cacheManager.Invalidate(r.Context(), keys...)
	h.logger.InfoContext(r.Context(), "Cache invalidated", map[string]interface{}{"keys": keys})

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "success",
		"keys":      keys,
		"timestamp": time.Now().UTC(),
	})
}
