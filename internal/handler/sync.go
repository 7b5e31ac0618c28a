package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"stockdata/internal/repository"
	"stockdata/internal/service"
)

type SyncHandler struct {
	Service *service.PriceSyncService
	Repo    repository.Repository
	Logger  *zap.Logger
}

func (h *SyncHandler) Register(r *gin.Engine) {
	group := r.Group("/api/v1/sync")
	group.POST("/prices", h.syncPrices)
	group.GET("/state", h.listSyncState)
}

func (h *SyncHandler) syncPrices(c *gin.Context) {
	if h.Service == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	opts := service.SyncOptions{
		ChunkSize: intQuery(c, "chunk_size", 0),
		DryRun:    boolQueryDefault(c, "dry_run", false),
		Resume:    boolQueryDefault(c, "resume", false),
	}
	if raw := strings.TrimSpace(c.Query("symbols")); raw != "" {
		opts.Symbols = strings.Split(raw, ",")
	}

	result, err := h.Service.Sync(c.Request.Context(), opts)
	if err != nil {
		h.Logger.Warn("price sync failed", zap.Error(err))
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	Ok(c, result, nil)
}

func (h *SyncHandler) listSyncState(c *gin.Context) {
	states, err := h.Repo.ListSyncStates(c.Request.Context())
	if err != nil {
		Error(c, http.StatusInternalServerError, "list sync state failed", nil)
		return
	}
	Ok(c, states, map[string]any{"count": len(states)})
}
