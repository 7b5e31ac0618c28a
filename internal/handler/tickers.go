package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"stockdata/internal/repository"
)

type TickerHandler struct {
	Repo   repository.Repository
	Logger *zap.Logger
}

func (h *TickerHandler) Register(r *gin.Engine) {
	group := r.Group("/api/v1")
	group.GET("/tickers", h.listTickers)
	group.GET("/tickers/:symbol/prices", h.listPrices)
}

func (h *TickerHandler) listTickers(c *gin.Context) {
	params := repository.ListTickersParams{
		Query:  strings.TrimSpace(c.Query("q")),
		Limit:  intQuery(c, "limit", 100),
		Offset: intQuery(c, "offset", 0),
	}
	items, err := h.Repo.ListTickers(c.Request.Context(), params)
	if err != nil {
		h.Logger.Warn("list tickers failed", zap.Error(err))
		Error(c, http.StatusInternalServerError, "list tickers failed", nil)
		return
	}
	total, err := h.Repo.CountTickers(c.Request.Context())
	if err != nil {
		Error(c, http.StatusInternalServerError, "count tickers failed", nil)
		return
	}
	Ok(c, items, map[string]any{"total": total, "limit": params.Limit, "offset": params.Offset})
}

func (h *TickerHandler) listPrices(c *gin.Context) {
	symbol := strings.TrimSpace(c.Param("symbol"))
	if symbol == "" {
		Error(c, http.StatusBadRequest, "symbol is required", nil)
		return
	}
	params := repository.ListPricesParams{
		Limit: intQuery(c, "limit", 500),
	}
	if raw := strings.TrimSpace(c.Query("since")); raw != "" {
		since, err := time.Parse("2006-01-02", raw)
		if err != nil {
			Error(c, http.StatusBadRequest, "since must be YYYY-MM-DD", nil)
			return
		}
		params.Since = &since
	}
	items, err := h.Repo.ListPricesBySymbol(c.Request.Context(), symbol, params)
	if err != nil {
		h.Logger.Warn("list prices failed", zap.String("symbol", symbol), zap.Error(err))
		Error(c, http.StatusInternalServerError, "list prices failed", nil)
		return
	}
	Ok(c, items, map[string]any{"symbol": strings.ToUpper(symbol), "count": len(items)})
}
