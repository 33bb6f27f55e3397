package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mandi/internal/models"
	"mandi/internal/resolver"
	"mandi/internal/service"
	"mandi/internal/trend"
)

type PriceHandler struct {
	Query  *service.QueryService
	Sync   *service.PriceSyncService
	Logger *zap.Logger

	// SyncScopes are the default scopes when a sync request names none.
	SyncScopes []string
	SyncLimit  int
}

func (h *PriceHandler) Register(r *gin.Engine) {
	group := r.Group("/api")
	group.GET("/prices", h.getPrices)
	group.GET("/trend", h.getTrend)
	group.GET("/trend/market", h.getMarketTrend)
	group.POST("/sync", h.runSync)
	group.GET("/sync-state", h.listSyncState)
	group.GET("/cache/stats", h.getCacheStats)
}

// @Summary Query commodity prices
// @Tags prices
// @Param commodity query string false "commodity name"
// @Param state query string false "state name"
// @Param district query string false "district name"
// @Param market query string false "market name, fuzzy-corrected when close"
// @Param date query string false "YYYY, YYYY-MM or YYYY-MM-DD"
// @Param limit query int false "max records"
// @Success 200 {object} apiResponse
// @Router /api/prices [get]
func (h *PriceHandler) getPrices(c *gin.Context) {
	if h.Query == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	q := queryFromParams(c)
	if !q.HasLocation() && strings.TrimSpace(q.Commodity) == "" {
		Error(c, http.StatusBadRequest, "at least a commodity or a location is required", nil)
		return
	}
	result, err := h.Query.Prices(c.Request.Context(), q)
	if err != nil && !errors.Is(err, resolver.ErrNoConfidentMatch) {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	meta := map[string]any{"source": result.Source}
	if result.CorrectedMarket != nil {
		meta["corrected_market"] = result.CorrectedMarket
	}
	if !result.Success {
		msg := "no data found for the given filters"
		if errors.Is(err, resolver.ErrNoConfidentMatch) {
			msg = "no market matched confidently; check the market name"
			meta["ambiguous_market"] = true
		}
		Error(c, http.StatusNotFound, msg, meta)
		return
	}
	Ok(c, result, meta)
}

// @Summary Commodity price trend
// @Tags prices
// @Param commodity query string true "commodity name"
// @Param state query string false "state name"
// @Param district query string false "district name"
// @Param market query string false "market name"
// @Param days query int false "window size, capped at 30"
// @Success 200 {object} apiResponse
// @Router /api/trend [get]
func (h *PriceHandler) getTrend(c *gin.Context) {
	if h.Query == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	q := queryFromParams(c)
	result, err := h.Query.CommodityTrend(c.Request.Context(), q, intQuery(c, "days", 0))
	if err != nil {
		h.trendError(c, err)
		return
	}
	Ok(c, result, nil)
}

// @Summary Market-wide trend across commodities
// @Tags prices
// @Param state query string false "state name"
// @Param district query string false "district name"
// @Param market query string false "market name"
// @Param days query int false "window size, capped at 30"
// @Success 200 {object} apiResponse
// @Router /api/trend/market [get]
func (h *PriceHandler) getMarketTrend(c *gin.Context) {
	if h.Query == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	q := queryFromParams(c)
	result, err := h.Query.MarketTrend(c.Request.Context(), q, intQuery(c, "days", 0))
	if err != nil {
		h.trendError(c, err)
		return
	}
	Ok(c, result, nil)
}

func (h *PriceHandler) trendError(c *gin.Context, err error) {
	if errors.Is(err, trend.ErrInsufficientData) {
		Error(c, http.StatusNotFound, err.Error(), nil)
		return
	}
	Error(c, http.StatusBadRequest, err.Error(), nil)
}

// @Summary Run a price sync now
// @Tags sync
// @Param scope query string false "State or State/Commodity; repeatable"
// @Param limit query int false "max records per scope"
// @Success 200 {object} apiResponse
// @Router /api/sync [post]
func (h *PriceHandler) runSync(c *gin.Context) {
	if h.Sync == nil {
		Error(c, http.StatusInternalServerError, "sync unavailable", nil)
		return
	}
	scopes := c.QueryArray("scope")
	if len(scopes) == 0 {
		scopes = h.SyncScopes
	}
	if len(scopes) == 0 {
		Error(c, http.StatusBadRequest, "no sync scopes configured or given", nil)
		return
	}
	result, err := h.Sync.Sync(c.Request.Context(), service.SyncOptions{
		Scopes: scopes,
		Limit:  intQuery(c, "limit", h.SyncLimit),
	})
	if err != nil {
		if h.Logger != nil {
			h.Logger.Warn("price sync failed", zap.Error(err))
		}
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, result, nil)
}

// @Summary List sync states
// @Tags sync
// @Success 200 {object} apiResponse
// @Router /api/sync-state [get]
func (h *PriceHandler) listSyncState(c *gin.Context) {
	if h.Query == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	states, err := h.Query.SyncStates(c.Request.Context())
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, states, nil)
}

// @Summary Persistent cache statistics
// @Tags cache
// @Success 200 {object} apiResponse
// @Router /api/cache/stats [get]
func (h *PriceHandler) getCacheStats(c *gin.Context) {
	if h.Query == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	stats, err := h.Query.CacheStats(c.Request.Context())
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, stats, nil)
}

func queryFromParams(c *gin.Context) models.Query {
	return models.Query{
		Commodity: strings.TrimSpace(c.Query("commodity")),
		State:     strings.TrimSpace(c.Query("state")),
		District:  strings.TrimSpace(c.Query("district")),
		Market:    strings.TrimSpace(c.Query("market")),
		Date:      strings.TrimSpace(c.Query("date")),
		Limit:     intQuery(c, "limit", 0),
	}
}

func intQuery(c *gin.Context, key string, def int) int {
	if val := c.Query(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return def
}
