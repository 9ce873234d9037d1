package api

import (
	"net/http"
	"strconv"
	"time"

	"pos-analytics/internal/apperr"
	"pos-analytics/internal/service"
	"pos-analytics/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler contains HTTP handlers
type Handler struct {
	queryService *service.QueryService
}

// NewHandler creates a new HTTP handler
func NewHandler(queryService *service.QueryService) *Handler {
	return &Handler{
		queryService: queryService,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1/analytics")
	{
		v1.GET("/sales-summary", h.getSalesSummary)
		v1.GET("/top-items", h.getTopItems)
		v1.GET("/product-mix", h.getProductMix)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// getSalesSummary handles GET /api/v1/analytics/sales-summary
func (h *Handler) getSalesSummary(c *gin.Context) {
	start, end, ok := parseWindow(c)
	if !ok {
		return
	}

	summary, err := h.queryService.GetSalesSummary(c.Request.Context(), start, end, c.Query("restaurant_id"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}

// getTopItems handles GET /api/v1/analytics/top-items
func (h *Handler) getTopItems(c *gin.Context) {
	days, err := strconv.Atoi(c.DefaultQuery("days", "7"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "days must be an integer"})
		return
	}
	n, err := strconv.Atoi(c.DefaultQuery("n", "10"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "n must be an integer"})
		return
	}

	items, err := h.queryService.GetTopItems(c.Request.Context(), days, n, c.Query("restaurant_id"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": items})
}

// getProductMix handles GET /api/v1/analytics/product-mix
func (h *Handler) getProductMix(c *gin.Context) {
	start, end, ok := parseWindow(c)
	if !ok {
		return
	}

	mix, err := h.queryService.GetProductMix(c.Request.Context(), start, end, c.Query("restaurant_id"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"categories": mix})
}

// parseWindow reads required RFC3339 start/end query params.
func parseWindow(c *gin.Context) (time.Time, time.Time, bool) {
	startStr := c.Query("start")
	endStr := c.Query("end")
	if startStr == "" || endStr == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "start and end are required"})
		return time.Time{}, time.Time{}, false
	}

	start, err := time.Parse(time.RFC3339, startStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "start must be RFC3339"})
		return time.Time{}, time.Time{}, false
	}
	end, err := time.Parse(time.RFC3339, endStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "end must be RFC3339"})
		return time.Time{}, time.Time{}, false
	}

	return start, end, true
}

// writeError maps error kinds to stable status codes. Errors never crash
// the process; the recovery middleware is a backstop only.
func writeError(c *gin.Context, err error) {
	kind := apperr.KindOf(err)

	status := http.StatusInternalServerError
	switch kind {
	case apperr.KindInvalidArgument:
		status = http.StatusBadRequest
	case apperr.KindAuthFailure, apperr.KindTransientAuth, apperr.KindUpstream,
		apperr.KindMalformedOrder, apperr.KindMalformedMenu:
		status = http.StatusBadGateway
	}

	c.JSON(status, gin.H{
		"error": gin.H{
			"kind":    string(kind),
			"message": err.Error(),
		},
	})
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
