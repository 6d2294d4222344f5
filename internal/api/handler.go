package api

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"order-sync-service/internal/service"
	"order-sync-service/internal/util"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const readyTimeout = 2 * time.Second

// Pinger reports whether a dependency is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// Services bundles what the HTTP layer calls into
type Services struct {
	Orders   *service.OrderService
	Sync     *service.SyncService
	Logs     *service.LogService
	Settings *service.SettingsService
	DB       Pinger
}

// Handler contains HTTP handlers
type Handler struct {
	orders   *service.OrderService
	sync     *service.SyncService
	logs     *service.LogService
	settings *service.SettingsService
	db       Pinger
	limiter  *RateLimiter
	validate *validatorv10.Validate
	logger   *zap.Logger
}

// NewHandler creates a new HTTP handler. limiter guards the endpoints that
// trigger outbound requests; nil disables limiting.
func NewHandler(svc Services, limiter *RateLimiter) *Handler {
	return &Handler{
		orders:   svc.Orders,
		sync:     svc.Sync,
		logs:     svc.Logs,
		settings: svc.Settings,
		db:       svc.DB,
		limiter:  limiter,
		validate: newValidator(),
		logger:   util.GetLogger(),
	}
}

// RetryRequest selects the failed attempt to retry
type RetryRequest struct {
	LogID int64 `json:"log_id" validate:"required,gt=0"`
}

// BulkSyncRequest lists the orders to queue
type BulkSyncRequest struct {
	OrderIDs []int64 `json:"order_ids" validate:"required,min=1,max=500,dive,gt=0"`
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(requestLogger(h.logger))

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	limited := func(c *gin.Context) { c.Next() }
	if h.limiter != nil {
		limited = h.limiter.Handler()
	}

	v1 := router.Group("/api/v1")
	{
		v1.POST("/products", h.createProduct)

		v1.POST("/orders", h.createOrder)
		v1.GET("/orders/:id", h.getOrder)
		v1.PATCH("/orders/:id/status", h.updateOrderStatus)
		v1.POST("/orders/:id/sync", limited, h.syncOrder)
		v1.POST("/orders/:id/sync/retry", limited, h.retrySync)
		v1.GET("/orders/:id/sync/logs", h.orderSyncLogs)

		v1.POST("/sync/bulk", limited, h.bulkSync)
		v1.GET("/sync/logs", h.listSyncLogs)
		v1.DELETE("/sync/logs", h.purgeSyncLogs)
		v1.GET("/sync/stats", h.syncStats)
		v1.GET("/sync/settings", h.getSettings)
		v1.PUT("/sync/settings", h.updateSettings)
		v1.POST("/sync/test-connection", limited, h.testConnection)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck reports ready once the database answers
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readyTimeout)
	defer cancel()

	if h.db != nil {
		if err := h.db.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "not ready",
				"details": err.Error(),
			})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

func (h *Handler) createProduct(c *gin.Context) {
	var req service.CreateProductRequest
	if err := bindAndValidate(c, &req, h.validate); err != nil {
		return
	}

	product, err := h.orders.CreateProduct(c.Request.Context(), &req)
	if err != nil {
		h.writeError(c, "Failed to create product", err)
		return
	}

	c.JSON(http.StatusCreated, product)
}

// createOrder handles order creation
func (h *Handler) createOrder(c *gin.Context) {
	var req service.CreateOrderRequest
	if err := bindAndValidate(c, &req, h.validate); err != nil {
		return
	}

	order, err := h.orders.CreateOrder(c.Request.Context(), &req)
	if err != nil {
		h.writeError(c, "Failed to create order", err)
		return
	}

	c.JSON(http.StatusCreated, order)
}

// getOrder handles get order by ID
func (h *Handler) getOrder(c *gin.Context) {
	orderID, ok := parseID(c)
	if !ok {
		return
	}

	details, err := h.orders.GetOrder(c.Request.Context(), orderID)
	if err != nil {
		h.writeError(c, "Failed to get order", err)
		return
	}

	c.JSON(http.StatusOK, details)
}

func (h *Handler) updateOrderStatus(c *gin.Context) {
	orderID, ok := parseID(c)
	if !ok {
		return
	}

	var req service.UpdateStatusRequest
	if err := bindAndValidate(c, &req, h.validate); err != nil {
		return
	}

	order, err := h.orders.UpdateStatus(c.Request.Context(), orderID, req.Status)
	if err != nil {
		h.writeError(c, "Failed to update order status", err)
		return
	}

	c.JSON(http.StatusOK, order)
}

// syncOrder runs a forced sync and reports its outcome
func (h *Handler) syncOrder(c *gin.Context) {
	orderID, ok := parseID(c)
	if !ok {
		return
	}

	result, err := h.sync.SyncNow(c.Request.Context(), orderID)
	if err != nil {
		h.writeError(c, "Failed to sync order", err)
		return
	}

	writeSyncResult(c, result)
}

func (h *Handler) retrySync(c *gin.Context) {
	orderID, ok := parseID(c)
	if !ok {
		return
	}

	var req RetryRequest
	if err := bindAndValidate(c, &req, h.validate); err != nil {
		return
	}

	result, err := h.sync.Retry(c.Request.Context(), orderID, req.LogID)
	if err != nil {
		h.writeError(c, "Failed to retry sync", err)
		return
	}

	writeSyncResult(c, result)
}

func (h *Handler) orderSyncLogs(c *gin.Context) {
	orderID, ok := parseID(c)
	if !ok {
		return
	}

	logs, err := h.logs.OrderLogs(c.Request.Context(), orderID)
	if err != nil {
		h.writeError(c, "Failed to get sync logs", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"logs": logs})
}

func (h *Handler) bulkSync(c *gin.Context) {
	var req BulkSyncRequest
	if err := bindAndValidate(c, &req, h.validate); err != nil {
		return
	}

	result, err := h.sync.BulkSync(c.Request.Context(), req.OrderIDs)
	if err != nil {
		h.writeError(c, "Failed to queue bulk sync", err)
		return
	}

	c.JSON(http.StatusAccepted, result)
}

func (h *Handler) listSyncLogs(c *gin.Context) {
	page, ok := queryInt(c, "page", 1)
	if !ok {
		return
	}
	perPage, ok := queryInt(c, "per_page", 0)
	if !ok {
		return
	}

	result, err := h.logs.ListLogs(c.Request.Context(), c.Query("status"), page, perPage)
	if err != nil {
		h.writeError(c, "Failed to list sync logs", err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *Handler) purgeSyncLogs(c *gin.Context) {
	days, ok := queryInt(c, "days", 30)
	if !ok {
		return
	}

	deleted, err := h.logs.PurgeLogs(c.Request.Context(), days)
	if err != nil {
		h.writeError(c, "Failed to purge sync logs", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": deleted, "days": days})
}

func (h *Handler) syncStats(c *gin.Context) {
	stats, err := h.logs.Stats(c.Request.Context())
	if err != nil {
		h.writeError(c, "Failed to get sync stats", err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

func (h *Handler) getSettings(c *gin.Context) {
	view, err := h.settings.Settings(c.Request.Context())
	if err != nil {
		h.writeError(c, "Failed to get settings", err)
		return
	}

	c.JSON(http.StatusOK, view)
}

func (h *Handler) updateSettings(c *gin.Context) {
	var req service.UpdateSettingsRequest
	if err := bindAndValidate(c, &req, h.validate); err != nil {
		return
	}

	view, err := h.settings.UpdateSettings(c.Request.Context(), &req)
	if err != nil {
		h.writeError(c, "Failed to update settings", err)
		return
	}

	c.JSON(http.StatusOK, view)
}

func (h *Handler) testConnection(c *gin.Context) {
	result, err := h.settings.TestConnection(c.Request.Context())
	if err != nil {
		h.writeError(c, "Failed to test connection", err)
		return
	}

	status := http.StatusOK
	if !result.OK {
		status = http.StatusBadGateway
	}
	c.JSON(status, result)
}

// writeSyncResult answers 502 when the receiver rejected or never got the
// payload; the attempt is still recorded.
func writeSyncResult(c *gin.Context, result *service.SyncResult) {
	status := http.StatusOK
	if !result.Success {
		status = http.StatusBadGateway
	}
	c.JSON(status, result)
}

// writeError maps service errors onto HTTP statuses
func (h *Handler) writeError(c *gin.Context, message string, err error) {
	status := http.StatusInternalServerError

	var tooSoon *service.RetryTooSoonError
	switch {
	case errors.Is(err, service.ErrOrderNotFound),
		errors.Is(err, service.ErrProductNotFound),
		errors.Is(err, service.ErrLogNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrNotConfigured),
		errors.Is(err, service.ErrNoValidSKUs):
		status = http.StatusUnprocessableEntity
	case errors.As(err, &tooSoon):
		c.Header("Retry-After", strconv.Itoa(int(math.Ceil(tooSoon.Wait.Seconds()))))
		status = http.StatusConflict
	case errors.Is(err, service.ErrSyncInProgress),
		errors.Is(err, service.ErrLogNotRetryable),
		errors.Is(err, service.ErrRetryLimitReached):
		status = http.StatusConflict
	case errors.Is(err, service.ErrInvalidPurgeDays):
		status = http.StatusBadRequest
	}

	if status == http.StatusInternalServerError {
		h.logger.Error(message,
			zap.String("path", c.FullPath()),
			zap.Error(err))
	}

	c.JSON(status, gin.H{
		"error":   message,
		"details": err.Error(),
	})
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid order ID",
		})
		return 0, false
	}
	return id, true
}

func queryInt(c *gin.Context, key string, defaultVal int) (int, bool) {
	raw := c.Query(key)
	if raw == "" {
		return defaultVal, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid query parameter " + key,
			"details": err.Error(),
		})
		return 0, false
	}
	return v, true
}

// requestLogger logs one line per request
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		logger.Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()))
	}
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
