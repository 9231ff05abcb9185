package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"booking-service/internal/service"
	"booking-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// oauthStateTTL bounds how long a connect-flow state nonce stays redeemable.
const oauthStateTTL = 10 * time.Minute

type oauthStateStore interface {
	StoreOAuthState(ctx context.Context, state string, tenantID int64, ttl time.Duration) error
	ConsumeOAuthState(ctx context.Context, state string) (int64, error)
}

// Handler contains HTTP handlers
type Handler struct {
	bookingService *service.BookingService
	tokenManager   *service.TokenManager
	states         oauthStateStore
}

// NewHandler creates a new HTTP handler
func NewHandler(bookingService *service.BookingService, tokenManager *service.TokenManager, states oauthStateStore) *Handler {
	return &Handler{
		bookingService: bookingService,
		tokenManager:   tokenManager,
		states:         states,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(traceMiddleware())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/bookings", h.createBooking)
		v1.GET("/bookings/:id", h.getBooking)

		v1.GET("/tenants/:tenantId/calendar", h.calendarStatus)
		v1.GET("/tenants/:tenantId/calendar/connect", h.calendarConnect)
		v1.DELETE("/tenants/:tenantId/calendar", h.calendarDisconnect)
		v1.GET("/calendar/oauth/callback", h.calendarOAuthCallback)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// createBooking handles booking creation
func (h *Handler) createBooking(c *gin.Context) {
	traceID := util.TraceIDFrom(c.Request.Context())

	var req service.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":    "Invalid request body",
			"details":  err.Error(),
			"trace_id": traceID,
		})
		return
	}

	if req.IdempotencyKey == "" {
		req.IdempotencyKey = c.GetHeader("Idempotency-Key")
	}

	resp, err := h.bookingService.CreateBooking(c.Request.Context(), &req)
	if err != nil {
		if errors.Is(err, service.ErrValidation) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":    err.Error(),
				"trace_id": traceID,
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":    "Failed to create booking",
			"details":  err.Error(),
			"trace_id": traceID,
		})
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// getBooking handles get booking by ID
func (h *Handler) getBooking(c *gin.Context) {
	bookingID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid booking ID"})
		return
	}

	booking, err := h.bookingService.GetBooking(c.Request.Context(), bookingID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "Booking not found",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"booking": booking})
}

// calendarConnect redirects the tenant to the provider's authorization page
func (h *Handler) calendarConnect(c *gin.Context) {
	tenantID, err := strconv.ParseInt(c.Param("tenantId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid tenant ID"})
		return
	}

	// The state is a single-use nonce bound to the tenant server-side, so
	// the callback cannot be replayed or pointed at another tenant.
	state := uuid.New().String()
	if err := h.states.StoreOAuthState(c.Request.Context(), state, tenantID, oauthStateTTL); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to start calendar authorization",
			"details": err.Error(),
		})
		return
	}

	authURL, err := h.tokenManager.AuthCodeURL(c.Request.Context(), state)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to start calendar authorization",
			"details": err.Error(),
		})
		return
	}

	c.Redirect(http.StatusFound, authURL)
}

// calendarOAuthCallback completes the authorization handshake
func (h *Handler) calendarOAuthCallback(c *gin.Context) {
	code := c.Query("code")
	state := c.Query("state")
	if code == "" || state == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing code or state"})
		return
	}

	tenantID, err := h.states.ConsumeOAuthState(c.Request.Context(), state)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to validate state",
			"details": err.Error(),
		})
		return
	}
	if tenantID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid or expired state"})
		return
	}

	if err := h.tokenManager.CompleteConnect(c.Request.Context(), tenantID, code); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{
			"error":   "Calendar authorization failed",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"connected": true, "tenant_id": tenantID})
}

// calendarStatus reports a tenant's integration state
func (h *Handler) calendarStatus(c *gin.Context) {
	tenantID, err := strconv.ParseInt(c.Param("tenantId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid tenant ID"})
		return
	}

	integration, err := h.tokenManager.Status(c.Request.Context(), tenantID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to load calendar integration",
			"details": err.Error(),
		})
		return
	}
	if integration == nil {
		c.JSON(http.StatusOK, gin.H{"connected": false})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"connected":    integration.Connected,
		"calendar_id":  integration.CalendarID,
		"token_expiry": integration.TokenExpiry,
	})
}

// calendarDisconnect removes a tenant's integration
func (h *Handler) calendarDisconnect(c *gin.Context) {
	tenantID, err := strconv.ParseInt(c.Param("tenantId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid tenant ID"})
		return
	}

	if err := h.tokenManager.Disconnect(c.Request.Context(), tenantID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to disconnect calendar",
			"details": err.Error(),
		})
		return
	}

	c.Status(http.StatusNoContent)
}

// traceMiddleware attaches a correlation id to the request context. Inbound
// X-Request-Id headers are honored so the platform's id survives end to end.
func traceMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := c.GetHeader("X-Request-Id")
		if traceID == "" {
			traceID = util.NewTraceID()
		}

		ctx := util.WithTraceID(c.Request.Context(), traceID)
		c.Request = c.Request.WithContext(ctx)
		c.Header("X-Trace-Id", traceID)

		c.Next()
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
