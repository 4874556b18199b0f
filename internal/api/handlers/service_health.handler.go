package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/platformbuilds/mirador-servicehealth/internal/models"
	"github.com/platformbuilds/mirador-servicehealth/internal/services"
	"github.com/platformbuilds/mirador-servicehealth/internal/timerange"
	"github.com/platformbuilds/mirador-servicehealth/pkg/logger"
)

// HealthQueries is what the handler needs from the service health service.
type HealthQueries interface {
	services.HealthSource
	AttributeValues(ctx context.Context, window models.TimeWindow) (map[string][]string, error)
}

// Refresher drives the dashboard result holders.
type Refresher interface {
	Refresh(ctx context.Context, in services.DashboardInputs) (models.DashboardState, bool)
	State() models.DashboardState
}

type ServiceHealthHandler struct {
	health      HealthQueries
	dashboard   Refresher
	resolver    *timerange.Resolver
	defaultFrom string
	defaultTo   string
	logger      logger.Logger
}

func NewServiceHealthHandler(health HealthQueries, dashboard Refresher, resolver *timerange.Resolver, defaultFrom, defaultTo string, logger logger.Logger) *ServiceHealthHandler {
	if defaultFrom == "" {
		defaultFrom = "now-1h"
	}
	if defaultTo == "" {
		defaultTo = "now"
	}
	return &ServiceHealthHandler{
		health:      health,
		dashboard:   dashboard,
		resolver:    resolver,
		defaultFrom: defaultFrom,
		defaultTo:   defaultTo,
		logger:      logger,
	}
}

// Register mounts the service health routes on group.
func (h *ServiceHealthHandler) Register(group gin.IRoutes) {
	group.GET("/window", h.GetWindow)
	group.GET("/top-services", h.GetTopServices)
	group.GET("/top-dependencies", h.GetTopDependencies)
	group.GET("/attributes", h.GetAttributes)
	group.POST("/services", h.PostServiceTable)
	group.POST("/refresh", h.PostRefresh)
	group.GET("/state", h.GetState)
}

func (h *ServiceHealthHandler) resolve(req models.TimeWindowRequest) (models.TimeWindow, error) {
	from, to := req.From, req.To
	if from == "" {
		from = h.defaultFrom
	}
	if to == "" {
		to = h.defaultTo
	}
	return h.resolver.Resolve(from, to)
}

// windowFromQuery resolves ?from&to and writes a 400 on failure.
func (h *ServiceHealthHandler) windowFromQuery(c *gin.Context) (models.TimeWindow, bool) {
	var req models.TimeWindowRequest
	_ = c.ShouldBindQuery(&req)
	window, err := h.resolve(req)
	if err != nil {
		h.writeError(c, err)
		return models.TimeWindow{}, false
	}
	return window, true
}

func parseK(c *gin.Context) (int, bool) {
	raw := c.Query("k")
	if raw == "" {
		return 0, true
	}
	k, err := strconv.Atoi(raw)
	if err != nil || k < 1 || k > 100 {
		c.JSON(http.StatusBadRequest, gin.H{
			"status": "error",
			"error":  "k must be an integer between 1 and 100",
		})
		return 0, false
	}
	return k, true
}

// GET /api/v1/service-health/window
func (h *ServiceHealthHandler) GetWindow(c *gin.Context) {
	window, ok := h.windowFromQuery(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "data": timerange.Describe(window)})
}

// GET /api/v1/service-health/top-services
func (h *ServiceHealthHandler) GetTopServices(c *gin.Context) {
	window, ok := h.windowFromQuery(c)
	if !ok {
		return
	}
	k, ok := parseK(c)
	if !ok {
		return
	}
	widget, err := h.health.TopServiceFaults(c.Request.Context(), window, c.Query("environment"), k)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "data": widget})
}

// GET /api/v1/service-health/top-dependencies
func (h *ServiceHealthHandler) GetTopDependencies(c *gin.Context) {
	window, ok := h.windowFromQuery(c)
	if !ok {
		return
	}
	k, ok := parseK(c)
	if !ok {
		return
	}
	widget, err := h.health.TopDependencyFaults(c.Request.Context(), window, c.Query("environment"), c.Query("service"), k)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "data": widget})
}

// GET /api/v1/service-health/attributes
func (h *ServiceHealthHandler) GetAttributes(c *gin.Context) {
	window, ok := h.windowFromQuery(c)
	if !ok {
		return
	}
	vocab, err := h.health.AttributeValues(c.Request.Context(), window)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "data": vocab})
}

// POST /api/v1/service-health/services
func (h *ServiceHealthHandler) PostServiceTable(c *gin.Context) {
	var req models.ServiceTableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status":  "error",
			"error":   "Invalid service table request format",
			"details": err.Error(),
		})
		return
	}
	window, err := h.resolve(req.TimeWindowRequest)
	if err != nil {
		h.writeError(c, err)
		return
	}
	table, err := h.health.ServiceTable(c.Request.Context(), window, req.Environment, req.Filter)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "data": table})
}

// POST /api/v1/service-health/refresh
//
// Widget failures are reported inside the returned state, so the response is
// 200 unless the request itself is invalid.
func (h *ServiceHealthHandler) PostRefresh(c *gin.Context) {
	var req models.DashboardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status":  "error",
			"error":   "Invalid refresh request format",
			"details": err.Error(),
		})
		return
	}
	window, err := h.resolve(req.TimeWindowRequest)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if req.TopK < 0 || req.TopK > 100 {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": "k must be between 1 and 100"})
		return
	}

	state, refreshed := h.dashboard.Refresh(c.Request.Context(), services.DashboardInputs{
		Window:       window,
		Environment:  req.Environment,
		Service:      req.Service,
		Filter:       req.Filter,
		RefreshToken: req.RefreshToken,
		TopK:         req.TopK,
	})
	c.JSON(http.StatusOK, gin.H{
		"status":    "success",
		"data":      state,
		"refreshed": refreshed,
	})
}

// GET /api/v1/service-health/state
func (h *ServiceHealthHandler) GetState(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "success", "data": h.dashboard.State()})
}

// writeError maps time range and query errors onto HTTP statuses.
func (h *ServiceHealthHandler) writeError(c *gin.Context, err error) {
	var tre *timerange.InvalidTimeRangeError
	if errors.As(err, &tre) {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": tre.Error()})
		return
	}

	qe := services.AsQueryError(err)
	status := http.StatusBadGateway
	switch qe.Kind {
	case services.KindConfiguration:
		status = http.StatusServiceUnavailable
	case services.KindUnknown:
		status = http.StatusInternalServerError
	}
	h.logger.Error("Service health query failed",
		"path", c.FullPath(),
		"kind", qe.Kind,
		"error", err,
	)
	_ = c.Error(err)
	c.JSON(status, gin.H{
		"status":     "error",
		"error_kind": qe.Kind,
		"error":      qe.UserMessage(),
	})
}
