// Package http implements the command surface the UI layer consumes.
package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/agentkube/desktop/backend/internal/monitoring"
	"github.com/agentkube/desktop/backend/internal/providers/network"
	"github.com/agentkube/desktop/backend/internal/providers/terminal"
	"github.com/agentkube/desktop/backend/internal/service"
	"github.com/agentkube/desktop/backend/internal/shared/id"
	"github.com/agentkube/desktop/backend/internal/shared/types"
	"github.com/gin-gonic/gin"
)

// Handlers contains all HTTP handlers
type Handlers struct {
	sessions *terminal.Manager
	registry *service.Registry
	monitor  *network.Monitor
	metrics  *monitoring.Metrics
}

// NewHandlers creates a new handler set
func NewHandlers(
	sessions *terminal.Manager,
	registry *service.Registry,
	monitor *network.Monitor,
	metrics *monitoring.Metrics,
) *Handlers {
	return &Handlers{
		sessions: sessions,
		registry: registry,
		monitor:  monitor,
		metrics:  metrics,
	}
}

// Root handles the basic liveness check
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "Desktop Backend (Go)",
	})
}

// Health handles detailed health check
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":           "healthy",
		"sessions":         h.sessions.Count(),
		"network_online":   h.monitor.Status().Online,
		"service_registry": h.registry.Stats(),
	})
}

// CreateSession creates a new terminal session
func (h *Handlers) CreateSession(c *gin.Context) {
	var req types.CreateSessionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	opts := terminal.CreateOptions{}
	if req.Name != nil {
		opts.Name = *req.Name
	}
	if req.Cols != nil {
		opts.Cols = *req.Cols
	}
	if req.Rows != nil {
		opts.Rows = *req.Rows
	}
	if req.InitialCommand != nil {
		opts.InitialCommand = *req.InitialCommand
	}

	info, err := h.sessions.Create(opts)
	if err != nil {
		h.sessionError(c, err)
		return
	}

	h.metrics.SessionsCreated.Inc()
	h.metrics.SessionsActive.Set(float64(h.sessions.Count()))
	c.JSON(http.StatusCreated, info)
}

// ListSessions lists all terminal sessions
func (h *Handlers) ListSessions(c *gin.Context) {
	sessions := h.sessions.List()
	c.JSON(http.StatusOK, gin.H{
		"sessions": sessions,
		"count":    len(sessions),
	})
}

// GetSession returns one session's metadata
func (h *Handlers) GetSession(c *gin.Context) {
	info, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		h.sessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

// WriteSession sends input to a session
func (h *Handlers) WriteSession(c *gin.Context) {
	var req types.WriteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.sessions.Write(c.Param("id"), []byte(req.Data)); err != nil {
		h.sessionError(c, err)
		return
	}

	h.metrics.BytesWritten.Add(float64(len(req.Data)))
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// ReadSession drains buffered output from a session
func (h *Handlers) ReadSession(c *gin.Context) {
	output, err := h.sessions.Read(c.Param("id"))
	if err != nil {
		h.sessionError(c, err)
		return
	}

	h.metrics.BytesRead.Add(float64(len(output)))
	c.JSON(http.StatusOK, gin.H{
		"data":   terminal.LossyText(output),
		"length": len(output),
	})
}

// ResizeSession updates the pty geometry
func (h *Handlers) ResizeSession(c *gin.Context) {
	var req types.ResizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.sessions.Resize(c.Param("id"), req.Cols, req.Rows); err != nil {
		h.sessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// RenameSession updates a session's display name
func (h *Handlers) RenameSession(c *gin.Context) {
	var req types.RenameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.sessions.Rename(c.Param("id"), req.Name); err != nil {
		h.sessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// CloseSession removes a session
func (h *Handlers) CloseSession(c *gin.Context) {
	if err := h.sessions.Close(c.Param("id")); err != nil {
		h.sessionError(c, err)
		return
	}

	h.metrics.SessionsClosed.Inc()
	h.metrics.SessionsActive.Set(float64(h.sessions.Count()))
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// CloseAllSessions removes every session
func (h *Handlers) CloseAllSessions(c *gin.Context) {
	count := h.sessions.CloseAll()

	h.metrics.SessionsClosed.Add(float64(count))
	h.metrics.SessionsActive.Set(0)
	c.JSON(http.StatusOK, gin.H{"success": true, "count": count})
}

// NetworkStatus returns the last observed connectivity state
func (h *Handlers) NetworkStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.monitor.Status())
}

// StartNetworkMonitoring starts the background reachability poller. The
// poller outlives the request, so it is detached from the request context.
func (h *Handlers) StartNetworkMonitoring(c *gin.Context) {
	h.monitor.Start(context.Background())
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// ListServices lists registered service definitions
func (h *Handlers) ListServices(c *gin.Context) {
	services := h.registry.List(nil)
	c.JSON(http.StatusOK, gin.H{
		"services": services,
		"stats":    h.registry.Stats(),
	})
}

// ExecuteService dispatches a tool call through the service registry
func (h *Handlers) ExecuteService(c *gin.Context) {
	var req types.ExecuteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	reqID := id.NewRequestID().String()
	appCtx := &types.Context{RequestID: &reqID}

	timer := monitoring.NewTimer(h.metrics, serviceOf(req.ToolID), req.ToolID)
	result, err := h.registry.Execute(c.Request.Context(), req.ToolID, req.Params, appCtx)
	if err != nil {
		timer.Stop("error")
		h.sessionError(c, err)
		return
	}
	timer.Stop("ok")

	c.JSON(http.StatusOK, result)
}

// sessionError maps manager errors to status codes: unknown id is 404,
// drained-and-disconnected is 410, a rejected geometry is 400, anything
// else 500.
func (h *Handlers) sessionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, terminal.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, terminal.ErrSessionClosed):
		c.JSON(http.StatusGone, gin.H{"error": err.Error()})
	case errors.Is(err, terminal.ErrInvalidSize):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func serviceOf(toolID string) string {
	for i := 0; i < len(toolID); i++ {
		if toolID[i] == '.' {
			return toolID[:i]
		}
	}
	return toolID
}
