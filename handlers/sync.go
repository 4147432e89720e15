package handlers

import (
	"context"
	"net/http"
	"time"

	"rapidcare/models"
	syncsvc "rapidcare/services/sync"
	"rapidcare/utils"

	"github.com/gin-gonic/gin"
)

// SyncHandler exposes the polling core: hospital sync lifecycle, raw session
// control, connection status and snapshots.
type SyncHandler struct {
	Orch     *syncsvc.Orchestrator
	Registry *syncsvc.Registry
	Fetcher  syncsvc.Fetcher
	MaxPoll  time.Duration
}

func NewSyncHandler(orch *syncsvc.Orchestrator, registry *syncsvc.Registry, fetcher syncsvc.Fetcher, maxPoll time.Duration) *SyncHandler {
	return &SyncHandler{Orch: orch, Registry: registry, Fetcher: fetcher, MaxPoll: maxPoll}
}

// StartHospitalSyncHandler opens the hospital's polling sessions.
func (h *SyncHandler) StartHospitalSyncHandler(c *gin.Context) {
	hospitalID := c.Param("id")
	if err := h.Orch.StartHospitalSync(hospitalID); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "failed to start hospital sync", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"hospitalId": hospitalID, "status": "syncing"})
}

// StopHospitalSyncHandler stops the hospital's polling sessions.
func (h *SyncHandler) StopHospitalSyncHandler(c *gin.Context) {
	hospitalID := c.Param("id")
	h.Orch.StopHospitalSync(hospitalID)
	c.JSON(http.StatusOK, gin.H{"hospitalId": hospitalID, "status": "stopped"})
}

// SyncStatusHandler reports every live session's state.
func (h *SyncHandler) SyncStatusHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"sessions": h.Registry.Status()})
}

// ConnectionStatusHandler reports the aggregate connection state for one hospital.
func (h *SyncHandler) ConnectionStatusHandler(c *gin.Context) {
	c.JSON(http.StatusOK, h.Orch.ConnectionStatus(c.Param("id")))
}

// SnapshotHandler returns the hospital's current consistent snapshot.
func (h *SyncHandler) SnapshotHandler(c *gin.Context) {
	c.JSON(http.StatusOK, h.Orch.Snapshot(c.Param("id")))
}

type startSessionRequest struct {
	SessionID    string `json:"sessionId" binding:"required"`
	EndpointKind string `json:"endpointKind" binding:"required"`
	ScopeID      string `json:"scopeId" binding:"required"`
	IntervalMs   int    `json:"intervalMs"`
	ResourceType string `json:"resourceType"`
	Status       string `json:"status"`
}

// StartSessionHandler starts (or replaces) one raw polling session with a
// caller-chosen id. The session only feeds the status surface; dashboards
// that need ledger reconciliation use the hospital sync endpoints instead.
func (h *SyncHandler) StartSessionHandler(c *gin.Context) {
	var req startSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "invalid session request", err.Error())
		return
	}

	var fetch syncsvc.FetchFunc
	switch req.EndpointKind {
	case models.EndpointResources:
		fetch = func(ctx context.Context) (*models.FetchResult, error) {
			return h.Fetcher.FetchResources(ctx, req.ScopeID, req.ResourceType)
		}
	case models.EndpointBookings:
		fetch = func(ctx context.Context) (*models.FetchResult, error) {
			return h.Fetcher.FetchBookings(ctx, req.ScopeID, req.Status)
		}
	case models.EndpointDashboard:
		fetch = func(ctx context.Context) (*models.FetchResult, error) {
			return h.Fetcher.FetchDashboard(ctx, req.ScopeID)
		}
	default:
		utils.JSONError(c, http.StatusBadRequest, "invalid session request",
			"endpointKind must be resources, bookings or dashboard")
		return
	}

	// Sessions outlive the request that created them.
	interval := time.Duration(req.IntervalMs) * time.Millisecond
	session, err := h.Registry.Start(context.Background(), req.SessionID, req.EndpointKind, req.ScopeID, syncsvc.SessionConfig{
		Interval: interval,
		Backoff:  syncsvc.Policy{Base: interval, Max: h.MaxPoll},
		Fetch:    fetch,
	})
	if err != nil {
		utils.JSONError(c, http.StatusBadRequest, "failed to start session", err.Error())
		return
	}

	// Drain the stream; the caller observes this session through getStatus.
	go func() {
		for range session.Events() {
		}
	}()

	c.JSON(http.StatusOK, session.Status())
}

// StopSessionHandler stops one session by id.
func (h *SyncHandler) StopSessionHandler(c *gin.Context) {
	sessionID := c.Param("sessionId")
	if !h.Registry.Stop(sessionID) {
		utils.JSONError(c, http.StatusNotFound, "session not found", sessionID)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessionId": sessionID, "status": "stopped"})
}

// SessionStatusHandler returns one session's state.
func (h *SyncHandler) SessionStatusHandler(c *gin.Context) {
	session, ok := h.Registry.Get(c.Param("sessionId"))
	if !ok {
		utils.JSONError(c, http.StatusNotFound, "session not found", c.Param("sessionId"))
		return
	}
	c.JSON(http.StatusOK, session.Status())
}

// SetAuthTokenHandler rotates the upstream auth token used by all sessions.
func (h *SyncHandler) SetAuthTokenHandler(c *gin.Context) {
	var req struct {
		Token string `json:"token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "invalid token request", err.Error())
		return
	}
	h.Registry.SetAuthToken(req.Token)
	c.JSON(http.StatusOK, gin.H{"status": "token updated"})
}
