package v1

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dmehra2102/prod-golang-projects/dentalsync/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/dentalsync/internal/domain/appointment"
	"github.com/dmehra2102/prod-golang-projects/dentalsync/internal/service"
)

// StageReporter exposes per-source circuit states. It may be nil.
type StageReporter interface {
	StageStates() map[string]string
}

// RunLister reads the sync journal. It is nil when the database is disabled.
type RunLister interface {
	Recent(ctx context.Context, limit int) ([]*domain.SyncRun, error)
}

type SystemHandler struct {
	sync   *service.SyncService
	info   service.SyncOptions
	stages StageReporter
	runs   RunLister
}

func NewSystemHandler(sync *service.SyncService, info service.SyncOptions, stages StageReporter, runs RunLister) *SystemHandler {
	return &SystemHandler{sync: sync, info: info, stages: stages, runs: runs}
}

type healthResponse struct {
	Status             string    `json:"status"`
	Timestamp          time.Time `json:"timestamp"`
	Server             string    `json:"server"`
	Database           string    `json:"database"`
	CachedAppointments int       `json:"cached_appointments"`
}

// GET /api/health
func (h *SystemHandler) Health(c *gin.Context) {
	status := "OK"
	if !h.sync.Connected(c.Request.Context()) {
		status = "DISCONNECTED"
	}
	c.JSON(http.StatusOK, healthResponse{
		Status:             status,
		Timestamp:          time.Now(),
		Server:             h.info.Server,
		Database:           h.info.Database,
		CachedAppointments: h.sync.CachedCount(),
	})
}

type syncStatusResponse struct {
	TotalAppointments   int               `json:"total_appointments"`
	NewAppointments     int               `json:"new_appointments"`
	UpdatedAppointments int               `json:"updated_appointments"`
	ConnectionStatus    string            `json:"connection_status"`
	Server              string            `json:"server"`
	Database            string            `json:"database"`
	LastSync            *time.Time        `json:"last_sync"`
	LastSource          string            `json:"last_source,omitempty"`
	LastError           string            `json:"last_error,omitempty"`
	Sources             map[string]string `json:"sources,omitempty"`
}

// GET /api/sync-status
func (h *SystemHandler) SyncStatus(c *gin.Context) {
	st := h.sync.Status(c.Request.Context())

	resp := syncStatusResponse{
		TotalAppointments:   st.TotalAppointments,
		NewAppointments:     st.NewAppointments,
		UpdatedAppointments: st.UpdatedAppointments,
		ConnectionStatus:    "disconnected",
		Server:              st.Server,
		Database:            st.Database,
		LastSource:          st.LastSource,
		LastError:           st.LastError,
	}
	if st.Connected {
		resp.ConnectionStatus = "connected"
	}
	if !st.LastSync.IsZero() {
		resp.LastSync = &st.LastSync
	}
	if h.stages != nil {
		resp.Sources = h.stages.StageStates()
	}
	c.JSON(http.StatusOK, resp)
}

// POST /api/sync?reset=true
func (h *SystemHandler) Sync(c *gin.Context) {
	var res *service.SyncResult
	if resetRequested(c) {
		res = h.sync.Resync(c.Request.Context(), domain.TriggerManual)
	} else {
		res = h.sync.Sync(c.Request.Context(), domain.TriggerManual)
	}
	c.JSON(http.StatusOK, newAppointmentsResponse(res))
}

// GET /api/sync/runs?limit=50
func (h *SystemHandler) Runs(c *gin.Context) {
	if h.runs == nil {
		respondServiceError(c, appointment.ErrDatabaseUnavailable)
		return
	}

	limit := min(parseQueryInt(c, "limit", 50), 500)
	runs, err := h.runs.Recent(c.Request.Context(), limit)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, orEmpty(runs))
}

func resetRequested(c *gin.Context) bool {
	return c.Query("reset") == "true"
}
