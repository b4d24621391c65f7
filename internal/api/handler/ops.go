package handler

import (
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tripweave/tripweave/internal/api/models"
	"github.com/tripweave/tripweave/internal/api/response"
	"github.com/tripweave/tripweave/internal/budget"
	"github.com/tripweave/tripweave/internal/registry"
)

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version   string
	buildTime string
	pool      *pgxpool.Pool
	registry  *registry.Registry
	budget    *budget.Tracker
}

// NewOpsHandler creates a new OpsHandler. pool may be nil when the service
// runs without a database.
func NewOpsHandler(version, buildTime string, pool *pgxpool.Pool, reg *registry.Registry, tracker *budget.Tracker) *OpsHandler {
	return &OpsHandler{
		version:   version,
		buildTime: buildTime,
		pool:      pool,
		registry:  reg,
		budget:    tracker,
	}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
		Details: map[string]interface{}{
			"version":   h.version,
			"buildTime": h.buildTime,
		},
	}
	response.JSON(w, r, http.StatusOK, health)
}

// ReadinessCheck handles GET /v1/ops/ready - readiness check. Not ready
// until the provider registry is populated and the database answers pings.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
	}

	if h.registry == nil || h.registry.Count() == 0 {
		health.Status = models.HealthStatusFail
		response.JSON(w, r, http.StatusServiceUnavailable, health)
		return
	}

	if h.pool != nil {
		if err := h.pool.Ping(r.Context()); err != nil {
			health.Status = models.HealthStatusFail
			response.JSON(w, r, http.StatusServiceUnavailable, health)
			return
		}
	}

	response.JSON(w, r, http.StatusOK, health)
}

// SystemStatus handles GET /v1/ops/status - subsystem and budget status.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	now := models.Timestamp(time.Now())
	status := models.SystemStatus{
		Status: models.HealthStatusOK,
		Time:   now,
	}

	dbStatus := models.SubsystemStatus{Name: "postgres", Status: models.HealthStatusOK}
	if h.pool != nil {
		if err := h.pool.Ping(r.Context()); err != nil {
			dbStatus.Status = models.HealthStatusFail
			status.Status = models.HealthStatusDegraded
		}
	}
	status.Subsystems = append(status.Subsystems, dbStatus)

	if h.budget != nil {
		usage := h.budget.Snapshot()
		status.Budget = &usage
		if h.budget.Exhausted() {
			status.Status = models.HealthStatusDegraded
		}
	}

	response.JSON(w, r, http.StatusOK, status)
}
