package handler

import (
	"net/http"

	"github.com/tripweave/tripweave/internal/api/models"
	"github.com/tripweave/tripweave/internal/api/response"
	"github.com/tripweave/tripweave/internal/provider/resilience"
	"github.com/tripweave/tripweave/internal/registry"
)

// ProviderHandler exposes live provider state.
type ProviderHandler struct {
	registry *registry.Registry
	breakers *resilience.BreakerSet
}

// NewProviderHandler creates a new ProviderHandler.
func NewProviderHandler(reg *registry.Registry, breakers *resilience.BreakerSet) *ProviderHandler {
	return &ProviderHandler{registry: reg, breakers: breakers}
}

// Health handles GET /v1/providers/health.
func (h *ProviderHandler) Health(w http.ResponseWriter, r *http.Request) {
	providers := h.registry.List()

	out := make([]models.ProviderHealth, 0, len(providers))
	for _, p := range providers {
		categories := make([]string, 0, len(p.Categories))
		for _, c := range p.Categories {
			categories = append(categories, string(c))
		}

		out = append(out, models.ProviderHealth{
			Code:                p.Code,
			Name:                p.Name,
			Categories:          categories,
			Enabled:             p.Enabled,
			HealthScore:         p.HealthScore,
			AvgLatencyMS:        p.AvgLatencyMS,
			ConsecutiveFailures: p.ConsecutiveFailures,
			CircuitState:        h.breakers.State(p.Code).String(),
			UpdatedAt:           models.Timestamp(p.UpdatedAt),
		})
	}

	response.JSON(w, r, http.StatusOK, models.ProviderHealthResponse{Success: true, Providers: out})
}
