package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/quiz-overview/internal/response"
)

const healthTimeout = 2 * time.Second

// Probe checks one backing service.
type Probe func(ctx context.Context) error

// HealthHandler reports liveness and the reachability of Postgres and Redis.
type HealthHandler struct {
	probes    map[string]Probe
	startTime time.Time
	log       zerolog.Logger
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(probes map[string]Probe, log zerolog.Logger) *HealthHandler {
	return &HealthHandler{
		probes:    probes,
		startTime: time.Now(),
		log:       log.With().Str("component", "health_handler").Logger(),
	}
}

// Health godoc
// GET /health
// Returns 200 when every probe passes and 503 otherwise.
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string, len(h.probes))
	for name, probe := range h.probes {
		if err := probe(ctx); err != nil {
			h.log.Warn().Err(err).Str("probe", name).Msg("Health probe failed")
			checks[name] = "down"
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	overall := "ok"
	if status != http.StatusOK {
		overall = "degraded"
	}
	response.Success(c, status, gin.H{
		"status": overall,
		"checks": checks,
		"uptime": time.Since(h.startTime).Round(time.Second).String(),
	})
}
