package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/listenupapp/clipdeck/internal/http/response"
)

// ComponentHealth describes the health of a single component.
type ComponentHealth struct {
	Status  string `json:"status"`
	Latency string `json:"latency,omitempty"`
	Message string `json:"message,omitempty"`
}

// HealthResponse contains health check data in API responses.
type HealthResponse struct {
	Status     string                     `json:"status"`
	Timelines  int                        `json:"timelines"`
	Components map[string]ComponentHealth `json:"components"`
}

// handleHealthCheck reports overall health. Storage failures make the process
// unhealthy; search trouble only degrades it.
func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	components := make(map[string]ComponentHealth)
	overall := "healthy"

	if s.snapshots != nil {
		db := s.checkDatabase(r.Context())
		components["database"] = db
		if db.Status != "healthy" {
			overall = "unhealthy"
		}
	}

	if s.search != nil {
		idx := s.checkSearchIndex()
		components["search"] = idx
		if idx.Status != "healthy" && overall == "healthy" {
			overall = "degraded"
		}
	}

	if s.bus != nil {
		components["events"] = ComponentHealth{Status: "healthy", Message: strconv.Itoa(s.bus.SubscriberCount()) + " subscribers"}
	}

	status := http.StatusOK
	if overall == "unhealthy" {
		status = http.StatusServiceUnavailable
	}
	response.JSON(w, status, HealthResponse{
		Status:     overall,
		Timelines:  len(s.editor.Timelines()),
		Components: components,
	}, s.logger)
}

// checkDatabase pings the snapshot database.
func (s *Server) checkDatabase(ctx context.Context) ComponentHealth {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	start := time.Now()
	if err := s.snapshots.Ping(ctx); err != nil {
		return ComponentHealth{Status: "unhealthy", Message: err.Error()}
	}
	return ComponentHealth{Status: "healthy", Latency: time.Since(start).String()}
}

// checkSearchIndex verifies the index answers.
func (s *Server) checkSearchIndex() ComponentHealth {
	start := time.Now()
	count, err := s.search.DocumentCount()
	if err != nil {
		return ComponentHealth{Status: "degraded", Message: err.Error()}
	}
	return ComponentHealth{
		Status:  "healthy",
		Latency: time.Since(start).String(),
		Message: strconv.FormatUint(count, 10) + " documents indexed",
	}
}
