package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
)

// Health statuses, ordered from best to worst.
const (
	statusHealthy   = "healthy"
	statusDegraded  = "degraded"
	statusUnhealthy = "unhealthy"
)

var statusRank = map[string]int{statusHealthy: 0, statusDegraded: 1, statusUnhealthy: 2}

func (s *Server) registerHealthRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "healthCheck",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Description: "Reports the store and the catalog search index. The store is required; a missing index only degrades the server",
		Tags:        []string{"Health"},
	}, s.handleHealthCheck)
}

// ComponentHealth describes the health of a single component.
type ComponentHealth struct {
	Status  string `json:"status" enum:"healthy,degraded,unhealthy" doc:"Component status"`
	Latency string `json:"latency,omitempty" doc:"Response time for this component"`
	Message string `json:"message,omitempty" doc:"Driver name, document count or failure reason"`
}

// HealthResponse contains health check data in API responses.
type HealthResponse struct {
	Status     string                     `json:"status" enum:"healthy,degraded,unhealthy" doc:"Worst component status"`
	Components map[string]ComponentHealth `json:"components" doc:"Individual component statuses"`
}

// HealthOutput wraps the health response for Huma.
type HealthOutput struct {
	Body HealthResponse
}

// componentCheck checks one component. A failing optional component is reported as
// degraded instead of unhealthy.
type componentCheck struct {
	name     string
	required bool
	check    func(ctx context.Context) (message string, err error)
}

func (s *Server) componentChecks() []componentCheck {
	return []componentCheck{
		{name: "database", required: true, check: s.pingStore},
		{name: "search", check: s.countSearchDocuments},
	}
}

func (s *Server) handleHealthCheck(ctx context.Context, _ *struct{}) (*HealthOutput, error) {
	resp := HealthResponse{Status: statusHealthy, Components: make(map[string]ComponentHealth)}

	for _, p := range s.componentChecks() {
		c := runCheck(ctx, p)
		resp.Components[p.name] = c
		if statusRank[c.Status] > statusRank[resp.Status] {
			resp.Status = c.Status
		}
	}
	return &HealthOutput{Body: resp}, nil
}

func runCheck(ctx context.Context, p componentCheck) ComponentHealth {
	start := time.Now()
	msg, err := p.check(ctx)
	c := ComponentHealth{Status: statusHealthy, Latency: time.Since(start).String(), Message: msg}
	if err == nil {
		return c
	}

	c.Message = err.Error()
	c.Status = statusDegraded
	if p.required {
		c.Status = statusUnhealthy
	}
	return c
}

func (s *Server) pingStore(ctx context.Context) (string, error) {
	if s.store == nil {
		return "", errors.New("database not configured")
	}
	if err := s.store.Ping(ctx); err != nil {
		return "", errors.New("database ping failed")
	}
	return s.store.Driver(), nil
}

func (s *Server) countSearchDocuments(context.Context) (string, error) {
	if s.services == nil || s.services.Search == nil {
		return "", errors.New("search service not configured")
	}
	n, err := s.services.Search.DocumentCount()
	if err != nil {
		return "", errors.New("search index unreachable")
	}
	return fmt.Sprintf("%d documents", n), nil
}
