package api

import (
	"context"
	"net/http"

	"TasteClient/internal/domain"
	"TasteClient/internal/infrastructure/transport"
)

// SystemAPI covers the operational endpoints.
type SystemAPI struct {
	doer Doer
}

// Health reports liveness from GET /health.
func (s *SystemAPI) Health(ctx context.Context) (domain.Health, error) {
	var out domain.Health
	err := getJSON(ctx, s.doer, transport.Request{Method: http.MethodGet, Path: PathHealth}, &out)
	return out, err
}

// DetailedHealth adds per-component status from GET /health/detailed.
func (s *SystemAPI) DetailedHealth(ctx context.Context) (domain.DetailedHealth, error) {
	var out domain.DetailedHealth
	err := getJSON(ctx, s.doer, transport.Request{Method: http.MethodGet, Path: PathHealthDetailed}, &out)
	return out, err
}

// Metrics returns the service metrics document as-is.
func (s *SystemAPI) Metrics(ctx context.Context) (domain.Metrics, error) {
	var out domain.Metrics
	err := getJSON(ctx, s.doer, transport.Request{Method: http.MethodGet, Path: PathMetrics}, &out)
	return out, err
}
