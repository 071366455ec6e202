// Package api holds the typed operations of the Taste AI service.
// Each group is a thin contract over the transport; failures come back unchanged.
package api

import (
	"context"
	"log/slog"

	"TasteClient/internal/domain"
	"TasteClient/internal/infrastructure/transport"
)

// Endpoint paths relative to the service base URL.
const (
	PathLogin          = "/api/v1/auth/login"
	PathScore          = "/api/v1/aesthetic/score"
	PathBatchScore     = "/api/v1/aesthetic/batch-score"
	PathTrendsCurrent  = "/api/v1/trends/current"
	PathTrendsPredict  = "/api/v1/trends/predict"
	PathHealth         = "/health"
	PathHealthDetailed = "/health/detailed"
	PathMetrics        = "/metrics"
)

// Doer sends one request. *transport.Client implements it.
type Doer interface {
	Do(ctx context.Context, req transport.Request) (*transport.Response, error)
}

// TokenStore is the session surface the auth group writes to.
type TokenStore interface {
	Initialize(ctx context.Context) error
	Set(ctx context.Context, token domain.Credential) error
	Clear(ctx context.Context) error
	Current() (domain.Credential, bool)
}

// Client groups the operations by backend area.
type Client struct {
	Auth      *AuthAPI
	Aesthetic *AestheticAPI
	Trends    *TrendsAPI
	System    *SystemAPI
}

// New builds every group over the same transport.
func New(doer Doer, store TokenStore, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		Auth:      &AuthAPI{doer: doer, store: store, logger: log.With("api", "auth")},
		Aesthetic: &AestheticAPI{doer: doer, logger: log.With("api", "aesthetic")},
		Trends:    &TrendsAPI{doer: doer, logger: log.With("api", "trends")},
		System:    &SystemAPI{doer: doer},
	}
}

func getJSON(ctx context.Context, doer Doer, req transport.Request, v any) error {
	resp, err := doer.Do(ctx, req)
	if err != nil {
		return err
	}
	return resp.DecodeJSON(v)
}
