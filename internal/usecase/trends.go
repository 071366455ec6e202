package usecase

import (
	"context"
	"log/slog"

	"TasteClient/internal/domain"
	"TasteClient/internal/ports"
)

// TrendClient fetches trend snapshots. It keeps no cache: every call reaches the source.
type TrendClient struct {
	source ports.TrendSource
	logger *slog.Logger
}

// NewTrendClient wraps source.
func NewTrendClient(source ports.TrendSource, log *slog.Logger) *TrendClient {
	return &TrendClient{source: source, logger: log}
}

// Current returns the current snapshot or the source error unchanged.
func (c *TrendClient) Current(ctx context.Context) ([]domain.Trend, error) {
	return c.source.GetCurrentTrends(ctx)
}

// Predict returns predictions for category; empty means the default category.
func (c *TrendClient) Predict(ctx context.Context, category string) ([]domain.Trend, error) {
	return c.source.PredictTrends(ctx, category)
}

// Dashboard is the presentation-side fetch: trend unavailability must never
// block the caller, so failures are logged and reported as an empty snapshot.
func (c *TrendClient) Dashboard(ctx context.Context) []domain.Trend {
	trends, err := c.source.GetCurrentTrends(ctx)
	if err != nil {
		if c.logger != nil {
			c.logger.Warn("trends unavailable", "kind", domain.KindOf(err), "error", err)
		}
		return []domain.Trend{}
	}
	return trends
}
