package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"TasteClient/internal/domain"
	"TasteClient/internal/infrastructure/transport"
	"TasteClient/internal/ports"
)

// TrendsAPI reads trend snapshots. Every call is an independent fetch.
type TrendsAPI struct {
	doer   Doer
	logger *slog.Logger
}

var _ ports.TrendSource = (*TrendsAPI)(nil)

// GetCurrentTrends returns the service's current snapshot.
func (t *TrendsAPI) GetCurrentTrends(ctx context.Context) ([]domain.Trend, error) {
	resp, err := t.doer.Do(ctx, transport.Request{Method: http.MethodGet, Path: PathTrendsCurrent})
	if err != nil {
		return nil, err
	}
	return t.decode(resp.Body, "")
}

// PredictTrends asks for predictions in category; empty means fashion.
func (t *TrendsAPI) PredictTrends(ctx context.Context, category string) ([]domain.Trend, error) {
	category = strings.TrimSpace(category)
	if category == "" {
		category = domain.DefaultTrendCategory
	}

	resp, err := t.doer.Do(ctx, transport.Request{
		Method: http.MethodGet,
		Path:   PathTrendsPredict,
		Query:  url.Values{"category": {category}},
	})
	if err != nil {
		return nil, err
	}
	return t.decode(resp.Body, category)
}

type wireTrend struct {
	Name         string          `json:"name"`
	Score        float64         `json:"score"`
	Momentum     domain.Momentum `json:"momentum"`
	Category     string          `json:"category"`
	PeakEstimate string          `json:"peak_estimate"`
	Timeline     string          `json:"timeline"`
}

type wirePrediction struct {
	Trend       string  `json:"trend"`
	Probability float64 `json:"probability"`
	Timeline    string  `json:"timeline"`
}

func (t *TrendsAPI) decode(body []byte, category string) ([]domain.Trend, error) {
	trends, skipped, err := decodeTrends(body, category)
	if err != nil {
		return nil, err
	}
	if len(skipped) > 0 && t.logger != nil {
		t.logger.Warn("trends with unknown momentum dropped", "names", skipped)
	}
	return trends, nil
}

// decodeTrends understands a bare array, {"trends": [...]} and the
// prediction envelope {"predictions": [...]}. Predictions have no momentum
// or category of their own; they are reported as rising in the requested one.
// Entries whose momentum is not rising, stable or declining are left out and
// their names returned as skipped.
func decodeTrends(body []byte, category string) (trends []domain.Trend, skipped []string, err error) {
	trimmed := bytes.TrimSpace(body)

	var raw []wireTrend
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return nil, nil, fmt.Errorf("decode trends: %w", err)
		}
	} else {
		var envelope struct {
			Trends      []wireTrend      `json:"trends"`
			Predictions []wirePrediction `json:"predictions"`
		}
		if err := json.Unmarshal(trimmed, &envelope); err != nil {
			return nil, nil, fmt.Errorf("decode trends: %w", err)
		}
		raw = envelope.Trends
		if raw == nil && envelope.Predictions != nil {
			out := make([]domain.Trend, 0, len(envelope.Predictions))
			for _, p := range envelope.Predictions {
				out = append(out, domain.Trend{
					Name:         p.Trend,
					Score:        p.Probability,
					Momentum:     domain.MomentumRising,
					Category:     category,
					PeakEstimate: p.Timeline,
				})
			}
			return out, nil, nil
		}
	}

	out := make([]domain.Trend, 0, len(raw))
	for _, w := range raw {
		if !w.Momentum.Valid() {
			skipped = append(skipped, w.Name)
			continue
		}
		tr := domain.Trend{
			Name:         w.Name,
			Score:        w.Score,
			Momentum:     w.Momentum,
			Category:     w.Category,
			PeakEstimate: w.PeakEstimate,
		}
		if tr.PeakEstimate == "" {
			tr.PeakEstimate = w.Timeline
		}
		if tr.Category == "" {
			tr.Category = category
		}
		out = append(out, tr)
	}
	return out, skipped, nil
}
