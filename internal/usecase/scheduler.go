package usecase

import (
	"context"
	"time"

	"TasteClient/internal/domain"
	"TasteClient/internal/ports"
)

// TrendWatcher re-reads the dashboard snapshot on every scheduler tick.
type TrendWatcher struct {
	driver ports.Scheduler
	trends *TrendClient
	render func(at time.Time, trends []domain.Trend)
}

// NewTrendWatcher hands each snapshot to render.
func NewTrendWatcher(driver ports.Scheduler, trends *TrendClient, render func(time.Time, []domain.Trend)) *TrendWatcher {
	return &TrendWatcher{driver: driver, trends: trends, render: render}
}

// Start registers the fetch with the scheduler.
func (w *TrendWatcher) Start(ctx context.Context) error {
	if w.driver == nil || w.trends == nil {
		return nil
	}

	job := func(trigger time.Time) {
		snapshot := w.trends.Dashboard(ctx)
		if w.render != nil {
			w.render(trigger, snapshot)
		}
	}

	return w.driver.Start(ctx, job)
}

// Stop tears down the underlying scheduler.
func (w *TrendWatcher) Stop(ctx context.Context) error {
	if w.driver == nil {
		return nil
	}

	return w.driver.Stop(ctx)
}
