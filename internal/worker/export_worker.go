// Package worker keeps the external summary sheet in step with the database.
// Change events mark months dirty; a periodic flush re-exports them. Lost
// events only delay an export until the next periodic full-year pass.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"finassist/internal/core"
	"finassist/internal/events"
	"finassist/internal/export"
	"finassist/internal/storage"
)

type ExportWorker struct {
	store    *storage.Store
	exporter *export.Exporter

	mu    sync.Mutex
	dirty map[int]core.Period // keyed by Period.Key()
}

func NewExportWorker(store *storage.Store, exporter *export.Exporter) *ExportWorker {
	return &ExportWorker{
		store:    store,
		exporter: exporter,
		dirty:    make(map[int]core.Period),
	}
}

// HandleChangeEvent resolves the event to the month it affects and marks that
// month for re-export. Resolution failures fall back to the current month so
// the change is never silently dropped.
func (w *ExportWorker) HandleChangeEvent(ctx context.Context, event *events.ChangeEvent) error {
	period := w.resolvePeriod(ctx, event)
	w.markDirty(period)

	slog.InfoContext(ctx, "Marked month for export",
		"kind", event.Kind,
		"entity_id", event.EntityID,
		"period", period.String())
	return nil
}

func (w *ExportWorker) resolvePeriod(ctx context.Context, event *events.ChangeEvent) core.Period {
	if event.Year != 0 && event.Month != 0 {
		return core.Period{Year: event.Year, Month: event.Month}
	}

	if event.Kind == events.KindTransactionAdded {
		tx, err := w.store.GetTransaction(ctx, event.EntityID)
		if err == nil {
			return core.PeriodOf(tx.Date)
		}
		slog.WarnContext(ctx, "Could not resolve transaction for event, using current month",
			"entity_id", event.EntityID, "error", err)
	}

	// Deleted rows are gone; the current month is the best guess left.
	return core.PeriodOf(time.Now())
}

func (w *ExportWorker) markDirty(p core.Period) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.dirty[p.Key()] = p
}

// Flush exports every dirty month. Months that fail stay dirty and are
// retried on the next flush.
func (w *ExportWorker) Flush(ctx context.Context) error {
	w.mu.Lock()
	pending := make([]core.Period, 0, len(w.dirty))
	for _, p := range w.dirty {
		pending = append(pending, p)
	}
	w.mu.Unlock()

	if len(pending) == 0 {
		return nil
	}

	var failed int
	for _, p := range pending {
		if err := w.exporter.ExportMonth(ctx, p); err != nil {
			slog.ErrorContext(ctx, "Month export failed", "period", p.String(), "error", err)
			failed++
			continue
		}
		w.mu.Lock()
		delete(w.dirty, p.Key())
		w.mu.Unlock()
	}

	if failed > 0 {
		return fmt.Errorf("flush exports: %d of %d months failed", failed, len(pending))
	}
	return nil
}

// RunPeriodicFlush flushes dirty months every interval until ctx is
// cancelled.
func (w *ExportWorker) RunPeriodicFlush(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.Flush(ctx); err != nil {
				slog.ErrorContext(ctx, "Periodic export flush failed", "error", err)
			}
		}
	}
}

// StartupExport pushes the current year once at boot so a fresh sheet catches
// up without waiting for change events.
func (w *ExportWorker) StartupExport(ctx context.Context) error {
	year := time.Now().Year()
	if err := w.exporter.ExportYear(ctx, year); err != nil {
		return fmt.Errorf("startup export: %w", err)
	}
	return nil
}
