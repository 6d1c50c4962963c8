package aggregate

import (
	"context"
	"log/slog"
	"time"

	"finassist/internal/core"
)

const (
	// DefaultAnomalyThreshold flags spend above 1.5x the trailing average.
	DefaultAnomalyThreshold = 1.5

	// The historical baseline window reaches back roughly six months from
	// the first day of the month under inspection.
	baselineLookback = 180 * 24 * time.Hour
)

// DetectAnomalies compares each category spent in the given month against the
// average of its per-month totals over the preceding ~6 months. Only expense
// categories (negative current total) can be flagged, and only when the
// current magnitude exceeds thresholdMultiplier times the baseline magnitude.
// A category with no history in the window is never flagged: there is no
// baseline to exceed.
func (e *Engine) DetectAnomalies(ctx context.Context, p core.Period, thresholdMultiplier float64) []core.Anomaly {
	if thresholdMultiplier <= 0 {
		thresholdMultiplier = DefaultAnomalyThreshold
	}

	current := e.CategoryAggregates(ctx, p.Year, &p.Month)
	if len(current) == 0 {
		return nil
	}

	// Window is [first-of-month - 180d, first-of-month): strictly before the
	// month being inspected, so the current spend never skews its own
	// baseline.
	windowEnd := p.FirstDay()
	windowStart := windowEnd.Add(-baselineLookback)

	var anomalies []core.Anomaly
	for _, cat := range current {
		if cat.Total >= 0 {
			continue // only expenses are anomaly candidates
		}

		avg, ok, err := e.store.CategoryMonthlyAverage(ctx, cat.Category, windowStart, windowEnd)
		if err != nil {
			slog.ErrorContext(ctx, "Anomaly baseline query failed",
				"category", cat.Category, "period", p.String(), "error", err)
			continue
		}
		if !ok {
			continue
		}

		currentAbs := abs(cat.Total)
		avgAbs := abs(avg)
		if avgAbs == 0 || currentAbs <= avgAbs*thresholdMultiplier {
			continue
		}

		anomalies = append(anomalies, core.Anomaly{
			Category:      cat.Category,
			CurrentAmount: cat.Total,
			AverageAmount: -avgAbs,
			DeviationPct:  (currentAbs - avgAbs) / avgAbs * 100,
			IsHigh:        true,
		})
	}
	return anomalies
}
