package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"finassist/internal/aggregate"
	"finassist/internal/core"
)

// Exporter turns aggregate figures into spreadsheet rows. One row per month:
// year, month, income, expense, net savings, net worth, export timestamp.
type Exporter struct {
	engine *aggregate.Engine
	writer SummaryWriter
}

func NewExporter(engine *aggregate.Engine, writer SummaryWriter) *Exporter {
	return &Exporter{engine: engine, writer: writer}
}

// ExportMonth appends a single summary row for the given period.
func (e *Exporter) ExportMonth(ctx context.Context, p core.Period) error {
	row := e.monthRow(ctx, p)
	if err := e.writer.WriteRows(ctx, [][]any{row}); err != nil {
		return fmt.Errorf("export month %s: %w", p.String(), err)
	}

	slog.InfoContext(ctx, "Exported monthly summary", "period", p.String())
	return nil
}

// ExportYear appends one row per month that has recorded activity.
func (e *Exporter) ExportYear(ctx context.Context, year int) error {
	summary := e.engine.YearlySummary(ctx, year)

	var rows [][]any
	for _, m := range summary.MonthlyData {
		if m.Income == 0 && m.Expense == 0 && m.NetWorth == 0 {
			continue
		}
		rows = append(rows, e.monthRow(ctx, core.Period{Year: year, Month: m.Month}))
	}
	if len(rows) == 0 {
		return nil
	}

	if err := e.writer.WriteRows(ctx, rows); err != nil {
		return fmt.Errorf("export year %d: %w", year, err)
	}

	slog.InfoContext(ctx, "Exported yearly summary", "year", year, "rows", len(rows))
	return nil
}

func (e *Exporter) monthRow(ctx context.Context, p core.Period) []any {
	totals := e.engine.MonthlyTotals(ctx, p)
	netWorth := e.engine.NetWorth(ctx, p)

	return []any{
		p.Year,
		p.Month,
		totals.TotalIncome,
		totals.TotalExpense,
		totals.NetSavings,
		netWorth,
		time.Now().UTC().Format(time.RFC3339),
	}
}
