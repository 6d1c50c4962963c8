// Package aggregate computes every derived financial figure exposed to
// callers: balances, monthly totals, trends, month-over-month deltas,
// anomalies and yearly summaries. It reads exclusively from the snapshot
// store and the transaction log and never mutates data.
//
// Report queries must always answer. Each method converts an internal
// storage failure into its documented zero or empty default and logs the
// cause; silently under-reporting on infrastructure failure is the accepted
// trade-off for reporting endpoints that never crash.
package aggregate

import (
	"context"
	"log/slog"
	"sort"

	"finassist/internal/core"
	"finassist/internal/storage"
)

// DefaultTrendMonths bounds BalanceTrend when the caller does not say.
const DefaultTrendMonths = 12

type Engine struct {
	store *storage.Store
}

func NewEngine(store *storage.Store) *Engine {
	return &Engine{store: store}
}

// TotalBalanceForMonth sums ending balances across all snapshots of the
// month. Zero when the month has no snapshots.
func (e *Engine) TotalBalanceForMonth(ctx context.Context, p core.Period) float64 {
	total, err := e.store.SumEndingBalances(ctx, p)
	if err != nil {
		slog.ErrorContext(ctx, "Total balance query failed", "period", p.String(), "error", err)
		return 0
	}
	return total
}

// CurrentTotalBalance sums the ending balance of every account's most recent
// snapshot.
func (e *Engine) CurrentTotalBalance(ctx context.Context) float64 {
	total, err := e.store.SumCurrentEndingBalances(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "Current balance query failed", "error", err)
		return 0
	}
	return total
}

// TotalExpensesForMonth sums total_expense across the month's snapshots.
func (e *Engine) TotalExpensesForMonth(ctx context.Context, p core.Period) float64 {
	total, err := e.store.SumExpense(ctx, p)
	if err != nil {
		slog.ErrorContext(ctx, "Expense total query failed", "period", p.String(), "error", err)
		return 0
	}
	return total
}

// TotalIncomeForMonth sums total_income across the month's snapshots.
func (e *Engine) TotalIncomeForMonth(ctx context.Context, p core.Period) float64 {
	total, err := e.store.SumIncome(ctx, p)
	if err != nil {
		slog.ErrorContext(ctx, "Income total query failed", "period", p.String(), "error", err)
		return 0
	}
	return total
}

// BalanceTrend lists up to numMonths most recent snapshots, newest first,
// optionally restricted to one account. This is the raw listing behind trend
// views, not a computed average.
func (e *Engine) BalanceTrend(ctx context.Context, accountID *int64, numMonths int) []core.Snapshot {
	if numMonths <= 0 {
		numMonths = DefaultTrendMonths
	}
	snaps, err := e.store.ListRecentSnapshots(ctx, accountID, numMonths)
	if err != nil {
		slog.ErrorContext(ctx, "Balance trend query failed", "error", err)
		return nil
	}
	return snaps
}

// MonthlyTotals returns income, expense and net savings for the month. Net
// savings is always income minus expense, including for all-zero months.
func (e *Engine) MonthlyTotals(ctx context.Context, p core.Period) core.MonthlyTotals {
	income, err := e.store.SumIncome(ctx, p)
	if err != nil {
		slog.ErrorContext(ctx, "Monthly totals query failed", "period", p.String(), "error", err)
		return core.MonthlyTotals{}
	}
	expense, err := e.store.SumExpense(ctx, p)
	if err != nil {
		slog.ErrorContext(ctx, "Monthly totals query failed", "period", p.String(), "error", err)
		return core.MonthlyTotals{}
	}
	return core.MonthlyTotals{
		TotalIncome:  income,
		TotalExpense: expense,
		NetSavings:   income - expense,
	}
}

// NetWorth is the sum of ending balances across all accounts for the month.
func (e *Engine) NetWorth(ctx context.Context, p core.Period) float64 {
	return e.TotalBalanceForMonth(ctx, p)
}

// CategoryAggregates breaks transactions down by category for a year, or one
// month of it when month is non-nil, ordered by total descending.
func (e *Engine) CategoryAggregates(ctx context.Context, year int, month *int) []core.CategoryAggregate {
	aggs, err := e.store.CategoryTotals(ctx, year, month)
	if err != nil {
		slog.ErrorContext(ctx, "Category aggregates query failed", "year", year, "error", err)
		return nil
	}
	return aggs
}

// MonthOverMonthDelta compares the month against the preceding one. The
// previous period of January is December of the prior year. A zero or
// negative previous value yields a 0% change: that is a division guard kept
// for contract stability, not a financial convention.
func (e *Engine) MonthOverMonthDelta(ctx context.Context, p core.Period) core.MonthDelta {
	prev := p.Prev()

	current := e.MonthlyTotals(ctx, p)
	currentNetWorth := e.NetWorth(ctx, p)
	previous := e.MonthlyTotals(ctx, prev)
	prevNetWorth := e.NetWorth(ctx, prev)

	return core.MonthDelta{
		IncomeDelta:       current.TotalIncome - previous.TotalIncome,
		ExpenseDelta:      current.TotalExpense - previous.TotalExpense,
		NetWorthDelta:     currentNetWorth - prevNetWorth,
		IncomePctChange:   pctChange(current.TotalIncome-previous.TotalIncome, previous.TotalIncome),
		ExpensePctChange:  pctChange(current.TotalExpense-previous.TotalExpense, previous.TotalExpense),
		NetWorthPctChange: pctChange(currentNetWorth-prevNetWorth, prevNetWorth),
		PreviousYear:      prev.Year,
		PreviousMonth:     prev.Month,
	}
}

func pctChange(delta, previous float64) float64 {
	if previous <= 0 {
		return 0
	}
	return delta / previous * 100
}

// YearlySummary composes the twelve monthly breakdowns of the year, their
// totals, and the top five expense categories by magnitude.
func (e *Engine) YearlySummary(ctx context.Context, year int) core.YearlySummary {
	summary := core.YearlySummary{Year: year}

	for month := 1; month <= 12; month++ {
		p := core.Period{Year: year, Month: month}
		totals := e.MonthlyTotals(ctx, p)
		summary.MonthlyData = append(summary.MonthlyData, core.MonthBreakdown{
			Month:      month,
			Income:     totals.TotalIncome,
			Expense:    totals.TotalExpense,
			NetSavings: totals.NetSavings,
			NetWorth:   e.NetWorth(ctx, p),
		})
		summary.TotalIncome += totals.TotalIncome
		summary.TotalExpense += totals.TotalExpense
	}
	summary.NetSavings = summary.TotalIncome - summary.TotalExpense

	summary.TopExpenseCategories = topExpenseCategories(e.CategoryAggregates(ctx, year, nil), 5)
	return summary
}

// topExpenseCategories keeps expense rows (negative totals) ordered by
// magnitude, largest spend first.
func topExpenseCategories(aggs []core.CategoryAggregate, n int) []core.CategoryAggregate {
	var expenses []core.CategoryAggregate
	for _, a := range aggs {
		if a.Total < 0 {
			expenses = append(expenses, a)
		}
	}
	// CategoryTotals orders by signed total, which puts the biggest spend
	// last; re-sort by magnitude.
	sort.Slice(expenses, func(i, j int) bool {
		return abs(expenses[i].Total) > abs(expenses[j].Total)
	})
	if len(expenses) > n {
		expenses = expenses[:n]
	}
	return expenses
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
