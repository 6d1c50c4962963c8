package aggregate

import (
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"

	"finassist/internal/core"
	"finassist/internal/storage"
)

func newTestEngine(t *testing.T) (*Engine, *storage.Store) {
	t.Helper()

	store, err := storage.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return NewEngine(store), store
}

func mustAccount(t *testing.T, store *storage.Store, name string) core.Account {
	t.Helper()

	account, err := store.CreateAccount(context.Background(), core.Account{
		Name:     name,
		Type:     core.AccountChecking,
		Currency: "EUR",
		IsActive: true,
	})
	if err != nil {
		t.Fatalf("CreateAccount(%s) error = %v", name, err)
	}
	return account
}

func mustSnapshot(t *testing.T, store *storage.Store, snap core.Snapshot) {
	t.Helper()

	if _, err := store.CreateSnapshot(context.Background(), snap); err != nil {
		t.Fatalf("CreateSnapshot(%d-%02d) error = %v", snap.Year, snap.Month, err)
	}
}

func mustTx(t *testing.T, store *storage.Store, accountID int64, date time.Time, amount float64, category string) {
	t.Helper()

	_, err := store.AddTransaction(context.Background(), core.Transaction{
		AccountID:   accountID,
		Date:        date,
		Amount:      amount,
		Category:    category,
		Description: "test transaction",
	})
	if err != nil {
		t.Fatalf("AddTransaction(%s) error = %v", category, err)
	}
}

func day(year, month, d int) time.Time {
	return time.Date(year, time.Month(month), d, 0, 0, 0, 0, time.UTC)
}

func TestCurrentTotalBalance(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	account := mustAccount(t, store, "Main")
	mustSnapshot(t, store, core.Snapshot{AccountID: account.ID, Year: 2025, Month: 12, EndingBalance: 2500})
	mustSnapshot(t, store, core.Snapshot{AccountID: account.ID, Year: 2026, Month: 1, EndingBalance: 3200})

	// Only the latest snapshot of the account counts.
	if got := engine.CurrentTotalBalance(ctx); got != 3200 {
		t.Errorf("CurrentTotalBalance() = %v, want 3200", got)
	}
	if got := engine.TotalBalanceForMonth(ctx, core.Period{Year: 2025, Month: 12}); got != 2500 {
		t.Errorf("TotalBalanceForMonth(2025-12) = %v, want 2500", got)
	}
}

func TestMonthlyTotals(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	account := mustAccount(t, store, "Main")
	mustSnapshot(t, store, core.Snapshot{
		AccountID: account.ID, Year: 2026, Month: 1,
		EndingBalance: 3200, TotalIncome: 2000, TotalExpense: 1350,
	})

	totals := engine.MonthlyTotals(ctx, core.Period{Year: 2026, Month: 1})
	if totals.TotalIncome != 2000 || totals.TotalExpense != 1350 {
		t.Errorf("MonthlyTotals() = %+v, want income 2000, expense 1350", totals)
	}
	if totals.NetSavings != 650 {
		t.Errorf("NetSavings = %v, want 650", totals.NetSavings)
	}

	// A month without snapshots reports zeros, not an error.
	empty := engine.MonthlyTotals(ctx, core.Period{Year: 2026, Month: 7})
	if empty != (core.MonthlyTotals{}) {
		t.Errorf("MonthlyTotals(empty month) = %+v, want zero value", empty)
	}
}

func TestMonthOverMonthDelta_YearRollover(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	account := mustAccount(t, store, "Main")
	mustSnapshot(t, store, core.Snapshot{
		AccountID: account.ID, Year: 2025, Month: 12,
		EndingBalance: 2500, TotalIncome: 2000, TotalExpense: 1000,
	})
	mustSnapshot(t, store, core.Snapshot{
		AccountID: account.ID, Year: 2026, Month: 1,
		EndingBalance: 3200, TotalIncome: 2200, TotalExpense: 1500,
	})

	// January compares against December of the prior year.
	delta := engine.MonthOverMonthDelta(ctx, core.Period{Year: 2026, Month: 1})
	if delta.PreviousYear != 2025 || delta.PreviousMonth != 12 {
		t.Errorf("previous period = %d-%d, want 2025-12", delta.PreviousYear, delta.PreviousMonth)
	}
	if delta.NetWorthDelta != 700 {
		t.Errorf("NetWorthDelta = %v, want 700", delta.NetWorthDelta)
	}
	if math.Abs(delta.NetWorthPctChange-28) > 1e-9 {
		t.Errorf("NetWorthPctChange = %v, want 28", delta.NetWorthPctChange)
	}
	if delta.IncomeDelta != 200 || delta.ExpenseDelta != 500 {
		t.Errorf("deltas = income %v, expense %v, want 200 and 500", delta.IncomeDelta, delta.ExpenseDelta)
	}
	if math.Abs(delta.IncomePctChange-10) > 1e-9 {
		t.Errorf("IncomePctChange = %v, want 10", delta.IncomePctChange)
	}
	if math.Abs(delta.ExpensePctChange-50) > 1e-9 {
		t.Errorf("ExpensePctChange = %v, want 50", delta.ExpensePctChange)
	}
}

func TestMonthOverMonthDelta_NoPreviousMonth(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	account := mustAccount(t, store, "Main")
	mustSnapshot(t, store, core.Snapshot{
		AccountID: account.ID, Year: 2026, Month: 3,
		EndingBalance: 1000, TotalIncome: 2000, TotalExpense: 500,
	})

	// All previous values are zero; the percentage guard keeps changes at 0.
	delta := engine.MonthOverMonthDelta(ctx, core.Period{Year: 2026, Month: 3})
	if delta.NetWorthDelta != 1000 || delta.IncomeDelta != 2000 {
		t.Errorf("deltas = %+v, want absolute values against empty month", delta)
	}
	if delta.NetWorthPctChange != 0 || delta.IncomePctChange != 0 || delta.ExpensePctChange != 0 {
		t.Errorf("pct changes = %+v, want all 0 with no previous data", delta)
	}
}

func TestBalanceTrend(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	a := mustAccount(t, store, "A")
	b := mustAccount(t, store, "B")
	mustSnapshot(t, store, core.Snapshot{AccountID: a.ID, Year: 2025, Month: 11, EndingBalance: 100})
	mustSnapshot(t, store, core.Snapshot{AccountID: a.ID, Year: 2025, Month: 12, EndingBalance: 200})
	mustSnapshot(t, store, core.Snapshot{AccountID: b.ID, Year: 2026, Month: 1, EndingBalance: 300})

	limited := engine.BalanceTrend(ctx, nil, 2)
	if len(limited) != 2 {
		t.Fatalf("BalanceTrend(2) returned %d snapshots, want 2", len(limited))
	}
	if limited[0].EndingBalance != 300 || limited[1].EndingBalance != 200 {
		t.Errorf("BalanceTrend(2) = [%v, %v], want [300, 200]", limited[0].EndingBalance, limited[1].EndingBalance)
	}

	// Non-positive month counts fall back to the default window.
	all := engine.BalanceTrend(ctx, nil, 0)
	if len(all) != 3 {
		t.Errorf("BalanceTrend(0) returned %d snapshots, want 3", len(all))
	}

	onlyA := engine.BalanceTrend(ctx, &a.ID, 12)
	if len(onlyA) != 2 {
		t.Fatalf("BalanceTrend(account) returned %d snapshots, want 2", len(onlyA))
	}
	for _, snap := range onlyA {
		if snap.AccountID != a.ID {
			t.Errorf("trend for account %d contains snapshot of account %d", a.ID, snap.AccountID)
		}
	}
}

func TestYearlySummary(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	account := mustAccount(t, store, "Main")
	mustSnapshot(t, store, core.Snapshot{
		AccountID: account.ID, Year: 2026, Month: 1,
		EndingBalance: 3000, TotalIncome: 2000, TotalExpense: 1200,
	})
	mustSnapshot(t, store, core.Snapshot{
		AccountID: account.ID, Year: 2026, Month: 2,
		EndingBalance: 3500, TotalIncome: 2000, TotalExpense: 1500,
	})

	// Six expense categories plus income; only the five biggest spends stay.
	mustTx(t, store, account.ID, day(2026, 1, 2), 2000, "income")
	mustTx(t, store, account.ID, day(2026, 1, 3), -1200, "rent")
	mustTx(t, store, account.ID, day(2026, 1, 4), -300, "food")
	mustTx(t, store, account.ID, day(2026, 1, 5), -150, "transport")
	mustTx(t, store, account.ID, day(2026, 1, 6), -90, "utilities")
	mustTx(t, store, account.ID, day(2026, 1, 7), -60, "entertainment")
	mustTx(t, store, account.ID, day(2026, 1, 8), -20, "misc")

	summary := engine.YearlySummary(ctx, 2026)
	if summary.Year != 2026 {
		t.Errorf("Year = %d, want 2026", summary.Year)
	}
	if len(summary.MonthlyData) != 12 {
		t.Fatalf("MonthlyData has %d entries, want 12", len(summary.MonthlyData))
	}
	if summary.TotalIncome != 4000 || summary.TotalExpense != 2700 {
		t.Errorf("totals = income %v, expense %v, want 4000 and 2700", summary.TotalIncome, summary.TotalExpense)
	}
	if summary.NetSavings != 1300 {
		t.Errorf("NetSavings = %v, want 1300", summary.NetSavings)
	}

	feb := summary.MonthlyData[1]
	if feb.Month != 2 || feb.Income != 2000 || feb.Expense != 1500 || feb.NetSavings != 500 {
		t.Errorf("February breakdown = %+v", feb)
	}
	if empty := summary.MonthlyData[6]; empty.Income != 0 || empty.Expense != 0 {
		t.Errorf("July breakdown = %+v, want zeros", empty)
	}

	top := summary.TopExpenseCategories
	if len(top) != 5 {
		t.Fatalf("TopExpenseCategories has %d entries, want 5", len(top))
	}
	want := []string{"rent", "food", "transport", "utilities", "entertainment"}
	for i, name := range want {
		if top[i].Category != name {
			t.Errorf("top[%d] = %s, want %s", i, top[i].Category, name)
		}
	}
}

func TestDetectAnomalies(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	account := mustAccount(t, store, "Main")
	// Baseline: food averages -150/month over November and December.
	mustTx(t, store, account.ID, day(2025, 11, 5), -100, "food")
	mustTx(t, store, account.ID, day(2025, 12, 10), -200, "food")
	// Current month spikes well past 1.5x the baseline.
	mustTx(t, store, account.ID, day(2026, 1, 8), -400, "food")
	// Income and no-history categories must never be flagged.
	mustTx(t, store, account.ID, day(2025, 12, 1), 2000, "income")
	mustTx(t, store, account.ID, day(2026, 1, 1), 2500, "income")
	mustTx(t, store, account.ID, day(2026, 1, 15), -900, "travel")

	jan := core.Period{Year: 2026, Month: 1}
	anomalies := engine.DetectAnomalies(ctx, jan, 1.5)
	if len(anomalies) != 1 {
		t.Fatalf("DetectAnomalies() returned %d anomalies, want 1: %+v", len(anomalies), anomalies)
	}

	a := anomalies[0]
	if a.Category != "food" {
		t.Errorf("Category = %s, want food", a.Category)
	}
	if a.CurrentAmount != -400 {
		t.Errorf("CurrentAmount = %v, want -400", a.CurrentAmount)
	}
	if math.Abs(a.AverageAmount-(-150)) > 1e-9 {
		t.Errorf("AverageAmount = %v, want -150", a.AverageAmount)
	}
	if math.Abs(a.DeviationPct-166.666666) > 1e-3 {
		t.Errorf("DeviationPct = %v, want ~166.67", a.DeviationPct)
	}
	if !a.IsHigh {
		t.Error("IsHigh = false, want true")
	}
}

func TestDetectAnomalies_ThresholdBoundary(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	account := mustAccount(t, store, "Main")
	mustTx(t, store, account.ID, day(2025, 11, 5), -100, "food")
	mustTx(t, store, account.ID, day(2025, 12, 10), -200, "food")
	// 200 is above the average (150) but not above 1.5x of it (225).
	mustTx(t, store, account.ID, day(2026, 1, 8), -200, "food")

	jan := core.Period{Year: 2026, Month: 1}
	if got := engine.DetectAnomalies(ctx, jan, 1.5); len(got) != 0 {
		t.Errorf("DetectAnomalies(1.5) = %+v, want none below the threshold", got)
	}

	// A tighter multiplier flags the same month.
	if got := engine.DetectAnomalies(ctx, jan, 1.2); len(got) != 1 {
		t.Errorf("DetectAnomalies(1.2) returned %d anomalies, want 1", len(got))
	}

	// Non-positive multipliers fall back to the default, not to flag-everything.
	if got := engine.DetectAnomalies(ctx, jan, 0); len(got) != 0 {
		t.Errorf("DetectAnomalies(0) = %+v, want default threshold behavior", got)
	}
}

func TestDetectAnomalies_EmptyMonth(t *testing.T) {
	engine, _ := newTestEngine(t)

	got := engine.DetectAnomalies(context.Background(), core.Period{Year: 2026, Month: 1}, 1.5)
	if got != nil {
		t.Errorf("DetectAnomalies(empty month) = %+v, want nil", got)
	}
}

func TestEngine_DegradesOnStorageFailure(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	account := mustAccount(t, store, "Main")
	mustSnapshot(t, store, core.Snapshot{AccountID: account.ID, Year: 2026, Month: 1, EndingBalance: 500})

	// Closing the store makes every query fail; reports must still answer
	// with their documented defaults.
	store.Close()

	p := core.Period{Year: 2026, Month: 1}
	if got := engine.CurrentTotalBalance(ctx); got != 0 {
		t.Errorf("CurrentTotalBalance() after close = %v, want 0", got)
	}
	if got := engine.MonthlyTotals(ctx, p); got != (core.MonthlyTotals{}) {
		t.Errorf("MonthlyTotals() after close = %+v, want zero value", got)
	}
	if got := engine.BalanceTrend(ctx, nil, 12); got != nil {
		t.Errorf("BalanceTrend() after close = %+v, want nil", got)
	}
	if got := engine.CategoryAggregates(ctx, 2026, nil); got != nil {
		t.Errorf("CategoryAggregates() after close = %+v, want nil", got)
	}
}
