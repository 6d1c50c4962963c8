package narrative

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"finassist/internal/aggregate"
	"finassist/internal/core"
	"finassist/internal/storage"
)

func newTestGenerator(t *testing.T) (*Generator, *storage.Store) {
	t.Helper()

	store, err := storage.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return NewGenerator(aggregate.NewEngine(store)), store
}

func mustAccount(t *testing.T, store *storage.Store) core.Account {
	t.Helper()

	account, err := store.CreateAccount(context.Background(), core.Account{
		Name:     "Main",
		Type:     core.AccountChecking,
		Currency: "EUR",
		IsActive: true,
	})
	if err != nil {
		t.Fatalf("CreateAccount() error = %v", err)
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

func TestMonthlySummary(t *testing.T) {
	gen, store := newTestGenerator(t)
	ctx := context.Background()

	account := mustAccount(t, store)
	mustSnapshot(t, store, core.Snapshot{
		AccountID: account.ID, Year: 2025, Month: 12,
		EndingBalance: 2500, TotalIncome: 2000, TotalExpense: 1000,
	})
	mustSnapshot(t, store, core.Snapshot{
		AccountID: account.ID, Year: 2026, Month: 1,
		EndingBalance: 3200, TotalIncome: 2200, TotalExpense: 1500,
	})

	doc := gen.MonthlySummary(ctx, core.Period{Year: 2026, Month: 1})
	if doc == nil {
		t.Fatal("MonthlySummary() = nil, want document")
	}
	if doc.Type != TypeMonthlySummary || doc.Year != 2026 || doc.Month != 1 {
		t.Errorf("document metadata = %+v", doc)
	}

	for _, phrase := range []string{
		"In January 2026, total expenses were €1500.00 and total income was €2200.00, resulting in net savings of €700.00.",
		"Expenses increased by €500.00 (50.0%) compared to December.",
		"Net worth increased by €700.00 during the month.",
		"Month-end net worth was €3200.00.",
	} {
		if !strings.Contains(doc.Text, phrase) {
			t.Errorf("text missing %q\ngot: %s", phrase, doc.Text)
		}
	}
}

func TestMonthlySummary_EmptyMonth(t *testing.T) {
	gen, _ := newTestGenerator(t)

	if doc := gen.MonthlySummary(context.Background(), core.Period{Year: 2026, Month: 6}); doc != nil {
		t.Errorf("MonthlySummary(empty month) = %+v, want nil", doc)
	}
}

func TestMonthlySummary_ExpensesDecreased(t *testing.T) {
	gen, store := newTestGenerator(t)
	ctx := context.Background()

	account := mustAccount(t, store)
	mustSnapshot(t, store, core.Snapshot{
		AccountID: account.ID, Year: 2026, Month: 3,
		EndingBalance: 1000, TotalIncome: 2000, TotalExpense: 1800,
	})
	mustSnapshot(t, store, core.Snapshot{
		AccountID: account.ID, Year: 2026, Month: 4,
		EndingBalance: 900, TotalIncome: 2000, TotalExpense: 900,
	})

	doc := gen.MonthlySummary(ctx, core.Period{Year: 2026, Month: 4})
	if doc == nil {
		t.Fatal("MonthlySummary() = nil, want document")
	}
	if !strings.Contains(doc.Text, "Expenses decreased by €900.00 (50.0%) compared to March.") {
		t.Errorf("text missing decrease sentence: %s", doc.Text)
	}
	if !strings.Contains(doc.Text, "Net worth decreased by €100.00 during the month.") {
		t.Errorf("text missing net worth decrease sentence: %s", doc.Text)
	}
}

func TestCategorySummary(t *testing.T) {
	gen, store := newTestGenerator(t)
	ctx := context.Background()

	account := mustAccount(t, store)
	mustTx(t, store, account.ID, day(2026, 1, 5), -100, "food")
	mustTx(t, store, account.ID, day(2026, 2, 5), -300, "food")
	mustTx(t, store, account.ID, day(2026, 1, 1), -600, "rent")
	mustTx(t, store, account.ID, day(2026, 1, 2), 2000, "income")

	// Case-insensitive lookup, canonical name in the output.
	doc := gen.CategorySummary(ctx, 2026, "FOOD")
	if doc == nil {
		t.Fatal("CategorySummary() = nil, want document")
	}
	if doc.Type != TypeCategorySummary || doc.Category != "food" || doc.Year != 2026 {
		t.Errorf("document metadata = %+v", doc)
	}

	// food 400 of 1000 total spending, peaking in February.
	want := "In 2026, the food category accounted for €400.00 in expenses, with a peak in February (€300.00). This category represents 40.0% of total yearly spending."
	if doc.Text != want {
		t.Errorf("text = %q\nwant %q", doc.Text, want)
	}

	if doc := gen.CategorySummary(ctx, 2026, "travel"); doc != nil {
		t.Errorf("CategorySummary(unknown) = %+v, want nil", doc)
	}
}

func TestAnomalySummary(t *testing.T) {
	gen, store := newTestGenerator(t)
	ctx := context.Background()

	account := mustAccount(t, store)
	mustTx(t, store, account.ID, day(2025, 11, 5), -100, "food")
	mustTx(t, store, account.ID, day(2025, 12, 10), -200, "food")
	mustTx(t, store, account.ID, day(2026, 1, 8), -400, "food")

	doc := gen.AnomalySummary(ctx, core.Period{Year: 2026, Month: 1})
	if doc == nil {
		t.Fatal("AnomalySummary() = nil, want document")
	}
	if doc.Type != TypeAnomaly || doc.Year != 2026 || doc.Month != 1 {
		t.Errorf("document metadata = %+v", doc)
	}
	// A single anomaly keeps the understated phrasing.
	if !strings.Contains(doc.Text, "January 2026 had notable spending anomalies") {
		t.Errorf("text = %q", doc.Text)
	}
	if !strings.Contains(doc.Text, "driven by food (€400.00, 167% above average)") {
		t.Errorf("text = %q", doc.Text)
	}

	if doc := gen.AnomalySummary(ctx, core.Period{Year: 2026, Month: 5}); doc != nil {
		t.Errorf("AnomalySummary(quiet month) = %+v, want nil", doc)
	}
}

func TestAnomalySummary_ManyAnomalies(t *testing.T) {
	gen, store := newTestGenerator(t)
	ctx := context.Background()

	account := mustAccount(t, store)
	for _, cat := range []string{"food", "transport", "travel", "utilities"} {
		mustTx(t, store, account.ID, day(2025, 11, 5), -100, cat)
		mustTx(t, store, account.ID, day(2025, 12, 10), -100, cat)
		mustTx(t, store, account.ID, day(2026, 1, 8), -500, cat)
	}
	mustSnapshot(t, store, core.Snapshot{
		AccountID: account.ID, Year: 2026, Month: 1,
		EndingBalance: 0, TotalIncome: 2000, TotalExpense: 2000,
	})

	doc := gen.AnomalySummary(ctx, core.Period{Year: 2026, Month: 1})
	if doc == nil {
		t.Fatal("AnomalySummary() = nil, want document")
	}
	if !strings.Contains(doc.Text, "January 2026 showed unusually high spending (€2000.00 total)") {
		t.Errorf("text = %q", doc.Text)
	}
	// At most three categories are named even when four were flagged.
	if got := strings.Count(doc.Text, "above average"); got != 3 {
		t.Errorf("text names %d anomalies, want 3: %q", got, doc.Text)
	}
}

func TestYearlyOverview(t *testing.T) {
	gen, store := newTestGenerator(t)
	ctx := context.Background()

	account := mustAccount(t, store)
	mustSnapshot(t, store, core.Snapshot{
		AccountID: account.ID, Year: 2026, Month: 1,
		EndingBalance: 3000, TotalIncome: 2000, TotalExpense: 1200,
	})
	mustSnapshot(t, store, core.Snapshot{
		AccountID: account.ID, Year: 2026, Month: 2,
		EndingBalance: 3100, TotalIncome: 2000, TotalExpense: 1900,
	})
	mustTx(t, store, account.ID, day(2026, 1, 3), -1200, "rent")
	mustTx(t, store, account.ID, day(2026, 1, 4), -300, "food")

	doc := gen.YearlyOverview(ctx, 2026)
	if doc == nil {
		t.Fatal("YearlyOverview() = nil, want document")
	}
	if doc.Type != TypeYearlyOverview || doc.Year != 2026 {
		t.Errorf("document metadata = %+v", doc)
	}

	for _, phrase := range []string{
		"In 2026, total income was €4000.00 and total expenses were €3100.00, resulting in net savings of €900.00.",
		"The largest expense categories were rent (€1200.00), food (€300.00).",
		"The best month was January with net savings of €800.00.",
		"February had the lowest savings (€100.00).",
	} {
		if !strings.Contains(doc.Text, phrase) {
			t.Errorf("text missing %q\ngot: %s", phrase, doc.Text)
		}
	}

	if doc := gen.YearlyOverview(ctx, 2019); doc != nil {
		t.Errorf("YearlyOverview(empty year) = %+v, want nil", doc)
	}
}

func TestAllDocuments(t *testing.T) {
	gen, store := newTestGenerator(t)
	ctx := context.Background()

	account := mustAccount(t, store)
	mustSnapshot(t, store, core.Snapshot{
		AccountID: account.ID, Year: 2026, Month: 1,
		EndingBalance: 3000, TotalIncome: 2000, TotalExpense: 1200,
	})
	// rent is above the category threshold, coffee is not.
	mustTx(t, store, account.ID, day(2026, 1, 3), -1200, "rent")
	mustTx(t, store, account.ID, day(2026, 1, 4), -40, "coffee")

	docs := gen.AllDocuments(ctx, 2026)

	var monthly, category int
	for _, doc := range docs {
		switch doc.Type {
		case TypeMonthlySummary:
			monthly++
		case TypeCategorySummary:
			category++
			if doc.Category == "coffee" {
				t.Error("coffee summary generated below the spend threshold")
			}
		}
	}
	if monthly != 1 {
		t.Errorf("monthly summaries = %d, want 1 (only January has activity)", monthly)
	}
	if category != 1 {
		t.Errorf("category summaries = %d, want 1 (rent)", category)
	}
}

func TestMonthName(t *testing.T) {
	if got := monthName(1); got != "January" {
		t.Errorf("monthName(1) = %q, want January", got)
	}
	if got := monthName(0); got != "unknown" {
		t.Errorf("monthName(0) = %q, want unknown", got)
	}
	if got := monthName(13); got != "unknown" {
		t.Errorf("monthName(13) = %q, want unknown", got)
	}
}
