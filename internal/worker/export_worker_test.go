package worker

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"finassist/internal/aggregate"
	"finassist/internal/core"
	"finassist/internal/events"
	"finassist/internal/export"
	"finassist/internal/storage"
)

type fakeWriter struct {
	rows    [][]any
	failing bool
}

func (w *fakeWriter) WriteRows(_ context.Context, rows [][]any) error {
	if w.failing {
		return errors.New("sheet unavailable")
	}
	w.rows = append(w.rows, rows...)
	return nil
}

func newTestWorker(t *testing.T, writer export.SummaryWriter) (*ExportWorker, *storage.Store) {
	t.Helper()

	store, err := storage.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })

	engine := aggregate.NewEngine(store)
	return NewExportWorker(store, export.NewExporter(engine, writer)), store
}

func seedSnapshot(t *testing.T, store *storage.Store, year, month int, income, expense float64) {
	t.Helper()
	ctx := context.Background()

	account, err := store.CreateAccount(ctx, core.Account{
		Name: "Main", Type: core.AccountChecking, Currency: "EUR", IsActive: true,
	})
	if err != nil {
		t.Fatalf("CreateAccount() error = %v", err)
	}
	if _, err := store.CreateSnapshot(ctx, core.Snapshot{
		AccountID:     account.ID,
		Year:          year,
		Month:         month,
		EndingBalance: income - expense,
		TotalIncome:   income,
		TotalExpense:  expense,
	}); err != nil {
		t.Fatalf("CreateSnapshot() error = %v", err)
	}
}

func TestHandleChangeEventAndFlush(t *testing.T) {
	writer := &fakeWriter{}
	worker, store := newTestWorker(t, writer)
	ctx := context.Background()

	seedSnapshot(t, store, 2026, 1, 2000, 1350)

	event := events.NewSnapshotEvent(events.KindSnapshotCreated, 1, 1, 2026, 1)
	if err := worker.HandleChangeEvent(ctx, event); err != nil {
		t.Fatalf("HandleChangeEvent() error = %v", err)
	}

	if err := worker.Flush(ctx); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	if len(writer.rows) != 1 {
		t.Fatalf("wrote %d rows, want 1", len(writer.rows))
	}

	row := writer.rows[0]
	if row[0] != 2026 || row[1] != 1 {
		t.Errorf("row period = %v-%v, want 2026-1", row[0], row[1])
	}
	if row[2] != 2000.0 || row[3] != 1350.0 || row[4] != 650.0 {
		t.Errorf("row figures = %v, want income 2000, expense 1350, savings 650", row[2:5])
	}

	// A clean worker has nothing left to flush.
	writer.rows = nil
	if err := worker.Flush(ctx); err != nil {
		t.Fatalf("Flush(clean) error = %v", err)
	}
	if len(writer.rows) != 0 {
		t.Errorf("flush of clean worker wrote %d rows, want 0", len(writer.rows))
	}
}

func TestFlush_FailedMonthStaysDirty(t *testing.T) {
	writer := &fakeWriter{failing: true}
	worker, store := newTestWorker(t, writer)
	ctx := context.Background()

	seedSnapshot(t, store, 2026, 1, 2000, 1350)

	event := events.NewSnapshotEvent(events.KindSnapshotCreated, 1, 1, 2026, 1)
	if err := worker.HandleChangeEvent(ctx, event); err != nil {
		t.Fatalf("HandleChangeEvent() error = %v", err)
	}

	if err := worker.Flush(ctx); err == nil {
		t.Fatal("Flush() with failing writer = nil, want error")
	}

	// The month stays dirty and goes out once the writer recovers.
	writer.failing = false
	if err := worker.Flush(ctx); err != nil {
		t.Fatalf("Flush(recovered) error = %v", err)
	}
	if len(writer.rows) != 1 {
		t.Errorf("wrote %d rows after recovery, want 1", len(writer.rows))
	}
}

func TestHandleChangeEvent_ResolvesTransactionDate(t *testing.T) {
	writer := &fakeWriter{}
	worker, store := newTestWorker(t, writer)
	ctx := context.Background()

	account, err := store.CreateAccount(ctx, core.Account{
		Name: "Main", Type: core.AccountChecking, Currency: "EUR", IsActive: true,
	})
	if err != nil {
		t.Fatalf("CreateAccount() error = %v", err)
	}
	tx, err := store.AddTransaction(ctx, core.Transaction{
		AccountID:   account.ID,
		Date:        time.Date(2025, 7, 15, 0, 0, 0, 0, time.UTC),
		Amount:      -10,
		Category:    "food",
		Description: "x",
	})
	if err != nil {
		t.Fatalf("AddTransaction() error = %v", err)
	}

	// Transaction events carry no period; the worker looks the row up.
	event := events.NewTransactionEvent(events.KindTransactionAdded, tx.ID, account.ID)
	if err := worker.HandleChangeEvent(ctx, event); err != nil {
		t.Fatalf("HandleChangeEvent() error = %v", err)
	}

	if err := worker.Flush(ctx); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	if len(writer.rows) != 1 {
		t.Fatalf("wrote %d rows, want 1", len(writer.rows))
	}
	if writer.rows[0][0] != 2025 || writer.rows[0][1] != 7 {
		t.Errorf("row period = %v-%v, want 2025-7", writer.rows[0][0], writer.rows[0][1])
	}
}

func TestHandleChangeEvent_DeletedRowFallsBackToCurrentMonth(t *testing.T) {
	writer := &fakeWriter{}
	worker, _ := newTestWorker(t, writer)
	ctx := context.Background()

	event := events.NewTransactionEvent(events.KindTransactionDeleted, 123, 0)
	if err := worker.HandleChangeEvent(ctx, event); err != nil {
		t.Fatalf("HandleChangeEvent() error = %v", err)
	}

	if err := worker.Flush(ctx); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	if len(writer.rows) != 1 {
		t.Fatalf("wrote %d rows, want 1", len(writer.rows))
	}
	now := core.PeriodOf(time.Now())
	if writer.rows[0][0] != now.Year || writer.rows[0][1] != now.Month {
		t.Errorf("row period = %v-%v, want current month %s", writer.rows[0][0], writer.rows[0][1], now.String())
	}
}

func TestHandleChangeEvent_DuplicateEventsCollapse(t *testing.T) {
	writer := &fakeWriter{}
	worker, store := newTestWorker(t, writer)
	ctx := context.Background()

	seedSnapshot(t, store, 2026, 1, 2000, 1350)

	for i := 0; i < 5; i++ {
		event := events.NewSnapshotEvent(events.KindSnapshotUpdated, 1, 1, 2026, 1)
		if err := worker.HandleChangeEvent(ctx, event); err != nil {
			t.Fatalf("HandleChangeEvent() error = %v", err)
		}
	}

	if err := worker.Flush(ctx); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	if len(writer.rows) != 1 {
		t.Errorf("wrote %d rows for five events on one month, want 1", len(writer.rows))
	}
}

func TestStartupExport(t *testing.T) {
	writer := &fakeWriter{}
	worker, store := newTestWorker(t, writer)
	ctx := context.Background()

	// Only the current year is exported at boot, one row per active month.
	year := time.Now().Year()
	seedSnapshot(t, store, year, 1, 2000, 1350)

	if err := worker.StartupExport(ctx); err != nil {
		t.Fatalf("StartupExport() error = %v", err)
	}
	if len(writer.rows) != 1 {
		t.Fatalf("wrote %d rows, want 1", len(writer.rows))
	}
	if writer.rows[0][0] != year || writer.rows[0][1] != 1 {
		t.Errorf("row period = %v-%v, want %d-1", writer.rows[0][0], writer.rows[0][1], year)
	}
}
