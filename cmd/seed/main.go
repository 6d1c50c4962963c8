// Command seed populates a development database with a sample account,
// a pair of monthly snapshots, and a week of transactions.
package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"finassist/internal/config"
	"finassist/internal/core"
	"finassist/internal/storage"
)

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	store, err := storage.Open(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to open storage", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer store.Close()

	ctx := context.Background()

	account, err := store.CreateAccount(ctx, core.Account{
		Name:     "Main Checking",
		Type:     core.AccountChecking,
		Currency: "EUR",
		IsActive: true,
	})
	if err != nil {
		logger.Error("Failed to create account", "error", err)
		os.Exit(1)
	}
	logger.Info("Created account", "id", account.ID, "name", account.Name)

	now := time.Now()
	current := core.PeriodOf(now)
	previous := current.Prev()

	snapshots := []core.Snapshot{
		{
			AccountID:       account.ID,
			Year:            previous.Year,
			Month:           previous.Month,
			StartingBalance: 2000,
			EndingBalance:   2650,
			TotalIncome:     2000,
			TotalExpense:    1350,
		},
		{
			AccountID:       account.ID,
			Year:            current.Year,
			Month:           current.Month,
			StartingBalance: 2650,
			EndingBalance:   3300,
			TotalIncome:     2000,
			TotalExpense:    1350,
		},
	}
	for _, snap := range snapshots {
		created, err := store.CreateSnapshot(ctx, snap)
		if err != nil {
			logger.Error("Failed to create snapshot", "error", err,
				"year", snap.Year, "month", snap.Month)
			os.Exit(1)
		}
		logger.Info("Created snapshot", "id", created.ID,
			"period", core.Period{Year: created.Year, Month: created.Month}.String())
	}

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	day := func(offset int) time.Time { return today.AddDate(0, 0, -offset) }

	seed := []core.Transaction{
		{AccountID: account.ID, Date: day(6), Amount: -50, Category: "food", Description: "Grocery shopping"},
		{AccountID: account.ID, Date: day(5), Amount: -15, Category: "transport", Description: "Bus ticket"},
		{AccountID: account.ID, Date: day(4), Amount: -1200, Category: "rent", Description: "Monthly rent"},
		{AccountID: account.ID, Date: day(3), Amount: -30, Category: "food", Description: "Dinner out"},
		{AccountID: account.ID, Date: day(2), Amount: 2000, Category: "income", Description: "Salary"},
		{AccountID: account.ID, Date: day(1), Amount: -45, Category: "food", Description: "Lunch with friends"},
		{AccountID: account.ID, Date: day(0), Amount: -10, Category: "transport", Description: "Parking"},
	}

	created, err := store.AddTransactionsBulk(ctx, seed)
	if err != nil {
		logger.Error("Failed to seed transactions", "error", err)
		os.Exit(1)
	}

	logger.Info("Seed complete",
		"account_id", account.ID,
		"snapshots", len(snapshots),
		"transactions", len(created),
		"db", cfg.SQLiteDBPath)
}
