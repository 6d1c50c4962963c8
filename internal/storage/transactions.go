package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"finassist/internal/core"
)

// TransactionFilter narrows ListTransactions. The category match is
// case-insensitive and exact; date bounds are inclusive.
type TransactionFilter struct {
	AccountID *int64
	Category  string
	StartDate *time.Time
	EndDate   *time.Time
}

// AddTransaction appends a detail row. The referenced category is created on
// the fly when unknown; a concurrent duplicate insert of the same category
// name is benign. Transactions never affect balances.
func (s *Store) AddTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}
	if tx.Currency == "" {
		tx.Currency = "EUR"
	}

	now := time.Now()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO transactions (account_id, date, amount, category, description, currency, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		tx.AccountID, formatDate(tx.Date), tx.Amount, tx.Category, tx.Description, tx.Currency, formatTime(now))
	if err != nil {
		if isForeignKeyViolation(err) {
			return core.Transaction{}, fmt.Errorf("account %d: %w", tx.AccountID, core.ErrAccountMissing)
		}
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction insert id: %w", err)
	}

	if err := s.EnsureCategory(ctx, tx.Category); err != nil {
		// Category bookkeeping is best-effort; the transaction row is already
		// committed and that is what matters.
		slog.WarnContext(ctx, "Failed to ensure category", "category", tx.Category, "error", err)
	}

	tx.ID = id
	tx.CreatedAt = now.UTC()
	return tx, nil
}

// AddTransactionsBulk appends several rows in one database transaction.
func (s *Store) AddTransactionsBulk(ctx context.Context, txs []core.Transaction) ([]core.Transaction, error) {
	for i, tx := range txs {
		if err := tx.Validate(); err != nil {
			return nil, fmt.Errorf("transaction %d: %w", i, err)
		}
	}

	dbtx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin bulk insert: %w", err)
	}
	defer dbtx.Rollback()

	now := time.Now()
	out := make([]core.Transaction, 0, len(txs))
	for _, tx := range txs {
		if tx.Currency == "" {
			tx.Currency = "EUR"
		}
		res, err := dbtx.ExecContext(ctx,
			`INSERT INTO transactions (account_id, date, amount, category, description, currency, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			tx.AccountID, formatDate(tx.Date), tx.Amount, tx.Category, tx.Description, tx.Currency, formatTime(now))
		if err != nil {
			if isForeignKeyViolation(err) {
				return nil, fmt.Errorf("account %d: %w", tx.AccountID, core.ErrAccountMissing)
			}
			return nil, fmt.Errorf("insert transaction: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("transaction insert id: %w", err)
		}
		tx.ID = id
		tx.CreatedAt = now.UTC()
		out = append(out, tx)
	}

	if err := dbtx.Commit(); err != nil {
		return nil, fmt.Errorf("commit bulk insert: %w", err)
	}

	for _, tx := range out {
		if err := s.EnsureCategory(ctx, tx.Category); err != nil {
			slog.WarnContext(ctx, "Failed to ensure category", "category", tx.Category, "error", err)
		}
	}
	return out, nil
}

// GetTransaction fetches one row by id.
func (s *Store) GetTransaction(ctx context.Context, id int64) (core.Transaction, error) {
	var (
		tx        core.Transaction
		date      string
		createdAt string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, account_id, date, amount, category, description, currency, created_at
		 FROM transactions WHERE id = ?`, id).
		Scan(&tx.ID, &tx.AccountID, &date, &tx.Amount, &tx.Category,
			&tx.Description, &tx.Currency, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Transaction{}, fmt.Errorf("transaction %d: %w", id, core.ErrNotFound)
		}
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	tx.Date = parseDate(date)
	tx.CreatedAt = parseTime(createdAt)
	return tx, nil
}

// DeleteTransaction removes one row; it reports whether a row existed.
func (s *Store) DeleteTransaction(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete transaction: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete transaction rows: %w", err)
	}
	return n > 0, nil
}

// ListTransactions returns rows matching the filter ordered by date
// descending.
func (s *Store) ListTransactions(ctx context.Context, f TransactionFilter) ([]core.Transaction, error) {
	q := `SELECT id, account_id, date, amount, category, description, currency, created_at
	      FROM transactions`
	var (
		where []string
		args  []any
	)
	if f.AccountID != nil {
		where = append(where, "account_id = ?")
		args = append(args, *f.AccountID)
	}
	if f.Category != "" {
		where = append(where, "category = ? COLLATE NOCASE")
		args = append(args, f.Category)
	}
	if f.StartDate != nil {
		where = append(where, "date >= ?")
		args = append(args, formatDate(*f.StartDate))
	}
	if f.EndDate != nil {
		where = append(where, "date <= ?")
		args = append(args, formatDate(*f.EndDate))
	}
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY date DESC, id DESC`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		var (
			tx        core.Transaction
			date      string
			createdAt string
		)
		err := rows.Scan(&tx.ID, &tx.AccountID, &date, &tx.Amount, &tx.Category,
			&tx.Description, &tx.Currency, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		tx.Date = parseDate(date)
		tx.CreatedAt = parseTime(createdAt)
		out = append(out, tx)
	}
	return out, rows.Err()
}

// SumTransactionAmounts sums every transaction amount. This is a detail-level
// figure for drill-down views; authoritative balances come from snapshots.
func (s *Store) SumTransactionAmounts(ctx context.Context) (float64, error) {
	var total float64
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM transactions`).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum transactions: %w", err)
	}
	return total, nil
}
