package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"finassist/internal/core"
)

// Read-side aggregate queries. All numbers derived from snapshots or
// transactions come out of SQL set aggregation here; the aggregation engine
// composes these and owns the degrade-to-zero error contract.

// SumEndingBalances sums ending_balance across all snapshots of one month.
func (s *Store) SumEndingBalances(ctx context.Context, p core.Period) (float64, error) {
	return s.scalarForPeriod(ctx, `ending_balance`, p)
}

// SumIncome sums total_income across all snapshots of one month.
func (s *Store) SumIncome(ctx context.Context, p core.Period) (float64, error) {
	return s.scalarForPeriod(ctx, `total_income`, p)
}

// SumExpense sums total_expense across all snapshots of one month.
func (s *Store) SumExpense(ctx context.Context, p core.Period) (float64, error) {
	return s.scalarForPeriod(ctx, `total_expense`, p)
}

func (s *Store) scalarForPeriod(ctx context.Context, column string, p core.Period) (float64, error) {
	var total float64
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(`+column+`), 0) FROM monthly_account_snapshots WHERE year = ? AND month = ?`,
		p.Year, p.Month).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum %s: %w", column, err)
	}
	return total, nil
}

// SumCurrentEndingBalances sums, across all accounts, the ending balance of
// each account's most recent snapshot. "Most recent" is the maximum combined
// period key year*100+month, which orders correctly because month never
// exceeds 12. Accounts without snapshots contribute nothing.
func (s *Store) SumCurrentEndingBalances(ctx context.Context) (float64, error) {
	var total float64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(snap.ending_balance), 0)
		FROM monthly_account_snapshots snap
		JOIN (
			SELECT account_id, MAX(year * 100 + month) AS max_period
			FROM monthly_account_snapshots
			GROUP BY account_id
		) latest
		ON snap.account_id = latest.account_id
		AND snap.year * 100 + snap.month = latest.max_period`).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum current balances: %w", err)
	}
	return total, nil
}

// CategoryTotals groups transactions by category for a year (and optionally a
// month), ordered by summed amount descending. This is a transaction-level
// breakdown for display only; it never feeds balance arithmetic.
func (s *Store) CategoryTotals(ctx context.Context, year int, month *int) ([]core.CategoryAggregate, error) {
	q := `SELECT category, SUM(amount) AS total, COUNT(id) AS cnt
	      FROM transactions
	      WHERE CAST(strftime('%Y', date) AS INTEGER) = ?`
	args := []any{year}
	if month != nil {
		q += ` AND CAST(strftime('%m', date) AS INTEGER) = ?`
		args = append(args, *month)
	}
	q += ` GROUP BY category ORDER BY SUM(amount) DESC`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("category totals: %w", err)
	}
	defer rows.Close()

	var out []core.CategoryAggregate
	for rows.Next() {
		var agg core.CategoryAggregate
		if err := rows.Scan(&agg.Category, &agg.Total, &agg.Count); err != nil {
			return nil, fmt.Errorf("scan category total: %w", err)
		}
		out = append(out, agg)
	}
	return out, rows.Err()
}

// CategoryMonthlyAverage averages the per-month totals of one category over
// [from, to). The second return value is false when the window holds no
// transactions for the category, so callers can tell "no baseline" apart
// from a genuine zero average.
func (s *Store) CategoryMonthlyAverage(ctx context.Context, category string, from, to time.Time) (float64, bool, error) {
	var avg sql.NullFloat64
	err := s.db.QueryRowContext(ctx, `
		SELECT AVG(monthly_total) FROM (
			SELECT SUM(amount) AS monthly_total
			FROM transactions
			WHERE category = ? AND date >= ? AND date < ?
			GROUP BY strftime('%Y-%m', date)
		)`,
		category, formatDate(from), formatDate(to)).Scan(&avg)
	if err != nil {
		return 0, false, fmt.Errorf("category monthly average: %w", err)
	}
	if !avg.Valid {
		return 0, false, nil
	}
	return avg.Float64, true, nil
}
