package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"finassist/internal/core"
)

// CreateSnapshot inserts a new monthly snapshot. The (account, year, month)
// uniqueness is enforced by the database constraint so concurrent creates for
// the same key resolve to exactly one winner; the loser gets
// core.ErrDuplicateSnapshot. A write for an unknown account fails with
// core.ErrAccountMissing via the foreign key.
func (s *Store) CreateSnapshot(ctx context.Context, snap core.Snapshot) (core.Snapshot, error) {
	if err := snap.Validate(); err != nil {
		return core.Snapshot{}, err
	}

	now := time.Now()
	ts := formatTime(now)
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO monthly_account_snapshots
		 (account_id, year, month, starting_balance, ending_balance, total_income, total_expense, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		snap.AccountID, snap.Year, snap.Month,
		snap.StartingBalance, snap.EndingBalance, snap.TotalIncome, snap.TotalExpense,
		ts, ts)
	if err != nil {
		if isUniqueViolation(err) {
			return core.Snapshot{}, fmt.Errorf("account %d period %d-%02d: %w",
				snap.AccountID, snap.Year, snap.Month, core.ErrDuplicateSnapshot)
		}
		if isForeignKeyViolation(err) {
			return core.Snapshot{}, fmt.Errorf("account %d: %w", snap.AccountID, core.ErrAccountMissing)
		}
		return core.Snapshot{}, fmt.Errorf("insert snapshot: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return core.Snapshot{}, fmt.Errorf("snapshot insert id: %w", err)
	}

	snap.ID = id
	snap.CreatedAt = now.UTC()
	snap.UpdatedAt = now.UTC()
	return snap, nil
}

// UpdateSnapshot applies a partial update to the snapshot identified by
// (accountID, year, month). It returns (nil, nil) when no such snapshot
// exists; callers must check for the absent result. Key fields are not
// mutable through this path.
func (s *Store) UpdateSnapshot(ctx context.Context, accountID int64, period core.Period, patch core.SnapshotPatch) (*core.Snapshot, error) {
	if err := period.Validate(); err != nil {
		return nil, err
	}
	if patch.Empty() {
		snap, err := s.GetSnapshot(ctx, accountID, period)
		if errors.Is(err, core.ErrNotFound) {
			return nil, nil
		}
		return snap, err
	}

	var (
		sets []string
		args []any
	)
	if patch.StartingBalance != nil {
		sets = append(sets, "starting_balance = ?")
		args = append(args, *patch.StartingBalance)
	}
	if patch.EndingBalance != nil {
		sets = append(sets, "ending_balance = ?")
		args = append(args, *patch.EndingBalance)
	}
	if patch.TotalIncome != nil {
		sets = append(sets, "total_income = ?")
		args = append(args, *patch.TotalIncome)
	}
	if patch.TotalExpense != nil {
		sets = append(sets, "total_expense = ?")
		args = append(args, *patch.TotalExpense)
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, formatTime(time.Now()))
	args = append(args, accountID, period.Year, period.Month)

	res, err := s.db.ExecContext(ctx,
		`UPDATE monthly_account_snapshots SET `+strings.Join(sets, ", ")+
			` WHERE account_id = ? AND year = ? AND month = ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("update snapshot: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("update snapshot rows: %w", err)
	}
	if n == 0 {
		return nil, nil
	}

	snap, err := s.GetSnapshot(ctx, accountID, period)
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// GetSnapshot returns the snapshot for the key or core.ErrNotFound.
func (s *Store) GetSnapshot(ctx context.Context, accountID int64, period core.Period) (*core.Snapshot, error) {
	row := s.db.QueryRowContext(ctx,
		snapshotColumns+` WHERE account_id = ? AND year = ? AND month = ?`,
		accountID, period.Year, period.Month)

	snap, err := scanSnapshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get snapshot: %w", err)
	}
	return &snap, nil
}

// ListSnapshotsForAccount returns the account's snapshots ordered by period
// descending. Either bound may be nil for an open-ended range; bounds are
// inclusive and compared on the combined period key.
func (s *Store) ListSnapshotsForAccount(ctx context.Context, accountID int64, start, end *core.Period) ([]core.Snapshot, error) {
	q := snapshotColumns + ` WHERE account_id = ?`
	args := []any{accountID}

	if start != nil {
		if err := start.Validate(); err != nil {
			return nil, err
		}
		q += ` AND (year * 100 + month) >= ?`
		args = append(args, start.Key())
	}
	if end != nil {
		if err := end.Validate(); err != nil {
			return nil, err
		}
		q += ` AND (year * 100 + month) <= ?`
		args = append(args, end.Key())
	}
	q += ` ORDER BY year DESC, month DESC`

	return s.querySnapshots(ctx, q, args...)
}

// ListSnapshotsForYear returns every account's snapshots for one year,
// ordered by month then account.
func (s *Store) ListSnapshotsForYear(ctx context.Context, year int) ([]core.Snapshot, error) {
	return s.querySnapshots(ctx,
		snapshotColumns+` WHERE year = ? ORDER BY month, account_id`, year)
}

// ListRecentSnapshots returns up to limit snapshots ordered by period
// descending, optionally restricted to one account.
func (s *Store) ListRecentSnapshots(ctx context.Context, accountID *int64, limit int) ([]core.Snapshot, error) {
	q := snapshotColumns
	var args []any
	if accountID != nil {
		q += ` WHERE account_id = ?`
		args = append(args, *accountID)
	}
	q += ` ORDER BY year DESC, month DESC LIMIT ?`
	args = append(args, limit)

	return s.querySnapshots(ctx, q, args...)
}

const snapshotColumns = `SELECT id, account_id, year, month, starting_balance, ending_balance,
	total_income, total_expense, created_at, updated_at FROM monthly_account_snapshots`

func (s *Store) querySnapshots(ctx context.Context, q string, args ...any) ([]core.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	var out []core.Snapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

func scanSnapshot(r rowScanner) (core.Snapshot, error) {
	var (
		snap                 core.Snapshot
		createdAt, updatedAt string
	)
	err := r.Scan(&snap.ID, &snap.AccountID, &snap.Year, &snap.Month,
		&snap.StartingBalance, &snap.EndingBalance, &snap.TotalIncome, &snap.TotalExpense,
		&createdAt, &updatedAt)
	if err != nil {
		return core.Snapshot{}, err
	}
	snap.CreatedAt = parseTime(createdAt)
	snap.UpdatedAt = parseTime(updatedAt)
	return snap, nil
}
