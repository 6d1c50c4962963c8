package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"finassist/internal/core"
)

// CreateAccount persists a new account and returns it with its assigned ID.
func (s *Store) CreateAccount(ctx context.Context, a core.Account) (core.Account, error) {
	if err := a.Validate(); err != nil {
		return core.Account{}, err
	}

	now := time.Now()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO accounts (name, type, currency, is_active, created_at) VALUES (?, ?, ?, ?, ?)`,
		a.Name, string(a.Type), a.Currency, boolToInt(a.IsActive), formatTime(now))
	if err != nil {
		return core.Account{}, fmt.Errorf("insert account: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return core.Account{}, fmt.Errorf("account insert id: %w", err)
	}

	a.ID = id
	a.CreatedAt = now.UTC()
	return a, nil
}

// GetAccount returns the account or core.ErrNotFound.
func (s *Store) GetAccount(ctx context.Context, id int64) (core.Account, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, type, currency, is_active, created_at FROM accounts WHERE id = ?`, id)

	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Account{}, core.ErrNotFound
	}
	if err != nil {
		return core.Account{}, fmt.Errorf("get account: %w", err)
	}
	return a, nil
}

// ListAccounts returns accounts ordered by name, optionally active ones only.
func (s *Store) ListAccounts(ctx context.Context, activeOnly bool) ([]core.Account, error) {
	q := `SELECT id, name, type, currency, is_active, created_at FROM accounts`
	if activeOnly {
		q += ` WHERE is_active = 1`
	}
	q += ` ORDER BY name`

	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var out []core.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// DeactivateAccount soft-deletes: the account and its history stay in place
// but it no longer shows up in active listings.
func (s *Store) DeactivateAccount(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `UPDATE accounts SET is_active = 0 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deactivate account: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deactivate account rows: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

// DeleteAccount removes the account; snapshots and transactions cascade.
func (s *Store) DeleteAccount(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete account rows: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(r rowScanner) (core.Account, error) {
	var (
		a         core.Account
		typ       string
		active    int
		createdAt string
	)
	if err := r.Scan(&a.ID, &a.Name, &typ, &a.Currency, &active, &createdAt); err != nil {
		return core.Account{}, err
	}
	a.Type = core.AccountType(typ)
	a.IsActive = active != 0
	a.CreatedAt = parseTime(createdAt)
	return a, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
