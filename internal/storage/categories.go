package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"finassist/internal/core"
)

// EnsureCategory inserts the category name if it is not already known.
// ON CONFLICT DO NOTHING makes a concurrent duplicate insert a no-op instead
// of an error, so racing writers both observe success.
func (s *Store) EnsureCategory(ctx context.Context, name string) error {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return core.ErrEmptyCategory
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO categories (name, type, created_at) VALUES (?, 'expense', ?)
		 ON CONFLICT(name) DO NOTHING`,
		name, formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("ensure category: %w", err)
	}
	return nil
}

// CreateCategory persists an explicitly defined category with type and color.
func (s *Store) CreateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	c.Name = strings.ToLower(strings.TrimSpace(c.Name))

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO categories (name, type, color, created_at) VALUES (?, ?, ?, ?)`,
		c.Name, string(c.Type), nullableString(c.Color), formatTime(time.Now()))
	if err != nil {
		if isUniqueViolation(err) {
			return core.Category{}, fmt.Errorf("category %q: %w", c.Name, core.ErrDuplicateCategory)
		}
		return core.Category{}, fmt.Errorf("insert category: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return core.Category{}, fmt.Errorf("category insert id: %w", err)
	}
	c.ID = id
	return c, nil
}

// ListCategories returns categories ordered by name, optionally filtered by
// type.
func (s *Store) ListCategories(ctx context.Context, typ *core.CategoryType) ([]core.Category, error) {
	q := `SELECT id, name, type, color FROM categories`
	var args []any
	if typ != nil {
		q += ` WHERE type = ?`
		args = append(args, string(*typ))
	}
	q += ` ORDER BY name`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		var (
			c     core.Category
			typ   string
			color sql.NullString
		)
		if err := rows.Scan(&c.ID, &c.Name, &typ, &color); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		c.Type = core.CategoryType(typ)
		c.Color = color.String
		out = append(out, c)
	}
	return out, rows.Err()
}

// CategoryNames returns the known category names in alphabetical order.
func (s *Store) CategoryNames(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list category names: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan category name: %w", err)
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
