package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/avickers/tempo/internal/storage"
	"github.com/avickers/tempo/internal/types"
)

// GetCategories returns all categories sorted by name.
func (s *Store) GetCategories(ctx context.Context) ([]*types.Category, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name FROM categories ORDER BY name COLLATE NOCASE`)
	if err != nil {
		return nil, fmt.Errorf("querying categories: %w", err)
	}
	defer rows.Close()

	var cats []*types.Category
	for rows.Next() {
		var c types.Category
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, fmt.Errorf("scanning category: %w", err)
		}
		cats = append(cats, &c)
	}
	return cats, rows.Err()
}

// GetCategoryID looks a category up by name.
func (s *Store) GetCategoryID(ctx context.Context, name string) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM categories WHERE name = ?`, name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("category %q: %w", name, storage.ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("querying category id: %w", err)
	}
	return id, nil
}

// AddCategory creates a category. Duplicate names violate integrity.
func (s *Store) AddCategory(ctx context.Context, name string) (*types.Category, error) {
	var cat *types.Category
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `INSERT INTO categories (name) VALUES (?)`, name)
		if err != nil {
			return wrapErr(err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		cat = &types.Category{ID: id, Name: name}
		return nil
	})
	return cat, err
}

// UpdateCategory renames a category.
func (s *Store) UpdateCategory(ctx context.Context, id int64, name string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE categories SET name = ? WHERE id = ?`, name, id)
		if err != nil {
			return wrapErr(err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("category %d: %w", id, storage.ErrNotFound)
		}
		return nil
	})
}

// RemoveCategory deletes a category; its activities become uncategorized.
func (s *Store) RemoveCategory(ctx context.Context, id int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`UPDATE activities SET category_id = NULL WHERE category_id = ?`, id); err != nil {
			return wrapErr(err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id)
		if err != nil {
			return wrapErr(err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("category %d: %w", id, storage.ErrNotFound)
		}
		return nil
	})
}

// resolveCategory finds or creates a category by name, returning its id.
// An empty name means uncategorized (nil).
func resolveCategory(ctx context.Context, q queryer, name string) (*int64, error) {
	if name == "" {
		return nil, nil
	}
	var id int64
	err := q.QueryRowContext(ctx, `SELECT id FROM categories WHERE name = ?`, name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		res, err := q.ExecContext(ctx, `INSERT INTO categories (name) VALUES (?)`, name)
		if err != nil {
			return nil, wrapErr(err)
		}
		id, err = res.LastInsertId()
		if err != nil {
			return nil, err
		}
		return &id, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolving category %q: %w", name, err)
	}
	return &id, nil
}
