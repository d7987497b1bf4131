package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/avickers/tempo/internal/storage"
	"github.com/avickers/tempo/internal/types"
)

const activityColumns = `a.id, a.name, a.category_id, IFNULL(c.name, ''), a.deleted`

func scanActivity(row interface{ Scan(...interface{}) error }) (*types.Activity, error) {
	var a types.Activity
	var categoryID sql.NullInt64
	var deleted int
	if err := row.Scan(&a.ID, &a.Name, &categoryID, &a.Category, &deleted); err != nil {
		return nil, err
	}
	if categoryID.Valid {
		a.CategoryID = &categoryID.Int64
	}
	a.Deleted = deleted != 0
	return &a, nil
}

// GetActivities returns activities with their category names, sorted by
// name. Deleted activities are excluded unless includeDeleted is set.
func (s *Store) GetActivities(ctx context.Context, includeDeleted bool) ([]*types.Activity, error) {
	query := `SELECT ` + activityColumns + `
		FROM activities a LEFT JOIN categories c ON c.id = a.category_id`
	if !includeDeleted {
		query += ` WHERE a.deleted = 0`
	}
	query += ` ORDER BY a.name COLLATE NOCASE, a.id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying activities: %w", err)
	}
	defer rows.Close()

	var acts []*types.Activity
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning activity: %w", err)
		}
		acts = append(acts, a)
	}
	return acts, rows.Err()
}

// GetActivityByName finds an activity by name within a category (0 means
// uncategorized). A deleted match is resurrected unless resurrect is false.
func (s *Store) GetActivityByName(ctx context.Context, name string, categoryID int64, resurrect bool) (*types.Activity, error) {
	var act *types.Activity
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `SELECT `+activityColumns+`
			FROM activities a LEFT JOIN categories c ON c.id = a.category_id
			WHERE a.name = ? AND IFNULL(a.category_id, 0) = ?`, name, categoryID)
		a, err := scanActivity(row)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("activity %q: %w", name, storage.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("querying activity by name: %w", err)
		}
		if a.Deleted && resurrect {
			if _, err := tx.ExecContext(ctx,
				`UPDATE activities SET deleted = 0 WHERE id = ?`, a.ID); err != nil {
				return wrapErr(err)
			}
			a.Deleted = false
		}
		act = a
		return nil
	})
	return act, err
}

// AddActivity creates an activity; categoryID 0 means uncategorized.
func (s *Store) AddActivity(ctx context.Context, name string, categoryID int64) (*types.Activity, error) {
	var act *types.Activity
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		id, err := insertActivity(ctx, tx, name, nullableID(categoryID))
		if err != nil {
			return err
		}
		a, err := loadActivity(ctx, tx, id)
		if err != nil {
			return err
		}
		act = a
		return nil
	})
	return act, err
}

// UpdateActivity renames an activity and moves it between categories.
func (s *Store) UpdateActivity(ctx context.Context, id int64, name string, categoryID int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE activities SET name = ?, category_id = ? WHERE id = ?`,
			name, nullableID(categoryID), id)
		if err != nil {
			return wrapErr(err)
		}
		return requireRow(res, "activity", id)
	})
}

// ChangeCategory moves an activity to another category.
func (s *Store) ChangeCategory(ctx context.Context, id, categoryID int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE activities SET category_id = ? WHERE id = ?`, nullableID(categoryID), id)
		if err != nil {
			return wrapErr(err)
		}
		return requireRow(res, "activity", id)
	})
}

// RemoveActivity soft-deletes an activity still referenced by facts, and
// hard-deletes one that is not, so history keeps resolving.
func (s *Store) RemoveActivity(ctx context.Context, id int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var inUse bool
		err := tx.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM facts WHERE activity_id = ?)`, id).Scan(&inUse)
		if err != nil {
			return fmt.Errorf("checking activity usage: %w", err)
		}

		var res sql.Result
		if inUse {
			res, err = tx.ExecContext(ctx, `UPDATE activities SET deleted = 1 WHERE id = ?`, id)
		} else {
			res, err = tx.ExecContext(ctx, `DELETE FROM activities WHERE id = ?`, id)
		}
		if err != nil {
			return wrapErr(err)
		}
		return requireRow(res, "activity", id)
	})
}

// resolveActivity finds an activity by name and category, resurrecting a
// deleted match and creating the activity when missing.
func resolveActivity(ctx context.Context, q queryer, name string, categoryID *int64) (int64, error) {
	var catKey int64
	if categoryID != nil {
		catKey = *categoryID
	}

	var id int64
	var deleted int
	err := q.QueryRowContext(ctx,
		`SELECT id, deleted FROM activities WHERE name = ? AND IFNULL(category_id, 0) = ?`,
		name, catKey).Scan(&id, &deleted)
	if errors.Is(err, sql.ErrNoRows) {
		return insertActivity(ctx, q, name, categoryID)
	}
	if err != nil {
		return 0, fmt.Errorf("resolving activity %q: %w", name, err)
	}
	if deleted != 0 {
		if _, err := q.ExecContext(ctx, `UPDATE activities SET deleted = 0 WHERE id = ?`, id); err != nil {
			return 0, wrapErr(err)
		}
	}
	return id, nil
}

func insertActivity(ctx context.Context, q queryer, name string, categoryID *int64) (int64, error) {
	res, err := q.ExecContext(ctx,
		`INSERT INTO activities (name, category_id) VALUES (?, ?)`, name, categoryID)
	if err != nil {
		return 0, wrapErr(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return id, nil
}

func loadActivity(ctx context.Context, q queryer, id int64) (*types.Activity, error) {
	row := q.QueryRowContext(ctx, `SELECT `+activityColumns+`
		FROM activities a LEFT JOIN categories c ON c.id = a.category_id
		WHERE a.id = ?`, id)
	a, err := scanActivity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("activity %d: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading activity: %w", err)
	}
	return a, nil
}

// nullableID maps the 0 sentinel onto SQL NULL.
func nullableID(id int64) *int64 {
	if id == 0 {
		return nil
	}
	return &id
}

// requireRow converts a zero-row write into ErrNotFound.
func requireRow(res sql.Result, entity string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %d: %w", entity, id, storage.ErrNotFound)
	}
	return nil
}
