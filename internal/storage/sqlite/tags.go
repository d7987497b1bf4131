package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/avickers/tempo/internal/types"
)

// GetTags returns all tags sorted by name, optionally restricted to those
// offered for autocomplete.
func (s *Store) GetTags(ctx context.Context, autocompleteOnly bool) ([]*types.Tag, error) {
	query := `SELECT id, name, autocomplete FROM tags`
	if autocompleteOnly {
		query += ` WHERE autocomplete = 1`
	}
	query += ` ORDER BY name COLLATE NOCASE`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying tags: %w", err)
	}
	defer rows.Close()

	var tags []*types.Tag
	for rows.Next() {
		var t types.Tag
		var auto int
		if err := rows.Scan(&t.ID, &t.Name, &auto); err != nil {
			return nil, fmt.Errorf("scanning tag: %w", err)
		}
		t.Autocomplete = auto != 0
		tags = append(tags, &t)
	}
	return tags, rows.Err()
}

// GetTagIDs resolves names to tags in input order, creating missing tags
// and resurrecting ones dropped from autocomplete. The bool reports whether
// the tag set was mutated (callers publish tags-changed only then).
func (s *Store) GetTagIDs(ctx context.Context, names []string) ([]*types.Tag, bool, error) {
	var tags []*types.Tag
	var mutated bool
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		tags, mutated, err = resolveTags(ctx, tx, names)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return tags, mutated, nil
}

// UpdateAutocompleteTags replaces the autocomplete set with exactly the
// named tags, creating any that do not exist yet.
func (s *Store) UpdateAutocompleteTags(ctx context.Context, names []string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `UPDATE tags SET autocomplete = 0`); err != nil {
			return wrapErr(err)
		}
		_, _, err := resolveTags(ctx, tx, names)
		return err
	})
}

// resolveTags finds or creates tags by name, setting autocomplete on every
// resolved tag. Blank names are skipped.
func resolveTags(ctx context.Context, q queryer, names []string) ([]*types.Tag, bool, error) {
	var tags []*types.Tag
	var mutated bool
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}

		var t types.Tag
		var auto int
		err := q.QueryRowContext(ctx,
			`SELECT id, name, autocomplete FROM tags WHERE name = ?`, name).
			Scan(&t.ID, &t.Name, &auto)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			res, err := q.ExecContext(ctx,
				`INSERT INTO tags (name, autocomplete) VALUES (?, 1)`, name)
			if err != nil {
				return nil, false, wrapErr(err)
			}
			id, err := res.LastInsertId()
			if err != nil {
				return nil, false, err
			}
			t = types.Tag{ID: id, Name: name, Autocomplete: true}
			mutated = true
		case err != nil:
			return nil, false, fmt.Errorf("resolving tag %q: %w", name, err)
		default:
			t.Autocomplete = auto != 0
			if !t.Autocomplete {
				if _, err := q.ExecContext(ctx,
					`UPDATE tags SET autocomplete = 1 WHERE id = ?`, t.ID); err != nil {
					return nil, false, wrapErr(err)
				}
				t.Autocomplete = true
				mutated = true
			}
		}
		tags = append(tags, &t)
	}
	return tags, mutated, nil
}
