package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/avickers/tempo/internal/storage"
	"github.com/avickers/tempo/internal/types"
)

const factColumns = `f.id, f.activity_id, a.name, IFNULL(c.name, ''), f.start_time, f.end_time, f.description`

const factJoin = `FROM facts f
	JOIN activities a ON a.id = f.activity_id
	LEFT JOIN categories c ON c.id = a.category_id`

func scanFact(row interface{ Scan(...interface{}) error }) (*types.Fact, error) {
	var f types.Fact
	var start int64
	var end sql.NullInt64
	if err := row.Scan(&f.ID, &f.ActivityID, &f.Activity, &f.Category, &start, &end, &f.Description); err != nil {
		return nil, err
	}
	f.StartTime = time.Unix(start, 0)
	if end.Valid {
		t := time.Unix(end.Int64, 0)
		f.EndTime = &t
	}
	return &f, nil
}

// GetFact returns one fact with its tags.
func (s *Store) GetFact(ctx context.Context, id int64) (*types.Fact, error) {
	return loadFact(ctx, s.db, id)
}

// GetFacts returns facts overlapping rng, sorted by start time ascending.
// Open facts match when they start inside the range.
func (s *Store) GetFacts(ctx context.Context, rng types.Range) ([]*types.Fact, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+factColumns+` `+factJoin+`
		WHERE f.start_time <= ? AND (f.end_time IS NULL OR f.end_time >= ?)
		ORDER BY f.start_time, f.id`,
		rng.End.Unix(), rng.Start.Unix())
	if err != nil {
		return nil, fmt.Errorf("querying facts: %w", err)
	}
	defer rows.Close()

	var facts []*types.Fact
	for rows.Next() {
		f, err := scanFact(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning fact: %w", err)
		}
		facts = append(facts, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, f := range facts {
		if err := attachTags(ctx, s.db, f); err != nil {
			return nil, err
		}
	}
	return facts, nil
}

// GetOpenFact returns the currently tracked fact, or nil if none.
func (s *Store) GetOpenFact(ctx context.Context) (*types.Fact, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+factColumns+` `+factJoin+`
		WHERE f.end_time IS NULL ORDER BY f.start_time DESC, f.id DESC LIMIT 1`)
	f, err := scanFact(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying open fact: %w", err)
	}
	if err := attachTags(ctx, s.db, f); err != nil {
		return nil, err
	}
	return f, nil
}

// AddFact inserts a fact. A fact without an end time closes any currently
// open fact at the new fact's start, all in one transaction, so the
// at-most-one-open invariant holds at every commit point.
func (s *Store) AddFact(ctx context.Context, nf types.NewFact) (*types.Fact, error) {
	var fact *types.Fact
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		id, err := insertFact(ctx, tx, nf)
		if err != nil {
			return err
		}
		fact, err = loadFact(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return fact, nil
}

// UpdateFact replaces a fact via remove+insert; the returned fact carries a
// new id, so callers must not hold on to the old one.
func (s *Store) UpdateFact(ctx context.Context, id int64, nf types.NewFact) (*types.Fact, error) {
	var fact *types.Fact
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM facts WHERE id = ?`, id)
		if err != nil {
			return wrapErr(err)
		}
		if err := requireRow(res, "fact", id); err != nil {
			return err
		}
		newID, err := insertFact(ctx, tx, nf)
		if err != nil {
			return err
		}
		fact, err = loadFact(ctx, tx, newID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return fact, nil
}

// RemoveFact deletes a fact. Removing an unknown id is a no-op, not an
// error; the bool reports whether a row was deleted.
func (s *Store) RemoveFact(ctx context.Context, id int64) (bool, error) {
	var removed bool
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM facts WHERE id = ?`, id)
		if err != nil {
			return wrapErr(err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		removed = n > 0
		return nil
	})
	return removed, err
}

// StopTracking closes the open fact at end. Returns (nil, nil) without
// writing when nothing is open.
func (s *Store) StopTracking(ctx context.Context, end time.Time) (*types.Fact, error) {
	open, err := s.GetOpenFact(ctx)
	if err != nil {
		return nil, err
	}
	if open == nil {
		return nil, nil
	}
	if end.Before(open.StartTime) {
		return nil, fmt.Errorf("%w: end %s before start %s",
			storage.ErrIntegrity, end.Format(time.RFC3339), open.StartTime.Format(time.RFC3339))
	}

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE facts SET end_time = ? WHERE id = ? AND end_time IS NULL`,
			end.Unix(), open.ID)
		if err != nil {
			return wrapErr(err)
		}
		return requireRow(res, "fact", open.ID)
	})
	if err != nil {
		return nil, err
	}
	return loadFact(ctx, s.db, open.ID)
}

// StopOrRestartTracking closes the open fact if one exists (stopped=true);
// otherwise it restarts the most recent fact as a new open one
// (stopped=false). On an empty database it returns (nil, false, nil).
func (s *Store) StopOrRestartTracking(ctx context.Context, now time.Time) (*types.Fact, bool, error) {
	if open, err := s.GetOpenFact(ctx); err != nil {
		return nil, false, err
	} else if open != nil {
		fact, err := s.StopTracking(ctx, now)
		return fact, true, err
	}

	last, err := s.latestFact(ctx)
	if err != nil {
		return nil, false, err
	}
	if last == nil {
		return nil, false, nil
	}

	fact, err := s.AddFact(ctx, types.NewFact{
		Activity:    last.Activity,
		Category:    last.Category,
		StartTime:   now,
		Description: last.Description,
		Tags:        last.TagNames(),
	})
	if err != nil {
		return nil, false, err
	}
	return fact, false, nil
}

func (s *Store) latestFact(ctx context.Context) (*types.Fact, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+factColumns+` `+factJoin+`
		ORDER BY f.start_time DESC, f.id DESC LIMIT 1`)
	f, err := scanFact(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying latest fact: %w", err)
	}
	if err := attachTags(ctx, s.db, f); err != nil {
		return nil, err
	}
	return f, nil
}

// insertFact validates and inserts a fact row with its tag links, closing
// the open fact first when the new one is open-ended.
func insertFact(ctx context.Context, tx *sql.Tx, nf types.NewFact) (int64, error) {
	if nf.Activity == "" {
		return 0, fmt.Errorf("%w: fact requires an activity", storage.ErrIntegrity)
	}
	if nf.StartTime.IsZero() {
		return 0, fmt.Errorf("%w: fact requires a start time", storage.ErrIntegrity)
	}
	if nf.EndTime != nil && nf.EndTime.Before(nf.StartTime) {
		return 0, fmt.Errorf("%w: end time before start time", storage.ErrIntegrity)
	}

	categoryID, err := resolveCategory(ctx, tx, nf.Category)
	if err != nil {
		return 0, err
	}
	activityID, err := resolveActivity(ctx, tx, nf.Activity, categoryID)
	if err != nil {
		return 0, err
	}

	if nf.EndTime == nil {
		// A fact that started after the new start keeps its own start as
		// the end, never a negative span.
		if _, err := tx.ExecContext(ctx,
			`UPDATE facts SET end_time = MAX(start_time, ?) WHERE end_time IS NULL`,
			nf.StartTime.Unix()); err != nil {
			return 0, wrapErr(err)
		}
	}

	var end interface{}
	if nf.EndTime != nil {
		end = nf.EndTime.Unix()
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO facts (activity_id, start_time, end_time, description) VALUES (?, ?, ?, ?)`,
		activityID, nf.StartTime.Unix(), end, nf.Description)
	if err != nil {
		return 0, wrapErr(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	tags, _, err := resolveTags(ctx, tx, nf.Tags)
	if err != nil {
		return 0, err
	}
	for _, t := range tags {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO fact_tags (fact_id, tag_id) VALUES (?, ?)`, id, t.ID); err != nil {
			return 0, wrapErr(err)
		}
	}
	return id, nil
}

func loadFact(ctx context.Context, q queryer, id int64) (*types.Fact, error) {
	row := q.QueryRowContext(ctx, `SELECT `+factColumns+` `+factJoin+` WHERE f.id = ?`, id)
	f, err := scanFact(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("fact %d: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading fact: %w", err)
	}
	if err := attachTags(ctx, q, f); err != nil {
		return nil, err
	}
	return f, nil
}

func attachTags(ctx context.Context, q queryer, f *types.Fact) error {
	rows, err := q.QueryContext(ctx, `SELECT t.id, t.name, t.autocomplete
		FROM fact_tags ft JOIN tags t ON t.id = ft.tag_id
		WHERE ft.fact_id = ? ORDER BY t.name COLLATE NOCASE`, f.ID)
	if err != nil {
		return fmt.Errorf("querying fact tags: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var t types.Tag
		var auto int
		if err := rows.Scan(&t.ID, &t.Name, &auto); err != nil {
			return fmt.Errorf("scanning fact tag: %w", err)
		}
		t.Autocomplete = auto != 0
		f.Tags = append(f.Tags, t)
	}
	return rows.Err()
}
