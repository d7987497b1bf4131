package sqlite

import (
	"context"
	"fmt"
)

// Timestamps are stored as unix seconds in the writer's local clock, which
// is what a personal tracker's "when did I start" means.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS categories (
	id   INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE COLLATE NOCASE
);

CREATE TABLE IF NOT EXISTS activities (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	name        TEXT NOT NULL COLLATE NOCASE,
	category_id INTEGER REFERENCES categories(id),
	deleted     INTEGER NOT NULL DEFAULT 0
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_activities_name_category
	ON activities(name, IFNULL(category_id, 0));

CREATE TABLE IF NOT EXISTS facts (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	activity_id INTEGER NOT NULL REFERENCES activities(id),
	start_time  INTEGER NOT NULL,
	end_time    INTEGER,
	description TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_facts_start ON facts(start_time);
CREATE INDEX IF NOT EXISTS idx_facts_open ON facts(end_time) WHERE end_time IS NULL;

CREATE TABLE IF NOT EXISTS tags (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	name         TEXT NOT NULL UNIQUE COLLATE NOCASE,
	autocomplete INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS fact_tags (
	fact_id INTEGER NOT NULL REFERENCES facts(id) ON DELETE CASCADE,
	tag_id  INTEGER NOT NULL REFERENCES tags(id),
	PRIMARY KEY (fact_id, tag_id)
);
`

func (s *Store) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("applying schema: %w", err)
	}
	return nil
}
