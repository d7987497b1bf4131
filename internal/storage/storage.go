// Package storage defines the database interface and its sentinel errors.
//
// The concrete implementation lives in the sqlite sub-package. Consumers
// (the client facade, the RPC daemon) depend on this interface so that the
// same calling code runs against either.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/avickers/tempo/internal/types"
)

// ErrNotFound is returned when an operation references an id that does not
// exist.
var ErrNotFound = errors.New("not found")

// ErrIntegrity is returned when the database rejects a write, e.g. a
// constraint violation or an end time before a start time. Not retried.
var ErrIntegrity = errors.New("integrity violation")

// Storage is the CRUD surface over activities, categories, facts and tags,
// plus the raw self-write signal the file watcher needs.
type Storage interface {
	// Activities
	GetActivities(ctx context.Context, includeDeleted bool) ([]*types.Activity, error)
	// GetActivityByName finds an activity by name, optionally scoped to a
	// category (0 = uncategorized). A deleted match is resurrected unless
	// resurrect is false.
	GetActivityByName(ctx context.Context, name string, categoryID int64, resurrect bool) (*types.Activity, error)
	AddActivity(ctx context.Context, name string, categoryID int64) (*types.Activity, error)
	UpdateActivity(ctx context.Context, id int64, name string, categoryID int64) error
	// RemoveActivity soft-deletes an activity that is referenced by facts
	// and hard-deletes one that is not.
	RemoveActivity(ctx context.Context, id int64) error
	ChangeCategory(ctx context.Context, id, categoryID int64) error

	// Categories
	GetCategories(ctx context.Context) ([]*types.Category, error)
	GetCategoryID(ctx context.Context, name string) (int64, error)
	AddCategory(ctx context.Context, name string) (*types.Category, error)
	UpdateCategory(ctx context.Context, id int64, name string) error
	RemoveCategory(ctx context.Context, id int64) error

	// Facts
	GetFact(ctx context.Context, id int64) (*types.Fact, error)
	// GetFacts returns facts overlapping rng, sorted by start time
	// ascending.
	GetFacts(ctx context.Context, rng types.Range) ([]*types.Fact, error)
	// GetOpenFact returns the currently tracked fact, or nil if none.
	GetOpenFact(ctx context.Context) (*types.Fact, error)
	// AddFact inserts a new fact. When nf.EndTime is nil, any currently
	// open fact is closed at nf.StartTime in the same transaction.
	AddFact(ctx context.Context, nf types.NewFact) (*types.Fact, error)
	// UpdateFact replaces a fact via remove+insert; the returned fact
	// carries a new id.
	UpdateFact(ctx context.Context, id int64, nf types.NewFact) (*types.Fact, error)
	// RemoveFact deletes a fact. Removing an unknown id is a no-op; the
	// returned bool says whether a row was actually deleted.
	RemoveFact(ctx context.Context, id int64) (bool, error)
	// StopTracking closes the open fact at end. Returns nil without
	// writing when nothing is open.
	StopTracking(ctx context.Context, end time.Time) (*types.Fact, error)
	// StopOrRestartTracking closes the open fact (stopped=true), or
	// restarts the most recent one as a new open fact (stopped=false).
	// Returns (nil, false, nil) on an empty database.
	StopOrRestartTracking(ctx context.Context, now time.Time) (fact *types.Fact, stopped bool, err error)

	// Tags
	GetTags(ctx context.Context, autocompleteOnly bool) ([]*types.Tag, error)
	// GetTagIDs resolves tag names to tags, creating missing ones and
	// resurrecting any that were dropped from autocomplete. The returned
	// bool says whether the call mutated the tag set.
	GetTagIDs(ctx context.Context, names []string) (tags []*types.Tag, mutated bool, err error)
	// UpdateAutocompleteTags replaces the set of tags offered for
	// autocomplete with exactly the named ones.
	UpdateAutocompleteTags(ctx context.Context, names []string) error

	// SetWriteHook registers a function invoked after every committed
	// write. The file watcher uses it to mark self-originated changes.
	SetWriteHook(fn func())

	Close() error
}
