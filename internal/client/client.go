// Package client provides the storage facade the rest of the program talks
// to. The facade hides whether calls run against the database in-process or
// through the daemon; both transports publish the same change events on the
// same bus.
package client

import (
	"context"
	"time"

	"github.com/avickers/tempo/internal/notify"
	"github.com/avickers/tempo/internal/types"
)

// Storage is the full facade surface: the CRUD operations, the tracking
// toggle, and change-event subscription. Implementations are safe for
// concurrent use.
type Storage interface {
	GetActivities(ctx context.Context, includeDeleted bool) ([]*types.Activity, error)
	GetActivityByName(ctx context.Context, name string, categoryID int64, resurrect bool) (*types.Activity, error)
	AddActivity(ctx context.Context, name string, categoryID int64) (*types.Activity, error)
	UpdateActivity(ctx context.Context, id int64, name string, categoryID int64) error
	RemoveActivity(ctx context.Context, id int64) error
	ChangeCategory(ctx context.Context, id, categoryID int64) error

	GetCategories(ctx context.Context) ([]*types.Category, error)
	GetCategoryID(ctx context.Context, name string) (int64, error)
	AddCategory(ctx context.Context, name string) (*types.Category, error)
	UpdateCategory(ctx context.Context, id int64, name string) error
	RemoveCategory(ctx context.Context, id int64) error

	GetFact(ctx context.Context, id int64) (*types.Fact, error)
	GetFacts(ctx context.Context, rng types.Range) ([]*types.Fact, error)
	GetOpenFact(ctx context.Context) (*types.Fact, error)
	AddFact(ctx context.Context, nf types.NewFact) (*types.Fact, error)
	UpdateFact(ctx context.Context, id int64, nf types.NewFact) (*types.Fact, error)
	RemoveFact(ctx context.Context, id int64) (bool, error)
	StopTracking(ctx context.Context, end time.Time) (*types.Fact, error)
	// Toggle closes the open fact if one exists and otherwise writes
	// nothing. It always announces toggle-called; the returned fact is
	// nil when nothing was open.
	Toggle(ctx context.Context, now time.Time) (*types.Fact, error)
	// StopOrRestartTracking closes the open fact (stopped=true), or
	// restarts the most recently tracked one as a new open fact
	// (stopped=false). Nil fact on an empty database.
	StopOrRestartTracking(ctx context.Context, now time.Time) (*types.Fact, bool, error)

	GetTags(ctx context.Context, autocompleteOnly bool) ([]*types.Tag, error)
	GetTagIDs(ctx context.Context, names []string) ([]*types.Tag, bool, error)
	UpdateAutocompleteTags(ctx context.Context, names []string) error

	// Subscribe registers a change handler on the facade's bus. Events
	// arrive after the underlying write is durable.
	Subscribe(kind notify.Kind, h notify.Handler) notify.Subscription
	Unsubscribe(s notify.Subscription)

	Close() error
}
