package client

import (
	"context"
	"time"

	"github.com/avickers/tempo/internal/debug"
	"github.com/avickers/tempo/internal/notify"
	"github.com/avickers/tempo/internal/storage"
	"github.com/avickers/tempo/internal/types"
	"github.com/avickers/tempo/internal/watcher"
)

// Direct runs every operation against the database in-process and publishes
// change events on the bus after the write commits. It optionally watches
// the database file so changes made by other processes surface as
// external-origin events.
type Direct struct {
	store    storage.Storage
	notifier *notify.Notifier
	watch    *watcher.Watcher
}

var _ Storage = (*Direct)(nil)

// NewDirect wraps a storage backend. The notifier may be shared with other
// components (the daemon server subscribes to the same one).
func NewDirect(store storage.Storage, notifier *notify.Notifier) *Direct {
	if notifier == nil {
		notifier = notify.New()
	}
	return &Direct{store: store, notifier: notifier}
}

// Notifier exposes the bus, for wiring the daemon's event fan-out.
func (d *Direct) Notifier() *notify.Notifier { return d.notifier }

// WatchFile starts watching the database file at path. Writes made through
// this client are suppressed via the storage write hook; anything else
// debounces into a facts-changed event of external origin.
//
// A watcher start failure degrades to unwatched operation rather than
// failing the client.
func (d *Direct) WatchFile(path string, debounce time.Duration) {
	w := watcher.New(path, debounce, func() {
		if err := d.notifier.PublishEvent(notify.Event{
			Kind:   notify.FactsChanged,
			Origin: notify.OriginExternal,
		}); err != nil {
			debug.Logf("client: external change handler: %v", err)
		}
	})
	if err := w.Start(); err != nil {
		debug.Logf("client: file watcher disabled: %v", err)
		return
	}
	d.store.SetWriteHook(w.MarkSelfWrite)
	d.watch = w
}

// publish announces a committed change. Handler errors are logged, not
// returned: the write already succeeded.
func (d *Direct) publish(kind notify.Kind) {
	if err := d.notifier.Publish(kind); err != nil {
		debug.Logf("client: %s handler: %v", kind, err)
	}
}

func (d *Direct) GetActivities(ctx context.Context, includeDeleted bool) ([]*types.Activity, error) {
	return d.store.GetActivities(ctx, includeDeleted)
}

func (d *Direct) GetActivityByName(ctx context.Context, name string, categoryID int64, resurrect bool) (*types.Activity, error) {
	return d.store.GetActivityByName(ctx, name, categoryID, resurrect)
}

func (d *Direct) AddActivity(ctx context.Context, name string, categoryID int64) (*types.Activity, error) {
	act, err := d.store.AddActivity(ctx, name, categoryID)
	if err != nil {
		return nil, err
	}
	d.publish(notify.ActivitiesChanged)
	return act, nil
}

func (d *Direct) UpdateActivity(ctx context.Context, id int64, name string, categoryID int64) error {
	if err := d.store.UpdateActivity(ctx, id, name, categoryID); err != nil {
		return err
	}
	d.publish(notify.ActivitiesChanged)
	return nil
}

func (d *Direct) RemoveActivity(ctx context.Context, id int64) error {
	if err := d.store.RemoveActivity(ctx, id); err != nil {
		return err
	}
	d.publish(notify.ActivitiesChanged)
	return nil
}

func (d *Direct) ChangeCategory(ctx context.Context, id, categoryID int64) error {
	if err := d.store.ChangeCategory(ctx, id, categoryID); err != nil {
		return err
	}
	d.publish(notify.ActivitiesChanged)
	return nil
}

func (d *Direct) GetCategories(ctx context.Context) ([]*types.Category, error) {
	return d.store.GetCategories(ctx)
}

func (d *Direct) GetCategoryID(ctx context.Context, name string) (int64, error) {
	return d.store.GetCategoryID(ctx, name)
}

// Category changes surface as activities-changed: pickers show activities
// grouped by category, so that is the view that must refresh.
func (d *Direct) AddCategory(ctx context.Context, name string) (*types.Category, error) {
	cat, err := d.store.AddCategory(ctx, name)
	if err != nil {
		return nil, err
	}
	d.publish(notify.ActivitiesChanged)
	return cat, nil
}

func (d *Direct) UpdateCategory(ctx context.Context, id int64, name string) error {
	if err := d.store.UpdateCategory(ctx, id, name); err != nil {
		return err
	}
	d.publish(notify.ActivitiesChanged)
	return nil
}

func (d *Direct) RemoveCategory(ctx context.Context, id int64) error {
	if err := d.store.RemoveCategory(ctx, id); err != nil {
		return err
	}
	d.publish(notify.ActivitiesChanged)
	return nil
}

func (d *Direct) GetFact(ctx context.Context, id int64) (*types.Fact, error) {
	return d.store.GetFact(ctx, id)
}

func (d *Direct) GetFacts(ctx context.Context, rng types.Range) ([]*types.Fact, error) {
	return d.store.GetFacts(ctx, rng)
}

func (d *Direct) GetOpenFact(ctx context.Context) (*types.Fact, error) {
	return d.store.GetOpenFact(ctx)
}

func (d *Direct) AddFact(ctx context.Context, nf types.NewFact) (*types.Fact, error) {
	fact, err := d.store.AddFact(ctx, nf)
	if err != nil {
		return nil, err
	}
	d.publish(notify.FactsChanged)
	return fact, nil
}

func (d *Direct) UpdateFact(ctx context.Context, id int64, nf types.NewFact) (*types.Fact, error) {
	fact, err := d.store.UpdateFact(ctx, id, nf)
	if err != nil {
		return nil, err
	}
	d.publish(notify.FactsChanged)
	return fact, nil
}

func (d *Direct) RemoveFact(ctx context.Context, id int64) (bool, error) {
	removed, err := d.store.RemoveFact(ctx, id)
	if err != nil {
		return false, err
	}
	if removed {
		d.publish(notify.FactsChanged)
	}
	return removed, nil
}

func (d *Direct) StopTracking(ctx context.Context, end time.Time) (*types.Fact, error) {
	fact, err := d.store.StopTracking(ctx, end)
	if err != nil {
		return nil, err
	}
	if fact != nil {
		d.publish(notify.FactsChanged)
	}
	return fact, nil
}

// Toggle announces toggle-called on every successful call, even when
// nothing was open and no row changed; facts-changed fires only when a
// fact was actually closed.
func (d *Direct) Toggle(ctx context.Context, now time.Time) (*types.Fact, error) {
	fact, err := d.store.StopTracking(ctx, now)
	if err != nil {
		return nil, err
	}
	if fact != nil {
		d.publish(notify.FactsChanged)
	}
	d.publish(notify.ToggleCalled)
	return fact, nil
}

func (d *Direct) StopOrRestartTracking(ctx context.Context, now time.Time) (*types.Fact, bool, error) {
	fact, stopped, err := d.store.StopOrRestartTracking(ctx, now)
	if err != nil {
		return nil, false, err
	}
	if fact != nil {
		d.publish(notify.FactsChanged)
	}
	return fact, stopped, nil
}

func (d *Direct) GetTags(ctx context.Context, autocompleteOnly bool) ([]*types.Tag, error) {
	return d.store.GetTags(ctx, autocompleteOnly)
}

func (d *Direct) GetTagIDs(ctx context.Context, names []string) ([]*types.Tag, bool, error) {
	tags, mutated, err := d.store.GetTagIDs(ctx, names)
	if err != nil {
		return nil, false, err
	}
	if mutated {
		d.publish(notify.TagsChanged)
	}
	return tags, mutated, nil
}

func (d *Direct) UpdateAutocompleteTags(ctx context.Context, names []string) error {
	if err := d.store.UpdateAutocompleteTags(ctx, names); err != nil {
		return err
	}
	d.publish(notify.TagsChanged)
	return nil
}

func (d *Direct) Subscribe(kind notify.Kind, h notify.Handler) notify.Subscription {
	return d.notifier.Subscribe(kind, h)
}

func (d *Direct) Unsubscribe(s notify.Subscription) {
	d.notifier.Unsubscribe(s)
}

// Close stops the file watcher and closes the database.
func (d *Direct) Close() error {
	if d.watch != nil {
		d.watch.Stop()
		d.watch = nil
	}
	return d.store.Close()
}
