package client

import (
	"context"
	"time"

	"github.com/avickers/tempo/internal/debug"
	"github.com/avickers/tempo/internal/notify"
	"github.com/avickers/tempo/internal/rpc"
	"github.com/avickers/tempo/internal/types"
)

// Bus routes every operation through the daemon. Change events come back on
// the daemon's watch stream and are republished on the local bus, so
// subscribers see the same events regardless of transport. Nothing is
// published locally; the daemon is the single event source.
type Bus struct {
	rpc      *rpc.Client
	notifier *notify.Notifier
	cancel   context.CancelFunc
	relayed  chan struct{}
}

var _ Storage = (*Bus)(nil)

// NewBus wraps a connected RPC client and starts the event relay. The relay
// ends when the daemon goes away; operations after that fail with a
// transport error, which the caller handles by rebuilding the facade.
func NewBus(rc *rpc.Client, notifier *notify.Notifier) (*Bus, error) {
	if notifier == nil {
		notifier = notify.New()
	}
	ctx, cancel := context.WithCancel(context.Background())
	events, err := rc.WatchEvents(ctx)
	if err != nil {
		cancel()
		return nil, err
	}

	b := &Bus{rpc: rc, notifier: notifier, cancel: cancel, relayed: make(chan struct{})}
	go func() {
		defer close(b.relayed)
		for ev := range events {
			if err := b.notifier.PublishEvent(ev); err != nil {
				debug.Logf("client: relayed %s handler: %v", ev.Kind, err)
			}
		}
		debug.Logf("client: daemon event stream ended")
	}()
	return b, nil
}

// Notifier exposes the bus the relay publishes on.
func (b *Bus) Notifier() *notify.Notifier { return b.notifier }

func (b *Bus) GetActivities(ctx context.Context, includeDeleted bool) ([]*types.Activity, error) {
	return b.rpc.GetActivities(includeDeleted)
}

func (b *Bus) GetActivityByName(ctx context.Context, name string, categoryID int64, resurrect bool) (*types.Activity, error) {
	return b.rpc.GetActivityByName(name, categoryID, resurrect)
}

func (b *Bus) AddActivity(ctx context.Context, name string, categoryID int64) (*types.Activity, error) {
	return b.rpc.AddActivity(name, categoryID)
}

func (b *Bus) UpdateActivity(ctx context.Context, id int64, name string, categoryID int64) error {
	return b.rpc.UpdateActivity(id, name, categoryID)
}

func (b *Bus) RemoveActivity(ctx context.Context, id int64) error {
	return b.rpc.RemoveActivity(id)
}

func (b *Bus) ChangeCategory(ctx context.Context, id, categoryID int64) error {
	return b.rpc.ChangeCategory(id, categoryID)
}

func (b *Bus) GetCategories(ctx context.Context) ([]*types.Category, error) {
	return b.rpc.GetCategories()
}

func (b *Bus) GetCategoryID(ctx context.Context, name string) (int64, error) {
	return b.rpc.GetCategoryID(name)
}

func (b *Bus) AddCategory(ctx context.Context, name string) (*types.Category, error) {
	return b.rpc.AddCategory(name)
}

func (b *Bus) UpdateCategory(ctx context.Context, id int64, name string) error {
	return b.rpc.UpdateCategory(id, name)
}

func (b *Bus) RemoveCategory(ctx context.Context, id int64) error {
	return b.rpc.RemoveCategory(id)
}

func (b *Bus) GetFact(ctx context.Context, id int64) (*types.Fact, error) {
	return b.rpc.GetFact(id)
}

func (b *Bus) GetFacts(ctx context.Context, rng types.Range) ([]*types.Fact, error) {
	return b.rpc.GetFacts(rng)
}

func (b *Bus) GetOpenFact(ctx context.Context) (*types.Fact, error) {
	return b.rpc.GetOpenFact()
}

func (b *Bus) AddFact(ctx context.Context, nf types.NewFact) (*types.Fact, error) {
	return b.rpc.AddFact(nf)
}

func (b *Bus) UpdateFact(ctx context.Context, id int64, nf types.NewFact) (*types.Fact, error) {
	return b.rpc.UpdateFact(id, nf)
}

func (b *Bus) RemoveFact(ctx context.Context, id int64) (bool, error) {
	return b.rpc.RemoveFact(id)
}

func (b *Bus) StopTracking(ctx context.Context, end time.Time) (*types.Fact, error) {
	return b.rpc.StopTracking(end)
}

func (b *Bus) Toggle(ctx context.Context, now time.Time) (*types.Fact, error) {
	return b.rpc.Toggle(now)
}

func (b *Bus) StopOrRestartTracking(ctx context.Context, now time.Time) (*types.Fact, bool, error) {
	return b.rpc.StopOrRestartTracking(now)
}

func (b *Bus) GetTags(ctx context.Context, autocompleteOnly bool) ([]*types.Tag, error) {
	return b.rpc.GetTags(autocompleteOnly)
}

func (b *Bus) GetTagIDs(ctx context.Context, names []string) ([]*types.Tag, bool, error) {
	return b.rpc.GetTagIDs(names)
}

func (b *Bus) UpdateAutocompleteTags(ctx context.Context, names []string) error {
	return b.rpc.UpdateAutocompleteTags(names)
}

func (b *Bus) Subscribe(kind notify.Kind, h notify.Handler) notify.Subscription {
	return b.notifier.Subscribe(kind, h)
}

func (b *Bus) Unsubscribe(s notify.Subscription) {
	b.notifier.Unsubscribe(s)
}

// Close tears down the relay and the daemon connection.
func (b *Bus) Close() error {
	b.cancel()
	err := b.rpc.Close()
	<-b.relayed
	return err
}
