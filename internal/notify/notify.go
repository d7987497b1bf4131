// Package notify implements the in-process change-notification bus.
//
// The storage client publishes a small, fixed set of change kinds after
// committed writes; views subscribe and re-query on delivery. Both the
// in-process transport and the daemon relay publish through the same bus, so
// subscribers cannot tell where a change originated beyond the event's
// Origin field.
package notify

import (
	"errors"
	"sync"
)

// Kind identifies an event flowing through the bus. The string values are
// stable identifiers relied on by subscribers and scripts.
type Kind string

const (
	TagsChanged       Kind = "tags-changed"
	FactsChanged      Kind = "facts-changed"
	ActivitiesChanged Kind = "activities-changed"
	ToggleCalled      Kind = "toggle-called"
)

// Valid reports whether k is one of the published kinds.
func (k Kind) Valid() bool {
	switch k {
	case TagsChanged, FactsChanged, ActivitiesChanged, ToggleCalled:
		return true
	}
	return false
}

// Origin says whether a change was made by this process or detected on the
// database file from outside.
type Origin string

const (
	OriginLocal    Origin = "local"
	OriginExternal Origin = "external"
)

// Event is what subscribers receive. Events are transient; they exist only
// for the duration of dispatch.
type Event struct {
	Kind   Kind   `json:"kind"`
	Origin Origin `json:"origin"`
}

// Handler processes a single event. Returning an error does not stop the
// dispatch chain; errors from all handlers are aggregated and returned from
// Publish after the chain completes.
type Handler func(Event) error

// Subscription identifies a registered handler so it can be removed.
type Subscription struct {
	kind Kind
	id   int64
}

type subscriber struct {
	id int64
	fn Handler
}

// Notifier dispatches events to registered handlers, synchronously and in
// subscription order. It owns the subscriber list; it never keeps a handler
// alive past Unsubscribe.
type Notifier struct {
	mu   sync.Mutex
	seq  int64
	subs map[Kind][]subscriber
}

// New creates an empty notifier.
func New() *Notifier {
	return &Notifier{subs: make(map[Kind][]subscriber)}
}

// Subscribe registers a handler for one event kind and returns a handle for
// Unsubscribe. Handlers for a kind are dispatched in subscription order.
func (n *Notifier) Subscribe(kind Kind, h Handler) Subscription {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.seq++
	n.subs[kind] = append(n.subs[kind], subscriber{id: n.seq, fn: h})
	return Subscription{kind: kind, id: n.seq}
}

// Unsubscribe removes a handler. Removing an already-removed handle is a
// no-op. An in-flight dispatch pass is not affected: it iterates a snapshot
// taken at publish time.
func (n *Notifier) Unsubscribe(s Subscription) {
	n.mu.Lock()
	defer n.mu.Unlock()
	list := n.subs[s.kind]
	for i, sub := range list {
		if sub.id == s.id {
			n.subs[s.kind] = append(list[:i:i], list[i+1:]...)
			return
		}
	}
}

// Publish dispatches a local-origin event of the given kind.
func (n *Notifier) Publish(kind Kind) error {
	return n.PublishEvent(Event{Kind: kind, Origin: OriginLocal})
}

// PublishEvent dispatches ev synchronously to every handler registered for
// its kind at the time of the call. A handler error does not prevent the
// remaining handlers from running; the aggregate of all handler errors is
// returned once dispatch completes. Handlers may subscribe or unsubscribe
// during dispatch without corrupting the pass.
func (n *Notifier) PublishEvent(ev Event) error {
	n.mu.Lock()
	list := n.subs[ev.Kind]
	snapshot := make([]subscriber, len(list))
	copy(snapshot, list)
	n.mu.Unlock()

	var errs []error
	for _, sub := range snapshot {
		if err := sub.fn(ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// SubscriberCount returns the number of handlers registered for kind.
func (n *Notifier) SubscriberCount(kind Kind) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.subs[kind])
}
