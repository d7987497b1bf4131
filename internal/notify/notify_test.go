package notify

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishSubscriptionOrder(t *testing.T) {
	n := New()
	var order []int

	n.Subscribe(FactsChanged, func(Event) error {
		order = append(order, 1)
		return nil
	})
	n.Subscribe(FactsChanged, func(Event) error {
		order = append(order, 2)
		return nil
	})
	n.Subscribe(FactsChanged, func(Event) error {
		order = append(order, 3)
		return nil
	})

	require.NoError(t, n.Publish(FactsChanged))
	assert.Equal(t, []int{1, 2, 3}, order)
}

func TestPublishOnlyMatchingKind(t *testing.T) {
	n := New()
	var facts, tags int

	n.Subscribe(FactsChanged, func(Event) error { facts++; return nil })
	n.Subscribe(TagsChanged, func(Event) error { tags++; return nil })

	require.NoError(t, n.Publish(FactsChanged))
	assert.Equal(t, 1, facts)
	assert.Equal(t, 0, tags)
}

func TestHandlerErrorDoesNotStopChain(t *testing.T) {
	n := New()
	errBroken := errors.New("broken subscriber")
	var ran bool

	n.Subscribe(FactsChanged, func(Event) error { return errBroken })
	n.Subscribe(FactsChanged, func(Event) error { ran = true; return nil })

	err := n.Publish(FactsChanged)
	require.Error(t, err)
	assert.ErrorIs(t, err, errBroken)
	assert.True(t, ran, "handler after the broken one must still run")
}

func TestAggregateErrors(t *testing.T) {
	n := New()
	e1 := errors.New("first")
	e2 := errors.New("second")

	n.Subscribe(TagsChanged, func(Event) error { return e1 })
	n.Subscribe(TagsChanged, func(Event) error { return nil })
	n.Subscribe(TagsChanged, func(Event) error { return e2 })

	err := n.Publish(TagsChanged)
	assert.ErrorIs(t, err, e1)
	assert.ErrorIs(t, err, e2)
}

func TestUnsubscribeDuringDispatch(t *testing.T) {
	n := New()
	var order []string

	var subB Subscription
	n.Subscribe(FactsChanged, func(Event) error {
		order = append(order, "a")
		n.Unsubscribe(subB)
		return nil
	})
	subB = n.Subscribe(FactsChanged, func(Event) error {
		order = append(order, "b")
		return nil
	})

	// The snapshot taken at publish time still includes b.
	require.NoError(t, n.Publish(FactsChanged))
	assert.Equal(t, []string{"a", "b"}, order)

	// The next pass does not.
	require.NoError(t, n.Publish(FactsChanged))
	assert.Equal(t, []string{"a", "b", "a"}, order)
}

func TestSubscribeDuringDispatch(t *testing.T) {
	n := New()
	var count int

	n.Subscribe(ToggleCalled, func(Event) error {
		if count == 0 {
			n.Subscribe(ToggleCalled, func(Event) error {
				count += 10
				return nil
			})
		}
		count++
		return nil
	})

	// The newly added handler is not part of the in-flight snapshot.
	require.NoError(t, n.Publish(ToggleCalled))
	assert.Equal(t, 1, count)

	require.NoError(t, n.Publish(ToggleCalled))
	assert.Equal(t, 12, count)
}

func TestUnsubscribeIdempotent(t *testing.T) {
	n := New()
	s := n.Subscribe(FactsChanged, func(Event) error { return nil })
	n.Unsubscribe(s)
	n.Unsubscribe(s)
	assert.Equal(t, 0, n.SubscriberCount(FactsChanged))
}

func TestEventOrigin(t *testing.T) {
	n := New()
	var got Event

	n.Subscribe(FactsChanged, func(ev Event) error {
		got = ev
		return nil
	})

	require.NoError(t, n.PublishEvent(Event{Kind: FactsChanged, Origin: OriginExternal}))
	assert.Equal(t, OriginExternal, got.Origin)

	require.NoError(t, n.Publish(FactsChanged))
	assert.Equal(t, OriginLocal, got.Origin)
}

func TestKindValid(t *testing.T) {
	assert.True(t, FactsChanged.Valid())
	assert.True(t, ToggleCalled.Valid())
	assert.False(t, Kind("bogus").Valid())
}
