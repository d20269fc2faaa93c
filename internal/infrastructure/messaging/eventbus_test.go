package messaging

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/faixamestre/dojo-hub/internal/domain/shared"
)

var refDate = time.Date(2030, 6, 15, 0, 0, 0, 0, time.UTC)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestInMemoryEventBus_SyncDelivery(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{AsyncMode: false})
	defer bus.Close()

	var typed, all []shared.EventType
	require.NoError(t, bus.Subscribe(shared.EventStudentPromoted, func(e shared.Event) error {
		typed = append(typed, e.EventType())
		return nil
	}))
	require.NoError(t, bus.SubscribeAll(func(e shared.Event) error {
		all = append(all, e.EventType())
		return nil
	}))

	require.NoError(t, bus.Publish(shared.NewStudentDeactivatedEvent("Ana1234")))
	require.NoError(t, bus.Publish(shared.NewStudentPromotedEvent("Ana1234", "p1", "blue", "purple", refDate, "coach")))

	assert.Equal(t, []shared.EventType{shared.EventStudentPromoted}, typed)
	assert.Equal(t, []shared.EventType{shared.EventStudentDeactivated, shared.EventStudentPromoted}, all)

	snap := bus.Metrics()
	assert.Equal(t, int64(1), snap.Published[shared.EventStudentPromoted])
	assert.Equal(t, int64(3), snap.HandlerExecutions)
	assert.Zero(t, snap.HandlerFailures)
}

func TestInMemoryEventBus_HandlerFailuresAreContained(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{AsyncMode: false})
	defer bus.Close()

	var reached bool
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error { panic("boom") }))
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error { return errors.New("nope") }))
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error { reached = true; return nil }))

	require.NoError(t, bus.Publish(shared.NewStudentDeactivatedEvent("Ana1234")))
	assert.True(t, reached)
	assert.Equal(t, int64(2), bus.Metrics().HandlerFailures)
}

func TestInMemoryEventBus_AsyncWaitsOnClose(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{AsyncMode: true, WorkerPoolSize: 2})

	var count atomic.Int32
	var wg sync.WaitGroup
	wg.Add(10)
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error {
		defer wg.Done()
		count.Add(1)
		return nil
	}))

	for i := 0; i < 10; i++ {
		require.NoError(t, bus.Publish(shared.NewStudentDeactivatedEvent("Ana1234")))
	}
	wg.Wait()
	require.NoError(t, bus.Close())
	assert.Equal(t, int32(10), count.Load())
}

func TestInMemoryEventBus_Closed(t *testing.T) {
	bus := NewInMemoryEventBus(DefaultInMemoryEventBusConfig())
	require.NoError(t, bus.Close())
	require.NoError(t, bus.Close())

	assert.ErrorIs(t, bus.Publish(shared.NewStudentDeactivatedEvent("x")), ErrEventBusClosed)
	assert.ErrorIs(t, bus.Subscribe(shared.EventStudentEnrolled, func(shared.Event) error { return nil }), ErrEventBusClosed)
	assert.Error(t, bus.SubscribeAll(nil))
}

func TestMiddlewareOrder(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{})
	defer bus.Close()

	var trace []string
	bus.Use(func(next shared.EventHandler) shared.EventHandler {
		return func(e shared.Event) error {
			trace = append(trace, "mw")
			return next(e)
		}
	})
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error {
		trace = append(trace, "handler")
		return nil
	}))
	require.NoError(t, bus.Publish(shared.NewStudentDeactivatedEvent("x")))
	assert.Equal(t, []string{"mw", "handler"}, trace)
}
