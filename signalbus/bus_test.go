package signalbus

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBusIsolatesSubscriberFailure(t *testing.T) {
	bus := New[int](4)

	var bObserved []int
	var mu sync.Mutex

	bus.Subscribe(func(v int) error {
		return errors.New("subscriber A always fails")
	})
	bus.Subscribe(func(v int) error {
		mu.Lock()
		bObserved = append(bObserved, v)
		mu.Unlock()
		return nil
	})

	bus.Publish(42)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{42}, bObserved, "subscriber B should observe the signal despite subscriber A's failure")
}

func TestBusIsolatesSubscriberPanic(t *testing.T) {
	bus := New[string](4)

	var observed []string
	var mu sync.Mutex

	bus.Subscribe(func(v string) error {
		panic("boom")
	})
	bus.Subscribe(func(v string) error {
		mu.Lock()
		observed = append(observed, v)
		mu.Unlock()
		return nil
	})

	bus.Publish("signal-1")

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"signal-1"}, observed, "the surviving subscriber should observe the signal")
}

func TestBusDeliveryOrderPerSubscriber(t *testing.T) {
	bus := New[int](4)

	var observed []int
	var mu sync.Mutex
	bus.Subscribe(func(v int) error {
		mu.Lock()
		observed = append(observed, v)
		mu.Unlock()
		return nil
	})

	for i := 0; i < 5; i++ {
		bus.Publish(i)
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{0, 1, 2, 3, 4}, observed)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	bus := New[int](2)
	count := 0
	id := bus.Subscribe(func(v int) error {
		count++
		return nil
	})
	bus.Publish(1)
	bus.Unsubscribe(id)
	bus.Publish(2)

	assert.Equal(t, 1, count)
}
