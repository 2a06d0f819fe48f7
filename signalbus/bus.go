// Package signalbus is a generic in-process pub/sub, generalising the
// per-pair goroutine-fan-out idiom of the order feed into a typed bus with
// bounded concurrent, error-isolated delivery to every subscriber.
package signalbus

import (
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Subscriber receives one published value. A panic or returned error is
// contained to that subscriber and never affects delivery to its peers.
type Subscriber[T any] func(value T) error

// Bus is a typed publish/subscribe channel. Publish delivers to every
// current subscriber concurrently, bounded to avoid unbounded goroutine
// spawning on a publish burst; one subscriber's failure never blocks or
// cancels delivery to another.
type Bus[T any] struct {
	mu          sync.RWMutex
	subscribers map[int]Subscriber[T]
	nextID      int
	maxParallel int
}

// New returns a Bus bounding concurrent per-publish fan-out to maxParallel
// (at least 1; callers typically pass max(subscriberCount, 4)).
func New[T any](maxParallel int) *Bus[T] {
	if maxParallel < 1 {
		maxParallel = 1
	}
	return &Bus[T]{
		subscribers: make(map[int]Subscriber[T]),
		maxParallel: maxParallel,
	}
}

// Subscribe registers a subscriber and returns a handle usable with
// Unsubscribe.
func (b *Bus[T]) Subscribe(sub Subscriber[T]) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	b.subscribers[id] = sub
	return id
}

// Unsubscribe removes a previously registered subscriber.
func (b *Bus[T]) Unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subscribers, id)
}

// Publish delivers value to every current subscriber concurrently, bounded
// by maxParallel in-flight calls at a time. It blocks until every
// subscriber has been invoked. A subscriber's panic is recovered and
// logged, never propagated.
func (b *Bus[T]) Publish(value T) {
	b.mu.RLock()
	subs := make([]Subscriber[T], 0, len(b.subscribers))
	for _, s := range b.subscribers {
		subs = append(subs, s)
	}
	b.mu.RUnlock()

	if len(subs) == 0 {
		return
	}

	// A plain errgroup.Group never cancels peers on one member's error, so
	// one subscriber's failure cannot starve or abort delivery to another.
	var g errgroup.Group
	g.SetLimit(b.maxParallel)
	for _, sub := range subs {
		sub := sub
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					logrus.WithField("panic", r).Error("signalbus: subscriber panicked")
				}
			}()
			if err := sub(value); err != nil {
				logrus.WithError(err).Warn("signalbus: subscriber returned error")
			}
			return nil
		})
	}
	_ = g.Wait()
}

// SubscriberCount returns the number of currently registered subscribers.
func (b *Bus[T]) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
