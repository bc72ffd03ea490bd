// Package pubsub provides a minimal publish/subscribe fan-out, used to hand
// each gateway snapshot to every interested component.
package pubsub

import (
	"log/slog"
	"sync"
)

// Publisher fans out published values to all subscribed channels.
type Publisher[T any] struct {
	subscribers map[chan T]struct{}
	logger      *slog.Logger
	lock        sync.RWMutex
}

// New returns a new Publisher.
func New[T any](logger *slog.Logger) *Publisher[T] {
	return &Publisher[T]{
		subscribers: make(map[chan T]struct{}),
		logger:      logger,
	}
}

// Subscribe registers the caller and returns the channel it will receive
// published values on.
func (p *Publisher[T]) Subscribe() chan T {
	p.lock.Lock()
	defer p.lock.Unlock()
	ch := make(chan T)
	p.subscribers[ch] = struct{}{}
	p.logger.Debug("subscriber added", slog.Int("subscribers", len(p.subscribers)))
	return ch
}

// Unsubscribe removes the channel from the publisher.
func (p *Publisher[T]) Unsubscribe(ch chan T) {
	p.lock.Lock()
	defer p.lock.Unlock()
	delete(p.subscribers, ch)
	p.logger.Debug("subscriber removed", slog.Int("subscribers", len(p.subscribers)))
}

// Publish sends value to all subscribers.
func (p *Publisher[T]) Publish(value T) {
	p.lock.RLock()
	defer p.lock.RUnlock()
	for ch := range p.subscribers {
		ch <- value
	}
}

// Subscribers returns the current number of subscribers.
func (p *Publisher[T]) Subscribers() int {
	p.lock.RLock()
	defer p.lock.RUnlock()
	return len(p.subscribers)
}
