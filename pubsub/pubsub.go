// Package pubsub implements the in-process topic-addressed broadcast bus
// subscribers join a topic and receive messages in the order the
// broadcaster issued them; a slow subscriber never blocks the broadcaster.
package pubsub

import (
	"sync"

	"github.com/wanderer-industries/topologyd/logger"
	"go.uber.org/zap"
)

// DefaultSubscriberBuffer is the per-subscriber channel depth. A full
// channel means the subscriber is falling behind; the broadcast is dropped
// for that subscriber rather than blocking every other subscriber.
const DefaultSubscriberBuffer = 32

// Bus is a topic-addressed publish/subscribe broadcaster.
type Bus struct {
	mu     sync.RWMutex
	topics map[string][]chan any
	buffer int
	log    *zap.SugaredLogger
}

// Option configures a Bus.
type Option func(*Bus)

// WithBuffer overrides the per-subscriber channel depth.
func WithBuffer(n int) Option {
	return func(b *Bus) { b.buffer = n }
}

// New creates an empty Bus.
func New(opts ...Option) *Bus {
	b := &Bus{
		topics: make(map[string][]chan any),
		buffer: DefaultSubscriberBuffer,
		log:    logger.ComponentLogger("pubsub"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe joins topic, returning a channel that receives every message
// broadcast to it from this point on. Call Unsubscribe with the same
// channel to leave.
func (b *Bus) Subscribe(topic string) chan any {
	ch := make(chan any, b.buffer)
	b.mu.Lock()
	b.topics[topic] = append(b.topics[topic], ch)
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes ch from topic and closes it. Safe to call at most
// once per channel.
func (b *Bus) Unsubscribe(topic string, ch chan any) {
	b.mu.Lock()
	subs := b.topics[topic]
	for i, c := range subs {
		if c == ch {
			b.topics[topic] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	if len(b.topics[topic]) == 0 {
		delete(b.topics, topic)
	}
	b.mu.Unlock()
	close(ch)
}

// Broadcast delivers message to every current subscriber of topic, in FIFO
// order relative to this caller's other Broadcast calls. Delivery to each
// subscriber is best-effort: a full channel is logged and dropped rather
// than blocking.
func (b *Bus) Broadcast(topic string, message any) {
	b.mu.RLock()
	subs := make([]chan any, len(b.topics[topic]))
	copy(subs, b.topics[topic])
	b.mu.RUnlock()

	for _, ch := range subs {
		select {
		case ch <- message:
		default:
			b.log.Warnw("dropping message, subscriber channel full", "topic", topic)
		}
	}
}

// SubscriberCount returns how many subscribers are currently on topic.
func (b *Bus) SubscriberCount(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.topics[topic])
}
