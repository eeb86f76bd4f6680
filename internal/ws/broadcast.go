package ws

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"arbflow/internal/market"
	"arbflow/internal/metrics"
)

// HubStats counts publish outcomes across all subscribers.
type HubStats struct {
	Sent    int64
	Dropped int64
}

// Hub fans parsed prices out to any number of subscribers. Each subscriber
// owns a bounded buffer; when it falls behind, the oldest unread message is
// dropped and counted as lag. The producer never blocks, whatever the
// consumers do — the feed keeps its real-time characteristics at the cost of
// delivery completeness.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]*Subscription
	buffer int

	sent    atomic.Int64
	dropped atomic.Int64
}

// Subscription is one consumer's view of a Hub.
type Subscription struct {
	id     string
	ch     chan market.Price
	lagged atomic.Int64
	hub    *Hub
}

// NewHub creates a hub whose subscribers buffer up to buffer messages.
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 100
	}
	return &Hub{
		subs:   make(map[string]*Subscription),
		buffer: buffer,
	}
}

// Subscribe registers a new consumer. Every message published after this
// call is delivered to it, subject to the lag policy.
func (h *Hub) Subscribe() *Subscription {
	sub := &Subscription{
		id:  uuid.NewString(),
		ch:  make(chan market.Price, h.buffer),
		hub: h,
	}
	h.mu.Lock()
	h.subs[sub.id] = sub
	h.mu.Unlock()
	return sub
}

// Publish delivers a price to all current subscribers. A full subscriber
// buffer sheds its oldest unread message first; if the buffer is still full
// (a racing consumer refilled it), the new message is dropped for that
// subscriber instead. Either way the lag counter moves.
func (h *Hub) Publish(price market.Price) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, sub := range h.subs {
		select {
		case sub.ch <- price:
			h.sent.Add(1)
			continue
		default:
		}

		select {
		case <-sub.ch:
		default:
		}
		sub.lagged.Add(1)
		h.dropped.Add(1)
		metrics.AddBroadcastDrops(1)

		select {
		case sub.ch <- price:
			h.sent.Add(1)
		default:
		}
	}
}

// Stats returns cumulative publish counters.
func (h *Hub) Stats() HubStats {
	return HubStats{
		Sent:    h.sent.Load(),
		Dropped: h.dropped.Load(),
	}
}

// Close detaches and closes every subscription.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, sub := range h.subs {
		delete(h.subs, id)
		close(sub.ch)
	}
}

// ID identifies the subscription in logs.
func (s *Subscription) ID() string {
	return s.id
}

// C is the receive channel. It is closed when the subscription or its hub
// is closed.
func (s *Subscription) C() <-chan market.Price {
	return s.ch
}

// Lagged returns how many messages this subscriber has missed because it
// fell behind the buffer.
func (s *Subscription) Lagged() int64 {
	return s.lagged.Load()
}

// Close detaches the subscription from its hub and closes the channel.
func (s *Subscription) Close() {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	if _, ok := s.hub.subs[s.id]; !ok {
		return
	}
	delete(s.hub.subs, s.id)
	close(s.ch)
}
