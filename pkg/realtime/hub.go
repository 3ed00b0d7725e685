package realtime

import "sync"

// Hub keeps one broadcaster per topic plus a firehose that receives every event.
type Hub[E any] struct {
	mu     sync.RWMutex
	topics map[string]*Broadcaster[E]
	all    *Broadcaster[E]
}

// NewHub creates an empty hub.
func NewHub[E any]() *Hub[E] {
	return &Hub[E]{
		topics: make(map[string]*Broadcaster[E]),
		all:    NewBroadcaster[E](),
	}
}

// Topic returns the broadcaster for name, creating it on first use.
func (h *Hub[E]) Topic(name string) *Broadcaster[E] {
	h.mu.RLock()
	b, ok := h.topics[name]
	h.mu.RUnlock()
	if ok {
		return b
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if b, ok := h.topics[name]; ok {
		return b
	}
	b = NewBroadcaster[E]()
	h.topics[name] = b
	return b
}

// All returns the broadcaster that receives events of every topic.
func (h *Hub[E]) All() *Broadcaster[E] {
	return h.all
}

// Publish notifies subscribers of topic and of the firehose.
func (h *Hub[E]) Publish(topic string, event E) {
	h.mu.RLock()
	b, ok := h.topics[topic]
	h.mu.RUnlock()
	if ok {
		b.Publish(event)
	}
	h.all.Publish(event)
}

// Close closes every broadcaster.
func (h *Hub[E]) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, b := range h.topics {
		b.Close()
	}
	h.all.Close()
}
