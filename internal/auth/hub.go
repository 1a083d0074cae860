package auth

import (
	"context"
	"sync"

	"pennywise/internal/core"
)

// Hub fans auth events out to subscribers. Callbacks run on the publishing
// goroutine and must not block.
type Hub struct {
	mu   sync.RWMutex
	next uint64
	subs map[uint64]func(core.AuthEvent)
}

func NewHub() *Hub {
	return &Hub{subs: make(map[uint64]func(core.AuthEvent))}
}

// Subscribe registers fn until ctx is done or the returned function is
// called. The returned function is safe to call more than once.
func (h *Hub) Subscribe(ctx context.Context, fn func(core.AuthEvent)) func() {
	h.mu.Lock()
	id := h.next
	h.next++
	h.subs[id] = fn
	h.mu.Unlock()

	var once sync.Once
	remove := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
		})
	}
	stop := context.AfterFunc(ctx, remove)
	return func() {
		stop()
		remove()
	}
}

func (h *Hub) Publish(ev core.AuthEvent) {
	h.mu.RLock()
	fns := make([]func(core.AuthEvent), 0, len(h.subs))
	for _, fn := range h.subs {
		fns = append(fns, fn)
	}
	h.mu.RUnlock()

	for _, fn := range fns {
		fn(ev)
	}
}

// Len reports the number of live subscriptions.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
