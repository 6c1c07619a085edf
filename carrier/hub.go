// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package carrier

import "sync"

// hub fans one event stream out to any number of subscribers. Carrier
// implementations publish from a single goroutine per endpoint, which is
// what gives subscribers in-order delivery; the hub itself only manages
// registration.
type hub[T any] struct {
	mu          sync.Mutex
	nextID      uint64
	subscribers map[uint64]func(T)
}

func (h *hub[T]) subscribe(fn func(T)) Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subscribers == nil {
		h.subscribers = make(map[uint64]func(T))
	}
	id := h.nextID
	h.nextID++
	h.subscribers[id] = fn
	return &hubSubscription[T]{hub: h, id: id}
}

// publish invokes every current subscriber with event. The subscriber
// set is snapshotted under the lock and invoked outside it, so a
// callback may subscribe or cancel without deadlocking. A subscriber
// cancelled concurrently with publish may receive this one last event.
func (h *hub[T]) publish(event T) {
	h.mu.Lock()
	callbacks := make([]func(T), 0, len(h.subscribers))
	for _, fn := range h.subscribers {
		callbacks = append(callbacks, fn)
	}
	h.mu.Unlock()

	for _, fn := range callbacks {
		fn(event)
	}
}

type hubSubscription[T any] struct {
	hub *hub[T]
	id  uint64
}

func (s *hubSubscription[T]) Cancel() {
	s.hub.mu.Lock()
	delete(s.hub.subscribers, s.id)
	s.hub.mu.Unlock()
}
