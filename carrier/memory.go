// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package carrier

import "sync"

// Compile-time interface check.
var _ Carrier = (*MemoryCarrier)(nil)

// MemoryCarrier is an in-process Carrier for tests and loopback
// diagnostics. [NewMemoryPipe] returns two connected endpoints; a send
// on one is delivered to the other. Each endpoint owns a FIFO event
// queue drained by a single dispatch goroutine, so subscribers observe
// messages in send order and the terminal StateClosed after the final
// message — the same ordering a real data channel provides.
//
// Sending never blocks: events queue without bound. Close an endpoint
// (either one) to release both dispatch goroutines.
type MemoryCarrier struct {
	peer *MemoryCarrier // nil for a detached carrier

	mu     sync.Mutex
	state  State
	events []memoryEvent
	final  bool          // terminal Closed event enqueued; nothing more accepted
	notify chan struct{} // 1-buffered wakeup for the dispatch goroutine

	states   hub[State]
	messages hub[Message]
}

type memoryEvent struct {
	isState bool
	state   State
	message Message
}

// NewMemoryPipe returns two connected carrier endpoints, both already
// open.
func NewMemoryPipe() (*MemoryCarrier, *MemoryCarrier) {
	a := newMemoryCarrier(StateOpen)
	b := newMemoryCarrier(StateOpen)
	a.peer, b.peer = b, a
	return a, b
}

// NewMemoryCarrier returns a detached carrier that is permanently
// connecting: sends fail with ErrNotOpen and nothing is ever delivered.
// Tests use it to exercise not-open error paths. Close it to release
// its dispatch goroutine.
func NewMemoryCarrier() *MemoryCarrier {
	return newMemoryCarrier(StateConnecting)
}

func newMemoryCarrier(initial State) *MemoryCarrier {
	c := &MemoryCarrier{
		state:  initial,
		notify: make(chan struct{}, 1),
	}
	go c.dispatch()
	return c
}

func (c *MemoryCarrier) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *MemoryCarrier) Send(payload []byte) error {
	return c.send(payload, true)
}

// SendText delivers payload to the peer flagged as non-binary. Tests
// use it to exercise consumers that must ignore text messages.
func (c *MemoryCarrier) SendText(payload []byte) error {
	return c.send(payload, false)
}

func (c *MemoryCarrier) send(payload []byte, binary bool) error {
	c.mu.Lock()
	if c.state != StateOpen {
		c.mu.Unlock()
		return ErrNotOpen
	}
	peer := c.peer
	c.mu.Unlock()

	// Only pipe endpoints reach StateOpen, so peer is non-nil here. The
	// payload is copied because the carrier contract lets callers reuse
	// it immediately.
	data := make([]byte, len(payload))
	copy(data, payload)
	peer.enqueue(memoryEvent{message: Message{Binary: binary, Data: data}})
	return nil
}

// Close moves this endpoint through Closing to Closed and delivers the
// same transition to the peer after any messages already in flight.
// Closing an already-closing or closed endpoint is a no-op.
func (c *MemoryCarrier) Close() error {
	c.mu.Lock()
	if c.state == StateClosing || c.state == StateClosed {
		c.mu.Unlock()
		return nil
	}
	// Refuse new sends immediately; the queued events below move the
	// observable state the rest of the way.
	c.state = StateClosing
	peer := c.peer
	c.mu.Unlock()

	c.enqueue(memoryEvent{isState: true, state: StateClosing})
	c.enqueue(memoryEvent{isState: true, state: StateClosed})
	if peer != nil {
		peer.enqueue(memoryEvent{isState: true, state: StateClosing})
		peer.enqueue(memoryEvent{isState: true, state: StateClosed})
	}
	return nil
}

func (c *MemoryCarrier) SubscribeStates(fn func(State)) Subscription {
	return c.states.subscribe(fn)
}

func (c *MemoryCarrier) SubscribeMessages(fn func(Message)) Subscription {
	return c.messages.subscribe(fn)
}

// enqueue appends an event to this endpoint's queue and wakes the
// dispatch goroutine. Events arriving after the terminal Closed event
// are dropped, which models messages lost to a closed channel.
func (c *MemoryCarrier) enqueue(event memoryEvent) {
	c.mu.Lock()
	if c.final {
		c.mu.Unlock()
		return
	}
	c.events = append(c.events, event)
	if event.isState && event.state == StateClosed {
		c.final = true
	}
	c.mu.Unlock()

	select {
	case c.notify <- struct{}{}:
	default:
	}
}

// dispatch drains the event queue in order, applying state transitions
// before publishing them so State never lags behind delivered events.
// Exits once the terminal Closed event has been processed.
func (c *MemoryCarrier) dispatch() {
	for {
		c.mu.Lock()
		for len(c.events) == 0 {
			if c.final {
				c.mu.Unlock()
				return
			}
			c.mu.Unlock()
			<-c.notify
			c.mu.Lock()
		}
		event := c.events[0]
		c.events = c.events[1:]
		if event.isState {
			c.state = event.state
		}
		c.mu.Unlock()

		if event.isState {
			c.states.publish(event.state)
		} else {
			c.messages.publish(event.message)
		}
	}
}
