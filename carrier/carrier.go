// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package carrier

import "errors"

// State is the lifecycle state of a carrier.
type State int

const (
	// StateConnecting means the carrier is still being established and
	// cannot transmit yet.
	StateConnecting State = iota
	// StateOpen means the carrier transmits and delivers messages.
	StateOpen
	// StateClosing means closure has begun; no new messages may be sent.
	StateClosing
	// StateClosed is terminal: the carrier will never transmit or
	// deliver again.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Message is one inbound message delivered by a carrier. Binary reports
// whether the peer sent the payload as binary data; consumers that only
// understand binary payloads must check it before touching Data.
type Message struct {
	Binary bool
	Data   []byte
}

// Subscription is a registered event callback. Cancel deregisters it;
// cancelling twice is harmless. An event already being dispatched when
// Cancel is called may still be delivered — consumers that need a hard
// cut-off must keep their own terminated flag.
type Subscription interface {
	Cancel()
}

// Carrier is an ordered, reliable, bidirectional message channel. All
// methods are safe for concurrent use. Each endpoint delivers its events
// (messages and state changes) sequentially, preserving the order the
// peer sent them in; in particular StateClosed is delivered after the
// final message when the peer closes cleanly.
//
// Subscriptions observe only events that occur after registration. The
// current state is always available from State, so a consumer that must
// not miss a terminal transition subscribes first and checks State
// second.
type Carrier interface {
	// State returns the current lifecycle state.
	State() State

	// Send transmits one binary message to the peer. It fails with
	// ErrNotOpen unless the carrier is currently open. The payload is
	// not retained; callers may reuse it after Send returns.
	Send(payload []byte) error

	// Close tears the carrier down in both directions. Closing an
	// already-closed carrier is a no-op.
	Close() error

	// SubscribeStates registers fn for lifecycle state changes.
	SubscribeStates(fn func(State)) Subscription

	// SubscribeMessages registers fn for inbound messages. Callbacks
	// must not block: they run on the carrier's dispatch goroutine and
	// stall all delivery for this endpoint while they run.
	SubscribeMessages(fn func(Message)) Subscription
}

// ErrNotOpen is returned by Send when the carrier is not open.
var ErrNotOpen = errors.New("carrier: not open")

// ErrMessageTooLarge is returned by carriers that frame messages over a
// byte stream when a payload exceeds the maximum frame size.
var ErrMessageTooLarge = errors.New("carrier: message exceeds maximum frame size")
