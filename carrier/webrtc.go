// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package carrier

import (
	"fmt"

	"github.com/pion/webrtc/v4"
)

// Compile-time interface check.
var _ Carrier = (*DataChannelCarrier)(nil)

// DataChannelCarrier adapts a pion WebRTC data channel to the Carrier
// interface. The data channel must be ordered and reliable (pion's
// default DataChannelInit); an unordered or lossy channel violates the
// Carrier contract and will corrupt consumers that depend on it.
//
// The adapter claims the channel's OnOpen, OnClose, and OnMessage
// callback slots at construction. pion holds exactly one callback per
// slot, so anything else that needs these events must subscribe through
// the adapter rather than registering with the channel directly.
//
// pion transitions the channel through Closing without a dedicated
// callback; that state is visible only by polling State. Consumers react
// to StateClosed, which OnClose delivers.
type DataChannelCarrier struct {
	channel *webrtc.DataChannel

	states   hub[State]
	messages hub[Message]
}

// NewDataChannelCarrier wraps an ordered, reliable pion data channel.
// The channel may still be connecting; subscribers observe StateOpen
// once it opens.
func NewDataChannelCarrier(channel *webrtc.DataChannel) *DataChannelCarrier {
	c := &DataChannelCarrier{channel: channel}
	channel.OnOpen(func() {
		c.states.publish(StateOpen)
	})
	channel.OnClose(func() {
		c.states.publish(StateClosed)
	})
	channel.OnMessage(func(message webrtc.DataChannelMessage) {
		c.messages.publish(Message{Binary: !message.IsString, Data: message.Data})
	})
	return c
}

// Label returns the data channel's label, useful as a connection
// identifier in logs.
func (c *DataChannelCarrier) Label() string {
	return c.channel.Label()
}

func (c *DataChannelCarrier) State() State {
	return stateFromReadyState(c.channel.ReadyState())
}

func (c *DataChannelCarrier) Send(payload []byte) error {
	if c.State() != StateOpen {
		return ErrNotOpen
	}
	if err := c.channel.Send(payload); err != nil {
		return fmt.Errorf("carrier: sending on data channel %s: %w", c.channel.Label(), err)
	}
	return nil
}

func (c *DataChannelCarrier) Close() error {
	return c.channel.Close()
}

func (c *DataChannelCarrier) SubscribeStates(fn func(State)) Subscription {
	return c.states.subscribe(fn)
}

func (c *DataChannelCarrier) SubscribeMessages(fn func(Message)) Subscription {
	return c.messages.subscribe(fn)
}

// stateFromReadyState maps pion's channel state onto the carrier state
// machine. States pion may add in future versions map to StateConnecting
// (not yet usable), never to StateOpen.
func stateFromReadyState(state webrtc.DataChannelState) State {
	switch state {
	case webrtc.DataChannelStateOpen:
		return StateOpen
	case webrtc.DataChannelStateClosing:
		return StateClosing
	case webrtc.DataChannelStateClosed:
		return StateClosed
	case webrtc.DataChannelStateConnecting:
		return StateConnecting
	default:
		return StateConnecting
	}
}
