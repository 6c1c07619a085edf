// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package carrier

import (
	"encoding/binary"
	"fmt"
	"io"
	"sync"
)

// Frame layout: one kind byte, a big-endian uint32 payload length, then
// the payload. The kind byte distinguishes binary from text so the
// Message.Binary flag survives the byte stream.
const (
	frameHeaderSize = 5
	frameText       = byte(0x01)
	frameBinary     = byte(0x02)

	// maxFrameSize bounds a single message. Incoming frames claiming
	// more indicate a corrupt or hostile peer and terminate the carrier.
	maxFrameSize = 16 << 20
)

// Compile-time interface check.
var _ Carrier = (*StreamCarrier)(nil)

// StreamCarrier runs the Carrier contract over any io.ReadWriteCloser by
// framing each message with a kind byte and a length prefix. TCP
// connections, Unix sockets, and QUIC streams all satisfy the interface,
// which makes this the carrier for network diagnostics and tests where a
// full WebRTC stack would be noise.
//
// The underlying stream must already be established: a StreamCarrier is
// born open. It reaches StateClosed when Close is called, when the peer
// closes, or on the first framing violation.
type StreamCarrier struct {
	stream io.ReadWriteCloser

	// writeMu serializes frame writes so concurrent sends cannot
	// interleave header and payload bytes.
	writeMu sync.Mutex

	stateMu sync.Mutex
	state   State

	closeOnce sync.Once
	closeErr  error

	states   hub[State]
	messages hub[Message]
}

// NewStreamCarrier wraps an established byte stream. It starts a read
// goroutine that runs until the stream ends; Close releases it.
func NewStreamCarrier(stream io.ReadWriteCloser) *StreamCarrier {
	c := &StreamCarrier{
		stream: stream,
		state:  StateOpen,
	}
	go c.readLoop()
	return c
}

func (c *StreamCarrier) State() State {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.state
}

func (c *StreamCarrier) Send(payload []byte) error {
	return c.send(payload, frameBinary)
}

// SendText transmits payload flagged as non-binary.
func (c *StreamCarrier) SendText(payload []byte) error {
	return c.send(payload, frameText)
}

func (c *StreamCarrier) send(payload []byte, kind byte) error {
	if len(payload) > maxFrameSize {
		return ErrMessageTooLarge
	}
	if c.State() != StateOpen {
		return ErrNotOpen
	}

	// One buffer, one Write: the frame reaches the stream contiguously
	// even when the stream itself has no write atomicity.
	frame := make([]byte, frameHeaderSize+len(payload))
	frame[0] = kind
	binary.BigEndian.PutUint32(frame[1:frameHeaderSize], uint32(len(payload)))
	copy(frame[frameHeaderSize:], payload)

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if _, err := c.stream.Write(frame); err != nil {
		return fmt.Errorf("carrier: writing frame: %w", err)
	}
	return nil
}

// Close closes the underlying stream and moves the carrier to
// StateClosed. Safe to call multiple times and from subscriber
// callbacks.
func (c *StreamCarrier) Close() error {
	c.closeOnce.Do(func() {
		c.setState(StateClosing)
		c.closeErr = c.stream.Close()
		c.setState(StateClosed)
	})
	return c.closeErr
}

func (c *StreamCarrier) SubscribeStates(fn func(State)) Subscription {
	return c.states.subscribe(fn)
}

func (c *StreamCarrier) SubscribeMessages(fn func(Message)) Subscription {
	return c.messages.subscribe(fn)
}

func (c *StreamCarrier) setState(state State) {
	c.stateMu.Lock()
	c.state = state
	c.stateMu.Unlock()
	c.states.publish(state)
}

// readLoop decodes frames until the stream ends or a frame violates the
// protocol. Messages publish from this single goroutine, so subscribers
// see them in wire order, with the terminal state change after the last
// complete message.
func (c *StreamCarrier) readLoop() {
	header := make([]byte, frameHeaderSize)
	for {
		if _, err := io.ReadFull(c.stream, header); err != nil {
			c.Close()
			return
		}
		length := binary.BigEndian.Uint32(header[1:])
		if length > maxFrameSize {
			c.Close()
			return
		}
		payload := make([]byte, length)
		if _, err := io.ReadFull(c.stream, payload); err != nil {
			c.Close()
			return
		}

		switch header[0] {
		case frameBinary:
			c.messages.publish(Message{Binary: true, Data: payload})
		case frameText:
			c.messages.publish(Message{Binary: false, Data: payload})
		default:
			// Unknown frame kind: the stream is not speaking this
			// protocol. Tear down rather than guess.
			c.Close()
			return
		}
	}
}
