// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"context"
	"net"
	"os"
	"sync"
	"time"
)

// Conn adapts a Stream to net.Conn so stream-oriented protocol stacks
// (net/http, HTTP/2, gRPC dialers) can mount the bridge unmodified.
// Read reassembles the chunk sequence into a byte stream, serving the
// remainder of a partially consumed chunk before blocking for the next;
// each Write transmits as exactly one chunk.
//
// Closing the conn cancels the read side and thereby closes the write
// side — it ends this conversation, never the carrier underneath.
//
// Deadline support uses timer-based cancellation: when a deadline
// fires, the stream pair is torn down, unblocking any pending Read or
// Write. Once fired, the conn is permanently broken and all I/O returns
// os.ErrDeadlineExceeded. This matches the pattern used by net.Pipe.
type Conn struct {
	stream     *Stream
	localLabel string
	peerLabel  string

	// readMu serializes readers and guards the partially consumed chunk.
	readMu   sync.Mutex
	leftover []byte

	mu             sync.Mutex
	readTimer      *time.Timer
	writeTimer     *time.Timer
	deadlineClosed bool
}

// Compile-time interface check.
var _ net.Conn = (*Conn)(nil)

// NewConn wraps a connected stream pair as a net.Conn. The labels
// identify the endpoints in the synthetic addresses.
func NewConn(stream *Stream, localLabel, peerLabel string) *Conn {
	return &Conn{
		stream:     stream,
		localLabel: localLabel,
		peerLabel:  peerLabel,
	}
}

func (c *Conn) Read(buffer []byte) (int, error) {
	c.readMu.Lock()
	defer c.readMu.Unlock()

	for len(c.leftover) == 0 {
		chunk, err := c.stream.Source.Recv(context.Background())
		if err != nil {
			// The source reports only io.EOF; report the deadline
			// instead when the teardown was ours.
			if c.brokeOnDeadline() {
				return 0, os.ErrDeadlineExceeded
			}
			return 0, err
		}
		// Empty chunks are legal upstream but returning (0, nil) from
		// Read is not; skip them.
		c.leftover = chunk
	}

	copied := copy(buffer, c.leftover)
	c.leftover = c.leftover[copied:]
	return copied, nil
}

func (c *Conn) Write(buffer []byte) (int, error) {
	if err := c.stream.Sink.Add(buffer); err != nil {
		if c.brokeOnDeadline() {
			return 0, os.ErrDeadlineExceeded
		}
		return 0, err
	}
	return len(buffer), nil
}

// Close tears down the stream pair. The carrier stays open for whoever
// else holds it.
func (c *Conn) Close() error {
	c.mu.Lock()
	c.stopTimersLocked()
	c.mu.Unlock()

	c.stream.Source.Cancel()
	return nil
}

// LocalAddr returns a synthetic address identifying the local endpoint.
func (c *Conn) LocalAddr() net.Addr {
	return &bridgeAddr{label: c.localLabel}
}

// RemoteAddr returns a synthetic address identifying the peer endpoint.
func (c *Conn) RemoteAddr() net.Addr {
	return &bridgeAddr{label: c.peerLabel}
}

// SetDeadline sets both read and write deadlines. A zero value clears
// the deadline.
func (c *Conn) SetDeadline(deadline time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setReadDeadlineLocked(deadline)
	c.setWriteDeadlineLocked(deadline)
	return nil
}

// SetReadDeadline sets the read deadline. When the deadline fires,
// pending reads fail. A zero value clears the deadline.
func (c *Conn) SetReadDeadline(deadline time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setReadDeadlineLocked(deadline)
	return nil
}

// SetWriteDeadline sets the write deadline. When the deadline fires,
// pending writes fail. A zero value clears the deadline.
func (c *Conn) SetWriteDeadline(deadline time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setWriteDeadlineLocked(deadline)
	return nil
}

func (c *Conn) setReadDeadlineLocked(deadline time.Time) {
	if c.readTimer != nil {
		c.readTimer.Stop()
		c.readTimer = nil
	}
	if deadline.IsZero() || c.deadlineClosed {
		return
	}
	duration := time.Until(deadline)
	if duration <= 0 {
		c.closeFromDeadlineLocked()
		return
	}
	c.readTimer = time.AfterFunc(duration, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.closeFromDeadlineLocked()
	})
}

func (c *Conn) setWriteDeadlineLocked(deadline time.Time) {
	if c.writeTimer != nil {
		c.writeTimer.Stop()
		c.writeTimer = nil
	}
	if deadline.IsZero() || c.deadlineClosed {
		return
	}
	duration := time.Until(deadline)
	if duration <= 0 {
		c.closeFromDeadlineLocked()
		return
	}
	c.writeTimer = time.AfterFunc(duration, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.closeFromDeadlineLocked()
	})
}

// closeFromDeadlineLocked tears down the stream pair to unblock pending
// I/O. Must be called with c.mu held.
func (c *Conn) closeFromDeadlineLocked() {
	if c.deadlineClosed {
		return
	}
	c.deadlineClosed = true
	c.stream.Source.Cancel()
}

func (c *Conn) brokeOnDeadline() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deadlineClosed
}

func (c *Conn) stopTimersLocked() {
	if c.readTimer != nil {
		c.readTimer.Stop()
		c.readTimer = nil
	}
	if c.writeTimer != nil {
		c.writeTimer.Stop()
		c.writeTimer = nil
	}
}

// bridgeAddr is a synthetic net.Addr for bridged connections.
type bridgeAddr struct {
	label string
}

func (a *bridgeAddr) Network() string { return "conduit" }
func (a *bridgeAddr) String() string  { return a.label }
