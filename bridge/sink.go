// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/bureau-foundation/conduit/carrier"
)

// Receiver is the consuming side of an ordered chunk sequence: Recv
// blocks for the next chunk and returns io.EOF at the end. *Source
// implements it.
type Receiver interface {
	Recv(ctx context.Context) ([]byte, error)
}

// Sink transmits chunks to the peer, one carrier message per chunk,
// with no buffering: a chunk accepted by Add is already handed to the
// carrier. Closing the sink stops outbound traffic permanently but does
// not close the carrier — the carrier is shared, and only the connector
// or its owner may tear it down.
type Sink struct {
	channel carrier.Carrier
	logger  *slog.Logger

	mu     sync.Mutex
	closed bool

	done chan struct{}
}

func newSink(channel carrier.Carrier, logger *slog.Logger) *Sink {
	return &Sink{
		channel: channel,
		logger:  logger,
		done:    make(chan struct{}),
	}
}

// Add transmits one chunk as one binary carrier message. It fails with
// ErrClosed once the sink is closed and ErrNotOpen when the carrier
// cannot transmit. The lock spans the carrier send, so after Close
// returns no transmission can begin.
func (k *Sink) Add(chunk []byte) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.closed {
		return ErrClosed
	}
	if k.channel.State() != carrier.StateOpen {
		return ErrNotOpen
	}
	if err := k.channel.Send(chunk); err != nil {
		return fmt.Errorf("bridge: transmitting chunk: %w", err)
	}
	return nil
}

// AddFrom drains source into the sink until the sequence ends. A clean
// end (io.EOF from Recv) returns nil; the sink stays open either way —
// pair with Close when the conversation is over. The first failure from
// either side stops the drain and is returned.
func (k *Sink) AddFrom(ctx context.Context, source Receiver) error {
	k.mu.Lock()
	closed := k.closed
	k.mu.Unlock()
	if closed {
		return ErrClosed
	}

	for {
		chunk, err := source.Recv(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := k.Add(chunk); err != nil {
			return err
		}
	}
}

// AddError records a write-side failure. The carrier has no way to
// convey an error object to the peer, so the failure degrades to
// closing the write side; the peer observes only that chunks stop.
func (k *Sink) AddError(err error) {
	k.logger.Debug("write side failed, closing sink", "error", err)
	k.Close()
}

// Close stops outbound traffic and resolves Done. Idempotent, never
// fails, and leaves the carrier untouched.
func (k *Sink) Close() error {
	k.mu.Lock()
	if k.closed {
		k.mu.Unlock()
		return nil
	}
	k.closed = true
	k.mu.Unlock()

	close(k.done)
	return nil
}

// Done is closed when the sink has been closed. It signals that
// outbound traffic has stopped, not that previously added chunks were
// delivered — delivery is the carrier's business.
func (k *Sink) Done() <-chan struct{} {
	return k.done
}
