// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/bureau-foundation/conduit/carrier"
)

// Source delivers the carrier's binary messages as an ordered sequence
// of chunks, one chunk per message. It buffers without bound: the
// carrier pushes messages at its own pace and backpressure is the
// business of the protocol layer consuming the chunks, not the bridge.
//
// Recv is single-consumer. The sequence ends (io.EOF) when the carrier
// closes or the consumer cancels; a carrier that closed cleanly first
// drains every chunk it delivered.
type Source struct {
	logger *slog.Logger

	mu         sync.Mutex
	queue      [][]byte
	terminated bool // no further chunks will be queued
	cancelled  bool
	notify     chan struct{} // 1-buffered wakeup for a blocked Recv

	messageSub carrier.Subscription
	stateSub   carrier.Subscription
	closeSink  func()

	droppedNonBinary atomic.Uint64
}

// newSource subscribes to the carrier and couples consumer cancellation
// to closeSink.
func newSource(channel carrier.Carrier, logger *slog.Logger, closeSink func()) *Source {
	s := &Source{
		logger:    logger,
		notify:    make(chan struct{}, 1),
		closeSink: closeSink,
	}
	s.messageSub = channel.SubscribeMessages(s.handleMessage)
	s.stateSub = channel.SubscribeStates(s.handleState)
	// Subscribe-then-check: a carrier that closed in between is caught
	// here, and the terminated flag makes the duplicate path harmless.
	if channel.State() == carrier.StateClosed {
		s.terminate()
	}
	return s
}

// Recv returns the next chunk. It blocks until a chunk arrives, the
// sequence ends (io.EOF), or ctx is done. Chunks arrive in carrier
// delivery order. Recv must not be called concurrently with itself.
func (s *Source) Recv(ctx context.Context) ([]byte, error) {
	for {
		s.mu.Lock()
		if len(s.queue) > 0 {
			chunk := s.queue[0]
			s.queue = s.queue[1:]
			s.mu.Unlock()
			return chunk, nil
		}
		terminated := s.terminated
		s.mu.Unlock()

		if terminated {
			return nil, io.EOF
		}
		select {
		case <-s.notify:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Cancel ends consumption. It unsubscribes from the carrier, discards
// any queued chunks, and closes the paired sink before returning — a
// reader that has given up must not leave the write side transmitting
// into the void. Idempotent. Cancel does not touch the carrier itself.
func (s *Source) Cancel() {
	s.mu.Lock()
	if s.cancelled {
		s.mu.Unlock()
		return
	}
	s.cancelled = true
	s.terminated = true
	s.queue = nil
	s.mu.Unlock()

	s.messageSub.Cancel()
	s.stateSub.Cancel()
	s.closeSink()
	s.signal()
}

// DroppedNonBinary counts carrier messages discarded because the peer
// sent them as text. A non-zero count means the peer is speaking
// something other than the expected binary protocol.
func (s *Source) DroppedNonBinary() uint64 {
	return s.droppedNonBinary.Load()
}

func (s *Source) handleMessage(message carrier.Message) {
	if !message.Binary {
		s.droppedNonBinary.Add(1)
		s.logger.Debug("dropping non-binary carrier message", "bytes", len(message.Data))
		return
	}

	s.mu.Lock()
	if s.terminated {
		// Late delivery racing Cancel; the consumer is gone.
		s.mu.Unlock()
		return
	}
	s.queue = append(s.queue, message.Data)
	s.mu.Unlock()
	s.signal()
}

func (s *Source) handleState(state carrier.State) {
	if state == carrier.StateClosed {
		s.terminate()
	}
}

// terminate marks the end of the sequence without discarding chunks
// already queued: a consumer keeps reading until the queue drains, then
// sees io.EOF.
func (s *Source) terminate() {
	s.mu.Lock()
	s.terminated = true
	s.mu.Unlock()
	s.signal()
}

func (s *Source) signal() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}
