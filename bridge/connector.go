// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"log/slog"
	"sync"

	"github.com/bureau-foundation/conduit/carrier"
)

// DefaultMaxConcurrentStreams is the concurrency hint handed to the
// protocol layer when Settings does not override it. The value caps
// streams multiplexed over the single connection by the stack above;
// the bridge itself never multiplexes.
const DefaultMaxConcurrentStreams = 100

// Settings carries protocol-layer hints through the bridge. The bridge
// does not act on them.
type Settings struct {
	// MaxConcurrentStreams caps the number of concurrent streams the
	// protocol layer multiplexes over this connection. Zero means
	// DefaultMaxConcurrentStreams.
	MaxConcurrentStreams uint32
}

// Stream is one connected byte-chunk conversation: inbound chunks from
// Source, outbound chunks into Sink, plus the connector's Settings for
// the protocol layer that mounts it.
type Stream struct {
	Source   *Source
	Sink     *Sink
	Settings Settings
}

// Connector turns one open carrier into one transport connection. It
// owns the connection lifecycle: Connect wires the stream pair,
// Shutdown tears the carrier down, and Done resolves exactly once when
// the connection is over — whether by Shutdown or by the carrier
// closing on its own.
//
// A connector is single-use. It watches the carrier from the moment it
// is constructed, so a carrier that dies before Connect still resolves
// Done.
type Connector struct {
	channel   carrier.Carrier
	authority string
	settings  Settings
	logger    *slog.Logger

	mu        sync.Mutex
	connected bool
	shutdown  bool
	monitor   carrier.Subscription

	done     chan struct{}
	doneOnce sync.Once
}

// NewConnector binds a connector to an externally established carrier.
// The authority names the logical peer for the protocol layer (it is
// what an HTTP client would place in the URL host). A nil logger means
// slog.Default().
func NewConnector(channel carrier.Carrier, authority string, settings Settings, logger *slog.Logger) *Connector {
	if logger == nil {
		logger = slog.Default()
	}
	if settings.MaxConcurrentStreams == 0 {
		settings.MaxConcurrentStreams = DefaultMaxConcurrentStreams
	}
	c := &Connector{
		channel:   channel,
		authority: authority,
		settings:  settings,
		logger:    logger,
		done:      make(chan struct{}),
	}

	// Watch for the carrier dying underneath us. Subscribe first, then
	// check the current state: a carrier that closed between the two
	// steps is caught by the check, one that closes after is caught by
	// the subscription, and the latch collapses the overlap to a single
	// resolution.
	c.monitor = channel.SubscribeStates(func(state carrier.State) {
		if state == carrier.StateClosed {
			c.resolveDone("carrier closed")
		}
	})
	if channel.State() == carrier.StateClosed {
		c.resolveDone("carrier closed")
	}
	return c
}

// Authority returns the logical peer name this connector serves.
func (c *Connector) Authority() string {
	return c.authority
}

// Done is closed exactly once, when the connection is finished for any
// reason. All callers observe the same resolution.
func (c *Connector) Done() <-chan struct{} {
	return c.done
}

// Connect validates the carrier and wires the stream pair. It fails
// with ErrShutdown after Shutdown, ErrConnected on a second call, and
// ErrNotOpen when the carrier is not currently open. A failed Connect
// has no side effects.
func (c *Connector) Connect() (*Stream, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.shutdown {
		return nil, ErrShutdown
	}
	if c.connected {
		return nil, ErrConnected
	}
	if state := c.channel.State(); state != carrier.StateOpen {
		return nil, ErrNotOpen
	}

	sink := newSink(c.channel, c.logger)
	// Consumer cancellation severs the write side too: once the reader
	// is gone nothing may keep transmitting. The reverse does not hold —
	// closing the sink leaves the source readable.
	source := newSource(c.channel, c.logger, func() {
		sink.Close()
	})
	c.connected = true

	c.logger.Debug("transport connected", "authority", c.authority)
	return &Stream{Source: source, Sink: sink, Settings: c.settings}, nil
}

// Shutdown closes the carrier and resolves Done. Idempotent and safe to
// call from any goroutine, including carrier callbacks and goroutines
// woken by Done.
func (c *Connector) Shutdown() {
	c.mu.Lock()
	if c.shutdown {
		c.mu.Unlock()
		return
	}
	c.shutdown = true
	monitor := c.monitor
	c.mu.Unlock()

	// The monitor would deliver the same resolution once the carrier
	// reports closed; cancelling it first keeps teardown single-path.
	// No lock is held from here down: carrier Close may invoke
	// subscriber callbacks synchronously.
	monitor.Cancel()
	if err := c.channel.Close(); err != nil {
		c.logger.Debug("closing carrier", "authority", c.authority, "error", err)
	}
	c.resolveDone("shutdown")
}

func (c *Connector) resolveDone(reason string) {
	c.doneOnce.Do(func() {
		c.logger.Debug("transport connection done", "authority", c.authority, "reason", reason)
		close(c.done)
	})
}
