// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package carrier abstracts an ordered, reliable, bidirectional message
// channel so the bridge package can run over any such channel without
// knowing how it is established or secured.
//
// The [Carrier] interface is deliberately narrow: current lifecycle
// [State], one-shot binary [Carrier.Send], [Carrier.Close], and
// cancellable subscriptions for state changes and inbound messages. A
// carrier is externally owned — connection establishment, signaling, and
// transport security all happen before a carrier is handed to a consumer,
// and a consumer must assume other parties hold references to the same
// carrier.
//
// [DataChannelCarrier] is the production implementation, wrapping a pion
// WebRTC data channel. pion exposes a single callback slot per event, so
// the adapter owns the channel's OnOpen/OnClose/OnMessage registrations
// and fans events out to any number of subscriptions.
//
// [StreamCarrier] frames messages over any io.ReadWriteCloser
// (length-prefixed, with a marker byte distinguishing binary from text),
// turning TCP connections, Unix sockets, and QUIC streams into carriers
// for diagnostics and tests.
//
// [MemoryCarrier] is an in-process implementation; [NewMemoryPipe]
// returns a connected pair. Each endpoint dispatches its inbound events
// from a single goroutine in FIFO order, so message order — and the
// guarantee that Closed is observed after the final message — hold
// exactly.
package carrier
