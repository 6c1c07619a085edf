// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package bridge turns an ordered, reliable message channel into the
// byte-stream transport contract expected by an HTTP/2-style protocol
// stack.
//
// The two sides of a carrier (see the carrier package) speak in
// discrete binary messages; a multiplexed RPC stack wants a connected
// byte conversation with explicit connect, shutdown, and completion. A
// [Connector] bridges the two: Connect validates that the carrier is
// open and wires up exactly one [Stream] — a [Source] of inbound chunks
// and a [Sink] for outbound chunks, one carrier message per chunk in
// both directions, payloads untouched. Shutdown closes the carrier and
// resolves Done; a carrier that closes on its own resolves Done too,
// monitored from the moment the connector is built.
//
// Half-close is deliberately asymmetric. Cancelling the [Source] closes
// the paired [Sink] before Cancel returns — a reader that has given up
// must not leave the writer transmitting. Closing the [Sink] leaves the
// Source readable: the peer may still have things to say. Neither
// touches the carrier itself; only [Connector.Shutdown] does that,
// because the carrier is shared with its owner.
//
// The bridge never inspects or transforms payload bytes, never
// multiplexes, and applies no flow control — [Settings] carries the
// concurrency hint through to the protocol layer that does. Inbound
// chunks buffer without bound; the carrier's delivery order is the
// chunk order; non-binary messages are dropped and counted
// ([Source.DroppedNonBinary]).
//
// For stacks that want a socket rather than chunks, [Conn] adapts a
// Stream to net.Conn with deadline support, and [HTTPTransport] wraps a
// Connector as an http.RoundTripper serving all requests over the one
// bridged connection.
package bridge
