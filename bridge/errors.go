// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import "errors"

// Failures are synchronous and local: the carrier offers no way to
// attach an error to the wire, so nothing here is retried or reported to
// the peer. Callers match with errors.Is.
var (
	// ErrNotOpen means the carrier was not in the open state when an
	// operation needed to transmit or connect.
	ErrNotOpen = errors.New("bridge: carrier not open")

	// ErrClosed means the sink has been closed and accepts no further
	// chunks.
	ErrClosed = errors.New("bridge: sink closed")

	// ErrShutdown means Connect was called after the connector shut
	// down.
	ErrShutdown = errors.New("bridge: connector shut down")

	// ErrConnected means Connect was called a second time. A connector
	// wires exactly one stream pair to its carrier; create a new
	// connector for a new conversation.
	ErrConnected = errors.New("bridge: connector already connected")
)
