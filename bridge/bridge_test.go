// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"io"
	"log/slog"
	"testing"

	"github.com/bureau-foundation/conduit/carrier"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// connectedStream wires a connector over one end of an in-memory
// carrier pipe and hands back the raw peer end, so tests can feed the
// source and observe the sink at the carrier level.
func connectedStream(t *testing.T) (*Stream, *carrier.MemoryCarrier) {
	t.Helper()
	local, peer := carrier.NewMemoryPipe()
	connector := NewConnector(local, "peer.internal", Settings{}, testLogger())
	stream, err := connector.Connect()
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(connector.Shutdown)
	return stream, peer
}

// bridgePair connects both ends of an in-memory carrier pipe, as two
// communicating processes would.
func bridgePair(t *testing.T) (client, server *Stream) {
	t.Helper()
	clientEnd, serverEnd := carrier.NewMemoryPipe()
	clientConnector := NewConnector(clientEnd, "server.internal", Settings{}, testLogger())
	serverConnector := NewConnector(serverEnd, "client.internal", Settings{}, testLogger())

	clientStream, err := clientConnector.Connect()
	if err != nil {
		t.Fatalf("client Connect: %v", err)
	}
	serverStream, err := serverConnector.Connect()
	if err != nil {
		t.Fatalf("server Connect: %v", err)
	}
	t.Cleanup(func() {
		clientConnector.Shutdown()
		serverConnector.Shutdown()
	})
	return clientStream, serverStream
}
