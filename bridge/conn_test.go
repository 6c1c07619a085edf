// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"errors"
	"io"
	"net"
	"os"
	"testing"
	"time"
)

// connPair mounts a Conn on both ends of a bridged carrier pipe.
func connPair(t *testing.T) (client, server net.Conn) {
	t.Helper()
	clientStream, serverStream := bridgePair(t)
	clientConn := NewConn(clientStream, "client", "server")
	serverConn := NewConn(serverStream, "server", "client")
	t.Cleanup(func() {
		clientConn.Close()
		serverConn.Close()
	})
	return clientConn, serverConn
}

func TestConn_ReadWrite(t *testing.T) {
	clientConn, serverConn := connPair(t)

	message := []byte("hello from client")
	go func() {
		if _, err := clientConn.Write(message); err != nil {
			t.Errorf("Write error: %v", err)
		}
	}()

	buffer := make([]byte, 256)
	bytesRead, err := serverConn.Read(buffer)
	if err != nil {
		t.Fatalf("Read error: %v", err)
	}
	if string(buffer[:bytesRead]) != "hello from client" {
		t.Errorf("read = %q, want %q", string(buffer[:bytesRead]), "hello from client")
	}
}

// A reader with a small buffer consumes a large chunk across several
// calls; the remainder must survive between reads.
func TestConn_PartialChunkReads(t *testing.T) {
	clientStream, serverStream := bridgePair(t)
	clientConn := NewConn(clientStream, "client", "server")
	defer clientConn.Close()

	if err := serverStream.Sink.Add([]byte("abcdefghijkl")); err != nil {
		t.Fatalf("Add: %v", err)
	}

	var assembled []byte
	buffer := make([]byte, 5)
	for len(assembled) < 12 {
		bytesRead, err := clientConn.Read(buffer)
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
		assembled = append(assembled, buffer[:bytesRead]...)
	}
	if string(assembled) != "abcdefghijkl" {
		t.Errorf("assembled = %q, want %q", assembled, "abcdefghijkl")
	}
}

// Each Write transmits as exactly one chunk; the chunk layer must not
// coalesce.
func TestConn_WritePreservesBoundaries(t *testing.T) {
	clientStream, serverStream := bridgePair(t)
	clientConn := NewConn(clientStream, "client", "server")
	defer clientConn.Close()

	if _, err := clientConn.Write([]byte("first")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := clientConn.Write([]byte("second")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	ctx := t.Context()
	for _, want := range []string{"first", "second"} {
		chunk, err := serverStream.Source.Recv(ctx)
		if err != nil {
			t.Fatalf("Recv: %v", err)
		}
		if string(chunk) != want {
			t.Errorf("chunk = %q, want %q", chunk, want)
		}
	}
}

// Closing the conn ends the bridged conversation but leaves the carrier
// to its owner.
func TestConn_CloseLeavesCarrierOpen(t *testing.T) {
	stream, peer := connectedStream(t)
	conn := NewConn(stream, "local", "remote")

	if err := conn.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if got := peer.State(); got.String() != "open" {
		t.Errorf("peer carrier state after conn close = %v, want open", got)
	}
	if _, err := conn.Read(make([]byte, 8)); !errors.Is(err, io.EOF) {
		t.Errorf("Read after Close = %v, want io.EOF", err)
	}
	if _, err := conn.Write([]byte("chunk")); !errors.Is(err, ErrClosed) {
		t.Errorf("Write after Close = %v, want ErrClosed", err)
	}
}

func TestConn_ExpiredDeadlineBreaksConn(t *testing.T) {
	stream, _ := connectedStream(t)
	conn := NewConn(stream, "local", "remote")
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(-1 * time.Second))

	if _, err := conn.Read(make([]byte, 8)); !errors.Is(err, os.ErrDeadlineExceeded) {
		t.Fatalf("Read after expired deadline = %v, want os.ErrDeadlineExceeded", err)
	}
	// A fired deadline breaks the conn permanently, write side included.
	if _, err := conn.Write([]byte("chunk")); !errors.Is(err, os.ErrDeadlineExceeded) {
		t.Fatalf("Write after expired deadline = %v, want os.ErrDeadlineExceeded", err)
	}

	var netErr net.Error
	_, err := conn.Read(make([]byte, 8))
	if !errors.As(err, &netErr) || !netErr.Timeout() {
		t.Errorf("deadline error = %v, want a net.Error with Timeout() true", err)
	}
}

func TestConn_DeadlineWakesBlockedRead(t *testing.T) {
	stream, _ := connectedStream(t)
	conn := NewConn(stream, "local", "remote")
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(30 * time.Millisecond))

	start := time.Now()
	_, err := conn.Read(make([]byte, 8))
	if !errors.Is(err, os.ErrDeadlineExceeded) {
		t.Fatalf("Read = %v, want os.ErrDeadlineExceeded", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("blocked read took %v to observe deadline", elapsed)
	}
}

func TestConn_ClearDeadline(t *testing.T) {
	stream, peer := connectedStream(t)
	conn := NewConn(stream, "local", "remote")
	defer conn.Close()

	// Set and then clear a deadline. The clear (zero time) should
	// prevent the deadline from firing.
	conn.SetReadDeadline(time.Now().Add(50 * time.Millisecond))
	conn.SetReadDeadline(time.Time{})

	time.Sleep(100 * time.Millisecond)

	if err := peer.Send([]byte("still alive")); err != nil {
		t.Fatalf("Send: %v", err)
	}
	buffer := make([]byte, 256)
	bytesRead, err := conn.Read(buffer)
	if err != nil {
		t.Fatalf("Read after clearing deadline: %v", err)
	}
	if string(buffer[:bytesRead]) != "still alive" {
		t.Errorf("read = %q, want %q", string(buffer[:bytesRead]), "still alive")
	}
}

func TestConn_ReadAfterPeerClose(t *testing.T) {
	stream, peer := connectedStream(t)
	conn := NewConn(stream, "local", "remote")
	defer conn.Close()

	peer.Close()

	// End of conversation, not a timeout.
	if _, err := conn.Read(make([]byte, 8)); !errors.Is(err, io.EOF) {
		t.Fatalf("Read after peer close = %v, want io.EOF", err)
	}
}

func TestConn_Addresses(t *testing.T) {
	stream, _ := connectedStream(t)
	conn := NewConn(stream, "local/chan-1", "remote/chan-1")
	defer conn.Close()

	if conn.LocalAddr().Network() != "conduit" {
		t.Errorf("LocalAddr().Network() = %q, want %q", conn.LocalAddr().Network(), "conduit")
	}
	if conn.LocalAddr().String() != "local/chan-1" {
		t.Errorf("LocalAddr().String() = %q, want %q", conn.LocalAddr().String(), "local/chan-1")
	}
	if conn.RemoteAddr().Network() != "conduit" {
		t.Errorf("RemoteAddr().Network() = %q, want %q", conn.RemoteAddr().Network(), "conduit")
	}
	if conn.RemoteAddr().String() != "remote/chan-1" {
		t.Errorf("RemoteAddr().String() = %q, want %q", conn.RemoteAddr().String(), "remote/chan-1")
	}
}

func TestConn_CloseStopsTimers(t *testing.T) {
	stream, _ := connectedStream(t)
	conn := NewConn(stream, "local", "remote")

	conn.SetDeadline(time.Now().Add(1 * time.Hour))
	if err := conn.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Closed by Close, not by a deadline: subsequent reads report EOF.
	if _, err := conn.Read(make([]byte, 8)); !errors.Is(err, io.EOF) {
		t.Errorf("Read after Close = %v, want io.EOF", err)
	}
}
