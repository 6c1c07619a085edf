// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import "time"

// Timeout is the safety valve applied by every helper in this package.
// Long enough for a loaded CI machine, short enough that a deadlocked
// test fails before the suite-level timeout obscures which wait hung.
const Timeout = 5 * time.Second

// RequireReceive reads one value from ch or fails the test after
// Timeout. A closed channel fails too: helpers distinguish "sent a
// value" from "gave up and closed".
//
//	chunk := testutil.RequireReceive(t, chunks, "first echoed chunk")
func RequireReceive[T any](t interface {
	Helper()
	Fatalf(format string, args ...any)
}, ch <-chan T, format string, args ...any) T {
	t.Helper()
	select {
	case value, ok := <-ch:
		if !ok {
			t.Fatalf("channel closed while waiting for: "+format, args...)
		}
		return value
	case <-time.After(Timeout):
		t.Fatalf("timed out waiting for: "+format, args...)
	}
	panic("unreachable")
}

// RequireSend sends value on ch or fails the test after Timeout.
func RequireSend[T any](t interface {
	Helper()
	Fatalf(format string, args ...any)
}, ch chan<- T, value T, format string, args ...any) {
	t.Helper()
	select {
	case ch <- value:
	case <-time.After(Timeout):
		t.Fatalf("timed out sending: "+format, args...)
	}
}

// RequireClosed waits for ch to close (or deliver a value) or fails the
// test after Timeout. Use it for completion channels that signal by
// closing.
//
//	testutil.RequireClosed(t, connector.Done(), "connector completion")
func RequireClosed(t interface {
	Helper()
	Fatalf(format string, args ...any)
}, ch <-chan struct{}, format string, args ...any) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(Timeout):
		t.Fatalf("timed out waiting for close: "+format, args...)
	}
}

// RequireNoReceive asserts that ch stays silent for the given wait.
// Necessarily a bounded check — it proves "not delivered yet", which is
// the strongest statement a test can make about an event that must
// never happen. Keep wait short.
func RequireNoReceive[T any](t interface {
	Helper()
	Fatalf(format string, args ...any)
}, ch <-chan T, wait time.Duration, format string, args ...any) {
	t.Helper()
	select {
	case <-ch:
		t.Fatalf("unexpected receive: "+format, args...)
	case <-time.After(wait):
	}
}
