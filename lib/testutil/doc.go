// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers.
//
// [RequireReceive], [RequireSend], [RequireClosed], and
// [RequireNoReceive] encapsulate the timeout safety valve pattern
// (select with a time.After fallback) so individual tests do not
// sprinkle their own time.After calls. A test that deadlocks fails
// within [Timeout] with a message naming the wait, instead of hanging
// until the suite-level timeout kills the process with no indication of
// which channel was stuck.
//
// All helpers call t.Fatalf on failure rather than returning errors,
// since a missed event is never recoverable mid-test.
//
// This package has no dependencies outside the standard library.
package testutil
