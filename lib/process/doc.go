// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process provides binary entrypoint helpers for Conduit
// binaries. It centralizes the raw stderr output that exists before
// the structured logger is initialized: main() reports errors from
// run() through [Fatal] rather than printing and exiting inline.
package process
