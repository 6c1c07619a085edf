// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/bureau-foundation/conduit/lib/codec"
)

// Report is the machine-readable result of one probe run. Written as
// deterministic CBOR when --report is set, so repeated runs with
// identical figures produce identical bytes.
type Report struct {
	Network    string `cbor:"network"`
	Authority  string `cbor:"authority"`
	Chunks     int    `cbor:"chunks"`
	ChunkBytes int    `cbor:"chunk_bytes"`

	BytesSent   int64 `cbor:"bytes_sent"`
	BytesEchoed int64 `cbor:"bytes_echoed"`

	// BLAKE3 digests (hex) of the sent and echoed byte streams.
	SentDigest   string `cbor:"sent_digest"`
	EchoedDigest string `cbor:"echoed_digest"`
	DigestMatch  bool   `cbor:"digest_match"`

	// Durations are nanoseconds. Latency quantiles are per-chunk
	// round-trip times (nearest rank).
	Elapsed    int64 `cbor:"elapsed"`
	LatencyP50 int64 `cbor:"latency_p50"`
	LatencyP90 int64 `cbor:"latency_p90"`
	LatencyP99 int64 `cbor:"latency_p99"`
	LatencyMax int64 `cbor:"latency_max"`

	ThroughputMBps float64 `cbor:"throughput_mbps"`
}

// Log emits the report's figures as a single structured record.
func (r *Report) Log(logger *slog.Logger) {
	logger.Info("probe complete",
		"network", r.Network,
		"chunks", r.Chunks,
		"chunk_bytes", r.ChunkBytes,
		"bytes_sent", r.BytesSent,
		"bytes_echoed", r.BytesEchoed,
		"digest_match", r.DigestMatch,
		"elapsed", time.Duration(r.Elapsed),
		"throughput_mbps", fmt.Sprintf("%.2f", r.ThroughputMBps),
		"latency_p50", time.Duration(r.LatencyP50),
		"latency_p90", time.Duration(r.LatencyP90),
		"latency_p99", time.Duration(r.LatencyP99),
		"latency_max", time.Duration(r.LatencyMax),
	)
}

// writeReport serializes the report to path as deterministic CBOR.
func writeReport(path string, report *Report) error {
	data, err := codec.Marshal(report)
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return err
	}
	return nil
}
