// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"time"

	"github.com/zeebo/blake3"

	"github.com/bureau-foundation/conduit/bridge"
)

// runProbe sends options.chunks random chunks through the stream's
// sink, awaits each echo on the source, and accumulates BLAKE3 digests
// of both directions. Chunks are ping-ponged one at a time so each
// round trip yields one latency sample.
func runProbe(ctx context.Context, logger *slog.Logger, stream *bridge.Stream, options probeOptions) (*Report, error) {
	sentHash := blake3.New()
	echoHash := blake3.New()
	latencies := make([]time.Duration, 0, options.chunks)

	var bytesSent, bytesEchoed int64
	start := time.Now()

	for i := 0; i < options.chunks; i++ {
		payload := make([]byte, options.size)
		if _, err := rand.Read(payload); err != nil {
			return nil, fmt.Errorf("generating chunk %d: %w", i, err)
		}
		sentHash.Write(payload)

		sendTime := time.Now()
		if err := stream.Sink.Add(payload); err != nil {
			return nil, fmt.Errorf("transmitting chunk %d: %w", i, err)
		}

		echo, err := stream.Source.Recv(ctx)
		if err != nil {
			return nil, fmt.Errorf("awaiting echo of chunk %d: %w", i, err)
		}
		latencies = append(latencies, time.Since(sendTime))

		if len(echo) != len(payload) {
			return nil, fmt.Errorf("chunk %d: echoed %d bytes, sent %d", i, len(echo), len(payload))
		}
		echoHash.Write(echo)
		bytesSent += int64(len(payload))
		bytesEchoed += int64(len(echo))

		logger.Debug("chunk echoed", "index", i, "bytes", len(echo))
	}

	elapsed := time.Since(start)
	slices.Sort(latencies)

	sentDigest := sentHash.Sum(nil)
	echoDigest := echoHash.Sum(nil)

	return &Report{
		Network:      options.network,
		Authority:    options.authority,
		Chunks:       options.chunks,
		ChunkBytes:   options.size,
		BytesSent:    bytesSent,
		BytesEchoed:  bytesEchoed,
		SentDigest:   hex.EncodeToString(sentDigest),
		EchoedDigest: hex.EncodeToString(echoDigest),
		DigestMatch:  slices.Equal(sentDigest, echoDigest),
		Elapsed:      int64(elapsed),
		LatencyP50:   int64(latencyQuantile(latencies, 0.50)),
		LatencyP90:   int64(latencyQuantile(latencies, 0.90)),
		LatencyP99:   int64(latencyQuantile(latencies, 0.99)),
		LatencyMax:   int64(latencies[len(latencies)-1]),
		// Megabytes per second over the full round trip. Ping-pong
		// throughput is latency-bound, not bandwidth-bound.
		ThroughputMBps: float64(bytesEchoed) / float64(1<<20) / elapsed.Seconds(),
	}, nil
}

// serveEcho drains every chunk arriving on the stream's source back
// into its sink. Returns nil when the peer stops transmitting.
func serveEcho(ctx context.Context, stream *bridge.Stream) error {
	if err := stream.Sink.AddFrom(ctx, stream.Source); err != nil {
		return fmt.Errorf("echoing chunks: %w", err)
	}
	return nil
}

// finishReport logs the report, writes the CBOR file when requested,
// and fails the run on an integrity mismatch.
func finishReport(logger *slog.Logger, report *Report, path string) error {
	report.Log(logger)

	if path != "" {
		if err := writeReport(path, report); err != nil {
			return fmt.Errorf("writing report: %w", err)
		}
		logger.Info("report written", "path", path)
	}

	if !report.DigestMatch {
		return errors.New("echoed stream digest does not match sent stream")
	}
	return nil
}

// latencyQuantile returns the q-quantile (0 < q ≤ 1) of an ascending
// sorted sample using the nearest-rank method.
func latencyQuantile(sorted []time.Duration, q float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	rank := int(math.Ceil(q*float64(len(sorted)))) - 1
	if rank < 0 {
		rank = 0
	}
	if rank >= len(sorted) {
		rank = len(sorted) - 1
	}
	return sorted[rank]
}
