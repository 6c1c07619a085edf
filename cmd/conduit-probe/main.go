// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Conduit-probe exercises the carrier-to-stream bridge end to end and
// reports transfer integrity and timing.
//
// Three modes:
//
// Loopback (default): builds an in-memory carrier pipe, serves echo on
// one end, and probes from the other. No network required — this
// verifies the bridge logic itself.
//
// Listen (--listen): accepts one peer over TCP or QUIC (--network),
// wraps the connection in a stream carrier, and echoes every chunk
// back until the peer disconnects.
//
// Connect (--connect): dials a listening probe, sends --chunks chunks
// of --size random bytes, and verifies the echoed byte stream against
// the sent stream with BLAKE3 digests.
//
// The prober reports counts, bytes, elapsed time, throughput, and
// round-trip latency quantiles via slog. With --report it additionally
// writes the same figures as deterministic CBOR.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/conduit/bridge"
	"github.com/bureau-foundation/conduit/carrier"
	"github.com/bureau-foundation/conduit/lib/process"
	"github.com/bureau-foundation/conduit/lib/version"
)

// maxChunkBytes bounds --size. Matches the stream carrier's frame
// limit so a configured chunk always fits one frame.
const maxChunkBytes = 16 << 20

// probeOptions collects the flag values for one invocation.
type probeOptions struct {
	listenAddr  string
	connectAddr string
	network     string
	authority   string
	chunks      int
	size        int
	reportPath  string
	verbose     bool
}

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	var options probeOptions

	flagSet := pflag.NewFlagSet("conduit-probe", pflag.ContinueOnError)
	flagSet.StringVar(&options.listenAddr, "listen", "", "serve echo: accept one peer on this address")
	flagSet.StringVar(&options.connectAddr, "connect", "", "probe: dial a listening peer at this address")
	flagSet.StringVar(&options.network, "network", networkTCP, "peer transport for --listen/--connect: tcp or quic")
	flagSet.StringVar(&options.authority, "authority", "probe.internal", "logical peer authority for the transport connector")
	flagSet.IntVar(&options.chunks, "chunks", 64, "number of chunks to send")
	flagSet.IntVar(&options.size, "size", 16384, "bytes per chunk")
	flagSet.StringVar(&options.reportPath, "report", "", "write a CBOR report to this path")
	flagSet.BoolVar(&options.verbose, "verbose", false, "log per-chunk detail at debug level")
	flagSet.BoolP("help", "h", false, "show help")

	// Handle --version before flag parsing to match other Conduit binaries.
	if len(os.Args) > 1 && os.Args[1] == "--version" {
		version.Print("conduit-probe")
		return nil
	}

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			printHelp(flagSet)
			return nil
		}
		return err
	}

	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet)
		return nil
	}

	args := flagSet.Args()
	if len(args) > 0 {
		return fmt.Errorf("unexpected argument: %s", args[0])
	}

	if options.listenAddr != "" && options.connectAddr != "" {
		return errors.New("--listen and --connect are mutually exclusive")
	}
	if options.network != networkTCP && options.network != networkQUIC {
		return fmt.Errorf("unsupported --network %q (want tcp or quic)", options.network)
	}
	if options.chunks < 1 {
		return fmt.Errorf("--chunks must be at least 1 (got %d)", options.chunks)
	}
	if options.size < 1 || options.size > maxChunkBytes {
		return fmt.Errorf("--size must be between 1 and %d bytes (got %d)", maxChunkBytes, options.size)
	}

	level := slog.LevelInfo
	if options.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch {
	case options.listenAddr != "":
		return runListen(ctx, logger, options)
	case options.connectAddr != "":
		return runConnect(ctx, logger, options)
	default:
		return runLoopback(ctx, logger, options)
	}
}

// runLoopback probes an in-memory carrier pipe with an echo responder
// on the far end. Exercises the full bridge path without a network.
func runLoopback(ctx context.Context, logger *slog.Logger, options probeOptions) error {
	options.network = networkMemory

	proberEnd, echoEnd := carrier.NewMemoryPipe()

	echoConnector := bridge.NewConnector(echoEnd, options.authority, bridge.Settings{}, logger)
	echoStream, err := echoConnector.Connect()
	if err != nil {
		return fmt.Errorf("connecting echo end: %w", err)
	}

	echoDone := make(chan error, 1)
	go func() {
		echoDone <- serveEcho(ctx, echoStream)
	}()

	proberConnector := bridge.NewConnector(proberEnd, options.authority, bridge.Settings{}, logger)
	proberStream, err := proberConnector.Connect()
	if err != nil {
		return fmt.Errorf("connecting prober end: %w", err)
	}

	logger.Info("probing loopback pipe", "chunks", options.chunks, "chunk_bytes", options.size)

	report, probeErr := runProbe(ctx, logger, proberStream, options)
	proberConnector.Shutdown()

	if err := <-echoDone; err != nil {
		logger.Warn("echo responder failed", "error", err)
	}
	if probeErr != nil {
		return probeErr
	}
	return finishReport(logger, report, options.reportPath)
}

// runConnect dials a listening probe, bridges the connection, and runs
// the prober over it.
func runConnect(ctx context.Context, logger *slog.Logger, options probeOptions) error {
	peer, err := dialPeer(ctx, options.network, options.connectAddr)
	if err != nil {
		return err
	}

	channel := carrier.NewStreamCarrier(peer)
	connector := bridge.NewConnector(channel, options.authority, bridge.Settings{}, logger)
	stream, err := connector.Connect()
	if err != nil {
		return fmt.Errorf("connecting bridge: %w", err)
	}

	logger.Info("probing peer",
		"network", options.network,
		"peer", options.connectAddr,
		"chunks", options.chunks,
		"chunk_bytes", options.size,
	)

	report, probeErr := runProbe(ctx, logger, stream, options)
	connector.Shutdown()

	if probeErr != nil {
		return probeErr
	}
	return finishReport(logger, report, options.reportPath)
}

// runListen accepts one peer, bridges the connection, and echoes
// chunks back until the peer disconnects or the context is cancelled.
func runListen(ctx context.Context, logger *slog.Logger, options probeOptions) error {
	peer, err := acceptPeer(ctx, logger, options.network, options.listenAddr)
	if err != nil {
		return err
	}

	channel := carrier.NewStreamCarrier(peer)
	connector := bridge.NewConnector(channel, options.authority, bridge.Settings{}, logger)
	defer connector.Shutdown()

	stream, err := connector.Connect()
	if err != nil {
		return fmt.Errorf("connecting bridge: %w", err)
	}

	logger.Info("echoing chunks", "network", options.network)

	if err := serveEcho(ctx, stream); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info("interrupted, shutting down")
			return nil
		}
		return err
	}

	logger.Info("peer finished")
	return nil
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `Conduit probe — bridge diagnostic and echo responder.

By default the probe runs against an in-memory loopback pipe: an echo
responder on one end, the prober on the other. This verifies the
bridge logic without touching the network.

With --listen the probe serves echo for exactly one peer over TCP or
QUIC. With --connect it dials such a listener, sends random chunks,
and verifies the echoed byte stream against what it sent using BLAKE3
digests. QUIC listeners generate a throwaway self-signed certificate;
QUIC connectors accept any certificate carrying the probe ALPN.

Usage:
  conduit-probe [flags]

Examples:
  # Loopback self-check
  conduit-probe

  # Echo responder on TCP
  conduit-probe --listen 127.0.0.1:9500

  # Probe it with 256 chunks of 64 KiB, writing a CBOR report
  conduit-probe --connect 127.0.0.1:9500 --chunks 256 --size 65536 --report probe.cbor

  # Same over QUIC
  conduit-probe --listen 127.0.0.1:9500 --network quic
  conduit-probe --connect 127.0.0.1:9500 --network quic

Flags:
`)
	flagSet.SetOutput(os.Stderr)
	flagSet.PrintDefaults()
}
