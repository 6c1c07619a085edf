// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net"
	"time"

	"github.com/quic-go/quic-go"
)

const (
	networkMemory = "memory"
	networkTCP    = "tcp"
	networkQUIC   = "quic"

	// probeALPN identifies probe traffic during the QUIC handshake.
	// Both ends must agree; certificate identity is not checked.
	probeALPN = "conduit-probe/1"
)

// dialPeer connects to a listening probe and returns the byte stream
// for the stream carrier.
func dialPeer(ctx context.Context, network, address string) (io.ReadWriteCloser, error) {
	switch network {
	case networkTCP:
		var dialer net.Dialer
		conn, err := dialer.DialContext(ctx, "tcp", address)
		if err != nil {
			return nil, fmt.Errorf("dialing %s: %w", address, err)
		}
		return conn, nil

	case networkQUIC:
		connection, err := quic.DialAddr(ctx, address, clientTLSConfig(), nil)
		if err != nil {
			return nil, fmt.Errorf("dialing %s: %w", address, err)
		}
		stream, err := connection.OpenStreamSync(ctx)
		if err != nil {
			connection.CloseWithError(0, "stream open failed")
			return nil, fmt.Errorf("opening stream to %s: %w", address, err)
		}
		return &quicStream{Stream: stream, connection: connection}, nil

	default:
		return nil, fmt.Errorf("unsupported network %q (want tcp or quic)", network)
	}
}

// acceptPeer waits for exactly one peer and returns the byte stream
// for the stream carrier. The probe serves one connection per run; no
// further peers are accepted.
func acceptPeer(ctx context.Context, logger *slog.Logger, network, address string) (io.ReadWriteCloser, error) {
	switch network {
	case networkTCP:
		return acceptTCP(ctx, logger, address)
	case networkQUIC:
		return acceptQUIC(ctx, logger, address)
	default:
		return nil, fmt.Errorf("unsupported network %q (want tcp or quic)", network)
	}
}

func acceptTCP(ctx context.Context, logger *slog.Logger, address string) (io.ReadWriteCloser, error) {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("listening on %s: %w", address, err)
	}
	defer listener.Close()

	// Close the listener on context cancellation to unblock Accept.
	acceptDone := make(chan struct{})
	defer close(acceptDone)

	go func() {
		select {
		case <-ctx.Done():
			listener.Close()
		case <-acceptDone:
		}
	}()

	logger.Info("waiting for peer", "network", networkTCP, "address", listener.Addr().String())

	conn, err := listener.Accept()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("accepting peer: %w", err)
	}

	logger.Info("peer connected", "remote", conn.RemoteAddr().String())
	return conn, nil
}

func acceptQUIC(ctx context.Context, logger *slog.Logger, address string) (io.ReadWriteCloser, error) {
	tlsConf, err := serverTLSConfig()
	if err != nil {
		return nil, fmt.Errorf("building TLS config: %w", err)
	}

	// The listener stays open until the stream is done: it owns the
	// UDP socket the accepted connection runs over.
	listener, err := quic.ListenAddr(address, tlsConf, nil)
	if err != nil {
		return nil, fmt.Errorf("listening on %s: %w", address, err)
	}

	logger.Info("waiting for peer", "network", networkQUIC, "address", listener.Addr().String())

	connection, err := listener.Accept(ctx)
	if err != nil {
		listener.Close()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("accepting peer: %w", err)
	}

	// The stream becomes visible once the prober's first chunk frame
	// arrives; QUIC peers learn about streams lazily.
	stream, err := connection.AcceptStream(ctx)
	if err != nil {
		connection.CloseWithError(0, "stream accept failed")
		listener.Close()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("accepting stream: %w", err)
	}

	logger.Info("peer connected", "remote", connection.RemoteAddr().String())
	return &quicStream{Stream: stream, connection: connection, listener: listener}, nil
}

// quicStream couples a QUIC stream to its connection so that closing
// the byte stream also releases the connection. One stream per
// connection is the probe's whole protocol. On the listen side the
// stream also owns the listener, which holds the connection's UDP
// socket; it is nil on the dial side.
type quicStream struct {
	quic.Stream
	connection quic.Connection
	listener   *quic.Listener
}

func (s *quicStream) Close() error {
	s.Stream.CancelRead(0)
	err := s.Stream.Close()
	s.connection.CloseWithError(0, "closed")
	if s.listener != nil {
		s.listener.Close()
	}
	return err
}

// serverTLSConfig builds a throwaway self-signed certificate for one
// listen run. The probe is a lab diagnostic: peers are matched by
// ALPN, not certificate identity.
func serverTLSConfig() (*tls.Config, error) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, err
	}

	template := x509.Certificate{
		SerialNumber:          big.NewInt(1),
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
	}

	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		return nil, err
	}

	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})

	certificate, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, err
	}

	return &tls.Config{
		Certificates: []tls.Certificate{certificate},
		NextProtos:   []string{probeALPN},
	}, nil
}

// clientTLSConfig accepts any server certificate carrying the probe
// ALPN. Connect mode targets lab listeners you already control.
func clientTLSConfig() *tls.Config {
	return &tls.Config{
		InsecureSkipVerify: true,
		NextProtos:         []string{probeALPN},
	}
}
