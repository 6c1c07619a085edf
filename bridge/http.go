// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"context"
	"net"
	"net/http"
)

// HTTPTransport creates an http.RoundTripper that serves every request
// over the connector's single bridged connection. The URL host in
// requests is ignored — there is exactly one peer, the connector's
// authority. The first request dials (Connect plus Conn wrapping) and
// the pool keeps that connection alive for the rest; MaxConnsPerHost
// stops the pool from attempting a parallel second dial. If the
// connection dies, the next request surfaces ErrConnected from the
// redial: build a new connector, and a new transport, for a new
// conversation.
func HTTPTransport(connector *Connector) http.RoundTripper {
	return &http.Transport{
		DialContext: func(ctx context.Context, network, address string) (net.Conn, error) {
			stream, err := connector.Connect()
			if err != nil {
				return nil, err
			}
			return NewConn(stream, "client", connector.Authority()), nil
		},
		MaxConnsPerHost: 1,
	}
}
