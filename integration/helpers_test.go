// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package integration_test exercises the bridge over real pion WebRTC
// data channels: two in-process PeerConnections negotiate over loopback
// ICE, and the resulting channels are driven through DataChannelCarrier
// and Connector exactly as a production client would.
//
// No signaling server is involved — the SDP offer and answer are handed
// between the PeerConnections directly.
package integration_test

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/bureau-foundation/conduit/carrier"
	"github.com/bureau-foundation/conduit/lib/testutil"
)

// negotiationTimeout bounds the ICE gathering and channel-open waits.
// Loopback handshakes complete in well under a second; the margin
// covers loaded CI machines.
const negotiationTimeout = 10 * time.Second

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// bridgedPeers is one established WebRTC session: the offering side
// created the data channel, the answering side received it. The raw
// channel handles let tests inject traffic beneath the carriers.
type bridgedPeers struct {
	offerCarrier  *carrier.DataChannelCarrier
	answerCarrier *carrier.DataChannelCarrier
	offerRaw      *webrtc.DataChannel
	answerRaw     *webrtc.DataChannel
}

// newLoopbackPeer builds a PeerConnection that gathers loopback host
// candidates, the only interface available in test environments.
// Detach stays disabled: the carriers consume pion's message callbacks.
func newLoopbackPeer(t *testing.T) *webrtc.PeerConnection {
	t.Helper()

	settingEngine := webrtc.SettingEngine{}
	settingEngine.SetIncludeLoopbackCandidate(true)

	api := webrtc.NewAPI(webrtc.WithSettingEngine(settingEngine))
	peer, err := api.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		t.Fatalf("NewPeerConnection: %v", err)
	}
	t.Cleanup(func() { peer.Close() })
	return peer
}

// establishPeers negotiates a session between two loopback
// PeerConnections and returns both ends of an ordered, reliable data
// channel wrapped in carriers, both open.
func establishPeers(t *testing.T) *bridgedPeers {
	t.Helper()

	offerPeer := newLoopbackPeer(t)
	answerPeer := newLoopbackPeer(t)

	// Register before signaling so the channel announcement cannot be
	// missed.
	answerChannels := make(chan *webrtc.DataChannel, 1)
	answerPeer.OnDataChannel(func(channel *webrtc.DataChannel) {
		answerChannels <- channel
	})

	ordered := true
	offerRaw, err := offerPeer.CreateDataChannel("bridge", &webrtc.DataChannelInit{
		Ordered: &ordered,
	})
	if err != nil {
		t.Fatalf("CreateDataChannel: %v", err)
	}

	// Wrap before the handshake so the carrier observes the open event
	// live rather than relying on state polling.
	offerCarrier := carrier.NewDataChannelCarrier(offerRaw)

	offer, err := offerPeer.CreateOffer(nil)
	if err != nil {
		t.Fatalf("CreateOffer: %v", err)
	}
	offerGathered := webrtc.GatheringCompletePromise(offerPeer)
	if err := offerPeer.SetLocalDescription(offer); err != nil {
		t.Fatalf("SetLocalDescription(offer): %v", err)
	}
	awaitGathering(t, offerGathered, "offer candidates")

	if err := answerPeer.SetRemoteDescription(*offerPeer.LocalDescription()); err != nil {
		t.Fatalf("SetRemoteDescription(offer): %v", err)
	}

	answer, err := answerPeer.CreateAnswer(nil)
	if err != nil {
		t.Fatalf("CreateAnswer: %v", err)
	}
	answerGathered := webrtc.GatheringCompletePromise(answerPeer)
	if err := answerPeer.SetLocalDescription(answer); err != nil {
		t.Fatalf("SetLocalDescription(answer): %v", err)
	}
	awaitGathering(t, answerGathered, "answer candidates")

	if err := offerPeer.SetRemoteDescription(*answerPeer.LocalDescription()); err != nil {
		t.Fatalf("SetRemoteDescription(answer): %v", err)
	}

	answerRaw := testutil.RequireReceive(t, answerChannels, "answering side data channel")
	answerCarrier := carrier.NewDataChannelCarrier(answerRaw)

	awaitOpen(t, offerCarrier, "offering")
	awaitOpen(t, answerCarrier, "answering")

	return &bridgedPeers{
		offerCarrier:  offerCarrier,
		answerCarrier: answerCarrier,
		offerRaw:      offerRaw,
		answerRaw:     answerRaw,
	}
}

func awaitGathering(t *testing.T, gathered <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-gathered:
	case <-time.After(negotiationTimeout):
		t.Fatalf("ICE gathering timed out waiting for %s", what)
	}
}

// awaitOpen blocks until the carrier reports Open. Subscribe first,
// then check the current state: the open event may have fired before
// the carrier was constructed, in which case only polling sees it.
func awaitOpen(t *testing.T, channel carrier.Carrier, name string) {
	t.Helper()

	open := make(chan struct{}, 1)
	subscription := channel.SubscribeStates(func(state carrier.State) {
		if state == carrier.StateOpen {
			select {
			case open <- struct{}{}:
			default:
			}
		}
	})
	defer subscription.Cancel()

	if channel.State() == carrier.StateOpen {
		return
	}

	select {
	case <-open:
	case <-time.After(negotiationTimeout):
		t.Fatalf("%s data channel did not open (state %v)", name, channel.State())
	}
}
