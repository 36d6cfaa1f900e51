// Package core holds the transport contract the dmutex state machine
// is built against, and the concrete implementations the library
// ships (a real TCP transport, a relt-backed group transport, and an
// in-memory loopback transport used by tests). The transport layer is
// an injected capability: every implementation here is wired behind
// the same Transport interface so the state machine never imports net
// or relt directly.
package core

import "github.com/rgsilva/dmutex/pkg/dmutex/types"

// PeerLost is delivered by a Transport when a peer's connection
// terminates. The core treats it as a synthetic Deny during
// Requesting, a terminal "holder lost" event during HeldRemotely when
// the lost peer is the holder, and a silent peer-table cleanup
// otherwise.
type PeerLost struct {
	Peer types.Identity
}

// Transport is the capability the dmutex core consumes. Implementors
// own their own goroutines (accept loops, readers, retries); the core
// itself never blocks and never spawns anything — it only calls Send
// and drains Inbound/Lost during Pump.
type Transport interface {
	// Send delivers msg to peer. Implementations should make a
	// best-effort, per-peer-ordered attempt; the core does not retry
	// sends itself.
	Send(peer types.Identity, msg types.Message) error

	// Inbound returns the channel of messages this transport has
	// parsed off the wire, whatever mutex name they carry. Pump drains
	// this channel without blocking and discards messages naming a
	// different mutex.
	Inbound() <-chan types.Message

	// Lost returns the channel of peer-lost notifications.
	Lost() <-chan PeerLost

	// LocalAddress returns this transport's advertised "host:port".
	LocalAddress() string

	// Close tears down the transport's connections and goroutines.
	Close() error
}
