package core

import (
	"fmt"
	"sync"

	"github.com/rgsilva/dmutex/pkg/dmutex/types"
)

// LoopbackNetwork is a shared, in-process switchboard connecting a set
// of LoopbackTransport endpoints by Identity, used by the test harness
// and by single-process simulations to exercise the dispatch contract
// deterministically without sockets.
type LoopbackNetwork struct {
	mu        sync.Mutex
	endpoints map[types.Identity]*LoopbackTransport
}

// NewLoopbackNetwork creates an empty switchboard.
func NewLoopbackNetwork() *LoopbackNetwork {
	return &LoopbackNetwork{endpoints: make(map[types.Identity]*LoopbackTransport)}
}

// NewTransport registers and returns a new endpoint for id. Only one
// endpoint may exist per identity at a time.
func (n *LoopbackNetwork) NewTransport(id types.Identity) *LoopbackTransport {
	n.mu.Lock()
	defer n.mu.Unlock()

	t := &LoopbackTransport{
		network: n,
		self:    id,
		inbound: make(chan types.Message, 256),
		lost:    make(chan PeerLost, 16),
	}
	n.endpoints[id] = t
	return t
}

// Disconnect removes id from the switchboard and notifies every other
// endpoint that it was lost, simulating a peer disappearing mid-protocol.
func (n *LoopbackNetwork) Disconnect(id types.Identity) {
	n.mu.Lock()
	delete(n.endpoints, id)
	remaining := make([]*LoopbackTransport, 0, len(n.endpoints))
	for _, ep := range n.endpoints {
		remaining = append(remaining, ep)
	}
	n.mu.Unlock()

	for _, ep := range remaining {
		select {
		case ep.lost <- PeerLost{Peer: id}:
		default:
		}
	}
}

func (n *LoopbackNetwork) deliver(to types.Identity, msg types.Message) error {
	n.mu.Lock()
	target, ok := n.endpoints[to]
	n.mu.Unlock()
	if !ok {
		return fmt.Errorf("dmutex: no loopback endpoint registered for %s", to)
	}

	select {
	case target.inbound <- msg:
		return nil
	default:
		return fmt.Errorf("dmutex: loopback endpoint %s is backed up", to)
	}
}

// LoopbackTransport is a Transport implementation backed by an
// in-memory LoopbackNetwork. Sends are synchronous, in-order, and
// never fail except when this endpoint or the target endpoint has been
// disconnected (or the target's queue is full) — the reliable,
// connection-oriented contract the transport layer assumes.
type LoopbackTransport struct {
	network *LoopbackNetwork
	self    types.Identity
	inbound chan types.Message
	lost    chan PeerLost
	closed  bool
	mu      sync.Mutex
}

func (t *LoopbackTransport) Send(peer types.Identity, msg types.Message) error {
	t.network.mu.Lock()
	registered := t.network.endpoints[t.self] == t
	t.network.mu.Unlock()
	if !registered {
		return fmt.Errorf("dmutex: loopback endpoint %s is disconnected", t.self)
	}
	return t.network.deliver(peer, msg)
}

func (t *LoopbackTransport) Inbound() <-chan types.Message {
	return t.inbound
}

func (t *LoopbackTransport) Lost() <-chan PeerLost {
	return t.lost
}

func (t *LoopbackTransport) LocalAddress() string {
	return t.self.String()
}

func (t *LoopbackTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	t.network.Disconnect(t.self)
	return nil
}
