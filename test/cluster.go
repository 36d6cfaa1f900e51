// Package test provides a small in-process cluster harness for
// exercising a set of dmutex.Mutex instances wired together over a
// LoopbackTransport: deterministic, no sockets, driven entirely by
// explicit Pump calls so tests can assert on exact quiescent points.
package test

import (
	"fmt"
	"testing"

	"github.com/rgsilva/dmutex/pkg/dmutex"
	"github.com/rgsilva/dmutex/pkg/dmutex/core"
	"github.com/rgsilva/dmutex/pkg/dmutex/types"
)

// Cluster is a set of Mutex instances, each with every other instance
// already added as a peer, connected through a shared LoopbackNetwork.
type Cluster struct {
	T          *testing.T
	Network    *core.LoopbackNetwork
	Mutexes    []*dmutex.Mutex
	Idents     []types.Identity
	transports []*core.LoopbackTransport
}

// NewCluster builds a fully-connected cluster of n peers sharing the
// named mutex. Peer identities are synthetic but strictly ordered
// (instance i has a smaller identity tuple than instance i+1), which
// makes tiebreak outcomes predictable in tests.
func NewCluster(t *testing.T, n int, mutexName string) *Cluster {
	network := core.NewLoopbackNetwork()

	idents := make([]types.Identity, n)
	for i := 0; i < n; i++ {
		idents[i] = types.Identity{IP: uint32(10<<24 | (i + 1)), Port: uint16(9000 + i)}
	}

	mutexes := make([]*dmutex.Mutex, n)
	transports := make([]*core.LoopbackTransport, n)
	for i := 0; i < n; i++ {
		transports[i] = network.NewTransport(idents[i])
		mutexes[i] = dmutex.New(mutexName, idents[i], transports[i], nil)
	}

	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			addr := idents[j].String()
			if err := mutexes[i].AddPeer(addr); err != nil {
				t.Fatalf("adding peer %s to instance %d: %v", addr, i, err)
			}
		}
	}

	return &Cluster{T: t, Network: network, Mutexes: mutexes, Idents: idents, transports: transports}
}

// PumpAll drives every instance once, in index order.
func (c *Cluster) PumpAll() {
	for _, m := range c.Mutexes {
		m.Pump()
	}
}

// PumpRounds drives every instance for the given number of rounds,
// which is usually enough for a single request/response exchange to
// reach a quiescent point in a small synthetic cluster.
func (c *Cluster) PumpRounds(rounds int) {
	for i := 0; i < rounds; i++ {
		c.PumpAll()
	}
}

// Close releases (if held) and tears down every instance's transport.
func (c *Cluster) Close() {
	for i, m := range c.Mutexes {
		m.Close()
		c.transports[i].Close()
	}
}

// String renders a cluster's current state, handy in test failure messages.
func (c *Cluster) String() string {
	out := ""
	for i, m := range c.Mutexes {
		out += fmt.Sprintf("[%d %s: %v] ", i, c.Idents[i], m.State())
	}
	return out
}
