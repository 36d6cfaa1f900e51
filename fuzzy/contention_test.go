package fuzzy

import (
	"fmt"
	"testing"

	"go.uber.org/goleak"

	"github.com/rgsilva/dmutex/pkg/dmutex/types"
	"github.com/rgsilva/dmutex/test"
)

// Test_SequentialRequests drives every instance through a request and
// release in turn, verifying mutual exclusion holds at every step: no
// two instances ever report holding the lock simultaneously.
func Test_SequentialRequests(t *testing.T) {
	defer goleak.VerifyNone(t)

	cluster := test.NewCluster(t, 5, "sequential")
	defer cluster.Close()

	for round, m := range cluster.Mutexes {
		m.Request()
		cluster.PumpRounds(4)

		if !m.IsHeldLocally() {
			t.Fatalf("round %d: expected %s to hold the lock, state is %v", round, cluster.Idents[round], m.State())
		}
		assertExclusive(t, cluster, round)

		m.Release()
		cluster.PumpRounds(2)
	}
}

// Test_ConcurrentRequests has every instance request the lock in the
// same round, repeated many times, checking that exactly one winner is
// ever granted per round and that every other instance is denied.
func Test_ConcurrentRequests(t *testing.T) {
	defer goleak.VerifyNone(t)

	cluster := test.NewCluster(t, 4, "concurrent")
	defer cluster.Close()

	for round := 0; round < 20; round++ {
		granted := make([]bool, len(cluster.Mutexes))
		denied := make([]bool, len(cluster.Mutexes))

		for i, m := range cluster.Mutexes {
			idx := i
			m.OnGranted(func(types.Event) { granted[idx] = true })
			m.OnDenied(func(types.Event) { denied[idx] = true })
		}

		for _, m := range cluster.Mutexes {
			m.Request()
		}
		cluster.PumpRounds(6)

		winners := 0
		for i, g := range granted {
			if g {
				winners++
				if !cluster.Mutexes[i].IsHeldLocally() {
					t.Fatalf("round %d: instance %d reported Granted but state is %v", round, i, cluster.Mutexes[i].State())
				}
			} else if !denied[i] {
				t.Fatalf("round %d: instance %d neither granted nor denied, state %v", round, i, cluster.Mutexes[i].State())
			}
		}
		if winners != 1 {
			t.Fatalf("round %d: expected exactly one winner, got %d (%s)", round, winners, cluster.String())
		}

		assertExclusive(t, cluster, round)

		for _, m := range cluster.Mutexes {
			if m.IsHeldLocally() {
				m.Release()
			}
		}
		cluster.PumpRounds(3)
	}
}

// Test_HolderLossIsPermanentPerInstance grants the lock to one instance
// then kills the holder's transport, checking that the surviving peers
// observe exactly one HolderLost event each and all return to
// Available.
func Test_HolderLossIsPermanentPerInstance(t *testing.T) {
	defer goleak.VerifyNone(t)

	cluster := test.NewCluster(t, 3, "holder-loss")
	defer cluster.Close()

	holder := cluster.Mutexes[0]
	holder.Request()
	cluster.PumpRounds(3)
	if !holder.IsHeldLocally() {
		t.Fatalf("expected instance 0 to hold the lock, got %v", holder.State())
	}

	holderLostCount := 0
	for i := 1; i < len(cluster.Mutexes); i++ {
		cluster.Mutexes[i].OnHolderLost(func(types.Event) { holderLostCount++ })
	}

	cluster.Network.Disconnect(cluster.Idents[0])
	cluster.PumpRounds(2)

	if holderLostCount != len(cluster.Mutexes)-1 {
		t.Fatalf("expected %d holder-lost events, got %d", len(cluster.Mutexes)-1, holderLostCount)
	}
	for i := 1; i < len(cluster.Mutexes); i++ {
		if cluster.Mutexes[i].State() != types.Available {
			t.Fatalf("instance %d: expected Available after holder loss, got %v", i, cluster.Mutexes[i].State())
		}
	}
}

func assertExclusive(t *testing.T, cluster *test.Cluster, round int) {
	t.Helper()
	holders := 0
	for i, m := range cluster.Mutexes {
		if m.IsHeldLocally() {
			holders++
			if holders > 1 {
				t.Fatalf("round %d: more than one instance holds the lock: %s (instance %d among %s)",
					round, cluster.Idents[i], i, cluster.String())
			}
		}
	}
	if holders > 1 {
		t.Fatal(fmt.Sprintf("round %d: mutual exclusion violated", round))
	}
}
