// Package dmutex implements a distributed mutual-exclusion lock shared
// by a fixed set of peer processes. Any peer may request the lock; at
// any instant at most one peer holds it; when the holder releases,
// every peer is notified. The package governs only the coordination
// protocol — the named resource the lock protects is external.
//
// A Mutex is single-threaded cooperative: every operation (Request,
// Release, AddPeer, Pump) is non-blocking and must be called from one
// goroutine. Concurrency across peers is real; concurrency inside one
// instance is not. Transport implementations may run their own
// goroutines freely — Pump only drains what they have already queued.
package dmutex

import (
	"fmt"

	"github.com/rgsilva/dmutex/pkg/dmutex/core"
	"github.com/rgsilva/dmutex/pkg/dmutex/definition"
	"github.com/rgsilva/dmutex/pkg/dmutex/journal"
	"github.com/rgsilva/dmutex/pkg/dmutex/metrics"
	"github.com/rgsilva/dmutex/pkg/dmutex/types"
)

// journalCapacity bounds the in-memory transition history kept per
// instance; see pkg/dmutex/journal.
const journalCapacity = 128

// Mutex is one peer's local representative of the distributed lock.
type Mutex struct {
	name     string
	identity types.Identity

	state  types.State
	holder types.Identity
	peers  []types.PeerRecord

	transport core.Transport
	logger    types.Logger
	journal   *journal.Journal
	metrics   *metrics.Collectors

	onGranted    types.CallbackList
	onDenied     types.CallbackList
	onReleased   types.CallbackList
	onHolderLost types.CallbackList

	pending []func()
}

// New constructs a Mutex with its own identity and transport. Peers
// must be added with AddPeer before Request is meaningful.
func New(name string, identity types.Identity, transport core.Transport, logger types.Logger) *Mutex {
	if logger == nil {
		logger = definition.NewDefaultLogger(name)
	}

	return &Mutex{
		name:      name,
		identity:  identity,
		state:     types.Available,
		transport: transport,
		logger:    logger,
		journal:   journal.New(journalCapacity),
		metrics:   metrics.NewCollectors(name),
	}
}

// NewSharing constructs a Mutex reusing a transport already driven by
// the host for another purpose (for example, a server's existing TCP
// listener wired into a ReltTransport/TCPTransport). Identity is never
// derived implicitly from the host's default address, since that
// derivation can silently bias the tiebreak; callers of this package
// must always supply an explicit, unique identity.
func NewSharing(name string, identity types.Identity, transport core.Transport, logger types.Logger) *Mutex {
	return New(name, identity, transport, logger)
}

// Identity returns this instance's own coordination identity.
func (m *Mutex) Identity() types.Identity {
	return m.identity
}

// AddPeer parses addr ("host:port") and appends it to the peer table.
// The table is append-only during a lock's lifetime, so this is only
// permitted while Available.
func (m *Mutex) AddPeer(addr string) error {
	if m.state != types.Available {
		return ErrNotAvailable
	}

	id, err := types.ParseIdentity(addr)
	if err != nil {
		return err
	}

	if id.Equal(m.identity) {
		return fmt.Errorf("%w: %s is this instance's own identity", ErrIdentityCollision, addr)
	}

	for _, p := range m.peers {
		if p.Identity.Equal(id) {
			return fmt.Errorf("%w: %s", ErrDuplicatePeer, addr)
		}
	}

	m.peers = append(m.peers, types.PeerRecord{Identity: id})
	m.metrics.PeerCount.Set(float64(len(m.peers)))
	m.journal.Record(journal.Entry{Kind: journal.PeerAdded, Peer: id.String()})
	return nil
}

// PeerCount reports the current size of the peer table.
func (m *Mutex) PeerCount() int {
	return len(m.peers)
}

// IsAvailable reports whether nobody is known to hold the lock.
func (m *Mutex) IsAvailable() bool { return m.state == types.Available }

// IsHeldLocally reports whether this instance holds the lock.
func (m *Mutex) IsHeldLocally() bool { return m.state == types.Ours }

// IsHeldRemotely reports whether this instance granted the lock to a
// specific peer and is awaiting that peer's release.
func (m *Mutex) IsHeldRemotely() bool { return m.state == types.HeldRemotely }

// State returns the raw current state, mainly useful for tests and diagnostics.
func (m *Mutex) State() types.State { return m.state }

// OnGranted registers a callback fired when this instance enters Ours.
func (m *Mutex) OnGranted(fn types.CallbackFunc) { m.onGranted.Register(fn) }

// OnDenied registers a callback fired when a request fails: someone
// else held the lock, a simultaneous requester won the tiebreak, the
// request was cancelled locally, or a peer was lost mid-request.
func (m *Mutex) OnDenied(fn types.CallbackFunc) { m.onDenied.Register(fn) }

// OnReleased registers a callback fired when this instance learns the
// lock became available again: either its own Release, or an inbound
// Release from the peer it had granted the lock to.
func (m *Mutex) OnReleased(fn types.CallbackFunc) { m.onReleased.Register(fn) }

// OnHolderLost registers a callback fired when the peer this instance
// had granted the lock to disappears mid-protocol. This is surfaced as
// a distinct, one-shot event rather than folded into OnReleased or
// OnDenied: the lock is not actually free, it is permanently lost from
// this instance's point of view until every peer restarts.
func (m *Mutex) OnHolderLost(fn types.CallbackFunc) { m.onHolderLost.Register(fn) }

// Journal exposes the in-memory transition history for diagnostics.
func (m *Mutex) Journal() *journal.Journal { return m.journal }

// Metrics exposes the Prometheus collectors so a host can register
// them with its own registry.
func (m *Mutex) Metrics() *metrics.Collectors { return m.metrics }

// Request asks to enter the critical section. If the instance is
// Available it transitions to Requesting and broadcasts a Request to
// every peer; otherwise a Denied callback is scheduled to fire on the
// next Pump. Request never blocks: the outcome is only observable
// after a subsequent Pump.
func (m *Mutex) Request() {
	if m.state != types.Available {
		m.scheduleDenied(types.Identity{})
		return
	}

	m.state = types.Requesting
	for i := range m.peers {
		m.peers[i].GrantedThisRequest = false
	}

	m.journal.Record(journal.Entry{Kind: journal.Requested})
	m.metrics.RequestsTotal.Inc()
	m.broadcast(types.NewRequest(m.name, m.identity))
}

// Release leaves the critical section, or cancels a pending request.
// If Ours, transitions to Available and broadcasts Release to every
// peer. If Requesting, cancels the request locally (peers will deny or
// grant the now-abandoned request harmlessly). Otherwise it is a no-op.
func (m *Mutex) Release() {
	switch m.state {
	case types.Ours:
		m.state = types.Available
		m.broadcast(types.NewRelease(m.name, m.identity))
		m.journal.Record(journal.Entry{Kind: journal.Released})
		m.scheduleReleased(types.Identity{})
	case types.Requesting:
		m.state = types.Available
		m.scheduleDenied(types.Identity{})
	}
}

// Close tears down this instance: if it currently holds the lock, it
// releases before teardown. It does not close the transport, which
// may be shared with other instances or owned by the host.
func (m *Mutex) Close() {
	if m.state == types.Ours {
		m.Release()
		m.flushPending()
	}
}

// Pump drains the transport's inbound queues and fires every callback
// scheduled since the previous Pump, including those scheduled by
// Request and Release. It is the only place state transitions
// triggered by remote peers become visible, and, apart from Close's
// final release, the only place any callback actually runs — this
// gives callers a single well-defined reentrancy point, so user code never observes a half-transitioned
// state and can never reenter the state machine mid-transition.
func (m *Mutex) Pump() {
drainInbound:
	for {
		select {
		case msg, ok := <-m.transport.Inbound():
			if !ok {
				break drainInbound
			}
			if msg.Name != m.name {
				continue
			}
			m.dispatch(msg)
		default:
			break drainInbound
		}
	}

drainLost:
	for {
		select {
		case lost, ok := <-m.transport.Lost():
			if !ok {
				break drainLost
			}
			m.handlePeerLost(lost.Peer)
		default:
			break drainLost
		}
	}

	m.checkSelfGrant()
	m.flushPending()
}

func (m *Mutex) dispatch(msg types.Message) {
	switch msg.Type {
	case types.Request:
		m.handleRequest(msg)
	case types.Grant:
		m.handleGrant(msg)
	case types.Deny:
		m.handleDeny(msg)
	case types.Release:
		m.handleRelease(msg)
	default:
		m.logger.Warnf("dropping message of unknown type %v", msg.Type)
	}
}

// handleRequest answers an inbound Request according to the current
// state and, when both sides are simultaneously requesting, the
// identity tiebreak.
func (m *Mutex) handleRequest(msg types.Message) {
	sender := msg.Sender

	switch m.state {
	case types.Available:
		m.state = types.HeldRemotely
		m.holder = sender
		m.sendTo(sender, types.NewGrant(m.name, m.identity, sender))

	case types.HeldRemotely, types.Ours:
		m.sendTo(sender, types.NewDeny(m.name, m.identity, sender))

	case types.Requesting:
		switch {
		case sender.Equal(m.identity):
			// Identity ties must be impossible; this indicates a
			// configuration error. Treat as us winning and log it.
			m.logger.Errorf("identity collision: peer %s shares our identity", sender)
			m.sendTo(sender, types.NewDeny(m.name, m.identity, sender))
		case sender.Less(m.identity):
			// Sender wins: we abandon our own request.
			m.state = types.HeldRemotely
			m.holder = sender
			m.sendTo(sender, types.NewGrant(m.name, m.identity, sender))
			m.scheduleDenied(sender)
		default:
			// We win: deny the incoming request.
			m.sendTo(sender, types.NewDeny(m.name, m.identity, sender))
		}
	}
}

// handleGrant only records the grant; the actual Requesting -> Ours
// transition is decided once per Pump by checkSelfGrant, so the same
// logic handles both the reactive case (a Grant just arrived) and the
// degenerate zero-peer case (nothing will ever arrive).
func (m *Mutex) handleGrant(msg types.Message) {
	if !msg.Target.Equal(m.identity) {
		return
	}
	if m.state != types.Requesting {
		return
	}

	for i := range m.peers {
		if m.peers[i].Identity.Equal(msg.Sender) {
			m.peers[i].GrantedThisRequest = true
			return
		}
	}
	m.logger.Debugf("received Grant from unknown peer %s", msg.Sender)
}

func (m *Mutex) handleDeny(msg types.Message) {
	if !msg.Target.Equal(m.identity) {
		return
	}
	if m.state != types.Requesting {
		return
	}

	m.state = types.Available
	m.scheduleDenied(msg.Sender)
}

func (m *Mutex) handleRelease(msg types.Message) {
	if m.state != types.HeldRemotely {
		m.logger.Debugf("received Release from %s while in state %v, discarding", msg.Sender, m.state)
		return
	}

	if !msg.Sender.Equal(m.holder) {
		m.logger.Warnf("received Release from %s but recorded holder is %s", msg.Sender, m.holder)
	}

	m.state = types.Available
	holder := m.holder
	m.holder = types.Identity{}
	m.journal.Record(journal.Entry{Kind: journal.Released, Peer: holder.String()})
	m.scheduleReleased(holder)
}

// handlePeerLost reacts to a peer disconnecting, with a different
// outcome depending on the current state: a synthetic denial while
// Requesting, a terminal holder-lost event while HeldRemotely and the
// lost peer was the holder, or silent peer-table cleanup otherwise.
func (m *Mutex) handlePeerLost(peer types.Identity) {
	switch m.state {
	case types.Requesting:
		m.state = types.Available
		m.scheduleDenied(peer)
	case types.HeldRemotely:
		if peer.Equal(m.holder) {
			m.metrics.HolderLostTotal.Inc()
			m.journal.Record(journal.Entry{Kind: journal.HolderLost, Peer: peer.String()})
			m.state = types.Available
			m.holder = types.Identity{}
			m.scheduleHolderLost(peer)
		}
	}

	m.removePeer(peer)
}

func (m *Mutex) removePeer(peer types.Identity) {
	for i, p := range m.peers {
		if p.Identity.Equal(peer) {
			m.peers = append(m.peers[:i], m.peers[i+1:]...)
			m.metrics.PeerCount.Set(float64(len(m.peers)))
			m.journal.Record(journal.Entry{Kind: journal.PeerRemoved, Peer: peer.String()})
			return
		}
	}
}

// checkSelfGrant transitions Requesting -> Ours once every known peer
// has granted. Evaluated once per Pump, after all inbound messages and
// peer-lost notifications for this call have been processed.
func (m *Mutex) checkSelfGrant() {
	if m.state != types.Requesting {
		return
	}
	if m.grantedCount() < len(m.peers) {
		return
	}

	m.state = types.Ours
	m.journal.Record(journal.Entry{Kind: journal.Granted})
	m.metrics.GrantsTotal.Inc()
	m.scheduleGranted()
}

func (m *Mutex) grantedCount() int {
	count := 0
	for _, p := range m.peers {
		if p.GrantedThisRequest {
			count++
		}
	}
	return count
}

func (m *Mutex) broadcast(msg types.Message) {
	for _, p := range m.peers {
		m.sendTo(p.Identity, msg)
	}
}

func (m *Mutex) sendTo(peer types.Identity, msg types.Message) {
	if err := m.transport.Send(peer, msg); err != nil {
		m.logger.Errorf("failed sending %v to %s: %v", msg.Type, peer, err)
	}
}

func (m *Mutex) scheduleGranted() {
	m.pending = append(m.pending, func() {
		m.onGranted.Fire(types.Event{Mutex: m.name})
	})
}

func (m *Mutex) scheduleDenied(peer types.Identity) {
	m.journal.Record(journal.Entry{Kind: journal.Denied, Peer: peer.String()})
	m.metrics.DenialsTotal.Inc()
	m.pending = append(m.pending, func() {
		m.onDenied.Fire(types.Event{Mutex: m.name, Peer: peer})
	})
}

func (m *Mutex) scheduleReleased(peer types.Identity) {
	m.pending = append(m.pending, func() {
		m.onReleased.Fire(types.Event{Mutex: m.name, Peer: peer})
	})
}

func (m *Mutex) scheduleHolderLost(peer types.Identity) {
	m.pending = append(m.pending, func() {
		m.onHolderLost.Fire(types.Event{Mutex: m.name, Peer: peer})
	})
}

func (m *Mutex) flushPending() {
	pending := m.pending
	m.pending = nil
	for _, fn := range pending {
		fn()
	}
}
