package dmutex

import "errors"

// Configuration errors: reported synchronously to the caller of the
// offending operation, never surfaced through a callback.
var (
	// ErrDuplicatePeer is returned by AddPeer when the given address
	// already names a peer in the table.
	ErrDuplicatePeer = errors.New("dmutex: peer already present")

	// ErrIdentityCollision is returned by AddPeer when the given
	// address resolves to this instance's own identity (a second peer
	// with an existing peer's identity is ErrDuplicatePeer). Tiebreak depends
	// on identities being unique; this is a configuration error, not a
	// runtime condition the protocol can recover from.
	ErrIdentityCollision = errors.New("dmutex: identity collision")

	// ErrNotAvailable is returned by AddPeer when the local state is
	// not Available. The peer table is append-only during a lock's
	// lifetime and must not change mid-protocol.
	ErrNotAvailable = errors.New("dmutex: peer table can only change while Available")
)
