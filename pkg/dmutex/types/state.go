package types

import "fmt"

// State is the local state of a mutex instance. Exactly one of these
// holds at any quiescent point.
type State int

const (
	// Available means nobody is known to hold the lock, locally or
	// remotely.
	Available State = iota
	// Requesting means a request has been broadcast and the instance
	// is waiting on a response from every peer.
	Requesting
	// Ours means the local instance holds the lock.
	Ours
	// HeldRemotely means the local instance granted the lock to a
	// specific peer and is waiting for that peer's Release.
	HeldRemotely
)

func (s State) String() string {
	switch s {
	case Available:
		return "Available"
	case Requesting:
		return "Requesting"
	case Ours:
		return "Ours"
	case HeldRemotely:
		return "HeldRemotely"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}
