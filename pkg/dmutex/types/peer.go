package types

// PeerRecord is a single entry in an instance's peer table: the peer's
// identity and, while the local instance is Requesting, whether that
// peer has granted the current request. The flag is meaningless in any
// other state and is reset at the start of every Requesting episode.
type PeerRecord struct {
	Identity Identity

	// GrantedThisRequest is true iff a Grant was received from this
	// peer during the current Requesting episode.
	GrantedThisRequest bool
}
