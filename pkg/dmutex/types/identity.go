package types

import (
	"encoding/binary"
	"fmt"
	"net"
	"strconv"
)

// Identity is the coordination address of a mutex instance: a resolved
// IPv4 address and port, used solely for deterministic tiebreak. It is
// carried on the wire instead of the transport address so it survives
// NAT-like indirection.
type Identity struct {
	IP   uint32
	Port uint16
}

// String renders the identity in dotted-quad:port form.
func (id Identity) String() string {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, id.IP)
	return fmt.Sprintf("%d.%d.%d.%d:%d", b[0], b[1], b[2], b[3], id.Port)
}

// Less orders two identities lexicographically as the tuple (ip, port),
// both compared unsigned. This is the total order the tiebreak in the
// Request handler relies on: the smaller identity always wins a
// simultaneous request race.
func (id Identity) Less(other Identity) bool {
	if id.IP != other.IP {
		return id.IP < other.IP
	}
	return id.Port < other.Port
}

// Equal reports whether two identities name the same peer.
func (id Identity) Equal(other Identity) bool {
	return id.IP == other.IP && id.Port == other.Port
}

// ParseIdentity resolves a "host:port" address into an Identity. host
// must resolve to an IPv4 address; name resolution itself is treated
// as an external concern, but turning the resolved value into the
// wire-format (ip, port) tuple is the core's job.
func ParseIdentity(addr string) (Identity, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return Identity{}, fmt.Errorf("dmutex: invalid peer address %q: %w", addr, err)
	}

	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return Identity{}, fmt.Errorf("dmutex: invalid port in %q: %w", addr, err)
	}

	ip, err := resolveIPv4(host)
	if err != nil {
		return Identity{}, fmt.Errorf("dmutex: cannot resolve %q: %w", addr, err)
	}

	return Identity{IP: ip, Port: uint16(port)}, nil
}

func resolveIPv4(host string) (uint32, error) {
	ip := net.ParseIP(host)
	if ip == nil {
		ips, err := net.LookupIP(host)
		if err != nil {
			return 0, err
		}
		for _, candidate := range ips {
			if v4 := candidate.To4(); v4 != nil {
				ip = candidate
				break
			}
		}
		if ip == nil {
			return 0, fmt.Errorf("no IPv4 address found for host %q", host)
		}
	}

	v4 := ip.To4()
	if v4 == nil {
		return 0, fmt.Errorf("address %q is not IPv4", host)
	}
	return binary.BigEndian.Uint32(v4), nil
}
