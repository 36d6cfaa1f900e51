package types

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// MessageType enumerates the four wire messages the protocol exchanges.
type MessageType uint8

const (
	// Request asks every peer for permission to enter the critical
	// section. Carries only the sender's identity.
	Request MessageType = iota
	// Grant answers a Request favorably, addressed to the requester's
	// identity so stale grants can be recognized and ignored.
	Grant
	// Deny answers a Request unfavorably, addressed the same way as Grant.
	Deny
	// Release announces that the sender has left the critical section.
	// Carries only the sender's identity.
	Release
)

func (t MessageType) String() string {
	switch t {
	case Request:
		return "Request"
	case Grant:
		return "Grant"
	case Deny:
		return "Deny"
	case Release:
		return "Release"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(t))
	}
}

// maxNameLength bounds the mutex name field so a corrupt length prefix
// cannot make the decoder allocate an unbounded buffer.
const maxNameLength = 4096

// ErrMalformedMessage is returned when a wire payload violates the
// fixed framing invariants: truncated reads, an oversized name length,
// or an unrecognized type.
var ErrMalformedMessage = errors.New("dmutex: malformed wire message")

// Message is the in-memory representation of a wire frame. Request and
// Release carry only Sender; Grant and Deny carry both Sender (the
// peer answering) and Target (the requester being answered), since a
// receiver needs the sender's identity to know which outstanding
// request the answer resolves. Every message is tagged with Name so
// several independently named mutexes can share one transport without
// interference.
type Message struct {
	Name   string
	Type   MessageType
	Sender Identity
	Target Identity
}

// NewRequest builds a Request message naming the sender.
func NewRequest(name string, sender Identity) Message {
	return Message{Name: name, Type: Request, Sender: sender}
}

// NewRelease builds a Release message naming the sender.
func NewRelease(name string, sender Identity) Message {
	return Message{Name: name, Type: Release, Sender: sender}
}

// NewGrant builds a Grant message naming the sender and the requester
// it is addressed to.
func NewGrant(name string, sender, target Identity) Message {
	return Message{Name: name, Type: Grant, Sender: sender, Target: target}
}

// NewDeny builds a Deny message naming the sender and the requester it
// is addressed to.
func NewDeny(name string, sender, target Identity) Message {
	return Message{Name: name, Type: Deny, Sender: sender, Target: target}
}

func writeIdentity(buf *bytes.Buffer, id Identity) {
	var fields [8]byte
	binary.BigEndian.PutUint32(fields[0:4], id.IP)
	binary.BigEndian.PutUint32(fields[4:8], uint32(id.Port))
	buf.Write(fields[:])
}

func readIdentity(r *bytes.Reader) (Identity, error) {
	var ip, port uint32
	if err := binary.Read(r, binary.BigEndian, &ip); err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if err := binary.Read(r, binary.BigEndian, &port); err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	return Identity{IP: ip, Port: uint16(port)}, nil
}

// Encode serializes the message to the fixed binary wire format: a
// one-byte type tag, a length-prefixed name, and either two or four
// big-endian uint32 fields. Request and Release carry one identity
// tuple (the sender); Grant and Deny carry two (sender, then target).
func Encode(m Message) []byte {
	buf := new(bytes.Buffer)
	buf.WriteByte(byte(m.Type))

	nameBytes := []byte(m.Name)
	var nameLen [2]byte
	binary.BigEndian.PutUint16(nameLen[:], uint16(len(nameBytes)))
	buf.Write(nameLen[:])
	buf.Write(nameBytes)

	writeIdentity(buf, m.Sender)
	if m.Type == Grant || m.Type == Deny {
		writeIdentity(buf, m.Target)
	}

	return buf.Bytes()
}

// Decode parses a wire frame previously produced by Encode.
func Decode(raw []byte) (Message, error) {
	r := bytes.NewReader(raw)

	typeByte, err := r.ReadByte()
	if err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	mtype := MessageType(typeByte)
	if mtype > Release {
		return Message{}, fmt.Errorf("%w: unknown type %d", ErrMalformedMessage, typeByte)
	}

	var nameLen uint16
	if err := binary.Read(r, binary.BigEndian, &nameLen); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if int(nameLen) > maxNameLength {
		return Message{}, fmt.Errorf("%w: name length %d exceeds limit", ErrMalformedMessage, nameLen)
	}

	name := make([]byte, nameLen)
	if _, err := io.ReadFull(r, name); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}

	sender, err := readIdentity(r)
	if err != nil {
		return Message{}, err
	}

	m := Message{Name: string(name), Type: mtype, Sender: sender}
	if mtype == Grant || mtype == Deny {
		target, err := readIdentity(r)
		if err != nil {
			return Message{}, err
		}
		m.Target = target
	}
	return m, nil
}
