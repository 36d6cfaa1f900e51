package core

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/rgsilva/dmutex/pkg/dmutex/types"
)

// ErrorNotAdvertiseAddress is returned by NewTCPTransport when no
// explicit advertise address was given and the bound IP is a wildcard
// (such as "0.0.0.0"), so there is nothing sensible to tell peers to
// dial back. A port of 0 is not a wildcard here: the listener's
// assigned port is advertised.
var ErrorNotAdvertiseAddress = errors.New("dmutex: no advertisable address")

// maxFrameSize bounds an inbound wire frame; anything larger is
// treated as a malformed-message condition and the connection is
// dropped.
const maxFrameSize = 64 * 1024

// TCPTransport is the default, batteries-included Transport
// implementation: one listener accepting framed connections, and a
// small pool of outbound connections dialed lazily per peer.
type TCPTransport struct {
	listener  net.Listener
	advertise string
	logger    types.Logger

	mu    sync.Mutex
	conns map[string]net.Conn

	maxPool int
	timeout time.Duration

	inbound chan types.Message
	lost    chan PeerLost

	shutdownCh chan struct{}
	shutdownMu sync.Mutex
	shutdown   bool
}

// NewTCPTransport binds bindAddr and starts accepting connections. If
// advertise is nil, the bind address itself is used as the advertised
// address, unless it is a wildcard, in which case
// ErrorNotAdvertiseAddress is returned — there would be nothing
// meaningful to hand peers as this instance's identity.
func NewTCPTransport(bindAddr string, advertise *net.TCPAddr, maxPool int, timeout time.Duration, logOutput io.Writer) (*TCPTransport, error) {
	listener, err := net.Listen("tcp", bindAddr)
	if err != nil {
		return nil, fmt.Errorf("dmutex: failed to bind %s: %w", bindAddr, err)
	}

	var advertiseAddr string
	if advertise != nil {
		advertiseAddr = advertise.String()
	} else {
		addr := listener.Addr().(*net.TCPAddr)
		if addr.IP == nil || addr.IP.IsUnspecified() {
			listener.Close()
			return nil, ErrorNotAdvertiseAddress
		}
		advertiseAddr = addr.String()
	}

	t := &TCPTransport{
		listener:   listener,
		advertise:  advertiseAddr,
		logger:     newIOLogger(logOutput),
		conns:      make(map[string]net.Conn),
		maxPool:    maxPool,
		timeout:    timeout,
		inbound:    make(chan types.Message, 256),
		lost:       make(chan PeerLost, 16),
		shutdownCh: make(chan struct{}),
	}

	go t.accept()
	return t, nil
}

// LocalAddress returns the address this transport advertises to peers.
func (t *TCPTransport) LocalAddress() string {
	return t.advertise
}

func (t *TCPTransport) accept() {
	for {
		conn, err := t.listener.Accept()
		if err != nil {
			select {
			case <-t.shutdownCh:
				return
			default:
				t.logger.Errorf("tcp transport accept failed: %v", err)
				return
			}
		}
		go t.handleConn(conn)
	}
}

func (t *TCPTransport) handleConn(conn net.Conn) {
	defer conn.Close()
	reader := bufio.NewReader(conn)
	for {
		frame, err := readFrame(reader)
		if err != nil {
			if err != io.EOF {
				t.logger.Debugf("tcp transport connection from %s closed: %v", conn.RemoteAddr(), err)
			}
			t.notifyLostFromAddr(conn.RemoteAddr().String())
			return
		}

		msg, err := types.Decode(frame)
		if err != nil {
			t.logger.Warnf("dropping malformed frame from %s: %v", conn.RemoteAddr(), err)
			continue
		}

		select {
		case t.inbound <- msg:
		case <-t.shutdownCh:
			return
		}
	}
}

// notifyLostFromAddr is best-effort: a TCP transport only learns a
// connection's remote address, which is not necessarily the same
// identity tuple a peer advertises (ephemeral client ports differ
// from the advertised listen port), so the reported identity may not
// match any peer in the table.
func (t *TCPTransport) notifyLostFromAddr(addr string) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return
	}
	ip := net.ParseIP(host)
	if ip == nil || ip.To4() == nil {
		return
	}
	var port uint64
	fmt.Sscanf(portStr, "%d", &port)
	id := types.Identity{IP: binary.BigEndian.Uint32(ip.To4()), Port: uint16(port)}
	select {
	case t.lost <- PeerLost{Peer: id}:
	case <-t.shutdownCh:
	default:
	}
}

func (t *TCPTransport) Send(peer types.Identity, msg types.Message) error {
	conn, err := t.dial(peer)
	if err != nil {
		return err
	}

	frame := types.Encode(msg)
	if err := writeFrame(conn, frame); err != nil {
		t.mu.Lock()
		delete(t.conns, peer.String())
		t.mu.Unlock()
		conn.Close()
		return err
	}
	return nil
}

func (t *TCPTransport) dial(peer types.Identity) (net.Conn, error) {
	addr := peer.String()

	t.mu.Lock()
	if conn, ok := t.conns[addr]; ok {
		t.mu.Unlock()
		return conn, nil
	}
	t.mu.Unlock()

	dialer := net.Dialer{Timeout: t.timeout}
	conn, err := dialer.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dmutex: dial %s: %w", addr, err)
	}

	t.mu.Lock()
	t.conns[addr] = conn
	t.mu.Unlock()
	return conn, nil
}

func (t *TCPTransport) Inbound() <-chan types.Message {
	return t.inbound
}

func (t *TCPTransport) Lost() <-chan PeerLost {
	return t.lost
}

func (t *TCPTransport) Close() error {
	t.shutdownMu.Lock()
	defer t.shutdownMu.Unlock()
	if t.shutdown {
		return nil
	}
	t.shutdown = true
	close(t.shutdownCh)

	t.mu.Lock()
	for _, conn := range t.conns {
		conn.Close()
	}
	t.mu.Unlock()

	return t.listener.Close()
}

func readFrame(r *bufio.Reader) ([]byte, error) {
	var lengthBytes [4]byte
	if _, err := io.ReadFull(r, lengthBytes[:]); err != nil {
		return nil, err
	}
	length := binary.BigEndian.Uint32(lengthBytes[:])
	if length > maxFrameSize {
		return nil, fmt.Errorf("%w: frame of %d bytes exceeds limit", types.ErrMalformedMessage, length)
	}
	frame := make([]byte, length)
	if _, err := io.ReadFull(r, frame); err != nil {
		return nil, err
	}
	return frame, nil
}

func writeFrame(w io.Writer, frame []byte) error {
	var lengthBytes [4]byte
	binary.BigEndian.PutUint32(lengthBytes[:], uint32(len(frame)))
	if _, err := w.Write(lengthBytes[:]); err != nil {
		return err
	}
	_, err := w.Write(frame)
	return err
}
