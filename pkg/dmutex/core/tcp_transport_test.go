package core

import (
	"net"
	"os"
	"testing"
	"time"

	"github.com/rgsilva/dmutex/pkg/dmutex/types"
)

func TestTCPTransport_BadAddress(t *testing.T) {
	_, err := NewTCPTransport("0.0.0.0:0", nil, 1, 0, os.Stdout)
	if err != ErrorNotAdvertiseAddress {
		t.Fatalf("err: %v", err)
	}
}

func TestTCPTransport_WithAdvertiseAddress(t *testing.T) {
	addr := &net.TCPAddr{
		IP:   []byte{127, 0, 0, 1},
		Port: 56700,
	}
	trans, err := NewTCPTransport("0.0.0.0:0", addr, 1, 0, os.Stdout)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	defer trans.Close()
	if trans.LocalAddress() != "127.0.0.1:56700" {
		t.Fatalf("not advertised: %s", trans.LocalAddress())
	}
}

func TestTCPTransport_SendAndReceive(t *testing.T) {
	a, err := NewTCPTransport("127.0.0.1:0", nil, 1, 0, os.Stdout)
	if err != nil {
		t.Fatalf("starting transport a: %v", err)
	}
	defer a.Close()

	b, err := NewTCPTransport("127.0.0.1:0", nil, 1, 0, os.Stdout)
	if err != nil {
		t.Fatalf("starting transport b: %v", err)
	}
	defer b.Close()

	identA, err := types.ParseIdentity(a.LocalAddress())
	if err != nil {
		t.Fatalf("parsing a's local address: %v", err)
	}
	identB, err := types.ParseIdentity(b.LocalAddress())
	if err != nil {
		t.Fatalf("parsing b's local address: %v", err)
	}

	msg := types.NewRequest("lock-a", identA)
	if err := a.Send(identB, msg); err != nil {
		t.Fatalf("sending a -> b: %v", err)
	}

	select {
	case got := <-b.Inbound():
		if got.Name != msg.Name || got.Type != msg.Type {
			t.Fatalf("unexpected message received: %+v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for b to receive a's message")
	}
}
