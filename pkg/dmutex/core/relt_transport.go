package core

import (
	"context"
	"encoding/json"

	"github.com/jabolina/relt/pkg/relt"
	"github.com/rgsilva/dmutex/pkg/dmutex/types"
)

// ReltTransport is a Transport backed by github.com/jabolina/relt's
// reliable group exchange. Every peer sharing a mutex name joins the
// same relt exchange group and receives every message broadcast to
// it; Grant/Deny addressing is resolved by having peers silently
// discard responses not addressed to their own identity, so a group
// broadcast is a correct backing for the unicast-shaped Send call.
//
// relt's group-exchange API does not expose per-connection lifecycle,
// so unlike TCPTransport this transport never produces a PeerLost
// notification; Lost() returns a channel that is simply never
// written to. Callers that need peer-loss detection should use
// TCPTransport instead.
type ReltTransport struct {
	log      types.Logger
	relt     *relt.Relt
	inbound  chan types.Message
	lost     chan PeerLost
	context  context.Context
	finish   context.CancelFunc
	exchange string
}

// NewReltTransport joins the relt exchange group named by mutexName,
// using identity's rendered address as this instance's relt peer name.
func NewReltTransport(mutexName string, identity types.Identity, log types.Logger) (*ReltTransport, error) {
	conf := relt.DefaultReltConfiguration()
	conf.Name = identity.String()
	conf.Exchange = relt.GroupAddress(mutexName)

	r, err := relt.NewRelt(*conf)
	if err != nil {
		return nil, err
	}

	ctx, done := context.WithCancel(context.Background())
	t := &ReltTransport{
		log:      log,
		relt:     r,
		inbound:  make(chan types.Message, 256),
		lost:     make(chan PeerLost),
		context:  ctx,
		finish:   done,
		exchange: mutexName,
	}

	go t.poll()
	return t, nil
}

func (t *ReltTransport) Send(_ types.Identity, msg types.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		t.log.Errorf("relt transport: failed marshalling %#v: %v", msg, err)
		return err
	}

	send := relt.Send{
		Address: relt.GroupAddress(t.exchange),
		Data:    data,
	}
	return t.relt.Broadcast(t.context, send)
}

func (t *ReltTransport) Inbound() <-chan types.Message {
	return t.inbound
}

func (t *ReltTransport) Lost() <-chan PeerLost {
	return t.lost
}

// LocalAddress returns the relt exchange name (the mutex name), not a
// "host:port" address.
func (t *ReltTransport) LocalAddress() string {
	return t.exchange
}

func (t *ReltTransport) Close() error {
	t.finish()
	return t.relt.Close()
}

// poll keeps reading from the underlying relt consumer until the
// transport context is cancelled, parsing each payload and forwarding
// it to Inbound().
func (t *ReltTransport) poll() {
	listener, err := t.relt.Consume()
	if err != nil {
		t.log.Errorf("relt transport: failed starting consumer: %v", err)
		return
	}

	for {
		select {
		case <-t.context.Done():
			return
		case recv, ok := <-listener:
			if !ok {
				return
			}
			t.consume(recv.Origin, relt.Recv{
				Data:  recv.Data,
				Error: recv.Error,
			})
		}
	}
}

func (t *ReltTransport) consume(origin string, recv relt.Recv) {
	if recv.Error != nil {
		t.log.Errorf("relt transport: consume error from %s: %v", origin, recv.Error)
		return
	}
	if recv.Data == nil {
		return
	}

	var msg types.Message
	if err := json.Unmarshal(recv.Data, &msg); err != nil {
		t.log.Errorf("relt transport: failed unmarshalling message: %v", err)
		return
	}

	select {
	case t.inbound <- msg:
	case <-t.context.Done():
	}
}
