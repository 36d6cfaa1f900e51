package types

import "testing"

func TestCallbackList_FiresInRegistrationOrder(t *testing.T) {
	var list CallbackList
	var order []int

	list.Register(func(Event) { order = append(order, 1) })
	list.Register(func(Event) { order = append(order, 2) })
	list.Register(func(Event) { order = append(order, 3) })

	list.Fire(Event{Mutex: "lock-a"})

	want := []int{1, 2, 3}
	if len(order) != len(want) {
		t.Fatalf("expected %d calls, got %d", len(want), len(order))
	}
	for i, v := range want {
		if order[i] != v {
			t.Errorf("call %d: expected %d, got %d", i, v, order[i])
		}
	}
}

func TestCallbackList_IgnoresNilRegistration(t *testing.T) {
	var list CallbackList
	list.Register(nil)
	if list.Len() != 0 {
		t.Fatalf("expected nil registration to be ignored, got Len %d", list.Len())
	}
}

func TestCallbackList_FirePassesEventThrough(t *testing.T) {
	var list CallbackList
	var got Event
	list.Register(func(e Event) { got = e })

	want := Event{Mutex: "lock-a", Peer: Identity{IP: 1, Port: 2}}
	list.Fire(want)

	if got != want {
		t.Errorf("expected event %+v, got %+v", want, got)
	}
}

func TestState_String(t *testing.T) {
	cases := map[State]string{
		Available:    "Available",
		Requesting:   "Requesting",
		Ours:         "Ours",
		HeldRemotely: "HeldRemotely",
	}
	for s, want := range cases {
		if got := s.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", s, got, want)
		}
	}
}
