package types

import "testing"

func TestParseIdentity(t *testing.T) {
	id, err := ParseIdentity("1.2.3.4:100")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id.IP != 0x01020304 {
		t.Errorf("expected ip 0x01020304, got 0x%08x", id.IP)
	}
	if id.Port != 100 {
		t.Errorf("expected port 100, got %d", id.Port)
	}
	if id.String() != "1.2.3.4:100" {
		t.Errorf("expected round-trip string 1.2.3.4:100, got %s", id.String())
	}
}

func TestParseIdentity_InvalidAddress(t *testing.T) {
	if _, err := ParseIdentity("not-an-address"); err == nil {
		t.Fatal("expected an error for a malformed address")
	}
}

func TestIdentity_Less(t *testing.T) {
	a := Identity{IP: 0x01020304, Port: 100}
	b := Identity{IP: 0x05060708, Port: 200}

	if !a.Less(b) {
		t.Error("expected a < b by IP")
	}
	if b.Less(a) {
		t.Error("expected b to not be less than a")
	}

	c := Identity{IP: 0x01020304, Port: 50}
	if !c.Less(a) {
		t.Error("expected tiebreak to fall through to port when IPs match")
	}
}

func TestIdentity_Equal(t *testing.T) {
	a := Identity{IP: 1, Port: 2}
	b := Identity{IP: 1, Port: 2}
	c := Identity{IP: 1, Port: 3}

	if !a.Equal(b) {
		t.Error("expected equal identities to compare equal")
	}
	if a.Equal(c) {
		t.Error("expected different ports to compare unequal")
	}
}
