package core

import "testing"

func TestRegistryTransitions(t *testing.T) {
	reg := NewRegistry()

	first := NewClient("c1", "alice", "alice")
	second := NewClient("c2", "alice", "alice")

	if !reg.Register(first) {
		t.Fatal("first handle should bring the user online")
	}
	if reg.Register(second) {
		t.Fatal("second handle must not report a fresh online transition")
	}
	if reg.Register(second) {
		t.Fatal("re-registering the same handle must be a no-op")
	}

	if got := len(reg.Lookup("alice")); got != 2 {
		t.Fatalf("expected 2 handles, got %d", got)
	}
	if !reg.Reachable("alice") {
		t.Fatal("alice should be reachable")
	}

	if reg.Unregister(first) {
		t.Fatal("removing a non-last handle must not report offline")
	}
	if !reg.Unregister(second) {
		t.Fatal("removing the last handle must report offline")
	}
	if reg.Unregister(second) {
		t.Fatal("duplicate unregister must not double-count")
	}

	if reg.Reachable("alice") {
		t.Fatal("alice should be unreachable after last handle removed")
	}
	if got := len(reg.Lookup("alice")); got != 0 {
		t.Fatalf("expected no handles, got %d", got)
	}
}

func TestRegistryLookupUnknownUser(t *testing.T) {
	reg := NewRegistry()
	if handles := reg.Lookup("ghost"); len(handles) != 0 {
		t.Fatalf("lookup of unknown user must be empty, got %d", len(handles))
	}
	if reg.Reachable("ghost") {
		t.Fatal("unknown user must be unreachable")
	}
}

func TestRegistrySendToUserReachesAllHandles(t *testing.T) {
	reg := NewRegistry()

	phone := NewClient("c1", "bob", "bob")
	laptop := NewClient("c2", "bob", "bob")
	reg.Register(phone)
	reg.Register(laptop)

	reg.SendToUser("bob", &Event{Kind: EventUserStatus, UserID: "alice", IsOnline: true})

	for _, c := range []*Client{phone, laptop} {
		ev := mustEvent(t, c, EventUserStatus)
		if ev.UserID != "alice" || !ev.IsOnline {
			t.Fatalf("unexpected event: %+v", ev)
		}
	}
}

func TestClientSendAfterCloseIsDropped(t *testing.T) {
	c := NewClient("c1", "alice", "alice")
	c.Close()
	c.Close() // double close must be safe

	// Send on a stale handle must neither panic nor block.
	c.send(&Event{Kind: EventUserStatus})
}
