package core

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestPresenceSingleOnlineBroadcastForTwoHandles(t *testing.T) {
	ctx := context.Background()
	st := newMemStore()
	reg := NewRegistry()
	presence := NewPresenceTracker(reg, st, testLogger())

	watcher := NewClient("w1", "watcher", "watcher")
	presence.HandleConnect(ctx, watcher)
	mustEvent(t, watcher, EventUserStatus) // watcher's own online event

	phone := NewClient("c1", "alice", "alice")
	laptop := NewClient("c2", "alice", "alice")
	presence.HandleConnect(ctx, phone)
	presence.HandleConnect(ctx, laptop)

	ev := mustEvent(t, watcher, EventUserStatus)
	if ev.UserID != "alice" || !ev.IsOnline {
		t.Fatalf("unexpected presence event: %+v", ev)
	}
	noEvent(t, watcher, EventUserStatus)

	if !st.isOnline("alice") {
		t.Fatal("online flag not persisted")
	}
}

func TestPresenceOfflineOnlyOnLastHandle(t *testing.T) {
	ctx := context.Background()
	st := newMemStore()
	reg := NewRegistry()
	presence := NewPresenceTracker(reg, st, testLogger())

	watcher := NewClient("w1", "watcher", "watcher")
	presence.HandleConnect(ctx, watcher)
	mustEvent(t, watcher, EventUserStatus)

	phone := NewClient("c1", "alice", "alice")
	laptop := NewClient("c2", "alice", "alice")
	presence.HandleConnect(ctx, phone)
	presence.HandleConnect(ctx, laptop)
	mustEvent(t, watcher, EventUserStatus)

	if presence.HandleDisconnect(ctx, phone) {
		t.Fatal("non-last handle must not report offline")
	}
	noEvent(t, watcher, EventUserStatus)

	if !presence.HandleDisconnect(ctx, laptop) {
		t.Fatal("last handle must report offline")
	}
	ev := mustEvent(t, watcher, EventUserStatus)
	if ev.UserID != "alice" || ev.IsOnline {
		t.Fatalf("expected offline broadcast, got %+v", ev)
	}
	noEvent(t, watcher, EventUserStatus)

	// Duplicate close signal for an already-removed handle.
	if presence.HandleDisconnect(ctx, laptop) {
		t.Fatal("duplicate disconnect must be a no-op")
	}
	noEvent(t, watcher, EventUserStatus)

	if st.isOnline("alice") {
		t.Fatal("offline flag not persisted")
	}
}

// A reconnect racing a slow disconnect must still publish transitions in
// order: the disconnect's offline write may be in flight when the new
// connection arrives, and the final word has to be online.
func TestPresenceReconnectDuringSlowDisconnect(t *testing.T) {
	ctx := context.Background()
	st := newMemStore()
	reg := NewRegistry()

	offlineStarted := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	st.setOnlineHook = func(id string, online bool) {
		if id == "alice" && !online {
			once.Do(func() {
				close(offlineStarted)
				<-release
			})
		}
	}
	presence := NewPresenceTracker(reg, st, testLogger())

	watcher := NewClient("w1", "watcher", "watcher")
	presence.HandleConnect(ctx, watcher)

	first := NewClient("c1", "alice", "alice")
	presence.HandleConnect(ctx, first)

	disconnected := make(chan struct{})
	go func() {
		presence.HandleDisconnect(ctx, first)
		close(disconnected)
	}()
	<-offlineStarted

	// Page refresh: the new connection shows up while the offline write for
	// the old one is still blocked inside the store.
	second := NewClient("c2", "alice", "alice")
	reconnected := make(chan struct{})
	go func() {
		presence.HandleConnect(ctx, second)
		close(reconnected)
	}()

	time.Sleep(50 * time.Millisecond)
	close(release)
	<-disconnected
	<-reconnected

	if len(reg.Lookup("alice")) != 1 {
		t.Fatal("alice must be reachable through the new connection")
	}
	if !st.isOnline("alice") {
		t.Fatal("persisted flag must say online after the reconnect")
	}

	var final *Event
	for drained := false; !drained; {
		select {
		case ev := <-watcher.Events():
			if ev.Kind == EventUserStatus && ev.UserID == "alice" {
				final = ev
			}
		default:
			drained = true
		}
	}
	if final == nil {
		t.Fatal("watcher saw no presence events for alice")
	}
	if !final.IsOnline {
		t.Fatal("last broadcast says offline while alice is reachable")
	}
}
