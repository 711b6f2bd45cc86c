package storage

import (
	"context"
	"fmt"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(":memory:")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return store
}

func appendEntry(t *testing.T, store *Store, room, key, payload string) {
	t.Helper()
	if err := store.AppendBroadcast(context.Background(), room, key, []byte(payload)); err != nil {
		t.Fatalf("AppendBroadcast(%s, %s): %v", room, key, err)
	}
}

func TestAppendAndListBroadcasts(t *testing.T) {
	store := newTestStore(t)
	for i := 0; i < 5; i++ {
		appendEntry(t, store, "room-a", fmt.Sprintf("%011d-%06d", 1700000000+i, 0), fmt.Sprintf("payload-%d", i))
	}

	entries, err := store.LastBroadcasts(context.Background(), "room-a", 3)
	if err != nil {
		t.Fatalf("LastBroadcasts: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}
	// newest first
	for i, want := range []string{"payload-4", "payload-3", "payload-2"} {
		if string(entries[i].Payload) != want {
			t.Fatalf("entry %d: got %q, want %q", i, entries[i].Payload, want)
		}
	}
}

func TestLastBroadcastsScopedByRoom(t *testing.T) {
	store := newTestStore(t)
	appendEntry(t, store, "room-a", "00001700000000-000000", "a")
	appendEntry(t, store, "room-b", "00001700000000-000000", "b")

	entries, err := store.LastBroadcasts(context.Background(), "room-a", 10)
	if err != nil {
		t.Fatalf("LastBroadcasts: %v", err)
	}
	if len(entries) != 1 || string(entries[0].Payload) != "a" {
		t.Fatalf("unexpected entries: %#v", entries)
	}
}

func TestLastBroadcastsEmptyRoom(t *testing.T) {
	store := newTestStore(t)
	entries, err := store.LastBroadcasts(context.Background(), "nobody-here", 10)
	if err != nil {
		t.Fatalf("LastBroadcasts: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no entries, got %#v", entries)
	}
}

func TestAppendUpsertsSameKey(t *testing.T) {
	store := newTestStore(t)
	appendEntry(t, store, "room-a", "00001700000000-000000", "first")
	appendEntry(t, store, "room-a", "00001700000000-000000", "second")

	entries, err := store.LastBroadcasts(context.Background(), "room-a", 10)
	if err != nil {
		t.Fatalf("LastBroadcasts: %v", err)
	}
	if len(entries) != 1 || string(entries[0].Payload) != "second" {
		t.Fatalf("upsert should keep the last write: %#v", entries)
	}
}

func TestSequenceSuffixOrdersWithinSecond(t *testing.T) {
	store := newTestStore(t)
	// insert out of order; lexicographic key order must win
	appendEntry(t, store, "room-a", "00001700000000-000001", "mid")
	appendEntry(t, store, "room-a", "00001700000000-000000", "old")
	appendEntry(t, store, "room-a", "00001700000000-000002", "new")

	entries, err := store.LastBroadcasts(context.Background(), "room-a", 10)
	if err != nil {
		t.Fatalf("LastBroadcasts: %v", err)
	}
	for i, want := range []string{"new", "mid", "old"} {
		if string(entries[i].Payload) != want {
			t.Fatalf("entry %d: got %q, want %q", i, entries[i].Payload, want)
		}
	}
}

func TestBuildDSN(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"chat.db", "file:chat.db?_pragma=busy_timeout=5000&_pragma=foreign_keys=ON"},
		{"sqlite://chat.db", "chat.db?_pragma=busy_timeout=5000&_pragma=foreign_keys=ON"},
		{"file:chat.db?cache=shared", "file:chat.db?cache=shared&_pragma=busy_timeout=5000&_pragma=foreign_keys=ON"},
	}
	for _, tc := range cases {
		if got := buildDSN(tc.in); got != tc.want {
			t.Errorf("buildDSN(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
