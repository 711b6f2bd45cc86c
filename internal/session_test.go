package internal

import (
	"errors"
	"testing"
)

func TestSessionStartsPreparing(t *testing.T) {
	session := NewSession()
	if session.Active() {
		t.Fatal("new session should be preparing")
	}
	if len(session.Queue()) != 0 {
		t.Fatalf("new session queue should be empty, got %d", len(session.Queue()))
	}
}

func TestSessionEnqueueOrder(t *testing.T) {
	session := NewSession()
	first := MemberJoined{Joined: "alice"}
	second := Broadcast{Name: "alice", Message: "hi", Timestamp: 1}
	if err := session.Enqueue(first); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if err := session.Enqueue(second); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	queue := session.Queue()
	if len(queue) != 2 || queue[0] != Message(first) || queue[1] != Message(second) {
		t.Fatalf("unexpected queue: %#v", queue)
	}
}

func TestSessionActivate(t *testing.T) {
	session := NewSession()
	if err := session.Enqueue(MemberJoined{Joined: "alice"}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if err := session.Activate("bob"); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	if !session.Active() || session.Username() != "bob" {
		t.Fatalf("unexpected state: active=%v username=%q", session.Active(), session.Username())
	}
	if len(session.Queue()) != 0 {
		t.Fatal("activation should discard the queue")
	}
}

func TestSessionActivateTwice(t *testing.T) {
	session := NewSession()
	if err := session.Activate("bob"); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	if err := session.Activate("carol"); !errors.Is(err, ErrAlreadyActive) {
		t.Fatalf("expected ErrAlreadyActive, got %v", err)
	}
	if session.Username() != "bob" {
		t.Fatalf("username changed on failed activation: %q", session.Username())
	}
}

func TestSessionEnqueueAfterActivate(t *testing.T) {
	session := NewSession()
	if err := session.Activate("bob"); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	if err := session.Enqueue(Text{Message: "hi"}); !errors.Is(err, ErrNotPreparing) {
		t.Fatalf("expected ErrNotPreparing, got %v", err)
	}
}

func TestRestoredSession(t *testing.T) {
	session := RestoredSession("alice")
	if !session.Active() || session.Username() != "alice" {
		t.Fatalf("unexpected restored state: active=%v username=%q", session.Active(), session.Username())
	}
	if len(session.Queue()) != 0 {
		t.Fatal("restored session must have an empty queue")
	}
}
