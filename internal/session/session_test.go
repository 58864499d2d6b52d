package session

import (
	"errors"
	"testing"
)

const admin = int64(1000)

func TestFlushWhileIdle(t *testing.T) {
	t.Parallel()
	m := NewManager()

	if _, err := m.Flush(admin); !errors.Is(err, ErrNoSession) {
		t.Fatalf("Flush on idle session: err = %v, want ErrNoSession", err)
	}
	if m.Active(admin) {
		t.Fatal("session became active after failed flush")
	}
}

func TestFlushEmptyBufferKeepsCollecting(t *testing.T) {
	t.Parallel()
	m := NewManager()
	m.Begin(admin)

	if _, err := m.Flush(admin); !errors.Is(err, ErrNoMessages) {
		t.Fatalf("Flush on empty buffer: err = %v, want ErrNoMessages", err)
	}
	if !m.Active(admin) {
		t.Fatal("empty flush must leave the session collecting")
	}
}

func TestAppendOrderAndFlush(t *testing.T) {
	t.Parallel()
	m := NewManager()
	m.Begin(admin)

	msgs := []Message{
		Text("A"),
		Photo("file-1", "cap"),
		Video("file-2", ""),
		Document("file-3", "doc"),
		Text("B"),
	}
	for i, msg := range msgs {
		n, ok := m.Append(admin, msg)
		if !ok {
			t.Fatalf("Append #%d rejected", i)
		}
		if n != i+1 {
			t.Fatalf("Append #%d: buffer length = %d, want %d", i, n, i+1)
		}
	}

	got, err := m.Flush(admin)
	if err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if len(got) != len(msgs) {
		t.Fatalf("flushed %d messages, want %d", len(got), len(msgs))
	}
	for i := range msgs {
		if got[i] != msgs[i] {
			t.Fatalf("message %d = %+v, want %+v (insertion order)", i, got[i], msgs[i])
		}
	}

	if m.Active(admin) {
		t.Fatal("session still active after successful flush")
	}
	if _, err := m.Flush(admin); !errors.Is(err, ErrNoSession) {
		t.Fatalf("second flush: err = %v, want ErrNoSession", err)
	}
}

func TestBeginResetsBuffer(t *testing.T) {
	t.Parallel()
	m := NewManager()

	m.Begin(admin)
	m.Append(admin, Text("stale"))

	// Re-entering collection mode is accepted and clears prior contents.
	m.Begin(admin)
	if !m.Active(admin) {
		t.Fatal("session not active after Begin")
	}
	n, ok := m.Append(admin, Text("fresh"))
	if !ok || n != 1 {
		t.Fatalf("Append after re-Begin: n = %d ok = %v, want 1 true", n, ok)
	}

	got, err := m.Flush(admin)
	if err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if len(got) != 1 || got[0].Body != "fresh" {
		t.Fatalf("buffer = %+v, want only the post-reset message", got)
	}
}

func TestAppendWhileIdleIsNoOp(t *testing.T) {
	t.Parallel()
	m := NewManager()

	if n, ok := m.Append(admin, Text("drop me")); ok || n != 0 {
		t.Fatalf("Append on idle session: n = %d ok = %v, want 0 false", n, ok)
	}
}

func TestSessionsAreIndependentPerAdmin(t *testing.T) {
	t.Parallel()
	m := NewManager()

	m.Begin(admin)
	m.Append(admin, Text("mine"))

	other := int64(2000)
	if m.Active(other) {
		t.Fatal("unrelated identity sees an active session")
	}
	if _, err := m.Flush(other); !errors.Is(err, ErrNoSession) {
		t.Fatalf("flush for other identity: err = %v, want ErrNoSession", err)
	}

	got, err := m.Flush(admin)
	if err != nil || len(got) != 1 {
		t.Fatalf("admin flush disturbed by other identity: msgs = %v err = %v", got, err)
	}
}
