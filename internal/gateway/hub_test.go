package gateway

import (
	"encoding/json"
	"testing"
)

func addTestClient(h *Hub, buf int) *Client {
	c := &Client{send: make(chan []byte, buf), hub: h}
	h.mu.Lock()
	h.clients[c] = true
	h.mu.Unlock()
	return c
}

func TestHub_BroadcastDeliversEnvelope(t *testing.T) {
	h := NewHub()
	c := addTestClient(h, 4)

	h.BroadcastRun([]byte(`{"run_id":"abc"}`))

	select {
	case msg := <-c.send:
		var env RunEnvelope
		if err := json.Unmarshal(msg, &env); err != nil {
			t.Fatalf("bad envelope: %v", err)
		}
		if env.Type != "run_result" {
			t.Errorf("envelope type = %q, want run_result", env.Type)
		}
		var body struct {
			RunID string `json:"run_id"`
		}
		if err := json.Unmarshal(env.Data, &body); err != nil || body.RunID != "abc" {
			t.Errorf("envelope data = %s", env.Data)
		}
	default:
		t.Fatal("no message delivered")
	}
}

func TestHub_SlowClientDoesNotBlockBroadcast(t *testing.T) {
	h := NewHub()
	slow := addTestClient(h, 1)
	fast := addTestClient(h, 4)

	// Fill the slow client's buffer.
	slow.send <- []byte("stale")

	h.BroadcastRun([]byte(`{"run_id":"r1"}`))

	if len(fast.send) != 1 {
		t.Errorf("fast client queued %d messages, want 1", len(fast.send))
	}
	// The slow client kept only its stale message; the broadcast was dropped.
	if len(slow.send) != 1 {
		t.Errorf("slow client queued %d messages, want 1", len(slow.send))
	}
}

func TestHub_LateJoinerGetsLatestRun(t *testing.T) {
	h := NewHub()
	h.BroadcastRun([]byte(`{"run_id":"r2"}`))

	c := addTestClient(h, 4)
	c.sendInitialState()

	select {
	case msg := <-c.send:
		var env RunEnvelope
		if err := json.Unmarshal(msg, &env); err != nil || env.Type != "run_result" {
			t.Fatalf("initial state = %s", msg)
		}
	default:
		t.Fatal("late joiner got no initial state")
	}
}

func TestHub_RemoveClient(t *testing.T) {
	h := NewHub()
	c := addTestClient(h, 1)

	h.RemoveClient(c)
	if n := h.ClientCount(); n != 0 {
		t.Errorf("client count = %d, want 0", n)
	}
	if _, open := <-c.send; open {
		t.Error("send channel still open after removal")
	}
	// A second removal of the same client must not panic.
	h.RemoveClient(c)
}
