package realtime

import (
	"testing"

	"github.com/iliyamo/car-marketplace/internal/logging"
)

func TestHubDeliver(t *testing.T) {
	h := NewHub(logging.Discard())
	a := &client{id: "a", userID: 1, send: make(chan []byte, 1)}
	b := &client{id: "b", userID: 1, send: make(chan []byte, 1)}
	h.add(a)
	h.add(b)

	if n := h.Deliver(1, []byte("one")); n != 2 {
		t.Fatalf("delivered to %d connections, want 2", n)
	}
	// buffers are full now
	if n := h.Deliver(1, []byte("two")); n != 0 {
		t.Fatalf("full buffers accepted %d frames", n)
	}
	if n := h.Deliver(2, []byte("x")); n != 0 {
		t.Fatal("delivered to an empty room")
	}
	if !h.remove(a) || h.remove(a) {
		t.Fatal("remove should succeed exactly once")
	}
	if !h.has(b) || h.has(a) {
		t.Fatal("membership wrong after remove")
	}
}
