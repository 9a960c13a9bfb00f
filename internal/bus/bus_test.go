package bus

import (
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("chat.", 10)
	defer unsub()

	b.Publish(Event{Kind: "chat.selected", Timestamp: time.Now(), Payload: "c1"})

	select {
	case evt := <-ch:
		if evt.Kind != "chat.selected" {
			t.Errorf("got kind %q, want chat.selected", evt.Kind)
		}
		if evt.Payload != "c1" {
			t.Errorf("got payload %v, want c1", evt.Payload)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestNamespaceFiltering(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("transport.", 10)
	defer unsub()

	b.Publish(Event{Kind: "chat.selected"})
	b.Publish(Event{Kind: "transport.connected"})

	select {
	case evt := <-ch:
		if evt.Kind != "transport.connected" {
			t.Errorf("got kind %q, want transport.connected", evt.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}

	// Ensure chat event was not delivered.
	select {
	case evt := <-ch:
		t.Errorf("unexpected event: %v", evt)
	case <-time.After(50 * time.Millisecond):
		// Expected: no more events.
	}
}

func TestUnsubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("chat.", 10)
	unsub()

	b.Publish(Event{Kind: "chat.selected"})

	select {
	case evt := <-ch:
		t.Errorf("received event after unsubscribe: %v", evt)
	case <-time.After(50 * time.Millisecond):
		// Expected.
	}
}

func TestDropOnFullBuffer(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("test.", 1)
	defer unsub()

	// Fill buffer.
	b.Publish(Event{Kind: "test.one"})
	// This should be dropped (non-blocking).
	b.Publish(Event{Kind: "test.two"})

	evt := <-ch
	if evt.Kind != "test.one" {
		t.Errorf("got %q, want test.one", evt.Kind)
	}
}

func TestEmitStampsTime(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("chat.", 1)
	defer unsub()

	before := time.Now()
	b.Emit(ChatRefresh, nil)

	evt := <-ch
	if evt.Kind != ChatRefresh {
		t.Errorf("got kind %q, want %q", evt.Kind, ChatRefresh)
	}
	if evt.Timestamp.Before(before) {
		t.Errorf("timestamp %v is before emit time %v", evt.Timestamp, before)
	}
}
