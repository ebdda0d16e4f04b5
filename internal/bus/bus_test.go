package bus

import (
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("message.", 10)
	defer unsub()

	b.Publish(Event{Kind: "message.upserted", Timestamp: time.Now()})

	select {
	case evt := <-ch:
		if evt.Kind != "message.upserted" {
			t.Errorf("kind = %q, want message.upserted", evt.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestNamespaceFiltering(t *testing.T) {
	b := New()
	msgCh, unsub1 := b.Subscribe("message.", 10)
	defer unsub1()
	roomCh, unsub2 := b.Subscribe("room.", 10)
	defer unsub2()

	b.Publish(Event{Kind: "room.updated"})

	select {
	case <-roomCh:
	case <-time.After(time.Second):
		t.Fatal("room subscriber did not receive room.updated")
	}

	select {
	case evt := <-msgCh:
		t.Errorf("message subscriber received %q", evt.Kind)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestEmptyNamespaceReceivesAll(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("", 10)
	defer unsub()

	b.Publish(Event{Kind: "session.status_changed"})
	b.Publish(Event{Kind: "message.upserted"})

	for i := 0; i < 2; i++ {
		select {
		case <-ch:
		case <-time.After(time.Second):
			t.Fatalf("missing event %d", i)
		}
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("message.", 10)
	unsub()

	b.Publish(Event{Kind: "message.upserted"})

	select {
	case <-ch:
		t.Error("received event after unsubscribe")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestFullSubscriberDoesNotBlockPublish(t *testing.T) {
	b := New()
	_, unsub := b.Subscribe("message.", 1)
	defer unsub()

	done := make(chan struct{})
	go func() {
		// Second publish must not block even though the buffer is full.
		b.Publish(Event{Kind: "message.upserted"})
		b.Publish(Event{Kind: "message.upserted"})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on full subscriber")
	}
}
