package hub_test

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/warroomlabs/warroom/internal/events"
	"github.com/warroomlabs/warroom/internal/hub"
)

// noKeepalive disables idle pings so delivery tests see only published
// messages.
const noKeepalive = -1

func TestLateJoinerSeesOnlySuffix(t *testing.T) {
	h := hub.New(hub.Options{KeepaliveInterval: noKeepalive})
	defer h.Close()

	// Published before the subscriber joins; must never be delivered.
	h.Publish(events.New("ChairAgent", "msg-0", events.KindSpeech))
	h.Publish(events.New("ChairAgent", "msg-1", events.KindSpeech))

	id, ch := h.Subscribe()
	defer h.Unsubscribe(id)

	for i := 2; i < 5; i++ {
		h.Publish(events.New("ChairAgent", fmt.Sprintf("msg-%d", i), events.KindSpeech))
	}

	for i := 2; i < 5; i++ {
		select {
		case m := <-ch:
			want := fmt.Sprintf("msg-%d", i)
			if m.Text != want {
				t.Fatalf("message %d: got %q want %q", i, m.Text, want)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for msg-%d", i)
		}
	}
	select {
	case m := <-ch:
		t.Fatalf("unexpected extra message: %q", m.Text)
	default:
	}
}

func TestSlowSubscriberDropsItsOwnOldest(t *testing.T) {
	h := hub.New(hub.Options{QueueSize: 4, KeepaliveInterval: noKeepalive})
	defer h.Close()

	slowID, slow := h.Subscribe()
	defer h.Unsubscribe(slowID)
	fastID, fast := h.Subscribe()
	defer h.Unsubscribe(fastID)

	// The fast subscriber drains continuously while the slow one stalls.
	var fastGot []string
	fastDone := make(chan struct{})
	go func() {
		defer close(fastDone)
		for m := range fast {
			fastGot = append(fastGot, m.Text)
			if len(fastGot) == 10 {
				return
			}
		}
	}()

	for i := 0; i < 10; i++ {
		h.Publish(events.New("a", fmt.Sprintf("msg-%d", i), events.KindSpeech))
		time.Sleep(time.Millisecond)
	}

	select {
	case <-fastDone:
	case <-time.After(2 * time.Second):
		t.Fatalf("fast subscriber stalled by slow one: got %d of 10", len(fastGot))
	}
	for i, text := range fastGot {
		if want := fmt.Sprintf("msg-%d", i); text != want {
			t.Errorf("fast subscriber message %d: got %q want %q", i, text, want)
		}
	}

	// The slow subscriber lost only its oldest messages; what remains is
	// still a suffix in publish order.
	var got []string
	for len(slow) > 0 {
		got = append(got, (<-slow).Text)
	}
	if len(got) != 4 {
		t.Fatalf("slow subscriber: got %d messages, want 4", len(got))
	}
	for i, text := range got {
		if want := fmt.Sprintf("msg-%d", 6+i); text != want {
			t.Errorf("slow subscriber message %d: got %q want %q", i, text, want)
		}
	}
}

func TestConcurrentSubscribePublishUnsubscribe(t *testing.T) {
	h := hub.New(hub.Options{KeepaliveInterval: noKeepalive})
	defer h.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				id, ch := h.Subscribe()
				h.Publish(events.New("a", "x", events.KindSpeech))
				// Drain whatever arrived for this handle.
				for len(ch) > 0 {
					<-ch
				}
				h.Unsubscribe(id)
			}
		}()
	}
	wg.Wait()

	if n := h.Subscribers(); n != 0 {
		t.Errorf("expected 0 subscribers after churn, got %d", n)
	}
}

func TestKeepalivePingOnIdleSubscriber(t *testing.T) {
	h := hub.New(hub.Options{KeepaliveInterval: 20 * time.Millisecond})
	defer h.Close()

	id, ch := h.Subscribe()
	defer h.Unsubscribe(id)

	select {
	case m := <-ch:
		if m.Type != "ping" {
			t.Fatalf("expected ping, got %+v", m)
		}
	case <-time.After(time.Second):
		t.Fatal("no keepalive ping within 1s")
	}
}

func TestKeepaliveSuppressedByTraffic(t *testing.T) {
	h := hub.New(hub.Options{KeepaliveInterval: 50 * time.Millisecond})
	defer h.Close()

	id, ch := h.Subscribe()
	defer h.Unsubscribe(id)

	// Publish more often than the keepalive interval; no ping should slip
	// in between real messages.
	deadline := time.Now().Add(200 * time.Millisecond)
	for time.Now().Before(deadline) {
		h.Publish(events.New("a", "traffic", events.KindSpeech))
		time.Sleep(10 * time.Millisecond)
	}

	for len(ch) > 0 {
		if m := <-ch; m.Type == "ping" {
			t.Fatal("received ping despite steady traffic")
		}
	}
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	h := hub.New(hub.Options{KeepaliveInterval: noKeepalive})
	defer h.Close()

	id, _ := h.Subscribe()
	h.Unsubscribe(id)
	h.Unsubscribe(id)

	// Publishing after unsubscribe must not panic or deliver.
	h.Publish(events.New("a", "x", events.KindSpeech))
	if n := h.Subscribers(); n != 0 {
		t.Errorf("expected 0 subscribers, got %d", n)
	}
}
