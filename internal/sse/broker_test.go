package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/starford/askwiki/internal/reload"
)

func recv(t *testing.T, ch chan []byte) string {
	t.Helper()
	select {
	case msg := <-ch:
		return string(msg)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
		return ""
	}
}

func drain(ch chan []byte) []string {
	var out []string
	for {
		select {
		case msg := <-ch:
			out = append(out, string(msg))
		default:
			return out
		}
	}
}

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients")
	}
	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}
	b.Unsubscribe(ch)
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after unsub")
	}
}

func TestPublishReload_Frame(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishReload(reload.Event{Kind: reload.KindReloaded, Generation: 7, Entries: 5, Checksum: "abc"})

	msg := recv(t, ch)
	if !strings.HasPrefix(msg, "id: 7\nevent: kb.reloaded\ndata: {") {
		t.Errorf("frame = %q", msg)
	}
	if !strings.Contains(msg, `"entries":5`) || !strings.Contains(msg, `"checksum":"abc"`) {
		t.Errorf("payload missing fields: %q", msg)
	}
	if !strings.HasSuffix(msg, "}\n\n") {
		t.Errorf("frame not terminated: %q", msg)
	}
}

func TestPublishReload_UnchangedThrottle(t *testing.T) {
	b := NewBroker(500 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishReload(reload.Event{Kind: reload.KindUnchanged, Generation: 1})
	// A second unchanged event right away is collapsed.
	b.PublishReload(reload.Event{Kind: reload.KindUnchanged, Generation: 1})
	b.PublishReload(reload.Event{Kind: reload.KindReloaded, Generation: 2, Entries: 5})
	b.PublishReload(reload.Event{Kind: reload.KindFailed, Generation: 2, Error: "boom"})

	time.Sleep(50 * time.Millisecond)
	counts := map[string]int{}
	for _, msg := range drain(ch) {
		for _, kind := range []reload.EventKind{reload.KindUnchanged, reload.KindReloaded, reload.KindFailed} {
			if strings.Contains(msg, "\nevent: "+string(kind)+"\n") {
				counts[string(kind)]++
			}
		}
	}

	if counts["kb.unchanged"] != 1 {
		t.Errorf("unchanged events = %d, want 1 (throttled)", counts["kb.unchanged"])
	}
	if counts["kb.reloaded"] != 1 || counts["kb.reload_failed"] != 1 {
		t.Errorf("events = %v", counts)
	}
}

func TestSubscribe_ReplaysLastOutcome(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()

	b.PublishReload(reload.Event{Kind: reload.KindReloaded, Generation: 4})
	b.PublishReload(reload.Event{Kind: reload.KindUnchanged, Generation: 4})
	// Wait for the loop to consume both events.
	time.Sleep(50 * time.Millisecond)

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	msg := recv(t, ch)
	if !strings.Contains(msg, "event: kb.reloaded") {
		t.Errorf("replayed %q, want the last reloaded event", msg)
	}
	if rest := drain(ch); len(rest) != 0 {
		t.Errorf("unexpected extra messages: %q", rest)
	}
}

func TestKeepAlive(t *testing.T) {
	b := NewBroker(time.Second, WithKeepAlive(20*time.Millisecond))
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	if msg := recv(t, ch); msg != ": ping\n\n" {
		t.Errorf("msg = %q, want ping comment", msg)
	}
}

func TestSSEHandler(t *testing.T) {
	b := NewBroker(100*time.Millisecond, WithKeepAlive(0))
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	req = req.WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	// Give handler time to subscribe.
	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client from handler")
	}

	b.PublishReload(reload.Event{Kind: reload.KindReloaded, Generation: 3})
	time.Sleep(50 * time.Millisecond)

	cancel()
	<-done

	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type = %q", ct)
	}
	body := w.Body.String()
	if !strings.HasPrefix(body, "retry: 3000\n\n") {
		t.Errorf("missing retry preamble: %q", body)
	}
	if !strings.Contains(body, "event: kb.reloaded") {
		t.Errorf("handler output missing event: %q", body)
	}

	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 0 {
		t.Errorf("client not cleaned up after disconnect")
	}
}

func TestPublishDropsOnFullBuffer(t *testing.T) {
	b := NewBroker(time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	// More events than the client buffer holds must not block the broker.
	for i := 0; i < clientBuffer+10; i++ {
		b.PublishReload(reload.Event{Kind: reload.KindReloaded, Generation: int64(i)})
	}
	if b.ClientCount() != 1 {
		t.Fatal("broker loop stalled")
	}
}

func TestCloseClosesSubscribersAndStopsOperations(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}

	b.Close()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected subscriber channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for channel close")
	}

	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after close")
	}

	// Safe no-ops after close.
	b.PublishReload(reload.Event{Kind: reload.KindReloaded})
	b.Close()
	if _, ok := <-b.Subscribe(); ok {
		t.Fatal("subscribe after close should return a closed channel")
	}
}
