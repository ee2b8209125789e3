// Package sse streams knowledge base reload events to HTTP clients.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/starford/askwiki/internal/reload"
)

const (
	clientBuffer = 64
	retryMillis  = 3000
	// DefaultKeepAlive is the interval between comment frames on idle streams.
	DefaultKeepAlive = 25 * time.Second
)

// Broker fans reload events out to connected clients.
//
// A single loop goroutine owns the client set, the last delivered outcome and
// the unchanged throttle. Public methods talk to it over channels.
type Broker struct {
	unchangedMin time.Duration
	keepAlive    time.Duration

	joinCh  chan chan []byte
	leaveCh chan chan []byte
	eventCh chan reload.Event
	countCh chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// BrokerOption configures a Broker.
type BrokerOption func(*Broker)

// WithKeepAlive sets the idle ping interval. Zero or less disables pings.
func WithKeepAlive(d time.Duration) BrokerOption {
	return func(b *Broker) { b.keepAlive = d }
}

// NewBroker starts a broker. Consecutive kb.unchanged events closer together
// than unchangedThrottle are collapsed into one.
func NewBroker(unchangedThrottle time.Duration, opts ...BrokerOption) *Broker {
	if unchangedThrottle <= 0 {
		unchangedThrottle = 2 * time.Second
	}
	b := &Broker{
		unchangedMin: unchangedThrottle,
		keepAlive:    DefaultKeepAlive,
		joinCh:       make(chan chan []byte),
		leaveCh:      make(chan chan []byte),
		eventCh:      make(chan reload.Event, 256),
		countCh:      make(chan chan int),
		stopCh:       make(chan struct{}),
		stopped:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	go b.loop()
	return b
}

// frame renders ev in text/event-stream form. The generation doubles as the
// event id so clients can tell which snapshot a message describes.
func frame(ev reload.Event) ([]byte, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	return fmt.Appendf(nil, "id: %d\nevent: %s\ndata: %s\n\n", ev.Generation, ev.Kind, payload), nil
}

func (b *Broker) loop() {
	defer close(b.stopped)

	clients := make(map[chan []byte]struct{})
	// last is the most recent reloaded or failed frame, replayed on join.
	var last []byte
	var lastUnchanged time.Time

	var tick <-chan time.Time
	if b.keepAlive > 0 {
		t := time.NewTicker(b.keepAlive)
		defer t.Stop()
		tick = t.C
	}

	send := func(msg []byte) {
		for ch := range clients {
			select {
			case ch <- msg:
			default:
				// Slow client; drop rather than stall the loop.
			}
		}
	}

	for {
		select {
		case <-b.stopCh:
			for ch := range clients {
				close(ch)
			}
			return

		case ch := <-b.joinCh:
			clients[ch] = struct{}{}
			if last != nil {
				ch <- last
			}

		case ch := <-b.leaveCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case ev := <-b.eventCh:
			if ev.Kind == reload.KindUnchanged {
				now := time.Now()
				if now.Sub(lastUnchanged) < b.unchangedMin {
					continue
				}
				lastUnchanged = now
			}
			msg, err := frame(ev)
			if err != nil {
				continue
			}
			if ev.Kind != reload.KindUnchanged {
				last = msg
			}
			send(msg)

		case <-tick:
			send([]byte(": ping\n\n"))

		case resp := <-b.countCh:
			resp <- len(clients)
		}
	}
}

// Close stops the loop and closes every client channel. It is idempotent.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe registers a client. The channel first receives the latest
// reload outcome, if any, and is closed when the broker stops.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, clientBuffer)
	if b.closed.Load() {
		close(ch)
		return ch
	}
	select {
	case b.joinCh <- ch:
	case <-b.stopped:
		close(ch)
	}
	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.closed.Load() {
		return
	}
	select {
	case b.leaveCh <- ch:
	case <-b.stopped:
	}
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	if b.closed.Load() {
		return 0
	}
	resp := make(chan int, 1)
	select {
	case b.countCh <- resp:
	case <-b.stopped:
		return 0
	}
	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// PublishReload queues a reload outcome for broadcast. It has the
// reload.Listener signature.
func (b *Broker) PublishReload(ev reload.Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.eventCh <- ev:
	case <-b.stopped:
	}
}

// ServeHTTP streams events until the client leaves or the broker closes
// (GET /api/events).
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "retry: %d\n\n", retryMillis)
	flusher.Flush()

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	for {
		select {
		case <-r.Context().Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if _, err := w.Write(msg); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
