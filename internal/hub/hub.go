package hub

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/warroomlabs/warroom/internal/events"
)

const (
	defaultQueueSize = 64
	defaultKeepalive = 30 * time.Second
)

// Options configure a Hub.
type Options struct {
	// QueueSize bounds each subscriber's unread backlog. When a queue is
	// full the subscriber's own oldest message is shed; other subscribers
	// are unaffected.
	QueueSize int
	// KeepaliveInterval is how long a subscriber may go without a message
	// before the hub sends it a synthetic ping. Negative disables pings.
	KeepaliveInterval time.Duration
}

type subscriber struct {
	ch       chan events.Message
	lastSend time.Time
}

// Hub fans published messages out to a dynamic set of subscriber queues.
// Subscribe, Unsubscribe and Publish are safe to call concurrently; the
// recipient set for one Publish call is a consistent snapshot, so a
// subscriber joining mid-publish sees either all or none of that message.
type Hub struct {
	opts Options

	mu   sync.Mutex
	subs map[string]*subscriber

	stop chan struct{}
	wg   sync.WaitGroup
}

// New returns a running Hub. Close must be called to stop the keepalive
// loop.
func New(opts Options) *Hub {
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	if opts.KeepaliveInterval == 0 {
		opts.KeepaliveInterval = defaultKeepalive
	}
	h := &Hub{
		opts: opts,
		subs: make(map[string]*subscriber),
		stop: make(chan struct{}),
	}
	if opts.KeepaliveInterval > 0 {
		h.wg.Add(1)
		go h.keepaliveLoop()
	}
	return h
}

// Subscribe registers a new delivery queue and returns its handle. The
// channel only carries messages published after registration; there is no
// replay for late joiners.
func (h *Hub) Subscribe() (string, <-chan events.Message) {
	sub := &subscriber{
		ch:       make(chan events.Message, h.opts.QueueSize),
		lastSend: time.Now(),
	}
	id := uuid.NewString()
	h.mu.Lock()
	h.subs[id] = sub
	h.mu.Unlock()
	return id, sub.ch
}

// Unsubscribe removes the handle. Safe to call concurrently with Publish
// and more than once for the same handle.
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	delete(h.subs, id)
	h.mu.Unlock()
}

// Subscribers reports the number of registered handles.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Publish delivers m to every registered subscriber in per-recipient FIFO
// order. A stalled subscriber costs at most one shed message from its own
// queue; it never delays delivery to the others.
func (h *Hub) Publish(m events.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	now := time.Now()
	for _, sub := range h.subs {
		sub.deliver(m)
		sub.lastSend = now
	}
}

func (s *subscriber) deliver(m events.Message) {
	select {
	case s.ch <- m:
		return
	default:
	}
	// Queue full: shed this subscriber's oldest unread message and retry.
	select {
	case <-s.ch:
	default:
	}
	select {
	case s.ch <- m:
	default:
	}
}

func (h *Hub) keepaliveLoop() {
	defer h.wg.Done()
	// Tick at half the interval so idle time before a ping stays below
	// 1.5x the configured value.
	period := h.opts.KeepaliveInterval / 2
	if period < time.Millisecond {
		period = time.Millisecond
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-h.stop:
			return
		case <-ticker.C:
			h.pingIdle()
		}
	}
}

func (h *Hub) pingIdle() {
	h.mu.Lock()
	defer h.mu.Unlock()
	now := time.Now()
	for _, sub := range h.subs {
		if now.Sub(sub.lastSend) >= h.opts.KeepaliveInterval {
			sub.deliver(events.Ping())
			sub.lastSend = now
		}
	}
}

// Close stops the keepalive loop. Subscriber channels are left open; readers
// exit through their own connection lifecycle.
func (h *Hub) Close() {
	close(h.stop)
	h.wg.Wait()
}
