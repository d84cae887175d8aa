// Package broadcast is an in-process, fire-and-forget message bus scoped by
// channel name. A post reaches every other current subscriber of the channel at
// most once; subscribers that join later never see it, and a full inbox drops it.
package broadcast

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"deckgenius/internal/models"
)

var (
	ErrHubClosed          = errors.New("broadcast hub closed")
	ErrSubscriberExists   = errors.New("subscriber already joined")
	ErrSubscriberNotFound = errors.New("subscriber not found")
	ErrInboxFull          = errors.New("subscriber inbox full")
)

// DefaultBuffer is the inbox size used when NewHub is given a non-positive size
const DefaultBuffer = 64

var droppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "deckgenius_broadcast_dropped_total",
	Help: "Messages dropped because a subscriber inbox was full",
}, []string{"type"})

// Stats counts deliveries to one subscriber
type Stats struct {
	Sent    uint64 `json:"sent"`
	Dropped uint64 `json:"dropped"`
}

// Subscriber is one listener on a channel
type Subscriber struct {
	id      string
	channel string
	inbox   chan models.Message
	sent    atomic.Uint64
	dropped atomic.Uint64
	hub     *Hub
}

// ID returns the subscriber id, which is also its sender id when posting
func (s *Subscriber) ID() string { return s.id }

// Channel returns the channel name the subscriber joined
func (s *Subscriber) Channel() string { return s.channel }

// Messages returns the inbox. It is closed when the subscriber leaves or the hub closes.
func (s *Subscriber) Messages() <-chan models.Message { return s.inbox }

// Post sends msg to every other subscriber of the same channel
func (s *Subscriber) Post(msg models.Message) int {
	return s.hub.Post(s.channel, s.id, msg)
}

// Leave unsubscribes and closes the inbox. Safe to call more than once.
func (s *Subscriber) Leave() {
	_ = s.hub.leave(s.channel, s.id)
}

// Hub routes messages between subscribers of named channels
type Hub struct {
	mu          sync.RWMutex
	channels    map[string]map[string]*Subscriber
	buffer      int
	closed      bool
	totalPosted atomic.Uint64
}

// NewHub creates a hub whose subscribers get inboxes of the given size
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Hub{
		channels: make(map[string]map[string]*Subscriber),
		buffer:   buffer,
	}
}

// Join subscribes to channel. An empty id gets a generated one.
func (h *Hub) Join(channel, id string) (*Subscriber, error) {
	if id == "" {
		id = uuid.NewString()
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrHubClosed
	}

	subs, ok := h.channels[channel]
	if !ok {
		subs = make(map[string]*Subscriber)
		h.channels[channel] = subs
	}
	if _, exists := subs[id]; exists {
		return nil, ErrSubscriberExists
	}

	sub := &Subscriber{
		id:      id,
		channel: channel,
		inbox:   make(chan models.Message, h.buffer),
		hub:     h,
	}
	subs[id] = sub
	return sub, nil
}

// Post delivers msg to all subscribers of channel except sender, without
// blocking. It returns how many subscribers received it.
func (h *Hub) Post(channel, sender string, msg models.Message) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.closed {
		return 0
	}
	h.totalPosted.Add(1)

	delivered := 0
	for id, sub := range h.channels[channel] {
		if id == sender {
			continue
		}
		select {
		case sub.inbox <- msg:
			sub.sent.Add(1)
			delivered++
		default:
			sub.dropped.Add(1)
			droppedTotal.WithLabelValues(string(msg.Type)).Inc()
		}
	}
	return delivered
}

// SendTo delivers msg to a single subscriber without blocking
func (h *Hub) SendTo(channel, id string, msg models.Message) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.closed {
		return ErrHubClosed
	}
	sub, ok := h.channels[channel][id]
	if !ok {
		return ErrSubscriberNotFound
	}
	select {
	case sub.inbox <- msg:
		sub.sent.Add(1)
		return nil
	default:
		sub.dropped.Add(1)
		droppedTotal.WithLabelValues(string(msg.Type)).Inc()
		return ErrInboxFull
	}
}

// Subscribers returns the ids currently joined to channel
func (h *Hub) Subscribers(channel string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	ids := make([]string, 0, len(h.channels[channel]))
	for id := range h.channels[channel] {
		ids = append(ids, id)
	}
	return ids
}

// Stats returns delivery counters for a subscriber
func (h *Hub) Stats(channel, id string) (Stats, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	sub, ok := h.channels[channel][id]
	if !ok {
		return Stats{}, ErrSubscriberNotFound
	}
	return Stats{Sent: sub.sent.Load(), Dropped: sub.dropped.Load()}, nil
}

// TotalPosted returns the number of Post calls accepted by the hub
func (h *Hub) TotalPosted() uint64 {
	return h.totalPosted.Load()
}

func (h *Hub) leave(channel, id string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs := h.channels[channel]
	sub, ok := subs[id]
	if !ok {
		return ErrSubscriberNotFound
	}
	delete(subs, id)
	if len(subs) == 0 {
		delete(h.channels, channel)
	}
	close(sub.inbox)
	return nil
}

// Close shuts the hub down and closes every inbox
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for _, subs := range h.channels {
		for _, sub := range subs {
			close(sub.inbox)
		}
	}
	h.channels = nil
}
