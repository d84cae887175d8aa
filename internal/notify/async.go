package notify

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

const publishTimeout = 5 * time.Second

var eventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "deckgenius_events_published_total",
	Help: "Presentation events by outcome",
}, []string{"outcome"})

// Async hands events to a Publisher on a background goroutine so callers on
// the playback loop never wait on the broker. A full buffer drops the event.
type Async struct {
	next   Publisher
	events chan Event
	logger zerolog.Logger

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// NewAsync starts the delivery goroutine
func NewAsync(next Publisher, buffer int, logger zerolog.Logger) *Async {
	if buffer <= 0 {
		buffer = 64
	}
	a := &Async{
		next:   next,
		events: make(chan Event, buffer),
		logger: logger.With().Str("component", "notify").Logger(),
		done:   make(chan struct{}),
	}
	go a.run()
	return a
}

// Publish enqueues e and never blocks
func (a *Async) Publish(_ context.Context, e Event) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		eventsTotal.WithLabelValues("dropped").Inc()
		return nil
	}
	select {
	case a.events <- e:
	default:
		eventsTotal.WithLabelValues("dropped").Inc()
		a.logger.Warn().Str("type", e.Type).Msg("event buffer full, dropping event")
	}
	return nil
}

func (a *Async) run() {
	defer close(a.done)
	for e := range a.events {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		err := a.next.Publish(ctx, e)
		cancel()
		if err != nil {
			eventsTotal.WithLabelValues("error").Inc()
			a.logger.Warn().Err(err).Str("type", e.Type).Msg("failed to publish event")
			continue
		}
		eventsTotal.WithLabelValues("ok").Inc()
	}
}

// Close drains pending events and closes the wrapped publisher
func (a *Async) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		<-a.done
		return nil
	}
	a.closed = true
	close(a.events)
	a.mu.Unlock()

	<-a.done
	return a.next.Close()
}
