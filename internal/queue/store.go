package queue

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"deckgenius/internal/models"
)

var (
	sourceLengthGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "deckgenius_source_rows",
		Help: "Current number of rows per data source",
	}, []string{"source"})

	actionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "deckgenius_queue_actions_total",
		Help: "Queue actions dispatched, by action and outcome",
	}, []string{"action", "outcome"})
)

// Snapshot is a read-only view of the sources at one version
type Snapshot struct {
	State
	Version uint64
}

// DataSources renders the snapshot in the exported DataSource shape
func (s Snapshot) DataSources() []models.DataSource {
	return []models.DataSource{
		{ID: models.InputSourceID, Name: "Input", Data: nonNil(s.Input)},
		{ID: models.QueueSourceID, Name: "Presentation queue", Data: nonNil(s.Queue)},
		{ID: models.HistorySourceID, Name: "Presented", Data: nonNil(s.History)},
	}
}

func nonNil(rows []models.Row) []models.Row {
	if rows == nil {
		return []models.Row{}
	}
	return rows
}

// Store owns the session's sources. All mutations go through Dispatch.
type Store struct {
	mu       sync.RWMutex
	state    State
	version  uint64
	resolver Resolver
	subs     map[int]func(Snapshot)
	nextSub  int
	logger   zerolog.Logger
}

// NewStore creates an empty store
func NewStore(resolver Resolver, logger zerolog.Logger) *Store {
	return &Store{
		resolver: resolver,
		subs:     make(map[int]func(Snapshot)),
		logger:   logger.With().Str("component", "queue").Logger(),
	}
}

// Resolver returns the identity/merge configuration of the store
func (s *Store) Resolver() Resolver {
	return s.resolver
}

// Snapshot returns the current sources
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{State: s.state, Version: s.version}
}

// Dispatch applies an action against the state current at call time.
// Subscribers are notified outside the lock, only when something changed.
func (s *Store) Dispatch(a Action) (Snapshot, error) {
	s.mu.Lock()
	next, changed, err := Reduce(s.state, a, s.resolver)
	if err != nil {
		snap := Snapshot{State: s.state, Version: s.version}
		s.mu.Unlock()
		actionsTotal.WithLabelValues(a.actionName(), "error").Inc()
		return snap, err
	}
	if changed {
		s.state = next
		s.version++
	}
	snap := Snapshot{State: s.state, Version: s.version}
	subs := make([]func(Snapshot), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	if !changed {
		actionsTotal.WithLabelValues(a.actionName(), "noop").Inc()
		return snap, nil
	}
	actionsTotal.WithLabelValues(a.actionName(), "applied").Inc()
	sourceLengthGauge.WithLabelValues(models.InputSourceID).Set(float64(len(snap.Input)))
	sourceLengthGauge.WithLabelValues(models.QueueSourceID).Set(float64(len(snap.Queue)))
	sourceLengthGauge.WithLabelValues(models.HistorySourceID).Set(float64(len(snap.History)))

	s.logger.Debug().
		Str("action", a.actionName()).
		Uint64("version", snap.Version).
		Int("input", len(snap.Input)).
		Int("queue", len(snap.Queue)).
		Int("history", len(snap.History)).
		Msg("sources updated")

	for _, fn := range subs {
		fn(snap)
	}
	return snap, nil
}

// Subscribe registers fn for every change. Callbacks may run concurrently and
// out of order, so they must compare Version and must not block.
func (s *Store) Subscribe(fn func(Snapshot)) (cancel func()) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}
