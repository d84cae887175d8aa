// Package poller periodically fetches rows from the feed endpoint and merges
// them into the queue store.
package poller

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"deckgenius/internal/models"
	"deckgenius/internal/queue"
)

const (
	DefaultInterval = 5 * time.Second
	DefaultTimeout  = 10 * time.Second

	maxBody = 16 << 20
)

var (
	pollsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "deckgenius_feed_polls_total",
		Help: "Feed polls by outcome",
	}, []string{"outcome"})

	pollDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "deckgenius_feed_poll_duration_seconds",
		Help:    "Time to fetch and merge one feed response",
		Buckets: prometheus.DefBuckets,
	})

	rowsFetched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "deckgenius_feed_rows_fetched_total",
		Help: "Rows received from the feed",
	})
)

// Dispatcher applies queue actions. The store computes merges against its
// state at the time the action is applied.
type Dispatcher interface {
	Dispatch(a queue.Action) (queue.Snapshot, error)
}

// Notifier surfaces feed failures to connected surfaces. It must not block.
type Notifier interface {
	Notify(level, message string)
}

// Config holds the feed endpoint settings
type Config struct {
	URL      string
	Interval time.Duration
	Timeout  time.Duration
}

// Result describes one successful poll
type Result struct {
	Fetched  int                 `json:"fetched"`
	Version  uint64              `json:"version"`
	Sources  []models.DataSource `json:"dataSources"`
	Snapshot queue.Snapshot      `json:"-"`
}

// Poller fetches the feed on a fixed period
type Poller struct {
	cfg      Config
	client   *http.Client
	clock    clockwork.Clock
	store    Dispatcher
	notifier Notifier
	logger   zerolog.Logger

	mu      sync.Mutex
	lastErr error
	lastAt  time.Time
}

// Option customises a Poller
type Option func(*Poller)

// WithClient replaces the HTTP client
func WithClient(c *http.Client) Option {
	return func(p *Poller) { p.client = c }
}

// WithClock replaces the clock driving the poll period
func WithClock(c clockwork.Clock) Option {
	return func(p *Poller) { p.clock = c }
}

// WithNotifier sets where failures are reported
func WithNotifier(n Notifier) Option {
	return func(p *Poller) { p.notifier = n }
}

// New creates a poller for cfg
func New(cfg Config, store Dispatcher, logger zerolog.Logger, opts ...Option) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	p := &Poller{
		cfg:    cfg,
		client: &http.Client{},
		clock:  clockwork.NewRealClock(),
		store:  store,
		logger: logger.With().Str("component", "poller").Logger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run polls until ctx is cancelled. The first poll happens immediately. Feed
// errors are reported and retried on the next tick; Run only returns ctx.Err().
func (p *Poller) Run(ctx context.Context) error {
	if p.cfg.URL == "" {
		p.logger.Info().Msg("no feed url configured, poller idle")
		<-ctx.Done()
		return ctx.Err()
	}

	p.logger.Info().Str("url", p.cfg.URL).Dur("interval", p.cfg.Interval).Msg("starting feed poller")
	ticker := p.clock.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		if _, err := p.FetchNow(ctx); err != nil && ctx.Err() == nil {
			p.report(err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.Chan():
		}
	}
}

// FetchNow performs one fetch and merge
func (p *Poller) FetchNow(ctx context.Context) (Result, error) {
	start := p.clock.Now()
	res, err := p.fetchAndMerge(ctx)
	pollDuration.Observe(p.clock.Since(start).Seconds())

	p.mu.Lock()
	p.lastErr = err
	p.lastAt = start
	p.mu.Unlock()

	if err != nil {
		pollsTotal.WithLabelValues("error").Inc()
		return Result{}, err
	}
	pollsTotal.WithLabelValues("ok").Inc()
	rowsFetched.Add(float64(res.Fetched))
	p.logger.Debug().Int("fetched", res.Fetched).Uint64("version", res.Version).Msg("merged feed rows")
	return res, nil
}

// LastError returns the outcome of the most recent poll
func (p *Poller) LastError() (time.Time, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastAt, p.lastErr
}

func (p *Poller) fetchAndMerge(ctx context.Context) (Result, error) {
	rows, err := p.fetch(ctx)
	if err != nil {
		return Result{}, err
	}

	// The merge runs inside the store against whatever state it holds now,
	// not the state at the time the request went out.
	snap, err := p.store.Dispatch(queue.Merge{Rows: rows})
	if err != nil {
		return Result{}, err
	}
	return Result{
		Fetched:  len(rows),
		Version:  snap.Version,
		Sources:  snap.DataSources(),
		Snapshot: snap,
	}, nil
}

func (p *Poller) fetch(ctx context.Context) ([]models.Row, error) {
	if p.cfg.URL == "" {
		return nil, fmt.Errorf("%w: no feed url configured", models.ErrNetworkFailure)
	}

	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to build request: %v", models.ErrNetworkFailure, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrNetworkFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: feed returned %s", models.ErrNetworkFailure, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read body: %v", models.ErrNetworkFailure, err)
	}
	return models.DecodeRows(body)
}

func (p *Poller) report(err error) {
	p.logger.Warn().Err(err).Msg("feed poll failed")
	if p.notifier != nil {
		p.notifier.Notify("error", fmt.Sprintf("Failed to fetch data: %v", err))
	}
}
