// Package playback runs a presentation: manual stepping through a fixed deck, or
// autoplay that alternates between a waiting slide and slides synthesized from
// the head of the data queue.
//
// All state lives on one event-loop goroutine. Timer callbacks and queue change
// notifications only post events to that loop, and every event carries the
// generation it belongs to, so a superseded timer can never act on newer state.
package playback

import (
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"deckgenius/internal/models"
	"deckgenius/internal/queue"
	"deckgenius/internal/synth"
)

const (
	DefaultAutoplayDuration   = 3 * time.Second
	DefaultTransitionDuration = time.Second
)

var (
	transitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "deckgenius_playback_transitions_total",
		Help: "Slide changes by target phase",
	}, []string{"phase"})

	consumedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "deckgenius_playback_rows_consumed_total",
		Help: "Queue rows moved to history by autoplay",
	})

	staleTimersTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "deckgenius_playback_stale_timer_events_total",
		Help: "Timer events discarded because a newer transition superseded them",
	})
)

// QueueSource is the read side of the queue store
type QueueSource interface {
	Snapshot() queue.Snapshot
	Subscribe(fn func(queue.Snapshot)) (cancel func())
}

// Consumer moves a presented row out of the queue. slideID names the
// synthesized slide the row was shown on.
type Consumer interface {
	Consume(row models.Row, slideID string)
}

// ConsumerFunc adapts a function to Consumer
type ConsumerFunc func(row models.Row, slideID string)

func (f ConsumerFunc) Consume(row models.Row, slideID string) { f(row, slideID) }

// FrameSink receives every frame the engine produces. It is called from the
// event loop and must not block.
type FrameSink interface {
	PublishFrame(models.Frame)
}

// FrameSinkFunc adapts a function to FrameSink
type FrameSinkFunc func(models.Frame)

func (f FrameSinkFunc) PublishFrame(fr models.Frame) { f(fr) }

// Options configures one presentation run
type Options struct {
	Mode               models.Mode
	Slides             []models.Slide
	StartIndex         int
	StartSlideID       string
	AutoplayDuration   time.Duration
	TransitionDuration time.Duration
	Selector           synth.Selector
	IdentityField      string
}

type event struct {
	fn    func()
	done  chan struct{}
	timer *timerEvent
}

type timerEvent struct {
	gen  uint64
	kind timerKind
}

// Engine is a running presentation
type Engine struct {
	opts        Options
	clock       clockwork.Clock
	queue       QueueSource
	consumer    Consumer
	sink        FrameSink
	synthesizer *synth.Synthesizer
	logger      zerolog.Logger

	events chan event
	wake   chan struct{}
	stop   chan struct{}
	exited chan struct{}

	latestMu  sync.Mutex
	latest    queue.Snapshot
	hasLatest bool

	frameMu sync.RWMutex
	shown   models.Frame

	startOnce sync.Once
	exitOnce  sync.Once
	hooksMu  sync.Mutex
	hooks    []func()
	isExited bool

	// owned by the loop goroutine
	frame        models.Frame
	index        int
	gen          uint64
	timers       *arena
	prevQueueLen int
	lastVersion  uint64
	seenVersion  bool
	presenting   models.Row
}

// Deps are the collaborators of an engine
type Deps struct {
	Clock       clockwork.Clock
	Queue       QueueSource
	Consumer    Consumer
	Sink        FrameSink
	Synthesizer *synth.Synthesizer
	Logger      zerolog.Logger
}

// CheckAutoplay reports ErrNoTemplate unless slides has both the waiting
// slide and the template the selector points at.
func CheckAutoplay(slides []models.Slide, selector synth.Selector) error {
	if _, ok := selector.Welcome(slides); !ok {
		return models.ErrNoTemplate
	}
	if selector.TemplateIndex < 0 || selector.TemplateIndex >= len(slides) {
		return models.ErrNoTemplate
	}
	return nil
}

// New validates opts and prepares an engine. Call Start to run it.
func New(opts Options, deps Deps) (*Engine, error) {
	if len(opts.Slides) == 0 {
		return nil, models.ErrEmptyPresentation
	}
	if opts.Mode == "" {
		opts.Mode = models.ModeManual
	}
	if opts.Mode != models.ModeManual && opts.Mode != models.ModeAutoplay {
		return nil, fmt.Errorf("unknown presentation mode %q", opts.Mode)
	}
	if opts.AutoplayDuration <= 0 {
		opts.AutoplayDuration = DefaultAutoplayDuration
	}
	if opts.TransitionDuration <= 0 {
		opts.TransitionDuration = DefaultTransitionDuration
	}
	opts.Slides = models.CloneSlides(opts.Slides)

	if opts.Mode == models.ModeAutoplay {
		if deps.Queue == nil || deps.Consumer == nil {
			return nil, fmt.Errorf("autoplay needs a queue and a consumer")
		}
		if err := CheckAutoplay(opts.Slides, opts.Selector); err != nil {
			return nil, err
		}
	}

	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	if deps.Synthesizer == nil {
		deps.Synthesizer = synth.New(nil)
	}
	if deps.Sink == nil {
		deps.Sink = FrameSinkFunc(func(models.Frame) {})
	}

	e := &Engine{
		opts:        opts,
		clock:       deps.Clock,
		queue:       deps.Queue,
		consumer:    deps.Consumer,
		sink:        deps.Sink,
		synthesizer: deps.Synthesizer,
		logger:      deps.Logger.With().Str("component", "playback").Str("mode", string(opts.Mode)).Logger(),
		events:      make(chan event, 16),
		wake:        make(chan struct{}, 1),
		stop:        make(chan struct{}),
		exited:      make(chan struct{}),
		timers:      newArena(deps.Clock),
	}
	e.index = e.startIndex()
	return e, nil
}

func (e *Engine) startIndex() int {
	if e.opts.StartSlideID != "" {
		if idx := synth.FindSlide(e.opts.Slides, e.opts.StartSlideID); idx >= 0 {
			return idx
		}
	}
	if e.opts.StartIndex >= 0 && e.opts.StartIndex < len(e.opts.Slides) {
		return e.opts.StartIndex
	}
	return 0
}

// Start runs the event loop. The first frame is published before Start returns.
// Start after Exit does nothing.
func (e *Engine) Start() {
	e.startOnce.Do(func() {
		ready := make(chan struct{})
		go e.loop(ready)
		<-ready
	})
}

func (e *Engine) loop(ready chan struct{}) {
	defer close(e.exited)

	var unsubscribe func()
	if e.opts.Mode == models.ModeAutoplay {
		unsubscribe = e.queue.Subscribe(e.offer)
	}
	e.init()
	close(ready)

	defer func() {
		if unsubscribe != nil {
			unsubscribe()
		}
		if n := e.timers.cancelAll(); n > 0 {
			e.logger.Debug().Int("timers", n).Msg("cancelled pending timers on exit")
		}
	}()

	for {
		select {
		case <-e.stop:
			return
		case ev := <-e.events:
			select {
			case <-e.stop:
				if ev.done != nil {
					close(ev.done)
				}
				return
			default:
			}
			e.handle(ev)
		case <-e.wake:
			if snap, ok := e.takeLatest(); ok {
				e.onQueue(snap)
			}
		}
	}
}

func (e *Engine) init() {
	if e.opts.Mode == models.ModeManual {
		e.showStatic(e.opts.Slides[e.index], models.PhaseManual)
		return
	}
	welcome, _ := e.opts.Selector.Welcome(e.opts.Slides)
	e.showStatic(welcome, models.PhaseWaiting)
	e.onQueue(e.queue.Snapshot())
}

func (e *Engine) handle(ev event) {
	switch {
	case ev.timer != nil:
		e.onTimer(*ev.timer)
	case ev.fn != nil:
		ev.fn()
	}
	if ev.done != nil {
		close(ev.done)
	}
}

// offer records the newest queue snapshot without blocking the store.
func (e *Engine) offer(snap queue.Snapshot) {
	e.latestMu.Lock()
	if !e.hasLatest || snap.Version > e.latest.Version {
		e.latest = snap
		e.hasLatest = true
	}
	e.latestMu.Unlock()

	select {
	case e.wake <- struct{}{}:
	default:
	}
}

func (e *Engine) takeLatest() (queue.Snapshot, bool) {
	e.latestMu.Lock()
	defer e.latestMu.Unlock()
	snap, ok := e.latest, e.hasLatest
	e.hasLatest = false
	return snap, ok
}

// onQueue reacts to the queue contents. Emptying is edge-triggered on the
// previous length; an unchanged head keeps its running timers.
func (e *Engine) onQueue(snap queue.Snapshot) {
	if e.seenVersion && snap.Version <= e.lastVersion {
		return
	}
	e.seenVersion = true
	e.lastVersion = snap.Version

	rows := snap.Queue
	defer func() { e.prevQueueLen = len(rows) }()

	welcome, _ := e.opts.Selector.Welcome(e.opts.Slides)

	switch {
	case len(rows) == 0 && e.prevQueueLen > 0:
		e.presenting = nil
		e.transition(welcome, models.PhaseWaiting, nil)

	case len(rows) > 0:
		head := rows[0]
		if e.presenting != nil && e.sameRow(head, e.presenting) {
			return
		}
		tpl, ok := e.opts.Selector.Template(e.opts.Slides, head)
		if !ok {
			e.presenting = nil
			e.showStatic(welcome, models.PhaseWaiting)
			return
		}
		slide := e.synthesizer.Synthesize(tpl, head, synth.Provenance{
			DataSourceID: models.QueueSourceID,
			RowIndex:     0,
		})
		e.transition(slide, models.PhasePresenting, head)

	default:
		if e.frame.Phase != models.PhaseWaiting {
			e.presenting = nil
			e.showStatic(welcome, models.PhaseWaiting)
		}
	}
}

func (e *Engine) sameRow(a, b models.Row) bool {
	aid, aok := a.Identity(e.opts.IdentityField)
	bid, bok := b.Identity(e.opts.IdentityField)
	if aok && bok {
		return aid == bid
	}
	return reflect.DeepEqual(a, b)
}

// transition supersedes every earlier generation and animates from the
// current slide to next. A non-nil row arms the advance timer for it.
func (e *Engine) transition(next models.Slide, phase models.Phase, row models.Row) {
	e.gen++
	gen := e.gen
	if n := e.timers.cancelBefore(gen); n > 0 {
		e.logger.Debug().Uint64("generation", gen).Int("timers", n).Msg("superseded pending timers")
	}

	prev := e.frame.Current
	e.frame = e.baseFrame(phase)
	e.frame.Current = &next
	e.frame.Previous = prev
	e.frame.IsTransitioning = true
	e.presenting = row

	e.timers.arm(gen, e.opts.TransitionDuration, func() { e.post(timerEvent{gen: gen, kind: timerTransition}) })
	if row != nil {
		e.timers.arm(gen, e.opts.AutoplayDuration, func() { e.post(timerEvent{gen: gen, kind: timerAdvance}) })
	}

	transitionsTotal.WithLabelValues(string(phase)).Inc()
	e.logger.Debug().Uint64("generation", gen).Str("slide", next.ID).Str("phase", string(phase)).Msg("transition")
	e.publish()
}

// showStatic displays slide without animation and drops all pending timers.
func (e *Engine) showStatic(slide models.Slide, phase models.Phase) {
	e.gen++
	e.timers.cancelBefore(e.gen)

	e.frame = e.baseFrame(phase)
	e.frame.Current = &slide
	transitionsTotal.WithLabelValues(string(phase)).Inc()
	e.publish()
}

func (e *Engine) baseFrame(phase models.Phase) models.Frame {
	return models.Frame{
		Phase:              phase,
		Mode:               e.opts.Mode,
		Index:              e.index,
		SlideCount:         len(e.opts.Slides),
		Generation:         e.gen,
		AutoplayDurationMs: e.opts.AutoplayDuration.Milliseconds(),
	}
}

func (e *Engine) onTimer(t timerEvent) {
	if t.gen != e.gen {
		staleTimersTotal.Inc()
		e.logger.Debug().Uint64("generation", t.gen).Uint64("current", e.gen).Str("timer", t.kind.String()).Msg("discarded stale timer")
		return
	}

	switch t.kind {
	case timerTransition:
		e.frame.Previous = nil
		e.frame.IsTransitioning = false
		e.publish()

	case timerAdvance:
		row := e.presenting
		if row == nil {
			return
		}
		e.presenting = nil
		slideID := ""
		if e.frame.Current != nil {
			slideID = e.frame.Current.ID
		}
		e.consumer.Consume(row, slideID)
		consumedTotal.Inc()
		e.onQueue(e.queue.Snapshot())
	}
}

func (e *Engine) post(t timerEvent) {
	select {
	case e.events <- event{timer: &t}:
	case <-e.stop:
	}
}

func (e *Engine) publish() {
	fr := e.frame
	e.frameMu.Lock()
	e.shown = fr
	e.frameMu.Unlock()
	e.sink.PublishFrame(fr)
}

// Frame returns the last published frame
func (e *Engine) Frame() models.Frame {
	e.frameMu.RLock()
	defer e.frameMu.RUnlock()
	return e.shown
}

// do runs fn on the loop and waits for it
func (e *Engine) do(fn func()) error {
	done := make(chan struct{})
	select {
	case e.events <- event{fn: fn, done: done}:
	case <-e.stop:
		return models.ErrNotPresenting
	}
	select {
	case <-done:
		return nil
	case <-e.exited:
		return models.ErrNotPresenting
	}
}

// OnExit registers fn to run once when the presentation exits. If it already
// has, fn runs immediately.
func (e *Engine) OnExit(fn func()) {
	e.hooksMu.Lock()
	if e.isExited {
		e.hooksMu.Unlock()
		fn()
		return
	}
	e.hooks = append(e.hooks, fn)
	e.hooksMu.Unlock()
}

// Exit stops the presentation. It returns after every armed timer is stopped
// and the loop has ended, so no timer can change state afterwards. Exit is
// idempotent and safe from any phase, but must not be called from a FrameSink.
func (e *Engine) Exit() {
	e.exitOnce.Do(func() {
		e.startOnce.Do(func() { close(e.exited) })
		close(e.stop)
		<-e.exited

		idle := models.Frame{Phase: models.PhaseIdle, Mode: e.opts.Mode, Generation: e.gen + 1}
		e.frameMu.Lock()
		e.shown = idle
		e.frameMu.Unlock()
		e.sink.PublishFrame(idle)

		e.hooksMu.Lock()
		hooks := e.hooks
		e.hooks = nil
		e.isExited = true
		e.hooksMu.Unlock()

		for _, fn := range hooks {
			fn()
		}
		e.logger.Info().Msg("presentation exited")
	})
}

// Done is closed once the engine has exited
func (e *Engine) Done() <-chan struct{} {
	return e.exited
}
