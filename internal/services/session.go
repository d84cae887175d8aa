package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"deckgenius/internal/broadcast"
	"deckgenius/internal/models"
	"deckgenius/internal/notify"
	"deckgenius/internal/playback"
	"deckgenius/internal/queue"
	"deckgenius/internal/render"
	"deckgenius/internal/synth"
	"deckgenius/internal/window"
)

// EngineID is the sender id the session uses on the sync channel
const EngineID = "deckgenius-engine"

// PlaybackSettings are applied to the next presentation started
type PlaybackSettings struct {
	AutoplayDuration   time.Duration
	TransitionDuration time.Duration
	Selector           synth.Selector
}

// StartRequest starts a presentation
type StartRequest struct {
	Mode         models.Mode `json:"mode"`
	StartSlideID string      `json:"startSlideId,omitempty"`
	StartIndex   int         `json:"startIndex,omitempty"`
}

// SessionDeps are the collaborators of a Session
type SessionDeps struct {
	Deck      *DeckStore
	Store     *queue.Store
	Hub       *broadcast.Hub
	Windows   *window.Manager
	History   *HistoryService
	Publisher notify.Publisher
	Clock     clockwork.Clock
	Logger    zerolog.Logger
}

// Session ties the deck, the queue store and the playback engine to the
// surfaces connected on the sync channel. At most one presentation runs at a time.
type Session struct {
	deps     SessionDeps
	channel  string
	logger   zerolog.Logger
	identity string

	startMu  sync.Mutex
	mu       sync.Mutex
	engine   *playback.Engine
	settings PlaybackSettings
}

// NewSession creates a session on the default channel
func NewSession(deps SessionDeps, settings PlaybackSettings) *Session {
	if deps.Publisher == nil {
		deps.Publisher = notify.Nop{}
	}
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	return &Session{
		deps:     deps,
		channel:  models.ChannelName,
		logger:   deps.Logger.With().Str("component", "session").Logger(),
		identity: deps.Store.Resolver().IdentityField,
		settings: settings,
	}
}

// SetPlayback replaces the settings used for presentations started later
func (s *Session) SetPlayback(settings PlaybackSettings) {
	s.mu.Lock()
	s.settings = settings
	s.mu.Unlock()
}

// Run listens for surface commands and pushes source updates until ctx is done
func (s *Session) Run(ctx context.Context) error {
	unsubscribe := s.deps.Store.Subscribe(s.pushSources)
	defer unsubscribe()

	sub, err := s.deps.Hub.Join(s.channel, EngineID)
	if err != nil {
		return fmt.Errorf("failed to join sync channel: %w", err)
	}
	defer sub.Leave()

	for {
		select {
		case <-ctx.Done():
			s.stopEngine()
			return nil
		case msg, ok := <-sub.Messages():
			if !ok {
				s.stopEngine()
				return nil
			}
			s.handleMessage(msg)
		}
	}
}

func (s *Session) handleMessage(msg models.Message) {
	var err error
	switch msg.Type {
	case models.MsgNext:
		err = s.Next()
	case models.MsgPrev:
		err = s.Prev()
	case models.MsgGotoSlide:
		var p models.GotoSlidePayload
		if err = msg.Decode(&p); err == nil {
			err = s.GoTo(p.Index)
		}
	case models.MsgKey:
		var p models.KeyPayload
		if err = msg.Decode(&p); err == nil {
			err = s.HandleKey(p.Key)
		}
	case models.MsgExit:
		err = s.Exit()
	case models.MsgFullscreenFailed:
		var p models.FullscreenFailedPayload
		_ = msg.Decode(&p)
		s.logger.Warn().Str("reason", p.Reason).Msg("surface could not enter fullscreen")
	default:
		return
	}
	if err != nil {
		s.logger.Debug().Err(err).Str("type", string(msg.Type)).Msg("ignored surface command")
	}
}

func (s *Session) post(t models.MessageType, payload any) {
	msg, err := models.NewMessage(t, payload)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to build message")
		return
	}
	s.deps.Hub.Post(s.channel, EngineID, msg)
}

func (s *Session) pushSources(snap queue.Snapshot) {
	s.post(models.MsgDataSources, models.DataSourcesPayload{Version: snap.Version, Sources: snap.DataSources()})
}

// Notify shows a transient message on every surface
func (s *Session) Notify(level, message string) {
	s.post(models.MsgNotify, models.NotifyPayload{Level: level, Message: message})
}

// Start begins a presentation, replacing any running one. A blocked
// presenter window is not an error: playback continues on the controller.
func (s *Session) Start(ctx context.Context, req StartRequest) (models.Frame, error) {
	s.startMu.Lock()
	defer s.startMu.Unlock()
	s.stopEngine()

	doc := s.deps.Deck.Document()
	if req.Mode == "" {
		req.Mode = models.ModeManual
	}

	slides := doc.Slides
	if req.Mode == models.ModeManual {
		slides = synth.Expand(doc.Slides, s.deps.Store.Snapshot().Queue)
	}
	if len(slides) == 0 {
		s.Notify("warning", "There is nothing to present")
		return models.Frame{}, models.ErrEmptyPresentation
	}

	s.mu.Lock()
	settings := s.settings
	s.mu.Unlock()

	engine, err := playback.New(playback.Options{
		Mode:               req.Mode,
		Slides:             slides,
		StartIndex:         req.StartIndex,
		StartSlideID:       req.StartSlideID,
		AutoplayDuration:   settings.AutoplayDuration,
		TransitionDuration: settings.TransitionDuration,
		Selector:           settings.Selector,
		IdentityField:      s.identity,
	}, playback.Deps{
		Clock:    s.deps.Clock,
		Queue:    s.deps.Store,
		Consumer: playback.ConsumerFunc(s.consume),
		Sink:     playback.FrameSinkFunc(s.publishFrame),
		Logger:   s.deps.Logger,
	})
	if err != nil {
		if errors.Is(err, models.ErrNoTemplate) {
			s.Notify("warning", "Autoplay needs a welcome slide and a template slide")
		}
		return models.Frame{}, err
	}

	engine.OnExit(func() {
		if s.deps.Windows != nil {
			s.deps.Windows.Close()
		}
		s.mu.Lock()
		if s.engine == engine {
			s.engine = nil
		}
		s.mu.Unlock()
	})

	s.mu.Lock()
	s.engine = engine
	s.mu.Unlock()
	engine.Start()

	s.logger.Info().Str("mode", string(req.Mode)).Int("slides", len(slides)).Msg("presentation started")
	s.openWindow(ctx, engine, doc)
	return withDirectURLs(engine.Frame()), nil
}

func (s *Session) openWindow(ctx context.Context, engine *playback.Engine, doc models.Document) {
	if s.deps.Windows == nil {
		return
	}
	width, height := doc.AspectRatio.Dimensions()
	mount := models.MountPayload{
		Title:       doc.Title,
		AspectRatio: doc.AspectRatio,
		Width:       width,
		Height:      height,
	}

	// onClose runs on the window's poll goroutine, which Exit waits for
	handle, err := s.deps.Windows.Open(ctx, mount, func() { go engine.Exit() })
	if err != nil {
		s.logger.Warn().Err(err).Msg("presenting without a secondary window")
		s.Notify("warning", "The presentation window could not be opened, presenting in this window instead")
		return
	}

	msg, err := models.NewMessage(models.MsgFrame, withDirectURLs(engine.Frame()))
	if err == nil {
		_ = handle.Surface().Send(msg)
	}
}

func (s *Session) publishFrame(f models.Frame) {
	s.post(models.MsgFrame, withDirectURLs(f))
}

// withDirectURLs rewrites image sources so surfaces can load them directly
func withDirectURLs(f models.Frame) models.Frame {
	fix := func(slide *models.Slide) *models.Slide {
		if slide == nil {
			return nil
		}
		out := slide.Clone()
		if out.BackgroundImage != "" {
			out.BackgroundImage = render.DirectURL(out.BackgroundImage)
		}
		if out.BackgroundVideo != "" {
			out.BackgroundVideo = render.DirectURL(out.BackgroundVideo)
		}
		for i := range out.Elements {
			if out.Elements[i].Type == models.ElementImage {
				out.Elements[i].Src = render.DirectURL(out.Elements[i].Src)
			}
		}
		return &out
	}
	f.Current = fix(f.Current)
	f.Previous = fix(f.Previous)
	return f
}

// consume runs on the engine loop and must return quickly
func (s *Session) consume(row models.Row, slideID string) {
	if _, err := s.deps.Store.Dispatch(queue.ConsumeHead{Item: row}); err != nil {
		s.logger.Error().Err(err).Msg("failed to move presented row to history")
		return
	}

	identity, _ := row.Identity(s.identity)
	at := s.deps.Clock.Now()
	_ = s.deps.Publisher.Publish(context.Background(), notify.Event{
		Type:        notify.EventRowPresented,
		Identity:    identity,
		Row:         row,
		SlideID:     slideID,
		PresentedAt: at,
	})
	if s.deps.History != nil {
		s.deps.History.Enqueue(identity, row, slideID, at)
	}
}

func (s *Session) current() (*playback.Engine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.engine == nil {
		return nil, models.ErrNotPresenting
	}
	return s.engine, nil
}

func (s *Session) stopEngine() {
	s.mu.Lock()
	e := s.engine
	s.mu.Unlock()
	if e != nil {
		e.Exit()
	}
}

// Exit stops the running presentation
func (s *Session) Exit() error {
	e, err := s.current()
	if err != nil {
		return err
	}
	e.Exit()
	s.logger.Info().Msg("presentation stopped")
	return nil
}

// Frame returns the current frame, or an idle frame when nothing runs
func (s *Session) Frame() models.Frame {
	e, err := s.current()
	if err != nil {
		return models.Frame{Phase: models.PhaseIdle}
	}
	return withDirectURLs(e.Frame())
}

// SessionStatus describes the running presentation and its sync channel
type SessionStatus struct {
	Presenting          bool            `json:"presenting"`
	Phase               models.Phase    `json:"phase"`
	PresenterWindowOpen bool            `json:"presenterWindowOpen"`
	Subscribers         []string        `json:"subscribers"`
	MessagesPosted      uint64          `json:"messagesPosted"`
	EngineInbox         broadcast.Stats `json:"engineInbox"`
}

// Status reports whether a presentation runs and who is on the channel
func (s *Session) Status() SessionStatus {
	st := SessionStatus{
		Phase:          s.Frame().Phase,
		Subscribers:    s.deps.Hub.Subscribers(models.ChannelName),
		MessagesPosted: s.deps.Hub.TotalPosted(),
	}
	_, err := s.current()
	st.Presenting = err == nil
	if s.deps.Windows != nil {
		st.PresenterWindowOpen = s.deps.Windows.Current() != nil
	}
	if stats, err := s.deps.Hub.Stats(models.ChannelName, EngineID); err == nil {
		st.EngineInbox = stats
	}
	return st
}

// Next steps forward in manual mode
func (s *Session) Next() error {
	e, err := s.current()
	if err != nil {
		return err
	}
	return e.Next()
}

// Prev steps back in manual mode
func (s *Session) Prev() error {
	e, err := s.current()
	if err != nil {
		return err
	}
	return e.Prev()
}

// GoTo jumps to a slide index in manual mode
func (s *Session) GoTo(index int) error {
	e, err := s.current()
	if err != nil {
		return err
	}
	return e.GoTo(index)
}

// GoToID jumps to a slide by id in manual mode
func (s *Session) GoToID(id string) error {
	e, err := s.current()
	if err != nil {
		return err
	}
	return e.GoToID(id)
}

// HandleKey forwards a keyboard key to the running presentation
func (s *Session) HandleKey(key string) error {
	e, err := s.current()
	if err != nil {
		return err
	}
	return e.HandleKey(key)
}

// Enqueue appends a row to the presentation queue
func (s *Session) Enqueue(row models.Row) (queue.Snapshot, error) {
	return s.deps.Store.Dispatch(queue.Enqueue{Item: row})
}

// RemoveAt drops the queued row at index
func (s *Session) RemoveAt(index int) (queue.Snapshot, error) {
	return s.deps.Store.Dispatch(queue.RemoveAt{Index: index})
}

// Clear empties the queue and the presented history
func (s *Session) Clear() (queue.Snapshot, error) {
	snap, err := s.deps.Store.Dispatch(queue.Clear{})
	if err != nil {
		return snap, err
	}
	if s.deps.History != nil {
		if err := s.deps.History.Clear(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to clear presented history")
		}
	}
	return snap, nil
}

// ReplaceInput replaces the user editable input rows
func (s *Session) ReplaceInput(rows []models.Row) (queue.Snapshot, error) {
	return s.deps.Store.Dispatch(queue.ReplaceInput{Rows: rows})
}

// DataSources returns the current data sources
func (s *Session) DataSources() queue.Snapshot {
	return s.deps.Store.Snapshot()
}

// RestoreHistory loads previously presented rows so they are not queued again
func (s *Session) RestoreHistory() (int, error) {
	if s.deps.History == nil {
		return 0, nil
	}
	rows, err := s.deps.History.Rows()
	if err != nil {
		return 0, fmt.Errorf("failed to read presented history: %w", err)
	}
	if len(rows) == 0 {
		return 0, nil
	}
	if _, err := s.deps.Store.Dispatch(queue.RestoreHistory{Rows: rows}); err != nil {
		return 0, fmt.Errorf("failed to restore presented history: %w", err)
	}
	s.logger.Info().Int("rows", len(rows)).Msg("restored presented history")
	return len(rows), nil
}
