// Package window manages the secondary presenter window of a presentation.
//
// The server cannot open browser windows itself. It asks the controller
// surface to open one, then waits for a presenter surface to connect back.
package window

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"deckgenius/internal/models"
)

const (
	DefaultPollInterval = 500 * time.Millisecond
	DefaultOpenTimeout  = 5 * time.Second

	// WindowName is the target name the controller opens the presenter under
	WindowName     = "deckgenius-presenter"
	windowFeatures = "width=1024,height=768,menubar=no,toolbar=no,location=no,status=no"
)

// Surface is one connected presenter window
type Surface interface {
	ID() string
	Send(msg models.Message) error
	Closed() bool
	Close() error
}

// Opener reaches the controller surface and the presenters that connect back
type Opener interface {
	RequestOpen(req models.OpenWindowPayload) error
	WaitPresenter(ctx context.Context) (Surface, error)
}

// Config controls window handling
type Config struct {
	PollInterval time.Duration
	OpenTimeout  time.Duration
	PresenterURL string
	Mount        models.MountPayload
}

// Manager opens at most one presenter window at a time
type Manager struct {
	cfg    Config
	opener Opener
	clock  clockwork.Clock
	logger zerolog.Logger

	mu      sync.Mutex
	current *Handle
}

// NewManager creates a manager. A nil clock uses the real one.
func NewManager(cfg Config, opener Opener, clock clockwork.Clock, logger zerolog.Logger) *Manager {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = DefaultOpenTimeout
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Manager{
		cfg:    cfg,
		opener: opener,
		clock:  clock,
		logger: logger.With().Str("component", "window").Logger(),
	}
}

// Open asks for a presenter window and waits for it to attach. onClose runs
// once if the window is closed from the outside; it does not run for Close.
// A window that never attaches yields ErrSecondaryWindowBlocked.
func (m *Manager) Open(ctx context.Context, mount models.MountPayload, onClose func()) (*Handle, error) {
	m.Close()

	req := models.OpenWindowPayload{Name: WindowName, Features: windowFeatures, URL: m.cfg.PresenterURL}
	if err := m.opener.RequestOpen(req); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrSecondaryWindowBlocked, err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, m.cfg.OpenTimeout)
	defer cancel()

	surface, err := m.opener.WaitPresenter(waitCtx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			m.logger.Warn().Dur("timeout", m.cfg.OpenTimeout).Msg("presenter window did not attach")
			return nil, models.ErrSecondaryWindowBlocked
		}
		return nil, fmt.Errorf("failed to wait for presenter window: %w", err)
	}

	msg, err := models.NewMessage(models.MsgMount, m.mountFor(mount))
	if err != nil {
		return nil, err
	}
	if err := surface.Send(msg); err != nil {
		_ = surface.Close()
		return nil, fmt.Errorf("failed to mount presenter window: %w", err)
	}

	h := &Handle{
		surface: surface,
		onClose: onClose,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
		logger:  m.logger.With().Str("surface", surface.ID()).Logger(),
	}
	h.release = func() { m.forget(h) }

	m.mu.Lock()
	m.current = h
	m.mu.Unlock()

	go h.watch(m.clock.NewTicker(m.cfg.PollInterval))
	m.logger.Info().Str("surface", surface.ID()).Msg("presenter window attached")
	return h, nil
}

func (m *Manager) mountFor(mount models.MountPayload) models.MountPayload {
	if mount.Title == "" {
		mount.Title = m.cfg.Mount.Title
	}
	if len(mount.Stylesheets) == 0 {
		mount.Stylesheets = m.cfg.Mount.Stylesheets
	}
	if mount.AspectRatio == "" {
		mount.AspectRatio = m.cfg.Mount.AspectRatio
	}
	if mount.Width == 0 || mount.Height == 0 {
		mount.Width, mount.Height = mount.AspectRatio.Dimensions()
	}
	return mount
}

// Current returns the open handle, or nil
func (m *Manager) Current() *Handle {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Close force-closes the current window, if any
func (m *Manager) Close() {
	m.mu.Lock()
	h := m.current
	m.current = nil
	m.mu.Unlock()
	if h != nil {
		h.Close()
	}
}

func (m *Manager) forget(h *Handle) {
	m.mu.Lock()
	if m.current == h {
		m.current = nil
	}
	m.mu.Unlock()
}

// Handle is an attached presenter window
type Handle struct {
	surface Surface
	onClose func()
	release func()
	logger  zerolog.Logger

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// Surface returns the presenter surface
func (h *Handle) Surface() Surface {
	return h.surface
}

// Done is closed once the window is gone and polling has stopped
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

func (h *Handle) watch(ticker clockwork.Ticker) {
	defer close(h.done)
	defer ticker.Stop()

	for {
		select {
		case <-h.stop:
			return
		case <-ticker.Chan():
			if !h.surface.Closed() {
				continue
			}
			h.logger.Info().Msg("presenter window closed")
			h.release()
			if h.onClose != nil {
				h.onClose()
			}
			return
		}
	}
}

// Close stops polling and closes the window if it is still open. It waits for
// the poll goroutine, so it must not be called from onClose.
func (h *Handle) Close() {
	h.stopOnce.Do(func() {
		close(h.stop)
	})
	<-h.done
	h.release()
	if !h.surface.Closed() {
		if err := h.surface.Close(); err != nil {
			h.logger.Warn().Err(err).Msg("failed to close presenter window")
		}
	}
}
