package services

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"deckgenius/internal/broadcast"
	"deckgenius/internal/models"
	"deckgenius/internal/window"
)

// Role tells what a connected browser surface is
type Role string

const (
	RoleController Role = "controller"
	RolePresenter  Role = "presenter"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 << 10
)

// ErrNoController is returned when no controller surface can open a window
var ErrNoController = errors.New("no controller surface connected")

var connectedSurfaces = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Name: "deckgenius_surfaces_connected",
	Help: "Connected browser surfaces by role",
}, []string{"role"})

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// WebSocketService bridges browser surfaces onto the broadcast hub. Every
// inbound frame is posted to the channel on behalf of its surface, and every
// message the surface's subscriber receives is written back.
type WebSocketService struct {
	hub     *broadcast.Hub
	channel string
	logger  zerolog.Logger

	mu      sync.Mutex
	clients map[string]*Client
	waiters map[chan *Client]struct{}
}

// NewWebSocketService creates the bridge for channel
func NewWebSocketService(hub *broadcast.Hub, channel string, logger zerolog.Logger) *WebSocketService {
	return &WebSocketService{
		hub:     hub,
		channel: channel,
		logger:  logger.With().Str("component", "websocket").Logger(),
		clients: make(map[string]*Client),
		waiters: make(map[chan *Client]struct{}),
	}
}

// Client is one connected surface. It implements window.Surface.
type Client struct {
	id      string
	role    Role
	conn    *websocket.Conn
	sub     *broadcast.Subscriber
	service *WebSocketService

	closed    atomic.Bool
	closeOnce sync.Once
	done      chan struct{}
}

var _ window.Surface = (*Client)(nil)

func (c *Client) ID() string   { return c.id }
func (c *Client) Role() Role   { return c.role }
func (c *Client) Closed() bool { return c.closed.Load() }

// Send queues msg for this surface only
func (c *Client) Send(msg models.Message) error {
	if c.Closed() {
		return broadcast.ErrSubscriberNotFound
	}
	return c.service.hub.SendTo(c.service.channel, c.id, msg)
}

// Close ends the connection. The presenter page closes its window when its
// socket is closed by the server.
func (c *Client) Close() error {
	c.shutdown()
	<-c.done
	return nil
}

func (c *Client) shutdown() {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.sub.Leave()
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "presentation closed"),
			time.Now().Add(writeWait))
		_ = c.conn.Close()
	})
}

// ServeWS upgrades the request and runs the surface until it disconnects.
// The role comes from the "role" query parameter and defaults to controller.
func (s *WebSocketService) ServeWS(w http.ResponseWriter, r *http.Request) {
	role := Role(r.URL.Query().Get("role"))
	if role != RolePresenter {
		role = RoleController
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	id := string(role) + "-" + uuid.NewString()
	sub, err := s.hub.Join(s.channel, id)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to join channel")
		_ = conn.Close()
		return
	}

	c := &Client{id: id, role: role, conn: conn, sub: sub, service: s, done: make(chan struct{})}
	s.register(c)
	s.logger.Info().Str("surface", id).Msg("surface connected")

	go c.writePump()
	c.readPump()
}

func (s *WebSocketService) register(c *Client) {
	s.mu.Lock()
	s.clients[c.id] = c
	var waiting []chan *Client
	if c.role == RolePresenter {
		for ch := range s.waiters {
			waiting = append(waiting, ch)
			delete(s.waiters, ch)
		}
	}
	s.mu.Unlock()

	connectedSurfaces.WithLabelValues(string(c.role)).Inc()
	for _, ch := range waiting {
		ch <- c
	}
}

func (s *WebSocketService) unregister(c *Client) {
	s.mu.Lock()
	_, ok := s.clients[c.id]
	delete(s.clients, c.id)
	s.mu.Unlock()
	if ok {
		connectedSurfaces.WithLabelValues(string(c.role)).Dec()
	}
}

func (c *Client) readPump() {
	defer func() {
		c.shutdown()
		c.service.unregister(c)
		c.service.logger.Info().Str("surface", c.id).Msg("surface disconnected")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg models.Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.service.logger.Debug().Err(err).Str("surface", c.id).Msg("websocket read error")
			}
			return
		}
		if msg.Type == "" {
			continue
		}
		c.sub.Post(msg)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.shutdown()
		close(c.done)
	}()

	for {
		select {
		case msg, ok := <-c.sub.Messages():
			if !ok {
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Clients returns the connected surfaces of a role
func (s *WebSocketService) Clients(role Role) []*Client {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Client
	for _, c := range s.clients {
		if c.role == role && !c.Closed() {
			out = append(out, c)
		}
	}
	return out
}

// RequestOpen asks every controller surface to open the presenter window
func (s *WebSocketService) RequestOpen(req models.OpenWindowPayload) error {
	controllers := s.Clients(RoleController)
	if len(controllers) == 0 {
		return ErrNoController
	}
	msg, err := models.NewMessage(models.MsgOpenWindow, req)
	if err != nil {
		return err
	}
	sent := 0
	for _, c := range controllers {
		if err := c.Send(msg); err == nil {
			sent++
		}
	}
	if sent == 0 {
		return ErrNoController
	}
	return nil
}

// WaitPresenter returns a connected presenter surface, waiting for one to
// connect if there is none.
func (s *WebSocketService) WaitPresenter(ctx context.Context) (window.Surface, error) {
	ch := make(chan *Client, 1)

	s.mu.Lock()
	for _, c := range s.clients {
		if c.role == RolePresenter && !c.Closed() {
			s.mu.Unlock()
			return c, nil
		}
	}
	s.waiters[ch] = struct{}{}
	s.mu.Unlock()

	select {
	case c := <-ch:
		return c, nil
	case <-ctx.Done():
		s.mu.Lock()
		delete(s.waiters, ch)
		s.mu.Unlock()
		// a presenter may have been handed over concurrently
		select {
		case c := <-ch:
			return c, nil
		default:
		}
		return nil, ctx.Err()
	}
}

// CloseAll disconnects every surface
func (s *WebSocketService) CloseAll() {
	s.mu.Lock()
	clients := make([]*Client, 0, len(s.clients))
	for _, c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()
	for _, c := range clients {
		c.shutdown()
	}
}
