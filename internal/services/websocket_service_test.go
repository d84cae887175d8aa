package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deckgenius/internal/broadcast"
	"deckgenius/internal/models"
	"deckgenius/internal/window"
)

type wsFixture struct {
	hub     *broadcast.Hub
	service *WebSocketService
	url     string
}

func newWSFixture(t *testing.T) *wsFixture {
	t.Helper()
	hub := broadcast.NewHub(16)
	service := NewWebSocketService(hub, models.ChannelName, zerolog.Nop())
	server := httptest.NewServer(http.HandlerFunc(service.ServeWS))
	t.Cleanup(func() {
		service.CloseAll()
		server.Close()
		hub.Close()
	})
	return &wsFixture{
		hub:     hub,
		service: service,
		url:     "ws" + strings.TrimPrefix(server.URL, "http"),
	}
}

func (f *wsFixture) dial(t *testing.T, role Role) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(f.url+"?role="+string(role), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.Eventually(t, func() bool {
		return len(f.service.Clients(role)) > 0
	}, waitFor, tick)
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) models.Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(waitFor)))
	var msg models.Message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestWebSocket_BridgesBothDirections(t *testing.T) {
	f := newWSFixture(t)
	observer, err := f.hub.Join(models.ChannelName, "observer")
	require.NoError(t, err)

	conn := f.dial(t, RoleController)

	next, _ := models.NewMessage(models.MsgNext, nil)
	require.NoError(t, conn.WriteJSON(next))
	select {
	case msg := <-observer.Messages():
		assert.Equal(t, models.MsgNext, msg.Type)
	case <-time.After(waitFor):
		t.Fatal("inbound frame was not posted to the channel")
	}

	note, _ := models.NewMessage(models.MsgNotify, models.NotifyPayload{Level: "info", Message: "hello"})
	observer.Post(note)
	msg := readMessage(t, conn)
	assert.Equal(t, models.MsgNotify, msg.Type)
	var p models.NotifyPayload
	require.NoError(t, msg.Decode(&p))
	assert.Equal(t, "hello", p.Message)
}

func TestWebSocket_RequestOpenNeedsController(t *testing.T) {
	f := newWSFixture(t)

	err := f.service.RequestOpen(models.OpenWindowPayload{Name: window.WindowName})
	assert.ErrorIs(t, err, ErrNoController)

	conn := f.dial(t, RoleController)
	require.NoError(t, f.service.RequestOpen(models.OpenWindowPayload{Name: window.WindowName, URL: "/present"}))

	msg := readMessage(t, conn)
	assert.Equal(t, models.MsgOpenWindow, msg.Type)
	var p models.OpenWindowPayload
	require.NoError(t, msg.Decode(&p))
	assert.Equal(t, "/present", p.URL)
}

func TestWebSocket_WaitPresenter(t *testing.T) {
	f := newWSFixture(t)

	got := make(chan window.Surface, 1)
	go func() {
		s, err := f.service.WaitPresenter(context.Background())
		if err == nil {
			got <- s
		}
	}()

	conn := f.dial(t, RolePresenter)

	var surface window.Surface
	select {
	case surface = <-got:
	case <-time.After(waitFor):
		t.Fatal("presenter was not handed over")
	}
	assert.True(t, strings.HasPrefix(surface.ID(), "presenter-"))

	mount, _ := models.NewMessage(models.MsgMount, models.MountPayload{Title: "Deck"})
	require.NoError(t, surface.Send(mount))
	assert.Equal(t, models.MsgMount, readMessage(t, conn).Type)

	require.NoError(t, surface.Close())
	assert.True(t, surface.Closed())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(waitFor)))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure))
	require.Eventually(t, func() bool {
		return len(f.service.Clients(RolePresenter)) == 0
	}, waitFor, tick)
}

func TestWebSocket_WaitPresenterCancelled(t *testing.T) {
	f := newWSFixture(t)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := f.service.WaitPresenter(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
