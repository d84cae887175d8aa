package services

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"deckgenius/internal/broadcast"
	"deckgenius/internal/db"
	"deckgenius/internal/models"
	"deckgenius/internal/notify"
	"deckgenius/internal/playback"
	"deckgenius/internal/queue"
	"deckgenius/internal/synth"
	"deckgenius/internal/window"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

func testDeck() models.Document {
	return models.Document{
		Title:       "Graduation",
		AspectRatio: models.Aspect16x9,
		Slides: []models.Slide{
			{ID: "welcome", Elements: []models.Element{{ID: "w", Type: models.ElementText, Text: "Welcome"}}},
			{ID: "tpl-male", Elements: []models.Element{{ID: "n", Type: models.ElementText, Text: "{name}", DataColumn: "name"}}},
			{ID: "tpl-female", Elements: []models.Element{{ID: "n", Type: models.ElementText, Text: "{name}", DataColumn: "name"}}},
			{ID: "credits"},
		},
	}
}

func writeDeck(t *testing.T, doc models.Document) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "deck.json")
	data, err := json.Marshal(doc)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, e notify.Event) error {
	args := m.Called(ctx, e)
	return args.Error(0)
}

func (m *mockPublisher) Close() error { return nil }

type mockOpener struct {
	mock.Mock
}

func (m *mockOpener) RequestOpen(req models.OpenWindowPayload) error {
	return m.Called(req).Error(0)
}

func (m *mockOpener) WaitPresenter(ctx context.Context) (window.Surface, error) {
	args := m.Called(ctx)
	s, _ := args.Get(0).(window.Surface)
	return s, args.Error(1)
}

type sessionHarness struct {
	session   *Session
	store     *queue.Store
	hub       *broadcast.Hub
	clock     clockwork.FakeClock
	history   *HistoryService
	publisher *mockPublisher
	observer  *broadcast.Subscriber
}

func newSessionHarness(t *testing.T, doc models.Document, windows func(clockwork.Clock) *window.Manager) *sessionHarness {
	t.Helper()
	logger := zerolog.Nop()

	deck, err := NewDeckStore(writeDeck(t, doc), "Untitled", logger)
	require.NoError(t, err)

	database, err := db.Open(":memory:", logger)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	hub := broadcast.NewHub(64)
	t.Cleanup(hub.Close)
	observer, err := hub.Join(models.ChannelName, "observer")
	require.NoError(t, err)

	clock := clockwork.NewFakeClock()
	store := queue.NewStore(queue.Resolver{IdentityField: "Stt", Policy: queue.PolicyFiltered}, logger)
	history := NewHistoryService(database, logger)
	t.Cleanup(history.Close)
	publisher := &mockPublisher{}

	deps := SessionDeps{
		Deck:      deck,
		Store:     store,
		Hub:       hub,
		History:   history,
		Publisher: publisher,
		Clock:     clock,
		Logger:    logger,
	}
	if windows != nil {
		deps.Windows = windows(clock)
	}

	s := NewSession(deps, PlaybackSettings{
		AutoplayDuration:   3 * time.Second,
		TransitionDuration: time.Second,
		Selector:           synth.DefaultSelector(),
	})
	t.Cleanup(s.stopEngine)

	return &sessionHarness{
		session:   s,
		store:     store,
		hub:       hub,
		clock:     clock,
		history:   history,
		publisher: publisher,
		observer:  observer,
	}
}

func (h *sessionHarness) run(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = h.session.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	require.Eventually(t, func() bool {
		return contains(h.hub.Subscribers(models.ChannelName), EngineID)
	}, waitFor, tick)
}

func contains(ids []string, id string) bool {
	for _, s := range ids {
		if s == id {
			return true
		}
	}
	return false
}

// nextOfType drains the observer until a message of type t arrives
func nextOfType(t *testing.T, sub *broadcast.Subscriber, typ models.MessageType) models.Message {
	t.Helper()
	deadline := time.After(waitFor)
	for {
		select {
		case msg := <-sub.Messages():
			if msg.Type == typ {
				return msg
			}
		case <-deadline:
			t.Fatalf("no %s message received", typ)
			return models.Message{}
		}
	}
}

func person(stt int, name string) models.Row {
	return models.Row{"Stt": stt, "name": name}
}

func TestSession_StartEmptyDeckNotifies(t *testing.T) {
	h := newSessionHarness(t, models.Document{Title: "Empty", Slides: []models.Slide{}}, nil)

	_, err := h.session.Start(context.Background(), StartRequest{Mode: models.ModeManual})
	assert.ErrorIs(t, err, models.ErrEmptyPresentation)

	msg := nextOfType(t, h.observer, models.MsgNotify)
	var p models.NotifyPayload
	require.NoError(t, msg.Decode(&p))
	assert.Equal(t, "warning", p.Level)
	assert.Equal(t, models.PhaseIdle, h.session.Frame().Phase)
}

func TestSession_ManualExpandsQueuedRows(t *testing.T) {
	h := newSessionHarness(t, testDeck(), nil)
	_, err := h.session.Enqueue(person(1, "An"))
	require.NoError(t, err)

	f, err := h.session.Start(context.Background(), StartRequest{Mode: models.ModeManual})
	require.NoError(t, err)
	assert.Equal(t, models.PhaseManual, f.Phase)
	assert.Equal(t, 3, f.SlideCount)
	require.NotNil(t, f.Current)
	assert.Equal(t, "An", f.Current.Elements[0].Text)

	msg := nextOfType(t, h.observer, models.MsgFrame)
	var published models.Frame
	require.NoError(t, msg.Decode(&published))
	assert.Equal(t, models.PhaseManual, published.Phase)
}

func TestSession_CommandsFromSurfaces(t *testing.T) {
	h := newSessionHarness(t, testDeck(), nil)
	h.run(t)

	controller, err := h.hub.Join(models.ChannelName, "controller-1")
	require.NoError(t, err)

	_, err = h.session.Start(context.Background(), StartRequest{Mode: models.ModeManual})
	require.NoError(t, err)

	next, _ := models.NewMessage(models.MsgNext, nil)
	controller.Post(next)
	require.Eventually(t, func() bool { return h.session.Frame().Index == 1 }, waitFor, tick)

	jump, _ := models.NewMessage(models.MsgGotoSlide, models.GotoSlidePayload{Index: 3})
	controller.Post(jump)
	require.Eventually(t, func() bool { return h.session.Frame().Index == 3 }, waitFor, tick)

	key, _ := models.NewMessage(models.MsgKey, models.KeyPayload{Key: playback.KeyHome})
	controller.Post(key)
	require.Eventually(t, func() bool { return h.session.Frame().Index == 0 }, waitFor, tick)

	exit, _ := models.NewMessage(models.MsgExit, nil)
	controller.Post(exit)
	require.Eventually(t, func() bool { return h.session.Frame().Phase == models.PhaseIdle }, waitFor, tick)
	assert.ErrorIs(t, h.session.Next(), models.ErrNotPresenting)
}

func TestSession_PushesDataSources(t *testing.T) {
	h := newSessionHarness(t, testDeck(), nil)
	h.run(t)

	_, err := h.session.Enqueue(person(7, "Chi"))
	require.NoError(t, err)

	msg := nextOfType(t, h.observer, models.MsgDataSources)
	var p models.DataSourcesPayload
	require.NoError(t, msg.Decode(&p))
	assert.Equal(t, uint64(1), p.Version)
	assert.NotEmpty(t, p.Sources)
}

func TestSession_AutoplayRecordsPresentedRows(t *testing.T) {
	h := newSessionHarness(t, testDeck(), nil)
	h.publisher.On("Publish", mock.Anything, mock.MatchedBy(func(e notify.Event) bool {
		return e.Type == notify.EventRowPresented && e.Identity == "1"
	})).Return(nil).Once()

	_, err := h.session.Enqueue(person(1, "An"))
	require.NoError(t, err)

	_, err = h.session.Start(context.Background(), StartRequest{Mode: models.ModeAutoplay})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return h.session.Frame().Phase == models.PhasePresenting
	}, waitFor, tick)

	h.clock.BlockUntil(2)
	h.clock.Advance(3 * time.Second)

	require.Eventually(t, func() bool {
		entries, err := h.history.List(0)
		return err == nil && len(entries) == 1
	}, waitFor, tick)
	entries, err := h.history.List(0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, synth.MatchesID(entries[0].SlideID, "tpl-male"))
	assert.NotEqual(t, "tpl-male", entries[0].SlideID)
	assert.Empty(t, h.store.Snapshot().Queue)
	assert.Len(t, h.store.Snapshot().History, 1)
	h.publisher.AssertExpectations(t)

	_, err = h.session.Clear()
	require.NoError(t, err)
	entries, err = h.history.List(0)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSession_ClearDropsRowsRecordedJustBefore(t *testing.T) {
	h := newSessionHarness(t, testDeck(), nil)
	h.publisher.On("Publish", mock.Anything, mock.Anything).Return(nil)

	for i := 1; i <= 20; i++ {
		row := person(i, "An")
		_, err := h.session.Enqueue(row)
		require.NoError(t, err)
		h.session.consume(row, "tpl-male-presented-x")
	}
	_, err := h.session.Clear()
	require.NoError(t, err)
	h.history.Flush()

	rows, err := h.history.Rows()
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.Empty(t, h.store.Snapshot().History)

	n, err := h.session.RestoreHistory()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSession_BlockedWindowFallsBack(t *testing.T) {
	opener := &mockOpener{}
	opener.On("RequestOpen", mock.Anything).Return(errors.New("no controller"))

	h := newSessionHarness(t, testDeck(), func(clock clockwork.Clock) *window.Manager {
		return window.NewManager(window.Config{}, opener, clock, zerolog.Nop())
	})

	f, err := h.session.Start(context.Background(), StartRequest{Mode: models.ModeManual, StartSlideID: "credits"})
	require.NoError(t, err)
	assert.Equal(t, 3, f.Index)

	msg := nextOfType(t, h.observer, models.MsgNotify)
	var p models.NotifyPayload
	require.NoError(t, msg.Decode(&p))
	assert.Equal(t, "warning", p.Level)
	opener.AssertExpectations(t)
}

func TestSession_StartReplacesRunningPresentation(t *testing.T) {
	h := newSessionHarness(t, testDeck(), nil)

	_, err := h.session.Start(context.Background(), StartRequest{Mode: models.ModeManual})
	require.NoError(t, err)
	require.NoError(t, h.session.GoTo(2))

	f, err := h.session.Start(context.Background(), StartRequest{Mode: models.ModeManual})
	require.NoError(t, err)
	assert.Equal(t, 0, f.Index)
	assert.Equal(t, 0, h.session.Frame().Index)

	require.NoError(t, h.session.Exit())
	assert.ErrorIs(t, h.session.Exit(), models.ErrNotPresenting)
}

func TestSession_RestoreHistory(t *testing.T) {
	h := newSessionHarness(t, testDeck(), nil)
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, h.history.Record("1", person(1, "An"), "", now))
	require.NoError(t, h.history.Record("2", person(2, "Bình"), "", now.Add(time.Minute)))
	require.NoError(t, h.history.Record("1", person(1, "An"), "", now.Add(2*time.Minute)))

	n, err := h.session.RestoreHistory()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, h.store.Snapshot().History, 2)

	_, err = h.store.Dispatch(queue.Merge{Rows: []models.Row{person(1, "An"), person(3, "Cúc")}})
	require.NoError(t, err)
	require.Len(t, h.store.Snapshot().Queue, 1)
	name, _ := h.store.Snapshot().Queue[0].String("name")
	assert.Equal(t, "Cúc", name)
}
