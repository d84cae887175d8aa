package broadcast

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deckgenius/internal/models"
)

func gotoMsg(t *testing.T, idx int) models.Message {
	t.Helper()
	msg, err := models.NewMessage(models.MsgGotoSlide, models.GotoSlidePayload{Index: idx})
	require.NoError(t, err)
	return msg
}

func TestHub_PostExcludesSender(t *testing.T) {
	hub := NewHub(4)
	defer hub.Close()

	main, err := hub.Join(models.ChannelName, "main")
	require.NoError(t, err)
	presenter, err := hub.Join(models.ChannelName, "presenter")
	require.NoError(t, err)

	delivered := main.Post(gotoMsg(t, 2))
	assert.Equal(t, 1, delivered)

	select {
	case msg := <-presenter.Messages():
		var p models.GotoSlidePayload
		require.NoError(t, msg.Decode(&p))
		assert.Equal(t, 2, p.Index)
	default:
		t.Fatal("presenter did not receive the message")
	}

	select {
	case <-main.Messages():
		t.Fatal("sender received its own message")
	default:
	}
}

func TestHub_ChannelsAreIsolated(t *testing.T) {
	hub := NewHub(4)
	defer hub.Close()

	a, _ := hub.Join("session-a", "x")
	b, _ := hub.Join("session-b", "y")

	assert.Equal(t, 0, a.Post(gotoMsg(t, 1)))
	assert.Len(t, b.Messages(), 0)
}

func TestHub_MessagesBeforeJoinAreLost(t *testing.T) {
	hub := NewHub(4)
	defer hub.Close()

	assert.Equal(t, 0, hub.Post(models.ChannelName, "engine", gotoMsg(t, 0)))

	late, err := hub.Join(models.ChannelName, "late")
	require.NoError(t, err)
	assert.Len(t, late.Messages(), 0)
}

func TestHub_FullInboxDropsWithoutBlocking(t *testing.T) {
	hub := NewHub(1)
	defer hub.Close()

	slow, _ := hub.Join(models.ChannelName, "slow")

	hub.Post(models.ChannelName, "engine", gotoMsg(t, 0))
	hub.Post(models.ChannelName, "engine", gotoMsg(t, 1))
	hub.Post(models.ChannelName, "engine", gotoMsg(t, 2))

	stats, err := hub.Stats(models.ChannelName, "slow")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), stats.Sent)
	assert.Equal(t, uint64(2), stats.Dropped)
	assert.Len(t, slow.Messages(), 1)
	assert.Equal(t, uint64(3), hub.TotalPosted())
}

func TestHub_JoinLeave(t *testing.T) {
	hub := NewHub(2)

	sub, err := hub.Join(models.ChannelName, "dup")
	require.NoError(t, err)
	_, err = hub.Join(models.ChannelName, "dup")
	assert.ErrorIs(t, err, ErrSubscriberExists)

	anon, err := hub.Join(models.ChannelName, "")
	require.NoError(t, err)
	assert.NotEmpty(t, anon.ID())
	assert.Len(t, hub.Subscribers(models.ChannelName), 2)

	sub.Leave()
	sub.Leave()
	_, open := <-sub.Messages()
	assert.False(t, open)

	hub.Close()
	_, open = <-anon.Messages()
	assert.False(t, open)

	_, err = hub.Join(models.ChannelName, "after")
	assert.ErrorIs(t, err, ErrHubClosed)
	assert.Equal(t, 0, hub.Post(models.ChannelName, "x", gotoMsg(t, 0)))
	anon.Leave()
}

func TestHub_SendTo(t *testing.T) {
	hub := NewHub(1)

	presenter, err := hub.Join(models.ChannelName, "presenter")
	require.NoError(t, err)
	other, err := hub.Join(models.ChannelName, "controller")
	require.NoError(t, err)

	require.NoError(t, hub.SendTo(models.ChannelName, "presenter", gotoMsg(t, 1)))
	assert.ErrorIs(t, hub.SendTo(models.ChannelName, "presenter", gotoMsg(t, 2)), ErrInboxFull)
	assert.ErrorIs(t, hub.SendTo(models.ChannelName, "nobody", gotoMsg(t, 3)), ErrSubscriberNotFound)

	assert.Len(t, presenter.Messages(), 1)
	assert.Len(t, other.Messages(), 0)

	hub.Close()
	assert.ErrorIs(t, hub.SendTo(models.ChannelName, "presenter", gotoMsg(t, 4)), ErrHubClosed)
}
