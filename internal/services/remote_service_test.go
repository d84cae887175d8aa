package services

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deckgenius/internal/db"
	"deckgenius/internal/playback"
)

func newRemoteService(t *testing.T) *RemoteService {
	t.Helper()
	database, err := db.Open(":memory:", zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return NewRemoteService(database, zerolog.Nop())
}

func TestKeyForButton(t *testing.T) {
	tests := []struct {
		button string
		key    string
		ok     bool
	}{
		{"", playback.KeyRight, true},
		{"1", playback.KeyRight, true},
		{"Next", playback.KeyRight, true},
		{"2", playback.KeyLeft, true},
		{" prev ", playback.KeyLeft, true},
		{"3", playback.KeyEscape, true},
		{"home", playback.KeyHome, true},
		{"last", playback.KeyEnd, true},
		{"volume", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.button, func(t *testing.T) {
			key, ok := KeyForButton(tt.button)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.key, key)
		})
	}
}

func TestRemoteService_RegisterIsIdempotent(t *testing.T) {
	rs := newRemoteService(t)

	first, err := rs.Register("aa:bb:cc:dd:ee:ff", "Stage left")
	require.NoError(t, err)
	assert.Equal(t, "AABBCCDDEEFF", first.MACAddress)
	assert.Equal(t, "remote_ddeeff", first.ID)
	assert.True(t, first.IsActive)

	second, err := rs.Register("AA-BB-CC-DD-EE-FF", "renamed")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "Stage left", second.Name)

	_, err = rs.Register("abc", "")
	assert.Error(t, err)
}

func TestRemoteService_RecordPress(t *testing.T) {
	rs := newRemoteService(t)

	remote, err := rs.RecordPress("11:22:33:44:55:66")
	require.NoError(t, err)
	assert.Equal(t, 1, remote.PressCount)
	assert.False(t, remote.LastPress.IsZero())

	remote, err = rs.RecordPress("112233445566")
	require.NoError(t, err)
	assert.Equal(t, 2, remote.PressCount)

	stored, err := rs.GetByMAC("11:22:33:44:55:66")
	require.NoError(t, err)
	assert.Equal(t, 2, stored.PressCount)

	require.NoError(t, rs.SetActive("112233445566", false))
	_, err = rs.RecordPress("112233445566")
	assert.ErrorIs(t, err, ErrRemoteInactive)
}

func TestRemoteService_ListAndDelete(t *testing.T) {
	rs := newRemoteService(t)

	_, err := rs.Register("AABBCCDDEEFF", "one")
	require.NoError(t, err)
	_, err = rs.Register("001122334455", "two")
	require.NoError(t, err)

	remotes, err := rs.List()
	require.NoError(t, err)
	assert.Len(t, remotes, 2)

	require.NoError(t, rs.Delete("aa:bb:cc:dd:ee:ff"))
	assert.ErrorIs(t, rs.Delete("aa:bb:cc:dd:ee:ff"), ErrRemoteNotFound)
	_, err = rs.GetByMAC("AABBCCDDEEFF")
	assert.ErrorIs(t, err, ErrRemoteNotFound)
	assert.ErrorIs(t, rs.SetActive("AABBCCDDEEFF", true), ErrRemoteNotFound)

	remotes, err = rs.List()
	require.NoError(t, err)
	require.Len(t, remotes, 1)
	assert.Equal(t, "two", remotes[0].Name)
}
