package services

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deckgenius/internal/db"
)

func newHistoryService(t *testing.T) *HistoryService {
	t.Helper()
	database, err := db.Open(":memory:", zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	hs := NewHistoryService(database, zerolog.Nop())
	t.Cleanup(hs.Close)
	return hs
}

func TestHistoryService_RecordAndList(t *testing.T) {
	hs := newHistoryService(t)
	start := time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)

	for i, name := range []string{"An", "Bình", "Chi"} {
		require.NoError(t, hs.Record(string(rune('1'+i)), person(i+1, name), "tpl-presented-x", start.Add(time.Duration(i)*time.Minute)))
	}

	all, err := hs.List(0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	name, _ := all[0].Row.String("name")
	assert.Equal(t, "Chi", name)
	assert.Equal(t, "3", all[0].Identity)
	assert.Equal(t, "tpl-presented-x", all[0].SlideID)
	assert.True(t, all[0].PresentedAt.Equal(start.Add(2*time.Minute)))

	latest, err := hs.List(1)
	require.NoError(t, err)
	assert.Len(t, latest, 1)
}

func TestHistoryService_RowsOldestFirstDeduplicated(t *testing.T) {
	hs := newHistoryService(t)
	at := time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)

	require.NoError(t, hs.Record("1", person(1, "An"), "", at))
	require.NoError(t, hs.Record("2", person(2, "Bình"), "", at))
	require.NoError(t, hs.Record("1", person(1, "An"), "", at))

	rows, err := hs.Rows()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	first, _ := rows[0].String("name")
	second, _ := rows[1].String("name")
	assert.Equal(t, []string{"An", "Bình"}, []string{first, second})
}

func TestHistoryService_Clear(t *testing.T) {
	hs := newHistoryService(t)
	require.NoError(t, hs.Record("1", person(1, "An"), "", time.Now()))
	require.NoError(t, hs.Clear())

	rows, err := hs.Rows()
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestHistoryService_EnqueueAppliesInOrder(t *testing.T) {
	hs := newHistoryService(t)
	at := time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)

	hs.Enqueue("1", person(1, "An"), "tpl-presented-a", at)
	require.NoError(t, hs.Clear())
	hs.Enqueue("2", person(2, "Bình"), "tpl-presented-b", at)
	hs.Flush()

	entries, err := hs.List(0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "2", entries[0].Identity)
	assert.Equal(t, "tpl-presented-b", entries[0].SlideID)
}

func TestHistoryService_CloseDrainsPendingRows(t *testing.T) {
	database, err := db.Open(":memory:", zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	hs := NewHistoryService(database, zerolog.Nop())

	for i := 1; i <= 10; i++ {
		hs.Enqueue(string(rune('0'+i)), person(i, "An"), "", time.Now())
	}
	hs.Close()
	hs.Close()

	entries, err := hs.List(0)
	require.NoError(t, err)
	assert.Len(t, entries, 10)

	hs.Enqueue("late", person(99, "Late"), "", time.Now())
	require.NoError(t, hs.Clear())
	entries, err = hs.List(0)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
