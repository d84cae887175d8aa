package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deckgenius/internal/models"
)

var testResolver = Resolver{IdentityField: "Stt", Policy: PolicySimple}

func TestReduce_EnqueueRemovesFromInput(t *testing.T) {
	s := State{Input: []models.Row{row(1), row(2)}}

	next, changed, err := Reduce(s, Enqueue{Item: row(2)}, testResolver)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, []string{"1"}, ids(t, next.Input))
	assert.Equal(t, []string{"2"}, ids(t, next.Queue))

	assert.Len(t, s.Input, 2, "original state must not change")
}

func TestReduce_RemoveAtOutOfRangeIsNoop(t *testing.T) {
	s := State{Queue: []models.Row{row(1), row(2)}}

	for _, idx := range []int{99, 2, -1} {
		next, changed, err := Reduce(s, RemoveAt{Index: idx}, testResolver)
		require.NoError(t, err)
		assert.False(t, changed)
		assert.Len(t, next.Queue, 2)
	}

	next, changed, err := Reduce(s, RemoveAt{Index: 0}, testResolver)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, []string{"2"}, ids(t, next.Queue))
}

func TestReduce_ClearEmptiesEverything(t *testing.T) {
	s := State{Input: []models.Row{row(1)}, Queue: []models.Row{row(2)}, History: []models.Row{row(3)}}

	next, changed, err := Reduce(s, Clear{}, testResolver)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Empty(t, next.Input)
	assert.Empty(t, next.Queue)
	assert.Empty(t, next.History)

	_, changed, _ = Reduce(next, Clear{}, testResolver)
	assert.False(t, changed)
}

func TestReduce_ConsumeHeadMatchesByIdentity(t *testing.T) {
	s := State{Queue: []models.Row{row(1), row(2), row(3)}}

	// A poller append may have reordered nothing, but the consumer only knows
	// the row it showed, not its position.
	next, changed, err := Reduce(s, ConsumeHead{Item: row(2, "name", "stale copy")}, testResolver)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, []string{"1", "3"}, ids(t, next.Queue))
	assert.Equal(t, []string{"2"}, ids(t, next.History))

	_, changed, _ = Reduce(next, ConsumeHead{Item: row(2)}, testResolver)
	assert.False(t, changed, "consuming an already consumed row is a no-op")
}

func TestReduce_ConsumeHeadWithoutIdentityUsesEquality(t *testing.T) {
	item := models.Row{"name": "walk-in"}
	s := State{Queue: []models.Row{{"name": "other"}, item}}

	next, changed, err := Reduce(s, ConsumeHead{Item: models.Row{"name": "walk-in"}}, testResolver)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Len(t, next.Queue, 1)
	assert.Len(t, next.History, 1)
}

func TestReduce_MergeErrorLeavesStateUntouched(t *testing.T) {
	s := State{Queue: []models.Row{row(1)}}

	next, changed, err := Reduce(s, Merge{Rows: []models.Row{{"x": 1}}}, testResolver)
	assert.ErrorIs(t, err, models.ErrMalformedFeedData)
	assert.False(t, changed)
	assert.Equal(t, s, next)
}

func TestReduce_ReplaceInputAndRestoreHistory(t *testing.T) {
	s := State{Input: []models.Row{row(1)}, History: []models.Row{row(9)}}

	next, changed, err := Reduce(s, ReplaceInput{Rows: []models.Row{row(4), row(5)}}, testResolver)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, []string{"4", "5"}, ids(t, next.Input))

	next, changed, err = Reduce(next, RestoreHistory{Rows: []models.Row{row(7)}}, testResolver)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, []string{"7", "9"}, ids(t, next.History))
}
