package queue

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deckgenius/internal/models"
)

func row(id any, kv ...any) models.Row {
	r := models.Row{"Stt": id}
	for i := 0; i+1 < len(kv); i += 2 {
		r[kv[i].(string)] = kv[i+1]
	}
	return r
}

func ids(t *testing.T, rows []models.Row) []string {
	t.Helper()
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		id, ok := r.Identity("Stt")
		require.True(t, ok)
		out = append(out, id)
	}
	return out
}

func TestResolver_SimplePolicyAppendsNewRowsToInput(t *testing.T) {
	r := Resolver{IdentityField: "Stt", Policy: PolicySimple}
	cur := State{
		Queue:   []models.Row{row(1)},
		History: []models.Row{row(2)},
	}

	res, err := r.Merge([]models.Row{row(1), row(2), row(3), row(4)}, cur)
	require.NoError(t, err)

	assert.Equal(t, []string{"3", "4"}, ids(t, res.Input))
	assert.Equal(t, []string{"1"}, ids(t, res.Queue))
	assert.Equal(t, []string{"2"}, ids(t, res.History))
	assert.Equal(t, 2, res.AddedToInput)
	assert.Equal(t, 0, res.AddedToQueue)
}

func TestResolver_FilteredPolicySplitsByFlag(t *testing.T) {
	r := Resolver{IdentityField: "Stt", Policy: PolicyFiltered, FlagField: "checkin"}

	fetched := []models.Row{
		row(1, "checkin", "true"),
		row(2, "checkin", false),
		row(3, "checkin", true),
		row(4),
		row(5, "checkin", "TRUE"),
	}
	res, err := r.Merge(fetched, State{})
	require.NoError(t, err)

	assert.Equal(t, []string{"1", "3", "5"}, ids(t, res.Queue))
	assert.Equal(t, []string{"2", "4"}, ids(t, res.Input))
}

func TestResolver_FilteredPolicyWithoutFlagQueuesEverything(t *testing.T) {
	r := Resolver{IdentityField: "Stt", Policy: PolicyFiltered}

	res, err := r.Merge([]models.Row{row(7), row(8)}, State{Queue: []models.Row{row(6)}})
	require.NoError(t, err)
	assert.Equal(t, []string{"6", "7", "8"}, ids(t, res.Queue))
	assert.Empty(t, res.Input)
}

func TestResolver_MergeIsAFixedPoint(t *testing.T) {
	policies := []Resolver{
		{IdentityField: "Stt", Policy: PolicySimple},
		{IdentityField: "Stt", Policy: PolicyFiltered, FlagField: "checkin"},
		{IdentityField: "Stt", Policy: PolicyFiltered},
	}
	fetched := []models.Row{
		row(1, "checkin", true), row(2), row(3, "checkin", "true"), row(2), row(9, "checkin", false),
	}
	start := State{Queue: []models.Row{row(5)}, History: []models.Row{row(1)}}

	for _, r := range policies {
		first, err := r.Merge(fetched, start)
		require.NoError(t, err)

		second, err := r.Merge(fetched, first.State)
		require.NoError(t, err)

		assert.Equal(t, 0, second.Added(), "policy %s flag %q", r.Policy, r.FlagField)
		assert.Equal(t, first.State, second.State)
	}
}

func TestResolver_DuplicateIdentitiesInOneBatch(t *testing.T) {
	r := Resolver{IdentityField: "row_number", Policy: PolicyFiltered}
	fetched := []models.Row{{"row_number": 1}, {"row_number": 1}}

	res, err := r.Merge(fetched, State{})
	require.NoError(t, err)
	assert.Len(t, res.Queue, 1)
}

func TestResolver_NumericAndStringIdentitiesMatch(t *testing.T) {
	rows, err := models.DecodeRows([]byte(`[{"Stt": 1}, {"Stt": "2"}, {"Stt": 3.0}]`))
	require.NoError(t, err)

	r := Resolver{IdentityField: "Stt", Policy: PolicySimple}
	cur := State{Queue: []models.Row{{"Stt": "1"}}, History: []models.Row{{"Stt": json.Number("2")}, {"Stt": 3}}}

	res, err := r.Merge(rows, cur)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Added())
}

func TestResolver_MissingIdentityRejectsBatch(t *testing.T) {
	r := Resolver{IdentityField: "Stt", Policy: PolicySimple}
	cur := State{Input: []models.Row{row(1)}}

	res, err := r.Merge([]models.Row{row(2), {"name": "no id"}, row(3)}, cur)
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrMalformedFeedData)
	assert.Empty(t, res.Input)

	_, err = r.Merge([]models.Row{{"Stt": "  "}}, cur)
	assert.ErrorIs(t, err, models.ErrMalformedFeedData)
}

func TestResolver_DoesNotAliasCallerSlices(t *testing.T) {
	r := Resolver{IdentityField: "Stt", Policy: PolicyFiltered}
	queue := make([]models.Row, 1, 8)
	queue[0] = row(1)
	cur := State{Queue: queue}

	_, err := r.Merge([]models.Row{row(2)}, cur)
	require.NoError(t, err)

	extended := queue[:2]
	assert.Nil(t, extended[1])
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, PolicySimple, p)

	p, err = ParsePolicy("filtered")
	require.NoError(t, err)
	assert.Equal(t, PolicyFiltered, p)

	_, err = ParsePolicy("bogus")
	assert.Error(t, err)
}
