package synth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deckgenius/internal/models"
)

func fixedToken(tok string) TokenFunc {
	return func() string { return tok }
}

func templateSlide() models.Slide {
	size := 80.0
	return models.Slide{
		ID:              "tpl",
		BackgroundColor: "#FFFFFF",
		BackgroundSize:  &size,
		Elements: []models.Element{
			{ID: "title", Type: models.ElementText, Text: "Static title"},
			{ID: "name", Type: models.ElementText, Text: "{name}", DataSourceID: models.QueueSourceID, DataColumn: "Họ tên"},
			{ID: "score", Type: models.ElementText, Text: "{score}", DataSourceID: models.QueueSourceID, DataColumn: "score"},
			{ID: "photo", Type: models.ElementImage, Src: "placeholder.png", DataSourceID: models.QueueSourceID, DataColumn: "photo"},
		},
	}
}

func TestSynthesize_FillsBoundElements(t *testing.T) {
	s := New(fixedToken("abc"))
	row := models.Row{"Stt": 1, "Họ tên": "Nguyễn Văn A", "score": 9.5, "photo": "https://x/y.png"}

	out := s.Synthesize(templateSlide(), row, Provenance{DataSourceID: models.QueueSourceID, RowIndex: 3})

	assert.Equal(t, "tpl-presented-abc", out.ID)
	assert.Equal(t, models.QueueSourceID, out.DataSourceID)
	require.NotNil(t, out.DataRowIndex)
	assert.Equal(t, 3, *out.DataRowIndex)

	assert.Equal(t, "Static title", out.Elements[0].Text)
	assert.Equal(t, "Nguyễn Văn A", out.Elements[1].Text)
	assert.Equal(t, "9.5", out.Elements[2].Text)
	assert.Equal(t, "https://x/y.png", out.Elements[3].Src)
}

func TestSynthesize_MissingColumnKeepsPlaceholder(t *testing.T) {
	s := New(fixedToken("1"))
	out := s.Synthesize(templateSlide(), models.Row{"Stt": 1, "score": nil}, Provenance{})

	assert.Equal(t, "{name}", out.Elements[1].Text)
	assert.Equal(t, "{score}", out.Elements[2].Text)
	assert.Equal(t, "placeholder.png", out.Elements[3].Src)
}

func TestSynthesize_StringForms(t *testing.T) {
	s := New(fixedToken("1"))
	cases := []struct {
		value any
		want  string
	}{
		{42, "42"},
		{42.0, "42"},
		{true, "true"},
		{"  padded ", "  padded "},
	}
	for _, tc := range cases {
		out := s.Synthesize(templateSlide(), models.Row{"score": tc.value}, Provenance{})
		assert.Equal(t, tc.want, out.Elements[2].Text)
	}
}

func TestSynthesize_NeverMutatesTemplate(t *testing.T) {
	tpl := templateSlide()
	before := tpl.Clone()
	s := New(nil)

	a := s.Synthesize(tpl, models.Row{"Họ tên": "A"}, Provenance{})
	b := s.Synthesize(tpl, models.Row{"Họ tên": "B"}, Provenance{})

	assert.Equal(t, before, tpl)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, "A", a.Elements[1].Text)
	assert.Equal(t, "B", b.Elements[1].Text)

	*a.BackgroundSize = 10
	a.Elements[0].Text = "changed"
	assert.Equal(t, 80.0, *tpl.BackgroundSize)
	assert.Equal(t, "Static title", tpl.Elements[0].Text)
}

func TestExpand(t *testing.T) {
	welcome := models.Slide{ID: "welcome", Elements: []models.Element{{ID: "t", Type: models.ElementText, Text: "Hi"}}}
	outro := models.Slide{ID: "outro"}
	deck := []models.Slide{welcome, templateSlide(), outro}

	t.Run("queue rows become slides before the static ones", func(t *testing.T) {
		queue := []models.Row{{"Họ tên": "A"}, {"Họ tên": "B"}}
		out := Expand(deck, queue)

		require.Len(t, out, 4)
		assert.Equal(t, "tpl-presented-0", out[0].ID)
		assert.Equal(t, "A", out[0].Elements[1].Text)
		assert.Equal(t, "tpl-presented-1", out[1].ID)
		assert.Equal(t, "welcome", out[2].ID)
		assert.Equal(t, "outro", out[3].ID)
	})

	t.Run("empty queue keeps deck", func(t *testing.T) {
		out := Expand(deck, nil)
		require.Len(t, out, 3)
		assert.Equal(t, "tpl", out[1].ID)
	})
}

func TestFindSlide(t *testing.T) {
	slides := []models.Slide{{ID: "tpl-presented-0"}, {ID: "tpl-presented-1"}, {ID: "tpl"}}

	assert.Equal(t, 2, FindSlide(slides, "tpl"), "exact match wins over prefix")
	assert.Equal(t, 1, FindSlide(slides, "tpl-presented-1"))
	assert.Equal(t, 0, FindSlide(slides[:2], "tpl"))
	assert.Equal(t, -1, FindSlide(slides, "nope"))
	assert.Equal(t, -1, FindSlide(slides, ""))
}

func TestFindSlide_IgnoresUnrelatedIDSharingPrefix(t *testing.T) {
	slides := []models.Slide{{ID: "s10"}, {ID: "s1-presented-0"}}

	assert.Equal(t, 1, FindSlide(slides, "s1"))
	assert.False(t, MatchesID("s10", "s1"))
	assert.True(t, MatchesID("s1-presented-0", "s1"))
	assert.True(t, MatchesID("s1", "s1"))
}

func TestSelector(t *testing.T) {
	slides := []models.Slide{{ID: "welcome"}, {ID: "male"}, {ID: "female"}}
	sel := Selector{WelcomeIndex: 0, TemplateIndex: 1, AlternateIndex: 2, Column: "Giới tính", Value: "Nữ"}

	w, ok := sel.Welcome(slides)
	require.True(t, ok)
	assert.Equal(t, "welcome", w.ID)

	tpl, ok := sel.Template(slides, models.Row{"Giới tính": " nữ "})
	require.True(t, ok)
	assert.Equal(t, "female", tpl.ID)

	tpl, ok = sel.Template(slides, models.Row{"Giới tính": "Nam"})
	require.True(t, ok)
	assert.Equal(t, "male", tpl.ID)

	tpl, ok = sel.Template(slides[:2], models.Row{"Giới tính": "nữ"})
	require.True(t, ok)
	assert.Equal(t, "male", tpl.ID, "missing alternate falls back to the default template")

	_, ok = DefaultSelector().Template(slides[:1], models.Row{})
	assert.False(t, ok)
}
