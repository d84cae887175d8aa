// Package synth builds concrete slides from template slides and data rows.
package synth

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"deckgenius/internal/models"
)

const presentedInfix = "-presented-"

// TokenFunc returns the uniqueness token of a synthesized slide id
type TokenFunc func() string

// Provenance records which source row a synthesized slide came from
type Provenance struct {
	DataSourceID string
	RowIndex     int
}

// Synthesizer produces slides from templates. It holds no mutable state
// besides its token source and is safe for concurrent use if the token source is.
type Synthesizer struct {
	token TokenFunc
}

// New creates a synthesizer. A nil token source uses random UUIDs.
func New(token TokenFunc) *Synthesizer {
	if token == nil {
		token = uuid.NewString
	}
	return &Synthesizer{token: token}
}

// Synthesize returns a deep copy of template with bound elements filled from row.
// The template itself is never modified. A bound column that the row lacks
// keeps the template's placeholder.
func (s *Synthesizer) Synthesize(template models.Slide, row models.Row, p Provenance) models.Slide {
	out := template.Clone()
	out.ID = SyntheticID(template.ID, s.token())
	out.DataSourceID = p.DataSourceID
	idx := p.RowIndex
	out.DataRowIndex = &idx
	populate(out.Elements, row)
	return out
}

func populate(elements []models.Element, row models.Row) {
	for i := range elements {
		el := &elements[i]
		if !el.IsBound() {
			continue
		}
		value, ok := row.String(el.DataColumn)
		if !ok {
			continue
		}
		switch el.Type {
		case models.ElementText:
			el.Text = value
		case models.ElementImage:
			el.Src = value
		}
	}
}

// SyntheticID names a slide synthesized from templateID
func SyntheticID(templateID, token string) string {
	return templateID + presentedInfix + token
}

// MatchesID reports whether slideID is target or was synthesized from target.
func MatchesID(slideID, target string) bool {
	if target == "" {
		return false
	}
	return slideID == target || strings.HasPrefix(slideID, target+presentedInfix)
}

// FindSlide returns the index of the first exact id match, falling back to the
// first prefix match, or -1.
func FindSlide(slides []models.Slide, target string) int {
	if target == "" {
		return -1
	}
	for i, s := range slides {
		if s.ID == target {
			return i
		}
	}
	for i, s := range slides {
		if MatchesID(s.ID, target) {
			return i
		}
	}
	return -1
}

// Expand builds the manual-mode deck: one synthesized slide per queue row from
// the first template slide, followed by every non-template slide. The deck is
// returned unchanged when there is no queue data or no template.
func Expand(slides []models.Slide, queue []models.Row) []models.Slide {
	templateIdx := -1
	for i, s := range slides {
		if s.IsTemplate() {
			templateIdx = i
			break
		}
	}
	if templateIdx < 0 || len(queue) == 0 {
		return models.CloneSlides(slides)
	}

	template := slides[templateIdx]
	out := make([]models.Slide, 0, len(queue)+len(slides))
	for i, row := range queue {
		idx := i
		gen := New(func() string { return fmt.Sprint(idx) })
		out = append(out, gen.Synthesize(template, row, Provenance{
			DataSourceID: models.QueueSourceID,
			RowIndex:     i,
		}))
	}
	for _, s := range slides {
		if !s.IsTemplate() {
			out = append(out, s.Clone())
		}
	}
	return out
}
