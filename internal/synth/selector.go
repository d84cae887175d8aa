package synth

import (
	"strings"

	"deckgenius/internal/models"
)

// Selector picks the waiting slide and the template for a row by deck position.
// When Column is set and a row's value (trimmed, case-insensitive) equals Value,
// the alternate template is used if the deck has one.
type Selector struct {
	WelcomeIndex   int
	TemplateIndex  int
	AlternateIndex int
	Column         string
	Value          string
}

// DefaultSelector uses slide 0 as the waiting slide and slide 1 as the template
func DefaultSelector() Selector {
	return Selector{WelcomeIndex: 0, TemplateIndex: 1, AlternateIndex: -1}
}

// Welcome returns the static slide shown while the queue is empty
func (s Selector) Welcome(slides []models.Slide) (models.Slide, bool) {
	return at(slides, s.WelcomeIndex)
}

// Template returns the template slide to synthesize row with
func (s Selector) Template(slides []models.Slide, row models.Row) (models.Slide, bool) {
	if s.Column != "" && s.AlternateIndex >= 0 {
		if v, ok := row.String(s.Column); ok && strings.EqualFold(strings.TrimSpace(v), strings.TrimSpace(s.Value)) {
			if alt, ok := at(slides, s.AlternateIndex); ok {
				return alt, true
			}
		}
	}
	return at(slides, s.TemplateIndex)
}

func at(slides []models.Slide, idx int) (models.Slide, bool) {
	if idx < 0 || idx >= len(slides) {
		return models.Slide{}, false
	}
	return slides[idx], true
}
