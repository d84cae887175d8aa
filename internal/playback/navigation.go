package playback

import (
	"errors"

	"deckgenius/internal/models"
	"deckgenius/internal/synth"
)

// ErrAutoplayActive is returned for manual navigation while autoplay drives the deck
var ErrAutoplayActive = errors.New("manual navigation is disabled during autoplay")

// Key names understood by HandleKey
const (
	KeyRight  = "ArrowRight"
	KeyLeft   = "ArrowLeft"
	KeyHome   = "Home"
	KeyEnd    = "End"
	KeyEscape = "Escape"
)

// Next moves to the following slide, wrapping to the first
func (e *Engine) Next() error {
	return e.navigate(func(i, n int) int { return (i + 1) % n })
}

// Prev moves to the preceding slide, wrapping to the last
func (e *Engine) Prev() error {
	return e.navigate(func(i, n int) int { return (i - 1 + n) % n })
}

// First jumps to the first slide
func (e *Engine) First() error {
	return e.navigate(func(int, int) int { return 0 })
}

// Last jumps to the last slide
func (e *Engine) Last() error {
	return e.navigate(func(_, n int) int { return n - 1 })
}

// GoTo jumps to index. Out of range indexes return ErrSlideNotFound.
func (e *Engine) GoTo(index int) error {
	if index < 0 || index >= len(e.opts.Slides) {
		return models.ErrSlideNotFound
	}
	return e.navigate(func(int, int) int { return index })
}

// GoToID jumps to the slide whose id equals id or was synthesized from it
func (e *Engine) GoToID(id string) error {
	index := synth.FindSlide(e.opts.Slides, id)
	if index < 0 {
		return models.ErrSlideNotFound
	}
	return e.GoTo(index)
}

// HandleKey maps a keyboard key to a command. Escape exits; unknown keys are
// ignored.
func (e *Engine) HandleKey(key string) error {
	switch key {
	case KeyRight:
		return e.Next()
	case KeyLeft:
		return e.Prev()
	case KeyHome:
		return e.First()
	case KeyEnd:
		return e.Last()
	case KeyEscape:
		e.Exit()
		return nil
	}
	return nil
}

func (e *Engine) navigate(step func(index, length int) int) error {
	if e.opts.Mode != models.ModeManual {
		return ErrAutoplayActive
	}
	return e.do(func() {
		next := step(e.index, len(e.opts.Slides))
		if next == e.index && e.frame.Current != nil {
			return
		}
		e.index = next
		e.transition(e.opts.Slides[next], models.PhaseManual, nil)
	})
}

// pendingTimers reports how many timers the loop still holds
func (e *Engine) pendingTimers() int {
	n := 0
	if err := e.do(func() { n = e.timers.size() }); err != nil {
		return 0
	}
	return n
}
