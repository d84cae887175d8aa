package models

// ElementType discriminates slide element variants
type ElementType string

const (
	ElementText  ElementType = "TEXT"
	ElementImage ElementType = "IMAGE"
)

// Element is a positioned slide element. Text fields apply to TEXT elements and
// Src to IMAGE elements. An element with DataColumn set is bound: its content is
// resolved from a data row when a slide is synthesized.
type Element struct {
	ID           string      `json:"id"`
	Type         ElementType `json:"type"`
	X            float64     `json:"x"`
	Y            float64     `json:"y"`
	Width        float64     `json:"width"`
	Height       float64     `json:"height"`
	Rotation     float64     `json:"rotation"`
	DataSourceID string      `json:"dataSourceId,omitempty"`
	DataColumn   string      `json:"dataColumn,omitempty"`

	Text           string  `json:"text,omitempty"`
	FontSize       float64 `json:"fontSize,omitempty"`
	FontFamily     string  `json:"fontFamily,omitempty"`
	Color          string  `json:"color,omitempty"`
	Align          string  `json:"align,omitempty"`
	FontWeight     string  `json:"fontWeight,omitempty"`
	FontStyle      string  `json:"fontStyle,omitempty"`
	TextDecoration string  `json:"textDecoration,omitempty"`
	TextTransform  string  `json:"textTransform,omitempty"`
	EntryAnimation string  `json:"entryAnimation,omitempty"`

	Src string `json:"src,omitempty"`
}

// IsBound reports whether the element takes its content from a data row
func (e Element) IsBound() bool {
	return e.DataColumn != ""
}

// Slide represents one slide of a deck
type Slide struct {
	ID                  string    `json:"id"`
	Elements            []Element `json:"elements"`
	BackgroundColor     string    `json:"backgroundColor"`
	BackgroundImage     string    `json:"backgroundImage,omitempty"`
	BackgroundVideo     string    `json:"backgroundVideo,omitempty"`
	BackgroundPositionX *float64  `json:"backgroundPositionX,omitempty"`
	BackgroundPositionY *float64  `json:"backgroundPositionY,omitempty"`
	BackgroundSize      *float64  `json:"backgroundSize,omitempty"`
	DataSourceID        string    `json:"dataSourceId,omitempty"`
	DataRowIndex        *int      `json:"dataRowIndex,omitempty"`
}

// IsTemplate reports whether the slide has at least one data-bound element
func (s Slide) IsTemplate() bool {
	for _, el := range s.Elements {
		if el.DataSourceID != "" || el.DataColumn != "" {
			return true
		}
	}
	return false
}

// Clone returns a deep copy that shares no slices or pointers with s.
func (s Slide) Clone() Slide {
	out := s
	if s.Elements != nil {
		out.Elements = make([]Element, len(s.Elements))
		copy(out.Elements, s.Elements)
	}
	out.BackgroundPositionX = cloneFloat(s.BackgroundPositionX)
	out.BackgroundPositionY = cloneFloat(s.BackgroundPositionY)
	out.BackgroundSize = cloneFloat(s.BackgroundSize)
	if s.DataRowIndex != nil {
		idx := *s.DataRowIndex
		out.DataRowIndex = &idx
	}
	return out
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

// CloneSlides deep-copies a slide list
func CloneSlides(slides []Slide) []Slide {
	if slides == nil {
		return nil
	}
	out := make([]Slide, len(slides))
	for i, s := range slides {
		out[i] = s.Clone()
	}
	return out
}

// AspectRatio names a slide design size preset
type AspectRatio string

const (
	Aspect16x9 AspectRatio = "16:9"
	Aspect4x3  AspectRatio = "4:3"
	Aspect1x1  AspectRatio = "1:1"
)

// Dimensions returns the design size in pixels for the aspect ratio.
// Unknown ratios fall back to 16:9.
func (a AspectRatio) Dimensions() (width, height int) {
	switch a {
	case Aspect4x3:
		return 1024, 768
	case Aspect1x1:
		return 800, 800
	default:
		return 1024, 576
	}
}
