package models

import (
	"encoding/json"
	"fmt"
)

// Document is the whole-presentation export format
type Document struct {
	Title       string      `json:"title"`
	Slides      []Slide     `json:"slides"`
	AspectRatio AspectRatio `json:"aspectRatio,omitempty"`
}

// ImportKind tells which shape an import payload had
type ImportKind int

const (
	ImportDocument ImportKind = iota + 1
	ImportSlide
)

// Import is a decoded import payload
type Import struct {
	Kind     ImportKind
	Document *Document
	Slide    *Slide
}

// ParseImport decodes an import payload. A payload with a slides array and a
// title is a document; one with an elements array and an id is a single slide.
func ParseImport(data []byte) (*Import, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImportFormat, err)
	}

	if isArray(fields["slides"]) && nonEmptyString(fields["title"]) {
		var doc Document
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidImportFormat, err)
		}
		return &Import{Kind: ImportDocument, Document: &doc}, nil
	}

	if isArray(fields["elements"]) && nonEmptyString(fields["id"]) {
		var slide Slide
		if err := json.Unmarshal(data, &slide); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidImportFormat, err)
		}
		return &Import{Kind: ImportSlide, Slide: &slide}, nil
	}

	return nil, ErrInvalidImportFormat
}

func isArray(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return false
	}
	var arr []json.RawMessage
	return json.Unmarshal(raw, &arr) == nil && arr != nil
}

func nonEmptyString(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return false
	}
	var s string
	return json.Unmarshal(raw, &s) == nil && s != ""
}
