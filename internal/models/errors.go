package models

import "errors"

var (
	// ErrNetworkFailure is returned when the feed is unreachable or answers non-2xx.
	ErrNetworkFailure = errors.New("feed network failure")

	// ErrMalformedFeedData is returned when a feed payload is not an array of rows
	// or a row lacks its identity field. The whole batch is rejected.
	ErrMalformedFeedData = errors.New("malformed feed data")

	// ErrEmptyPresentation is returned when a presentation would have no slides.
	ErrEmptyPresentation = errors.New("nothing to present")

	// ErrNoTemplate is returned when autoplay lacks a welcome slide and a template.
	ErrNoTemplate = errors.New("autoplay needs a welcome slide and a data template")

	// ErrInvalidImportFormat is returned when an import matches neither a
	// document nor a single slide.
	ErrInvalidImportFormat = errors.New("invalid import format")

	// ErrSecondaryWindowBlocked is returned when the presentation window never attached.
	ErrSecondaryWindowBlocked = errors.New("presentation window blocked")

	// ErrNotPresenting is returned by playback commands while no presentation runs.
	ErrNotPresenting = errors.New("no presentation running")

	// ErrSlideNotFound is returned when a slide id does not exist in the deck.
	ErrSlideNotFound = errors.New("slide not found")
)
