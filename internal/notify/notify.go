// Package notify publishes presentation events to external consumers.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"deckgenius/internal/models"
)

// EventRowPresented is emitted when autoplay moves a row to history
const EventRowPresented = "row.presented"

// Event is the message body sent to the broker
type Event struct {
	Type        string     `json:"type"`
	Identity    string     `json:"identity,omitempty"`
	Row         models.Row `json:"row"`
	SlideID     string     `json:"slideId,omitempty"`
	PresentedAt time.Time  `json:"presentedAt"`
}

// Encode returns the JSON body of e
func (e Event) Encode() ([]byte, error) {
	body, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s event: %w", e.Type, err)
	}
	return body, nil
}

// Publisher delivers events
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// Nop discards every event
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }
