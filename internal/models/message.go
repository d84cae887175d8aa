package models

import (
	"encoding/json"
	"fmt"
)

// ChannelName is the sync channel shared by all surfaces of one presentation session
const ChannelName = "deckgenius-presentation-channel"

// MessageType identifies a sync channel command
type MessageType string

const (
	MsgGotoSlide        MessageType = "GOTO_SLIDE"
	MsgNext             MessageType = "NEXT"
	MsgPrev             MessageType = "PREV"
	MsgKey              MessageType = "KEY"
	MsgExit             MessageType = "EXIT"
	MsgFrame            MessageType = "FRAME"
	MsgNotify           MessageType = "NOTIFY"
	MsgMount            MessageType = "MOUNT"
	MsgOpenWindow       MessageType = "OPEN_WINDOW"
	MsgCloseWindow      MessageType = "CLOSE_WINDOW"
	MsgFullscreenFailed MessageType = "FULLSCREEN_FAILED"
	MsgDataSources      MessageType = "DATA_SOURCES"
)

// Message is the envelope exchanged between surfaces
type Message struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewMessage builds a message with a JSON-encoded payload. A nil payload is omitted.
func NewMessage(t MessageType, payload any) (Message, error) {
	msg := Message{Type: t}
	if payload == nil {
		return msg, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("failed to encode %s payload: %w", t, err)
	}
	msg.Payload = raw
	return msg, nil
}

// Decode unmarshals the payload into v
func (m Message) Decode(v any) error {
	if len(m.Payload) == 0 {
		return fmt.Errorf("%s message has no payload", m.Type)
	}
	if err := json.Unmarshal(m.Payload, v); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", m.Type, err)
	}
	return nil
}

// GotoSlidePayload carries a manual navigation target
type GotoSlidePayload struct {
	Index int `json:"index"`
}

// KeyPayload carries a keyboard key name (ArrowRight, Escape, ...)
type KeyPayload struct {
	Key string `json:"key"`
}

// NotifyPayload is a transient, non-blocking user notification
type NotifyPayload struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// MountPayload mirrors styling context into a freshly opened surface
type MountPayload struct {
	Title       string      `json:"title"`
	AspectRatio AspectRatio `json:"aspectRatio"`
	Width       int         `json:"width"`
	Height      int         `json:"height"`
	Stylesheets []string    `json:"stylesheets,omitempty"`
}

// OpenWindowPayload asks a controller surface to open the presentation window
type OpenWindowPayload struct {
	Name     string `json:"name"`
	Features string `json:"features"`
	URL      string `json:"url"`
}

// FullscreenFailedPayload reports a rejected fullscreen request
type FullscreenFailedPayload struct {
	Reason string `json:"reason"`
}

// DataSourcesPayload pushes the current sources to controller surfaces
type DataSourcesPayload struct {
	Version uint64       `json:"version"`
	Sources []DataSource `json:"dataSources"`
}
