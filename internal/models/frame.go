package models

// Mode is the presentation driving mode
type Mode string

const (
	ModeManual   Mode = "manual"
	ModeAutoplay Mode = "autoplay"
)

// Phase is the playback state
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseManual     Phase = "manual"
	PhaseWaiting    Phase = "waiting"
	PhasePresenting Phase = "presenting"
)

// Frame is what a surface renders. Previous is only set while IsTransitioning.
// Frames are published as values and never modified afterwards.
type Frame struct {
	Current            *Slide `json:"current,omitempty"`
	Previous           *Slide `json:"previous,omitempty"`
	IsTransitioning    bool   `json:"isTransitioning"`
	Phase              Phase  `json:"phase"`
	Mode               Mode   `json:"mode,omitempty"`
	Index              int    `json:"index"`
	SlideCount         int    `json:"slideCount"`
	Generation         uint64 `json:"generation"`
	AutoplayDurationMs int64  `json:"autoplayDurationMs"`
}
