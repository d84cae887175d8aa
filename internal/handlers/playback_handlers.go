package handlers

import (
	"net/http"

	"deckgenius/internal/models"
	"deckgenius/internal/services"
)

// PlaybackHandler drives the presentation over HTTP
type PlaybackHandler struct {
	session *services.Session
}

// NewPlaybackHandler creates a playback handler
func NewPlaybackHandler(session *services.Session) *PlaybackHandler {
	return &PlaybackHandler{session: session}
}

// Start begins a presentation and returns its first frame
// POST /api/playback/start
func (h *PlaybackHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req services.StartRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	switch req.Mode {
	case "", models.ModeManual, models.ModeAutoplay:
	default:
		http.Error(w, "mode must be manual or autoplay", http.StatusBadRequest)
		return
	}
	frame, err := h.session.Start(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, frame)
}

// Exit stops the presentation
// POST /api/playback/exit
func (h *PlaybackHandler) Exit(w http.ResponseWriter, r *http.Request) {
	if err := h.session.Exit(); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.session.Frame())
}

// KeyRequest carries a keyboard key name
type KeyRequest struct {
	Key string `json:"key"`
}

// Key forwards a key press
// POST /api/playback/key
func (h *PlaybackHandler) Key(w http.ResponseWriter, r *http.Request) {
	var req KeyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Key == "" {
		http.Error(w, "key is required", http.StatusBadRequest)
		return
	}
	if err := h.session.HandleKey(req.Key); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.session.Frame())
}

// GotoRequest jumps by index or by slide id
type GotoRequest struct {
	Index   *int   `json:"index,omitempty"`
	SlideID string `json:"slideId,omitempty"`
}

// Goto jumps to a slide
// POST /api/playback/goto
func (h *PlaybackHandler) Goto(w http.ResponseWriter, r *http.Request) {
	var req GotoRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	var err error
	switch {
	case req.SlideID != "":
		err = h.session.GoToID(req.SlideID)
	case req.Index != nil:
		err = h.session.GoTo(*req.Index)
	default:
		http.Error(w, "index or slideId is required", http.StatusBadRequest)
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.session.Frame())
}

// Frame returns what the surfaces currently show
// GET /api/playback/frame
func (h *PlaybackHandler) Frame(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.session.Frame())
}

// Status reports the session and sync channel state
// GET /api/playback/status
func (h *PlaybackHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.session.Status())
}
