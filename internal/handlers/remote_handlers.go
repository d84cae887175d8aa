package handlers

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"deckgenius/internal/models"
	"deckgenius/internal/services"
)

// RemoteHandler handles HTTP requests from presenter remotes
type RemoteHandler struct {
	session *services.Session
	remotes *services.RemoteService
}

// NewRemoteHandler creates a new remote handler
func NewRemoteHandler(session *services.Session, remotes *services.RemoteService) *RemoteHandler {
	return &RemoteHandler{
		session: session,
		remotes: remotes,
	}
}

// RemotePressRequest represents a button press on a remote
type RemotePressRequest struct {
	MACAddress string `json:"macAddress"`
	ButtonID   string `json:"buttonId,omitempty"` // button number from device firmware
}

// RemotePressResponse represents the response to a press
type RemotePressResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Processed bool   `json:"processed"` // whether a presentation consumed the press
}

// RegisterRemoteRequest represents a remote registration request
type RegisterRemoteRequest struct {
	MACAddress string `json:"macAddress"`
	Name       string `json:"name,omitempty"`
}

// Press turns a remote press into a playback key
// POST /api/remote/press
func (h *RemoteHandler) Press(w http.ResponseWriter, r *http.Request) {
	var req RemotePressRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.MACAddress == "" {
		http.Error(w, "MAC address is required", http.StatusBadRequest)
		return
	}

	key, ok := services.KeyForButton(req.ButtonID)
	if !ok {
		http.Error(w, "unknown button", http.StatusBadRequest)
		return
	}

	if _, err := h.remotes.RecordPress(req.MACAddress); err != nil {
		writeError(w, r, err)
		return
	}

	err := h.session.HandleKey(key)
	if err != nil {
		requestLogger(r).Debug().Err(err).Str("mac", req.MACAddress).Msg("remote press not processed")
		msg := err.Error()
		if errors.Is(err, models.ErrNotPresenting) {
			msg = "No presentation running"
		}
		writeJSON(w, http.StatusOK, RemotePressResponse{Success: true, Message: msg})
		return
	}

	writeJSON(w, http.StatusOK, RemotePressResponse{
		Success:   true,
		Message:   "Remote press processed successfully",
		Processed: true,
	})
}

// Register registers a remote
// POST /api/remote/register
func (h *RemoteHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRemoteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.MACAddress == "" {
		http.Error(w, "MAC address is required", http.StatusBadRequest)
		return
	}

	remote, err := h.remotes.Register(req.MACAddress, req.Name)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, remote)
}

// List returns all registered remotes
// GET /api/remote/list
func (h *RemoteHandler) List(w http.ResponseWriter, r *http.Request) {
	remotes, err := h.remotes.List()
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, remotes)
}

// Delete removes a remote
// DELETE /api/remote/{macAddress}
func (h *RemoteHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.remotes.Delete(mux.Vars(r)["macAddress"]); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
