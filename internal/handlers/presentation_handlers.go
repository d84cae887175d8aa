package handlers

import (
	"fmt"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"deckgenius/internal/models"
	"deckgenius/internal/services"
)

const maxImportSize = 32 << 20

// PresentationHandler handles HTTP requests for the deck
type PresentationHandler struct {
	deck *services.DeckStore
}

// NewPresentationHandler creates a new presentation handler
func NewPresentationHandler(deck *services.DeckStore) *PresentationHandler {
	return &PresentationHandler{
		deck: deck,
	}
}

// GetPresentation returns the whole deck
// GET /api/presentation
func (h *PresentationHandler) GetPresentation(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.deck.Document())
}

// SetTitleRequest renames the deck
type SetTitleRequest struct {
	Title string `json:"title"`
}

// SetTitle renames the deck
// PUT /api/presentation/title
func (h *PresentationHandler) SetTitle(w http.ResponseWriter, r *http.Request) {
	var req SetTitleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.deck.SetTitle(req.Title); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, h.deck.Document())
}

// ImportResponse tells what an import did
type ImportResponse struct {
	Success bool   `json:"success"`
	Kind    string `json:"kind"`
	Slides  int    `json:"slides"`
}

// Import replaces the deck or appends a single slide
// POST /api/presentation/import
func (h *PresentationHandler) Import(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxImportSize))
	if err != nil {
		http.Error(w, "Failed to read body", http.StatusBadRequest)
		return
	}

	kind, err := h.deck.Import(data)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := ImportResponse{Success: true, Kind: "presentation", Slides: len(h.deck.Document().Slides)}
	if kind == models.ImportSlide {
		resp.Kind = "slide"
	}
	writeJSON(w, http.StatusOK, resp)
}

// ExportPresentation downloads the deck
// GET /api/presentation/export
func (h *PresentationHandler) ExportPresentation(w http.ResponseWriter, r *http.Request) {
	data, err := h.deck.ExportDocument()
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="presentation.json"`)
	w.Write(data)
}

// ExportSlide downloads one slide
// GET /api/slides/{id}/export
func (h *PresentationHandler) ExportSlide(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	data, err := h.deck.ExportSlide(id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="slide-%s.json"`, id))
	w.Write(data)
}

// SlideSnapshot renders one slide to PNG
// GET /api/slides/{id}/snapshot.png
func (h *PresentationHandler) SlideSnapshot(w http.ResponseWriter, r *http.Request) {
	data, err := h.deck.Snapshot(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(data)
}
