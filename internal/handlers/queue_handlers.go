package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"deckgenius/internal/models"
	"deckgenius/internal/poller"
	"deckgenius/internal/queue"
	"deckgenius/internal/services"
)

// QueueHandler exposes the data sources and the queue mutations
type QueueHandler struct {
	session *services.Session
	poller  *poller.Poller
	history *services.HistoryService
}

// NewQueueHandler creates a queue handler. poller and history may be nil.
func NewQueueHandler(session *services.Session, p *poller.Poller, history *services.HistoryService) *QueueHandler {
	return &QueueHandler{session: session, poller: p, history: history}
}

// DataSourcesResponse carries the sources at one version
type DataSourcesResponse struct {
	Version uint64              `json:"version"`
	Sources []models.DataSource `json:"dataSources"`
}

func sourcesResponse(snap queue.Snapshot) DataSourcesResponse {
	return DataSourcesResponse{Version: snap.Version, Sources: snap.DataSources()}
}

// DataSources returns input, queue and history
// GET /api/data-sources
func (h *QueueHandler) DataSources(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, sourcesResponse(h.session.DataSources()))
}

// RowsRequest carries rows edited by the operator
type RowsRequest struct {
	Rows []models.Row `json:"rows"`
}

// ReplaceInput replaces the input rows
// PUT /api/data-sources/input
func (h *QueueHandler) ReplaceInput(w http.ResponseWriter, r *http.Request) {
	var req RowsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	snap, err := h.session.ReplaceInput(req.Rows)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sourcesResponse(snap))
}

// EnqueueRequest queues one row
type EnqueueRequest struct {
	Row models.Row `json:"row"`
}

// Enqueue appends a row to the queue
// POST /api/queue
func (h *QueueHandler) Enqueue(w http.ResponseWriter, r *http.Request) {
	var req EnqueueRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.Row) == 0 {
		http.Error(w, "row is required", http.StatusBadRequest)
		return
	}
	snap, err := h.session.Enqueue(req.Row)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sourcesResponse(snap))
}

// RemoveAt drops a queued row
// DELETE /api/queue/{index}
func (h *QueueHandler) RemoveAt(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(mux.Vars(r)["index"])
	if err != nil {
		http.Error(w, "index must be a number", http.StatusBadRequest)
		return
	}
	snap, err := h.session.RemoveAt(index)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sourcesResponse(snap))
}

// Clear empties every source and the presented history
// DELETE /api/queue
func (h *QueueHandler) Clear(w http.ResponseWriter, r *http.Request) {
	snap, err := h.session.Clear()
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sourcesResponse(snap))
}

// FetchFeed polls the feed once, outside the regular period
// POST /api/feed/fetch
func (h *QueueHandler) FetchFeed(w http.ResponseWriter, r *http.Request) {
	if h.poller == nil {
		http.Error(w, "feed is not configured", http.StatusServiceUnavailable)
		return
	}
	res, err := h.poller.FetchNow(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// FeedStatus is the outcome of the most recent feed poll
type FeedStatus struct {
	Configured bool       `json:"configured"`
	LastPollAt *time.Time `json:"lastPollAt,omitempty"`
	LastError  string     `json:"lastError,omitempty"`
}

// FeedStatus reports when the feed was last polled and how it went
// GET /api/feed/status
func (h *QueueHandler) FeedStatus(w http.ResponseWriter, r *http.Request) {
	var st FeedStatus
	if h.poller != nil {
		st.Configured = true
		at, err := h.poller.LastError()
		if !at.IsZero() {
			st.LastPollAt = &at
		}
		if err != nil {
			st.LastError = err.Error()
		}
	}
	writeJSON(w, http.StatusOK, st)
}

// History lists presented rows, newest first
// GET /api/history?limit=N
func (h *QueueHandler) History(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeJSON(w, http.StatusOK, []models.PresentedRow{})
		return
	}
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			http.Error(w, "limit must be a number", http.StatusBadRequest)
			return
		}
		limit = n
	}
	entries, err := h.history.List(limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}
