package handlers

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"deckgenius/internal/logging"
)

// Handlers groups everything the router serves
type Handlers struct {
	Presentation *PresentationHandler
	Queue        *QueueHandler
	Playback     *PlaybackHandler
	Remote       *RemoteHandler
	WebSocket    http.HandlerFunc
	Static       http.Handler
}

// SetupRoutes builds the router
func SetupRoutes(h Handlers, logger zerolog.Logger) *mux.Router {
	r := mux.NewRouter()
	r.Use(requestLogging(logger))

	if h.WebSocket != nil {
		r.HandleFunc("/ws", h.WebSocket)
	}
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()

	if p := h.Presentation; p != nil {
		api.HandleFunc("/presentation", p.GetPresentation).Methods(http.MethodGet)
		api.HandleFunc("/presentation/title", p.SetTitle).Methods(http.MethodPut)
		api.HandleFunc("/presentation/import", p.Import).Methods(http.MethodPost)
		api.HandleFunc("/presentation/export", p.ExportPresentation).Methods(http.MethodGet)
		api.HandleFunc("/slides/{id}/export", p.ExportSlide).Methods(http.MethodGet)
		api.HandleFunc("/slides/{id}/snapshot.png", p.SlideSnapshot).Methods(http.MethodGet)
	}

	if q := h.Queue; q != nil {
		api.HandleFunc("/data-sources", q.DataSources).Methods(http.MethodGet)
		api.HandleFunc("/data-sources/input", q.ReplaceInput).Methods(http.MethodPut)
		api.HandleFunc("/queue", q.Enqueue).Methods(http.MethodPost)
		api.HandleFunc("/queue", q.Clear).Methods(http.MethodDelete)
		api.HandleFunc("/queue/{index:-?[0-9]+}", q.RemoveAt).Methods(http.MethodDelete)
		api.HandleFunc("/feed/fetch", q.FetchFeed).Methods(http.MethodPost)
		api.HandleFunc("/feed/status", q.FeedStatus).Methods(http.MethodGet)
		api.HandleFunc("/history", q.History).Methods(http.MethodGet)
	}

	if p := h.Playback; p != nil {
		api.HandleFunc("/playback/start", p.Start).Methods(http.MethodPost)
		api.HandleFunc("/playback/exit", p.Exit).Methods(http.MethodPost)
		api.HandleFunc("/playback/key", p.Key).Methods(http.MethodPost)
		api.HandleFunc("/playback/goto", p.Goto).Methods(http.MethodPost)
		api.HandleFunc("/playback/frame", p.Frame).Methods(http.MethodGet)
		api.HandleFunc("/playback/status", p.Status).Methods(http.MethodGet)
	}

	if rh := h.Remote; rh != nil {
		api.HandleFunc("/remote/register", rh.Register).Methods(http.MethodPost)
		api.HandleFunc("/remote/press", rh.Press).Methods(http.MethodPost)
		api.HandleFunc("/remote/list", rh.List).Methods(http.MethodGet)
		api.HandleFunc("/remote/{macAddress}", rh.Delete).Methods(http.MethodDelete)
	}

	if h.Static != nil {
		r.PathPrefix("/").Handler(h.Static)
	}
	return r
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// requestLogging attaches a request scoped logger and logs every API call.
// The websocket route is passed through untouched so the upgrade can hijack it.
func requestLogging(logger zerolog.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := r.Header.Get("X-Request-ID")
			if reqID == "" {
				reqID = uuid.NewString()
			}
			ctx := logging.WithRequestID(logging.WithContext(r.Context(), logger), reqID)
			r = r.WithContext(ctx)

			if r.URL.Path == "/ws" {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			logging.FromContext(ctx).Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", rec.status).
				Dur("duration", time.Since(start)).
				Msg("http request")
		})
	}
}
