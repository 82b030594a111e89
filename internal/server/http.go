// Package server exposes the session workflow over HTTP. It is a thin
// adapter: every route maps 1:1 to a session.Manager operation.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bkomar/voice-to-text-transcriber/internal/audio"
	"github.com/bkomar/voice-to-text-transcriber/internal/logging"
	"github.com/bkomar/voice-to-text-transcriber/internal/metrics"
	"github.com/bkomar/voice-to-text-transcriber/internal/model"
	"github.com/bkomar/voice-to-text-transcriber/internal/session"
	"github.com/bkomar/voice-to-text-transcriber/internal/store"
)

// maxUploadBytes bounds an uploaded audio payload.
const maxUploadBytes = 100 << 20

// Server is the HTTP API adapter.
type Server struct {
	httpServer *http.Server
	sessions   *session.Manager
	metrics    *metrics.Metrics
}

// New creates a Server on addr. When gatherer is non-nil a /metrics
// endpoint is exposed for it.
func New(addr string, sessions *session.Manager, m *metrics.Metrics, gatherer prometheus.Gatherer) *Server {
	if m == nil {
		m = metrics.Nop()
	}
	s := &Server{
		sessions: sessions,
		metrics:  m,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.countRequests)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/load_model", s.handleLoadModel)
		r.Post("/record", s.handleRecord)
		r.Post("/transcribe", s.handleTranscribe)
		r.Get("/history", s.handleHistory)
		r.Get("/audio/{filename}", s.handleAudio)
		r.Post("/delete", s.handleDelete)

		r.Post("/capture/start", s.handleCaptureStart)
		r.Post("/capture/stop", s.handleCaptureStop)

		r.Post("/play", s.handlePlay)
		r.Post("/playback/stop", s.handlePlaybackStop)
		r.Get("/playback", s.handlePlaybackStatus)
	})

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // transcription requests block on inference
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Start begins serving in the background.
func (s *Server) Start() {
	logger := logging.WithComponent("http")
	logger.Info().Str("addr", s.httpServer.Addr).Msg("starting HTTP API")
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("HTTP server error")
		}
	}()
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		s.metrics.HTTPRequests.WithLabelValues(r.Method, route, http.StatusText(ww.Status())).Inc()
	})
}

func (s *Server) handleLoadModel(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ModelName string `json:"model_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ModelName == "" {
		req.ModelName = "base"
	}

	if err := <-s.sessions.SwitchModel(r.Context(), req.ModelName); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeOK(w, map[string]any{"message": "Model '" + req.ModelName + "' loaded."})
}

func (s *Server) handleRecord(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart payload")
		return
	}
	file, _, err := r.FormFile("audio")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No audio file provided")
		return
	}
	defer file.Close()

	raw, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read upload: "+err.Error())
		return
	}

	rec, err := s.sessions.UploadAndNormalize(r.Context(), raw)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeOK(w, map[string]any{"filename": rec.ID})
}

func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Filename string `json:"filename"`
		Language string `json:"language"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Language == "" {
		req.Language = "en"
	}

	text, err := s.sessions.Transcribe(r.Context(), req.Filename, req.Language)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeOK(w, map[string]any{"text": text})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	history, err := s.sessions.History()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if history == nil {
		history = []session.HistoryEntry{}
	}
	writeJSON(w, http.StatusOK, history)
}

func (s *Server) handleAudio(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "filename")
	data, err := s.sessions.Audio(id)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	w.Header().Set("Content-Type", "audio/wav")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Filename string `json:"filename"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.sessions.Delete(req.Filename); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeOK(w, nil)
}

func (s *Server) handleCaptureStart(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.RecordStart(); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeOK(w, nil)
}

func (s *Server) handleCaptureStop(w http.ResponseWriter, r *http.Request) {
	rec, err := s.sessions.RecordStop()
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeOK(w, map[string]any{"filename": rec.ID, "duration": rec.Duration})
}

func (s *Server) handlePlay(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Filename string `json:"filename"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.sessions.Play(req.Filename); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeOK(w, nil)
}

func (s *Server) handlePlaybackStop(w http.ResponseWriter, r *http.Request) {
	s.sessions.StopPlayback()
	writeOK(w, nil)
}

func (s *Server) handlePlaybackStatus(w http.ResponseWriter, r *http.Request) {
	status, active := s.sessions.PlaybackStatus()
	writeJSON(w, http.StatusOK, map[string]any{"active": active, "playback": status})
}

// statusFor maps workflow errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, audio.ErrAlreadyRecording),
		errors.Is(err, audio.ErrNotRecording),
		errors.Is(err, model.ErrNotLoaded),
		errors.Is(err, model.ErrSuperseded):
		return http.StatusConflict
	case audio.IsConversionError(err):
		return http.StatusBadRequest
	case store.IsPersistenceError(err):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

func writeOK(w http.ResponseWriter, extra map[string]any) {
	body := map[string]any{"status": "ok"}
	for k, v := range extra {
		body[k] = v
	}
	writeJSON(w, http.StatusOK, body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"status": "error", "message": msg})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
