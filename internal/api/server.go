// Package api serves the session over HTTP with JSON bodies.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"chatpdf/internal/domain"
	"chatpdf/internal/logging"
	"chatpdf/internal/service"
)

const maxBodyBytes = 1 << 20

// Session is the pipeline the handlers drive.
type Session interface {
	Ingest(ctx context.Context, path string) (service.IngestReport, error)
	Ask(ctx context.Context, question string) (*domain.Answer, error)
	Clear() error
	State() service.State
}

type Server struct {
	session Session
	log     *slog.Logger
}

func NewServer(session Session, logger *slog.Logger) *Server {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Server{session: session, log: logger}
}

type askRequest struct {
	Query *string `json:"query"`
}

type source struct {
	ChunkID string  `json:"chunk_id"`
	Page    int     `json:"page"`
	Offset  int     `json:"offset"`
	Score   float64 `json:"score"`
}

type askResponse struct {
	Answer string `json:"answer"`
	// Response repeats Answer for clients of the earlier wire format.
	Response string   `json:"response"`
	Sources  []source `json:"sources"`
}

type ingestRequest struct {
	Path string `json:"path"`
}

type statusResponse struct {
	Status  string        `json:"status"`
	Message string        `json:"message"`
	State   service.State `json:"state"`
}

type streamEvent struct {
	Fragment string `json:"fragment,omitempty"`
	Done     bool   `json:"done,omitempty"`
	Error    string `json:"error,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// Router returns the handler tree with panic recovery and request logging.
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ask", s.only(http.MethodPost, s.HandleAsk))
	mux.HandleFunc("/ask/stream", s.only(http.MethodPost, s.HandleAskStream))
	mux.HandleFunc("/ingest", s.only(http.MethodPost, s.HandleIngest))
	mux.HandleFunc("/clear", s.only(http.MethodPost, s.HandleClear))
	mux.HandleFunc("/status", s.only(http.MethodGet, s.HandleStatus))
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Endpoint not found")
	})
	return s.logRequests(s.recoverPanics(mux))
}

func (s *Server) only(method string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			w.Header().Set("Allow", method)
			writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		h(w, r)
	}
}

func (s *Server) HandleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{
		Status:  "running",
		Message: "ChatPDF API is operational",
		State:   s.session.State(),
	})
}

func (s *Server) HandleAsk(w http.ResponseWriter, r *http.Request) {
	question, ok := s.decodeQuestion(w, r)
	if !ok {
		return
	}
	ans, err := s.session.Ask(r.Context(), question)
	if err != nil {
		s.fail(w, "ask", err)
		return
	}
	text, err := ans.Text()
	if err != nil {
		s.fail(w, "ask", err)
		return
	}
	writeJSON(w, http.StatusOK, askResponse{Answer: text, Response: text, Sources: sources(ans.Sources)})
}

// HandleAskStream writes one JSON object per line: fragments as they are
// generated, then either {"done":true} or {"error":...}.
func (s *Server) HandleAskStream(w http.ResponseWriter, r *http.Request) {
	question, ok := s.decodeQuestion(w, r)
	if !ok {
		return
	}
	ans, err := s.session.Ask(r.Context(), question)
	if err != nil {
		s.fail(w, "ask", err)
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	rc := http.NewResponseController(w)
	enc := json.NewEncoder(w)
	for frag, err := range ans.Fragments() {
		if err != nil {
			s.log.Error("answer stream failed", "error", err)
			_ = enc.Encode(streamEvent{Error: err.Error()})
			return
		}
		if err := enc.Encode(streamEvent{Fragment: frag}); err != nil {
			// Client went away; breaking releases the provider stream.
			return
		}
		_ = rc.Flush()
	}
	_ = enc.Encode(streamEvent{Done: true})
}

func (s *Server) HandleIngest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Path) == "" {
		writeError(w, http.StatusBadRequest, "Missing 'path' in request body")
		return
	}
	report, err := s.session.Ingest(r.Context(), req.Path)
	if err != nil {
		s.fail(w, "ingest", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) HandleClear(w http.ResponseWriter, r *http.Request) {
	if err := s.session.Clear(); err != nil {
		s.fail(w, "clear", err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: "cleared", Message: "index detached", State: s.session.State()})
}

func (s *Server) decodeQuestion(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req askRequest
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req)
	if err != nil || req.Query == nil {
		writeError(w, http.StatusBadRequest, "Missing 'query' in request body")
		return "", false
	}
	return *req.Query, true
}

// fail maps pipeline errors to status codes.
func (s *Server) fail(w http.ResponseWriter, op string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrEmptyQuestion), errors.Is(err, domain.ErrUnreadableDocument):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrNotIngested):
		status = http.StatusConflict
	}
	s.log.Error(op+" failed", "status", status, "error", err)
	writeError(w, status, err.Error())
}

func sources(res domain.RetrievalResult) []source {
	out := make([]source, len(res))
	for i, r := range res {
		out[i] = source{ChunkID: r.Chunk.ID, Page: r.Chunk.Source.Page, Offset: r.Chunk.Source.Offset, Score: r.Score}
	}
	return out
}

func (s *Server) recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				if v == http.ErrAbortHandler {
					panic(v)
				}
				s.log.Error("handler panic", "path", r.URL.Path, "panic", v)
				writeError(w, http.StatusInternalServerError, "Internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Info("request", "method", r.Method, "path", r.URL.Path, "status", rec.status, "duration", time.Since(start))
	})
}
