// Package api exposes a Ring over HTTP: the runnable-service surface
// this repo ships in addition to the ring package's Go API.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/VictoriaMetrics/metrics"
	gometrics "github.com/rcrowley/go-metrics"

	"github.com/Forensiq/indexedRingBuffer/evict"
	"github.com/Forensiq/indexedRingBuffer/internal/log"
	"github.com/Forensiq/indexedRingBuffer/ring"
)

// Server wires a *ring.Ring to an HTTP mux.
type Server struct {
	ring *ring.Ring
	log  log.Logger

	reqCounter    *metrics.Counter
	insertionRate gometrics.Meter
}

// NewServer builds a Server around r.
func NewServer(r *ring.Ring) *Server {
	return &Server{
		ring:          r,
		log:           log.Get("api"),
		reqCounter:    metrics.NewCounter("indexedringbuffer_requests_total"),
		insertionRate: gometrics.NewMeter(),
	}
}

// Mux returns an http.Handler with every route registered.
func (s *Server) Mux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /set", s.loggingMiddleware(s.handleSet))
	mux.HandleFunc("GET /get", s.loggingMiddleware(s.handleGet))
	mux.HandleFunc("GET /stats", s.loggingMiddleware(s.handleStats))
	mux.HandleFunc("POST /drain", s.loggingMiddleware(s.handleDrain))
	mux.HandleFunc("POST /resize", s.loggingMiddleware(s.handleResize))
	mux.HandleFunc("POST /internal/eject", s.loggingMiddleware(s.handleEject))
	mux.Handle("GET /metrics", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		metrics.WritePrometheus(w, true)
	}))
	return mux
}

// ListenAndServe starts the HTTP server on addr, blocking until it
// stops. A clean shutdown via ctx returns nil; any other failure is
// returned as an error.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Mux()}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	s.log.Infof("listening on %s", addr)
	err := srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) loggingMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		s.reqCounter.Inc()
		rw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next(rw, r)
		s.log.Debugf("%s %s => %d took %s", r.Method, r.URL.Path, rw.status, time.Since(start))
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

type setRequest struct {
	ID     string            `json:"id"`
	Fields map[string]string `json:"fields"`
}

func (s *Server) handleSet(w http.ResponseWriter, r *http.Request) {
	var req setRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed request: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.ID == "" {
		http.Error(w, "id is required", http.StatusBadRequest)
		return
	}
	if err := s.ring.Set(req.ID, req.Fields); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.insertionRate.Mark(1)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "id query parameter is required", http.StatusBadRequest)
		return
	}
	record, ok, err := s.ring.Get(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if !ok {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, record)
}

type statsResponse struct {
	ring.Stats
	LifetimeInsertionRate1Min float64 `json:"lifetimeInsertionRate1Min"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.ring.Stats()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, statsResponse{
		Stats:                     stats,
		LifetimeInsertionRate1Min: s.insertionRate.Rate1(),
	})
}

func (s *Server) handleDrain(w http.ResponseWriter, r *http.Request) {
	if err := s.ring.Drain(r.Context()); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

type resizeRequest struct {
	NewSize int64 `json:"newSize"`
}

func (s *Server) handleResize(w http.ResponseWriter, r *http.Request) {
	var req resizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed request: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.ring.Resize(r.Context(), req.NewSize); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleEject(w http.ResponseWriter, r *http.Request) {
	var batch struct {
		Items []evict.EjectRequest `json:"items"`
	}
	if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
		http.Error(w, "malformed batch: "+err.Error(), http.StatusBadRequest)
		return
	}
	for _, item := range batch.Items {
		s.ring.EjectLocal(item)
	}
	w.WriteHeader(http.StatusOK)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
