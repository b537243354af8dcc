// Package web exposes listing sessions over a JSON HTTP API with a
// WebSocket stream of state changes.
package web

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
)

const shutdownTimeout = 10 * time.Second

// Server routes HTTP requests to web sessions.
type Server struct {
	sessions *SessionManager
	router   *mux.Router
}

// NewServer creates a server with all routes registered.
func NewServer(sessions *SessionManager) *Server {
	s := &Server{
		sessions: sessions,
		router:   mux.NewRouter(),
	}
	s.router.Use(logRequests)
	s.RegisterRoutes(s.router)
	return s
}

// RegisterRoutes adds the API endpoints to r.
func (s *Server) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/healthcheck", healthCheck).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/options", getOptions).Methods(http.MethodGet)
	api.HandleFunc("/sessions", s.createSession).Methods(http.MethodPost)

	api.HandleFunc("/sessions/{id}", s.getSession).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{id}", s.deleteSession).Methods(http.MethodDelete)

	sess := api.PathPrefix("/sessions/{id}").Subrouter()
	sess.HandleFunc("/image", s.submitImage).Methods(http.MethodPost)
	sess.HandleFunc("/image", s.downloadImage).Methods(http.MethodGet)
	sess.HandleFunc("/view", s.setView).Methods(http.MethodPut)
	sess.HandleFunc("/draft", s.editDraft).Methods(http.MethodPatch)
	sess.HandleFunc("/edit", s.applyEdit).Methods(http.MethodPost)
	sess.HandleFunc("/style", s.setStyle).Methods(http.MethodPut)
	sess.HandleFunc("/generate", s.generate).Methods(http.MethodPost)
	sess.HandleFunc("/reset", s.reset).Methods(http.MethodPost)
	sess.HandleFunc("/events", s.streamEvents).Methods(http.MethodGet)
}

// Handler returns the root handler including CORS.
func (s *Server) Handler() http.Handler {
	return enableCORS(s.router)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("web api listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("web api: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("web api shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("web api: %w", err)
	}
	log.Info().Msg("web api stopped")
	return nil
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the response status for request logs. It passes
// Hijack through so WebSocket upgrades keep working.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return h.Hijack()
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
