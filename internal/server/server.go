package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"modeswitch/internal/controller"
	"modeswitch/pkg/logging"
)

const (
	// DefaultReadHeaderTimeout is the default timeout for reading request headers.
	DefaultReadHeaderTimeout = 10 * time.Second
	// DefaultWriteTimeout is the default timeout for writing responses.
	DefaultWriteTimeout = 120 * time.Second
	// DefaultIdleTimeout is the default idle timeout for keepalive connections.
	DefaultIdleTimeout = 120 * time.Second

	shutdownTimeout = 10 * time.Second
)

// Controller is the subset of *controller.Controller served over HTTP.
type Controller interface {
	GetStatus(ctx context.Context) controller.Status
	SwitchTo(ctx context.Context, mode string) controller.SwitchResult
	RestartService(ctx context.Context) controller.RestartResult
	EnsureArtifacts(ctx context.Context) controller.SetupResult
	ListModes() []controller.ModeInfo
}

// Options configures a Server.
type Options struct {
	Listen string
	// WriteTimeout must cover the longest switch; it is raised to
	// DefaultWriteTimeout when lower.
	WriteTimeout time.Duration
	// Gatherer backs /metrics. Nil disables the endpoint.
	Gatherer prometheus.Gatherer
}

// Server is the HTTP front end of the controller.
type Server struct {
	ctrl Controller
	opts Options

	mu         sync.Mutex
	httpServer *http.Server
	addr       string
}

// New creates a Server.
func New(ctrl Controller, opts Options) *Server {
	if opts.WriteTimeout < DefaultWriteTimeout {
		opts.WriteTimeout = DefaultWriteTimeout
	}
	return &Server{ctrl: ctrl, opts: opts}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("POST /api/switch/{mode}", s.handleSwitch)
	mux.HandleFunc("POST /api/restart", s.handleRestart)
	mux.HandleFunc("POST /api/setup", s.handleSetup)
	mux.HandleFunc("GET /api/modes", s.handleModes)

	if s.opts.Gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.opts.Gatherer, promhttp.HandlerOpts{}))
	}

	return logRequests(mux)
}

// Run listens on the configured address and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.opts.Listen)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.opts.Listen, err)
	}
	return s.Serve(ctx, listener)
}

// Serve serves on listener until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: DefaultReadHeaderTimeout,
		WriteTimeout:      s.opts.WriteTimeout,
		IdleTimeout:       DefaultIdleTimeout,
	}

	s.mu.Lock()
	s.httpServer = srv
	s.addr = listener.Addr().String()
	s.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		logging.Info("Server", "Listening on %s", listener.Addr())
		errCh <- srv.Serve(listener)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down HTTP server: %w", err)
	}
	logging.Info("Server", "Stopped")
	return nil
}

// Addr returns the bound address once serving.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.GetStatus(r.Context()))
}

func (s *Server) handleSwitch(w http.ResponseWriter, r *http.Request) {
	// A client hang-up must not abort the stop/install/start sequence.
	res := s.ctrl.SwitchTo(context.WithoutCancel(r.Context()), r.PathValue("mode"))
	writeJSON(w, switchStatusCode(res), res)
}

func (s *Server) handleRestart(w http.ResponseWriter, r *http.Request) {
	res := s.ctrl.RestartService(context.WithoutCancel(r.Context()))
	writeJSON(w, failureStatusCode(res.Error), res)
}

func (s *Server) handleSetup(w http.ResponseWriter, r *http.Request) {
	res := s.ctrl.EnsureArtifacts(context.WithoutCancel(r.Context()))
	writeJSON(w, failureStatusCode(res.Error), res)
}

func (s *Server) handleModes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.ListModes())
}

func switchStatusCode(res controller.SwitchResult) int {
	if res.Succeeded {
		return http.StatusOK
	}
	return failureStatusCode(res.Error)
}

func failureStatusCode(f *controller.Failure) int {
	if f == nil {
		return http.StatusOK
	}
	switch f.Kind {
	case controller.KindBusy:
		return http.StatusConflict
	case controller.KindInvalidMode:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("Server", err, "Failed to encode response")
	}
}
