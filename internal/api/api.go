package api

import (
	"log/slog"
	"net/http"

	"github.com/glowdesk/engage/internal/engine"
	"github.com/glowdesk/engage/internal/scheduler"
	"github.com/glowdesk/engage/internal/store"
)

// DefaultAddr is the default API listen address.
const DefaultAddr = ":8080"

// Opts holds API server configuration.
type Opts struct {
	Addr string
}

// Option configures the API server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// Server wires the engine, scheduler and store behind HTTP handlers.
type Server struct {
	engine     *engine.Engine
	scheduler  *scheduler.Scheduler
	dispatcher *scheduler.Dispatcher
	store      store.Store
	addr       string
}

// NewServer creates an API server.
func NewServer(eng *engine.Engine, sched *scheduler.Scheduler, disp *scheduler.Dispatcher, st store.Store, opts ...Option) *Server {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	return &Server{engine: eng, scheduler: sched, dispatcher: disp, store: st, addr: cfg.Addr}
}

// Handler builds the HTTP route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/turns", s.handleTurn)
	mux.HandleFunc("POST /v1/proactive/decisions", s.handleProactiveDecision)
	mux.HandleFunc("GET /v1/threads/{id}", s.handleGetThread)
	mux.HandleFunc("GET /health", s.handleHealth)
	return mux
}

// Run starts the HTTP server and blocks.
func (s *Server) Run() error {
	slog.Info("Server.Run: listening", "addr", s.addr)
	return http.ListenAndServe(s.addr, s.Handler())
}
