package web

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/hpungsan/revise/internal/config"
	"github.com/hpungsan/revise/internal/db"
	"github.com/hpungsan/revise/internal/events"
	"github.com/hpungsan/revise/internal/tracker"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

// Deps are the collaborators of the HTTP server. Store and Config are
// required; the rest default when nil.
type Deps struct {
	Store    db.Backend
	Config   *config.Config
	Bus      *events.Bus
	Trackers *tracker.Registry
	Logger   *log.Logger
	Version  string
}

// NewHandlers fills defaults in d and parses the page templates.
func NewHandlers(d Deps) (*Handlers, error) {
	if d.Store == nil || d.Config == nil {
		return nil, fmt.Errorf("web: store and config are required")
	}
	if d.Logger == nil {
		d.Logger = log.Default()
	}
	if d.Bus == nil {
		d.Bus = events.NewBus(events.DefaultBuffer, d.Logger)
	}
	if d.Trackers == nil {
		d.Trackers = tracker.NewRegistry(d.Store, d.Bus, d.Logger, false)
	}

	templateSub, err := fs.Sub(templateFS, "templates")
	if err != nil {
		return nil, fmt.Errorf("template sub-FS: %w", err)
	}
	renderer, err := NewRenderer(templateSub, d.Version)
	if err != nil {
		return nil, err
	}

	return &Handlers{
		store:    d.Store,
		cfg:      d.Config,
		bus:      d.Bus,
		trackers: d.Trackers,
		logger:   d.Logger,
		renderer: renderer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     sameHostOrigin,
		},
	}, nil
}

// NewRouter wires HTTP routes to the handlers.
func NewRouter(h *Handlers) http.Handler {
	staticSub, err := fs.Sub(staticFS, "static")
	if err != nil {
		// The embed pattern guarantees the directory exists.
		panic(err)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(securityHeaders)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/sessions", http.StatusFound)
	})
	r.Get("/healthz", h.HandleHealth)
	r.Get("/sessions", h.HandleSessionsPage)
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServerFS(staticSub)))

	r.Route("/api", func(api chi.Router) {
		api.Post("/messages", h.HandleMessage)
		api.Get("/sessions", h.HandleListSessions)
		api.Get("/sessions/{sessionID}", h.HandleGetSession)
		api.Get("/sessions/{sessionID}/report", h.HandleReport)
		api.Get("/export", h.HandleExport)
		api.Get("/events", h.HandleEvents)
		h.registerTrackerRoutes(api)
	})

	return r
}

// NewServer creates the HTTP server listening on cfg.HTTPAddr. The
// returned close function stops trackers and event streams.
func NewServer(d Deps) (*http.Server, func(), error) {
	h, err := NewHandlers(d)
	if err != nil {
		return nil, nil, err
	}

	srv := &http.Server{
		Addr:              d.Config.HTTPAddr,
		Handler:           NewRouter(h),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return srv, h.Close, nil
}

// securityHeaders adds security-related HTTP headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy", "default-src 'self'; script-src 'self'; style-src 'self'")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		next.ServeHTTP(w, r)
	})
}

// sameHostOrigin accepts websocket upgrades without an Origin header or
// from the server's own host.
func sameHostOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	origin = strings.TrimPrefix(strings.TrimPrefix(origin, "http://"), "https://")
	return strings.EqualFold(origin, r.Host)
}

// Run starts the HTTP server and handles graceful shutdown on SIGINT/SIGTERM.
func Run(srv *http.Server) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	log.Printf("[web] revise running at http://%s", srv.Addr)

	if strings.HasPrefix(srv.Addr, "0.0.0.0") || strings.HasPrefix(srv.Addr, ":") || strings.Contains(srv.Addr, "[::]") {
		log.Printf("[web] WARNING: server is binding to all interfaces and may be accessible from the network")
	}

	select {
	case err := <-errCh:
		return err
	case <-sigCh:
		log.Println("[web] shutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	}
}
