package web

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"wikical/internal/config"
	"wikical/internal/feed"
	appLog "wikical/internal/log"
	"wikical/internal/metrics"
	"wikical/internal/wiki"
)

// expiresInPast makes intermediaries treat every response as stale.
const expiresInPast = "Sat, 26 Jul 1997 05:00:00 GMT"

// Builder renders the calendar for one request.
type Builder interface {
	Build(ctx context.Context) (feed.Result, error)
}

// Server serves the calendar feed. Each request performs a fresh fetch; no
// response is cached between requests.
type Server struct {
	cfg     *config.Config
	builder Builder
	router  chi.Router
}

// NewServer constructs a new Server.
func NewServer(cfg *config.Config, builder Builder) *Server {
	s := &Server{
		cfg:     cfg,
		builder: builder,
		router:  chi.NewRouter(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) registerRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.GetHead)
	s.router.Use(metrics.Middleware())

	s.router.Get("/health", s.handleHealth)
	s.router.Get("/", s.handleCalendar)
	s.router.Get("/calendar.ics", s.handleCalendar)

	if s.cfg.Metrics {
		s.router.Handle("/metrics", metrics.Handler())
	}
}

// Run serves on cfg.Listen until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleCalendar fetches the events page and writes the ICS document.
//
// GET /calendar.ics (also served at /)
//   - 200 with the calendar
//   - 502 when the wiki cannot be reached or returns an unexpected document
func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	res, err := s.builder.Build(r.Context())
	if err != nil {
		status := http.StatusInternalServerError
		msg := "failed to build calendar"
		switch {
		case errors.Is(err, wiki.ErrFetch):
			status = http.StatusBadGateway
			msg = "failed to fetch events page"
		case errors.Is(err, wiki.ErrDecode):
			status = http.StatusBadGateway
			msg = "unexpected response from events page"
		}
		appLog.Error("calendar request failed", err,
			"status", status,
			"request_id", middleware.GetReqID(r.Context()),
		)
		writeError(w, status, msg)
		return
	}

	appLog.Info("calendar served",
		"events", res.Extracted,
		"vevents", res.Rendered,
		"request_id", middleware.GetReqID(r.Context()),
	)

	h := w.Header()
	h.Set("Content-Type", "text/calendar; charset=utf-8")
	h.Set("Content-Disposition", `inline; filename="calendar.ics"`)
	h.Set("Cache-Control", "no-cache, must-revalidate")
	h.Set("Expires", expiresInPast)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(res.Document)); err != nil {
		appLog.Error("failed to write calendar response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache, must-revalidate")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(msg + "\n"))
}
