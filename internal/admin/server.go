package admin

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"greedos/internal/dashboard"
	"greedos/internal/forensic"
	"greedos/internal/logging"
	"greedos/internal/sim"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	defaultEventsLimit = 50
	shutdownTimeout    = 5 * time.Second
)

// Snapshotter produces dashboard snapshots.
type Snapshotter interface {
	Snapshot() dashboard.Snapshot
}

// EventReader exposes the most recent forensic events.
type EventReader interface {
	Recent(n int) []forensic.Event
	Len() int
}

// AlertLister lists fired alerts without running detection.
type AlertLister interface {
	Alerts() []sim.Alert
}

// Stopper cooperatively stops the load generator.
type Stopper interface {
	Stop()
}

// Server is a read-mostly HTTP view of a run. It never generates traffic.
type Server struct {
	dash    Snapshotter
	events  EventReader
	alerts  AlertLister
	stopper Stopper
	tpl     *template.Template
	log     *slog.Logger
}

//go:embed templates/index.html
var content embed.FS

// NewServer creates a Server.
func NewServer(dash Snapshotter, events EventReader, alerts AlertLister, stopper Stopper, log *slog.Logger) *Server {
	if log == nil {
		log = logging.FromContext(context.Background())
	}
	tpl := template.Must(template.New("index.html").ParseFS(content, "templates/index.html"))
	return &Server{dash: dash, events: events, alerts: alerts, stopper: stopper, tpl: tpl, log: log}
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /events", s.handleEvents)
	mux.HandleFunc("GET /alerts", s.handleAlerts)
	mux.HandleFunc("POST /stop", s.handleStop)
	mux.Handle("GET /metrics", promhttp.Handler())
	return mux
}

// Start serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	s.log.Info("admin server listening", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn("admin response failed", "error", err)
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if err := s.tpl.Execute(w, s.dash.Snapshot()); err != nil {
		s.log.Warn("admin index render failed", "error", err)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, s.dash.Snapshot())
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	n := defaultEventsLimit
	if v := r.URL.Query().Get("n"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 0 {
			http.Error(w, "n must be a non-negative integer", http.StatusBadRequest)
			return
		}
		n = parsed
	}
	events := s.events.Recent(n)
	if events == nil {
		events = []forensic.Event{}
	}
	s.writeJSON(w, events)
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	alerts := s.alerts.Alerts()
	if alerts == nil {
		alerts = []sim.Alert{}
	}
	s.writeJSON(w, alerts)
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.log.Info("stop requested via admin server", "remote", r.RemoteAddr)
	s.stopper.Stop()
	s.writeJSON(w, map[string]any{"stopped": true})
}
