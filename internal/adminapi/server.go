// Package adminapi is the internal operational HTTP surface: health,
// readiness, stats and prometheus metrics. It is explicitly NOT the
// out-of-scope public REST API (spec.md's Non-goals exclude CRUD on alert
// configs, Swagger docs, rate-limiting middleware on a public surface) —
// this is the introspection endpoint set SPEC_FULL.md §6 adds as ambient
// scope, meant to sit behind cluster-internal networking.
//
// Grounded on the teacher's api.Server: a *http.Server wrapped in a struct
// with Start(ctx)/Stop(ctx), graceful shutdown on context cancellation.
package adminapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/xrplnotify/xrplnotify/internal/metrics"
	"github.com/xrplnotify/xrplnotify/internal/supervisor"
)

// StatusProvider reports the connection supervisor's health snapshot.
type StatusProvider interface {
	GetStatus() supervisor.Status
}

// StatsProvider reports store-level counters for /stats.
type StatsProvider interface {
	Stats() (map[string]int64, error)
}

// Config configures the Server.
type Config struct {
	Addr string // host:port
}

// Server is the admin HTTP surface.
type Server struct {
	cfg        Config
	log        *zap.SugaredLogger
	status     StatusProvider
	stats      StatsProvider
	httpServer *http.Server
}

// New builds an admin Server. status/stats may be nil, in which case their
// endpoints report a degraded-but-non-fatal response.
func New(cfg Config, log *zap.SugaredLogger, status StatusProvider, stats StatsProvider) *Server {
	return &Server{cfg: cfg, log: log, status: status, stats: stats}
}

// Start begins serving (blocking) until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	r := chi.NewRouter()
	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)
	r.Get("/stats", s.handleStats)
	r.Handle("/metrics", promhttp.Handler())

	handler := cors.New(cors.Options{AllowedOrigins: []string{"*"}, AllowedMethods: []string{"GET"}}).Handler(r)

	addr := s.cfg.Addr
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.httpServer.Shutdown(shutdownCtx)
	}()

	if s.log != nil {
		s.log.Infow("admin api listening", "addr", addr)
	}
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if s.status == nil {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready (no supervisor wired)"))
		return
	}
	if s.status.GetStatus().ConnectedNodes == 0 {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("no connected nodes"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	body := map[string]interface{}{}
	if s.stats != nil {
		counts, err := s.stats.Stats()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		body["store"] = counts
		metrics.QueueDepth.WithLabelValues("notifications_pending").Set(float64(counts["notifications_pending"]))
		metrics.QueueDepth.WithLabelValues("open_ledger_gaps").Set(float64(counts["open_ledger_gaps"]))
	}
	if s.status != nil {
		st := s.status.GetStatus()
		body["supervisor"] = map[string]interface{}{
			"activeNode":      st.ActiveNode,
			"lastLedgerIndex": st.LastLedgerIndex,
			"connectedNodes":  st.ConnectedNodes,
			"openGaps":        st.OpenGaps,
		}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(body)
}
