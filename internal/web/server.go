package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/vadiminshakov/fundboard/internal/domain"
	"github.com/vadiminshakov/fundboard/internal/events"
	"github.com/vadiminshakov/fundboard/internal/observability"
)

const (
	defaultStreamInterval = 5 * time.Second
	heartbeatInterval     = 30 * time.Second
	streamBuffer          = 4
	shutdownTimeout       = 5 * time.Second

	defaultLeaderboardLimit = 10
	maxLeaderboardLimit     = 100

	headerDataStatus = "X-Data-Status"
)

type dashboard interface {
	Contributions(ctx context.Context, kind domain.AssetKind) domain.Contribution
	Leaderboard(ctx context.Context, kind domain.AssetKind, limit int) domain.Contribution
	ClaimedAmount(ctx context.Context) domain.ClaimedAmount
	MiningStats(ctx context.Context) domain.MiningStats
	RaiseValue(ctx context.Context) domain.RaiseValue
}

// Server exposes the dashboard JSON API, an SSE stream and the HTML UI.
type Server struct {
	Addr           string
	Dashboard      dashboard
	StreamInterval time.Duration
	// StaticDir serves a prebuilt frontend instead of the embedded page when set.
	StaticDir      string
	AllowedOrigins []string

	stream  *events.Broadcaster[streamSnapshot]
	logger  *zap.Logger
	metrics *observability.Metrics
}

// NewServer creates a new web server instance.
func NewServer(addr string, dash dashboard, logger *zap.Logger, metrics *observability.Metrics) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		Addr:           addr,
		Dashboard:      dash,
		StreamInterval: defaultStreamInterval,
		stream:         events.NewBroadcaster[streamSnapshot](streamBuffer),
		logger:         logger,
		metrics:        metrics,
	}
}

// Handler builds the routing tree.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.route(mux, "GET /api/contributions", s.handleContributions)
	s.route(mux, "GET /api/token-collection", s.handleTokenCollection)
	s.route(mux, "GET /api/claimed-maxx", s.handleClaimed)
	s.route(mux, "GET /api/mining-stats", s.handleMiningStats)
	s.route(mux, "GET /api/leaderboard", s.handleLeaderboard)
	s.route(mux, "GET /api/raise-value", s.handleRaiseValue)
	s.route(mux, "GET /api/stream", s.handleStream)
	s.route(mux, "GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", s.metrics.Handler())

	if s.StaticDir != "" {
		mux.Handle("GET /", spaHandler(s.StaticDir))
	} else {
		s.route(mux, "GET /{$}", s.handleIndex)
	}

	return withCORS(s.AllowedOrigins, s.withRequestLogging(mux))
}

// Start runs the HTTP server (blocking) and shuts it down when ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	server := &http.Server{
		Addr:              s.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go s.RunStream(ctx)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("web server listening", zap.String("addr", s.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) route(mux *http.ServeMux, pattern string, h http.HandlerFunc) {
	mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		rec, ok := w.(*statusRecorder)
		h(w, r)
		if ok {
			s.metrics.RecordHTTPRequest(pattern, rec.status)
		}
	})
}

func (s *Server) handleContributions(w http.ResponseWriter, r *http.Request) {
	c := s.Dashboard.Contributions(r.Context(), domain.AssetNative)
	s.markStatus(w, "contributions", c.Status)
	writeJSON(w, http.StatusOK, newContributionsResponse(c.Summary))
}

func (s *Server) handleTokenCollection(w http.ResponseWriter, r *http.Request) {
	c := s.Dashboard.Contributions(r.Context(), domain.AssetToken)
	s.markStatus(w, "token-collection", c.Status)
	writeJSON(w, http.StatusOK, newTokenCollectionResponse(c.Summary))
}

func (s *Server) handleClaimed(w http.ResponseWriter, r *http.Request) {
	res := s.Dashboard.ClaimedAmount(r.Context())
	s.markStatus(w, "claimed-maxx", res.Status)
	writeJSON(w, http.StatusOK, claimedResponse{Claimed: num(res.Amount)})
}

func (s *Server) handleMiningStats(w http.ResponseWriter, r *http.Request) {
	stats := s.Dashboard.MiningStats(r.Context())
	s.markStatus(w, "mining-stats", stats.Status)
	writeJSON(w, http.StatusOK, newMiningStatsResponse(stats))
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	kind, ok := domain.ParseAssetKind(q.Get("asset"))
	if !ok {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown asset %q, expected native or token", q.Get("asset")))
		return
	}

	limit := defaultLeaderboardLimit
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid limit %q", v))
			return
		}
		limit = min(n, maxLeaderboardLimit)
	}

	c := s.Dashboard.Leaderboard(r.Context(), kind, limit)
	s.markStatus(w, "leaderboard", c.Status)
	writeJSON(w, http.StatusOK, newLeaderboardResponse(kind, c.Summary.Contributions))
}

func (s *Server) handleRaiseValue(w http.ResponseWriter, r *http.Request) {
	rv := s.Dashboard.RaiseValue(r.Context())
	s.markStatus(w, "raise-value", rv.Status)
	writeJSON(w, http.StatusOK, newRaiseValueResponse(rv))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, indexHTML)
}

type streamSnapshot struct {
	Contributions   contributionsResponse
	TokenCollection tokenCollectionResponse
	Claimed         claimedResponse
}

func (s *Server) snapshot(ctx context.Context) streamSnapshot {
	native := s.Dashboard.Contributions(ctx, domain.AssetNative)
	token := s.Dashboard.Contributions(ctx, domain.AssetToken)
	claimed := s.Dashboard.ClaimedAmount(ctx)
	return streamSnapshot{
		Contributions:   newContributionsResponse(native.Summary),
		TokenCollection: newTokenCollectionResponse(token.Summary),
		Claimed:         claimedResponse{Claimed: num(claimed.Amount)},
	}
}

// RunStream refreshes the headline figures every StreamInterval and publishes
// them to connected stream clients. Ticks with no clients are skipped.
func (s *Server) RunStream(ctx context.Context) {
	interval := s.StreamInterval
	if interval <= 0 {
		interval = defaultStreamInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.stream.Subscribers() == 0 {
				continue
			}
			if dropped := s.stream.Publish(s.snapshot(ctx)); dropped > 0 {
				s.logger.Debug("stream clients lagging", zap.Int("dropped", dropped))
			}
		}
	}
}

// handleStream sends the current figures and then every published update.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	sub := s.stream.Subscribe()
	defer s.stream.Unsubscribe(sub)

	// send a comment heartbeat so proxies keep connection
	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	ctx := r.Context()
	if err := writeSnapshot(w, s.snapshot(ctx)); err != nil {
		s.logger.Warn("stream initial send failed", zap.Error(err))
		return
	}
	flusher.Flush()

	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			fmt.Fprintf(w, ": ping\n\n")
			flusher.Flush()
		case snap, open := <-sub:
			if !open {
				return
			}
			if err := writeSnapshot(w, snap); err != nil {
				s.logger.Debug("stream send failed, closing", zap.Error(err))
				return
			}
			flusher.Flush()
		}
	}
}

func writeSnapshot(w http.ResponseWriter, snap streamSnapshot) error {
	if err := writeEvent(w, "contributions", snap.Contributions); err != nil {
		return err
	}
	if err := writeEvent(w, "token-collection", snap.TokenCollection); err != nil {
		return err
	}
	return writeEvent(w, "claimed", snap.Claimed)
}

func (s *Server) markStatus(w http.ResponseWriter, endpoint string, status domain.Status) {
	if !status.IsDegraded() {
		return
	}
	w.Header().Set(headerDataStatus, status.Freshness.String())
	s.metrics.RecordDegraded(endpoint)
	s.logger.Debug("serving degraded data", zap.String("endpoint", endpoint), zap.Error(status.Reason))
}

func writeEvent(w http.ResponseWriter, event string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload)
	return err
}

// writeJSON marshals v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// spaHandler serves files from dir and falls back to index.html for client-side routes.
func spaHandler(dir string) http.Handler {
	files := http.FileServer(http.Dir(dir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := filepath.Join(dir, filepath.Clean("/"+r.URL.Path))
		if info, err := os.Stat(path); err != nil || info.IsDir() {
			http.ServeFile(w, r, filepath.Join(dir, "index.html"))
			return
		}
		files.ServeHTTP(w, r)
	})
}
