// Package metrics exposes Prometheus instrumentation and the /metrics and
// /healthz HTTP endpoints for the signal engine services.
package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Provider fetch pipeline
	ProviderFetches = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sigengine_provider_fetches_total",
		Help: "Daily-history fetches against the upstream provider (by outcome)",
	}, []string{"outcome"})
	ProviderFetchDur = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "sigengine_provider_fetch_duration_seconds",
		Help:    "Upstream provider fetch latency",
		Buckets: prometheus.DefBuckets,
	})
	BarsIngested = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sigengine_bars_ingested_total",
		Help: "Daily bars accepted into the store",
	})
	BarsDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sigengine_bars_dropped_total",
		Help: "Provider records dropped as unparseable",
	})

	// Redis bar cache
	CacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sigengine_cache_hits_total",
		Help: "Bar-series reads served from the Redis cache",
	})
	CacheMisses = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sigengine_cache_misses_total",
		Help: "Bar-series reads that fell through to SQLite",
	})
	RedisBreakerState = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sigengine_redis_circuit_breaker_state",
		Help: "Redis circuit breaker state (0=closed, 1=open, 2=half-open)",
	})
	RedisBreakerTrips = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sigengine_redis_circuit_breaker_trips_total",
		Help: "Times the Redis circuit breaker tripped open",
	})
	RedisBufferedWrites = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sigengine_redis_buffered_writes_total",
		Help: "Cache writes buffered locally while the breaker is open",
	})

	// SQLite persistence
	SQLiteCommitDur = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "sigengine_sqlite_commit_duration_seconds",
		Help:    "SQLite batch commit latency",
		Buckets: prometheus.DefBuckets,
	})

	// Backtest runs
	BacktestRuns = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sigengine_backtest_runs_total",
		Help: "Completed backtest runs",
	})
	BacktestDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "sigengine_backtest_duration_seconds",
		Help:    "Wall-clock duration of a full backtest run",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	})

	// Results gateway
	WSClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sigengine_ws_clients",
		Help: "Currently connected WebSocket clients",
	})
	WSBroadcasts = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sigengine_ws_broadcasts_total",
		Help: "Messages broadcast to WebSocket clients",
	})
	WSDrops = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sigengine_ws_drops_total",
		Help: "Messages dropped on slow WebSocket clients",
	})
)

func init() {
	prometheus.MustRegister(
		ProviderFetches,
		ProviderFetchDur,
		BarsIngested,
		BarsDropped,
		CacheHits,
		CacheMisses,
		RedisBreakerState,
		RedisBreakerTrips,
		RedisBufferedWrites,
		SQLiteCommitDur,
		BacktestRuns,
		BacktestDuration,
		WSClients,
		WSBroadcasts,
		WSDrops,
	)
}

// HealthStatus tracks dependency connectivity for the /healthz endpoint.
type HealthStatus struct {
	mu sync.RWMutex

	ProviderOK     bool      `json:"provider_ok"`
	LastFetchTime  time.Time `json:"last_fetch_time"`
	RedisConnected bool      `json:"redis_connected"`
	SQLiteOK       bool      `json:"sqlite_ok"`

	RedisLatencyMs  float64   `json:"redis_latency_ms"`
	SQLiteLatencyMs float64   `json:"sqlite_latency_ms"`
	LastCheckAt     time.Time `json:"last_check_at"`
	StartedAt       time.Time `json:"started_at"`
}

// NewHealthStatus returns a default health status.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{StartedAt: time.Now()}
}

func (h *HealthStatus) SetProviderOK(v bool) {
	h.mu.Lock()
	h.ProviderOK = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetLastFetchTime(t time.Time) {
	h.mu.Lock()
	h.LastFetchTime = t
	h.mu.Unlock()
}

// CheckRedis pings Redis and records latency and connectivity.
func (h *HealthStatus) CheckRedis(ctx context.Context, rdb *goredis.Client) {
	start := time.Now()
	err := rdb.Ping(ctx).Err()
	latency := time.Since(start)

	h.mu.Lock()
	h.RedisConnected = err == nil
	h.RedisLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// CheckSQLite runs a trivial query and records latency and health.
func (h *HealthStatus) CheckSQLite(ctx context.Context, db *sql.DB) {
	start := time.Now()
	err := db.PingContext(ctx)
	latency := time.Since(start)

	h.mu.Lock()
	h.SQLiteOK = err == nil
	h.SQLiteLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// StartLivenessChecker runs periodic dependency checks until ctx ends.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, rdb *goredis.Client, sqlDB *sql.DB, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
				if rdb != nil {
					h.CheckRedis(probeCtx, rdb)
				}
				if sqlDB != nil {
					h.CheckSQLite(probeCtx, sqlDB)
				}
				cancel()
			}
		}
	}()
}

// ServeHTTP handles the /healthz endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	overallStatus := "healthy"
	httpCode := http.StatusOK
	if !h.RedisConnected || !h.SQLiteOK {
		overallStatus = "degraded"
		httpCode = http.StatusServiceUnavailable
	}
	if !h.RedisConnected && !h.SQLiteOK {
		overallStatus = "unhealthy"
	}

	fetchAge := ""
	if !h.LastFetchTime.IsZero() {
		fetchAge = time.Since(h.LastFetchTime).Round(time.Millisecond).String()
	}

	status := struct {
		Status          string  `json:"status"`
		Uptime          string  `json:"uptime"`
		ProviderOK      bool    `json:"provider_ok"`
		LastFetchTime   string  `json:"last_fetch_time"`
		FetchAge        string  `json:"fetch_age"`
		RedisConnected  bool    `json:"redis_connected"`
		RedisLatencyMs  float64 `json:"redis_latency_ms"`
		SQLiteOK        bool    `json:"sqlite_ok"`
		SQLiteLatencyMs float64 `json:"sqlite_latency_ms"`
		LastCheckAt     string  `json:"last_check_at"`
	}{
		Status:          overallStatus,
		Uptime:          time.Since(h.StartedAt).Round(time.Second).String(),
		ProviderOK:      h.ProviderOK,
		LastFetchTime:   h.LastFetchTime.Format(time.RFC3339),
		FetchAge:        fetchAge,
		RedisConnected:  h.RedisConnected,
		RedisLatencyMs:  h.RedisLatencyMs,
		SQLiteOK:        h.SQLiteOK,
		SQLiteLatencyMs: h.SQLiteLatencyMs,
		LastCheckAt:     h.LastCheckAt.Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if httpCode != http.StatusOK {
		w.WriteHeader(httpCode)
	}
	json.NewEncoder(w).Encode(status)
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	health *HealthStatus
	addr   string
	srv    *http.Server
}

// NewServer creates a metrics and health server.
func NewServer(addr string, health *HealthStatus) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", health.ServeHTTP)

	return &Server{
		health: health,
		addr:   addr,
		srv: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
	}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("[metrics] server listening on %s", s.addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("[metrics] server error: %v", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}
