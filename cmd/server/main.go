// cmd/server hosts the reporting API: REST access to stored bars, journaled
// runs, trades and snapshots, POST /api/backtest to run the strategy on
// demand, and a WebSocket feed of run results. Metrics and health live on a
// separate listener.
package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"

	"github.com/JDkeyzl/getStocksData/config"
	"github.com/JDkeyzl/getStocksData/internal/backtest"
	"github.com/JDkeyzl/getStocksData/internal/gateway"
	"github.com/JDkeyzl/getStocksData/internal/logger"
	"github.com/JDkeyzl/getStocksData/internal/metrics"
	redisstore "github.com/JDkeyzl/getStocksData/internal/store/redis"
	sqlitestore "github.com/JDkeyzl/getStocksData/internal/store/sqlite"
)

func main() {
	godotenv.Load()
	slogger := logger.Init("server", slog.LevelInfo)
	log.Println("[server] starting...")

	cfg := config.Load()

	writer, err := sqlitestore.New(sqlitestore.WriterConfig{DBPath: cfg.SQLitePath})
	if err != nil {
		log.Fatalf("[server] sqlite open failed: %v", err)
	}
	defer writer.Close()

	reader, err := sqlitestore.NewReader(cfg.SQLitePath)
	if err != nil {
		log.Fatalf("[server] sqlite reader open failed: %v", err)
	}
	defer reader.Close()

	// Redis is optional: without it bar reads hit SQLite directly and run
	// results are only broadcast to local WebSocket clients.
	cache, err := redisstore.New(redisstore.Config{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	if err != nil {
		log.Printf("[server] WARNING: redis unavailable: %v", err)
		cache = nil
	} else {
		defer cache.Close()
	}

	params := config.DefaultStrategyParams()
	runner, err := backtest.NewRunner(params, slogger)
	if err != nil {
		log.Fatalf("[server] %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := gateway.NewHub()
	if cache != nil {
		go func() {
			if err := hub.RunPubSub(ctx, cache); err != nil {
				log.Printf("[server] run pubsub stopped: %v", err)
			}
		}()
	}

	gw := &gateway.Server{
		Hub:    hub,
		Reader: reader,
		Writer: writer,
		Cache:  cache,
		Runner: runner,
		Params: params,
	}

	// Metrics and health on their own listener.
	health := metrics.NewHealthStatus()
	var rdbClient *goredis.Client
	if cache != nil {
		rdbClient = cache.Client()
	}
	health.StartLivenessChecker(ctx, rdbClient, writer.DB(), 30*time.Second)
	msrv := metrics.NewServer(cfg.MetricsAddr, health)
	msrv.Start()

	srv := &http.Server{Addr: cfg.ServerAddr, Handler: gw.Routes()}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("[server] serving at http://localhost%s", cfg.ServerAddr)
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatalf("[server] server error: %v", err)
		}
	}()

	<-sigCh
	log.Println("[server] shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	srv.Shutdown(shutdownCtx)
	msrv.Stop(shutdownCtx)
}
