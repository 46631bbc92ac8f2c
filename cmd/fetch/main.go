// cmd/fetch pulls daily history from the upstream provider into SQLite and
// the Redis cache. By default it updates incrementally from the latest
// stored date; --interval turns it into a long-running updater with
// /metrics and /healthz exposed.
//
// Usage:
//
//	go run ./cmd/fetch --symbol=sh.600000
//	go run ./cmd/fetch --symbol=sh.600000 --full --from=2015-01-01
//	go run ./cmd/fetch --symbol=sh.600000 --interval=6h
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"

	"github.com/JDkeyzl/getStocksData/config"
	"github.com/JDkeyzl/getStocksData/internal/logger"
	"github.com/JDkeyzl/getStocksData/internal/metrics"
	"github.com/JDkeyzl/getStocksData/internal/model"
	redisstore "github.com/JDkeyzl/getStocksData/internal/store/redis"
	sqlitestore "github.com/JDkeyzl/getStocksData/internal/store/sqlite"
	"github.com/JDkeyzl/getStocksData/pkg/histdata"
)

func main() {
	godotenv.Load()
	logger.Init("fetch", slog.LevelInfo)

	cfg := config.Load()

	symbol := flag.String("symbol", "", "Instrument to fetch (required)")
	fromStr := flag.String("from", "", "Start date YYYY-MM-DD (ignored unless --full)")
	toStr := flag.String("to", "", "End date YYYY-MM-DD (empty = today)")
	full := flag.Bool("full", false, "Refetch the whole range instead of updating incrementally")
	interval := flag.Duration("interval", 0, "Re-fetch period; 0 runs once and exits")
	flag.Parse()

	if *symbol == "" {
		log.Fatal("[fetch] --symbol is required")
	}
	cfg.RequireProviderCreds()

	writer, err := sqlitestore.New(sqlitestore.WriterConfig{DBPath: cfg.SQLitePath})
	if err != nil {
		log.Fatalf("[fetch] sqlite open failed: %v", err)
	}
	defer writer.Close()

	reader, err := sqlitestore.NewReader(cfg.SQLitePath)
	if err != nil {
		log.Fatalf("[fetch] sqlite reader open failed: %v", err)
	}
	defer reader.Close()

	// Redis is optional here; without it the cache just stays cold.
	cache, err := redisstore.New(redisstore.Config{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	if err != nil {
		log.Printf("[fetch] WARNING: redis unavailable, cache will not be warmed: %v", err)
		cache = nil
	} else {
		defer cache.Close()
	}

	client := histdata.New(histdata.Config{
		BaseURL:    cfg.ProviderBaseURL,
		ClientCode: cfg.ProviderClientCode,
		Password:   cfg.ProviderPassword,
		TOTPSecret: cfg.ProviderTOTPSecret,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	health := metrics.NewHealthStatus()

	if *interval <= 0 {
		if err := fetchOnce(ctx, client, writer, reader, cache, health, *symbol, *fromStr, *toStr, *full); err != nil {
			log.Fatalf("[fetch] %v", err)
		}
		return
	}

	// Long-running mode: keep the series current and expose health.
	var rdbClient *goredis.Client
	if cache != nil {
		rdbClient = cache.Client()
	}
	health.StartLivenessChecker(ctx, rdbClient, writer.DB(), 30*time.Second)
	msrv := metrics.NewServer(cfg.MetricsAddr, health)
	msrv.Start()
	defer msrv.Stop(context.Background())

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()
	for {
		if err := fetchOnce(ctx, client, writer, reader, cache, health, *symbol, *fromStr, *toStr, *full); err != nil {
			log.Printf("[fetch] update failed: %v", err)
		}
		// Only the first pass honors --full; refreshes are incremental.
		*full = false

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// fetchOnce logs in, pulls the outstanding range, persists it, and warms the
// cache with the full stored series.
func fetchOnce(ctx context.Context, client *histdata.Client, writer *sqlitestore.Writer,
	reader *sqlitestore.Reader, cache *redisstore.Cache, health *metrics.HealthStatus,
	symbol, fromStr, toStr string, full bool) error {

	from := parseDate("from", fromStr)
	to := parseDate("to", toStr)

	if !full {
		last, err := writer.LastBarDate(symbol)
		if err != nil {
			return err
		}
		if !last.IsZero() {
			next := last.AddDate(0, 0, 1)
			if !to.IsZero() && next.After(to) {
				log.Printf("[fetch] %s already current through %s", symbol, last.Format(model.DateLayout))
				return nil
			}
			from = next
			log.Printf("[fetch] %s incremental update from %s", symbol, from.Format(model.DateLayout))
		}
	}

	if err := client.Login(ctx); err != nil {
		health.SetProviderOK(false)
		return err
	}
	defer client.Logout(ctx)

	records, err := client.DailyHistory(ctx, symbol, from, to)
	if err != nil {
		health.SetProviderOK(false)
		return err
	}
	health.SetProviderOK(true)
	health.SetLastFetchTime(time.Now())

	bars, dropped := histdata.ParseRecords(symbol, records)
	if dropped > 0 {
		log.Printf("[fetch] %s: dropped %d unparseable records", symbol, dropped)
	}
	if len(bars) == 0 {
		log.Printf("[fetch] %s: nothing new", symbol)
		return nil
	}

	if err := writer.UpsertBars(symbol, bars); err != nil {
		return err
	}
	metrics.BarsIngested.Add(float64(len(bars)))
	log.Printf("[fetch] %s: stored %d bars (%s .. %s)", symbol, len(bars),
		bars[0].DateString(), bars[len(bars)-1].DateString())

	if cache != nil {
		// Cache the full stored series, not just the new tail, so readers
		// always see one complete ascending series per symbol.
		if all, err := reader.ReadBars(symbol, time.Time{}, time.Time{}); err == nil {
			if err := cache.PutBars(ctx, symbol, all); err != nil {
				log.Printf("[fetch] WARNING: cache warm failed: %v", err)
			}
		}
	}
	return nil
}

func parseDate(name, s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(model.DateLayout, s)
	if err != nil {
		log.Fatalf("[fetch] bad --%s %q: %v", name, s, err)
	}
	return t
}
