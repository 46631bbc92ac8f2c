// Package redis caches daily bar series and fans out run results over
// Pub/Sub. SQLite remains the source of truth; everything here is
// reconstructable, so cache writes go through a circuit breaker and are
// buffered locally while Redis is down.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"github.com/JDkeyzl/getStocksData/internal/metrics"
	"github.com/JDkeyzl/getStocksData/internal/model"
)

const (
	barsKeyPrefix  = "bars:daily:"
	runChannel     = "pub:backtest:run"
	defaultBarsTTL = 24 * time.Hour
)

// Config configures the cache connection.
type Config struct {
	Addr     string // Redis address, e.g. "localhost:6379"
	Password string
	DB       int
}

// Cache is the Redis-backed bar cache. All writes run through the circuit
// breaker; while the breaker is open the latest series per symbol is kept
// in memory and flushed when Redis recovers.
type Cache struct {
	client *goredis.Client
	cb     *CircuitBreaker

	mu      sync.Mutex
	pending map[string][]model.Bar // symbol -> series buffered while open
}

// New connects to Redis and pings the server.
func New(cfg Config) (*Cache, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	c := &Cache{
		client:  client,
		cb:      NewCircuitBreaker(5, 10*time.Second),
		pending: make(map[string][]model.Bar),
	}
	c.cb.OnStateChange = func(from, to State) {
		log.Printf("[redis] circuit breaker %s -> %s", from, to)
		metrics.RedisBreakerState.Set(float64(to))
		if to == StateOpen {
			metrics.RedisBreakerTrips.Inc()
		}
		if to == StateClosed {
			go c.flushPending(context.Background())
		}
	}

	log.Printf("[redis] connected to %s", cfg.Addr)
	return c, nil
}

// Client returns the underlying Redis client for health checks.
func (c *Cache) Client() *goredis.Client { return c.client }

// PutBars caches the full series for a symbol. A series that arrives while
// the breaker is open replaces any buffered copy; only the newest matters.
func (c *Cache) PutBars(ctx context.Context, symbol string, bars []model.Bar) error {
	err := c.cb.Execute(func() error {
		return c.setBars(ctx, symbol, bars)
	})
	if err == ErrCircuitOpen {
		c.mu.Lock()
		c.pending[symbol] = bars
		c.mu.Unlock()
		metrics.RedisBufferedWrites.Inc()
		return nil
	}
	return err
}

func (c *Cache) setBars(ctx context.Context, symbol string, bars []model.Bar) error {
	data, err := json.Marshal(bars)
	if err != nil {
		return fmt.Errorf("marshal bars: %w", err)
	}
	if err := c.client.Set(ctx, barsKeyPrefix+symbol, data, defaultBarsTTL).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", symbol, err)
	}
	return nil
}

// GetBars returns the cached series for a symbol, or nil on a miss. A Redis
// outage reads as a miss so callers fall through to SQLite. A plain miss is
// not a breaker failure.
func (c *Cache) GetBars(ctx context.Context, symbol string) ([]model.Bar, error) {
	var bars []model.Bar
	var miss bool
	err := c.cb.Execute(func() error {
		data, err := c.client.Get(ctx, barsKeyPrefix+symbol).Result()
		if err == goredis.Nil {
			miss = true
			return nil
		}
		if err != nil {
			return err
		}
		return json.Unmarshal([]byte(data), &bars)
	})
	if err != nil {
		metrics.CacheMisses.Inc()
		if err == ErrCircuitOpen {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get %s: %w", symbol, err)
	}
	if miss {
		metrics.CacheMisses.Inc()
		return nil, nil
	}
	metrics.CacheHits.Inc()
	return bars, nil
}

// PublishRun fans a serialized run result out to Pub/Sub subscribers (the
// results gateway). Best effort; a down Redis only costs live streaming.
func (c *Cache) PublishRun(ctx context.Context, payload []byte) error {
	return c.cb.Execute(func() error {
		return c.client.Publish(ctx, runChannel, payload).Err()
	})
}

// SubscribeRuns subscribes to the run-result channel. The caller consumes
// from the returned PubSub's Channel() and closes it when done.
func (c *Cache) SubscribeRuns(ctx context.Context) (*goredis.PubSub, error) {
	pubsub := c.client.Subscribe(ctx, runChannel)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("redis subscribe %s: %w", runChannel, err)
	}
	return pubsub, nil
}

// flushPending replays series buffered during an outage.
func (c *Cache) flushPending(ctx context.Context) {
	c.mu.Lock()
	if len(c.pending) == 0 {
		c.mu.Unlock()
		return
	}
	toFlush := c.pending
	c.pending = make(map[string][]model.Bar)
	c.mu.Unlock()

	flushed := 0
	for symbol, bars := range toFlush {
		if err := c.setBars(ctx, symbol, bars); err != nil {
			log.Printf("[redis] flush %s failed: %v", symbol, err)
			continue
		}
		flushed++
	}
	if flushed > 0 {
		log.Printf("[redis] flushed %d buffered series", flushed)
	}
}

// PendingCount returns the number of symbols buffered while the breaker is
// open.
func (c *Cache) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Close closes the Redis client.
func (c *Cache) Close() error {
	return c.client.Close()
}
