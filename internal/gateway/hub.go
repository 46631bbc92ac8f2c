// Package gateway streams backtest results to WebSocket clients and serves
// the REST reporting API. Run results arrive either directly from an
// in-process runner or via Redis Pub/Sub when the backtest ran elsewhere.
package gateway

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/JDkeyzl/getStocksData/internal/metrics"
	redisstore "github.com/JDkeyzl/getStocksData/internal/store/redis"
)

// Hub manages connected WebSocket clients and fans run envelopes out to
// them. The latest envelope is cached so a client connecting between runs
// still gets current state.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool
	latest  json.RawMessage
	latestT time.Time
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[*Client]bool)}
}

// HandleWSRequest registers an upgraded connection and starts its pumps.
func (h *Hub) HandleWSRequest(conn *websocket.Conn) {
	client := &Client{
		conn: conn,
		send: make(chan []byte, 256),
		hub:  h,
	}
	conn.EnableWriteCompression(true)

	h.mu.Lock()
	h.clients[client] = true
	count := len(h.clients)
	h.mu.Unlock()
	metrics.WSClients.Set(float64(count))

	log.Printf("[gateway] ws client connected (%d total)", count)

	go client.sendInitialState()
	go client.writePump()
	go client.readPump()
}

// RemoveClient drops a client from the hub.
func (h *Hub) RemoveClient(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	count := len(h.clients)
	h.mu.Unlock()
	metrics.WSClients.Set(float64(count))
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// BroadcastRun wraps a serialized run result in an envelope and sends it to
// every client. Slow clients are skipped, not blocked on.
func (h *Hub) BroadcastRun(payload []byte) {
	envelope, err := json.Marshal(RunEnvelope{
		Type: "run_result",
		TS:   time.Now().Format(time.RFC3339Nano),
		Data: json.RawMessage(payload),
	})
	if err != nil {
		log.Printf("[gateway] envelope marshal: %v", err)
		return
	}

	h.mu.Lock()
	h.latest = envelope
	h.latestT = time.Now()
	h.mu.Unlock()

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		select {
		case client.send <- envelope:
			metrics.WSBroadcasts.Inc()
		default:
			metrics.WSDrops.Inc()
		}
	}
}

// RunPubSub consumes run results published through Redis and rebroadcasts
// them locally. Blocks until ctx is cancelled.
func (h *Hub) RunPubSub(ctx context.Context, cache *redisstore.Cache) error {
	pubsub, err := cache.SubscribeRuns(ctx)
	if err != nil {
		return err
	}
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			h.BroadcastRun([]byte(msg.Payload))
		}
	}
}
