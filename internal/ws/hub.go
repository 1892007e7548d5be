package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/cribnosh/verify-api/internal/model"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	redisChannel   = "cribnosh:otp-events"
	publishTimeout = 2 * time.Second
)

// Hub fans OTP lifecycle events out to connected admin dashboards.
// With Redis configured, events travel through Pub/Sub so every instance
// sees every event; without it delivery is local to this process.
type Hub struct {
	// Map of admin username -> set of connections (one admin can have multiple tabs)
	clients map[string]map[*Client]bool
	mu      sync.RWMutex

	register   chan *Client
	unregister chan *Client

	// Channel for broadcasting events to local clients
	broadcast chan *model.WSEvent

	// nil disables Pub/Sub
	rdb *redis.Client
}

// NewHub creates a new WebSocket Hub
func NewHub(rdb *redis.Client) *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *model.WSEvent, 256),
		rdb:        rdb,
	}
}

// Run starts the Hub's main event loop
func (h *Hub) Run(ctx context.Context) {
	if h.rdb != nil {
		go h.subscribeRedis(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return

		case client := <-h.register:
			h.addClient(client)

		case client := <-h.unregister:
			h.removeClient(client)

		case event := <-h.broadcast:
			h.broadcastToLocal(event)
		}
	}
}

// Register queues a client for registration with the hub
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Publish implements service.EventPublisher. It never blocks the caller for
// longer than publishTimeout and drops events when the local queue is full.
func (h *Hub) Publish(ctx context.Context, event model.WSEvent) {
	if h.rdb == nil {
		h.enqueue(&event)
		return
	}

	data, err := json.Marshal(event)
	if err != nil {
		zap.L().Error("error marshaling event for Redis", zap.Error(err))
		return
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := h.rdb.Publish(pubCtx, redisChannel, data).Err(); err != nil {
		zap.L().Warn("error publishing to Redis, delivering locally", zap.Error(err))
		h.enqueue(&event)
	}
}

func (h *Hub) enqueue(event *model.WSEvent) {
	select {
	case h.broadcast <- event:
	default:
		zap.L().Warn("event queue full, dropping event", zap.String("type", event.Type))
	}
}

// ClientCount returns the number of live connections on this instance
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, clients := range h.clients {
		n += len(clients)
	}
	return n
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.Username]; !ok {
		h.clients[client.Username] = make(map[*Client]bool)
	}
	h.clients[client.Username][client] = true
	zap.L().Info("✅ admin feed connected",
		zap.String("username", client.Username),
		zap.Int("connections", len(h.clients[client.Username])))
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if clients, ok := h.clients[client.Username]; ok {
		if clients[client] {
			delete(clients, client)
			close(client.send)
		}
		if len(clients) == 0 {
			delete(h.clients, client.Username)
		}
	}
	zap.L().Info("admin feed disconnected", zap.String("username", client.Username))
}

// broadcastToLocal sends an event to all connected local clients.
// Slow clients whose buffer is full are dropped.
func (h *Hub) broadcastToLocal(event *model.WSEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		zap.L().Error("error marshaling broadcast event", zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for username, clients := range h.clients {
		for client := range clients {
			select {
			case client.send <- data:
			default:
				close(client.send)
				delete(clients, client)
			}
		}
		if len(clients) == 0 {
			delete(h.clients, username)
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for username, clients := range h.clients {
		for client := range clients {
			close(client.send)
		}
		delete(h.clients, username)
	}
}

// ========== Redis Pub/Sub for Horizontal Scaling ==========

// subscribeRedis subscribes to Redis and delivers events to local clients
func (h *Hub) subscribeRedis(ctx context.Context) {
	pubsub := h.rdb.Subscribe(ctx, redisChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	zap.L().Info("📡 Redis Pub/Sub subscriber started", zap.String("channel", redisChannel))

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var event model.WSEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				zap.L().Warn("error unmarshaling Redis message", zap.Error(err))
				continue
			}
			h.enqueue(&event)
		}
	}
}
