package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"site-research-be/internal/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// StreamChannel is the Redis pub/sub channel shared by every instance.
const StreamChannel = "agent_stream"

type clusterMessage struct {
	Origin   string          `json:"origin"`
	ThreadID string          `json:"thread_id"`
	Message  json.RawMessage `json:"message"`
}

// Hub fans agent snapshots out to every socket subscribed to a thread.
type Hub struct {
	// thread id -> sockets watching it
	clients map[string][]*Client

	register   chan *Client
	unregister chan *Client

	// closed when Run returns
	done chan struct{}

	mu sync.RWMutex

	// Redis connection for cross-instance delivery; nil keeps the hub local
	rdb        *redis.Client
	instanceID string

	logger logger.ILogger
}

func NewHub(rdb *redis.Client, log logger.ILogger) *Hub {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		clients:    make(map[string][]*Client),
		rdb:        rdb,
		instanceID: uuid.NewString(),
		logger:     log,
	}
}

func (h *Hub) Run(ctx context.Context) {
	if h.rdb != nil {
		go h.subscribeToRedis(ctx)
	}

	defer h.shutdown()

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ThreadID] = append(h.clients[client.ThreadID], client)
			h.mu.Unlock()
			h.logger.Info("Hub", "Client registered", map[string]interface{}{"thread_id": client.ThreadID})

		case client := <-h.unregister:
			h.remove(client)
		}
	}
}

// shutdown closes every socket's Send channel and releases goroutines
// still trying to join or leave.
func (h *Hub) shutdown() {
	h.mu.Lock()
	for threadID, clients := range h.clients {
		for _, c := range clients {
			c.closeSend()
		}
		delete(h.clients, threadID)
	}
	h.mu.Unlock()
	close(h.done)
	h.logger.Info("Hub", "Stopped", nil)
}

// join hands c to the hub. It reports false once the hub has stopped.
func (h *Hub) join(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients, ok := h.clients[client.ThreadID]
	if !ok {
		return
	}
	for i, c := range clients {
		if c == client {
			h.clients[client.ThreadID] = append(clients[:i], clients[i+1:]...)
			client.closeSend()
			break
		}
	}
	if len(h.clients[client.ThreadID]) == 0 {
		delete(h.clients, client.ThreadID)
		h.logger.Info("Hub", "Thread has no more subscribers", map[string]interface{}{"thread_id": client.ThreadID})
	}
}

// Subscribers returns the number of local sockets on a thread.
func (h *Hub) Subscribers(threadID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[threadID])
}

// Publish delivers frame to local subscribers of threadID and to other
// instances through Redis.
func (h *Hub) Publish(ctx context.Context, threadID string, frame interface{}) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}

	h.deliver(threadID, data)

	if h.rdb != nil {
		payload, _ := json.Marshal(clusterMessage{Origin: h.instanceID, ThreadID: threadID, Message: data})
		if err := h.rdb.Publish(ctx, StreamChannel, payload).Err(); err != nil {
			h.logger.Warn("Hub", "Redis publish failed", map[string]interface{}{"thread_id": threadID, "error": err.Error()})
		}
	}
	return nil
}

func (h *Hub) deliver(threadID string, data []byte) {
	// sends happen under the read lock so remove cannot close Send mid-loop
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.clients[threadID] {
		select {
		case client.Send <- data:
		default:
			h.logger.Warn("Hub", "Client Send buffer full, dropping client", map[string]interface{}{"thread_id": threadID})
			go h.leave(client)
		}
	}
}

func (h *Hub) subscribeToRedis(ctx context.Context) {
	pubsub := h.rdb.Subscribe(ctx, StreamChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var payload clusterMessage
			if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
				h.logger.Warn("Hub", "Redis message parse error", map[string]interface{}{"error": err.Error()})
				continue
			}
			if payload.Origin == h.instanceID {
				continue
			}
			h.deliver(payload.ThreadID, payload.Message)
		}
	}
}
