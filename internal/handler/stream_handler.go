package handler

import (
	"context"
	"encoding/json"
	"time"

	"site-research-be/internal/dto"
	"site-research-be/internal/pkg/logger"
	"site-research-be/internal/pkg/serverutils"
	"site-research-be/internal/service"
	internalWS "site-research-be/internal/websocket"
	"site-research-be/pkg/agent"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

const (
	FrameState  = "state"
	FrameResult = "result"
	FrameError  = "error"
)

// Broadcaster pushes a frame to every subscriber of a thread.
type Broadcaster interface {
	Publish(ctx context.Context, threadID string, frame interface{}) error
}

// StreamHandler runs streamed queries for websocket clients.
type StreamHandler struct {
	chat       service.IChatService
	hub        *internalWS.Hub
	out        Broadcaster
	logger     logger.ILogger
	runTimeout time.Duration
}

func NewStreamHandler(chat service.IChatService, hub *internalWS.Hub, log logger.ILogger) *StreamHandler {
	return &StreamHandler{
		chat:       chat,
		hub:        hub,
		out:        hub,
		logger:     log,
		runTimeout: 5 * time.Minute,
	}
}

func (h *StreamHandler) RegisterRoutes(app fiber.Router) {
	ws := app.Group("/ws")
	ws.Use(func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	ws.Get("/chat/:thread_id", websocket.New(h.serve))
}

func (h *StreamHandler) serve(conn *websocket.Conn) {
	threadID := conn.Params("thread_id")
	if threadID == "" {
		threadID = agent.DefaultThreadID
	}

	h.logger.Info("StreamHandler", "Starting WebSocket session", map[string]interface{}{"thread_id": threadID})
	client := internalWS.NewClient(h.hub, conn, threadID)
	client.Serve(func(c *internalWS.Client, data []byte) {
		go h.HandleFrame(context.Background(), c.ThreadID, data)
	})
	h.logger.Info("StreamHandler", "WebSocket session ended", map[string]interface{}{"thread_id": threadID})
}

// HandleFrame parses one inbound {query} frame and streams the run to every
// subscriber of threadID.
func (h *StreamHandler) HandleFrame(ctx context.Context, threadID string, data []byte) {
	var req dto.ChatRequest
	if err := json.Unmarshal(data, &req); err != nil {
		h.publish(ctx, threadID, dto.StreamMessage{Type: FrameError, ThreadID: threadID, Error: "invalid message"})
		return
	}
	req.ThreadID = threadID
	if err := serverutils.ValidateRequest(req); err != nil {
		h.publish(ctx, threadID, dto.StreamMessage{Type: FrameError, ThreadID: threadID, Error: err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(ctx, h.runTimeout)
	defer cancel()

	res, err := h.chat.Stream(ctx, req.Query, threadID, func(s agent.SessionState) error {
		return h.out.Publish(ctx, threadID, dto.StreamMessage{
			Type:     FrameState,
			ThreadID: threadID,
			Data:     snapshot(s),
		})
	})
	if err != nil {
		h.logger.Error("StreamHandler", "Streamed run failed", map[string]interface{}{"thread_id": threadID, "error": err.Error()})
		h.publish(ctx, threadID, dto.StreamMessage{Type: FrameError, ThreadID: threadID, Error: err.Error()})
		return
	}

	h.publish(ctx, threadID, dto.StreamMessage{Type: FrameResult, ThreadID: threadID, Data: res})
}

func (h *StreamHandler) publish(ctx context.Context, threadID string, msg dto.StreamMessage) {
	if err := h.out.Publish(context.WithoutCancel(ctx), threadID, msg); err != nil {
		h.logger.Warn("StreamHandler", "Frame not delivered", map[string]interface{}{"thread_id": threadID, "error": err.Error()})
	}
}

func snapshot(s agent.SessionState) dto.StateSnapshot {
	out := dto.StateSnapshot{
		Phase:         string(s.Phase),
		Iterations:    s.Iterations,
		Plan:          s.Plan,
		Reflection:    s.Reflection,
		IsSufficient:  s.IsSufficient,
		EvidenceCount: len(s.Evidence),
	}
	if s.Answer != nil {
		out.Answer = *s.Answer
	}
	return out
}
