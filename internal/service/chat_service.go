package service

import (
	"context"

	"site-research-be/internal/dto"
	"site-research-be/pkg/agent"

	"github.com/google/uuid"
)

// Runner is the slice of *agent.Agent the inbound callers use.
type Runner interface {
	Run(ctx context.Context, query, threadID string) (*agent.Result, error)
	Stream(ctx context.Context, query, threadID string, emit func(agent.SessionState) error) (*agent.Result, error)
}

type IChatService interface {
	Ask(ctx context.Context, req *dto.ChatRequest) (*dto.ChatResponse, error)
	Stream(ctx context.Context, query, threadID string, emit func(agent.SessionState) error) (*dto.ChatResponse, error)
}

type chatService struct {
	runner Runner
}

func NewChatService(runner Runner) IChatService {
	return &chatService{runner: runner}
}

func (s *chatService) Ask(ctx context.Context, req *dto.ChatRequest) (*dto.ChatResponse, error) {
	threadID := req.ThreadID
	if threadID == "" {
		threadID = uuid.NewString()
	}

	res, err := s.runner.Run(ctx, req.Query, threadID)
	if err != nil {
		return nil, err
	}
	return toChatResponse(res), nil
}

func (s *chatService) Stream(ctx context.Context, query, threadID string, emit func(agent.SessionState) error) (*dto.ChatResponse, error) {
	res, err := s.runner.Stream(ctx, query, threadID, emit)
	if err != nil {
		return nil, err
	}
	return toChatResponse(res), nil
}

func toChatResponse(res *agent.Result) *dto.ChatResponse {
	out := &dto.ChatResponse{
		ThreadID:   res.ThreadID,
		Answer:     res.Answer,
		Iterations: res.Iterations,
		Evidence:   make([]dto.EvidenceResponse, 0, len(res.Evidence)),
	}
	for _, e := range res.Evidence {
		item := dto.EvidenceResponse{Source: e.Source, Content: e.Content}
		if origin, ok := e.Metadata["origin"].(string); ok {
			item.Origin = origin
		}
		out.Evidence = append(out.Evidence, item)
	}
	return out
}
