package service

import (
	"context"
	"errors"
	"time"

	"site-research-be/internal/dto"
	"site-research-be/internal/pkg/logger"

	"github.com/tidwall/gjson"
)

const (
	TechnicalIssueReply = "Tuvimos un problema técnico. Por favor intenta más tarde."
	EmptyAnswerReply    = "Lo siento, no pude procesar tu solicitud."
)

var ErrWebhookVerification = errors.New("webhook verification failed")

// Messenger delivers replies to a messaging channel.
type Messenger interface {
	SendText(ctx context.Context, to, text string) error
	MarkAsRead(ctx context.Context, messageID string) error
}

type IWebhookService interface {
	Verify(mode, token, challenge string) (string, error)
	HandleInbound(ctx context.Context, body []byte) string
}

type webhookService struct {
	runner      Runner
	messenger   Messenger
	verifyToken string
	timeout     time.Duration
	logger      logger.ILogger
	dispatch    func(func())
}

func NewWebhookService(runner Runner, messenger Messenger, verifyToken string, log logger.ILogger) IWebhookService {
	return &webhookService{
		runner:      runner,
		messenger:   messenger,
		verifyToken: verifyToken,
		timeout:     2 * time.Minute,
		logger:      log,
		dispatch:    func(f func()) { go f() },
	}
}

func (s *webhookService) Verify(mode, token, challenge string) (string, error) {
	if mode == "subscribe" && s.verifyToken != "" && token == s.verifyToken {
		s.logger.Info("Webhook", "Webhook verified", nil)
		return challenge, nil
	}
	s.logger.Warn("Webhook", "Webhook verification failed", map[string]interface{}{"mode": mode})
	return "", ErrWebhookVerification
}

// HandleInbound parses a Graph API notification and answers the first text
// message in the background. It returns a status for the acknowledgement
// body; the webhook always acknowledges with 200.
func (s *webhookService) HandleInbound(ctx context.Context, body []byte) string {
	if !gjson.ValidBytes(body) {
		s.logger.Error("Webhook", "Invalid webhook payload", nil)
		return "error"
	}

	msg := gjson.GetBytes(body, "entry.0.changes.0.value.messages.0")
	if !msg.Exists() {
		return "no_messages"
	}
	if msg.Get("type").String() != "text" {
		return "unsupported_type"
	}

	inbound := dto.InboundWhatsAppMessage{
		From: msg.Get("from").String(),
		Text: msg.Get("text.body").String(),
	}
	messageID := msg.Get("id").String()
	if inbound.From == "" || inbound.Text == "" {
		return "unsupported_type"
	}

	s.logger.Info("Webhook", "Inbound message", map[string]interface{}{"from": inbound.From, "message_id": messageID})

	bg := context.WithoutCancel(ctx)
	s.dispatch(func() {
		ctx, cancel := context.WithTimeout(bg, s.timeout)
		defer cancel()

		if messageID != "" {
			if err := s.messenger.MarkAsRead(ctx, messageID); err != nil {
				s.logger.Warn("Webhook", "Mark as read failed", map[string]interface{}{"error": err.Error()})
			}
		}
		s.answer(ctx, inbound)
	})
	return "processing"
}

// answer runs the agent with the sender's id as thread id.
func (s *webhookService) answer(ctx context.Context, in dto.InboundWhatsAppMessage) {
	reply := TechnicalIssueReply

	res, err := s.runner.Run(ctx, in.Text, in.From)
	switch {
	case err != nil:
		s.logger.Error("Webhook", "Agent run failed", map[string]interface{}{"from": in.From, "error": err.Error()})
	case res.Answer == "":
		reply = EmptyAnswerReply
	default:
		reply = res.Answer
	}

	if err := s.messenger.SendText(ctx, in.From, reply); err != nil {
		s.logger.Error("Webhook", "Reply failed", map[string]interface{}{"from": in.From, "error": err.Error()})
	}
}
