package bootstrap

import (
	"context"

	"site-research-be/internal/config"
	"site-research-be/internal/controller"
	"site-research-be/internal/handler"
	"site-research-be/internal/pkg/logger"
	"site-research-be/internal/pkg/whatsapp"
	"site-research-be/internal/service"
	"site-research-be/internal/websocket"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

type Container struct {
	*Core

	// Controllers
	ChatController    controller.IChatController
	IngestController  controller.IIngestController
	WebhookController controller.IWebhookController
	HealthController  controller.IHealthController

	// Background Services (Exposed for main.go to run)
	ConsumerService service.IConsumerService

	// WebSockets
	StreamHandler *handler.StreamHandler
	WebSocketHub  *websocket.Hub
}

func NewContainer(ctx context.Context, cfg *config.Config, sysLogger logger.ILogger) (*Container, error) {
	core, err := NewCore(cfg, sysLogger)
	if err != nil {
		return nil, err
	}

	// Ingest job bus
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: 64},
		watermill.NewStdLogger(false, false),
	)
	core.closers = append(core.closers, pubSub.Close)

	publisherService := service.NewPublisherService(cfg.App.IngestTopic, pubSub)
	consumerService := service.NewConsumerService(pubSub, cfg.App.IngestTopic, core.Ingester, sysLogger)

	chatService := service.NewChatService(core.Agent)

	waClient := whatsapp.NewClient(whatsapp.Config{
		BaseURL:       cfg.WhatsApp.BaseURL,
		APIVersion:    cfg.WhatsApp.APIVersion,
		PhoneNumberID: cfg.WhatsApp.PhoneNumberID,
		AccessToken:   cfg.WhatsApp.AccessToken,
	}, sysLogger)
	if !waClient.Enabled() {
		sysLogger.Warn("Bootstrap", "WhatsApp credentials missing, replies will fail", nil)
	}
	webhookService := service.NewWebhookService(core.Agent, waClient, cfg.WhatsApp.VerifyToken, sysLogger)

	// WebSocket Hub
	wsLogger := logger.NewIsolatedLogger(cfg.App.StreamLogFilePath)
	wsHub := websocket.NewHub(core.Redis, wsLogger)
	go wsHub.Run(ctx)

	return &Container{
		Core:              core,
		ChatController:    controller.NewChatController(chatService),
		IngestController:  controller.NewIngestController(publisherService),
		WebhookController: controller.NewWebhookController(webhookService),
		HealthController:  controller.NewHealthController(cfg.Agent.OrganizationName),
		ConsumerService:   consumerService,
		StreamHandler:     handler.NewStreamHandler(chatService, wsHub, wsLogger),
		WebSocketHub:      wsHub,
	}, nil
}
