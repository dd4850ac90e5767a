package controller

import (
	"site-research-be/internal/pkg/serverutils"
	"site-research-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IWebhookController interface {
	RegisterRoutes(r fiber.Router)
	Verify(ctx *fiber.Ctx) error
	Receive(ctx *fiber.Ctx) error
}

type webhookController struct {
	service service.IWebhookService
}

func NewWebhookController(service service.IWebhookService) IWebhookController {
	return &webhookController{service: service}
}

func (c *webhookController) RegisterRoutes(r fiber.Router) {
	r.Get("/webhook", c.Verify)
	r.Post("/webhook", c.Receive)
}

func (c *webhookController) Verify(ctx *fiber.Ctx) error {
	challenge, err := c.service.Verify(ctx.Query("hub.mode"), ctx.Query("hub.verify_token"), ctx.Query("hub.challenge"))
	if err != nil {
		return ctx.Status(fiber.StatusForbidden).JSON(serverutils.ErrorResponse(403, "Verification failed"))
	}
	return ctx.SendString(challenge)
}

// Receive always acknowledges with 200 so Meta does not retry.
func (c *webhookController) Receive(ctx *fiber.Ctx) error {
	body := append([]byte(nil), ctx.Body()...)
	status := c.service.HandleInbound(ctx.UserContext(), body)
	return ctx.JSON(fiber.Map{"status": status})
}
