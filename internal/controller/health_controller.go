package controller

import (
	"github.com/gofiber/fiber/v2"
)

type IHealthController interface {
	RegisterRoutes(r fiber.Router)
}

type healthController struct {
	organization string
}

func NewHealthController(organization string) IHealthController {
	return &healthController{organization: organization}
}

func (c *healthController) RegisterRoutes(r fiber.Router) {
	r.Get("/health", func(ctx *fiber.Ctx) error {
		return ctx.JSON(fiber.Map{"status": "online", "agent": c.organization + " Website Agent"})
	})
}
