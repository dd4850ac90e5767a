package controller

import (
	"site-research-be/internal/dto"
	"site-research-be/internal/pkg/serverutils"
	"site-research-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IIngestController interface {
	RegisterRoutes(r fiber.Router, auth fiber.Handler)
	Ingest(ctx *fiber.Ctx) error
	Clear(ctx *fiber.Ctx) error
}

type ingestController struct {
	publisher service.IPublisherService
}

func NewIngestController(publisher service.IPublisherService) IIngestController {
	return &ingestController{publisher: publisher}
}

func (c *ingestController) RegisterRoutes(r fiber.Router, auth fiber.Handler) {
	h := r.Group("/ingest/v1")
	h.Use(auth)
	h.Post("", c.Ingest)
	h.Delete("", c.Clear)
}

func (c *ingestController) Ingest(ctx *fiber.Ctx) error {
	var req dto.IngestRequest
	if err := ctx.BodyParser(&req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "Invalid request body"))
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.publisher.PublishIngest(ctx.UserContext(), req.URL)
	if err != nil {
		return err
	}

	return ctx.Status(fiber.StatusAccepted).JSON(serverutils.SuccessResponse("Ingest job queued", res))
}

func (c *ingestController) Clear(ctx *fiber.Ctx) error {
	res, err := c.publisher.PublishClear(ctx.UserContext())
	if err != nil {
		return err
	}

	return ctx.Status(fiber.StatusAccepted).JSON(serverutils.SuccessResponse("Clear job queued", res))
}
