package serverutils

import (
	"errors"
	"sync"

	"github.com/gofiber/fiber/v2"
)

var (
	mappingsMu sync.RWMutex
	mappings   []errorMapping
)

type errorMapping struct {
	target error
	code   int
}

// RegisterErrorCode maps a domain sentinel to an HTTP status. Matching uses
// errors.Is, so wrapped sentinels are found too.
func RegisterErrorCode(target error, code int) {
	mappingsMu.Lock()
	defer mappingsMu.Unlock()
	mappings = append(mappings, errorMapping{target: target, code: code})
}

func statusFor(err error) (int, bool) {
	mappingsMu.RLock()
	defer mappingsMu.RUnlock()
	for _, m := range mappings {
		if errors.Is(err, m.target) {
			return m.code, true
		}
	}
	return 0, false
}

func ErrorHandlerMiddleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}
		return HandleError(ctx, err)
	}
}

// HandleError writes err as an ErrorBody.
func HandleError(ctx *fiber.Ctx, err error) error {
	var validationErr *RequestValidationError
	if errors.As(err, &validationErr) {
		body := ErrorResponse(fiber.StatusBadRequest, "Validation failed")
		body.Errors = validationErr.Fields
		return ctx.Status(fiber.StatusBadRequest).JSON(body)
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return ctx.Status(fiberErr.Code).JSON(ErrorResponse(fiberErr.Code, fiberErr.Message))
	}

	if code, ok := statusFor(err); ok {
		return ctx.Status(code).JSON(ErrorResponse(code, err.Error()))
	}

	return ctx.Status(fiber.StatusInternalServerError).JSON(ErrorResponse(fiber.StatusInternalServerError, "Internal server error"))
}
