// FILE: internal/pkg/serverutils/error_handler.go
package serverutils

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"ai-docchat-be/internal/dto"
)

// ErrorHandlerMiddleware converts errors returned by handlers into the
// standard JSON envelope.
func ErrorHandlerMiddleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}

		// 1. Validation errors -> 400 with per-field messages
		var verr *ValidationError
		if errors.As(err, &verr) {
			return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"code":    fiber.StatusBadRequest,
				"message": "Validation failed",
				"errors":  verr.Fields,
			})
		}

		// 2. Daily quota exceeded -> 429 with usage details
		var lerr *dto.LimitExceededError
		if errors.As(err, &lerr) {
			return ctx.Status(fiber.StatusTooManyRequests).JSON(dto.LimitExceededResponse{
				Success: false,
				Code:    fiber.StatusTooManyRequests,
				Message: lerr.Error(),
				Data: dto.LimitExceededData{
					Limit:      lerr.Limit,
					Used:       lerr.Used,
					ResetAfter: lerr.ResetAfter,
				},
			})
		}

		// 3. Missing records -> 404
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ctx.Status(fiber.StatusNotFound).JSON(ErrorResponse(fiber.StatusNotFound, "Resource not found"))
		}

		// 4. Explicit fiber errors keep their status code
		var ferr *fiber.Error
		if errors.As(err, &ferr) {
			return ctx.Status(ferr.Code).JSON(ErrorResponse(ferr.Code, ferr.Message))
		}

		// 5. Everything else is an internal error
		log.Printf("[ERROR] Unhandled error: %v", err)
		return ctx.Status(fiber.StatusInternalServerError).JSON(ErrorResponse(fiber.StatusInternalServerError, "Internal server error"))
	}
}
