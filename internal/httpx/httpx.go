// Package httpx holds the fiber error handler and request logging shared by
// every route.
package httpx

import (
	"errors"
	"time"

	"merchcheck-backend/internal/apperr"

	"github.com/charmbracelet/log"
	"github.com/gofiber/fiber/v2"
)

const unexpected = "Unexpected server error"

// ErrorHandler answers every failed request with {"success": false, "message": ...}.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code, msg := classify(err)
	if code >= fiber.StatusInternalServerError {
		log.WithPrefix("http").Error("Request failed",
			"method", c.Method(), "path", c.Path(), "err", err)
		msg = unexpected
	}
	return c.Status(code).JSON(fiber.Map{
		"success": false,
		"message": msg,
	})
}

func classify(err error) (int, string) {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code, fe.Message
	}

	switch apperr.KindOf(err) {
	case apperr.KindValidation, apperr.KindConflict, apperr.KindIntegrity:
		return fiber.StatusBadRequest, apperr.Message(err)
	case apperr.KindNotFound:
		return fiber.StatusNotFound, apperr.Message(err)
	case apperr.KindUnauthorized:
		return fiber.StatusUnauthorized, apperr.Message(err)
	case apperr.KindForbidden:
		return fiber.StatusForbidden, apperr.Message(err)
	}
	return fiber.StatusInternalServerError, unexpected
}

// AccessLog logs one line per request after it completes.
func AccessLog() fiber.Handler {
	logger := log.WithPrefix("http")
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			code, _ := classify(err)
			status = code
		}
		kv := []any{
			"method", c.Method(),
			"path", c.Path(),
			"status", status,
			"duration", time.Since(start).Round(time.Microsecond),
			"ip", c.IP(),
		}
		switch {
		case status >= fiber.StatusInternalServerError:
			logger.Error("request", kv...)
		case status >= fiber.StatusBadRequest:
			logger.Warn("request", kv...)
		default:
			logger.Debug("request", kv...)
		}
		return err
	}
}

// OK writes a success body merged with extra fields.
func OK(c *fiber.Ctx, fields fiber.Map) error {
	body := fiber.Map{"success": true}
	for k, v := range fields {
		body[k] = v
	}
	return c.JSON(body)
}
