package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	apperrors "github.com/itops/helpdesk/pkg/util"
)

// employeeHeader identifies the acting employee. The service runs on an
// internal network; session handling happens upstream.
const employeeHeader = "X-Employee-ID"

func actingEmployee(c *fiber.Ctx) (int64, error) {
	raw := c.Get(employeeHeader)
	if raw == "" {
		return 0, apperrors.NewUnauthorized("missing " + employeeHeader + " header")
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.NewValidationError("invalid "+employeeHeader+" header", map[string]any{"value": raw})
	}
	return id, nil
}

func pathID(c *fiber.Ctx, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Params(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.NewValidationError("invalid "+name, map[string]any{"value": c.Params(name)})
	}
	return id, nil
}

func queryInt(c *fiber.Ctx, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return val
}
