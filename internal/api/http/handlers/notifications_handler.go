package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/itops/helpdesk/internal/api/dto"
	"github.com/itops/helpdesk/internal/service"
)

// NotificationsHandler exposes in-app notifications.
type NotificationsHandler struct {
	service *service.NotificationService
}

// NewNotificationsHandler constructs handler.
func NewNotificationsHandler(notificationService *service.NotificationService) *NotificationsHandler {
	return &NotificationsHandler{service: notificationService}
}

// ListUnread GET /notifications.
func (h *NotificationsHandler) ListUnread(c *fiber.Ctx) error {
	receiverID, err := actingEmployee(c)
	if err != nil {
		return err
	}
	notifs, err := h.service.ListUnread(c.UserContext(), receiverID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"count": len(notifs),
		"data":  dto.FromNotifications(notifs),
	})
}

// MarkRead POST /notifications/:id/read.
func (h *NotificationsHandler) MarkRead(c *fiber.Ctx) error {
	if _, err := actingEmployee(c); err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	if err := h.service.MarkRead(c.UserContext(), id); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}
