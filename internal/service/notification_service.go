package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/itops/helpdesk/internal/domain"
	"github.com/itops/helpdesk/internal/events"
	"github.com/itops/helpdesk/internal/repository"
	apperrors "github.com/itops/helpdesk/pkg/util"
)

// EventSink receives serialized events for out-of-process collaborators
// (dashboard, external notifier). persistence.Redis implements it.
type EventSink interface {
	PublishEvent(ctx context.Context, channel string, payload []byte) error
}

// NotificationService turns domain events into in-app notifications and
// mirrors every event onto the outbound channel. Delivery mechanics
// beyond that (email, webhooks, push) are somebody else's job.
type NotificationService struct {
	notifications repository.NotificationRepository
	dispatcher    events.Dispatcher
	sink          EventSink
	channel       string
	logger        *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(notifications repository.NotificationRepository, dispatcher events.Dispatcher, sink EventSink, channel string, logger *zap.Logger) *NotificationService {
	return &NotificationService{
		notifications: notifications,
		dispatcher:    dispatcher,
		sink:          sink,
		channel:       channel,
		logger:        logger,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	for _, eventType := range []events.EventType{
		events.EventTicketCreated,
		events.EventTicketBound,
		events.EventTicketUnbound,
		events.EventTicketStatusChanged,
		events.EventWorkloadChanged,
		events.EventTicketMessageAdded,
	} {
		n.dispatcher.Subscribe(eventType, n.mirrorEvent)
	}
	n.dispatcher.Subscribe(events.EventTicketStatusChanged, n.handleStatusChanged)
	n.dispatcher.Subscribe(events.EventTicketMessageAdded, n.handleMessageAdded)
}

// ListUnread returns unread notifications for an employee, newest first.
func (n *NotificationService) ListUnread(ctx context.Context, receiverID int64) ([]domain.Notification, error) {
	list, err := n.notifications.ListUnread(ctx, receiverID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return list, nil
}

// MarkRead flags one notification as read.
func (n *NotificationService) MarkRead(ctx context.Context, id int64) error {
	if err := n.notifications.MarkRead(ctx, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("notification", map[string]any{"notification_id": id})
		}
		return apperrors.MapError(err)
	}
	return nil
}

func (n *NotificationService) handleStatusChanged(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketStatusChangedPayload)
	if !ok {
		return nil
	}

	var text string
	switch payload.NewStatus {
	case domain.TicketStatusInProgress:
		text = fmt.Sprintf("your ticket #%d has been picked up", event.TicketID)
	case domain.TicketStatusResolved:
		text = fmt.Sprintf("your ticket #%d has been resolved", event.TicketID)
	case domain.TicketStatusRejected:
		text = fmt.Sprintf("your ticket #%d has been rejected", event.TicketID)
	default:
		return nil
	}
	return n.store(ctx, payload.RequesterID, event.TicketID, text)
}

func (n *NotificationService) handleMessageAdded(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketMessageAddedPayload)
	if !ok || payload.ReceiverID == nil {
		return nil
	}
	text := fmt.Sprintf("new message on ticket #%d", event.TicketID)
	return n.store(ctx, *payload.ReceiverID, event.TicketID, text)
}

func (n *NotificationService) store(ctx context.Context, receiverID, ticketID int64, text string) error {
	notif := &domain.Notification{
		ReceiverID: receiverID,
		TicketID:   ticketID,
		Message:    text,
	}
	if err := n.notifications.Create(ctx, notif); err != nil {
		n.logger.Warn("failed to store notification",
			zap.Int64("receiver_id", receiverID),
			zap.Int64("ticket_id", ticketID),
			zap.Error(err))
		return err
	}
	return nil
}

func (n *NotificationService) mirrorEvent(ctx context.Context, event events.Event) error {
	if n.sink == nil {
		return nil
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if err := n.sink.PublishEvent(ctx, n.channel, payload); err != nil {
		n.logger.Debug("event mirror publish failed",
			zap.String("event_type", string(event.Type)),
			zap.Error(err))
		return err
	}
	return nil
}
