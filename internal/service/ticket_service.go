package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/itops/helpdesk/internal/domain"
	"github.com/itops/helpdesk/internal/events"
	"github.com/itops/helpdesk/internal/repository"
	apperrors "github.com/itops/helpdesk/pkg/util"
)

// TicketService coordinates ticket workflows: intake with inline
// auto-assignment, the manual accept/resolve/reject transitions, chat
// messages, and staff listings.
type TicketService struct {
	tickets     repository.TicketRepository
	specialists repository.SpecialistRepository
	messages    repository.MessageRepository
	assigner    *AssignmentService
	tx          TxRunner
	dispatcher  events.Dispatcher
	logger      *zap.Logger
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo     repository.TicketRepository
	SpecialistRepo repository.SpecialistRepository
	MessageRepo    repository.MessageRepository
	Assigner       *AssignmentService
	Tx             TxRunner
	Dispatcher     events.Dispatcher
	Logger         *zap.Logger
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Title       string
	Description string
	Category    domain.Category
	Priority    domain.TicketPriority
}

// StatusCounts summarizes a specialist's queue for the dashboard.
type StatusCounts struct {
	New        int
	InProgress int
	Resolved   int
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	return &TicketService{
		tickets:     deps.TicketRepo,
		specialists: deps.SpecialistRepo,
		messages:    deps.MessageRepo,
		assigner:    deps.Assigner,
		tx:          deps.Tx,
		dispatcher:  deps.Dispatcher,
		logger:      deps.Logger,
	}
}

// CreateTicket stores a new ticket and immediately runs auto-assignment.
// Assignment failure (or no candidate) never fails creation: the ticket
// stays New and unbound, and the sweep retries it later.
func (s *TicketService) CreateTicket(ctx context.Context, requesterID int64, input TicketCreateInput) (*domain.Ticket, error) {
	if !domain.ValidCategory(input.Category) {
		return nil, apperrors.NewValidationError("unknown category", map[string]any{"category": input.Category})
	}

	ticket := &domain.Ticket{
		RequesterID: requesterID,
		Title:       strings.TrimSpace(input.Title),
		Description: strings.TrimSpace(input.Description),
		Category:    input.Category,
		Priority:    input.Priority,
		Status:      domain.TicketStatusNew,
	}
	if ticket.Priority == "" {
		ticket.Priority = domain.TicketPriorityMedium
	}

	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.publish(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		Actor:    employeeActor(requesterID),
		Payload: events.TicketCreatedPayload{
			RequesterID: ticket.RequesterID,
			Category:    ticket.Category,
			Priority:    ticket.Priority,
			Title:       ticket.Title,
		},
	})

	assignee, err := s.assigner.Assign(ctx, ticket.ID, ticket.Category)
	if err != nil {
		s.logger.Warn("inline auto-assign failed, ticket left for sweep",
			zap.Int64("ticket_id", ticket.ID), zap.Error(err))
		return ticket, nil
	}
	if assignee != nil {
		ticket.AssignedTo = &assignee.ID
	}
	return ticket, nil
}

// GetTicketForRequester fetches a ticket ensuring ownership.
func (s *TicketService) GetTicketForRequester(ctx context.Context, requesterID, ticketID int64) (*domain.Ticket, error) {
	ticket, err := s.getTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.RequesterID != requesterID {
		return nil, apperrors.NewForbidden("access denied")
	}
	return ticket, nil
}

// ListTicketsForRequester returns the requester's tickets, newest first.
func (s *TicketService) ListTicketsForRequester(ctx context.Context, requesterID int64, limit, offset int) ([]domain.Ticket, error) {
	tickets, err := s.tickets.ListWithFilter(ctx, repository.TicketFilter{
		RequesterID: &requesterID,
		Limit:       limit,
		Offset:      offset,
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return tickets, nil
}

// ListQueueForSpecialist returns tickets currently on a specialist's
// plate. Statuses defaults to New + In Progress (the working queue).
func (s *TicketService) ListQueueForSpecialist(ctx context.Context, specialistID int64, statuses []domain.TicketStatus, limit, offset int) ([]domain.Ticket, error) {
	if len(statuses) == 0 {
		statuses = []domain.TicketStatus{domain.TicketStatusNew, domain.TicketStatusInProgress}
	}
	tickets, err := s.tickets.ListWithFilter(ctx, repository.TicketFilter{
		AssigneeID: &specialistID,
		Statuses:   statuses,
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return tickets, nil
}

// StatsForSpecialist returns the dashboard counters.
func (s *TicketService) StatsForSpecialist(ctx context.Context, specialistID int64) (StatusCounts, error) {
	counts, err := s.tickets.CountByStatusForAssignee(ctx, specialistID)
	if err != nil {
		return StatusCounts{}, apperrors.MapError(err)
	}
	return StatusCounts{
		New:        counts[domain.TicketStatusNew],
		InProgress: counts[domain.TicketStatusInProgress],
		Resolved:   counts[domain.TicketStatusResolved],
	}, nil
}

// AcceptTicket claims a ticket for the accepting specialist and moves it
// to In Progress. The workload reservation follows the binding: a
// previous assignee is released, and the accepter is charged unless they
// already held the ticket. Acceptance is voluntary, so it may take a
// specialist past max_load.
func (s *TicketService) AcceptTicket(ctx context.Context, specialistID, ticketID int64) (*domain.Ticket, error) {
	if _, err := s.getSpecialist(ctx, specialistID); err != nil {
		return nil, err
	}

	var (
		ticket  *domain.Ticket
		pending []events.Event
	)
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		// Locked read: a concurrent accept or close of the same ticket
		// waits here instead of acting on the same snapshot.
		t, err := s.tickets.GetByIDForUpdate(ctx, ticketID)
		if err != nil {
			return err
		}
		if t.Status.Terminal() {
			return apperrors.NewConflict("ticket already closed", map[string]any{"status": t.Status})
		}

		previous := t.AssignedTo
		if previous != nil && *previous != specialistID {
			if err := s.specialists.ReleaseWorkload(ctx, *previous); err != nil {
				return err
			}
			pending = append(pending,
				workloadEvent(ticketID, *previous, -1),
				events.Event{
					Type:     events.EventTicketUnbound,
					TicketID: ticketID,
					Actor:    employeeActor(specialistID),
					Payload:  events.TicketUnboundPayload{SpecialistID: *previous},
				})
		}
		if previous == nil || *previous != specialistID {
			if err := s.specialists.AcquireWorkload(ctx, specialistID); err != nil {
				return err
			}
			pending = append(pending,
				workloadEvent(ticketID, specialistID, 1),
				events.Event{
					Type:     events.EventTicketBound,
					TicketID: ticketID,
					Actor:    employeeActor(specialistID),
					Payload:  events.TicketBoundPayload{SpecialistID: specialistID},
				})
		}

		oldStatus := t.Status
		t.AssignedTo = &specialistID
		t.Status = domain.TicketStatusInProgress
		if err := s.tickets.Update(ctx, t); err != nil {
			return err
		}
		pending = append(pending, events.Event{
			Type:     events.EventTicketStatusChanged,
			TicketID: ticketID,
			Actor:    employeeActor(specialistID),
			Payload: events.TicketStatusChangedPayload{
				OldStatus:   oldStatus,
				NewStatus:   t.Status,
				RequesterID: t.RequesterID,
			},
		})
		ticket = t
		return nil
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	s.publishAll(ctx, pending)
	return ticket, nil
}

// ResolveTicket closes a ticket as solved and releases the assignee's
// workload reservation.
func (s *TicketService) ResolveTicket(ctx context.Context, specialistID, ticketID int64) (*domain.Ticket, error) {
	return s.closeTicket(ctx, specialistID, ticketID, domain.TicketStatusResolved, nil)
}

// RejectTicket closes a ticket as rejected, recording the reason and the
// rejecting specialist, and releases the assignee's reservation.
func (s *TicketService) RejectTicket(ctx context.Context, specialistID, ticketID int64, reason string) (*domain.Ticket, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperrors.NewValidationError("rejection reason required", nil)
	}
	return s.closeTicket(ctx, specialistID, ticketID, domain.TicketStatusRejected, &reason)
}

func (s *TicketService) closeTicket(ctx context.Context, specialistID, ticketID int64, status domain.TicketStatus, reason *string) (*domain.Ticket, error) {
	if _, err := s.getSpecialist(ctx, specialistID); err != nil {
		return nil, err
	}

	var (
		ticket  *domain.Ticket
		pending []events.Event
	)
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		t, err := s.tickets.GetByIDForUpdate(ctx, ticketID)
		if err != nil {
			return err
		}
		if t.Status.Terminal() {
			return apperrors.NewConflict("ticket already closed", map[string]any{"status": t.Status})
		}

		oldStatus := t.Status
		t.Status = status
		if status == domain.TicketStatusRejected {
			t.RejectedBy = &specialistID
			t.RejectedReason = reason
		}
		if err := s.tickets.Update(ctx, t); err != nil {
			return err
		}

		// The reservation belongs to whoever the ticket is bound to,
		// not to the acting staff member; decrementing the actor would
		// drift the counters whenever resolver and assignee differ.
		if t.AssignedTo != nil {
			if err := s.specialists.ReleaseWorkload(ctx, *t.AssignedTo); err != nil {
				return err
			}
			pending = append(pending, workloadEvent(ticketID, *t.AssignedTo, -1))
		}

		comment := ""
		if reason != nil {
			comment = *reason
		}
		pending = append(pending, events.Event{
			Type:     events.EventTicketStatusChanged,
			TicketID: ticketID,
			Actor:    employeeActor(specialistID),
			Payload: events.TicketStatusChangedPayload{
				OldStatus:   oldStatus,
				NewStatus:   status,
				RequesterID: t.RequesterID,
				Comment:     comment,
			},
		})
		ticket = t
		return nil
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	s.publishAll(ctx, pending)
	return ticket, nil
}

// AddMessage appends a chat message and notifies the counterparty: the
// requester when the assignee writes, the assignee otherwise. A message
// on an unassigned ticket from its owner has nobody to notify.
func (s *TicketService) AddMessage(ctx context.Context, senderID, ticketID int64, body string) (*domain.Message, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, apperrors.NewValidationError("message body required", nil)
	}
	ticket, err := s.getTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	msg := &domain.Message{
		TicketID: ticket.ID,
		SenderID: senderID,
		Body:     body,
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, apperrors.MapError(err)
	}

	var receiver *int64
	if ticket.AssignedTo != nil && *ticket.AssignedTo == senderID {
		receiver = &ticket.RequesterID
	} else {
		receiver = ticket.AssignedTo
	}
	s.publish(ctx, events.Event{
		Type:     events.EventTicketMessageAdded,
		TicketID: ticket.ID,
		Actor:    employeeActor(senderID),
		Payload: events.TicketMessageAddedPayload{
			MessageID:   msg.ID,
			SenderID:    senderID,
			ReceiverID:  receiver,
			BodyPreview: preview(msg.Body, 120),
		},
	})
	return msg, nil
}

// ListMessages returns a ticket's chat history, oldest first.
func (s *TicketService) ListMessages(ctx context.Context, ticketID int64) ([]domain.Message, error) {
	if _, err := s.getTicket(ctx, ticketID); err != nil {
		return nil, err
	}
	msgs, err := s.messages.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return msgs, nil
}

func (s *TicketService) getTicket(ctx context.Context, ticketID int64) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}
	return ticket, nil
}

func (s *TicketService) getSpecialist(ctx context.Context, specialistID int64) (*domain.Specialist, error) {
	spec, err := s.specialists.GetByID(ctx, specialistID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("specialist", map[string]any{"specialist_id": specialistID})
		}
		return nil, apperrors.MapError(err)
	}
	return spec, nil
}

func (s *TicketService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func (s *TicketService) publishAll(ctx context.Context, pending []events.Event) {
	for _, event := range pending {
		s.publish(ctx, event)
	}
}

func employeeActor(id int64) events.Actor {
	return events.Actor{Type: events.ActorTypeEmployee, EmployeeID: &id}
}

func workloadEvent(ticketID, specialistID int64, delta int) events.Event {
	return events.Event{
		Type:     events.EventWorkloadChanged,
		TicketID: ticketID,
		Actor:    events.Actor{Type: events.ActorTypeSystem},
		Payload: events.WorkloadChangedPayload{
			SpecialistID: specialistID,
			Delta:        delta,
		},
	}
}

func preview(body string, max int) string {
	body = strings.TrimSpace(body)
	if len(body) <= max {
		return body
	}
	if max <= 3 {
		return body[:max]
	}
	return body[:max-3] + "..."
}
