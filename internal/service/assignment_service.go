package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/itops/helpdesk/internal/domain"
	"github.com/itops/helpdesk/internal/events"
	"github.com/itops/helpdesk/internal/observability"
	"github.com/itops/helpdesk/internal/repository"
	apperrors "github.com/itops/helpdesk/pkg/util"
)

// AssignmentService picks which specialist receives a ticket. Selection
// tries the ticket's own category first, then the fallback pool; within
// a pool the least-loaded available specialist under capacity wins, ties
// broken by lowest id. Finding nobody is a valid outcome, not an error:
// the ticket stays unbound until the next reassignment sweep.
type AssignmentService struct {
	tickets     repository.TicketRepository
	specialists repository.SpecialistRepository
	tx          TxRunner
	dispatcher  events.Dispatcher
	metrics     *observability.Metrics
	logger      *zap.Logger
	fallback    domain.Category
}

// AssignmentDependencies bundles collaborators.
type AssignmentDependencies struct {
	TicketRepo     repository.TicketRepository
	SpecialistRepo repository.SpecialistRepository
	Tx             TxRunner
	Dispatcher     events.Dispatcher
	Metrics        *observability.Metrics
	Logger         *zap.Logger
	Fallback       domain.Category
}

// NewAssignmentService creates the service.
func NewAssignmentService(deps AssignmentDependencies) *AssignmentService {
	fallback := deps.Fallback
	if fallback == "" {
		fallback = domain.CategoryOther
	}
	return &AssignmentService{
		tickets:     deps.TicketRepo,
		specialists: deps.SpecialistRepo,
		tx:          deps.Tx,
		dispatcher:  deps.Dispatcher,
		metrics:     deps.Metrics,
		logger:      deps.Logger,
		fallback:    fallback,
	}
}

// Assign binds a freshly created ticket to a specialist. Returns the
// chosen specialist, or nil when no one can take the ticket.
func (s *AssignmentService) Assign(ctx context.Context, ticketID int64, category domain.Category) (*domain.Specialist, error) {
	assignee, pending, err := s.assign(ctx, ticketID, category, false)
	if err != nil {
		return nil, err
	}
	s.publishAll(ctx, pending)
	return assignee, nil
}

// Reassign is Assign invoked from the reassignment sweep. The sweep
// runs it joined to the reclaim transaction, so the binding events are
// handed back for publication after that transaction commits rather
// than announced for a binding that might still roll back.
func (s *AssignmentService) Reassign(ctx context.Context, ticketID int64, category domain.Category) (*domain.Specialist, []events.Event, error) {
	return s.assign(ctx, ticketID, category, true)
}

func (s *AssignmentService) assign(ctx context.Context, ticketID int64, category domain.Category, reassigned bool) (*domain.Specialist, []events.Event, error) {
	var (
		assignee *domain.Specialist
		outcome  = "matched"
	)

	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		// The claim increments workload as part of candidate selection;
		// a rollback undoes both the claim and the binding, so workload
		// can never run ahead of actual assignments.
		spec, err := s.specialists.ClaimCandidate(ctx, category)
		if err != nil {
			return err
		}
		if spec == nil && category != s.fallback {
			// An unknown category behaves identically: empty exact pool,
			// then the catch-all.
			spec, err = s.specialists.ClaimCandidate(ctx, s.fallback)
			if err != nil {
				return err
			}
			outcome = "fallback"
		}
		if spec == nil {
			outcome = "unbound"
			return nil
		}
		if err := s.tickets.Bind(ctx, ticketID, spec.ID); err != nil {
			return err
		}
		assignee = spec
		return nil
	})
	if err != nil {
		return nil, nil, apperrors.MapError(err)
	}

	s.metrics.RecordAssignment(string(category), outcome)

	if assignee == nil {
		s.logger.Info("no specialist available, ticket left unbound",
			zap.Int64("ticket_id", ticketID),
			zap.String("category", string(category)))
		return nil, nil, nil
	}

	s.logger.Info("ticket assigned",
		zap.Int64("ticket_id", ticketID),
		zap.Int64("specialist_id", assignee.ID),
		zap.String("category", string(category)),
		zap.Int("workload", assignee.Workload),
		zap.Bool("reassigned", reassigned))

	pending := []events.Event{
		{
			Type:     events.EventTicketBound,
			TicketID: ticketID,
			Actor:    events.Actor{Type: events.ActorTypeSystem},
			Payload: events.TicketBoundPayload{
				SpecialistID: assignee.ID,
				Reassigned:   reassigned,
			},
		},
		{
			Type:     events.EventWorkloadChanged,
			TicketID: ticketID,
			Actor:    events.Actor{Type: events.ActorTypeSystem},
			Payload: events.WorkloadChangedPayload{
				SpecialistID: assignee.ID,
				Delta:        1,
			},
		},
	}
	return assignee, pending, nil
}

func (s *AssignmentService) publishAll(ctx context.Context, pending []events.Event) {
	for _, event := range pending {
		s.publish(ctx, event)
	}
}

func (s *AssignmentService) publish(ctx context.Context, event events.Event) {
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
