package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/itops/helpdesk/internal/domain"
	"github.com/itops/helpdesk/internal/events"
	"github.com/itops/helpdesk/internal/observability"
	"github.com/itops/helpdesk/internal/repository"
	"github.com/itops/helpdesk/internal/service"
)

// Sweeper periodically reclaims tickets that sat unaccepted past the
// aging deadline: it releases the stale workload reservation and runs
// assignment again. Aging is measured from the original created_at,
// which is never refreshed, so an unaccepted ticket keeps coming back
// every interval until a human finally accepts it.
type Sweeper struct {
	tickets     repository.TicketRepository
	specialists repository.SpecialistRepository
	assigner    *service.AssignmentService
	tx          service.TxRunner
	dispatcher  events.Dispatcher
	metrics     *observability.Metrics
	logger      *zap.Logger
	deadline    time.Duration
	cron        *cron.Cron
}

// SweeperDependencies bundles collaborators.
type SweeperDependencies struct {
	TicketRepo     repository.TicketRepository
	SpecialistRepo repository.SpecialistRepository
	Assigner       *service.AssignmentService
	Tx             service.TxRunner
	Dispatcher     events.Dispatcher
	Metrics        *observability.Metrics
	Logger         *zap.Logger
	// AgingDeadline is how long a New ticket may sit before it becomes
	// eligible for reclaim.
	AgingDeadline time.Duration
}

// NewSweeper creates the sweeper.
func NewSweeper(deps SweeperDependencies) *Sweeper {
	return &Sweeper{
		tickets:     deps.TicketRepo,
		specialists: deps.SpecialistRepo,
		assigner:    deps.Assigner,
		tx:          deps.Tx,
		dispatcher:  deps.Dispatcher,
		metrics:     deps.Metrics,
		logger:      deps.Logger,
		deadline:    deps.AgingDeadline,
	}
}

// Start schedules the sweep with a standard 5-field cron expression and
// runs it until Stop. A failed run only logs; the schedule keeps going.
func (s *Sweeper) Start(schedule string) error {
	if s.cron != nil {
		return fmt.Errorf("sweeper already started")
	}
	c := cron.New()
	if _, err := c.AddFunc(schedule, func() {
		s.RunOnce(context.Background())
	}); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}
	c.Start()
	s.cron = c
	s.logger.Info("reassignment sweeper started",
		zap.String("schedule", schedule),
		zap.Duration("aging_deadline", s.deadline))
	return nil
}

// Stop halts the schedule, waiting for an in-flight run to finish.
func (s *Sweeper) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
	s.cron = nil
	s.logger.Info("reassignment sweeper stopped")
}

// RunOnce executes a single sweep: every New ticket older than the
// deadline is reclaimed in its own transaction, oldest first. Tickets
// within one run see workload released by earlier reclaims. Per-ticket
// failures are logged and counted but do not stop the run.
func (s *Sweeper) RunOnce(ctx context.Context) (reclaimed, failed int) {
	started := time.Now()
	cutoff := started.Add(-s.deadline)

	expired, err := s.tickets.FindExpiredNew(ctx, cutoff)
	if err != nil {
		s.logger.Error("sweep: listing expired tickets failed", zap.Error(err))
		s.metrics.RecordSweep(started, 0, 1)
		return 0, 1
	}
	if len(expired) == 0 {
		s.metrics.RecordSweep(started, 0, 0)
		return 0, 0
	}

	for i := range expired {
		swept, err := s.reclaim(ctx, expired[i].ID)
		if err != nil {
			failed++
			s.logger.Error("sweep: reclaim failed",
				zap.Int64("ticket_id", expired[i].ID),
				zap.Error(err))
			continue
		}
		if swept {
			reclaimed++
		}
	}

	s.metrics.RecordSweep(started, reclaimed, failed)
	s.logger.Info("sweep finished",
		zap.Int("expired", len(expired)),
		zap.Int("reclaimed", reclaimed),
		zap.Int("failed", failed),
		zap.Duration("took", time.Since(started)))
	return reclaimed, failed
}

// reclaim re-reads the ticket under its row lock, releases a stale
// reservation, and runs assignment again inside one transaction, so a
// ticket is never left decremented-but-unprocessed: on any failure the
// whole reclaim rolls back and the next run retries it. The scan
// snapshot is stale the moment a human touches the ticket, so a ticket
// accepted between the scan and its reclaim is skipped, leaving the
// accepter's binding and reservation alone. Returns whether the ticket
// was actually reclaimed. Events publish only after the commit.
func (s *Sweeper) reclaim(ctx context.Context, ticketID int64) (bool, error) {
	var (
		released *int64
		pending  []events.Event
		swept    bool
	)
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		ticket, err := s.tickets.GetByIDForUpdate(ctx, ticketID)
		if err != nil {
			return err
		}
		if ticket.Status != domain.TicketStatusNew {
			return nil
		}
		if ticket.AssignedTo != nil {
			if err := s.specialists.ReleaseWorkload(ctx, *ticket.AssignedTo); err != nil {
				return err
			}
			if err := s.tickets.Unbind(ctx, ticket.ID); err != nil {
				return err
			}
			released = ticket.AssignedTo
		}
		// Joins the transaction opened above; the fresh binding commits
		// together with the release.
		_, bindEvents, err := s.assigner.Reassign(ctx, ticket.ID, ticket.Category)
		if err != nil {
			return err
		}
		pending = bindEvents
		swept = true
		return nil
	})
	if err != nil {
		return false, err
	}
	if !swept {
		s.logger.Debug("sweep: ticket accepted since scan, skipping",
			zap.Int64("ticket_id", ticketID))
		return false, nil
	}

	if released != nil {
		s.publish(ctx, events.Event{
			Type:     events.EventTicketUnbound,
			TicketID: ticketID,
			Actor:    events.Actor{Type: events.ActorTypeSystem},
			Payload:  events.TicketUnboundPayload{SpecialistID: *released},
		})
		s.publish(ctx, events.Event{
			Type:     events.EventWorkloadChanged,
			TicketID: ticketID,
			Actor:    events.Actor{Type: events.ActorTypeSystem},
			Payload: events.WorkloadChangedPayload{
				SpecialistID: *released,
				Delta:        -1,
			},
		})
	}
	for _, event := range pending {
		s.publish(ctx, event)
	}
	return true, nil
}

func (s *Sweeper) publish(ctx context.Context, event events.Event) {
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
