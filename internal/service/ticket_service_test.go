package service_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/itops/helpdesk/internal/domain"
	"github.com/itops/helpdesk/internal/events"
	"github.com/itops/helpdesk/internal/repository/repotest"
	"github.com/itops/helpdesk/internal/service"
	apperrors "github.com/itops/helpdesk/pkg/util"
)

type ticketFixture struct {
	tickets  *repotest.TicketStore
	specs    *repotest.SpecialistStore
	messages *repotest.MessageStore
	service  *service.TicketService
}

func newTicketFixture(t *testing.T, dispatcher events.Dispatcher, specialists ...domain.Specialist) *ticketFixture {
	t.Helper()
	tickets := repotest.NewTicketStore()
	specs := repotest.NewSpecialistStore(specialists...)
	messages := repotest.NewMessageStore()
	assigner := newAssigner(t, tickets, specs, dispatcher)
	return &ticketFixture{
		tickets:  tickets,
		specs:    specs,
		messages: messages,
		service: service.NewTicketService(service.TicketDependencies{
			TicketRepo:     tickets,
			SpecialistRepo: specs,
			MessageRepo:    messages,
			Assigner:       assigner,
			Tx:             repotest.InlineTx{},
			Dispatcher:     dispatcher,
			Logger:         zap.NewNop(),
		}),
	}
}

func (f *ticketFixture) boundTicket(t *testing.T, category domain.Category, assignee int64) domain.Ticket {
	t.Helper()
	ticket := f.tickets.Seed(domain.Ticket{
		RequesterID: 100,
		Title:       "vpn is down",
		Description: "cannot reach the office network",
		Category:    category,
		Priority:    domain.TicketPriorityHigh,
		Status:      domain.TicketStatusNew,
		AssignedTo:  &assignee,
	})
	return ticket
}

func assertDomainCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var domainErr *apperrors.DomainError
	require.True(t, errors.As(err, &domainErr))
	assert.Equal(t, code, domainErr.Code)
}

func TestCreateTicketAssignsInline(t *testing.T) {
	f := newTicketFixture(t, nil, specialist(1, domain.CategoryNetwork, 0, 3))

	ticket, err := f.service.CreateTicket(context.Background(), 100, service.TicketCreateInput{
		Title:       "  vpn is down ",
		Description: "cannot connect",
		Category:    domain.CategoryNetwork,
		Priority:    domain.TicketPriorityHigh,
	})
	require.NoError(t, err)
	assert.Equal(t, "vpn is down", ticket.Title)
	assert.Equal(t, domain.TicketStatusNew, ticket.Status)
	require.NotNil(t, ticket.AssignedTo)
	assert.Equal(t, int64(1), *ticket.AssignedTo)
	assert.Equal(t, 1, f.specs.Workload(1))
}

func TestCreateTicketDefaultsPriorityToMedium(t *testing.T) {
	f := newTicketFixture(t, nil)

	ticket, err := f.service.CreateTicket(context.Background(), 100, service.TicketCreateInput{
		Title:       "mouse broken",
		Description: "left button",
		Category:    domain.CategoryHardware,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TicketPriorityMedium, ticket.Priority)
}

func TestCreateTicketRejectsUnknownCategory(t *testing.T) {
	f := newTicketFixture(t, nil)

	_, err := f.service.CreateTicket(context.Background(), 100, service.TicketCreateInput{
		Title:       "help",
		Description: "help",
		Category:    domain.Category("Astrology"),
	})
	assertDomainCode(t, err, "VALIDATION_FAILED")
}

func TestCreateTicketSurvivesAssignmentFailure(t *testing.T) {
	f := newTicketFixture(t, nil)
	f.specs.ClaimErr = errors.New("db gone")

	ticket, err := f.service.CreateTicket(context.Background(), 100, service.TicketCreateInput{
		Title:       "screen flickers",
		Description: "since monday",
		Category:    domain.CategoryHardware,
	})
	require.NoError(t, err, "assignment trouble must not fail intake")
	assert.Nil(t, ticket.AssignedTo)
	assert.Equal(t, domain.TicketStatusNew, ticket.Status)
}

func TestCreateTicketWithoutCandidatesStaysUnbound(t *testing.T) {
	f := newTicketFixture(t, nil)

	ticket, err := f.service.CreateTicket(context.Background(), 100, service.TicketCreateInput{
		Title:       "no wifi",
		Description: "floor 3",
		Category:    domain.CategoryNetwork,
	})
	require.NoError(t, err)
	assert.Nil(t, ticket.AssignedTo)
}

func TestAcceptMovesTicketInProgress(t *testing.T) {
	f := newTicketFixture(t, nil, specialist(1, domain.CategoryNetwork, 1, 3))
	ticket := f.boundTicket(t, domain.CategoryNetwork, 1)

	accepted, err := f.service.AcceptTicket(context.Background(), 1, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusInProgress, accepted.Status)
	require.NotNil(t, accepted.AssignedTo)
	assert.Equal(t, int64(1), *accepted.AssignedTo)
	// Accepting a ticket already bound to you keeps the single reservation.
	assert.Equal(t, 1, f.specs.Workload(1))
}

func TestAcceptTransfersReservationBetweenSpecialists(t *testing.T) {
	f := newTicketFixture(t, nil,
		specialist(1, domain.CategoryNetwork, 1, 3),
		specialist(2, domain.CategoryNetwork, 0, 3),
	)
	ticket := f.boundTicket(t, domain.CategoryNetwork, 1)

	accepted, err := f.service.AcceptTicket(context.Background(), 2, ticket.ID)
	require.NoError(t, err)
	require.NotNil(t, accepted.AssignedTo)
	assert.Equal(t, int64(2), *accepted.AssignedTo)
	assert.Equal(t, 0, f.specs.Workload(1), "previous holder is released")
	assert.Equal(t, 1, f.specs.Workload(2), "accepter is charged")
}

func TestAcceptUnboundTicketChargesAccepter(t *testing.T) {
	f := newTicketFixture(t, nil, specialist(3, domain.CategoryOther, 0, 2))
	ticket := f.tickets.Seed(domain.Ticket{
		RequesterID: 100,
		Title:       "orphan",
		Description: "nobody took this",
		Category:    domain.CategorySoftware,
		Priority:    domain.TicketPriorityLow,
		Status:      domain.TicketStatusNew,
	})

	accepted, err := f.service.AcceptTicket(context.Background(), 3, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusInProgress, accepted.Status)
	assert.Equal(t, 1, f.specs.Workload(3))
}

func TestRivalAcceptsSettleOnSingleReservation(t *testing.T) {
	// Two specialists racing to accept serialize on the ticket's row
	// lock; the loser's accept runs as a transfer against the winner's
	// state, never as a second charge against the original snapshot.
	f := newTicketFixture(t, nil,
		specialist(1, domain.CategoryNetwork, 0, 3),
		specialist(2, domain.CategoryNetwork, 0, 3),
	)
	ticket := f.tickets.Seed(domain.Ticket{
		RequesterID: 100,
		Title:       "contested",
		Description: "everyone wants this one",
		Category:    domain.CategoryNetwork,
		Status:      domain.TicketStatusNew,
	})

	_, err := f.service.AcceptTicket(context.Background(), 1, ticket.ID)
	require.NoError(t, err)
	accepted, err := f.service.AcceptTicket(context.Background(), 2, ticket.ID)
	require.NoError(t, err)

	require.NotNil(t, accepted.AssignedTo)
	assert.Equal(t, int64(2), *accepted.AssignedTo)
	assert.Equal(t, 0, f.specs.Workload(1), "the loser's reservation is handed over, not duplicated")
	assert.Equal(t, 1, f.specs.Workload(2))
}

func TestTransitionsReadTicketUnderRowLock(t *testing.T) {
	f := newTicketFixture(t, nil, specialist(1, domain.CategoryNetwork, 1, 3))
	ticket := f.boundTicket(t, domain.CategoryNetwork, 1)

	_, err := f.service.AcceptTicket(context.Background(), 1, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, f.tickets.LockedReads)

	_, err = f.service.ResolveTicket(context.Background(), 1, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, f.tickets.LockedReads)
}

func TestAcceptMayExceedMaxLoad(t *testing.T) {
	f := newTicketFixture(t, nil, specialist(1, domain.CategoryNetwork, 2, 2))
	ticket := f.tickets.Seed(domain.Ticket{
		RequesterID: 100,
		Title:       "urgent",
		Description: "urgent",
		Category:    domain.CategoryNetwork,
		Status:      domain.TicketStatusNew,
	})

	_, err := f.service.AcceptTicket(context.Background(), 1, ticket.ID)
	require.NoError(t, err, "voluntary acceptance ignores the capacity cap")
	assert.Equal(t, 3, f.specs.Workload(1))
}

func TestAcceptClosedTicketConflicts(t *testing.T) {
	f := newTicketFixture(t, nil, specialist(1, domain.CategoryNetwork, 0, 3))
	ticket := f.tickets.Seed(domain.Ticket{
		RequesterID: 100,
		Title:       "done",
		Description: "done",
		Category:    domain.CategoryNetwork,
		Status:      domain.TicketStatusResolved,
	})

	_, err := f.service.AcceptTicket(context.Background(), 1, ticket.ID)
	assertDomainCode(t, err, "CONFLICT")
	assert.Equal(t, 0, f.specs.Workload(1))
}

func TestAcceptUnknownTicketNotFound(t *testing.T) {
	f := newTicketFixture(t, nil, specialist(1, domain.CategoryNetwork, 0, 3))

	_, err := f.service.AcceptTicket(context.Background(), 1, 404)
	assertDomainCode(t, err, "NOT_FOUND")
}

func TestResolveReleasesAssigneeNotActor(t *testing.T) {
	f := newTicketFixture(t, nil,
		specialist(1, domain.CategoryNetwork, 1, 3),
		specialist(2, domain.CategoryNetwork, 2, 3),
	)
	ticket := f.boundTicket(t, domain.CategoryNetwork, 1)

	resolved, err := f.service.ResolveTicket(context.Background(), 2, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusResolved, resolved.Status)
	assert.Equal(t, 0, f.specs.Workload(1), "the bound specialist is released")
	assert.Equal(t, 2, f.specs.Workload(2), "the acting specialist is untouched")
}

func TestResolveUnboundTicketReleasesNobody(t *testing.T) {
	f := newTicketFixture(t, nil, specialist(1, domain.CategoryNetwork, 1, 3))
	ticket := f.tickets.Seed(domain.Ticket{
		RequesterID: 100,
		Title:       "stale",
		Description: "stale",
		Category:    domain.CategoryNetwork,
		Status:      domain.TicketStatusNew,
	})

	resolved, err := f.service.ResolveTicket(context.Background(), 1, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusResolved, resolved.Status)
	assert.Equal(t, 1, f.specs.Workload(1))
}

func TestWorkloadNeverDropsBelowZero(t *testing.T) {
	// A drifted counter must clamp instead of going negative.
	f := newTicketFixture(t, nil, specialist(1, domain.CategoryNetwork, 0, 3))
	ticket := f.boundTicket(t, domain.CategoryNetwork, 1)

	_, err := f.service.ResolveTicket(context.Background(), 1, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, f.specs.Workload(1))
}

func TestRejectRequiresReason(t *testing.T) {
	f := newTicketFixture(t, nil, specialist(1, domain.CategoryNetwork, 0, 3))
	ticket := f.boundTicket(t, domain.CategoryNetwork, 1)

	_, err := f.service.RejectTicket(context.Background(), 1, ticket.ID, "   ")
	assertDomainCode(t, err, "VALIDATION_FAILED")
}

func TestRejectRecordsReasonAndActor(t *testing.T) {
	f := newTicketFixture(t, nil, specialist(1, domain.CategoryNetwork, 1, 3))
	ticket := f.boundTicket(t, domain.CategoryNetwork, 1)

	rejected, err := f.service.RejectTicket(context.Background(), 1, ticket.ID, "duplicate of #12")
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusRejected, rejected.Status)
	require.NotNil(t, rejected.RejectedBy)
	assert.Equal(t, int64(1), *rejected.RejectedBy)
	require.NotNil(t, rejected.RejectedReason)
	assert.Equal(t, "duplicate of #12", *rejected.RejectedReason)
	assert.Equal(t, 0, f.specs.Workload(1))
}

func TestResolveNotifiesRequesterViaStatusEvent(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher()
	var payload events.TicketStatusChangedPayload
	dispatcher.Subscribe(events.EventTicketStatusChanged, func(_ context.Context, event events.Event) error {
		payload, _ = event.Payload.(events.TicketStatusChangedPayload)
		return nil
	})

	f := newTicketFixture(t, dispatcher, specialist(1, domain.CategoryNetwork, 1, 3))
	ticket := f.boundTicket(t, domain.CategoryNetwork, 1)

	_, err := f.service.ResolveTicket(context.Background(), 1, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusNew, payload.OldStatus)
	assert.Equal(t, domain.TicketStatusResolved, payload.NewStatus)
	assert.Equal(t, int64(100), payload.RequesterID)
}

func TestAddMessageFromAssigneeTargetsRequester(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher()
	var payload events.TicketMessageAddedPayload
	dispatcher.Subscribe(events.EventTicketMessageAdded, func(_ context.Context, event events.Event) error {
		payload, _ = event.Payload.(events.TicketMessageAddedPayload)
		return nil
	})

	f := newTicketFixture(t, dispatcher, specialist(1, domain.CategoryNetwork, 1, 3))
	ticket := f.boundTicket(t, domain.CategoryNetwork, 1)

	msg, err := f.service.AddMessage(context.Background(), 1, ticket.ID, "try rebooting the router")
	require.NoError(t, err)
	assert.Equal(t, "try rebooting the router", msg.Body)
	require.NotNil(t, payload.ReceiverID)
	assert.Equal(t, int64(100), *payload.ReceiverID)
}

func TestAddMessageFromRequesterTargetsAssignee(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher()
	var payload events.TicketMessageAddedPayload
	dispatcher.Subscribe(events.EventTicketMessageAdded, func(_ context.Context, event events.Event) error {
		payload, _ = event.Payload.(events.TicketMessageAddedPayload)
		return nil
	})

	f := newTicketFixture(t, dispatcher, specialist(1, domain.CategoryNetwork, 1, 3))
	ticket := f.boundTicket(t, domain.CategoryNetwork, 1)

	_, err := f.service.AddMessage(context.Background(), 100, ticket.ID, "still broken")
	require.NoError(t, err)
	require.NotNil(t, payload.ReceiverID)
	assert.Equal(t, int64(1), *payload.ReceiverID)
}

func TestAddMessageOnUnboundTicketHasNoReceiver(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher()
	var payload events.TicketMessageAddedPayload
	dispatcher.Subscribe(events.EventTicketMessageAdded, func(_ context.Context, event events.Event) error {
		payload, _ = event.Payload.(events.TicketMessageAddedPayload)
		return nil
	})

	f := newTicketFixture(t, dispatcher)
	ticket := f.tickets.Seed(domain.Ticket{
		RequesterID: 100,
		Title:       "lonely",
		Description: "nobody assigned",
		Category:    domain.CategorySoftware,
		Status:      domain.TicketStatusNew,
	})

	_, err := f.service.AddMessage(context.Background(), 100, ticket.ID, "anyone there?")
	require.NoError(t, err)
	assert.Nil(t, payload.ReceiverID)
}

func TestAddMessageValidatesBody(t *testing.T) {
	f := newTicketFixture(t, nil)
	ticket := f.tickets.Seed(domain.Ticket{
		RequesterID: 100,
		Title:       "t",
		Description: "d",
		Category:    domain.CategorySoftware,
		Status:      domain.TicketStatusNew,
	})

	_, err := f.service.AddMessage(context.Background(), 100, ticket.ID, "  ")
	assertDomainCode(t, err, "VALIDATION_FAILED")
}

func TestAddMessagePreviewTruncatesLongBodies(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher()
	var payload events.TicketMessageAddedPayload
	dispatcher.Subscribe(events.EventTicketMessageAdded, func(_ context.Context, event events.Event) error {
		payload, _ = event.Payload.(events.TicketMessageAddedPayload)
		return nil
	})

	f := newTicketFixture(t, dispatcher, specialist(1, domain.CategoryNetwork, 1, 3))
	ticket := f.boundTicket(t, domain.CategoryNetwork, 1)

	body := strings.Repeat("x", 500)
	_, err := f.service.AddMessage(context.Background(), 1, ticket.ID, body)
	require.NoError(t, err)
	assert.Len(t, payload.BodyPreview, 120)
	assert.True(t, strings.HasSuffix(payload.BodyPreview, "..."))
}

func TestListMessagesRequiresExistingTicket(t *testing.T) {
	f := newTicketFixture(t, nil)

	_, err := f.service.ListMessages(context.Background(), 42)
	assertDomainCode(t, err, "NOT_FOUND")
}

func TestGetTicketForRequesterEnforcesOwnership(t *testing.T) {
	f := newTicketFixture(t, nil)
	ticket := f.tickets.Seed(domain.Ticket{
		RequesterID: 100,
		Title:       "mine",
		Description: "mine",
		Category:    domain.CategoryAccess,
		Status:      domain.TicketStatusNew,
	})

	_, err := f.service.GetTicketForRequester(context.Background(), 200, ticket.ID)
	assertDomainCode(t, err, "FORBIDDEN")

	got, err := f.service.GetTicketForRequester(context.Background(), 100, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, ticket.ID, got.ID)
}

func TestStatsForSpecialistCountsByStatus(t *testing.T) {
	f := newTicketFixture(t, nil, specialist(1, domain.CategoryNetwork, 0, 5))
	for _, status := range []domain.TicketStatus{
		domain.TicketStatusNew,
		domain.TicketStatusInProgress,
		domain.TicketStatusInProgress,
		domain.TicketStatusResolved,
	} {
		assignee := int64(1)
		f.tickets.Seed(domain.Ticket{
			RequesterID: 100,
			Title:       "t",
			Description: "d",
			Category:    domain.CategoryNetwork,
			Status:      status,
			AssignedTo:  &assignee,
		})
	}

	stats, err := f.service.StatsForSpecialist(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.New)
	assert.Equal(t, 2, stats.InProgress)
	assert.Equal(t, 1, stats.Resolved)
}
