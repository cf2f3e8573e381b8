package service_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/itops/helpdesk/internal/domain"
	"github.com/itops/helpdesk/internal/events"
	"github.com/itops/helpdesk/internal/repository/repotest"
	"github.com/itops/helpdesk/internal/service"
)

type recordingSink struct {
	mu       sync.Mutex
	channel  string
	payloads [][]byte
}

func (s *recordingSink) PublishEvent(_ context.Context, channel string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channel = channel
	s.payloads = append(s.payloads, payload)
	return nil
}

type notificationFixture struct {
	store      *repotest.NotificationStore
	dispatcher events.Dispatcher
	sink       *recordingSink
	service    *service.NotificationService
}

func newNotificationFixture(t *testing.T) *notificationFixture {
	t.Helper()
	store := repotest.NewNotificationStore()
	dispatcher := events.NewInMemoryDispatcher()
	sink := &recordingSink{}
	svc := service.NewNotificationService(store, dispatcher, sink, "helpdesk:events", zap.NewNop())
	svc.RegisterHandlers()
	return &notificationFixture{store: store, dispatcher: dispatcher, sink: sink, service: svc}
}

func statusEvent(ticketID int64, requesterID int64, from, to domain.TicketStatus) events.Event {
	return events.Event{
		ID:        "evt-1",
		Type:      events.EventTicketStatusChanged,
		TicketID:  ticketID,
		Actor:     events.Actor{Type: events.ActorTypeSystem},
		Timestamp: time.Now(),
		Payload: events.TicketStatusChangedPayload{
			OldStatus:   from,
			NewStatus:   to,
			RequesterID: requesterID,
		},
	}
}

func TestStatusChangeNotifiesRequester(t *testing.T) {
	f := newNotificationFixture(t)

	err := f.dispatcher.Publish(context.Background(),
		statusEvent(7, 100, domain.TicketStatusNew, domain.TicketStatusResolved))
	require.NoError(t, err)

	unread, err := f.service.ListUnread(context.Background(), 100)
	require.NoError(t, err)
	require.Len(t, unread, 1)
	assert.Equal(t, int64(7), unread[0].TicketID)
	assert.Contains(t, unread[0].Message, "resolved")
}

func TestAcceptNotifiesRequester(t *testing.T) {
	f := newNotificationFixture(t)

	err := f.dispatcher.Publish(context.Background(),
		statusEvent(3, 100, domain.TicketStatusNew, domain.TicketStatusInProgress))
	require.NoError(t, err)

	unread, err := f.service.ListUnread(context.Background(), 100)
	require.NoError(t, err)
	require.Len(t, unread, 1)
	assert.Contains(t, unread[0].Message, "picked up")
}

func TestMessageEventNotifiesReceiver(t *testing.T) {
	f := newNotificationFixture(t)
	receiver := int64(42)

	err := f.dispatcher.Publish(context.Background(), events.Event{
		ID:       "evt-2",
		Type:     events.EventTicketMessageAdded,
		TicketID: 7,
		Actor:    events.Actor{Type: events.ActorTypeEmployee},
		Payload: events.TicketMessageAddedPayload{
			MessageID:   1,
			SenderID:    100,
			ReceiverID:  &receiver,
			BodyPreview: "still broken",
		},
	})
	require.NoError(t, err)

	unread, err := f.service.ListUnread(context.Background(), 42)
	require.NoError(t, err)
	require.Len(t, unread, 1)
	assert.Contains(t, unread[0].Message, "#7")
}

func TestMessageEventWithoutReceiverIsDropped(t *testing.T) {
	f := newNotificationFixture(t)

	err := f.dispatcher.Publish(context.Background(), events.Event{
		ID:       "evt-3",
		Type:     events.EventTicketMessageAdded,
		TicketID: 7,
		Payload: events.TicketMessageAddedPayload{
			MessageID: 1,
			SenderID:  100,
		},
	})
	require.NoError(t, err)
	assert.Empty(t, f.store.Notifications)
}

func TestBindingEventsProduceNoInAppNotification(t *testing.T) {
	// Auto-assignment is invisible to the requester until someone accepts.
	f := newNotificationFixture(t)

	err := f.dispatcher.Publish(context.Background(), events.Event{
		ID:       "evt-4",
		Type:     events.EventTicketBound,
		TicketID: 7,
		Payload:  events.TicketBoundPayload{SpecialistID: 1},
	})
	require.NoError(t, err)
	assert.Empty(t, f.store.Notifications)
}

func TestEveryEventIsMirroredToSink(t *testing.T) {
	f := newNotificationFixture(t)

	err := f.dispatcher.Publish(context.Background(), events.Event{
		ID:        "evt-5",
		Type:      events.EventTicketBound,
		TicketID:  9,
		Timestamp: time.Now(),
		Payload:   events.TicketBoundPayload{SpecialistID: 2, Reassigned: true},
	})
	require.NoError(t, err)

	f.sink.mu.Lock()
	defer f.sink.mu.Unlock()
	assert.Equal(t, "helpdesk:events", f.sink.channel)
	require.Len(t, f.sink.payloads, 1)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(f.sink.payloads[0], &decoded))
	assert.Equal(t, "ticket_bound", decoded["type"])
	assert.Equal(t, float64(9), decoded["ticket_id"])
}

func TestMarkReadRemovesFromUnread(t *testing.T) {
	f := newNotificationFixture(t)

	err := f.dispatcher.Publish(context.Background(),
		statusEvent(7, 100, domain.TicketStatusNew, domain.TicketStatusRejected))
	require.NoError(t, err)

	unread, err := f.service.ListUnread(context.Background(), 100)
	require.NoError(t, err)
	require.Len(t, unread, 1)

	require.NoError(t, f.service.MarkRead(context.Background(), unread[0].ID))

	unread, err = f.service.ListUnread(context.Background(), 100)
	require.NoError(t, err)
	assert.Empty(t, unread)
}

func TestMarkReadUnknownNotification(t *testing.T) {
	f := newNotificationFixture(t)
	assertDomainCode(t, f.service.MarkRead(context.Background(), 404), "NOT_FOUND")
}
