// Package repotest provides in-memory repository implementations for
// service and worker tests. They mirror the SQL behavior of the real
// repositories: least-loaded candidate claims, floored workload
// releases, and pgx.ErrNoRows on missing rows.
package repotest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/itops/helpdesk/internal/domain"
	"github.com/itops/helpdesk/internal/repository"
)

// InlineTx satisfies service.TxRunner by running fn directly; the fakes
// mutate state in place, so there is nothing to commit or roll back.
type InlineTx struct{}

func (InlineTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// TicketStore is an in-memory repository.TicketRepository.
type TicketStore struct {
	mu      sync.Mutex
	nextID  int64
	tickets map[int64]domain.Ticket

	// BindErr, when set, is returned by Bind to simulate store failure.
	BindErr error
	// FindExpiredErr, when set, is returned by FindExpiredNew.
	FindExpiredErr error
	// LockedReads counts GetByIDForUpdate calls, letting tests assert
	// that a transition read the ticket under the row lock.
	LockedReads int
}

// NewTicketStore creates an empty store.
func NewTicketStore() *TicketStore {
	return &TicketStore{tickets: make(map[int64]domain.Ticket)}
}

var _ repository.TicketRepository = (*TicketStore)(nil)

func (s *TicketStore) Create(ctx context.Context, ticket *domain.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	ticket.ID = s.nextID
	if ticket.CreatedAt.IsZero() {
		ticket.CreatedAt = time.Now()
	}
	ticket.UpdatedAt = ticket.CreatedAt
	s.tickets[ticket.ID] = *ticket
	return nil
}

// Seed inserts a ticket as-is, keeping its CreatedAt; used to backdate
// tickets in sweep tests.
func (s *TicketStore) Seed(ticket domain.Ticket) domain.Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ticket.ID == 0 {
		s.nextID++
		ticket.ID = s.nextID
	} else if ticket.ID > s.nextID {
		s.nextID = ticket.ID
	}
	s.tickets[ticket.ID] = ticket
	return ticket
}

func (s *TicketStore) Update(ctx context.Context, ticket *domain.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.tickets[ticket.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	stored.AssignedTo = ticket.AssignedTo
	stored.Status = ticket.Status
	stored.RejectedBy = ticket.RejectedBy
	stored.RejectedReason = ticket.RejectedReason
	stored.UpdatedAt = time.Now()
	s.tickets[ticket.ID] = stored
	return nil
}

func (s *TicketStore) GetByID(ctx context.Context, id int64) (*domain.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ticket, ok := s.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &ticket, nil
}

func (s *TicketStore) GetByIDForUpdate(ctx context.Context, id int64) (*domain.Ticket, error) {
	s.mu.Lock()
	s.LockedReads++
	s.mu.Unlock()
	return s.GetByID(ctx, id)
}

func (s *TicketStore) Bind(ctx context.Context, ticketID, specialistID int64) error {
	if s.BindErr != nil {
		return s.BindErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ticket, ok := s.tickets[ticketID]
	if !ok {
		return pgx.ErrNoRows
	}
	ticket.AssignedTo = &specialistID
	ticket.UpdatedAt = time.Now()
	s.tickets[ticketID] = ticket
	return nil
}

func (s *TicketStore) Unbind(ctx context.Context, ticketID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ticket, ok := s.tickets[ticketID]
	if !ok {
		return pgx.ErrNoRows
	}
	ticket.AssignedTo = nil
	ticket.UpdatedAt = time.Now()
	s.tickets[ticketID] = ticket
	return nil
}

func (s *TicketStore) ListWithFilter(ctx context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []domain.Ticket
	for _, ticket := range s.tickets {
		if filter.RequesterID != nil && ticket.RequesterID != *filter.RequesterID {
			continue
		}
		if filter.AssigneeID != nil && (ticket.AssignedTo == nil || *ticket.AssignedTo != *filter.AssigneeID) {
			continue
		}
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, ticket.Status) {
			continue
		}
		if len(filter.Categories) > 0 && !containsCategory(filter.Categories, ticket.Category) {
			continue
		}
		result = append(result, ticket)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (s *TicketStore) FindExpiredNew(ctx context.Context, deadline time.Time) ([]domain.Ticket, error) {
	if s.FindExpiredErr != nil {
		return nil, s.FindExpiredErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []domain.Ticket
	for _, ticket := range s.tickets {
		if ticket.Status == domain.TicketStatusNew && !ticket.CreatedAt.After(deadline) {
			result = append(result, ticket)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (s *TicketStore) CountByStatusForAssignee(ctx context.Context, specialistID int64) (map[domain.TicketStatus]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[domain.TicketStatus]int)
	for _, ticket := range s.tickets {
		if ticket.AssignedTo != nil && *ticket.AssignedTo == specialistID {
			counts[ticket.Status]++
		}
	}
	return counts, nil
}

func containsStatus(statuses []domain.TicketStatus, status domain.TicketStatus) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

func containsCategory(categories []domain.Category, category domain.Category) bool {
	for _, c := range categories {
		if c == category {
			return true
		}
	}
	return false
}

// SpecialistStore is an in-memory repository.SpecialistRepository.
type SpecialistStore struct {
	mu          sync.Mutex
	specialists map[int64]domain.Specialist

	// ClaimErr, when set, is returned by ClaimCandidate.
	ClaimErr error
}

// NewSpecialistStore creates a store seeded with the given specialists.
func NewSpecialistStore(specs ...domain.Specialist) *SpecialistStore {
	store := &SpecialistStore{specialists: make(map[int64]domain.Specialist)}
	for _, spec := range specs {
		store.specialists[spec.ID] = spec
	}
	return store
}

var _ repository.SpecialistRepository = (*SpecialistStore)(nil)

func (s *SpecialistStore) GetByID(ctx context.Context, id int64) (*domain.Specialist, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	spec, ok := s.specialists[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &spec, nil
}

func (s *SpecialistStore) List(ctx context.Context, filter repository.SpecialistFilter) ([]domain.Specialist, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []domain.Specialist
	for _, spec := range s.specialists {
		if filter.Specialization != nil && spec.Specialization != *filter.Specialization {
			continue
		}
		if filter.Availability != nil && spec.Availability != *filter.Availability {
			continue
		}
		result = append(result, spec)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (s *SpecialistStore) SetAvailability(ctx context.Context, id int64, availability domain.Availability) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	spec, ok := s.specialists[id]
	if !ok {
		return pgx.ErrNoRows
	}
	spec.Availability = availability
	s.specialists[id] = spec
	return nil
}

func (s *SpecialistStore) ClaimCandidate(ctx context.Context, specialization domain.Category) (*domain.Specialist, error) {
	if s.ClaimErr != nil {
		return nil, s.ClaimErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var candidates []domain.Specialist
	for _, spec := range s.specialists {
		if spec.Specialization == specialization && spec.Available() && spec.Workload < spec.MaxLoad {
			candidates = append(candidates, spec)
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Workload == candidates[j].Workload {
			return candidates[i].ID < candidates[j].ID
		}
		return candidates[i].Workload < candidates[j].Workload
	})

	chosen := candidates[0]
	chosen.Workload++
	s.specialists[chosen.ID] = chosen
	return &chosen, nil
}

func (s *SpecialistStore) AcquireWorkload(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	spec, ok := s.specialists[id]
	if !ok {
		return pgx.ErrNoRows
	}
	spec.Workload++
	s.specialists[id] = spec
	return nil
}

func (s *SpecialistStore) ReleaseWorkload(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	spec, ok := s.specialists[id]
	if !ok {
		return pgx.ErrNoRows
	}
	if spec.Workload > 0 {
		spec.Workload--
	}
	s.specialists[id] = spec
	return nil
}

// Workload returns the current counter for assertions.
func (s *SpecialistStore) Workload(id int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.specialists[id].Workload
}

// NotificationStore is an in-memory repository.NotificationRepository.
type NotificationStore struct {
	mu            sync.Mutex
	nextID        int64
	Notifications []domain.Notification
}

// NewNotificationStore creates an empty store.
func NewNotificationStore() *NotificationStore {
	return &NotificationStore{}
}

var _ repository.NotificationRepository = (*NotificationStore)(nil)

func (s *NotificationStore) Create(ctx context.Context, notif *domain.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	notif.ID = s.nextID
	notif.CreatedAt = time.Now()
	s.Notifications = append(s.Notifications, *notif)
	return nil
}

func (s *NotificationStore) ListUnread(ctx context.Context, receiverID int64) ([]domain.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []domain.Notification
	for _, notif := range s.Notifications {
		if notif.ReceiverID == receiverID && !notif.Read {
			result = append(result, notif)
		}
	}
	return result, nil
}

func (s *NotificationStore) MarkRead(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.Notifications {
		if s.Notifications[i].ID == id {
			s.Notifications[i].Read = true
			return nil
		}
	}
	return pgx.ErrNoRows
}

// MessageStore is an in-memory repository.MessageRepository.
type MessageStore struct {
	mu       sync.Mutex
	nextID   int64
	Messages []domain.Message
}

// NewMessageStore creates an empty store.
func NewMessageStore() *MessageStore {
	return &MessageStore{}
}

var _ repository.MessageRepository = (*MessageStore)(nil)

func (s *MessageStore) Create(ctx context.Context, msg *domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	msg.ID = s.nextID
	msg.SentAt = time.Now()
	s.Messages = append(s.Messages, *msg)
	return nil
}

func (s *MessageStore) ListByTicket(ctx context.Context, ticketID int64) ([]domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []domain.Message
	for _, msg := range s.Messages {
		if msg.TicketID == ticketID {
			result = append(result, msg)
		}
	}
	return result, nil
}
