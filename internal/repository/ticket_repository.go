package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/itops/helpdesk/internal/domain"
	"github.com/itops/helpdesk/internal/persistence"
)

// TicketFilter captures ticket search parameters.
type TicketFilter struct {
	RequesterID *int64
	AssigneeID  *int64
	Categories  []domain.Category
	Statuses    []domain.TicketStatus
	Limit       int
	Offset      int
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	Update(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id int64) (*domain.Ticket, error)
	// GetByIDForUpdate reads a ticket and holds its row lock for the
	// rest of the ambient transaction, so transitions on the same
	// ticket serialize instead of acting on a shared stale snapshot.
	GetByIDForUpdate(ctx context.Context, id int64) (*domain.Ticket, error)
	// Bind points assigned_to at a specialist without touching status:
	// auto-assignment leaves a ticket New until a human accepts it.
	Bind(ctx context.Context, ticketID, specialistID int64) error
	Unbind(ctx context.Context, ticketID int64) error
	ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	// FindExpiredNew returns New tickets created at or before the
	// deadline, oldest first so sweep runs are reproducible.
	FindExpiredNew(ctx context.Context, deadline time.Time) ([]domain.Ticket, error)
	CountByStatusForAssignee(ctx context.Context, specialistID int64) (map[domain.TicketStatus]int, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

func (r *ticketRepository) q(ctx context.Context) persistence.Querier {
	return persistence.QuerierFrom(ctx, r.pool)
}

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (requester_id, title, description, category, priority, status)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, created_at, updated_at`
	return r.q(ctx).QueryRow(ctx, query,
		ticket.RequesterID,
		ticket.Title,
		ticket.Description,
		ticket.Category,
		ticket.Priority,
		ticket.Status,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        UPDATE tickets SET assigned_to=$1, status=$2, rejected_by=$3, rejected_reason=$4, updated_at=NOW()
        WHERE id=$5`
	cmd, err := r.q(ctx).Exec(ctx, query,
		ticket.AssignedTo,
		ticket.Status,
		ticket.RejectedBy,
		ticket.RejectedReason,
		ticket.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ticketRepository) GetByID(ctx context.Context, id int64) (*domain.Ticket, error) {
	return r.getByID(ctx, id, "")
}

func (r *ticketRepository) GetByIDForUpdate(ctx context.Context, id int64) (*domain.Ticket, error) {
	return r.getByID(ctx, id, " FOR UPDATE")
}

func (r *ticketRepository) getByID(ctx context.Context, id int64, suffix string) (*domain.Ticket, error) {
	query := `
        SELECT id, requester_id, title, description, category, priority, status,
               assigned_to, rejected_by, rejected_reason, created_at, updated_at
        FROM tickets WHERE id=$1` + suffix
	var ticket domain.Ticket
	if err := r.q(ctx).QueryRow(ctx, query, id).Scan(
		&ticket.ID,
		&ticket.RequesterID,
		&ticket.Title,
		&ticket.Description,
		&ticket.Category,
		&ticket.Priority,
		&ticket.Status,
		&ticket.AssignedTo,
		&ticket.RejectedBy,
		&ticket.RejectedReason,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (r *ticketRepository) Bind(ctx context.Context, ticketID, specialistID int64) error {
	const query = `UPDATE tickets SET assigned_to=$1, updated_at=NOW() WHERE id=$2`
	cmd, err := r.q(ctx).Exec(ctx, query, specialistID, ticketID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ticketRepository) Unbind(ctx context.Context, ticketID int64) error {
	const query = `UPDATE tickets SET assigned_to=NULL, updated_at=NOW() WHERE id=$1`
	cmd, err := r.q(ctx).Exec(ctx, query, ticketID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ticketRepository) ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	base := `SELECT id, requester_id, title, description, category, priority, status,
                    assigned_to, rejected_by, rejected_reason, created_at, updated_at
             FROM tickets`
	clauses := []string{"1=1"}
	args := []any{}

	if filter.RequesterID != nil {
		args = append(args, *filter.RequesterID)
		clauses = append(clauses, fmt.Sprintf("requester_id=$%d", len(args)))
	}
	if filter.AssigneeID != nil {
		args = append(args, *filter.AssigneeID)
		clauses = append(clauses, fmt.Sprintf("assigned_to=$%d", len(args)))
	}
	if len(filter.Categories) > 0 {
		placeholders := make([]string, len(filter.Categories))
		for i, cat := range filter.Categories {
			args = append(args, cat)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("category IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`%s WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		base, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.q(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) FindExpiredNew(ctx context.Context, deadline time.Time) ([]domain.Ticket, error) {
	const query = `
        SELECT id, requester_id, title, description, category, priority, status,
               assigned_to, rejected_by, rejected_reason, created_at, updated_at
        FROM tickets
        WHERE status=$1 AND created_at <= $2
        ORDER BY created_at ASC, id ASC`
	rows, err := r.q(ctx).Query(ctx, query, domain.TicketStatusNew, deadline)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) CountByStatusForAssignee(ctx context.Context, specialistID int64) (map[domain.TicketStatus]int, error) {
	const query = `SELECT status, COUNT(*) FROM tickets WHERE assigned_to=$1 GROUP BY status`
	rows, err := r.q(ctx).Query(ctx, query, specialistID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[domain.TicketStatus]int)
	for rows.Next() {
		var status domain.TicketStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		var ticket domain.Ticket
		if err := rows.Scan(
			&ticket.ID,
			&ticket.RequesterID,
			&ticket.Title,
			&ticket.Description,
			&ticket.Category,
			&ticket.Priority,
			&ticket.Status,
			&ticket.AssignedTo,
			&ticket.RejectedBy,
			&ticket.RejectedReason,
			&ticket.CreatedAt,
			&ticket.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, ticket)
	}
	return result, rows.Err()
}
