package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/itops/helpdesk/internal/domain"
	"github.com/itops/helpdesk/internal/persistence"
)

// MessageRepository stores per-ticket chat messages.
type MessageRepository interface {
	Create(ctx context.Context, msg *domain.Message) error
	ListByTicket(ctx context.Context, ticketID int64) ([]domain.Message, error)
}

type messageRepository struct {
	pool *pgxpool.Pool
}

// NewMessageRepository instantiates the repository.
func NewMessageRepository(pool *pgxpool.Pool) MessageRepository {
	return &messageRepository{pool: pool}
}

func (r *messageRepository) Create(ctx context.Context, msg *domain.Message) error {
	const query = `
        INSERT INTO messages (ticket_id, sender_id, body)
        VALUES ($1,$2,$3)
        RETURNING id, sent_at`
	return persistence.QuerierFrom(ctx, r.pool).QueryRow(ctx, query,
		msg.TicketID,
		msg.SenderID,
		msg.Body,
	).Scan(&msg.ID, &msg.SentAt)
}

func (r *messageRepository) ListByTicket(ctx context.Context, ticketID int64) ([]domain.Message, error) {
	const query = `
        SELECT id, ticket_id, sender_id, body, sent_at
        FROM messages WHERE ticket_id=$1
        ORDER BY sent_at ASC, id ASC`
	rows, err := persistence.QuerierFrom(ctx, r.pool).Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Message
	for rows.Next() {
		var msg domain.Message
		if err := rows.Scan(&msg.ID, &msg.TicketID, &msg.SenderID, &msg.Body, &msg.SentAt); err != nil {
			return nil, err
		}
		result = append(result, msg)
	}
	return result, rows.Err()
}
