package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/itops/helpdesk/internal/domain"
	"github.com/itops/helpdesk/internal/persistence"
)

// NotificationRepository stores in-app notifications.
type NotificationRepository interface {
	Create(ctx context.Context, notif *domain.Notification) error
	ListUnread(ctx context.Context, receiverID int64) ([]domain.Notification, error)
	MarkRead(ctx context.Context, id int64) error
}

type notificationRepository struct {
	pool *pgxpool.Pool
}

// NewNotificationRepository instantiates the repository.
func NewNotificationRepository(pool *pgxpool.Pool) NotificationRepository {
	return &notificationRepository{pool: pool}
}

func (r *notificationRepository) Create(ctx context.Context, notif *domain.Notification) error {
	const query = `
        INSERT INTO notifications (receiver_id, ticket_id, message, is_read)
        VALUES ($1,$2,$3,FALSE)
        RETURNING id, created_at`
	return persistence.QuerierFrom(ctx, r.pool).QueryRow(ctx, query,
		notif.ReceiverID,
		notif.TicketID,
		notif.Message,
	).Scan(&notif.ID, &notif.CreatedAt)
}

func (r *notificationRepository) ListUnread(ctx context.Context, receiverID int64) ([]domain.Notification, error) {
	const query = `
        SELECT id, receiver_id, ticket_id, message, is_read, created_at
        FROM notifications
        WHERE receiver_id=$1 AND is_read=FALSE
        ORDER BY created_at DESC`
	rows, err := persistence.QuerierFrom(ctx, r.pool).Query(ctx, query, receiverID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Notification
	for rows.Next() {
		var notif domain.Notification
		if err := rows.Scan(
			&notif.ID,
			&notif.ReceiverID,
			&notif.TicketID,
			&notif.Message,
			&notif.Read,
			&notif.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, notif)
	}
	return result, rows.Err()
}

func (r *notificationRepository) MarkRead(ctx context.Context, id int64) error {
	const query = `UPDATE notifications SET is_read=TRUE WHERE id=$1`
	cmd, err := persistence.QuerierFrom(ctx, r.pool).Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
