package postgres

import (
	"context"

	"github.com/cwrk-planet/support-chat/internal/domain"

	"github.com/jackc/pgx/v5/pgxpool"
)

type NotificationRepository struct {
	db *pgxpool.Pool
}

func NewNotificationRepository(db *pgxpool.Pool) *NotificationRepository {
	return &NotificationRepository{db: db}
}

func (r *NotificationRepository) Create(ctx context.Context, n *domain.Notification) error {
	query := `
		INSERT INTO notifications (body, user_id)
		VALUES ($1, $2)
		RETURNING nid, is_read, created_at`
	return r.db.QueryRow(ctx, query, n.Body, n.UserID).Scan(&n.NID, &n.IsRead, &n.CreatedAt)
}

func (r *NotificationRepository) ListByUser(ctx context.Context, userID string, limit int) ([]domain.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	rows, err := r.db.Query(ctx, `
		SELECT nid, body, user_id, is_read, created_at
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Notification
	for rows.Next() {
		var n domain.Notification
		if err := rows.Scan(&n.NID, &n.Body, &n.UserID, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// MarkRead — только собственные уведомления.
func (r *NotificationRepository) MarkRead(ctx context.Context, nid int64, userID string) (int64, error) {
	cmd, err := r.db.Exec(ctx,
		`UPDATE notifications SET is_read = true WHERE nid = $1 AND user_id = $2`,
		nid, userID)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}
