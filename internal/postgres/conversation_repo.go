package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/cwrk-planet/support-chat/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ConversationRepository struct {
	db *pgxpool.Pool
}

func NewConversationRepository(db *pgxpool.Pool) *ConversationRepository {
	return &ConversationRepository{db: db}
}

func (r *ConversationRepository) Create(ctx context.Context, c *domain.Conversation) error {
	query := `
		INSERT INTO conversations (cid, user_id, slug)
		VALUES ($1, $2, $3)
		RETURNING created_at`
	err := r.db.QueryRow(ctx, query, c.CID, c.UserID, c.Slug).Scan(&c.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		// 23505 — уникальный диалог на пользователя
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ErrConversationExists
		}
		return err
	}
	return nil
}

func (r *ConversationRepository) GetByID(ctx context.Context, cid string) (*domain.Conversation, error) {
	query := `
		SELECT c.cid, c.user_id, c.slug, c.created_at,
		       u.id, u.email, u.first_name, u.last_name, u.is_staff
		FROM conversations c
		JOIN users u ON u.id = c.user_id
		WHERE c.cid = $1`

	var c domain.Conversation
	var owner domain.User
	err := r.db.QueryRow(ctx, query, cid).Scan(
		&c.CID, &c.UserID, &c.Slug, &c.CreatedAt,
		&owner.ID, &owner.Email, &owner.FirstName, &owner.LastName, &owner.IsStaff,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrConversationNotFound
		}
		return nil, err
	}
	c.Owner = &owner
	return &c, nil
}

func (r *ConversationRepository) GetByUser(ctx context.Context, userID string) (*domain.Conversation, error) {
	query := `
		SELECT c.cid, c.user_id, c.slug, c.created_at,
		       u.id, u.email, u.first_name, u.last_name, u.is_staff
		FROM conversations c
		JOIN users u ON u.id = c.user_id
		WHERE c.user_id = $1`

	var c domain.Conversation
	var owner domain.User
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&c.CID, &c.UserID, &c.Slug, &c.CreatedAt,
		&owner.ID, &owner.Email, &owner.FirstName, &owner.LastName, &owner.IsStaff,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrConversationNotFound
		}
		return nil, err
	}
	c.Owner = &owner
	return &c, nil
}

type ConversationActivityRow struct {
	Conversation    domain.Conversation
	Owner           domain.User
	LastMessageTime time.Time
	UnreadCount     int64
}

// ListWithActivity — инбокс для staff: только диалоги с сообщениями,
// свежие сверху, с количеством непрочитанных чужих сообщений.
func (r *ConversationRepository) ListWithActivity(ctx context.Context, staffID string) ([]ConversationActivityRow, error) {
	query := `
		SELECT c.cid, c.user_id, c.slug, c.created_at,
		       u.id, u.email, u.first_name, u.last_name, u.is_staff,
		       MAX(m.timestamp) AS last_message_time,
		       COUNT(m.mid) FILTER (WHERE m.is_read = false AND m.sender_id <> $1) AS unread_count
		FROM conversations c
		JOIN users u ON u.id = c.user_id
		JOIN messages m ON m.conversation_id = c.cid
		GROUP BY c.cid, c.user_id, c.slug, c.created_at,
		         u.id, u.email, u.first_name, u.last_name, u.is_staff
		ORDER BY last_message_time DESC`

	rows, err := r.db.Query(ctx, query, staffID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ConversationActivityRow
	for rows.Next() {
		var row ConversationActivityRow
		if err := rows.Scan(
			&row.Conversation.CID, &row.Conversation.UserID, &row.Conversation.Slug, &row.Conversation.CreatedAt,
			&row.Owner.ID, &row.Owner.Email, &row.Owner.FirstName, &row.Owner.LastName, &row.Owner.IsStaff,
			&row.LastMessageTime, &row.UnreadCount,
		); err != nil {
			return nil, err
		}
		row.Conversation.Owner = &row.Owner
		out = append(out, row)
	}
	return out, rows.Err()
}
