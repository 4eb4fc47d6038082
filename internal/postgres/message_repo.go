package postgres

import (
	"context"
	"fmt"

	"github.com/cwrk-planet/support-chat/internal/domain"

	"github.com/jackc/pgx/v5/pgxpool"
)

type MessageRepository struct {
	db *pgxpool.Pool
}

func NewMessageRepository(db *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{db: db}
}

func (r *MessageRepository) Save(ctx context.Context, m *domain.Message) error {
	query := `
		INSERT INTO messages (conversation_id, sender_id, body, image, message_type, is_read)
		VALUES ($1, $2, $3, $4, $5, false)
		RETURNING mid, timestamp`
	return r.db.QueryRow(ctx, query,
		m.ConversationID, m.SenderID, m.Body, m.Image, m.Type,
	).Scan(&m.MID, &m.Timestamp)
}

// HasUnread — есть ли в диалоге непрочитанные сообщения, адресованные userID
// (т.е. отправленные не им).
func (r *MessageRepository) HasUnread(ctx context.Context, conversationID, userID string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM messages
			WHERE conversation_id = $1 AND is_read = false AND sender_id <> $2
		)`, conversationID, userID).Scan(&exists)
	return exists, err
}

// ListUnread — непрочитанные чужие сообщения в порядке отправки,
// вместе с данными отправителя (для replay при подключении).
func (r *MessageRepository) ListUnread(ctx context.Context, conversationID, userID string) ([]domain.MessageWithSender, error) {
	query := `
		SELECT m.mid, m.conversation_id, m.sender_id, m.body, m.image, m.message_type, m.timestamp, m.is_read,
		       u.id, u.email, u.first_name, u.last_name, u.is_staff
		FROM messages m
		JOIN users u ON u.id = m.sender_id
		WHERE m.conversation_id = $1 AND m.is_read = false AND m.sender_id <> $2
		ORDER BY m.timestamp ASC`

	rows, err := r.db.Query(ctx, query, conversationID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.MessageWithSender
	for rows.Next() {
		var m domain.MessageWithSender
		if err := rows.Scan(
			&m.MID, &m.ConversationID, &m.SenderID, &m.Body, &m.Image, &m.Type, &m.Timestamp, &m.IsRead,
			&m.Sender.ID, &m.Sender.Email, &m.Sender.FirstName, &m.Sender.LastName, &m.Sender.IsStaff,
		); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// MarkRead — один batch UPDATE: все непрочитанные чужие сообщения диалога.
// Возвращает количество обновлённых строк.
func (r *MessageRepository) MarkRead(ctx context.Context, conversationID, readerID string) (int64, error) {
	cmd, err := r.db.Exec(ctx, `
		UPDATE messages SET is_read = true
		WHERE conversation_id = $1 AND is_read = false AND sender_id <> $2`,
		conversationID, readerID)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

// History — история диалога с курсорной пагинацией (timestamp, mid DESC)
// и опциональным поиском по тексту.
func (r *MessageRepository) History(ctx context.Context, conversationID, after string, limit int, search string) ([]domain.MessageWithSender, string, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 100 {
		limit = 100
	}
	cur, err := DecodeCursor(after)
	if err != nil {
		return nil, "", fmt.Errorf("decode cursor: %w", err)
	}

	query := `
		SELECT m.mid, m.conversation_id, m.sender_id, m.body, m.image, m.message_type, m.timestamp, m.is_read,
		       u.id, u.email, u.first_name, u.last_name, u.is_staff
		FROM messages m
		JOIN users u ON u.id = m.sender_id
		WHERE m.conversation_id = $1
		  AND (
		    $2::timestamptz IS NULL
		    OR m.timestamp < $2
		    OR (m.timestamp = $2 AND m.mid < $3)
		  )
		  AND ($4 = '' OR m.body ILIKE '%' || $4 || '%')
		ORDER BY m.timestamp DESC, m.mid DESC
		LIMIT $5`

	var ts any
	var mid any
	if cur != nil {
		ts = cur.Timestamp
		mid = cur.MID
	}

	rows, err := r.db.Query(ctx, query, conversationID, ts, mid, search, limit)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()

	var out []domain.MessageWithSender
	for rows.Next() {
		var m domain.MessageWithSender
		if err := rows.Scan(
			&m.MID, &m.ConversationID, &m.SenderID, &m.Body, &m.Image, &m.Type, &m.Timestamp, &m.IsRead,
			&m.Sender.ID, &m.Sender.Email, &m.Sender.FirstName, &m.Sender.LastName, &m.Sender.IsStaff,
		); err != nil {
			return nil, "", err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}

	var next string
	if len(out) == limit {
		last := out[len(out)-1]
		if c, e := EncodeCursor(Cursor{Timestamp: last.Timestamp, MID: last.MID}); e == nil {
			next = c
		}
	}
	return out, next, nil
}
