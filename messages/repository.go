package messages

import (
	"context"
	"database/sql"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, m *Message) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO messages (sender_id, receiver_id, body, type, attachment_url) VALUES (?,?,?,?,?)`,
		m.SenderID, m.ReceiverID, m.Body, m.Type, m.AttachmentURL)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	m.ID = int(id)
	return nil
}

// Conversation lists messages between two users, newest first. It is the
// (sender, receiver, recency) access pattern backed by
// idx_messages_conversation, queried in both directions.
func (r *Repository) Conversation(ctx context.Context, userA, userB, limit int) ([]Message, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, sender_id, receiver_id, body, type, attachment_url, is_read, created_at, updated_at
		 FROM messages
		 WHERE (sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)
		 ORDER BY created_at DESC, id DESC LIMIT ?`,
		userA, userB, userB, userA, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Message{}
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.SenderID, &m.ReceiverID, &m.Body, &m.Type, &m.AttachmentURL, &m.IsRead, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// UnreadCount is the (receiver, unread) access pattern backed by
// idx_messages_unread.
func (r *Repository) UnreadCount(ctx context.Context, receiverID int) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM messages WHERE receiver_id = ? AND is_read = 0`, receiverID).Scan(&n)
	return n, err
}

// MarkConversationRead flags every unread message from sender to receiver.
func (r *Repository) MarkConversationRead(ctx context.Context, receiverID, senderID int) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE messages SET is_read = 1, updated_at = NOW() WHERE receiver_id = ? AND sender_id = ? AND is_read = 0`,
		receiverID, senderID)
	return err
}
