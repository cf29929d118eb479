package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/connectify/connectify/internal/domain"
)

func (s *Store) CreateMessage(ctx context.Context, m *domain.Message) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (id, sender_id, receiver_id, text, image_url, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		string(m.ID), string(m.SenderID), string(m.ReceiverID), m.Text, m.ImageURL, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("create message: %w", err)
	}
	return nil
}

// MessagesBetween returns the full history between two users, oldest first,
// with reactions attached.
func (s *Store) MessagesBetween(ctx context.Context, a, b domain.UserID) ([]domain.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, sender_id, receiver_id, text, image_url, created_at
		 FROM messages
		 WHERE (sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)
		 ORDER BY created_at`,
		string(a), string(b), string(b), string(a))
	if err != nil {
		return nil, fmt.Errorf("messages between: %w", err)
	}
	defer rows.Close()

	var out []domain.Message
	for rows.Next() {
		var m domain.Message
		var id, sender, receiver string
		if err := rows.Scan(&id, &sender, &receiver, &m.Text, &m.ImageURL, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.ID = domain.MessageID(id)
		m.SenderID = domain.UserID(sender)
		m.ReceiverID = domain.UserID(receiver)
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		reactions, err := s.reactionsFor(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Reactions = reactions
	}
	return out, nil
}

func (s *Store) MessageByID(ctx context.Context, id domain.MessageID) (*domain.Message, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, sender_id, receiver_id, text, image_url, created_at FROM messages WHERE id = ?`,
		string(id))
	var m domain.Message
	var mid, sender, receiver string
	err := row.Scan(&mid, &sender, &receiver, &m.Text, &m.ImageURL, &m.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan message: %w", err)
	}
	m.ID = domain.MessageID(mid)
	m.SenderID = domain.UserID(sender)
	m.ReceiverID = domain.UserID(receiver)
	reactions, err := s.reactionsFor(ctx, m.ID)
	if err != nil {
		return nil, err
	}
	m.Reactions = reactions
	return &m, nil
}

// UpsertReaction records a user's emoji on a message, replacing any previous
// one (one reaction per user per message), and returns the message's full
// reaction list.
func (s *Store) UpsertReaction(ctx context.Context, messageID domain.MessageID, userID domain.UserID, emoji string) ([]domain.Reaction, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO reactions (message_id, user_id, emoji) VALUES (?, ?, ?)
		 ON CONFLICT (message_id, user_id) DO UPDATE SET emoji = excluded.emoji`,
		string(messageID), string(userID), emoji)
	if err != nil {
		return nil, fmt.Errorf("upsert reaction: %w", err)
	}
	return s.reactionsFor(ctx, messageID)
}

func (s *Store) reactionsFor(ctx context.Context, messageID domain.MessageID) ([]domain.Reaction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, emoji FROM reactions WHERE message_id = ? ORDER BY user_id`,
		string(messageID))
	if err != nil {
		return nil, fmt.Errorf("reactions for message: %w", err)
	}
	defer rows.Close()

	var out []domain.Reaction
	for rows.Next() {
		var r domain.Reaction
		var uid string
		if err := rows.Scan(&uid, &r.Emoji); err != nil {
			return nil, fmt.Errorf("scan reaction: %w", err)
		}
		r.UserID = domain.UserID(uid)
		out = append(out, r)
	}
	return out, rows.Err()
}
