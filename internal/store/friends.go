package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/connectify/connectify/internal/domain"
)

func (s *Store) CreateFriendRequest(ctx context.Context, fr *domain.FriendRequest) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO friend_requests (id, sender_id, receiver_id, status, created_at) VALUES (?, ?, ?, ?, ?)`,
		fr.ID, string(fr.SenderID), string(fr.ReceiverID), string(fr.Status), fr.CreatedAt)
	if err != nil {
		return fmt.Errorf("create friend request: %w", err)
	}
	return nil
}

// AcceptFriendRequest flips a pending request to accepted. Only the receiver
// may accept.
func (s *Store) AcceptFriendRequest(ctx context.Context, id string, receiver domain.UserID) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE friend_requests SET status = ? WHERE id = ? AND receiver_id = ? AND status = ?`,
		string(domain.FriendRequestAccepted), id, string(receiver), string(domain.FriendRequestPending))
	if err != nil {
		return fmt.Errorf("accept friend request: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("accept friend request: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) IncomingFriendRequests(ctx context.Context, receiver domain.UserID) ([]domain.FriendRequest, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, sender_id, receiver_id, status, created_at FROM friend_requests
		 WHERE receiver_id = ? AND status = ? ORDER BY created_at`,
		string(receiver), string(domain.FriendRequestPending))
	if err != nil {
		return nil, fmt.Errorf("incoming friend requests: %w", err)
	}
	defer rows.Close()
	return scanFriendRequests(rows)
}

// Friends lists the users connected to uid by an accepted request in either
// direction.
func (s *Store) Friends(ctx context.Context, uid domain.UserID) ([]domain.User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT u.id, u.email, u.full_name, u.avatar_url, u.password_hash
		 FROM users u
		 JOIN friend_requests fr
		   ON (fr.sender_id = ? AND fr.receiver_id = u.id)
		   OR (fr.receiver_id = ? AND fr.sender_id = u.id)
		 WHERE fr.status = ?
		 ORDER BY u.full_name`,
		string(uid), string(uid), string(domain.FriendRequestAccepted))
	if err != nil {
		return nil, fmt.Errorf("friends: %w", err)
	}
	defer rows.Close()

	var out []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

func (s *Store) AreFriends(ctx context.Context, a, b domain.UserID) (bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM friend_requests
		 WHERE status = ?
		   AND ((sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?))`,
		string(domain.FriendRequestAccepted), string(a), string(b), string(b), string(a))
	var one int
	err := row.Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("are friends: %w", err)
	}
	return true, nil
}

func scanFriendRequests(rows *sql.Rows) ([]domain.FriendRequest, error) {
	var out []domain.FriendRequest
	for rows.Next() {
		var fr domain.FriendRequest
		var sender, receiver, status string
		if err := rows.Scan(&fr.ID, &sender, &receiver, &status, &fr.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan friend request: %w", err)
		}
		fr.SenderID = domain.UserID(sender)
		fr.ReceiverID = domain.UserID(receiver)
		fr.Status = domain.FriendRequestStatus(status)
		out = append(out, fr)
	}
	return out, rows.Err()
}
