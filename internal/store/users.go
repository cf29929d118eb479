package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/connectify/connectify/internal/domain"
)

func (s *Store) CreateUser(ctx context.Context, u *domain.User) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, full_name, avatar_url, password_hash) VALUES (?, ?, ?, ?, ?)`,
		string(u.ID), u.Email, u.FullName, u.AvatarURL, u.PasswordHash)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (s *Store) UserByID(ctx context.Context, id domain.UserID) (*domain.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, email, full_name, avatar_url, password_hash FROM users WHERE id = ?`, string(id))
	return scanUser(row)
}

func (s *Store) UserByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, email, full_name, avatar_url, password_hash FROM users WHERE email = ?`, email)
	return scanUser(row)
}

// ListOtherUsers returns everyone except self, for the chat sidebar.
func (s *Store) ListOtherUsers(ctx context.Context, self domain.UserID) ([]domain.User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, email, full_name, avatar_url, password_hash FROM users WHERE id != ? ORDER BY full_name`,
		string(self))
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
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

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*domain.User, error) {
	var u domain.User
	var id string
	err := row.Scan(&id, &u.Email, &u.FullName, &u.AvatarURL, &u.PasswordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	u.ID = domain.UserID(id)
	return &u, nil
}
