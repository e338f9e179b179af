package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// GetUser loads a visitor by id.
func (s *Store) GetUser(ctx context.Context, id int64) (User, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, project_id, name, last_active_at, created_at FROM users WHERE id = $1`, id)
	var u User
	if err := row.Scan(&u.ID, &u.ProjectID, &u.Name, &u.LastActiveAt, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, fmt.Errorf("get user %d: %w", id, err)
	}
	return u, nil
}

// EnsureUser creates the visitor row if it does not exist yet and refreshes
// the name when one is supplied.
func (s *Store) EnsureUser(ctx context.Context, id, projectID int64, name string) (User, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO users (id, project_id, name)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET
			name = CASE WHEN EXCLUDED.name <> '' THEN EXCLUDED.name ELSE users.name END
		RETURNING id, project_id, name, last_active_at, created_at`,
		id, projectID, name)
	var u User
	if err := row.Scan(&u.ID, &u.ProjectID, &u.Name, &u.LastActiveAt, &u.CreatedAt); err != nil {
		return User{}, fmt.Errorf("ensure user %d: %w", id, err)
	}
	return u, nil
}

// TouchLastActive moves the visitor's activity marker forward.
func (s *Store) TouchLastActive(ctx context.Context, userID int64) error {
	if _, err := s.pool.Exec(ctx,
		`UPDATE users SET last_active_at = now() WHERE id = $1`, userID); err != nil {
		return fmt.Errorf("touch user %d: %w", userID, err)
	}
	return nil
}

// ListActiveUsersSince returns visitors active after the cutoff, most recent
// first.
func (s *Store) ListActiveUsersSince(ctx context.Context, since time.Time) ([]User, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, project_id, name, last_active_at, created_at
		FROM users
		WHERE last_active_at >= $1
		ORDER BY last_active_at DESC`, since)
	if err != nil {
		return nil, fmt.Errorf("list active users: %w", err)
	}
	defer rows.Close()
	var users []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.ProjectID, &u.Name, &u.LastActiveAt, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan active user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}
