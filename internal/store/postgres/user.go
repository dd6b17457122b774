package postgres

import (
	"context"
	"database/sql"

	"convoserve/internal/apperr"
	"convoserve/internal/logger"
	"convoserve/internal/store"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

// CreateUser inserts a new user row. The caller supplies an already-hashed
// password.
func (p *PostgresStore) CreateUser(ctx context.Context, username, email, passwordHash string) (*store.User, error) {
	user := store.User{
		ID:           uuid.New().String(),
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
	}

	query := `
	INSERT INTO users (id, username, email, password_hash)
	VALUES ($1, $2, $3, $4)
	RETURNING created_at
	`

	err := p.conn.QueryRowContext(ctx, query, user.ID, username, email, passwordHash).Scan(&user.CreatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code.Name() == "unique_violation" {
			return nil, apperr.E(apperr.Input, "username already exists")
		}
		return nil, apperr.Wrap(apperr.Store, err, "creating user")
	}

	logger.Log.WithFields(logrus.Fields{"username": username, "user_id": user.ID}).Info("Created new user")
	return &user, nil
}

// GetUserByUsername retrieves a user by username.
func (p *PostgresStore) GetUserByUsername(ctx context.Context, username string) (*store.User, error) {
	var user store.User
	query := `SELECT id, username, email, password_hash, created_at FROM users WHERE username = $1`

	err := p.conn.QueryRowContext(ctx, query, username).Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperr.E(apperr.NotFound, "user %q not found", username)
		}
		return nil, apperr.Wrap(apperr.Store, err, "retrieving user")
	}

	return &user, nil
}
