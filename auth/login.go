package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/milanbella/sa-oauth/logger"
)

// Login authenticates a user and binds the provided session to the user.
// It returns the authenticated user when successful.
func Login(ctx context.Context, store *Store, hasher PasswordHasher, sessionID, usernameOrEmail, password string) (*User, error) {
	if store == nil {
		return nil, logger.LogError("auth store is nil")
	}
	if hasher == nil {
		return nil, logger.LogError("password hasher is nil")
	}
	if strings.TrimSpace(sessionID) == "" {
		return nil, logger.LogError("session id is required")
	}
	usernameOrEmail = strings.TrimSpace(usernameOrEmail)
	if usernameOrEmail == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	user, hashedPassword, err := store.findUserCredentials(ctx, usernameOrEmail)
	if err != nil {
		return nil, err
	}

	if err := hasher.Verify(hashedPassword, password); err != nil {
		return nil, ErrInvalidCredentials
	}

	if err := store.rebindSessionUser(ctx, sessionID, user.ID); err != nil {
		return nil, err
	}

	return user, nil
}

func (s *Store) findUserCredentials(ctx context.Context, usernameOrEmail string) (*User, string, error) {
	var (
		user  User
		email sql.NullString
		hash  string
	)

	err := s.db.QueryRowContext(ctx, `
		SELECT id, username, email, password_hash
		FROM user
		WHERE username = ? OR email = ?
		ORDER BY CASE WHEN username = ? THEN 0 ELSE 1 END
		LIMIT 1
	`, usernameOrEmail, usernameOrEmail, usernameOrEmail).Scan(&user.ID, &user.Username, &email, &hash)
	switch {
	case err == nil:
		user.Email = email.String
		return &user, hash, nil
	case errors.Is(err, sql.ErrNoRows):
		return nil, "", ErrInvalidCredentials
	default:
		return nil, "", logger.LogErr(fmt.Errorf("query user credentials: %w", err))
	}
}

func (s *Store) rebindSessionUser(ctx context.Context, sessionID, userID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return logger.LogErr(fmt.Errorf("begin session rebind %s: %w", sessionID, err))
	}
	defer rollback(tx)

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM session_user
		WHERE session_id = ?
	`, sessionID); err != nil {
		return logger.LogErr(fmt.Errorf("delete session_user for session %s: %w", sessionID, err))
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO session_user (session_id, user_id)
		VALUES (?, ?)
	`, sessionID, userID); err != nil {
		return logger.LogErr(fmt.Errorf("insert session_user for session %s: %w", sessionID, err))
	}

	if err := tx.Commit(); err != nil {
		return logger.LogErr(fmt.Errorf("commit session rebind %s: %w", sessionID, err))
	}

	return nil
}
