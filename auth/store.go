package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/milanbella/sa-oauth/logger"
)

// ClientRepository resolves registered clients and their redirect URIs.
type ClientRepository interface {
	GetClientByClientID(ctx context.Context, clientID string) (*Client, error)
	HasRedirectURI(ctx context.Context, clientID, uri string) (bool, error)
}

// CodeRepository persists authorization codes. TakeCode must read and delete
// the row as one indivisible step: of any number of concurrent callers for
// the same value, at most one gets the record.
type CodeRepository interface {
	InsertCode(ctx context.Context, code *AuthorizationCode) error
	TakeCode(ctx context.Context, code string) (*AuthorizationCode, error)
}

// TokenRepository persists issued tokens. Lookups do not check expiry.
type TokenRepository interface {
	InsertToken(ctx context.Context, token *Token) error
	GetTokenByAccessToken(ctx context.Context, accessToken string) (*Token, error)
}

// UserResolver finds resource owners by id.
type UserResolver interface {
	FindUserByID(ctx context.Context, id string) (*User, error)
}

// Store provides database-backed operations needed by authorization flows.
type Store struct {
	db *sql.DB
}

// NewStore constructs a Store backed by the given sql.DB.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

var (
	_ ClientRepository = (*Store)(nil)
	_ CodeRepository   = (*Store)(nil)
	_ TokenRepository  = (*Store)(nil)
	_ UserResolver     = (*Store)(nil)
)

// FindUserByID loads the user with the given id.
func (s *Store) FindUserByID(ctx context.Context, id string) (*User, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrUserNotFound
	}

	var (
		user  User
		email sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, username, email
		FROM user
		WHERE id = ?
	`, id).Scan(&user.ID, &user.Username, &email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrUserNotFound, id)
		}
		return nil, logger.LogErr(fmt.Errorf("query user %s: %w", id, err))
	}
	user.Email = email.String

	return &user, nil
}

// UserIDForSession returns the user bound to the session, or ErrUserNotFound
// when the session has not been authenticated.
func (s *Store) UserIDForSession(ctx context.Context, sessionID string) (string, error) {
	var userID string
	if err := s.db.QueryRowContext(ctx, `
		SELECT user_id
		FROM session_user
		WHERE session_id = ?
	`, sessionID).Scan(&userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("%w: no user bound to session %s", ErrUserNotFound, sessionID)
		}
		return "", logger.LogErr(fmt.Errorf("query session user %s: %w", sessionID, err))
	}

	if strings.TrimSpace(userID) == "" {
		return "", fmt.Errorf("%w: no user bound to session %s", ErrUserNotFound, sessionID)
	}

	return userID, nil
}

// dbTime normalizes timestamps to the precision of a DATETIME(6) column so
// values read back compare equal to the ones written.
func dbTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

func rollback(tx *sql.Tx) {
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		logger.Error(fmt.Errorf("rollback transaction: %w", err))
	}
}
