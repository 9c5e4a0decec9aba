package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/milanbella/sa-oauth/logger"
)

// CodeStore issues one-time authorization codes and consumes them exactly once.
type CodeStore struct {
	repo      CodeRepository
	generator TokenGenerator
	ttl       time.Duration
	now       func() time.Time
	metrics   *Metrics
}

// NewCodeStore constructs a CodeStore. A non-positive ttl falls back to DefaultCodeTTL.
func NewCodeStore(repo CodeRepository, generator TokenGenerator, ttl time.Duration, opts ...Option) *CodeStore {
	if ttl <= 0 {
		ttl = DefaultCodeTTL
	}
	o := applyOptions(opts)
	return &CodeStore{
		repo:      repo,
		generator: generator,
		ttl:       ttl,
		now:       o.now,
		metrics:   o.metrics,
	}
}

// GenerateCodeForUser persists a fresh code bound to client and user and returns its value.
func (s *CodeStore) GenerateCodeForUser(ctx context.Context, client *Client, user *User) (string, error) {
	if client == nil || client.ID == "" {
		return "", logger.LogError("client is required")
	}
	if user == nil || user.ID == "" {
		return "", logger.LogError("user is required")
	}

	value, err := s.generator.Generate()
	if err != nil {
		return "", logger.LogErr(fmt.Errorf("generate authorization code: %w", err))
	}

	code := &AuthorizationCode{
		ID:        uuid.NewString(),
		ClientID:  client.ID,
		UserID:    user.ID,
		Code:      value,
		CreatedAt: dbTime(s.now()),
	}
	if err := s.repo.InsertCode(ctx, code); err != nil {
		return "", err
	}

	s.metrics.codeIssued()
	return value, nil
}

// ConsumeCode takes the code out of the store and then validates it for
// client. The row is gone before validation starts, so a code that fails
// here for expiry or client mismatch can never be retried.
func (s *CodeStore) ConsumeCode(ctx context.Context, client *Client, value string) (*AuthorizationCode, error) {
	if client == nil || client.ID == "" {
		return nil, logger.LogError("client is required")
	}
	if strings.TrimSpace(value) == "" {
		s.metrics.codeConsumed("not_recognized")
		return nil, ErrCodeNotRecognized
	}

	record, err := s.repo.TakeCode(ctx, value)
	if err != nil {
		if errors.Is(err, ErrCodeNotRecognized) {
			s.metrics.codeConsumed("not_recognized")
		} else {
			s.metrics.codeConsumed("error")
		}
		return nil, err
	}

	if record.ExpiredAt(s.now(), s.ttl) {
		s.metrics.codeConsumed("expired")
		return nil, ErrCodeExpired
	}

	if record.ClientID != client.ID {
		s.metrics.codeConsumed("client_mismatch")
		logger.Warn("authorization code %s presented by client %s was issued to %s", record.ID, client.ID, record.ClientID)
		return nil, ErrClientMismatch
	}

	s.metrics.codeConsumed("ok")
	return record, nil
}

func (s *Store) InsertCode(ctx context.Context, code *AuthorizationCode) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO codes (
			id,
			client_id,
			user_id,
			code,
			created
		) VALUES (?, ?, ?, ?, ?)
	`,
		code.ID,
		code.ClientID,
		code.UserID,
		code.Code,
		code.CreatedAt,
	)
	if err != nil {
		return logger.LogErr(fmt.Errorf("insert authorization code for client %s: %w", code.ClientID, err))
	}
	return nil
}

// TakeCode reads the code row and deletes it in one transaction. Only the
// caller whose DELETE removes the row receives it; concurrent callers that
// read the same row before it was deleted get ErrCodeNotRecognized.
func (s *Store) TakeCode(ctx context.Context, value string) (*AuthorizationCode, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, logger.LogErr(fmt.Errorf("begin code consumption: %w", err))
	}
	defer rollback(tx)

	var code AuthorizationCode
	err = tx.QueryRowContext(ctx, `
		SELECT id, client_id, user_id, code, created
		FROM codes
		WHERE code = ?
	`, value).Scan(&code.ID, &code.ClientID, &code.UserID, &code.Code, &code.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCodeNotRecognized
		}
		return nil, logger.LogErr(fmt.Errorf("query authorization code: %w", err))
	}

	res, err := tx.ExecContext(ctx, `
		DELETE FROM codes
		WHERE id = ?
	`, code.ID)
	if err != nil {
		return nil, logger.LogErr(fmt.Errorf("delete authorization code %s: %w", code.ID, err))
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, logger.LogErr(fmt.Errorf("delete authorization code %s: %w", code.ID, err))
	}
	if affected != 1 {
		return nil, ErrCodeNotRecognized
	}

	if err := tx.Commit(); err != nil {
		return nil, logger.LogErr(fmt.Errorf("commit code consumption %s: %w", code.ID, err))
	}

	code.CreatedAt = code.CreatedAt.UTC()
	return &code, nil
}
