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

// TokenIssuer mints access/refresh token pairs and resolves live access tokens.
type TokenIssuer struct {
	repo       TokenRepository
	codes      *CodeStore
	users      UserResolver
	generator  TokenGenerator
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
	metrics    *Metrics
}

// NewTokenIssuer constructs a TokenIssuer. Non-positive TTLs fall back to
// DefaultAccessTokenTTL and DefaultRefreshTokenTTL.
func NewTokenIssuer(
	repo TokenRepository,
	codes *CodeStore,
	users UserResolver,
	generator TokenGenerator,
	accessTTL, refreshTTL time.Duration,
	opts ...Option,
) *TokenIssuer {
	if accessTTL <= 0 {
		accessTTL = DefaultAccessTokenTTL
	}
	if refreshTTL <= 0 {
		refreshTTL = DefaultRefreshTokenTTL
	}
	o := applyOptions(opts)
	return &TokenIssuer{
		repo:       repo,
		codes:      codes,
		users:      users,
		generator:  generator,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        o.now,
		metrics:    o.metrics,
	}
}

// GenerateTokenForUser issues a token pair for user acting through client.
func (i *TokenIssuer) GenerateTokenForUser(ctx context.Context, client *Client, user *User) (*Token, error) {
	if user == nil || user.ID == "" {
		return nil, logger.LogError("user is required")
	}
	return i.mint(ctx, client, user.ID, GrantDirect)
}

// GenerateTokenForClient issues a token pair bound to the client's own user,
// for the client-credentials grant.
func (i *TokenIssuer) GenerateTokenForClient(ctx context.Context, client *Client) (*Token, error) {
	if client == nil || client.ID == "" {
		return nil, logger.LogError("client is required")
	}
	if client.UserID == "" {
		return nil, ErrClientHasNoUser
	}
	return i.mint(ctx, client, client.UserID, GrantClientCredentials)
}

// GenerateTokenFromCode exchanges an authorization code for a token pair.
// Errors from consuming the code are returned unchanged.
func (i *TokenIssuer) GenerateTokenFromCode(ctx context.Context, client *Client, code string) (*Token, error) {
	if i.codes == nil || i.users == nil {
		return nil, logger.LogError("token issuer misconfigured: code exchange unavailable")
	}

	record, err := i.codes.ConsumeCode(ctx, client, code)
	if err != nil {
		return nil, err
	}

	user, err := i.users.FindUserByID(ctx, record.UserID)
	if err != nil {
		return nil, err
	}

	return i.mint(ctx, client, user.ID, GrantAuthorizationCode)
}

// GetTokenByAccessToken returns the token whose access token matches and has
// not yet expired. Unknown and expired tokens both yield ErrTokenNotFound.
func (i *TokenIssuer) GetTokenByAccessToken(ctx context.Context, accessToken string) (*Token, error) {
	if strings.TrimSpace(accessToken) == "" {
		i.metrics.tokenLookup("not_found")
		return nil, ErrTokenNotFound
	}

	token, err := i.repo.GetTokenByAccessToken(ctx, accessToken)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			i.metrics.tokenLookup("not_found")
		} else {
			i.metrics.tokenLookup("error")
		}
		return nil, err
	}

	if !i.now().Before(token.AccessTokenExpiresAt) {
		i.metrics.tokenLookup("expired")
		return nil, ErrTokenNotFound
	}

	i.metrics.tokenLookup("ok")
	return token, nil
}

func (i *TokenIssuer) mint(ctx context.Context, client *Client, userID, grant string) (*Token, error) {
	if client == nil || client.ID == "" {
		return nil, logger.LogError("client is required")
	}

	accessValue, err := i.generator.Generate()
	if err != nil {
		return nil, logger.LogErr(fmt.Errorf("generate access token: %w", err))
	}
	refreshValue, err := i.generator.Generate()
	if err != nil {
		return nil, logger.LogErr(fmt.Errorf("generate refresh token: %w", err))
	}
	if accessValue == refreshValue {
		return nil, logger.LogError("token generator returned identical access and refresh values")
	}

	now := dbTime(i.now())
	token := &Token{
		ClientID:              client.ID,
		UserID:                userID,
		AccessToken:           accessValue,
		RefreshToken:          refreshValue,
		TokenType:             TokenTypeBearer,
		CreatedAt:             now,
		AccessTokenExpiresAt:  now.Add(i.accessTTL),
		RefreshTokenExpiresAt: now.Add(i.refreshTTL),
	}

	if err := i.repo.InsertToken(ctx, token); err != nil {
		return nil, err
	}

	i.metrics.tokenIssued(grant)
	logger.Debug("issued %s token for client %s user %s", grant, client.ID, userID)
	return token, nil
}

func (s *Store) InsertToken(ctx context.Context, token *Token) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tokens (
			client_id,
			access_token,
			refresh_token,
			user_id,
			created,
			access_token_expires,
			refresh_token_expires
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		token.ClientID,
		token.AccessToken,
		token.RefreshToken,
		token.UserID,
		token.CreatedAt,
		token.AccessTokenExpiresAt,
		token.RefreshTokenExpiresAt,
	)
	if err != nil {
		return logger.LogErr(fmt.Errorf("insert token for client %s user %s: %w", token.ClientID, token.UserID, err))
	}
	return nil
}

func (s *Store) GetTokenByAccessToken(ctx context.Context, accessToken string) (*Token, error) {
	token := Token{TokenType: TokenTypeBearer}
	err := s.db.QueryRowContext(ctx, `
		SELECT client_id, access_token, refresh_token, user_id, created, access_token_expires, refresh_token_expires
		FROM tokens
		WHERE access_token = ?
	`, accessToken).Scan(
		&token.ClientID,
		&token.AccessToken,
		&token.RefreshToken,
		&token.UserID,
		&token.CreatedAt,
		&token.AccessTokenExpiresAt,
		&token.RefreshTokenExpiresAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTokenNotFound
		}
		return nil, logger.LogErr(fmt.Errorf("query access token: %w", err))
	}

	token.CreatedAt = token.CreatedAt.UTC()
	token.AccessTokenExpiresAt = token.AccessTokenExpiresAt.UTC()
	token.RefreshTokenExpiresAt = token.RefreshTokenExpiresAt.UTC()
	return &token, nil
}
