package auth

import "time"

// TokenTypeBearer is the token_type reported for every issued token.
const TokenTypeBearer = "bearer"

const (
	DefaultCodeTTL         = 10 * time.Minute
	DefaultAccessTokenTTL  = 10 * time.Minute
	DefaultRefreshTokenTTL = time.Hour
)

// Client represents an OAuth client application registered with the authorization server.
type Client struct {
	ID         string
	ClientID   string
	SecretHash string
	// UserID is the client's own identity for the client-credentials grant.
	// Empty when the client has no associated user.
	UserID string
}

// User is the resource owner. The token core only relies on ID.
type User struct {
	ID       string
	Username string
	Email    string
}

// AuthorizationCode encapsulates a persisted authorization code grant.
type AuthorizationCode struct {
	ID        string
	ClientID  string
	UserID    string
	Code      string
	CreatedAt time.Time
}

// ExpiredAt reports whether the code is past its lifetime at now.
func (c *AuthorizationCode) ExpiredAt(now time.Time, ttl time.Duration) bool {
	return now.After(c.CreatedAt.Add(ttl))
}

// Token represents an issued access/refresh token pair.
type Token struct {
	ClientID              string
	UserID                string
	AccessToken           string
	RefreshToken          string
	TokenType             string
	CreatedAt             time.Time
	AccessTokenExpiresAt  time.Time
	RefreshTokenExpiresAt time.Time
}
