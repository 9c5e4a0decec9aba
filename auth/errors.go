package auth

import (
	"errors"
	"fmt"
)

// Error classes surfaced by the token core. Callers match them with
// errors.Is and map them to protocol responses.
var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidRequest     = errors.New("invalid request")
	ErrUnauthorizedClient = errors.New("unauthorized client")
)

var (
	ErrClientNotFound = fmt.Errorf("client %w", ErrNotFound)
	ErrUserNotFound   = fmt.Errorf("user %w", ErrNotFound)
	ErrTokenNotFound  = fmt.Errorf("access token %w", ErrNotFound)

	ErrCodeNotRecognized = fmt.Errorf("%w: code not recognized", ErrInvalidRequest)
	ErrCodeExpired       = fmt.Errorf("%w: code expired", ErrInvalidRequest)

	ErrClientMismatch  = fmt.Errorf("%w: client mismatch", ErrUnauthorizedClient)
	ErrClientHasNoUser = fmt.Errorf("%w: client has no associated user", ErrUnauthorizedClient)

	// ErrInvalidCredentials indicates the supplied username/password combination is invalid.
	ErrInvalidCredentials = errors.New("invalid credentials")
)
