package auth

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
)

type authorizationRequest struct {
	ResponseType   string
	ClientID       string
	RedirectURI    *url.URL
	RawRedirectURI string
	State          string
}

type authorizationError struct {
	Code        string
	Description string
	// RedirectURI is set once the redirect target has been validated for the
	// client; only then may the error be reported by redirecting.
	RedirectURI *url.URL
	State       string
	Cause       error
}

func (e *authorizationError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Description)
	}
	return e.Code
}

func (e *authorizationError) Unwrap() error {
	return e.Cause
}

func newAuthorizationError(code, description string, cause error) *authorizationError {
	return &authorizationError{
		Code:        code,
		Description: description,
		Cause:       cause,
	}
}

// processHTTPAuthorizationRequest extracts the authorization request
// parameters. response_type is only checked later, after the redirect URI has
// been validated, so that an unsupported type can be reported to the client.
func processHTTPAuthorizationRequest(r *http.Request) (*authorizationRequest, error) {
	if r.Method != http.MethodGet {
		return nil, newAuthorizationError("invalid_request", "authorization request must use GET", errors.New("invalid_method"))
	}

	if err := r.ParseForm(); err != nil {
		return nil, newAuthorizationError("invalid_request", "unable to parse request parameters", err)
	}

	clientID := r.Form.Get("client_id")
	if clientID == "" {
		return nil, newAuthorizationError("invalid_request", "client_id is required", nil)
	}

	rawRedirectURI := r.Form.Get("redirect_uri")
	if rawRedirectURI == "" {
		return nil, newAuthorizationError("invalid_request", "redirect_uri is required", nil)
	}
	redirectURI, err := url.Parse(rawRedirectURI)
	if err != nil {
		return nil, newAuthorizationError("invalid_request", "redirect_uri is malformed", err)
	}
	if !redirectURI.IsAbs() {
		return nil, newAuthorizationError("invalid_request", "redirect_uri must be absolute", errors.New("invalid_redirect_uri"))
	}

	return &authorizationRequest{
		ResponseType:   r.Form.Get("response_type"),
		ClientID:       clientID,
		RedirectURI:    redirectURI,
		RawRedirectURI: rawRedirectURI,
		State:          r.Form.Get("state"),
	}, nil
}

func cloneURL(u *url.URL) *url.URL {
	if u == nil {
		return nil
	}
	clone := *u
	if u.User != nil {
		user := *u.User
		clone.User = &user
	}
	return &clone
}

func appendErrorQuery(base *url.URL, code, description, state string) *url.URL {
	redirect := cloneURL(base)
	if redirect == nil {
		return base
	}

	query := redirect.Query()
	query.Set("error", code)
	if description != "" {
		query.Set("error_description", description)
	}
	if state != "" {
		query.Set("state", state)
	}
	redirect.RawQuery = query.Encode()

	return redirect
}
