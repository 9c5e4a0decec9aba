package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/milanbella/sa-oauth/logger"
)

type tokenError struct {
	code            string
	description     string
	status          int
	wwwAuthenticate bool
	cause           error
}

func (e *tokenError) Error() string {
	if e.description != "" {
		return fmt.Sprintf("%s: %s", e.code, e.description)
	}
	return e.code
}

func (e *tokenError) Unwrap() error {
	return e.cause
}

func newTokenError(code, description string, status int, wwwAuthenticate bool) *tokenError {
	return &tokenError{
		code:            code,
		description:     description,
		status:          status,
		wwwAuthenticate: wwwAuthenticate,
	}
}

var errInvalidClient = newTokenError("invalid_client", "client authentication failed", http.StatusUnauthorized, true)

// TokenHandler handles OAuth token endpoint requests.
type TokenHandler struct {
	clients *ClientDirectory
	secrets *SecretVerifier
	issuer  *TokenIssuer
}

// NewTokenHandler constructs an http.Handler for the token endpoint.
func NewTokenHandler(clients *ClientDirectory, secrets *SecretVerifier, issuer *TokenIssuer) http.Handler {
	return &TokenHandler{
		clients: clients,
		secrets: secrets,
		issuer:  issuer,
	}
}

func (h *TokenHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.clients == nil || h.secrets == nil || h.issuer == nil {
		logger.Error(errors.New("token handler misconfigured: missing dependency"))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	token, err := h.processTokenRequest(r)
	if err != nil {
		h.handleError(w, err)
		return
	}

	response := ResponseToken{
		AccessToken:  token.AccessToken,
		TokenType:    token.TokenType,
		ExpiresIn:    int64(token.AccessTokenExpiresAt.Sub(token.CreatedAt).Seconds()),
		RefreshToken: token.RefreshToken,
	}

	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	writeJSON(w, http.StatusOK, response)
}

func (h *TokenHandler) processTokenRequest(r *http.Request) (*Token, error) {
	if r.Method != http.MethodPost {
		return nil, newTokenError("invalid_request", "token endpoint requires POST", http.StatusBadRequest, false)
	}

	if err := r.ParseForm(); err != nil {
		return nil, newTokenError("invalid_request", "unable to parse request body", http.StatusBadRequest, false)
	}

	grantType := strings.TrimSpace(r.PostForm.Get("grant_type"))
	if grantType == "" {
		return nil, newTokenError("invalid_request", "grant_type is required", http.StatusBadRequest, false)
	}
	if grantType != GrantAuthorizationCode && grantType != GrantClientCredentials {
		return nil, newTokenError("unsupported_grant_type", "only authorization_code and client_credentials are supported", http.StatusBadRequest, false)
	}

	client, err := h.authenticateClient(r)
	if err != nil {
		return nil, err
	}

	var token *Token
	switch grantType {
	case GrantAuthorizationCode:
		code := strings.TrimSpace(r.PostForm.Get("code"))
		if code == "" {
			return nil, newTokenError("invalid_request", "code is required", http.StatusBadRequest, false)
		}
		token, err = h.issuer.GenerateTokenFromCode(r.Context(), client, code)
	case GrantClientCredentials:
		token, err = h.issuer.GenerateTokenForClient(r.Context(), client)
	}
	if err != nil {
		return nil, mapIssueError(err)
	}

	return token, nil
}

func (h *TokenHandler) authenticateClient(r *http.Request) (*Client, error) {
	clientID, clientSecret, hasBasic := r.BasicAuth()
	if !hasBasic {
		clientID = r.PostForm.Get("client_id")
		clientSecret = r.PostForm.Get("client_secret")
	}
	clientID = strings.TrimSpace(clientID)
	clientSecret = strings.TrimSpace(clientSecret)

	if clientID == "" || clientSecret == "" {
		return nil, errInvalidClient
	}

	client, err := h.clients.GetClientByClientID(r.Context(), clientID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, errInvalidClient
		}
		tErr := newTokenError("server_error", "unable to load client", http.StatusInternalServerError, false)
		tErr.cause = err
		return nil, tErr
	}

	if !h.secrets.ValidateSecret(client, clientSecret) {
		return nil, errInvalidClient
	}

	return client, nil
}

func mapIssueError(err error) error {
	var tErr *tokenError
	switch {
	case errors.Is(err, ErrInvalidRequest):
		tErr = newTokenError("invalid_grant", errorDetail(err), http.StatusBadRequest, false)
	case errors.Is(err, ErrUnauthorizedClient):
		tErr = newTokenError("unauthorized_client", errorDetail(err), http.StatusBadRequest, false)
	case errors.Is(err, ErrUserNotFound):
		tErr = newTokenError("invalid_grant", "resource owner no longer exists", http.StatusBadRequest, false)
	default:
		tErr = newTokenError("server_error", "unable to issue token", http.StatusInternalServerError, false)
	}
	tErr.cause = err
	return tErr
}

// errorDetail strips the error class prefix ("invalid request: code expired"
// becomes "code expired").
func errorDetail(err error) string {
	msg := err.Error()
	if i := strings.Index(msg, ": "); i >= 0 {
		return msg[i+2:]
	}
	return msg
}

func (h *TokenHandler) handleError(w http.ResponseWriter, err error) {
	var tErr *tokenError
	if errors.As(err, &tErr) && tErr != nil {
		status := tErr.status
		if status == 0 {
			status = http.StatusBadRequest
		}
		if status >= http.StatusInternalServerError {
			logger.Error(fmt.Errorf("token request failed: %s: %w", tErr.code, tErr.cause))
		}
		if tErr.wwwAuthenticate {
			w.Header().Set("WWW-Authenticate", `Basic realm="sa-auth", error="`+tErr.code+`"`)
		}

		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("Pragma", "no-cache")
		writeJSON(w, status, ResponseTokenError{Error: tErr.code, ErrorDescription: tErr.description})
		return
	}

	logger.Error(err)
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}
