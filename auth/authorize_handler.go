package auth

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/milanbella/sa-oauth/logger"
	"github.com/milanbella/sa-oauth/session"
)

// AuthorizationHandler handles OAuth 2.0 authorization requests.
type AuthorizationHandler struct {
	store     *Store
	clients   *ClientDirectory
	codes     *CodeStore
	loginPath string
}

// NewAuthorizationHandler constructs an http.Handler that processes authorization requests.
func NewAuthorizationHandler(store *Store, clients *ClientDirectory, codes *CodeStore, loginPath string) http.Handler {
	return &AuthorizationHandler{store: store, clients: clients, codes: codes, loginPath: loginPath}
}

func (h *AuthorizationHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.store == nil || h.clients == nil || h.codes == nil {
		logger.Error(errors.New("authorization handler misconfigured: missing dependency"))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	if h.loginPath == "" {
		logger.Error(errors.New("authorization handler misconfigured: empty login path"))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	authReq, err := processHTTPAuthorizationRequest(r)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	client, err := h.clients.GetClientByClientID(r.Context(), authReq.ClientID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			h.handleError(w, r, newAuthorizationError("invalid_request", "unknown client", err))
			return
		}
		h.handleError(w, r, newAuthorizationError("server_error", "unable to load client", err))
		return
	}

	registered, err := h.clients.ValidateRedirectURI(r.Context(), client, authReq.RawRedirectURI)
	if err != nil {
		h.handleError(w, r, newAuthorizationError("server_error", "unable to validate redirect_uri", err))
		return
	}
	if !registered {
		h.handleError(w, r, newAuthorizationError("invalid_request", "redirect_uri is not registered for this client", nil))
		return
	}

	redirectErr := func(code, description string, cause error) error {
		authErr := newAuthorizationError(code, description, cause)
		authErr.RedirectURI = authReq.RedirectURI
		authErr.State = authReq.State
		return authErr
	}

	if authReq.ResponseType == "" {
		h.handleError(w, r, redirectErr("invalid_request", "response_type is required", nil))
		return
	}
	if authReq.ResponseType != "code" {
		h.handleError(w, r, redirectErr("unsupported_response_type", `response_type must be "code"`, nil))
		return
	}

	sessionInfo, ok := session.FromContext(r.Context())
	if !ok || sessionInfo.ID == "" {
		h.handleError(w, r, redirectErr("server_error", "internal error", errors.New("session information missing in context")))
		return
	}

	userID, err := h.store.UserIDForSession(r.Context(), sessionInfo.ID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			h.redirectToLogin(w, r)
			return
		}
		h.handleError(w, r, redirectErr("server_error", "internal error", err))
		return
	}

	user, err := h.store.FindUserByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			h.redirectToLogin(w, r)
			return
		}
		h.handleError(w, r, redirectErr("server_error", "internal error", err))
		return
	}

	code, err := h.codes.GenerateCodeForUser(r.Context(), client, user)
	if err != nil {
		h.handleError(w, r, redirectErr("server_error", "internal error", err))
		return
	}

	successRedirect := cloneURL(authReq.RedirectURI)
	query := successRedirect.Query()
	query.Set("code", code)
	if authReq.State != "" {
		query.Set("state", authReq.State)
	}
	successRedirect.RawQuery = query.Encode()

	http.Redirect(w, r, successRedirect.String(), http.StatusFound)
}

func (h *AuthorizationHandler) redirectToLogin(w http.ResponseWriter, r *http.Request) {
	target := url.URL{Path: h.loginPath}
	query := target.Query()
	query.Set("return_to", r.URL.RequestURI())
	target.RawQuery = query.Encode()

	http.Redirect(w, r, target.String(), http.StatusFound)
}

func (h *AuthorizationHandler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	var authErr *authorizationError
	if errors.As(err, &authErr) && authErr != nil {
		if authErr.Code == "server_error" {
			logger.Error(fmt.Errorf("authorization request failed: %w", authErr))
		}

		if authErr.RedirectURI != nil {
			redirect := appendErrorQuery(authErr.RedirectURI, authErr.Code, authErr.Description, authErr.State)
			http.Redirect(w, r, redirect.String(), http.StatusFound)
			return
		}

		status := http.StatusBadRequest
		if authErr.Code == "server_error" {
			status = http.StatusInternalServerError
		}
		http.Error(w, authErr.Error(), status)
		return
	}

	logger.Error(err)
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}
