package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/taskdeck/taskdeck/internal/auth/service"
	"github.com/taskdeck/taskdeck/pkg/httpx"
	"github.com/taskdeck/taskdeck/pkg/slogx"
)

// HeaderTabSessionKey carries the tab-scoped secret on every authenticated
// request. The name is part of the public API contract with web clients.
const HeaderTabSessionKey = "X-Tab-Session-Key"

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken   string    `json:"access_token"`
	TokenType     string    `json:"token_type"`
	ExpiresAt     time.Time `json:"expires_at"`
	SessionID     string    `json:"session_id"`
	TabSessionKey string    `json:"tab_session_key"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type tabSessionResponse struct {
	TabSessionKey string `json:"tab_session_key"`
}

type userResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

type sessionResponse struct {
	ID        string    `json:"id"`
	IPAddress string    `json:"ip_address"`
	UserAgent string    `json:"user_agent"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Current   bool      `json:"current"`
}

type securityEventResponse struct {
	Kind      string    `json:"kind"`
	Detail    string    `json:"detail"`
	IPAddress string    `json:"ip_address"`
	CreatedAt time.Time `json:"created_at"`
}

// writeServiceError maps service-layer errors onto HTTP status codes.
// Anything unrecognised is a server fault, logged and reported as 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var policyErr *service.PasswordPolicyError

	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		httpx.WriteError(w, http.StatusUnauthorized,
			"invalid_credentials", "Invalid email or password")
	case errors.Is(err, service.ErrEmailTaken):
		httpx.WriteError(w, http.StatusConflict,
			"email_taken", "An account with this email already exists")
	case errors.Is(err, service.ErrInvalidEmail):
		httpx.WriteError(w, http.StatusBadRequest,
			"invalid_request", "Email address is not valid")
	case errors.Is(err, service.ErrInvalidName):
		httpx.WriteError(w, http.StatusBadRequest,
			"invalid_request", "Name must be between 1 and 100 characters")
	case errors.Is(err, service.ErrPasswordReuse):
		httpx.WriteError(w, http.StatusBadRequest,
			"password_reuse", "New password must differ from the current one")
	case errors.As(err, &policyErr):
		httpx.WriteJSON(w, http.StatusBadRequest, map[string]any{
			"error":             "weak_password",
			"error_description": "Password does not meet the policy",
			"violations":        policyErr.Violations,
		})
	case errors.Is(err, service.ErrUserNotFound), errors.Is(err, service.ErrSessionNotFound):
		httpx.WriteError(w, http.StatusNotFound,
			"not_found", "The referenced resource does not exist")
	default:
		slogx.FromContext(r.Context()).Error("request failed", "error", err)
		httpx.WriteError(w, http.StatusInternalServerError,
			"server_error", "An internal error occurred")
	}
}
