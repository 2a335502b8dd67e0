package http

import (
	"encoding/json"
	"net/http"

	"github.com/taskdeck/taskdeck/internal/auth/service"
	"github.com/taskdeck/taskdeck/pkg/httpx"
)

type LoginHandler struct {
	Accounts  *service.AccountService
	Authority *service.SessionAuthority
}

func (h *LoginHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}
	if req.Email == "" || req.Password == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "email and password are required")
		return
	}

	user, err := h.Accounts.VerifyCredentials(ctx, req.Email, req.Password)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	res, err := h.Authority.Login(ctx, user.ID, httpx.ClientIP(r), r.UserAgent())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, loginResponse{
		AccessToken:   res.Token,
		TokenType:     "Bearer",
		ExpiresAt:     res.ExpiresAt,
		SessionID:     res.SessionID,
		TabSessionKey: res.TabSessionKey,
	})
}
