package http

import (
	"encoding/json"
	"net/http"

	"github.com/taskdeck/taskdeck/internal/auth/service"
	"github.com/taskdeck/taskdeck/pkg/httpx"
)

// ChangePasswordHandler updates the caller's password. Every outstanding
// token dies with it, including the one used to make this request, so the
// client must log in again afterwards.
type ChangePasswordHandler struct {
	Accounts *service.AccountService
}

func (h *ChangePasswordHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req changePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}
	if req.CurrentPassword == "" || req.NewPassword == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "current_password and new_password are required")
		return
	}

	err := h.Accounts.ChangePassword(ctx,
		httpx.UserIDFromContext(ctx),
		req.CurrentPassword, req.NewPassword,
		httpx.ClientIP(r), r.UserAgent(),
	)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.NoCache(w)
	w.WriteHeader(http.StatusNoContent)
}
