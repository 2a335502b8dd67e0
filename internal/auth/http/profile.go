package http

import (
	"errors"
	"net/http"

	"github.com/taskdeck/taskdeck/internal/auth/service"
	"github.com/taskdeck/taskdeck/internal/auth/store"
	"github.com/taskdeck/taskdeck/pkg/httpx"
)

// ProfileHandler returns the authenticated user's account details.
type ProfileHandler struct {
	Store store.Store
}

func (h *ProfileHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, err := h.Store.Users().GetUserByID(ctx, httpx.UserIDFromContext(ctx))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeServiceError(w, r, service.ErrUserNotFound)
			return
		}
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, userResponse{
		ID:        user.ID,
		Name:      user.Name,
		Email:     user.Email,
		Role:      user.Role,
		CreatedAt: user.CreatedAt,
	})
}
