package http

import (
	"net/http"

	"github.com/taskdeck/taskdeck/internal/auth/service"
	"github.com/taskdeck/taskdeck/pkg/httpx"
)

// LogoutHandler revokes the presented token and ends its session.
type LogoutHandler struct {
	Authority *service.SessionAuthority
}

func (h *LogoutHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	err := h.Authority.Logout(ctx,
		httpx.UserIDFromContext(ctx),
		httpx.TokenIDFromContext(ctx),
		httpx.ClientIP(r), r.UserAgent(),
	)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.NoCache(w)
	w.WriteHeader(http.StatusNoContent)
}

// LogoutAllHandler invalidates every outstanding token of the caller.
type LogoutAllHandler struct {
	Authority *service.SessionAuthority
}

func (h *LogoutAllHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	err := h.Authority.RevokeAll(ctx,
		httpx.UserIDFromContext(ctx), "",
		httpx.ClientIP(r), r.UserAgent(),
	)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.NoCache(w)
	w.WriteHeader(http.StatusNoContent)
}
