package http

import (
	"net/http"

	"github.com/taskdeck/taskdeck/internal/auth/service"
	"github.com/taskdeck/taskdeck/pkg/httpx"
)

// TabSessionHandler issues a fresh tab session key for the caller's session.
// Registered behind the skip-tab authn variant: the requesting tab holds a
// valid token but no key yet. The new key is persisted on the session, so
// it is the only key accepted from then on.
type TabSessionHandler struct {
	Authority *service.SessionAuthority
}

func (h *TabSessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tabKey, err := h.Authority.RotateTabKey(ctx, httpx.SessionIDFromContext(ctx))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, tabSessionResponse{TabSessionKey: tabKey})
}
