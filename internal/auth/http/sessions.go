package http

import (
	"net/http"

	"github.com/taskdeck/taskdeck/internal/auth/service"
	"github.com/taskdeck/taskdeck/internal/auth/store"
	"github.com/taskdeck/taskdeck/pkg/httpx"
)

// SessionsHandler lists the caller's active sessions for the security
// dashboard. Under the single-session policy this holds at most one entry.
type SessionsHandler struct {
	Authority *service.SessionAuthority
}

func (h *SessionsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	current := httpx.SessionIDFromContext(ctx)

	sessions, err := h.Authority.ListActiveSessions(ctx, httpx.UserIDFromContext(ctx), 50)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	out := make([]sessionResponse, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, sessionResponse{
			ID:        s.ID,
			IPAddress: s.IPAddress,
			UserAgent: s.UserAgent,
			CreatedAt: s.CreatedAt,
			ExpiresAt: s.ExpiresAt,
			Current:   s.ID == current,
		})
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{"sessions": out})
}

// SecurityEventsHandler lists the caller's recent security events.
type SecurityEventsHandler struct {
	Store store.Store
}

func (h *SecurityEventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	events, err := h.Store.SecurityEvents().ListEventsForUser(ctx, httpx.UserIDFromContext(ctx), 100)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	out := make([]securityEventResponse, 0, len(events))
	for _, ev := range events {
		out = append(out, securityEventResponse{
			Kind:      ev.Kind,
			Detail:    ev.Detail,
			IPAddress: ev.IPAddress,
			CreatedAt: ev.CreatedAt,
		})
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{"events": out})
}
