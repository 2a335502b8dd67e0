package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/taskdeck/taskdeck/internal/auth/service"
	"github.com/taskdeck/taskdeck/pkg/httpx"
	"github.com/taskdeck/taskdeck/pkg/slogx"
)

// AuthnMiddleware validates the bearer token against live session state and
// injects the authenticated identity into the request context. Rejections
// come back as 401 with the rejection reason; store faults as 500. The
// authenticator applies its remediations before the response is written, so
// a poisoned session is already dead by the time the attacker sees the 401.
func AuthnMiddleware(a *service.Authenticator) httpx.Middleware {
	return authnMiddleware(a, false)
}

// AuthnSkipTabMiddleware is AuthnMiddleware without the tab binding check.
// Only the tab session refresh endpoint uses it, because a freshly opened
// tab holds a token but no tab key yet.
func AuthnSkipTabMiddleware(a *service.Authenticator) httpx.Middleware {
	return authnMiddleware(a, true)
}

func authnMiddleware(a *service.Authenticator, skipTabCheck bool) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			token, ok := bearerToken(r)
			if !ok {
				writeBearerError(w, "missing_token", "missing bearer token")
				return
			}

			res, err := a.Authenticate(ctx, service.Request{
				Token:         token,
				IP:            httpx.ClientIP(r),
				UserAgent:     r.UserAgent(),
				TabSessionKey: r.Header.Get(HeaderTabSessionKey),
				SkipTabCheck:  skipTabCheck,
			})
			if err != nil {
				var rej *service.Rejection
				if errors.As(err, &rej) {
					writeBearerError(w, string(rej.Reason), "token validation failed")
					return
				}
				slogx.FromContext(ctx).Error("authentication fault", "error", err)
				httpx.WriteError(w, http.StatusInternalServerError,
					"server_error", "An internal error occurred")
				return
			}

			ctx = httpx.WithAuth(ctx, res.UserID, res.SessionID, res.TokenID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	authz := r.Header.Get("Authorization")
	if authz == "" || !strings.HasPrefix(authz, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authz, "Bearer"))
	return token, token != ""
}

// RFC 6750-compliant error response for bearer auth. The reason goes into
// the machine-readable error code so clients can distinguish an expired
// token (re-login) from a poisoned session (alarm).
func writeBearerError(w http.ResponseWriter, code, desc string) {
	w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token", error_description="`+desc+`"`)
	httpx.WriteError(w, http.StatusUnauthorized, code, desc)
}
