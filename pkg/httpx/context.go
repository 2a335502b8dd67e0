package httpx

import "context"

type ctxKey string

const (
	CtxKeyUserID    ctxKey = "user_id"
	CtxKeySessionID ctxKey = "session_id"
	CtxKeyTokenID   ctxKey = "token_id"
)

// WithAuth injects the authenticated identity into the request context.
func WithAuth(ctx context.Context, userID, sessionID, tokenID string) context.Context {
	ctx = context.WithValue(ctx, CtxKeyUserID, userID)
	ctx = context.WithValue(ctx, CtxKeySessionID, sessionID)
	return context.WithValue(ctx, CtxKeyTokenID, tokenID)
}

// UserIDFromContext returns the authenticated user id, or "" when the
// request did not pass authentication middleware.
func UserIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(CtxKeyUserID).(string); ok {
		return v
	}
	return ""
}

// SessionIDFromContext returns the session id the presented token is bound to.
func SessionIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(CtxKeySessionID).(string); ok {
		return v
	}
	return ""
}

// TokenIDFromContext returns the id of the presented token.
func TokenIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(CtxKeyTokenID).(string); ok {
		return v
	}
	return ""
}
