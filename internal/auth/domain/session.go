package domain

import "time"

// Session end reasons recorded when a session stops being active.
const (
	EndReasonSuperseded      = "superseded"
	EndReasonLogout          = "user_logout"
	EndReasonLogoutAll       = "logout_all_devices"
	EndReasonPasswordChanged = "password_changed"
	EndReasonDeviceMismatch  = "device_fingerprint_mismatch"
	EndReasonTabKeyMismatch  = "tab_key_mismatch"
	EndReasonTokenTheft      = "token_theft_detected"
)

// Session models one authenticated login instance. At most one session per
// user has IsActive set; a new login supersedes all prior active sessions.
type Session struct {
	ID     string // globally unique, generated at login
	UserID string

	// TokenID identifies the one token issued for this session, so logout
	// by token id can locate its session row.
	TokenID string

	// TabSessionKey is the secondary secret scoping the session's token to
	// one browser tab. Rotated when a new tab requests its own key.
	TabSessionKey string

	// DeviceFingerprint is derived from the login request's network/client
	// metadata and must match on every subsequent request.
	DeviceFingerprint string

	IPAddress string
	UserAgent string

	CreatedAt time.Time
	ExpiresAt time.Time

	IsActive  bool
	EndedAt   *time.Time
	EndReason string
}

// Expired reports whether the session is past its TTL at the given time.
func (s Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
