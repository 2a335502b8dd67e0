package domain

import "time"

// Security event kinds. Critical kinds indicate an active attack signal and
// always accompany a remediation (session deactivated, token blacklisted).
const (
	EventLogin           = "login"
	EventLogout          = "logout"
	EventRevokeAll       = "revoke_all"
	EventSessionHijack   = "session_hijack_attempt"
	EventDeviceMismatch  = "device_mismatch"
	EventTabKeyMismatch  = "tab_key_mismatch"
	EventPasswordChanged = "password_changed"
)

// SecurityEvent is one row of the persisted audit trail. Events are pruned
// after a retention window (30 days in the default config).
type SecurityEvent struct {
	ID        string
	UserID    string
	Kind      string
	Detail    string
	IPAddress string
	UserAgent string
	CreatedAt time.Time
}
