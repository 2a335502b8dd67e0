package domain

import "time"

// BlacklistEntry records a token revoked before its natural expiry (logout,
// detected compromise). Entries are pruned once the token would have expired
// anyway.
type BlacklistEntry struct {
	TokenID       string
	UserID        string
	BlacklistedAt time.Time
	Reason        string
	ExpiresAt     time.Time
}
