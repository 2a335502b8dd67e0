package domain

import "time"

// Roles assignable to users. Registration always produces a member; admin is
// granted out-of-band.
const (
	RoleMember = "member"
	RoleAdmin  = "admin"
)

type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string // argon2 encoded
	Role         string

	// TokenVersion is a per-user monotonic counter baked into every issued
	// token. Incrementing it invalidates all outstanding tokens at once.
	// Starts at 1.
	TokenVersion int

	CreatedAt time.Time
	UpdatedAt time.Time
}
