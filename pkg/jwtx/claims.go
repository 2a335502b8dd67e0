package jwtx

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTokenTTL is the default bearer token lifetime. The session row
// created at login shares the same expiry.
const DefaultTokenTTL = 24 * time.Hour

// Claims are the session-binding claims carried by a bearer token. A decoded
// token is never trusted alone: the authenticator cross-checks every binding
// claim against live session and user state.
type Claims struct {
	jwt.RegisteredClaims

	// SID is the session this token belongs to. A token without a session
	// binding is rejected outright.
	SID string `json:"sid,omitempty"`

	// TabKey scopes the token to one browser tab/window. Clients echo it
	// back in the X-Tab-Session-Key header.
	TabKey string `json:"tab,omitempty"`

	// TokenVersion snapshots the user's token_version at issue time.
	// A mismatch against the stored version means the token was mass-revoked.
	TokenVersion int `json:"ver"`

	// Fingerprint is the device fingerprint computed at login.
	Fingerprint string `json:"dfp,omitempty"`
}

// TokenID returns the jti claim, the identifier the blacklist keys on.
func (c Claims) TokenID() string { return c.ID }

// UserID returns the sub claim.
func (c Claims) UserID() string { return c.Subject }

// NewSessionClaims builds the claims for a freshly created session.
func NewSessionClaims(
	userID, sessionID, tabKey, tokenID string,
	tokenVersion int,
	fingerprint string,
	issuer string,
	ttl time.Duration,
	now time.Time,
) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        tokenID,
		},
		SID:          sessionID,
		TabKey:       tabKey,
		TokenVersion: tokenVersion,
		Fingerprint:  fingerprint,
	}
}
