package store

import (
	"context"
	"errors"
	"time"

	"github.com/taskdeck/taskdeck/internal/auth/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (sqlite,
// postgres) implement this. It exposes sub-repositories to keep concerns tidy
// and testable, and forces multi-step state transitions through WithTx so
// single-session enforcement cannot race a concurrent login.
type Store interface {
	Users() Users
	Sessions() Sessions
	Blacklist() Blacklist
	SecurityEvents() SecurityEvents

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes fn within a transaction. If fn returns an error the
	// transaction is rolled back, otherwise it is committed. This is the
	// recommended way to handle transactions.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Users interface {
	// GetUserByID returns a user by id, including the current token_version.
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByEmail is used during login and duplicate-email checks.
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)

	// CreateUser inserts a new user (id is provided by the app via ULID).
	// Returns ErrAlreadyExists when the email is taken.
	CreateUser(ctx context.Context, u domain.User) error

	// UpdatePasswordHash sets the password_hash and bumps updated_at.
	UpdatePasswordHash(ctx context.Context, userID string, newHash string) error

	// IncrementTokenVersion bumps token_version by 1 and returns the new
	// value. Every token issued against the old version dies on its next
	// validation.
	IncrementTokenVersion(ctx context.Context, userID string) (int, error)
}

type Sessions interface {
	// CreateSession inserts a new session row.
	CreateSession(ctx context.Context, s domain.Session) error

	// GetSessionByID returns a session regardless of state; the caller
	// inspects IsActive and ownership.
	GetSessionByID(ctx context.Context, id string) (domain.Session, error)

	// GetSessionByTokenID locates the session a token was issued for
	// (logout path).
	GetSessionByTokenID(ctx context.Context, tokenID string) (domain.Session, error)

	// ListActiveSessions returns the user's active, unexpired sessions,
	// newest first, for the security dashboard.
	ListActiveSessions(ctx context.Context, userID string, limit int) ([]domain.Session, error)

	// DeactivateSession ends a single session with the given reason.
	// No-op when the session is already inactive.
	DeactivateSession(ctx context.Context, sessionID, reason string, now time.Time) error

	// DeactivateUserSessions ends every active session of a user and
	// returns how many were ended. This is the single-session enforcement
	// step at login and the bulk step of revoke-all.
	DeactivateUserSessions(ctx context.Context, userID, reason string, now time.Time) (int64, error)

	// DeactivateSessionByTokenID ends the session bound to a token id.
	// No-op when no such session exists (idempotent logout).
	DeactivateSessionByTokenID(ctx context.Context, tokenID, reason string, now time.Time) error

	// RotateTabSessionKey replaces the session's tab key (new browser tab).
	RotateTabSessionKey(ctx context.Context, sessionID, tabKey string) error

	// DeleteExpiredSessions is housekeeping for rows past expires_at.
	DeleteExpiredSessions(ctx context.Context, now time.Time) error
}

type Blacklist interface {
	// InsertEntry records a revoked token. Inserting the same token_id
	// twice is harmless (idempotent logout).
	InsertEntry(ctx context.Context, e domain.BlacklistEntry) error

	// IsBlacklisted reports whether a token id has been revoked.
	IsBlacklisted(ctx context.Context, tokenID string) (bool, error)

	// DeleteExpiredEntries is housekeeping for entries whose token would
	// have expired anyway.
	DeleteExpiredEntries(ctx context.Context, now time.Time) error
}

type SecurityEvents interface {
	// InsertEvent appends to the audit trail.
	InsertEvent(ctx context.Context, ev domain.SecurityEvent) error

	// ListEventsForUser returns a user's recent events, newest first.
	ListEventsForUser(ctx context.Context, userID string, limit int) ([]domain.SecurityEvent, error)

	// DeleteEventsBefore prunes events older than the retention cutoff.
	DeleteEventsBefore(ctx context.Context, cutoff time.Time) error
}
