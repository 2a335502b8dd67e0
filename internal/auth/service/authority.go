package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/taskdeck/taskdeck/internal/auth/domain"
	"github.com/taskdeck/taskdeck/internal/auth/metrics"
	"github.com/taskdeck/taskdeck/internal/auth/store"
	"github.com/taskdeck/taskdeck/pkg/cryptox"
	"github.com/taskdeck/taskdeck/pkg/idx"
	"github.com/taskdeck/taskdeck/pkg/jwtx"
	"github.com/taskdeck/taskdeck/pkg/slogx"
)

var (
	// ErrUserNotFound is returned when the referenced user does not exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrSessionNotFound is returned when the referenced session does not
	// exist or is no longer active.
	ErrSessionNotFound = errors.New("session not found")
)

// LoginResult carries everything a client needs after a successful login.
type LoginResult struct {
	Token         string
	TokenID       string
	SessionID     string
	TabSessionKey string
	ExpiresAt     time.Time
}

// SessionAuthority issues sessions and tokens and revokes them. It owns the
// single-session policy: creating a session always supersedes every other
// active session of the same user, inside one transaction.
type SessionAuthority struct {
	Store store.Store
	Codec *jwtx.Codec

	// TokenTTL bounds both the token and its session. Zero means
	// jwtx.DefaultTokenTTL.
	TokenTTL time.Duration

	// FingerprintMode controls device binding granularity.
	FingerprintMode cryptox.FingerprintMode
}

func (s *SessionAuthority) ttl() time.Duration {
	if s.TokenTTL <= 0 {
		return jwtx.DefaultTokenTTL
	}
	return s.TokenTTL
}

// Login creates a session for an already-authenticated user and signs a
// token bound to it. Any other active session of the user is ended with
// reason "superseded" in the same transaction that creates the new one, so
// the at-most-one-active-session invariant holds even under concurrent
// logins. Credential checking happens before this call (AccountService).
func (s *SessionAuthority) Login(ctx context.Context, userID, ip, userAgent string) (LoginResult, error) {
	now := time.Now().UTC()

	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return LoginResult{}, ErrUserNotFound
		}
		return LoginResult{}, fmt.Errorf("failed to load user: %w", err)
	}

	tabKey, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return LoginResult{}, fmt.Errorf("failed to generate tab session key: %w", err)
	}

	// Token id is a digest of the user id and issue instant, so it is
	// unguessable without being another random value to store.
	tokenID := cryptox.FingerprintToken(userID + ":" + strconv.FormatInt(now.UnixNano(), 10))
	sessionID := idx.New().String()
	fingerprint := cryptox.DeviceFingerprint(s.FingerprintMode, ip, userAgent)
	expiresAt := now.Add(s.ttl())

	var superseded int64
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		superseded, err = tx.Sessions().DeactivateUserSessions(ctx, userID, domain.EndReasonSuperseded, now)
		if err != nil {
			return fmt.Errorf("failed to supersede prior sessions: %w", err)
		}

		if err := tx.Sessions().CreateSession(ctx, domain.Session{
			ID:                sessionID,
			UserID:            userID,
			TokenID:           tokenID,
			TabSessionKey:     tabKey,
			DeviceFingerprint: fingerprint,
			IPAddress:         ip,
			UserAgent:         userAgent,
			CreatedAt:         now,
			ExpiresAt:         expiresAt,
			IsActive:          true,
		}); err != nil {
			return fmt.Errorf("failed to create session: %w", err)
		}

		return tx.SecurityEvents().InsertEvent(ctx, domain.SecurityEvent{
			ID:        idx.New().String(),
			UserID:    userID,
			Kind:      domain.EventLogin,
			Detail:    fmt.Sprintf("session %s created, %d prior session(s) superseded", sessionID, superseded),
			IPAddress: ip,
			UserAgent: userAgent,
			CreatedAt: now,
		})
	})
	if err != nil {
		return LoginResult{}, err
	}

	claims := jwtx.NewSessionClaims(
		userID, sessionID, tabKey, tokenID,
		user.TokenVersion, fingerprint,
		s.Codec.Issuer(), s.ttl(), now,
	)
	token, err := s.Codec.Encode(claims)
	if err != nil {
		return LoginResult{}, fmt.Errorf("failed to sign token: %w", err)
	}

	metrics.SecurityEvents.WithLabelValues(domain.EventLogin).Inc()
	metrics.SessionsSuperseded.Add(float64(superseded))

	slogx.FromContext(ctx).Info("session created",
		"user_id", userID,
		"session_id", sessionID,
		"superseded", superseded,
	)

	return LoginResult{
		Token:         token,
		TokenID:       tokenID,
		SessionID:     sessionID,
		TabSessionKey: tabKey,
		ExpiresAt:     expiresAt,
	}, nil
}

// Logout revokes one token and ends its session. The token's session must
// belong to the calling user. Idempotent: revoking an already-revoked token
// succeeds without recording a second event.
func (s *SessionAuthority) Logout(ctx context.Context, userID, tokenID, ip, userAgent string) error {
	now := time.Now().UTC()

	already, err := s.Store.Blacklist().IsBlacklisted(ctx, tokenID)
	if err != nil {
		return fmt.Errorf("failed to check blacklist: %w", err)
	}
	if already {
		return nil
	}

	// The session may already be gone (pruned after expiry); the token is
	// still blacklisted below. A live session owned by someone else means
	// the caller is revoking a token that was never theirs.
	sess, err := s.Store.Sessions().GetSessionByTokenID(ctx, tokenID)
	switch {
	case errors.Is(err, store.ErrNotFound):
	case err != nil:
		return fmt.Errorf("failed to load session: %w", err)
	case sess.UserID != userID:
		return ErrSessionNotFound
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Blacklist().InsertEntry(ctx, domain.BlacklistEntry{
			TokenID:       tokenID,
			UserID:        userID,
			BlacklistedAt: now,
			Reason:        domain.EndReasonLogout,
			ExpiresAt:     now.Add(s.ttl()),
		}); err != nil {
			return fmt.Errorf("failed to blacklist token: %w", err)
		}

		if err := tx.Sessions().DeactivateSessionByTokenID(ctx, tokenID, domain.EndReasonLogout, now); err != nil {
			return fmt.Errorf("failed to deactivate session: %w", err)
		}

		return tx.SecurityEvents().InsertEvent(ctx, domain.SecurityEvent{
			ID:        idx.New().String(),
			UserID:    userID,
			Kind:      domain.EventLogout,
			Detail:    "token revoked and session ended",
			IPAddress: ip,
			UserAgent: userAgent,
			CreatedAt: now,
		})
	})
	if err != nil {
		return err
	}

	metrics.SecurityEvents.WithLabelValues(domain.EventLogout).Inc()
	slogx.FromContext(ctx).Info("session ended", "user_id", userID)
	return nil
}

// RevokeAll invalidates every outstanding token of a user by bumping their
// token_version, and ends all their active sessions. Used by the explicit
// logout-everywhere endpoint and after a password change.
func (s *SessionAuthority) RevokeAll(ctx context.Context, userID, reason, ip, userAgent string) error {
	now := time.Now().UTC()
	if reason == "" {
		reason = domain.EndReasonLogoutAll
	}

	var (
		newVersion int
		ended      int64
	)
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		newVersion, err = tx.Users().IncrementTokenVersion(ctx, userID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrUserNotFound
			}
			return fmt.Errorf("failed to bump token version: %w", err)
		}

		ended, err = tx.Sessions().DeactivateUserSessions(ctx, userID, reason, now)
		if err != nil {
			return fmt.Errorf("failed to end sessions: %w", err)
		}

		return tx.SecurityEvents().InsertEvent(ctx, domain.SecurityEvent{
			ID:        idx.New().String(),
			UserID:    userID,
			Kind:      domain.EventRevokeAll,
			Detail:    fmt.Sprintf("token version now %d, %d session(s) ended (%s)", newVersion, ended, reason),
			IPAddress: ip,
			UserAgent: userAgent,
			CreatedAt: now,
		})
	})
	if err != nil {
		return err
	}

	metrics.SecurityEvents.WithLabelValues(domain.EventRevokeAll).Inc()
	slogx.FromContext(ctx).Info("all sessions revoked",
		"user_id", userID,
		"reason", reason,
		"ended", ended,
	)
	return nil
}

// ListActiveSessions returns the user's active sessions for the security
// dashboard, newest first. Under the single-session policy the list holds at
// most one entry, but the shape stays a list so the dashboard need not care.
func (s *SessionAuthority) ListActiveSessions(ctx context.Context, userID string, limit int) ([]domain.Session, error) {
	return s.Store.Sessions().ListActiveSessions(ctx, userID, limit)
}

// RotateTabKey issues a fresh tab session key for a session and persists it.
// The stored key is what validation compares against, so the previous key
// stops working: the newest tab wins, mirroring the newest-login-wins
// session policy.
func (s *SessionAuthority) RotateTabKey(ctx context.Context, sessionID string) (string, error) {
	tabKey, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return "", fmt.Errorf("failed to generate tab session key: %w", err)
	}

	if err := s.Store.Sessions().RotateTabSessionKey(ctx, sessionID, tabKey); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrSessionNotFound
		}
		return "", fmt.Errorf("failed to rotate tab session key: %w", err)
	}

	return tabKey, nil
}
