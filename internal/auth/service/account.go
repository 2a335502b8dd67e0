package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/taskdeck/taskdeck/internal/auth/domain"
	"github.com/taskdeck/taskdeck/internal/auth/metrics"
	"github.com/taskdeck/taskdeck/internal/auth/store"
	"github.com/taskdeck/taskdeck/pkg/cryptox"
	"github.com/taskdeck/taskdeck/pkg/idx"
	"github.com/taskdeck/taskdeck/pkg/slogx"
)

var (
	// ErrInvalidCredentials is returned for a wrong email or password. The
	// two cases are deliberately indistinguishable to callers.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrEmailTaken is returned when registering an email that already has
	// an account.
	ErrEmailTaken = errors.New("email already registered")
	// ErrInvalidEmail is returned for an email that does not parse.
	ErrInvalidEmail = errors.New("invalid email address")
	// ErrInvalidName is returned for an empty or overlong display name.
	ErrInvalidName = errors.New("invalid name")
	// ErrPasswordReuse is returned when a password change supplies the
	// current password as the new one.
	ErrPasswordReuse = errors.New("new password must differ from the current one")
)

// PasswordPolicyError lists every policy rule a candidate password violated,
// so clients can show them all at once.
type PasswordPolicyError struct {
	Violations []string
}

func (e *PasswordPolicyError) Error() string {
	return "password rejected: " + strings.Join(e.Violations, "; ")
}

const maxNameLength = 100

// AccountService owns user lifecycle: registration, credential verification
// and password changes. Session fallout of a password change (revoking every
// outstanding token) is delegated to the SessionAuthority.
type AccountService struct {
	Store     store.Store
	Authority *SessionAuthority
}

// Register creates a new member account. The password must satisfy the
// policy; the email must be unique. Token version starts at 1, so the first
// issued token is valid immediately.
func (s *AccountService) Register(ctx context.Context, name, email, password string) (domain.User, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > maxNameLength {
		return domain.User{}, ErrInvalidName
	}

	email, err := normalizeEmail(email)
	if err != nil {
		return domain.User{}, err
	}

	if violations := cryptox.ValidatePassword(password); len(violations) > 0 {
		return domain.User{}, &PasswordPolicyError{Violations: violations}
	}

	hash, err := cryptox.HashPassword(password)
	if err != nil {
		return domain.User{}, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now().UTC()
	user := domain.User{
		ID:           idx.New().String(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         domain.RoleMember,
		TokenVersion: 1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.Store.Users().CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.User{}, ErrEmailTaken
		}
		return domain.User{}, fmt.Errorf("failed to create user: %w", err)
	}

	slogx.FromContext(ctx).Info("user registered", "user_id", user.ID)
	return user, nil
}

// VerifyCredentials checks an email/password pair and returns the matching
// user. Unknown email and wrong password both come back as
// ErrInvalidCredentials.
func (s *AccountService) VerifyCredentials(ctx context.Context, email, password string) (domain.User, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return domain.User{}, ErrInvalidCredentials
	}

	user, err := s.Store.Users().GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Burn comparable time so a missing account is not
			// distinguishable by response latency.
			_ = cryptox.VerifyPassword(password, dummyHash())
			return domain.User{}, ErrInvalidCredentials
		}
		return domain.User{}, fmt.Errorf("failed to load user: %w", err)
	}

	if err := cryptox.VerifyPassword(password, user.PasswordHash); err != nil {
		if errors.Is(err, cryptox.ErrPasswordMismatch) {
			return domain.User{}, ErrInvalidCredentials
		}
		return domain.User{}, fmt.Errorf("failed to verify password: %w", err)
	}

	return user, nil
}

// ChangePassword verifies the current password, enforces the policy on the
// new one and stores the new hash. Every outstanding token of the user is
// then revoked, so a stolen token does not survive a password change.
func (s *AccountService) ChangePassword(ctx context.Context, userID, current, next, ip, userAgent string) error {
	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to load user: %w", err)
	}

	if err := cryptox.VerifyPassword(current, user.PasswordHash); err != nil {
		if errors.Is(err, cryptox.ErrPasswordMismatch) {
			return ErrInvalidCredentials
		}
		return fmt.Errorf("failed to verify password: %w", err)
	}

	if next == current {
		return ErrPasswordReuse
	}
	if violations := cryptox.ValidatePassword(next); len(violations) > 0 {
		return &PasswordPolicyError{Violations: violations}
	}

	hash, err := cryptox.HashPassword(next)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now().UTC()
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Users().UpdatePasswordHash(ctx, userID, hash); err != nil {
			return fmt.Errorf("failed to update password: %w", err)
		}
		return tx.SecurityEvents().InsertEvent(ctx, domain.SecurityEvent{
			ID:        idx.New().String(),
			UserID:    userID,
			Kind:      domain.EventPasswordChanged,
			Detail:    "password changed",
			IPAddress: ip,
			UserAgent: userAgent,
			CreatedAt: now,
		})
	})
	if err != nil {
		return err
	}

	metrics.SecurityEvents.WithLabelValues(domain.EventPasswordChanged).Inc()

	if err := s.Authority.RevokeAll(ctx, userID, domain.EndReasonPasswordChanged, ip, userAgent); err != nil {
		return fmt.Errorf("password changed but failed to revoke sessions: %w", err)
	}

	slogx.FromContext(ctx).Info("password changed", "user_id", userID)
	return nil
}

var (
	dummyHashOnce  sync.Once
	dummyHashValue string
)

// dummyHash is hashed on first use rather than at init so the pepper path is
// already configured by then.
func dummyHash() string {
	dummyHashOnce.Do(func() {
		dummyHashValue, _ = cryptox.HashPassword("timing-equalizer")
	})
	return dummyHashValue
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrInvalidEmail
	}
	return email, nil
}
