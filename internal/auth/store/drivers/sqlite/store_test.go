package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/taskdeck/taskdeck/internal/auth/domain"
	"github.com/taskdeck/taskdeck/internal/auth/store"
	"github.com/taskdeck/taskdeck/internal/auth/store/drivers/sqlite"
	"github.com/taskdeck/taskdeck/pkg/idx"
)

func newStore(t *testing.T) store.Store {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	require.NoError(t, st.ApplyMigrations())
	return st
}

func newUser(t *testing.T, st store.Store, email string) domain.User {
	t.Helper()

	now := time.Now().UTC()
	u := domain.User{
		ID:           idx.New().String(),
		Name:         "Test User",
		Email:        email,
		PasswordHash: "hash",
		Role:         domain.RoleMember,
		TokenVersion: 1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, st.Users().CreateUser(context.Background(), u))
	return u
}

func newSession(t *testing.T, st store.Store, userID, tokenID string, expiresAt time.Time) domain.Session {
	t.Helper()

	now := time.Now().UTC()
	s := domain.Session{
		ID:                idx.New().String(),
		UserID:            userID,
		TokenID:           tokenID,
		TabSessionKey:     "tab-" + tokenID,
		DeviceFingerprint: "fp",
		IPAddress:         "203.0.113.1",
		UserAgent:         "firefox",
		CreatedAt:         now,
		ExpiresAt:         expiresAt,
		IsActive:          true,
	}
	require.NoError(t, st.Sessions().CreateSession(context.Background(), s))
	return s
}

func TestUsersRepo(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)

	u := newUser(t, st, "alice@example.com")

	t.Run("get by id and email", func(t *testing.T) {
		byID, err := st.Users().GetUserByID(ctx, u.ID)
		require.NoError(t, err)
		require.Equal(t, u.Email, byID.Email)
		require.Equal(t, 1, byID.TokenVersion)

		byEmail, err := st.Users().GetUserByEmail(ctx, u.Email)
		require.NoError(t, err)
		require.Equal(t, u.ID, byEmail.ID)
	})

	t.Run("not found", func(t *testing.T) {
		_, err := st.Users().GetUserByID(ctx, "missing")
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("duplicate email", func(t *testing.T) {
		dupe := u
		dupe.ID = idx.New().String()
		err := st.Users().CreateUser(ctx, dupe)
		require.ErrorIs(t, err, store.ErrAlreadyExists)
	})

	t.Run("update password hash", func(t *testing.T) {
		require.NoError(t, st.Users().UpdatePasswordHash(ctx, u.ID, "new-hash"))
		got, err := st.Users().GetUserByID(ctx, u.ID)
		require.NoError(t, err)
		require.Equal(t, "new-hash", got.PasswordHash)

		err = st.Users().UpdatePasswordHash(ctx, "missing", "x")
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("increment token version", func(t *testing.T) {
		v, err := st.Users().IncrementTokenVersion(ctx, u.ID)
		require.NoError(t, err)
		require.Equal(t, 2, v)

		v, err = st.Users().IncrementTokenVersion(ctx, u.ID)
		require.NoError(t, err)
		require.Equal(t, 3, v)

		_, err = st.Users().IncrementTokenVersion(ctx, "missing")
		require.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestSessionsRepo(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)
	u := newUser(t, st, "alice@example.com")
	now := time.Now().UTC()

	t.Run("create and get", func(t *testing.T) {
		s := newSession(t, st, u.ID, "tok-1", now.Add(time.Hour))

		got, err := st.Sessions().GetSessionByID(ctx, s.ID)
		require.NoError(t, err)
		require.Equal(t, s.TokenID, got.TokenID)
		require.Equal(t, s.TabSessionKey, got.TabSessionKey)
		require.True(t, got.IsActive)
		require.Nil(t, got.EndedAt)

		byToken, err := st.Sessions().GetSessionByTokenID(ctx, "tok-1")
		require.NoError(t, err)
		require.Equal(t, s.ID, byToken.ID)
	})

	t.Run("list active excludes expired and inactive", func(t *testing.T) {
		expired := newSession(t, st, u.ID, "tok-expired", now.Add(-time.Hour))
		ended := newSession(t, st, u.ID, "tok-ended", now.Add(time.Hour))
		require.NoError(t, st.Sessions().DeactivateSession(ctx, ended.ID, domain.EndReasonLogout, now))

		active, err := st.Sessions().ListActiveSessions(ctx, u.ID, 10)
		require.NoError(t, err)
		for _, s := range active {
			require.NotEqual(t, expired.ID, s.ID)
			require.NotEqual(t, ended.ID, s.ID)
		}
	})

	t.Run("deactivate records reason and end time", func(t *testing.T) {
		s := newSession(t, st, u.ID, "tok-2", now.Add(time.Hour))
		require.NoError(t, st.Sessions().DeactivateSession(ctx, s.ID, domain.EndReasonDeviceMismatch, now))

		got, err := st.Sessions().GetSessionByID(ctx, s.ID)
		require.NoError(t, err)
		require.False(t, got.IsActive)
		require.Equal(t, domain.EndReasonDeviceMismatch, got.EndReason)
		require.NotNil(t, got.EndedAt)
	})

	t.Run("deactivate all for user", func(t *testing.T) {
		other := newUser(t, st, "bob@example.com")
		newSession(t, st, other.ID, "tok-bob", now.Add(time.Hour))

		n, err := st.Sessions().DeactivateUserSessions(ctx, u.ID, domain.EndReasonLogoutAll, now)
		require.NoError(t, err)
		require.Positive(t, n)

		active, err := st.Sessions().ListActiveSessions(ctx, u.ID, 10)
		require.NoError(t, err)
		require.Empty(t, active)

		bobActive, err := st.Sessions().ListActiveSessions(ctx, other.ID, 10)
		require.NoError(t, err)
		require.Len(t, bobActive, 1)
	})

	t.Run("deactivate by token id is idempotent", func(t *testing.T) {
		s := newSession(t, st, u.ID, "tok-3", now.Add(time.Hour))
		require.NoError(t, st.Sessions().DeactivateSessionByTokenID(ctx, "tok-3", domain.EndReasonLogout, now))
		require.NoError(t, st.Sessions().DeactivateSessionByTokenID(ctx, "tok-3", domain.EndReasonLogout, now))
		require.NoError(t, st.Sessions().DeactivateSessionByTokenID(ctx, "tok-never-issued", domain.EndReasonLogout, now))

		got, err := st.Sessions().GetSessionByID(ctx, s.ID)
		require.NoError(t, err)
		require.False(t, got.IsActive)
	})

	t.Run("rotate tab key", func(t *testing.T) {
		s := newSession(t, st, u.ID, "tok-4", now.Add(time.Hour))
		require.NoError(t, st.Sessions().RotateTabSessionKey(ctx, s.ID, "fresh-key"))

		got, err := st.Sessions().GetSessionByID(ctx, s.ID)
		require.NoError(t, err)
		require.Equal(t, "fresh-key", got.TabSessionKey)

		// Inactive sessions cannot rotate.
		require.NoError(t, st.Sessions().DeactivateSession(ctx, s.ID, domain.EndReasonLogout, now))
		err = st.Sessions().RotateTabSessionKey(ctx, s.ID, "another")
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("delete expired", func(t *testing.T) {
		s := newSession(t, st, u.ID, "tok-5", now.Add(-2*time.Hour))
		require.NoError(t, st.Sessions().DeleteExpiredSessions(ctx, now))

		_, err := st.Sessions().GetSessionByID(ctx, s.ID)
		require.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestBlacklistRepo(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)
	u := newUser(t, st, "alice@example.com")
	now := time.Now().UTC()

	entry := domain.BlacklistEntry{
		TokenID:       "tok-1",
		UserID:        u.ID,
		BlacklistedAt: now,
		Reason:        domain.EndReasonLogout,
		ExpiresAt:     now.Add(time.Hour),
	}

	require.NoError(t, st.Blacklist().InsertEntry(ctx, entry))
	// Idempotent: a second insert of the same token id succeeds.
	require.NoError(t, st.Blacklist().InsertEntry(ctx, entry))

	blacklisted, err := st.Blacklist().IsBlacklisted(ctx, "tok-1")
	require.NoError(t, err)
	require.True(t, blacklisted)

	blacklisted, err = st.Blacklist().IsBlacklisted(ctx, "tok-unknown")
	require.NoError(t, err)
	require.False(t, blacklisted)

	// Expired entries get pruned.
	old := entry
	old.TokenID = "tok-old"
	old.ExpiresAt = now.Add(-time.Hour)
	require.NoError(t, st.Blacklist().InsertEntry(ctx, old))
	require.NoError(t, st.Blacklist().DeleteExpiredEntries(ctx, now))

	blacklisted, err = st.Blacklist().IsBlacklisted(ctx, "tok-old")
	require.NoError(t, err)
	require.False(t, blacklisted)

	blacklisted, err = st.Blacklist().IsBlacklisted(ctx, "tok-1")
	require.NoError(t, err)
	require.True(t, blacklisted)
}

func TestSecurityEventsRepo(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)
	u := newUser(t, st, "alice@example.com")
	now := time.Now().UTC()

	for i, kind := range []string{domain.EventLogin, domain.EventLogout, domain.EventRevokeAll} {
		require.NoError(t, st.SecurityEvents().InsertEvent(ctx, domain.SecurityEvent{
			ID:        idx.New().String(),
			UserID:    u.ID,
			Kind:      kind,
			Detail:    "detail",
			IPAddress: "203.0.113.1",
			UserAgent: "firefox",
			CreatedAt: now.Add(time.Duration(i) * time.Second),
		}))
	}

	t.Run("newest first with limit", func(t *testing.T) {
		events, err := st.SecurityEvents().ListEventsForUser(ctx, u.ID, 2)
		require.NoError(t, err)
		require.Len(t, events, 2)
		require.Equal(t, domain.EventRevokeAll, events[0].Kind)
		require.Equal(t, domain.EventLogout, events[1].Kind)
	})

	t.Run("prune before cutoff", func(t *testing.T) {
		require.NoError(t, st.SecurityEvents().DeleteEventsBefore(ctx, now.Add(90*time.Minute)))
		events, err := st.SecurityEvents().ListEventsForUser(ctx, u.ID, 10)
		require.NoError(t, err)
		require.Empty(t, events)
	})
}

func TestWithTx(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)

	t.Run("commits on success", func(t *testing.T) {
		u := domain.User{
			ID: idx.New().String(), Name: "A", Email: "tx@example.com",
			PasswordHash: "h", Role: domain.RoleMember, TokenVersion: 1,
			CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC(),
		}
		err := st.WithTx(ctx, func(tx store.Tx) error {
			return tx.Users().CreateUser(ctx, u)
		})
		require.NoError(t, err)

		_, err = st.Users().GetUserByID(ctx, u.ID)
		require.NoError(t, err)
	})

	t.Run("rolls back on error", func(t *testing.T) {
		u := domain.User{
			ID: idx.New().String(), Name: "B", Email: "rollback@example.com",
			PasswordHash: "h", Role: domain.RoleMember, TokenVersion: 1,
			CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC(),
		}
		boom := errors.New("boom")
		err := st.WithTx(ctx, func(tx store.Tx) error {
			if err := tx.Users().CreateUser(ctx, u); err != nil {
				return err
			}
			return boom
		})
		require.ErrorIs(t, err, boom)

		_, err = st.Users().GetUserByID(ctx, u.ID)
		require.ErrorIs(t, err, store.ErrNotFound)
	})
}
