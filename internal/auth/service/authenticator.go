package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/taskdeck/taskdeck/internal/auth/domain"
	"github.com/taskdeck/taskdeck/internal/auth/metrics"
	"github.com/taskdeck/taskdeck/internal/auth/store"
	"github.com/taskdeck/taskdeck/pkg/cryptox"
	"github.com/taskdeck/taskdeck/pkg/idx"
	"github.com/taskdeck/taskdeck/pkg/jwtx"
	"github.com/taskdeck/taskdeck/pkg/slogx"
)

// Reason classifies why a token was rejected. Rejections are expected
// outcomes of validating untrusted input, distinct from store faults, which
// surface as ordinary errors.
type Reason string

const (
	ReasonMalformed      Reason = "malformed"
	ReasonExpired        Reason = "expired"
	ReasonBlacklisted    Reason = "blacklisted"
	ReasonVersionStale   Reason = "version_stale"
	ReasonMissingSession Reason = "missing_session"
	ReasonSessionInvalid Reason = "session_invalid"
	ReasonDeviceMismatch Reason = "device_mismatch"
	ReasonTabKeyMissing  Reason = "tab_key_missing"
	ReasonTabKeyMismatch Reason = "tab_key_mismatch"
)

// Rejection is a failed authentication decision. It implements error so
// middleware can surface it as a 401 while store faults stay 5xx.
type Rejection struct {
	Reason Reason
}

func (r *Rejection) Error() string {
	return "authentication rejected: " + string(r.Reason)
}

// Remediation is the set of side effects owed when validation detects an
// active attack signal: end the offending session, burn the presented token
// and record the event. Check returns it without applying it; Authenticate
// applies it in one transaction.
type Remediation struct {
	// SessionID to deactivate, "" when the session is not ours to end
	// (token replayed against a foreign session).
	SessionID string
	EndReason string

	// TokenID to blacklist, always set.
	TokenID        string
	UserID         string
	BlacklistUntil time.Time

	Event domain.SecurityEvent
}

// Request is one authentication attempt: the presented token plus the
// request metadata it must be cross-checked against.
type Request struct {
	Token     string
	IP        string
	UserAgent string

	// TabSessionKey is the X-Tab-Session-Key header value, if any.
	TabSessionKey string

	// SkipTabCheck disables the tab binding check. Only the tab session
	// refresh endpoint sets it, since a new tab has no key yet.
	SkipTabCheck bool
}

// Result is the outcome of Check. Exactly one of UserID or Rejection is set.
type Result struct {
	UserID      string
	SessionID   string
	TokenID     string
	Rejection   *Rejection
	Remediation *Remediation
}

// Accepted reports whether the token passed every check.
func (r Result) Accepted() bool { return r.Rejection == nil }

// Authenticator validates bearer tokens against live session and user state.
// A cryptographically valid token proves nothing by itself here: it must
// also survive the blacklist, version, session, device and tab checks, in
// that order. The first failure wins.
type Authenticator struct {
	Store store.Store
	Codec *jwtx.Codec

	// FingerprintMode must match the mode sessions were created with.
	FingerprintMode cryptox.FingerprintMode
}

// Check runs the validation pipeline without side effects. Store faults are
// returned as errors; everything else is a Result carrying either the
// authenticated user id or a rejection (plus the remediation owed, if any).
func (a *Authenticator) Check(ctx context.Context, req Request) (Result, error) {
	now := time.Now().UTC()

	claims, err := a.Codec.Decode(req.Token)
	if err != nil {
		if errors.Is(err, jwtx.ErrExpired) {
			return reject(ReasonExpired), nil
		}
		return reject(ReasonMalformed), nil
	}

	res := Result{
		UserID:    claims.UserID(),
		SessionID: claims.SID,
		TokenID:   claims.TokenID(),
	}

	blacklisted, err := a.Store.Blacklist().IsBlacklisted(ctx, claims.TokenID())
	if err != nil {
		return Result{}, fmt.Errorf("failed to check blacklist: %w", err)
	}
	if blacklisted {
		res.Rejection = &Rejection{Reason: ReasonBlacklisted}
		return res, nil
	}

	user, err := a.Store.Users().GetUserByID(ctx, claims.UserID())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Deleted user: no stored version can match the token's.
			res.Rejection = &Rejection{Reason: ReasonVersionStale}
			return res, nil
		}
		return Result{}, fmt.Errorf("failed to load user: %w", err)
	}
	if claims.TokenVersion != user.TokenVersion {
		res.Rejection = &Rejection{Reason: ReasonVersionStale}
		return res, nil
	}

	if claims.SID == "" {
		res.Rejection = &Rejection{Reason: ReasonMissingSession}
		return res, nil
	}

	sess, err := a.Store.Sessions().GetSessionByID(ctx, claims.SID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			res.Rejection = &Rejection{Reason: ReasonSessionInvalid}
			return res, nil
		}
		return Result{}, fmt.Errorf("failed to load session: %w", err)
	}

	if sess.UserID != claims.UserID() {
		// A token replayed against another user's session. The session is
		// not ended (it belongs to its rightful owner) but the token is
		// burned.
		res.Rejection = &Rejection{Reason: ReasonSessionInvalid}
		res.Remediation = &Remediation{
			TokenID:        claims.TokenID(),
			UserID:         claims.UserID(),
			BlacklistUntil: claims.ExpiresAt.Time,
			Event: domain.SecurityEvent{
				UserID:    claims.UserID(),
				Kind:      domain.EventSessionHijack,
				Detail:    "token presented against a session owned by another user",
				IPAddress: req.IP,
				UserAgent: req.UserAgent,
				CreatedAt: now,
			},
		}
		return res, nil
	}

	if !sess.IsActive || sess.Expired(now) {
		res.Rejection = &Rejection{Reason: ReasonSessionInvalid}
		return res, nil
	}

	if a.FingerprintMode != cryptox.FingerprintOff {
		fp := cryptox.DeviceFingerprint(a.FingerprintMode, req.IP, req.UserAgent)
		tokenBound := claims.Fingerprint != "" && fp != claims.Fingerprint
		sessionBound := sess.DeviceFingerprint != "" && fp != sess.DeviceFingerprint
		if tokenBound || sessionBound {
			res.Rejection = &Rejection{Reason: ReasonDeviceMismatch}
			res.Remediation = &Remediation{
				SessionID:      sess.ID,
				EndReason:      domain.EndReasonDeviceMismatch,
				TokenID:        claims.TokenID(),
				UserID:         claims.UserID(),
				BlacklistUntil: claims.ExpiresAt.Time,
				Event: domain.SecurityEvent{
					UserID:    claims.UserID(),
					Kind:      domain.EventDeviceMismatch,
					Detail:    "request fingerprint does not match the fingerprint bound at login",
					IPAddress: req.IP,
					UserAgent: req.UserAgent,
					CreatedAt: now,
				},
			}
			return res, nil
		}
	}

	if claims.TabKey != "" && !req.SkipTabCheck {
		if req.TabSessionKey == "" {
			res.Rejection = &Rejection{Reason: ReasonTabKeyMissing}
			return res, nil
		}
		if req.TabSessionKey != sess.TabSessionKey {
			res.Rejection = &Rejection{Reason: ReasonTabKeyMismatch}
			res.Remediation = &Remediation{
				SessionID:      sess.ID,
				EndReason:      domain.EndReasonTabKeyMismatch,
				TokenID:        claims.TokenID(),
				UserID:         claims.UserID(),
				BlacklistUntil: claims.ExpiresAt.Time,
				Event: domain.SecurityEvent{
					UserID:    claims.UserID(),
					Kind:      domain.EventTabKeyMismatch,
					Detail:    "supplied tab session key does not match the session's key",
					IPAddress: req.IP,
					UserAgent: req.UserAgent,
					CreatedAt: now,
				},
			}
			return res, nil
		}
	}

	return res, nil
}

// Authenticate validates a request and applies any remediation the check
// produced, all before reporting the decision. On rejection the returned
// error is a *Rejection; remediation failures surface as store faults
// instead, so an attack is never reported as handled when it was not.
func (a *Authenticator) Authenticate(ctx context.Context, req Request) (Result, error) {
	res, err := a.Check(ctx, req)
	if err != nil {
		return Result{}, err
	}

	if res.Remediation != nil {
		if err := a.applyRemediation(ctx, res.Remediation); err != nil {
			return Result{}, err
		}
	}

	if res.Rejection != nil {
		metrics.AuthDecisions.WithLabelValues(string(res.Rejection.Reason)).Inc()
		slogx.FromContext(ctx).Warn("authentication rejected",
			"reason", string(res.Rejection.Reason),
			"user_id", res.UserID,
			"remediated", res.Remediation != nil,
		)
		return res, res.Rejection
	}

	metrics.AuthDecisions.WithLabelValues("accepted").Inc()
	return res, nil
}

func (a *Authenticator) applyRemediation(ctx context.Context, rem *Remediation) error {
	now := time.Now().UTC()
	until := rem.BlacklistUntil
	if until.IsZero() {
		until = now.Add(jwtx.DefaultTokenTTL)
	}

	err := a.Store.WithTx(ctx, func(tx store.Tx) error {
		if rem.SessionID != "" {
			if err := tx.Sessions().DeactivateSession(ctx, rem.SessionID, rem.EndReason, now); err != nil {
				return fmt.Errorf("failed to deactivate session: %w", err)
			}
		}

		if err := tx.Blacklist().InsertEntry(ctx, domain.BlacklistEntry{
			TokenID:       rem.TokenID,
			UserID:        rem.UserID,
			BlacklistedAt: now,
			Reason:        rem.Event.Kind,
			ExpiresAt:     until,
		}); err != nil {
			return fmt.Errorf("failed to blacklist token: %w", err)
		}

		ev := rem.Event
		ev.ID = idx.New().String()
		return tx.SecurityEvents().InsertEvent(ctx, ev)
	})
	if err != nil {
		return err
	}

	metrics.SecurityEvents.WithLabelValues(rem.Event.Kind).Inc()
	return nil
}

func reject(reason Reason) Result {
	return Result{Rejection: &Rejection{Reason: reason}}
}
