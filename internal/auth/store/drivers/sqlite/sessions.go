package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/taskdeck/taskdeck/internal/auth/domain"
	"github.com/taskdeck/taskdeck/internal/auth/store"
)

type sessionsRepo struct {
	db dbtx
}

const sessionColumns = `id, user_id, token_id, tab_session_key, device_fingerprint,
	ip_address, user_agent, created_at, expires_at, is_active, ended_at, end_reason`

func (r *sessionsRepo) CreateSession(ctx context.Context, s domain.Session) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (id, user_id, token_id, tab_session_key, device_fingerprint,
		     ip_address, user_agent, created_at, expires_at, is_active, end_reason)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, '')`,
		s.ID, s.UserID, s.TokenID, s.TabSessionKey, s.DeviceFingerprint,
		s.IPAddress, s.UserAgent, s.CreatedAt, s.ExpiresAt, s.IsActive,
	)
	return err
}

func (r *sessionsRepo) GetSessionByID(ctx context.Context, id string) (domain.Session, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	return scanSession(row)
}

func (r *sessionsRepo) GetSessionByTokenID(ctx context.Context, tokenID string) (domain.Session, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE token_id = ?`, tokenID)
	return scanSession(row)
}

func (r *sessionsRepo) ListActiveSessions(ctx context.Context, userID string, limit int) ([]domain.Session, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions
		 WHERE user_id = ? AND is_active = TRUE AND expires_at > ?
		 ORDER BY created_at DESC
		 LIMIT ?`,
		userID, time.Now().UTC(), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *sessionsRepo) DeactivateSession(ctx context.Context, sessionID, reason string, now time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET is_active = FALSE, ended_at = ?, end_reason = ?
		 WHERE id = ? AND is_active = TRUE`,
		now, reason, sessionID,
	)
	return err
}

func (r *sessionsRepo) DeactivateUserSessions(ctx context.Context, userID, reason string, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET is_active = FALSE, ended_at = ?, end_reason = ?
		 WHERE user_id = ? AND is_active = TRUE`,
		now, reason, userID,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *sessionsRepo) DeactivateSessionByTokenID(ctx context.Context, tokenID, reason string, now time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET is_active = FALSE, ended_at = ?, end_reason = ?
		 WHERE token_id = ? AND is_active = TRUE`,
		now, reason, tokenID,
	)
	return err
}

func (r *sessionsRepo) RotateTabSessionKey(ctx context.Context, sessionID, tabKey string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET tab_session_key = ? WHERE id = ? AND is_active = TRUE`,
		tabKey, sessionID,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *sessionsRepo) DeleteExpiredSessions(ctx context.Context, now time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE expires_at <= ?`, now)
	return err
}

func scanSession(row rowScanner) (domain.Session, error) {
	var s domain.Session
	var endedAt sql.NullTime
	err := row.Scan(
		&s.ID, &s.UserID, &s.TokenID, &s.TabSessionKey, &s.DeviceFingerprint,
		&s.IPAddress, &s.UserAgent, &s.CreatedAt, &s.ExpiresAt,
		&s.IsActive, &endedAt, &s.EndReason,
	)
	if err != nil {
		return domain.Session{}, mapNotFound(err)
	}
	s.EndedAt = mapNullTimePtr(endedAt)
	return s, nil
}
