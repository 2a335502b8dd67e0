package sqlite

import (
	"context"
	"time"

	"github.com/taskdeck/taskdeck/internal/auth/domain"
)

type blacklistRepo struct {
	db dbtx
}

func (r *blacklistRepo) InsertEntry(ctx context.Context, e domain.BlacklistEntry) error {
	// INSERT OR IGNORE keeps repeated logout calls with the same token id
	// harmless.
	_, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO token_blacklist (token_id, user_id, blacklisted_at, reason, expires_at)
		 VALUES (?, ?, ?, ?, ?)`,
		e.TokenID, e.UserID, e.BlacklistedAt, e.Reason, e.ExpiresAt,
	)
	return err
}

func (r *blacklistRepo) IsBlacklisted(ctx context.Context, tokenID string) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM token_blacklist WHERE token_id = ?`, tokenID).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *blacklistRepo) DeleteExpiredEntries(ctx context.Context, now time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM token_blacklist WHERE expires_at <= ?`, now)
	return err
}
