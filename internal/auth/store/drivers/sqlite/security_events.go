package sqlite

import (
	"context"
	"time"

	"github.com/taskdeck/taskdeck/internal/auth/domain"
)

type securityEventsRepo struct {
	db dbtx
}

func (r *securityEventsRepo) InsertEvent(ctx context.Context, ev domain.SecurityEvent) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO security_events (id, user_id, kind, detail, ip_address, user_agent, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.UserID, ev.Kind, ev.Detail, ev.IPAddress, ev.UserAgent, ev.CreatedAt,
	)
	return err
}

func (r *securityEventsRepo) ListEventsForUser(ctx context.Context, userID string, limit int) ([]domain.SecurityEvent, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, kind, detail, ip_address, user_agent, created_at
		 FROM security_events
		 WHERE user_id = ?
		 ORDER BY created_at DESC
		 LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.SecurityEvent
	for rows.Next() {
		var ev domain.SecurityEvent
		if err := rows.Scan(
			&ev.ID, &ev.UserID, &ev.Kind, &ev.Detail,
			&ev.IPAddress, &ev.UserAgent, &ev.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (r *securityEventsRepo) DeleteEventsBefore(ctx context.Context, cutoff time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM security_events WHERE created_at < ?`, cutoff)
	return err
}
