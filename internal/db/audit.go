package db

import (
	"context"

	"github.com/google/uuid"

	"github.com/zzy10151020/MBTI-System-sub000/internal/models"
)

// AddAudit is best effort; a failed write is logged and dropped.
func (s *Store) AddAudit(ctx context.Context, e models.AuditEntry) {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO audit_log (id, ts, actor, action, target, note) VALUES ($1, $2, $3, $4, $5, $6)`,
		id.String(), toMillis(e.Time), e.Actor, e.Action, e.Target, e.Note)
	s.logErr("add audit", err)
}

// ListAudit returns the most recent entries first.
func (s *Store) ListAudit(ctx context.Context, limit int) ([]models.AuditEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT ts, actor, action, target, note FROM audit_log ORDER BY id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []models.AuditEntry{}
	for rows.Next() {
		var (
			e  models.AuditEntry
			ts int64
		)
		if err := rows.Scan(&ts, &e.Actor, &e.Action, &e.Target, &e.Note); err != nil {
			return nil, err
		}
		e.Time = fromMillis(ts)
		out = append(out, e)
	}
	return out, rows.Err()
}
