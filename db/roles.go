package db

import (
	"context"

	"procure/models"
)

// SetRolePin stores (or replaces) the PIN hash for a management role.
func (s *Storage) SetRolePin(ctx context.Context, userID string, role models.Role, pinHash string) error {
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO role_pins (user_id, role, pin_hash, updated_at)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (user_id, role) DO UPDATE SET pin_hash = EXCLUDED.pin_hash, updated_at = EXCLUDED.updated_at`,
		userID, role, pinHash, s.now())
	return err
}

// GetRolePin returns the stored PIN hash; ok is false when none is configured.
func (s *Storage) GetRolePin(ctx context.Context, userID string, role models.Role) (hash string, ok bool, err error) {
	if !validID(userID) {
		return "", false, nil
	}
	err = s.db.GetContext(ctx, &hash, `SELECT pin_hash FROM role_pins WHERE user_id=$1 AND role=$2`, userID, role)
	if isNoRows(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return hash, true, nil
}

// InsertAudit persists an audit event.
func (s *Storage) InsertAudit(ctx context.Context, e *models.AuditEvent) error {
	e.ID = newID()
	e.CreatedAt = s.now()
	_, err := s.db.NamedExecContext(ctx, `
        INSERT INTO audit_log (id, action, actor_id, role, reason, meta, created_at)
        VALUES (:id, :action, :actor_id, :role, :reason, CAST(:meta AS jsonb), :created_at)`, e)
	return err
}
