package db

import (
	"context"

	"procure/models"

	"github.com/jmoiron/sqlx"
)

// fifoLockKey serializes every operation that reads or rewrites the ACTIVE
// set (count, positions).
const fifoLockKey = 71_450_050

func (s *Storage) CreateAffiliate(ctx context.Context, a *models.Affiliate) error {
	a.ID = newID()
	a.Status = models.AffiliatePending
	a.JoinedAt = s.now()
	a.QueuePosition, a.ActivatedAt, a.DeactivatedAt = nil, nil, nil
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO affiliates (id, user_id, status, joined_at) VALUES ($1, $2, $3, $4)`,
		a.ID, a.UserID, a.Status, a.JoinedAt)
	if isUniqueViolation(err) {
		return models.E("createAffiliate", models.ErrConflict, "user already has an affiliate record")
	}
	return err
}

func (s *Storage) GetAffiliate(ctx context.Context, id string) (*models.Affiliate, error) {
	if !validID(id) {
		return nil, models.E("getAffiliate", models.ErrNotFound, "affiliate not found")
	}
	a := &models.Affiliate{}
	if err := s.db.GetContext(ctx, a, `SELECT * FROM affiliates WHERE id=$1`, id); err != nil {
		return nil, wrapNoRows("getAffiliate", "affiliate", err)
	}
	return a, nil
}

// ListAffiliates returns affiliates in join order, optionally filtered by status.
func (s *Storage) ListAffiliates(ctx context.Context, status models.AffiliateStatus) ([]models.Affiliate, error) {
	out := []models.Affiliate{}
	err := s.db.SelectContext(ctx, &out,
		`SELECT * FROM affiliates WHERE ($1 = '' OR status = $1) ORDER BY joined_at, id`, status)
	return out, err
}

// ActivateFifo promotes the queue head to ACTIVE when fewer than
// MaxActiveAffiliates are active. Count, head check and position assignment
// run under one transaction-scoped advisory lock, so concurrent calls cannot
// both observe a free slot.
func (s *Storage) ActivateFifo(ctx context.Context, id string) (models.ActivationResult, error) {
	const op = "activateFifo"
	if !validID(id) {
		return models.ActivationResult{}, models.E(op, models.ErrNotFound, "affiliate not found")
	}

	var res models.ActivationResult
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, fifoLockKey); err != nil {
			return err
		}
		a := &res.Affiliate
		if err := tx.GetContext(ctx, a, `SELECT * FROM affiliates WHERE id=$1 FOR UPDATE`, id); err != nil {
			return wrapNoRows(op, "affiliate", err)
		}
		if a.Status == models.AffiliateActive {
			return nil
		}
		if !a.Status.Queued() {
			return models.E(op, models.ErrInvalidState, "affiliate is "+string(a.Status))
		}

		var active struct {
			Count int `db:"count"`
			Max   int `db:"max"`
		}
		if err := tx.GetContext(ctx, &active,
			`SELECT COUNT(*) AS count, COALESCE(MAX(queue_position), 0) AS max FROM affiliates WHERE status=$1`,
			models.AffiliateActive); err != nil {
			return err
		}
		if active.Count >= models.MaxActiveAffiliates {
			res.LimitReached = true
			return nil
		}

		var earlier bool
		if err := tx.GetContext(ctx, &earlier, `
            SELECT EXISTS (
                SELECT 1 FROM affiliates
                WHERE status IN ($1, $2) AND (joined_at, id) < ($3, $4)
            )`, models.AffiliatePending, models.AffiliateWaitlisted, a.JoinedAt, a.ID); err != nil {
			return err
		}
		if earlier {
			return models.E(op, models.ErrInvalidState, "earlier applicants are still queued")
		}

		now := s.now()
		pos := active.Max + 1
		if _, err := tx.ExecContext(ctx,
			`UPDATE affiliates SET status=$1, queue_position=$2, activated_at=$3 WHERE id=$4`,
			models.AffiliateActive, pos, now, a.ID); err != nil {
			return err
		}
		a.Status, a.QueuePosition, a.ActivatedAt = models.AffiliateActive, &pos, &now
		return nil
	})
	if err != nil {
		return models.ActivationResult{}, err
	}
	return res, nil
}

// UpdateAffiliateStatus is the generic administrative status path. It never
// grants ACTIVE. Demoting an ACTIVE affiliate frees its slot and shifts the
// positions above it down by one.
func (s *Storage) UpdateAffiliateStatus(ctx context.Context, id string, to models.AffiliateStatus) (*models.Affiliate, error) {
	const op = "updateAffiliateStatus"
	if to == models.AffiliateActive {
		return nil, models.E(op, models.ErrForbidden, "")
	}
	if !validID(id) {
		return nil, models.E(op, models.ErrNotFound, "affiliate not found")
	}

	var a models.Affiliate
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, fifoLockKey); err != nil {
			return err
		}
		if err := tx.GetContext(ctx, &a, `SELECT * FROM affiliates WHERE id=$1 FOR UPDATE`, id); err != nil {
			return wrapNoRows(op, "affiliate", err)
		}
		if err := models.CheckAffiliateTransition(a.Status, to); err != nil {
			return err
		}

		now := s.now()
		if _, err := tx.ExecContext(ctx,
			`UPDATE affiliates SET status=$1, queue_position=NULL, deactivated_at=$2 WHERE id=$3`,
			to, models.DeactivationTime(to, now), id); err != nil {
			return err
		}
		if a.QueuePosition != nil {
			if _, err := tx.ExecContext(ctx,
				`UPDATE affiliates SET queue_position = queue_position - 1 WHERE queue_position > $1`,
				*a.QueuePosition); err != nil {
				return err
			}
		}
		a.Status, a.QueuePosition, a.DeactivatedAt = to, nil, models.DeactivationTime(to, now)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &a, nil
}
