package db

import (
	"context"

	"procure/models"

	"github.com/jmoiron/sqlx"
)

// SubmitBid inserts a pending bid. The requirement row is share-locked so a
// concurrent accept cannot award it between the status check and the insert.
func (s *Storage) SubmitBid(ctx context.Context, b *models.Bid) error {
	const op = "submitBid"
	if !validID(b.RequirementID) {
		return models.E(op, models.ErrNotFound, "requirement not found")
	}
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		var req models.Requirement
		if err := tx.GetContext(ctx, &req, `SELECT * FROM requirements WHERE id=$1 FOR SHARE`, b.RequirementID); err != nil {
			return wrapNoRows(op, "requirement", err)
		}
		now := s.now()
		if err := req.CheckBiddable(b.SupplierID, now); err != nil {
			return err
		}

		b.ID = newID()
		b.Status = models.BidPending
		b.CreatedAt = now
		query := `
            INSERT INTO bids
                (id, requirement_id, supplier_id, bid_amount, service_fee, total_amount, delivery_days, status, terms, created_at)
            VALUES
                (:id, :requirement_id, :supplier_id, :bid_amount, :service_fee, :total_amount, :delivery_days, :status, :terms, :created_at)`
		_, err := tx.NamedExecContext(ctx, query, b)
		return err
	})
}

func (s *Storage) GetBid(ctx context.Context, id string) (*models.Bid, error) {
	if !validID(id) {
		return nil, models.E("getBid", models.ErrNotFound, "bid not found")
	}
	b := &models.Bid{}
	if err := s.db.GetContext(ctx, b, `SELECT * FROM bids WHERE id=$1`, id); err != nil {
		return nil, wrapNoRows("getBid", "bid", err)
	}
	return b, nil
}

// ListBids returns anonymized bids for a requirement. A non-empty
// supplierID restricts the listing to that supplier's own bids.
func (s *Storage) ListBids(ctx context.Context, requirementID, supplierID string, order models.BidOrder) ([]models.BidView, error) {
	query := `
        SELECT b.id, b.requirement_id, b.supplier_id, u.city AS supplier_city,
               b.bid_amount, b.service_fee, b.total_amount, b.delivery_days,
               b.status, b.terms, b.created_at
        FROM bids b
        JOIN users u ON u.id = b.supplier_id
        WHERE b.requirement_id = $1 AND ($2 = '' OR b.supplier_id::text = $2)`
	switch order {
	case models.OrderAmountDesc:
		query += " ORDER BY b.total_amount DESC, b.created_at, b.id"
	case models.OrderCreatedAsc:
		query += " ORDER BY b.created_at, b.id"
	default:
		query += " ORDER BY b.total_amount ASC, b.created_at, b.id"
	}

	views := []models.BidView{}
	if err := s.db.SelectContext(ctx, &views, query, requirementID, supplierID); err != nil {
		return nil, err
	}
	for i := range views {
		views[i].Anonymize()
	}
	return views, nil
}

// AcceptBid awards a requirement to one bid in a single transaction: the
// target becomes accepted, every other pending bid is rejected and the
// requirement becomes awarded. The requirement row lock serializes
// concurrent accepts; the loser observes a non-active status and gets
// Conflict.
func (s *Storage) AcceptBid(ctx context.Context, requirementID, bidID, buyerID string) (*models.Requirement, *models.Bid, error) {
	const op = "acceptBid"
	if !validID(requirementID) || !validID(bidID) {
		return nil, nil, models.E(op, models.ErrNotFound, "bid not found for this requirement")
	}

	var req models.Requirement
	var bid models.Bid
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := tx.GetContext(ctx, &req, `SELECT * FROM requirements WHERE id=$1 FOR UPDATE`, requirementID); err != nil {
			return wrapNoRows(op, "requirement", err)
		}
		if req.BuyerID != buyerID {
			return models.E(op, models.ErrForbidden, "")
		}
		if err := tx.GetContext(ctx, &bid, `SELECT * FROM bids WHERE id=$1 FOR UPDATE`, bidID); err != nil {
			return wrapNoRows(op, "bid", err)
		}
		if err := models.CheckAccept(req, bid, buyerID); err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx,
			`UPDATE requirements SET status=$1 WHERE id=$2 AND status=$3`,
			models.RequirementAwarded, requirementID, models.RequirementActive)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n != 1 {
			return models.E(op, models.ErrConflict, "this requirement has already been awarded")
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE bids SET status=$1 WHERE id=$2 AND status=$3`,
			models.BidAccepted, bidID, models.BidPending); err != nil {
			if isUniqueViolation(err) {
				return models.E(op, models.ErrConflict, "this requirement has already been awarded")
			}
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE bids SET status=$1 WHERE requirement_id=$2 AND id<>$3 AND status=$4`,
			models.BidRejected, requirementID, bidID, models.BidPending); err != nil {
			return err
		}

		req.Status = models.RequirementAwarded
		bid.Status = models.BidAccepted
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return &req, &bid, nil
}
