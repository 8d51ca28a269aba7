package db

import (
	"context"

	"procure/models"

	"github.com/jmoiron/sqlx"
)

// RequestReveal creates the reveal request for (requirement, supplier) on
// first call and moves it from locked to requested. Later calls return the
// stored request unchanged; moved reports whether this call did the move.
// An empty in.SupplierID is taken from the bid.
func (s *Storage) RequestReveal(ctx context.Context, in models.RevealInput) (*models.RevealRequest, bool, error) {
	const op = "requestReveal"
	if !validID(in.RequirementID) || !validID(in.BidID) || (in.SupplierID != "" && !validID(in.SupplierID)) {
		return nil, false, models.E(op, models.ErrNotFound, "bid not found for this requirement and supplier")
	}

	var (
		out   models.RevealRequest
		moved bool
	)
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var req models.Requirement
		if err := tx.GetContext(ctx, &req, `SELECT * FROM requirements WHERE id=$1`, in.RequirementID); err != nil {
			return wrapNoRows(op, "requirement", err)
		}
		if req.BuyerID != in.BuyerID {
			return models.E(op, models.ErrForbidden, "")
		}
		var bid models.Bid
		if err := tx.GetContext(ctx, &bid, `SELECT * FROM bids WHERE id=$1`, in.BidID); err != nil {
			return wrapNoRows(op, "bid", err)
		}
		in = in.WithBidSupplier(bid)
		if err := models.CheckRevealRequest(req, bid, in); err != nil {
			return err
		}

		now := s.now()
		_, err := tx.ExecContext(ctx, `
            INSERT INTO reveal_requests
                (id, requirement_id, supplier_id, bid_id, buyer_id, status, fee_amount, created_at)
            VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
            ON CONFLICT (requirement_id, supplier_id) DO NOTHING`,
			newID(), in.RequirementID, in.SupplierID, in.BidID, in.BuyerID, models.RevealLocked, in.Fee, now)
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `
            UPDATE reveal_requests SET status=$1, requested_at=$2
            WHERE requirement_id=$3 AND supplier_id=$4 AND status=$5`,
			models.RevealRequested, now, in.RequirementID, in.SupplierID, models.RevealLocked)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		moved = n == 1
		return tx.GetContext(ctx, &out,
			`SELECT * FROM reveal_requests WHERE requirement_id=$1 AND supplier_id=$2`,
			in.RequirementID, in.SupplierID)
	})
	if err != nil {
		return nil, false, err
	}
	return &out, moved, nil
}

// GetReveal returns the reveal request if buyerID is the one who made it.
// A request owned by someone else is reported as missing.
func (s *Storage) GetReveal(ctx context.Context, requirementID, supplierID, buyerID string) (*models.RevealRequest, error) {
	const op = "getReveal"
	if !validID(requirementID) || !validID(supplierID) {
		return nil, models.E(op, models.ErrNotFound, "reveal request not found")
	}
	var out models.RevealRequest
	err := s.db.GetContext(ctx, &out,
		`SELECT * FROM reveal_requests WHERE requirement_id=$1 AND supplier_id=$2`, requirementID, supplierID)
	if err != nil {
		return nil, wrapNoRows(op, "reveal request", err)
	}
	if out.BuyerID != buyerID {
		return nil, models.E(op, models.ErrNotFound, "reveal request not found")
	}
	return &out, nil
}

// AdvanceReveal moves a reveal request one step forward to target
// (paid or revealed). Replays of a step already taken are no-ops.
func (s *Storage) AdvanceReveal(ctx context.Context, requirementID, supplierID, buyerID string, target models.RevealStatus, paymentRef *string) (*models.RevealRequest, error) {
	const op = "advanceReveal"
	if !validID(requirementID) || !validID(supplierID) {
		return nil, models.E(op, models.ErrNotFound, "reveal request not found")
	}

	var out models.RevealRequest
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		err := tx.GetContext(ctx, &out,
			`SELECT * FROM reveal_requests WHERE requirement_id=$1 AND supplier_id=$2 FOR UPDATE`,
			requirementID, supplierID)
		if err != nil {
			return wrapNoRows(op, "reveal request", err)
		}
		if out.BuyerID != buyerID {
			return models.E(op, models.ErrNotFound, "reveal request not found")
		}
		apply, err := models.AdvanceReveal(out.Status, target)
		if err != nil || !apply {
			return err
		}

		now := s.now()
		switch target {
		case models.RevealPaid:
			_, err = tx.ExecContext(ctx,
				`UPDATE reveal_requests SET status=$1, paid_at=$2, payment_ref=$3 WHERE id=$4`,
				target, now, paymentRef, out.ID)
			out.PaidAt, out.PaymentRef = &now, paymentRef
		case models.RevealRevealed:
			_, err = tx.ExecContext(ctx,
				`UPDATE reveal_requests SET status=$1, revealed_at=$2 WHERE id=$3`,
				target, now, out.ID)
			out.RevealedAt = &now
		default:
			return models.E(op, models.ErrInvalidInput, "unsupported reveal target")
		}
		out.Status = target
		return err
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// GetRevealedContact returns supplier contact fields only when the reveal
// request for this exact pair is revealed and buyerID requested it. Every
// other case is Forbidden, without saying which check failed.
func (s *Storage) GetRevealedContact(ctx context.Context, requirementID, supplierID, buyerID string) (*models.SupplierContact, error) {
	const op = "getRevealedContact"
	if !validID(requirementID) || !validID(supplierID) {
		return nil, models.E(op, models.ErrForbidden, "")
	}
	contact := &models.SupplierContact{}
	err := s.db.GetContext(ctx, contact, `
        SELECT u.id, u.name, u.company, u.phone, u.email
        FROM reveal_requests rr
        JOIN users u ON u.id = rr.supplier_id
        WHERE rr.requirement_id=$1 AND rr.supplier_id=$2 AND rr.buyer_id::text=$3 AND rr.status=$4`,
		requirementID, supplierID, buyerID, models.RevealRevealed)
	if err != nil {
		if isNoRows(err) {
			return nil, models.E(op, models.ErrForbidden, "")
		}
		return nil, err
	}
	return contact, nil
}
