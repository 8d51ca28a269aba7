package models

import (
	"math"
	"sort"
	"strings"
	"time"
)

// BidOrder is the sort order for bid listings.
type BidOrder string

const (
	OrderAmountAsc  BidOrder = "amount_asc"
	OrderAmountDesc BidOrder = "amount_desc"
	OrderCreatedAsc BidOrder = "created_asc"
)

// ParseBidOrder returns the order for s; empty means lowest total first.
func ParseBidOrder(s string) (BidOrder, bool) {
	switch BidOrder(strings.TrimSpace(s)) {
	case "", OrderAmountAsc:
		return OrderAmountAsc, true
	case OrderAmountDesc:
		return OrderAmountDesc, true
	case OrderCreatedAsc:
		return OrderCreatedAsc, true
	default:
		return "", false
	}
}

// SortBids sorts views in place. Ties break by creation time, then id.
func SortBids(views []BidView, order BidOrder) {
	sort.SliceStable(views, func(i, j int) bool {
		a, b := views[i], views[j]
		switch order {
		case OrderAmountDesc:
			if a.TotalAmount != b.TotalAmount {
				return a.TotalAmount > b.TotalAmount
			}
		case OrderCreatedAsc:
		default:
			if a.TotalAmount != b.TotalAmount {
				return a.TotalAmount < b.TotalAmount
			}
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}

// ServiceFee returns the platform fee and the total for a bid amount.
func ServiceFee(amount, percent float64) (fee, total float64) {
	fee = math.Round(amount*percent) / 100
	return fee, math.Round((amount+fee)*100) / 100
}

// SupplierCode derives the pseudonymous supplier label used in listings.
func SupplierCode(supplierID string) string {
	id := strings.ReplaceAll(supplierID, "-", "")
	r := []rune(id)
	if len(r) > 4 {
		r = r[:4]
	}
	return "SUP-" + strings.ToUpper(string(r))
}

// Anonymize fills the derived fields of a listing row.
func (v *BidView) Anonymize() {
	v.SupplierCode = SupplierCode(v.SupplierID)
}

// NewBidView builds the anonymized payload for b. Only the supplier's city
// is carried over from the profile.
func NewBidView(b Bid, supplierCity string) BidView {
	v := BidView{
		ID:            b.ID,
		RequirementID: b.RequirementID,
		SupplierID:    b.SupplierID,
		SupplierCity:  supplierCity,
		BidAmount:     b.BidAmount,
		ServiceFee:    b.ServiceFee,
		TotalAmount:   b.TotalAmount,
		DeliveryDays:  b.DeliveryDays,
		Status:        b.Status,
		Terms:         b.Terms,
		CreatedAt:     b.CreatedAt,
	}
	v.Anonymize()
	return v
}

// Profile returns what other users may see about u: no name, company or
// contact fields.
func (u User) Profile() PublicProfile {
	return PublicProfile{ID: u.ID, Kind: u.Kind, City: u.City, CreatedAt: u.CreatedAt}
}

// IsTerminal reports whether no further transitions are allowed.
func (s RequirementStatus) IsTerminal() bool {
	return s != RequirementActive
}

// CheckBiddable validates that supplierID may bid on r at now.
func (r Requirement) CheckBiddable(supplierID string, now time.Time) error {
	const op = "submitBid"
	if r.BuyerID == supplierID {
		return E(op, ErrForbidden, "")
	}
	if r.Status != RequirementActive {
		return E(op, ErrInvalidState, "requirement is "+string(r.Status)+" and no longer accepts bids")
	}
	if !r.Deadline.IsZero() && !now.Before(r.Deadline) {
		return E(op, ErrInvalidState, "requirement deadline has passed")
	}
	return nil
}

// CheckAccept validates an accept-bid call against the current (locked) rows.
func CheckAccept(r Requirement, b Bid, buyerID string) error {
	const op = "acceptBid"
	if r.BuyerID != buyerID {
		return E(op, ErrForbidden, "")
	}
	if b.RequirementID != r.ID {
		return E(op, ErrNotFound, "bid not found for this requirement")
	}
	if r.Status == RequirementAwarded {
		return E(op, ErrConflict, "this requirement has already been awarded")
	}
	if r.Status != RequirementActive {
		return E(op, ErrConflict, "this requirement is "+string(r.Status))
	}
	if b.Status != BidPending {
		return E(op, ErrInvalidState, "bid is "+string(b.Status))
	}
	return nil
}

// CheckOwnerClose validates close/cancel of r by actorID.
func CheckOwnerClose(r Requirement, actorID string, target RequirementStatus) error {
	const op = "closeRequirement"
	if target != RequirementClosed && target != RequirementCancelled {
		return E(op, ErrInvalidInput, "unsupported target status")
	}
	if r.BuyerID != actorID {
		return E(op, ErrForbidden, "")
	}
	if r.Status.IsTerminal() {
		return E(op, ErrInvalidState, "this requirement is already "+string(r.Status))
	}
	return nil
}

var revealRank = map[RevealStatus]int{
	RevealLocked:    0,
	RevealRequested: 1,
	RevealPaid:      2,
	RevealRevealed:  3,
}

// AdvanceReveal decides a transition from cur to target. It returns
// apply=false when cur is already at or beyond target (a replay), and an
// InvalidState error when target skips a step.
func AdvanceReveal(cur, target RevealStatus) (apply bool, err error) {
	c, ok1 := revealRank[cur]
	t, ok2 := revealRank[target]
	if !ok1 || !ok2 {
		return false, E("reveal", ErrInvalidInput, "unknown reveal status")
	}
	if c >= t {
		return false, nil
	}
	if t-c > 1 {
		return false, E("reveal", ErrInvalidState, "reveal is "+string(cur)+", cannot move to "+string(target))
	}
	return true, nil
}

// CheckAffiliateTransition validates the generic administrative status path.
// ACTIVE is never reachable here; only FIFO activation grants it.
func CheckAffiliateTransition(from, to AffiliateStatus) error {
	const op = "updateAffiliateStatus"
	if to == AffiliateActive {
		return E(op, ErrForbidden, "")
	}
	switch {
	case from == AffiliatePending && to == AffiliateWaitlisted:
	case (from == AffiliatePending || from == AffiliateWaitlisted) && to == AffiliateRejected:
	case from == AffiliateActive && (to == AffiliateSuspended || to == AffiliateRejected):
	default:
		return E(op, ErrInvalidState, "cannot move affiliate from "+string(from)+" to "+string(to))
	}
	return nil
}

// Queued reports whether the affiliate is waiting for FIFO activation.
func (s AffiliateStatus) Queued() bool {
	return s == AffiliatePending || s == AffiliateWaitlisted
}

// ValidAffiliateStatus reports whether s is a known status.
func ValidAffiliateStatus(s AffiliateStatus) bool {
	switch s {
	case AffiliatePending, AffiliateWaitlisted, AffiliateActive, AffiliateSuspended, AffiliateRejected:
		return true
	default:
		return false
	}
}

// ValidRole reports whether r is a management role.
func ValidRole(r Role) bool {
	switch r {
	case RoleCFO, RoleCEO, RoleHR, RoleManager:
		return true
	default:
		return false
	}
}

// ValidUserKind reports whether k is a known user kind.
func ValidUserKind(k UserKind) bool {
	switch k {
	case KindBuyer, KindSupplier, KindLogistics, KindAdmin:
		return true
	default:
		return false
	}
}

// ValidRequirementStatus reports whether s is a known status.
func ValidRequirementStatus(s RequirementStatus) bool {
	switch s {
	case RequirementActive, RequirementClosed, RequirementAwarded, RequirementCancelled:
		return true
	default:
		return false
	}
}

// RevealInput identifies a reveal request and who asks for it.
type RevealInput struct {
	RequirementID string
	SupplierID    string
	BidID         string
	BuyerID       string
	Fee           float64
}

// CheckRevealRequest validates that in.BuyerID may ask to reveal the supplier
// behind bid b on requirement r.
// WithBidSupplier fills SupplierID from the bid when the caller only knows
// the listing row.
func (in RevealInput) WithBidSupplier(b Bid) RevealInput {
	if in.SupplierID == "" {
		in.SupplierID = b.SupplierID
	}
	return in
}

func CheckRevealRequest(r Requirement, b Bid, in RevealInput) error {
	const op = "requestReveal"
	if r.BuyerID != in.BuyerID {
		return E(op, ErrForbidden, "")
	}
	if b.RequirementID != r.ID || b.SupplierID != in.SupplierID {
		return E(op, ErrNotFound, "bid not found for this requirement and supplier")
	}
	return nil
}

// DeactivationTime is the deactivated_at value recorded when an affiliate
// moves to status to.
func DeactivationTime(to AffiliateStatus, now time.Time) *time.Time {
	if to == AffiliateSuspended || to == AffiliateRejected {
		return &now
	}
	return nil
}
