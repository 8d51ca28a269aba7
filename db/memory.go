package db

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"procure/models"
)

// MemoryStorage is the in-process store used when POSTGRES_CONN is not set
// and in tests. One mutex guards all tables, so every method is atomic.
type MemoryStorage struct {
	mu  sync.Mutex
	now func() time.Time

	users        map[string]models.User
	requirements map[string]models.Requirement
	bids         map[string]models.Bid
	reveals      map[string]models.RevealRequest // requirementID + "/" + supplierID
	affiliates   map[string]models.Affiliate
	pins         map[string]string // userID + "/" + role
	audit        []models.AuditEvent
}

// NewMemoryStorage constructs an empty in-memory store.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		now:          func() time.Time { return time.Now().UTC() },
		users:        make(map[string]models.User),
		requirements: make(map[string]models.Requirement),
		bids:         make(map[string]models.Bid),
		reveals:      make(map[string]models.RevealRequest),
		affiliates:   make(map[string]models.Affiliate),
		pins:         make(map[string]string),
	}
}

// SetClock replaces the time source.
func (m *MemoryStorage) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

func pairKey(a, b string) string { return a + "/" + b }

func (m *MemoryStorage) CreateUser(ctx context.Context, u *models.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return models.E("createUser", models.ErrConflict, "email is already registered")
		}
	}
	u.ID = newID()
	u.CreatedAt = m.now()
	m.users[u.ID] = *u
	return nil
}

func (m *MemoryStorage) GetUser(ctx context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, models.E("getUser", models.ErrNotFound, "user not found")
	}
	return &u, nil
}

func (m *MemoryStorage) CreateRequirement(ctx context.Context, r *models.Requirement) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r.ID = newID()
	r.Status = models.RequirementActive
	r.CreatedAt = m.now()
	m.requirements[r.ID] = *r
	return nil
}

func (m *MemoryStorage) GetRequirement(ctx context.Context, id string) (*models.Requirement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requirements[id]
	if !ok {
		return nil, models.E("getRequirement", models.ErrNotFound, "requirement not found")
	}
	return &r, nil
}

func (m *MemoryStorage) ListRequirements(ctx context.Context, statuses []models.RequirementStatus, limit, offset int) ([]models.Requirement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	want := make(map[models.RequirementStatus]bool, len(statuses))
	for _, st := range statuses {
		want[st] = true
	}
	out := []models.Requirement{}
	for _, r := range m.requirements {
		if len(want) == 0 || want[r.Status] {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if offset >= len(out) {
		return []models.Requirement{}, nil
	}
	out = out[offset:]
	if limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStorage) CloseRequirement(ctx context.Context, id, actorID string, target models.RequirementStatus) (*models.Requirement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requirements[id]
	if !ok {
		return nil, models.E("closeRequirement", models.ErrNotFound, "requirement not found")
	}
	if err := models.CheckOwnerClose(r, actorID, target); err != nil {
		return nil, err
	}
	r.Status = target
	m.requirements[id] = r
	return &r, nil
}

func (m *MemoryStorage) SubmitBid(ctx context.Context, b *models.Bid) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requirements[b.RequirementID]
	if !ok {
		return models.E("submitBid", models.ErrNotFound, "requirement not found")
	}
	now := m.now()
	if err := r.CheckBiddable(b.SupplierID, now); err != nil {
		return err
	}
	b.ID = newID()
	b.Status = models.BidPending
	b.CreatedAt = now
	m.bids[b.ID] = *b
	return nil
}

func (m *MemoryStorage) GetBid(ctx context.Context, id string) (*models.Bid, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bids[id]
	if !ok {
		return nil, models.E("getBid", models.ErrNotFound, "bid not found")
	}
	return &b, nil
}

func (m *MemoryStorage) ListBids(ctx context.Context, requirementID, supplierID string, order models.BidOrder) ([]models.BidView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	views := []models.BidView{}
	for _, b := range m.bids {
		if b.RequirementID != requirementID || (supplierID != "" && b.SupplierID != supplierID) {
			continue
		}
		views = append(views, models.NewBidView(b, m.users[b.SupplierID].City))
	}
	models.SortBids(views, order)
	return views, nil
}

func (m *MemoryStorage) AcceptBid(ctx context.Context, requirementID, bidID, buyerID string) (*models.Requirement, *models.Bid, error) {
	const op = "acceptBid"
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.requirements[requirementID]
	if !ok {
		return nil, nil, models.E(op, models.ErrNotFound, "requirement not found")
	}
	if r.BuyerID != buyerID {
		return nil, nil, models.E(op, models.ErrForbidden, "")
	}
	b, ok := m.bids[bidID]
	if !ok {
		return nil, nil, models.E(op, models.ErrNotFound, "bid not found")
	}
	if err := models.CheckAccept(r, b, buyerID); err != nil {
		return nil, nil, err
	}

	for id, other := range m.bids {
		if other.RequirementID == requirementID && id != bidID && other.Status == models.BidPending {
			other.Status = models.BidRejected
			m.bids[id] = other
		}
	}
	b.Status = models.BidAccepted
	m.bids[bidID] = b
	r.Status = models.RequirementAwarded
	m.requirements[requirementID] = r
	return &r, &b, nil
}

func (m *MemoryStorage) RequestReveal(ctx context.Context, in models.RevealInput) (*models.RevealRequest, bool, error) {
	const op = "requestReveal"
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.requirements[in.RequirementID]
	if !ok {
		return nil, false, models.E(op, models.ErrNotFound, "requirement not found")
	}
	if r.BuyerID != in.BuyerID {
		return nil, false, models.E(op, models.ErrForbidden, "")
	}
	b, ok := m.bids[in.BidID]
	if !ok {
		return nil, false, models.E(op, models.ErrNotFound, "bid not found")
	}
	in = in.WithBidSupplier(b)
	if err := models.CheckRevealRequest(r, b, in); err != nil {
		return nil, false, err
	}

	key := pairKey(in.RequirementID, in.SupplierID)
	now := m.now()
	rr, ok := m.reveals[key]
	if !ok {
		rr = models.RevealRequest{
			ID:            newID(),
			RequirementID: in.RequirementID,
			SupplierID:    in.SupplierID,
			BidID:         in.BidID,
			BuyerID:       in.BuyerID,
			Status:        models.RevealLocked,
			FeeAmount:     in.Fee,
			CreatedAt:     now,
		}
	}
	moved := rr.Status == models.RevealLocked
	if moved {
		rr.Status = models.RevealRequested
		rr.RequestedAt = &now
	}
	m.reveals[key] = rr
	return &rr, moved, nil
}

func (m *MemoryStorage) GetReveal(ctx context.Context, requirementID, supplierID, buyerID string) (*models.RevealRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rr, ok := m.reveals[pairKey(requirementID, supplierID)]
	if !ok || rr.BuyerID != buyerID {
		return nil, models.E("getReveal", models.ErrNotFound, "reveal request not found")
	}
	return &rr, nil
}

func (m *MemoryStorage) AdvanceReveal(ctx context.Context, requirementID, supplierID, buyerID string, target models.RevealStatus, paymentRef *string) (*models.RevealRequest, error) {
	const op = "advanceReveal"
	m.mu.Lock()
	defer m.mu.Unlock()

	key := pairKey(requirementID, supplierID)
	rr, ok := m.reveals[key]
	if !ok || rr.BuyerID != buyerID {
		return nil, models.E(op, models.ErrNotFound, "reveal request not found")
	}
	apply, err := models.AdvanceReveal(rr.Status, target)
	if err != nil {
		return nil, err
	}
	if !apply {
		return &rr, nil
	}

	now := m.now()
	switch target {
	case models.RevealPaid:
		rr.PaidAt, rr.PaymentRef = &now, paymentRef
	case models.RevealRevealed:
		rr.RevealedAt = &now
	default:
		return nil, models.E(op, models.ErrInvalidInput, "unsupported reveal target")
	}
	rr.Status = target
	m.reveals[key] = rr
	return &rr, nil
}

func (m *MemoryStorage) GetRevealedContact(ctx context.Context, requirementID, supplierID, buyerID string) (*models.SupplierContact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rr, ok := m.reveals[pairKey(requirementID, supplierID)]
	if !ok || rr.BuyerID != buyerID || rr.Status != models.RevealRevealed {
		return nil, models.E("getRevealedContact", models.ErrForbidden, "")
	}
	u, ok := m.users[supplierID]
	if !ok {
		return nil, models.E("getRevealedContact", models.ErrForbidden, "")
	}
	return &models.SupplierContact{
		SupplierID: u.ID,
		Name:       u.Name,
		Company:    u.Company,
		Phone:      u.Phone,
		Email:      u.Email,
	}, nil
}

func (m *MemoryStorage) CreateAffiliate(ctx context.Context, a *models.Affiliate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.affiliates {
		if existing.UserID == a.UserID {
			return models.E("createAffiliate", models.ErrConflict, "user already has an affiliate record")
		}
	}
	a.ID = newID()
	a.Status = models.AffiliatePending
	a.JoinedAt = m.now()
	a.QueuePosition, a.ActivatedAt, a.DeactivatedAt = nil, nil, nil
	m.affiliates[a.ID] = *a
	return nil
}

func (m *MemoryStorage) GetAffiliate(ctx context.Context, id string) (*models.Affiliate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.affiliates[id]
	if !ok {
		return nil, models.E("getAffiliate", models.ErrNotFound, "affiliate not found")
	}
	return &a, nil
}

func (m *MemoryStorage) ListAffiliates(ctx context.Context, status models.AffiliateStatus) ([]models.Affiliate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.affiliatesInJoinOrder(status), nil
}

func (m *MemoryStorage) affiliatesInJoinOrder(status models.AffiliateStatus) []models.Affiliate {
	out := []models.Affiliate{}
	for _, a := range m.affiliates {
		if status == "" || a.Status == status {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return joinedBefore(out[i], out[j]) })
	return out
}

func joinedBefore(a, b models.Affiliate) bool {
	if !a.JoinedAt.Equal(b.JoinedAt) {
		return a.JoinedAt.Before(b.JoinedAt)
	}
	return a.ID < b.ID
}

func (m *MemoryStorage) ActivateFifo(ctx context.Context, id string) (models.ActivationResult, error) {
	const op = "activateFifo"
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.affiliates[id]
	if !ok {
		return models.ActivationResult{}, models.E(op, models.ErrNotFound, "affiliate not found")
	}
	if a.Status == models.AffiliateActive {
		return models.ActivationResult{Affiliate: a}, nil
	}
	if !a.Status.Queued() {
		return models.ActivationResult{}, models.E(op, models.ErrInvalidState, "affiliate is "+string(a.Status))
	}

	count, maxPos := 0, 0
	for _, other := range m.affiliates {
		if other.Status != models.AffiliateActive {
			continue
		}
		count++
		if other.QueuePosition != nil && *other.QueuePosition > maxPos {
			maxPos = *other.QueuePosition
		}
	}
	if count >= models.MaxActiveAffiliates {
		return models.ActivationResult{LimitReached: true, Affiliate: a}, nil
	}
	for _, other := range m.affiliates {
		if other.Status.Queued() && joinedBefore(other, a) {
			return models.ActivationResult{}, models.E(op, models.ErrInvalidState, "earlier applicants are still queued")
		}
	}

	now := m.now()
	pos := maxPos + 1
	a.Status, a.QueuePosition, a.ActivatedAt = models.AffiliateActive, &pos, &now
	m.affiliates[id] = a
	return models.ActivationResult{Affiliate: a}, nil
}

func (m *MemoryStorage) UpdateAffiliateStatus(ctx context.Context, id string, to models.AffiliateStatus) (*models.Affiliate, error) {
	const op = "updateAffiliateStatus"
	if to == models.AffiliateActive {
		return nil, models.E(op, models.ErrForbidden, "")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.affiliates[id]
	if !ok {
		return nil, models.E(op, models.ErrNotFound, "affiliate not found")
	}
	if err := models.CheckAffiliateTransition(a.Status, to); err != nil {
		return nil, err
	}

	if a.QueuePosition != nil {
		freed := *a.QueuePosition
		for oid, other := range m.affiliates {
			if other.QueuePosition != nil && *other.QueuePosition > freed {
				p := *other.QueuePosition - 1
				other.QueuePosition = &p
				m.affiliates[oid] = other
			}
		}
	}
	a.Status, a.QueuePosition, a.DeactivatedAt = to, nil, models.DeactivationTime(to, m.now())
	m.affiliates[id] = a
	return &a, nil
}

func (m *MemoryStorage) SetRolePin(ctx context.Context, userID string, role models.Role, pinHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pins[pairKey(userID, string(role))] = pinHash
	return nil
}

func (m *MemoryStorage) GetRolePin(ctx context.Context, userID string, role models.Role) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.pins[pairKey(userID, string(role))]
	return h, ok, nil
}

func (m *MemoryStorage) InsertAudit(ctx context.Context, e *models.AuditEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.ID = newID()
	e.CreatedAt = m.now()
	m.audit = append(m.audit, *e)
	return nil
}

// AuditEvents returns a copy of the recorded audit trail.
func (m *MemoryStorage) AuditEvents() []models.AuditEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.AuditEvent(nil), m.audit...)
}
