package handlers

import (
	"context"

	"procure/db"
	"procure/models"
)

// StorageInterface реализуют db.Storage (Postgres) и db.MemoryStorage.
// Изменения нескольких строк атомарны внутри хранилища.
type StorageInterface interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUser(ctx context.Context, id string) (*models.User, error)

	CreateRequirement(ctx context.Context, r *models.Requirement) error
	GetRequirement(ctx context.Context, id string) (*models.Requirement, error)
	ListRequirements(ctx context.Context, statuses []models.RequirementStatus, limit, offset int) ([]models.Requirement, error)
	CloseRequirement(ctx context.Context, id, actorID string, target models.RequirementStatus) (*models.Requirement, error)

	SubmitBid(ctx context.Context, b *models.Bid) error
	GetBid(ctx context.Context, id string) (*models.Bid, error)
	ListBids(ctx context.Context, requirementID, supplierID string, order models.BidOrder) ([]models.BidView, error)
	AcceptBid(ctx context.Context, requirementID, bidID, buyerID string) (*models.Requirement, *models.Bid, error)

	RequestReveal(ctx context.Context, in models.RevealInput) (rr *models.RevealRequest, moved bool, err error)
	GetReveal(ctx context.Context, requirementID, supplierID, buyerID string) (*models.RevealRequest, error)
	AdvanceReveal(ctx context.Context, requirementID, supplierID, buyerID string, target models.RevealStatus, paymentRef *string) (*models.RevealRequest, error)
	GetRevealedContact(ctx context.Context, requirementID, supplierID, buyerID string) (*models.SupplierContact, error)

	CreateAffiliate(ctx context.Context, a *models.Affiliate) error
	GetAffiliate(ctx context.Context, id string) (*models.Affiliate, error)
	ListAffiliates(ctx context.Context, status models.AffiliateStatus) ([]models.Affiliate, error)
	ActivateFifo(ctx context.Context, id string) (models.ActivationResult, error)
	UpdateAffiliateStatus(ctx context.Context, id string, to models.AffiliateStatus) (*models.Affiliate, error)

	SetRolePin(ctx context.Context, userID string, role models.Role, pinHash string) error
	GetRolePin(ctx context.Context, userID string, role models.Role) (string, bool, error)
	InsertAudit(ctx context.Context, e *models.AuditEvent) error
}

var (
	_ StorageInterface = (*db.Storage)(nil)
	_ StorageInterface = (*db.MemoryStorage)(nil)
)
