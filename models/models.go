package models

import "time"

type (
	RequirementStatus string // Статус заявки (RFQ)
	BidStatus         string // Статус предложения
	RevealStatus      string // Статус раскрытия контактов
	AffiliateStatus   string // Статус партнёра
	UserKind          string // Тип пользователя
	Role              string // Управленческая роль
)

const (
	RequirementActive    RequirementStatus = "active"
	RequirementClosed    RequirementStatus = "closed"
	RequirementAwarded   RequirementStatus = "awarded"
	RequirementCancelled RequirementStatus = "cancelled"

	BidPending  BidStatus = "pending"
	BidAccepted BidStatus = "accepted"
	BidRejected BidStatus = "rejected"

	RevealLocked    RevealStatus = "locked"
	RevealRequested RevealStatus = "requested"
	RevealPaid      RevealStatus = "paid"
	RevealRevealed  RevealStatus = "revealed"

	AffiliatePending    AffiliateStatus = "PENDING"
	AffiliateWaitlisted AffiliateStatus = "WAITLISTED"
	AffiliateActive     AffiliateStatus = "ACTIVE"
	AffiliateSuspended  AffiliateStatus = "SUSPENDED"
	AffiliateRejected   AffiliateStatus = "REJECTED"

	KindBuyer     UserKind = "buyer"
	KindSupplier  UserKind = "supplier"
	KindLogistics UserKind = "logistics"
	KindAdmin     UserKind = "admin"

	RoleCFO     Role = "cfo"
	RoleCEO     Role = "ceo"
	RoleHR      Role = "hr"
	RoleManager Role = "manager"
)

// MaxActiveAffiliates - жёсткий лимит одновременно активных партнёров
const MaxActiveAffiliates = 50

// Сущность пользователя. Контактные поля раскрываются только через Reveal Gate.
type User struct {
	ID           string    `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Company      string    `db:"company" json:"company"`
	Phone        string    `db:"phone" json:"-"`
	Email        string    `db:"email" json:"-"`
	City         string    `db:"city" json:"city"`
	Address      string    `db:"address" json:"-"`
	Kind         UserKind  `db:"kind" json:"kind"`
	PasswordHash string    `db:"password_hash" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
}

// Публичный профиль пользователя: без имени, компании и контактов
type PublicProfile struct {
	ID        string    `json:"id"`
	Kind      UserKind  `json:"kind"`
	City      string    `json:"city"`
	CreatedAt time.Time `json:"createdAt"`
}

// Сущность заявки (RFQ)
type Requirement struct {
	ID               string            `db:"id" json:"id"`
	BuyerID          string            `db:"buyer_id" json:"buyerId"`
	Title            string            `db:"title" json:"title"`
	Category         string            `db:"category" json:"category"`
	Quantity         float64           `db:"quantity" json:"quantity"`
	Unit             string            `db:"unit" json:"unit"`
	DeliveryLocation string            `db:"delivery_location" json:"deliveryLocation"`
	Deadline         time.Time         `db:"deadline" json:"deadline"`
	Status           RequirementStatus `db:"status" json:"status"`
	CreatedAt        time.Time         `db:"created_at" json:"createdAt"`
}

// Сущность предложения
type Bid struct {
	ID            string    `db:"id" json:"id"`
	RequirementID string    `db:"requirement_id" json:"requirementId"`
	SupplierID    string    `db:"supplier_id" json:"supplierId"`
	BidAmount     float64   `db:"bid_amount" json:"bidAmount"`
	ServiceFee    float64   `db:"service_fee" json:"serviceFee"`
	TotalAmount   float64   `db:"total_amount" json:"totalAmount"`
	DeliveryDays  int       `db:"delivery_days" json:"deliveryDays"`
	Status        BidStatus `db:"status" json:"status"`
	Terms         *string   `db:"terms" json:"terms,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"createdAt"`
}

// Обезличенное предложение для листинга
type BidView struct {
	ID            string    `db:"id" json:"id"`
	RequirementID string    `db:"requirement_id" json:"requirementId"`
	SupplierCode  string    `db:"-" json:"supplierCode"`
	SupplierCity  string    `db:"supplier_city" json:"supplierCity"`
	BidAmount     float64   `db:"bid_amount" json:"bidAmount"`
	ServiceFee    float64   `db:"service_fee" json:"serviceFee"`
	TotalAmount   float64   `db:"total_amount" json:"totalAmount"`
	DeliveryDays  int       `db:"delivery_days" json:"deliveryDays"`
	Status        BidStatus `db:"status" json:"status"`
	Terms         *string   `db:"terms" json:"terms,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"createdAt"`
	SupplierID    string    `db:"supplier_id" json:"-"`
}

// Сущность запроса на раскрытие контактов
type RevealRequest struct {
	ID            string       `db:"id" json:"id"`
	RequirementID string       `db:"requirement_id" json:"requirementId"`
	SupplierID    string       `db:"supplier_id" json:"supplierId"`
	BidID         string       `db:"bid_id" json:"bidId"`
	BuyerID       string       `db:"buyer_id" json:"buyerId"`
	Status        RevealStatus `db:"status" json:"status"`
	FeeAmount     float64      `db:"fee_amount" json:"feeAmount"`
	PaymentRef    *string      `db:"payment_ref" json:"paymentRef,omitempty"`
	CreatedAt     time.Time    `db:"created_at" json:"createdAt"`
	RequestedAt   *time.Time   `db:"requested_at" json:"requestedAt,omitempty"`
	PaidAt        *time.Time   `db:"paid_at" json:"paidAt,omitempty"`
	RevealedAt    *time.Time   `db:"revealed_at" json:"revealedAt,omitempty"`
}

// Контакты поставщика; отдаются только по раскрытому запросу
type SupplierContact struct {
	SupplierID string `db:"id" json:"supplierId"`
	Name       string `db:"name" json:"name"`
	Company    string `db:"company" json:"company"`
	Phone      string `db:"phone" json:"phone"`
	Email      string `db:"email" json:"email"`
}

// Сущность партнёра
type Affiliate struct {
	ID            string          `db:"id" json:"id"`
	UserID        string          `db:"user_id" json:"userId"`
	Status        AffiliateStatus `db:"status" json:"status"`
	QueuePosition *int            `db:"queue_position" json:"queuePosition,omitempty"`
	JoinedAt      time.Time       `db:"joined_at" json:"joinedAt"`
	ActivatedAt   *time.Time      `db:"activated_at" json:"activatedAt,omitempty"`
	DeactivatedAt *time.Time      `db:"deactivated_at" json:"deactivatedAt,omitempty"`
}

// Результат FIFO-активации. LimitReached - штатный исход, не ошибка.
type ActivationResult struct {
	LimitReached bool
	Affiliate    Affiliate
}

// Событие аудита
type AuditEvent struct {
	ID        string    `db:"id" json:"id"`
	Action    string    `db:"action" json:"action"`
	ActorID   *string   `db:"actor_id" json:"actorId,omitempty"`
	Role      *string   `db:"role" json:"role,omitempty"`
	Reason    *string   `db:"reason" json:"reason,omitempty"`
	Meta      *string   `db:"meta" json:"meta,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}
