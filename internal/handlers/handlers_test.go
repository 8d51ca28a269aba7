package handlers_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"procure/internal/handlers"
	"procure/internal/handlers/testutils"
	"procure/internal/metrics"
	"procure/internal/rolesession"
	"procure/models"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

// MockStorage реализует StorageInterface
type MockStorage struct {
	users  map[string]*models.User
	audits []models.AuditEvent

	GetRequirementFunc        func(ctx context.Context, id string) (*models.Requirement, error)
	ListRequirementsFunc      func(ctx context.Context, statuses []models.RequirementStatus, limit, offset int) ([]models.Requirement, error)
	SubmitBidFunc             func(ctx context.Context, b *models.Bid) error
	ListBidsFunc              func(ctx context.Context, requirementID, supplierID string, order models.BidOrder) ([]models.BidView, error)
	AcceptBidFunc             func(ctx context.Context, requirementID, bidID, buyerID string) (*models.Requirement, *models.Bid, error)
	RequestRevealFunc         func(ctx context.Context, in models.RevealInput) (*models.RevealRequest, bool, error)
	GetRevealedContactFunc    func(ctx context.Context, requirementID, supplierID, buyerID string) (*models.SupplierContact, error)
	ActivateFifoFunc          func(ctx context.Context, id string) (models.ActivationResult, error)
	UpdateAffiliateStatusFunc func(ctx context.Context, id string, to models.AffiliateStatus) (*models.Affiliate, error)
}

func newMock(users ...models.User) *MockStorage {
	m := &MockStorage{users: make(map[string]*models.User)}
	for i := range users {
		m.users[users[i].ID] = &users[i]
	}
	return m
}

func (m *MockStorage) CreateUser(ctx context.Context, u *models.User) error {
	u.ID = "new-user"
	return nil
}
func (m *MockStorage) GetUser(ctx context.Context, id string) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, models.E("getUser", models.ErrNotFound, "user not found")
}

func (m *MockStorage) CreateRequirement(ctx context.Context, r *models.Requirement) error {
	r.ID = "req-1"
	r.Status = models.RequirementActive
	return nil
}
func (m *MockStorage) GetRequirement(ctx context.Context, id string) (*models.Requirement, error) {
	if m.GetRequirementFunc != nil {
		return m.GetRequirementFunc(ctx, id)
	}
	return &models.Requirement{ID: id, BuyerID: "buyer", Title: "Steel", Status: models.RequirementActive}, nil
}
func (m *MockStorage) ListRequirements(ctx context.Context, statuses []models.RequirementStatus, limit, offset int) ([]models.Requirement, error) {
	if m.ListRequirementsFunc != nil {
		return m.ListRequirementsFunc(ctx, statuses, limit, offset)
	}
	return []models.Requirement{{ID: "req-1", Title: "Sample Requirement"}}, nil
}
func (m *MockStorage) CloseRequirement(ctx context.Context, id, actorID string, target models.RequirementStatus) (*models.Requirement, error) {
	return &models.Requirement{ID: id, Status: target}, nil
}

func (m *MockStorage) SubmitBid(ctx context.Context, b *models.Bid) error {
	if m.SubmitBidFunc != nil {
		return m.SubmitBidFunc(ctx, b)
	}
	b.ID = "bid-1"
	b.Status = models.BidPending
	return nil
}
func (m *MockStorage) GetBid(ctx context.Context, id string) (*models.Bid, error) {
	return &models.Bid{ID: id}, nil
}
func (m *MockStorage) ListBids(ctx context.Context, requirementID, supplierID string, order models.BidOrder) ([]models.BidView, error) {
	if m.ListBidsFunc != nil {
		return m.ListBidsFunc(ctx, requirementID, supplierID, order)
	}
	return []models.BidView{}, nil
}
func (m *MockStorage) AcceptBid(ctx context.Context, requirementID, bidID, buyerID string) (*models.Requirement, *models.Bid, error) {
	if m.AcceptBidFunc != nil {
		return m.AcceptBidFunc(ctx, requirementID, bidID, buyerID)
	}
	return &models.Requirement{ID: requirementID, Status: models.RequirementAwarded},
		&models.Bid{ID: bidID, Status: models.BidAccepted}, nil
}

func (m *MockStorage) RequestReveal(ctx context.Context, in models.RevealInput) (*models.RevealRequest, bool, error) {
	if m.RequestRevealFunc != nil {
		return m.RequestRevealFunc(ctx, in)
	}
	return &models.RevealRequest{RequirementID: in.RequirementID, SupplierID: in.SupplierID, Status: models.RevealRequested, FeeAmount: in.Fee}, true, nil
}
func (m *MockStorage) GetReveal(ctx context.Context, requirementID, supplierID, buyerID string) (*models.RevealRequest, error) {
	return &models.RevealRequest{RequirementID: requirementID, SupplierID: supplierID, Status: models.RevealRequested}, nil
}
func (m *MockStorage) AdvanceReveal(ctx context.Context, requirementID, supplierID, buyerID string, target models.RevealStatus, paymentRef *string) (*models.RevealRequest, error) {
	return &models.RevealRequest{RequirementID: requirementID, SupplierID: supplierID, Status: target, PaymentRef: paymentRef}, nil
}
func (m *MockStorage) GetRevealedContact(ctx context.Context, requirementID, supplierID, buyerID string) (*models.SupplierContact, error) {
	if m.GetRevealedContactFunc != nil {
		return m.GetRevealedContactFunc(ctx, requirementID, supplierID, buyerID)
	}
	return nil, models.E("getRevealedContact", models.ErrForbidden, "")
}

func (m *MockStorage) CreateAffiliate(ctx context.Context, a *models.Affiliate) error {
	a.ID = "aff-1"
	a.Status = models.AffiliatePending
	return nil
}
func (m *MockStorage) GetAffiliate(ctx context.Context, id string) (*models.Affiliate, error) {
	return &models.Affiliate{ID: id, Status: models.AffiliatePending}, nil
}
func (m *MockStorage) ListAffiliates(ctx context.Context, status models.AffiliateStatus) ([]models.Affiliate, error) {
	return []models.Affiliate{}, nil
}
func (m *MockStorage) ActivateFifo(ctx context.Context, id string) (models.ActivationResult, error) {
	if m.ActivateFifoFunc != nil {
		return m.ActivateFifoFunc(ctx, id)
	}
	pos := 1
	return models.ActivationResult{Affiliate: models.Affiliate{ID: id, Status: models.AffiliateActive, QueuePosition: &pos}}, nil
}
func (m *MockStorage) UpdateAffiliateStatus(ctx context.Context, id string, to models.AffiliateStatus) (*models.Affiliate, error) {
	if m.UpdateAffiliateStatusFunc != nil {
		return m.UpdateAffiliateStatusFunc(ctx, id, to)
	}
	return &models.Affiliate{ID: id, Status: to}, nil
}

func (m *MockStorage) SetRolePin(ctx context.Context, userID string, role models.Role, pinHash string) error {
	return nil
}
func (m *MockStorage) GetRolePin(ctx context.Context, userID string, role models.Role) (string, bool, error) {
	return "", false, nil
}
func (m *MockStorage) InsertAudit(ctx context.Context, e *models.AuditEvent) error {
	m.audits = append(m.audits, *e)
	return nil
}

var (
	buyer    = models.User{ID: "buyer", Name: "Buyer", Kind: models.KindBuyer}
	supplier = models.User{ID: "supplier", Name: "Supplier", Kind: models.KindSupplier}
	admin    = models.User{ID: "admin", Name: "Admin", Kind: models.KindAdmin}
)

func newTestHandler(store handlers.StorageInterface) *handlers.Handler {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := metrics.New()
	sessions := rolesession.New(store, 0, log, m)
	return handlers.NewHandler(store, sessions, m, log, handlers.Fees{BidServicePercent: 1.5, Reveal: 499})
}

func readBody(t *testing.T, res *http.Response) string {
	t.Helper()
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return string(body)
}

func TestPingHandler(t *testing.T) {
	handler := newTestHandler(newMock())
	w := httptest.NewRecorder()
	handler.PingHandler(w, httptest.NewRequest(http.MethodGet, "/api/ping", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "ok", w.Body.String())
}

func TestListRequirementsHandler(t *testing.T) {
	var gotLimit, gotOffset int
	var gotStatuses []models.RequirementStatus
	mockStore := newMock()
	mockStore.ListRequirementsFunc = func(ctx context.Context, statuses []models.RequirementStatus, limit, offset int) ([]models.Requirement, error) {
		gotStatuses, gotLimit, gotOffset = statuses, limit, offset
		return []models.Requirement{{ID: "req-1", Title: "Sample Requirement"}}, nil
	}
	handler := newTestHandler(mockStore)

	req := httptest.NewRequest(http.MethodGet, "/api/requirements?status=active,awarded&limit=100&offset=3", nil)
	w := httptest.NewRecorder()
	handler.ListRequirementsHandler(w, req)

	res := w.Result()
	body := readBody(t, res)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Contains(t, body, "Sample Requirement")
	require.Equal(t, 5, gotLimit)
	require.Equal(t, 3, gotOffset)
	require.Equal(t, []models.RequirementStatus{models.RequirementActive, models.RequirementAwarded}, gotStatuses)

	req = httptest.NewRequest(http.MethodGet, "/api/requirements?status=archived", nil)
	w = httptest.NewRecorder()
	handler.ListRequirementsHandler(w, req)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateRequirementHandler(t *testing.T) {
	handler := newTestHandler(newMock(buyer, supplier))
	deadline := time.Now().Add(48 * time.Hour).UTC().Format(time.RFC3339)
	reqBody := `{
        "title": "TMT bars",
        "category": "steel",
        "quantity": 20,
        "unit": "ton",
        "deliveryLocation": "Pune",
        "deadline": "` + deadline + `"
    }`

	req := httptest.NewRequest(http.MethodPost, "/api/requirements?userId=buyer", strings.NewReader(reqBody))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	handler.CreateRequirementHandler(w, req)
	res := w.Result()
	body := readBody(t, res)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Contains(t, body, `"status":"active"`)
	require.Contains(t, body, `"buyerId":"buyer"`)

	req = httptest.NewRequest(http.MethodPost, "/api/requirements?userId=supplier", strings.NewReader(reqBody))
	w = httptest.NewRecorder()
	handler.CreateRequirementHandler(w, req)
	require.Equal(t, http.StatusForbidden, w.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/requirements?userId=buyer", strings.NewReader(`{"title":"x"}`))
	w = httptest.NewRecorder()
	handler.CreateRequirementHandler(w, req)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSubmitBidHandler(t *testing.T) {
	var got models.Bid
	mockStore := newMock(buyer, supplier)
	mockStore.SubmitBidFunc = func(ctx context.Context, b *models.Bid) error {
		got = *b
		b.ID = "bid-1"
		return nil
	}
	handler := newTestHandler(mockStore)

	req := httptest.NewRequest(http.MethodPost, "/api/requirements/req-1/bids",
		strings.NewReader(`{"supplierId":"supplier","bidAmount":1000,"deliveryDays":7,"terms":"FOB"}`))
	req = testutils.WithChiURLParams(req, map[string]string{"requirementId": "req-1"})
	w := httptest.NewRecorder()
	handler.SubmitBidHandler(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "req-1", got.RequirementID)
	require.Equal(t, 15.0, got.ServiceFee)
	require.Equal(t, 1015.0, got.TotalAmount)
	require.Equal(t, 1.0, testutil.ToFloat64(handler.Metrics.BidSubmitted))
}

func TestSubmitBidHandler_NotActive(t *testing.T) {
	mockStore := newMock(buyer, supplier)
	mockStore.SubmitBidFunc = func(ctx context.Context, b *models.Bid) error {
		return models.E("submitBid", models.ErrInvalidState, "requirement is closed and no longer accepts bids")
	}
	handler := newTestHandler(mockStore)

	req := httptest.NewRequest(http.MethodPost, "/api/requirements/req-1/bids",
		strings.NewReader(`{"supplierId":"supplier","bidAmount":1000,"deliveryDays":7}`))
	req = testutils.WithChiURLParams(req, map[string]string{"requirementId": "req-1"})
	w := httptest.NewRecorder()
	handler.SubmitBidHandler(w, req)

	require.Equal(t, http.StatusConflict, w.Code)
	require.Contains(t, w.Body.String(), "no longer accepts bids")
}

func TestListBidsHandler_SealedForOthers(t *testing.T) {
	var filters []string
	mockStore := newMock(buyer, supplier)
	mockStore.ListBidsFunc = func(ctx context.Context, requirementID, supplierID string, order models.BidOrder) ([]models.BidView, error) {
		filters = append(filters, supplierID)
		require.Equal(t, models.OrderAmountDesc, order)
		return []models.BidView{{ID: "bid-1", SupplierCode: "SUP-ABCD", SupplierID: "supplier"}}, nil
	}
	handler := newTestHandler(mockStore)

	for _, user := range []string{"buyer", "supplier"} {
		req := httptest.NewRequest(http.MethodGet, "/api/requirements/req-1/bids?order=amount_desc&userId="+user, nil)
		req = testutils.WithChiURLParams(req, map[string]string{"requirementId": "req-1"})
		w := httptest.NewRecorder()
		handler.ListBidsHandler(w, req)
		require.Equal(t, http.StatusOK, w.Code)
		require.Contains(t, w.Body.String(), "SUP-ABCD")
		require.NotContains(t, w.Body.String(), `"supplierId"`)
	}
	require.Equal(t, []string{"", "supplier"}, filters)

	req := httptest.NewRequest(http.MethodGet, "/api/requirements/req-1/bids?order=cheapest&userId=buyer", nil)
	req = testutils.WithChiURLParams(req, map[string]string{"requirementId": "req-1"})
	w := httptest.NewRecorder()
	handler.ListBidsHandler(w, req)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAcceptBidHandler_Conflict(t *testing.T) {
	mockStore := newMock(buyer)
	mockStore.AcceptBidFunc = func(ctx context.Context, requirementID, bidID, buyerID string) (*models.Requirement, *models.Bid, error) {
		return nil, nil, models.E("acceptBid", models.ErrConflict, "this requirement has already been awarded")
	}
	handler := newTestHandler(mockStore)

	req := httptest.NewRequest(http.MethodPost, "/api/requirements/req-1/bids/bid-1/accept?userId=buyer", nil)
	req = testutils.WithChiURLParams(req, map[string]string{"requirementId": "req-1", "bidId": "bid-1"})
	w := httptest.NewRecorder()
	handler.AcceptBidHandler(w, req)

	require.Equal(t, http.StatusConflict, w.Code)
	require.JSONEq(t, `{"reason":"this requirement has already been awarded"}`, w.Body.String())
	require.Equal(t, 1.0, testutil.ToFloat64(handler.Metrics.BidAccept.WithLabelValues("conflict")))
}

func TestAcceptBidHandler_AnonymizedBid(t *testing.T) {
	sup := models.User{ID: "5f0c9a2e-0000-4000-8000-000000000001", Name: "Sigma", Company: "Sigma Ltd", City: "Indore", Kind: models.KindSupplier}
	mockStore := newMock(buyer, sup)
	mockStore.AcceptBidFunc = func(ctx context.Context, requirementID, bidID, buyerID string) (*models.Requirement, *models.Bid, error) {
		return &models.Requirement{ID: requirementID, Status: models.RequirementAwarded},
			&models.Bid{ID: bidID, RequirementID: requirementID, SupplierID: sup.ID, BidAmount: 900, Status: models.BidAccepted}, nil
	}
	handler := newTestHandler(mockStore)

	req := httptest.NewRequest(http.MethodPost, "/api/requirements/req-1/bids/bid-1/accept?userId=buyer", nil)
	req = testutils.WithChiURLParams(req, map[string]string{"requirementId": "req-1", "bidId": "bid-1"})
	w := httptest.NewRecorder()
	handler.AcceptBidHandler(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	require.Contains(t, body, `"supplierCode":"SUP-5F0C"`)
	require.Contains(t, body, `"supplierCity":"Indore"`)
	require.NotContains(t, body, sup.ID)
	require.NotContains(t, body, "Sigma")
}

func TestAcceptBidHandler_StoreFailure(t *testing.T) {
	mockStore := newMock(buyer)
	mockStore.AcceptBidFunc = func(ctx context.Context, requirementID, bidID, buyerID string) (*models.Requirement, *models.Bid, error) {
		return nil, nil, errors.New("connection reset")
	}
	handler := newTestHandler(mockStore)

	req := httptest.NewRequest(http.MethodPost, "/api/requirements/req-1/bids/bid-1/accept?userId=buyer", nil)
	req = testutils.WithChiURLParams(req, map[string]string{"requirementId": "req-1", "bidId": "bid-1"})
	w := httptest.NewRecorder()
	handler.AcceptBidHandler(w, req)

	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.NotContains(t, w.Body.String(), "connection reset")
}

func TestActorResolution(t *testing.T) {
	handler := newTestHandler(newMock(buyer))

	req := httptest.NewRequest(http.MethodPost, "/api/requirements/req-1/bids/bid-1/accept", nil)
	w := httptest.NewRecorder()
	handler.AcceptBidHandler(w, req)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Body.String(), "missing userId")

	req = httptest.NewRequest(http.MethodPost, "/api/requirements/req-1/bids/bid-1/accept?userId=ghost", nil)
	w = httptest.NewRecorder()
	handler.AcceptBidHandler(w, req)
	require.Equal(t, http.StatusForbidden, w.Code)
	require.JSONEq(t, `{"reason":"access denied"}`, w.Body.String())
}

func TestRevealedContactHandler_Forbidden(t *testing.T) {
	handler := newTestHandler(newMock(buyer))

	req := httptest.NewRequest(http.MethodGet, "/api/reveal-requests/req-1/supplier/contact?userId=buyer", nil)
	req = testutils.WithChiURLParams(req, map[string]string{"requirementId": "req-1", "supplierId": "supplier"})
	w := httptest.NewRecorder()
	handler.RevealedContactHandler(w, req)

	require.Equal(t, http.StatusForbidden, w.Code)
	require.JSONEq(t, `{"reason":"access denied"}`, w.Body.String())
}

func TestRequestRevealHandler_FromListingRow(t *testing.T) {
	var got models.RevealInput
	mockStore := newMock(buyer)
	mockStore.RequestRevealFunc = func(ctx context.Context, in models.RevealInput) (*models.RevealRequest, bool, error) {
		got = in
		return &models.RevealRequest{RequirementID: in.RequirementID, SupplierID: "supplier", BidID: in.BidID, Status: models.RevealRequested}, true, nil
	}
	handler := newTestHandler(mockStore)

	req := httptest.NewRequest(http.MethodPost, "/api/reveal-requests?userId=buyer",
		strings.NewReader(`{"requirementId":"req-1","bidId":"bid-1"}`))
	w := httptest.NewRecorder()
	handler.RequestRevealHandler(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Empty(t, got.SupplierID)
	require.Equal(t, "bid-1", got.BidID)
	require.Equal(t, 499.0, got.Fee)
	require.Contains(t, w.Body.String(), `"supplierId":"supplier"`)
	require.Equal(t, 1.0, testutil.ToFloat64(handler.Metrics.RevealTransition.WithLabelValues("requested")))
	require.Len(t, mockStore.audits, 1)
	require.Equal(t, "reveal.requested", mockStore.audits[0].Action)

	req = httptest.NewRequest(http.MethodPost, "/api/reveal-requests?userId=buyer", strings.NewReader(`{"requirementId":"req-1"}`))
	w = httptest.NewRecorder()
	handler.RequestRevealHandler(w, req)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRequestRevealHandler_ReplayIsSilent(t *testing.T) {
	mockStore := newMock(buyer)
	mockStore.RequestRevealFunc = func(ctx context.Context, in models.RevealInput) (*models.RevealRequest, bool, error) {
		return &models.RevealRequest{RequirementID: in.RequirementID, SupplierID: "supplier", BidID: in.BidID, Status: models.RevealPaid}, false, nil
	}
	handler := newTestHandler(mockStore)

	req := httptest.NewRequest(http.MethodPost, "/api/reveal-requests?userId=buyer",
		strings.NewReader(`{"requirementId":"req-1","bidId":"bid-1"}`))
	w := httptest.NewRecorder()
	handler.RequestRevealHandler(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"status":"paid"`)
	require.Equal(t, 0.0, testutil.ToFloat64(handler.Metrics.RevealTransition.WithLabelValues("requested")))
	require.Empty(t, mockStore.audits)
}

func TestGetUserHandler_PublicProfile(t *testing.T) {
	sup := models.User{ID: "supplier", Name: "Sigma", Company: "Sigma Ltd", City: "Indore", Phone: "+91", Email: "s@x.test", Kind: models.KindSupplier}
	handler := newTestHandler(newMock(buyer, sup))

	for _, q := range []string{"", "?userId=buyer"} {
		req := httptest.NewRequest(http.MethodGet, "/api/users/supplier"+q, nil)
		req = testutils.WithChiURLParams(req, map[string]string{"userId": "supplier"})
		w := httptest.NewRecorder()
		handler.GetUserHandler(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		require.JSONEq(t, `{"id":"supplier","kind":"supplier","city":"Indore","createdAt":"0001-01-01T00:00:00Z"}`, w.Body.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/api/users/supplier?userId=supplier", nil)
	req = testutils.WithChiURLParams(req, map[string]string{"userId": "supplier"})
	w := httptest.NewRecorder()
	handler.GetUserHandler(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"company":"Sigma Ltd"`)
	require.NotContains(t, w.Body.String(), "s@x.test")
}

func TestRevealPaymentHandler_Failure(t *testing.T) {
	handler := newTestHandler(newMock(buyer))

	req := httptest.NewRequest(http.MethodPost, "/api/reveal-requests/req-1/supplier/payment?userId=buyer",
		strings.NewReader(`{"paymentRef":"pay_1","success":false}`))
	req = testutils.WithChiURLParams(req, map[string]string{"requirementId": "req-1", "supplierId": "supplier"})
	w := httptest.NewRecorder()
	handler.RevealPaymentHandler(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"status":"requested"`)
	require.Contains(t, w.Body.String(), `"paymentFailed":true`)
}

func TestUpdateAffiliateStatusHandler_DirectActive(t *testing.T) {
	called := false
	mockStore := newMock(admin, buyer)
	mockStore.UpdateAffiliateStatusFunc = func(ctx context.Context, id string, to models.AffiliateStatus) (*models.Affiliate, error) {
		called = true
		return nil, nil
	}
	handler := newTestHandler(mockStore)

	req := httptest.NewRequest(http.MethodPatch, "/api/affiliates/aff-1/status?userId=admin", strings.NewReader(`{"status":"ACTIVE"}`))
	req = testutils.WithChiURLParams(req, map[string]string{"affiliateId": "aff-1"})
	w := httptest.NewRecorder()
	handler.UpdateAffiliateStatusHandler(w, req)

	require.Equal(t, http.StatusForbidden, w.Code)
	require.False(t, called)
	require.Len(t, mockStore.audits, 1)
	require.Equal(t, "affiliate.direct_active.rejected", mockStore.audits[0].Action)
	require.Equal(t, "admin", *mockStore.audits[0].ActorID)

	req = httptest.NewRequest(http.MethodPatch, "/api/affiliates/aff-1/status?userId=buyer", strings.NewReader(`{"status":"SUSPENDED"}`))
	req = testutils.WithChiURLParams(req, map[string]string{"affiliateId": "aff-1"})
	w = httptest.NewRecorder()
	handler.UpdateAffiliateStatusHandler(w, req)
	require.Equal(t, http.StatusForbidden, w.Code)
	require.False(t, called)
}

func TestActivateFifoHandler_LimitReached(t *testing.T) {
	mockStore := newMock(admin)
	mockStore.ActivateFifoFunc = func(ctx context.Context, id string) (models.ActivationResult, error) {
		return models.ActivationResult{LimitReached: true, Affiliate: models.Affiliate{ID: id, Status: models.AffiliatePending}}, nil
	}
	handler := newTestHandler(mockStore)

	req := httptest.NewRequest(http.MethodPost, "/api/affiliates/aff-51/activate-fifo?userId=admin", nil)
	req = testutils.WithChiURLParams(req, map[string]string{"affiliateId": "aff-51"})
	w := httptest.NewRecorder()
	handler.ActivateFifoHandler(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"status":"LIMIT_REACHED","affiliateId":"aff-51"}`, w.Body.String())
	require.Equal(t, 1.0, testutil.ToFloat64(handler.Metrics.AffiliateActivate.WithLabelValues("limit_reached")))
}

func TestActivateFifoHandler_Activated(t *testing.T) {
	handler := newTestHandler(newMock(admin))

	req := httptest.NewRequest(http.MethodPost, "/api/affiliates/aff-1/activate-fifo?userId=admin", nil)
	req = testutils.WithChiURLParams(req, map[string]string{"affiliateId": "aff-1"})
	w := httptest.NewRecorder()
	handler.ActivateFifoHandler(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"status":"ACTIVE","queuePosition":1,"affiliateId":"aff-1"}`, w.Body.String())
}

func TestVerifyRoleHandler_BadMethod(t *testing.T) {
	handler := newTestHandler(newMock(buyer))

	req := httptest.NewRequest(http.MethodPost, "/api/role-sessions/verify?userId=buyer",
		strings.NewReader(`{"role":"cfo","method":"otp","credential":"1234"}`))
	w := httptest.NewRecorder()
	handler.VerifyRoleHandler(w, req)
	require.Equal(t, http.StatusBadRequest, w.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/role-sessions/verify?userId=buyer",
		strings.NewReader(`{"role":"cfo","method":"pin","credential":"1234"}`))
	w = httptest.NewRecorder()
	handler.VerifyRoleHandler(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.JSONEq(t, `{"verified":false,"error":"verification failed"}`, w.Body.String())
}
