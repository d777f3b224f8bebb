package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hypernova-labs/storefront-service/internal/models"
	"github.com/hypernova-labs/storefront-service/internal/services"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

type fakeSessions struct {
	mu       sync.Mutex
	sessions map[string]models.Session
}

func (s *fakeSessions) Save(_ context.Context, session models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = session
	return nil
}

func (s *fakeSessions) HasAccessToken(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	return ok && session.AccessToken != "", nil
}

func (s *fakeSessions) Profile(_ context.Context, id string) (*models.UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[id].Profile, nil
}

func (s *fakeSessions) Clear(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

type fakeCatalog struct{}

func (fakeCatalog) List(_ context.Context, filter models.ProductFilter) (*models.ProductPage, error) {
	return &models.ProductPage{Products: []models.Product{{ID: "p-1", Name: "Casco"}}, Total: 1, Page: filter.Page, Size: filter.Size}, nil
}

func (fakeCatalog) GetByID(_ context.Context, id string) (*models.Product, error) {
	if id != "p-1" {
		return nil, models.ErrProductNotFound
	}
	return &models.Product{ID: "p-1", Name: "Casco"}, nil
}

func (fakeCatalog) Stock(context.Context, string) (*models.ProductStock, error) {
	return &models.ProductStock{ProductID: "p-1", Total: 4}, nil
}

func (fakeCatalog) Categories(context.Context) ([]models.Category, error) {
	return nil, errors.New("db down")
}

type fakeCarts struct {
	created *string
}

func (f *fakeCarts) ListByUser(context.Context, string) ([]models.Cart, error) {
	return []models.Cart{}, nil
}

func (f *fakeCarts) GetByID(context.Context, string) (*models.Cart, error) {
	return nil, models.ErrCartNotFound
}

func (f *fakeCarts) Create(_ context.Context, _ models.CreateCartRequest, createdBy *string) (*models.Cart, error) {
	f.created = createdBy
	return &models.Cart{ID: "cart-1", CreatedBy: createdBy}, nil
}

func (f *fakeCarts) AddItem(_ context.Context, cartID string, item models.CartItemRequest) (*models.Cart, error) {
	return &models.Cart{ID: cartID, Items: []models.CartItem{{ProductID: item.ProductID, Quantity: item.Quantity}}}, nil
}

func (f *fakeCarts) RemoveItem(_ context.Context, cartID, _ string) (*models.Cart, error) {
	return &models.Cart{ID: cartID}, nil
}

func (f *fakeCarts) Clear(_ context.Context, cartID string) (*models.Cart, error) {
	return &models.Cart{ID: cartID}, nil
}

func (f *fakeCarts) Delete(context.Context, string) error {
	return models.ErrCartNotFound
}

func (f *fakeCarts) Merge(_ context.Context, req models.MergeCartRequest) (*models.MergeCartResponse, error) {
	return &models.MergeCartResponse{Merged: req.AnonCartID != nil, CartID: "cart-u"}, nil
}

type fakeDocuments struct{}

func (fakeDocuments) InvoicePDF(_ context.Context, id string) ([]byte, string, error) {
	if id != "inv-1" {
		return nil, "", models.ErrInvoiceNotFound
	}
	return []byte("%PDF-1.3"), "factura_FAC-000001.pdf", nil
}

type stockRepository struct{}

func (stockRepository) Checkout(context.Context, models.CheckoutOrder) (*models.Invoice, error) {
	return nil, models.ErrInsufficientStock
}

func (stockRepository) CreateDraft(_ context.Context, req models.DraftRequest) (*models.Invoice, error) {
	return &models.Invoice{ID: "draft-1", Number: "BOR-000001", Status: models.InvoiceStatusDraft}, nil
}

func (stockRepository) ListByUser(context.Context, *string) ([]models.Invoice, error) {
	return nil, nil
}

func (stockRepository) GetByID(_ context.Context, id string) (*models.Invoice, error) {
	return &models.Invoice{ID: id, Number: "FAC-000001"}, nil
}

type testServer struct {
	router   *gin.Engine
	sessions *fakeSessions
	carts    *fakeCarts
	manager  *services.SessionManager
}

func newTestServer(t *testing.T, limiter *SessionLimiter) *testServer {
	t.Helper()

	sessions := &fakeSessions{sessions: map[string]models.Session{
		"s-1": {ID: "s-1", AccessToken: "token", Profile: &models.UserProfile{UserID: "u-1", Username: "ana", Email: "ana@example.com"}},
	}}
	carts := &fakeCarts{}
	manager := services.NewSessionManager(services.FlowDeps{
		Repository: stockRepository{},
		Profiles:   sessions,
		Logger:     quietLogger(),
	}, time.Hour, nil, quietLogger())
	t.Cleanup(manager.Stop)

	router := gin.New()
	NewAPI(sessions, fakeCatalog{}, carts, fakeDocuments{}, manager, limiter, quietLogger()).RegisterRoutes(router)

	return &testServer{router: router, sessions: sessions, carts: carts, manager: manager}
}

func (s *testServer) do(method, path, session, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if session != "" {
		req.Header.Set(SessionHeader, session)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func flowStatus(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	body := decode(t, w)
	st, ok := body["state"].(map[string]any)
	require.True(t, ok, "missing state in %s", w.Body.String())
	return st
}

func TestSessionLifecycle(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(http.MethodGet, "/v1/session", "unknown", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "login", decode(t, w)["start_route"])

	w = s.do(http.MethodPost, "/v1/session", "", `{"access_token":"abc","profile":{"user_id":"u-2","username":"leo","email":"leo@example.com"}}`)
	require.Equal(t, http.StatusCreated, w.Code)
	created := decode(t, w)
	id, _ := created["session_id"].(string)
	require.NotEmpty(t, id)

	w = s.do(http.MethodGet, "/v1/session", id, "")
	body := decode(t, w)
	assert.Equal(t, true, body["authenticated"])
	assert.Equal(t, "store", body["start_route"])

	w = s.do(http.MethodDelete, "/v1/session", id, "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = s.do(http.MethodGet, "/v1/session", id, "")
	assert.Equal(t, "login", decode(t, w)["start_route"])
}

func TestSaveSessionRequiresToken(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(http.MethodPost, "/v1/session", "", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_REQUEST", decode(t, w)["error"].(map[string]any)["code"])
}

func TestSaveSessionIgnoresClientSessionID(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(http.MethodPost, "/v1/session", "", `{"session_id":"s-1","access_token":"other","profile":{"user_id":"u-9","username":"eve","email":"eve@example.com"}}`)
	require.Equal(t, http.StatusCreated, w.Code)
	id, _ := decode(t, w)["session_id"].(string)
	assert.NotEqual(t, "s-1", id)

	existing := s.sessions.sessions["s-1"]
	assert.Equal(t, "token", existing.AccessToken)
	assert.Equal(t, "u-1", existing.Profile.UserID)
}

func TestFlowsRequireAuthenticatedSession(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(http.MethodGet, "/v1/flows/checkout", "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodGet, "/v1/flows/checkout", "stranger", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCheckoutFlowErrorThenReset(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(http.MethodGet, "/v1/flows/checkout", "s-1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "idle", flowStatus(t, w)["status"])

	w = s.do(http.MethodPost, "/v1/flows/checkout", "s-1", `{"cart_id":"cart-1"}`)
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "loading", flowStatus(t, w)["status"])

	s.manager.Flow("s-1").Wait()

	w = s.do(http.MethodGet, "/v1/flows/checkout", "s-1", "")
	st := flowStatus(t, w)
	assert.Equal(t, "error", st["status"])
	assert.Equal(t, "insufficient stock", st["message"])

	w = s.do(http.MethodDelete, "/v1/flows/checkout", "s-1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "idle", flowStatus(t, w)["status"])
}

func TestInvoiceFlowsWithOptionalBody(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(http.MethodPost, "/v1/flows/invoices", "s-1", "")
	require.Equal(t, http.StatusAccepted, w.Code)
	s.manager.Flow("s-1").Wait()

	w = s.do(http.MethodGet, "/v1/flows/invoices", "s-1", "")
	assert.Equal(t, "empty", flowStatus(t, w)["status"])

	w = s.do(http.MethodPost, "/v1/flows/invoice-detail", "s-1", `{"invoice_id":"inv-9"}`)
	require.Equal(t, http.StatusAccepted, w.Code)
	s.manager.Flow("s-1").Wait()

	w = s.do(http.MethodGet, "/v1/flows/invoice-detail", "s-1", "")
	st := flowStatus(t, w)
	assert.Equal(t, "success", st["status"])
	assert.Equal(t, "inv-9", st["data"].(map[string]any)["id"])
}

func TestDraftFlowValidatesItems(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(http.MethodPost, "/v1/flows/checkout/draft", "s-1", `{"items":[]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPost, "/v1/flows/checkout/draft", "s-1", `{"items":[{"product_id":"p-1","quantity":2}]}`)
	require.Equal(t, http.StatusAccepted, w.Code)
	s.manager.Flow("s-1").Wait()

	w = s.do(http.MethodGet, "/v1/flows/checkout", "s-1", "")
	assert.Equal(t, "success", flowStatus(t, w)["status"])
}

func TestUnknownFlow(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(http.MethodGet, "/v1/flows/payments", "s-1", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestFlowRateLimit(t *testing.T) {
	s := newTestServer(t, NewSessionLimiter(1, 1))

	w := s.do(http.MethodGet, "/v1/flows/checkout", "s-1", "")
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(http.MethodGet, "/v1/flows/checkout", "s-1", "")
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "RATE_LIMITED", decode(t, w)["error"].(map[string]any)["code"])
}

func TestSweepReleasesSessionLimiters(t *testing.T) {
	limiter := NewSessionLimiter(10, 10)
	manager := services.NewSessionManager(services.FlowDeps{
		Repository: stockRepository{},
		Profiles:   &fakeSessions{sessions: map[string]models.Session{}},
		Logger:     quietLogger(),
	}, time.Nanosecond, nil, quietLogger())
	defer manager.Stop()
	manager.OnExpire(limiter.Forget)

	for i := 0; i < 100; i++ {
		id := fmt.Sprintf("s-%d", i)
		manager.Flow(id)
		limiter.Allow(id)
	}
	require.Equal(t, 100, limiter.Len())

	time.Sleep(time.Millisecond)
	assert.Equal(t, 100, manager.Sweep())
	assert.Equal(t, 0, manager.Len())
	assert.Equal(t, 0, limiter.Len())
}

func TestStreamFlowEndsWhenSessionDropped(t *testing.T) {
	s := newTestServer(t, nil)
	s.manager.Flow("s-1")

	go func() {
		time.Sleep(50 * time.Millisecond)
		s.manager.Drop("s-1")
	}()

	w := s.do(http.MethodGet, "/v1/flows/invoices/events", "s-1", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "event:state")
	assert.Contains(t, w.Body.String(), `"status":"idle"`)
}

func TestCatalogEndpoints(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(http.MethodGet, "/v1/products?q=casco&size=5", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(5), decode(t, w)["size"])

	w = s.do(http.MethodGet, "/v1/products/p-9", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(http.MethodGet, "/v1/products/p-1/stock", "", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(http.MethodGet, "/v1/categories", "", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "INTERNAL", decode(t, w)["error"].(map[string]any)["code"])
}

func TestCartEndpoints(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(http.MethodPost, "/v1/carts", "s-1", `{"items":[]}`)
	require.Equal(t, http.StatusCreated, w.Code)
	require.NotNil(t, s.carts.created)
	assert.Equal(t, "u-1", *s.carts.created)

	w = s.do(http.MethodGet, "/v1/carts/missing", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", decode(t, w)["error"].(map[string]any)["code"])

	w = s.do(http.MethodPost, "/v1/carts/cart-1/items", "", `{"product_id":"p-1","quantity":0}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPost, "/v1/carts/cart-1/items", "", `{"product_id":"p-1","quantity":2}`)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(http.MethodDelete, "/v1/carts/cart-1", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(http.MethodPost, "/v1/carts/merge", "", `{"user_id":"u-1","anon_cart_id":"cart-a"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["merged"])
}

func TestDownloadInvoicePDF(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(http.MethodGet, "/v1/invoices/inv-1/pdf", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "factura_FAC-000001.pdf")

	w = s.do(http.MethodGet, "/v1/invoices/nope/pdf", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
