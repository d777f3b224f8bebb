package services

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/hypernova-labs/storefront-service/internal/models"
	"github.com/hypernova-labs/storefront-service/internal/state"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

type fakeRepository struct {
	mu       sync.Mutex
	orders   []models.CheckoutOrder
	drafts   []models.DraftRequest
	invoices []models.Invoice
	err      error
}

func (r *fakeRepository) Checkout(_ context.Context, order models.CheckoutOrder) (*models.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders = append(r.orders, order)
	if r.err != nil {
		return nil, r.err
	}
	return &models.Invoice{
		ID:       "inv-" + order.CartID,
		Number:   "FAC-000001",
		Customer: order.Customer,
		Status:   models.InvoiceStatusIssued,
		Total:    decimal.RequireFromString("23.8"),
	}, nil
}

func (r *fakeRepository) CreateDraft(_ context.Context, req models.DraftRequest) (*models.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.drafts = append(r.drafts, req)
	if r.err != nil {
		return nil, r.err
	}
	return &models.Invoice{ID: "draft-1", Number: "BOR-000001", Customer: req.Customer, Status: models.InvoiceStatusDraft}, nil
}

func (r *fakeRepository) ListByUser(_ context.Context, userID *string) ([]models.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	return r.invoices, nil
}

func (r *fakeRepository) GetByID(_ context.Context, id string) (*models.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.invoices {
		if r.invoices[i].ID == id {
			return &r.invoices[i], nil
		}
	}
	return nil, models.ErrInvoiceNotFound
}

type fakeProfiles struct {
	profile *models.UserProfile
}

func (p fakeProfiles) Profile(context.Context, string) (*models.UserProfile, error) {
	return p.profile, nil
}

type fakeEvents struct {
	mu        sync.Mutex
	published []string
}

func (e *fakeEvents) Publish(_ context.Context, invoice *models.Invoice) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.published = append(e.published, invoice.Number)
	return nil
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (m *fakeMailer) SendInvoiceReceipt(invoice *models.Invoice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, invoice.Customer.Email)
	return m.err
}

func newTestFlow(repo *fakeRepository, profile *models.UserProfile) (*InvoiceFlow, *fakeEvents, *fakeMailer) {
	events := &fakeEvents{}
	mailer := &fakeMailer{}
	flow := NewInvoiceFlow("session-1", FlowDeps{
		Repository: repo,
		Profiles:   fakeProfiles{profile: profile},
		Events:     events,
		Mailer:     mailer,
		Timeout:    time.Second,
		Logger:     quietLogger(),
	})
	return flow, events, mailer
}

func TestCheckoutInsufficientStockThenReset(t *testing.T) {
	flow, events, mailer := newTestFlow(&fakeRepository{err: errors.New("insufficient stock")}, nil)
	defer flow.Close()

	flow.Checkout("cart-1")
	flow.Wait()

	current := flow.CheckoutState()
	assert.Equal(t, state.KindError, current.Kind)
	assert.Equal(t, "insufficient stock", current.Message)
	assert.Empty(t, events.published)
	assert.Empty(t, mailer.sent)

	flow.ResetCheckout()
	assert.Equal(t, state.KindIdle, flow.CheckoutState().Kind)
}

func TestCheckoutSnapshotsSessionProfile(t *testing.T) {
	repo := &fakeRepository{}
	profile := &models.UserProfile{UserID: "u-1", Username: "ana", Email: "ana@example.com"}
	flow, events, mailer := newTestFlow(repo, profile)
	defer flow.Close()

	flow.Checkout("cart-1")
	flow.Wait()

	current := flow.CheckoutState()
	require.Equal(t, state.KindSuccess, current.Kind)
	assert.Equal(t, "inv-cart-1", current.Value.ID)

	require.Len(t, repo.orders, 1)
	order := repo.orders[0]
	assert.Equal(t, "cart-1", order.CartID)
	require.NotNil(t, order.Customer)
	assert.Equal(t, "ana", order.Customer.FirstName)
	require.NotNil(t, order.CreatedBy)
	assert.Equal(t, "u-1", *order.CreatedBy)

	assert.Equal(t, []string{"FAC-000001"}, events.published)
	assert.Equal(t, []string{"ana@example.com"}, mailer.sent)
}

func TestCheckoutReceiptFailureKeepsSuccess(t *testing.T) {
	profile := &models.UserProfile{UserID: "u-1", Username: "ana", Email: "ana@example.com"}
	flow, _, mailer := newTestFlow(&fakeRepository{}, profile)
	defer flow.Close()
	mailer.err = errors.New("smtp down")

	flow.Checkout("cart-1")
	flow.Wait()

	assert.Equal(t, state.KindSuccess, flow.CheckoutState().Kind)
}

func TestCreateDraftSharesCheckoutState(t *testing.T) {
	repo := &fakeRepository{}
	profile := &models.UserProfile{UserID: "u-1", Username: "ana"}
	flow, events, mailer := newTestFlow(repo, profile)
	defer flow.Close()

	flow.CreateDraft([]models.DraftItemRequest{{ProductID: "p-1", Quantity: 2}})
	flow.Wait()

	current := flow.CheckoutState()
	require.Equal(t, state.KindSuccess, current.Kind)
	assert.Equal(t, models.InvoiceStatusDraft, current.Value.Status)

	require.Len(t, repo.drafts, 1)
	assert.Nil(t, repo.drafts[0].Customer, "profile without email yields no snapshot")
	require.NotNil(t, repo.drafts[0].CreatedBy)

	assert.Equal(t, []string{"BOR-000001"}, events.published)
	assert.Empty(t, mailer.sent)
}

func TestLoadInvoicesEmptyAndSuccess(t *testing.T) {
	repo := &fakeRepository{}
	flow, _, _ := newTestFlow(repo, nil)
	defer flow.Close()

	assert.Equal(t, state.KindIdle, flow.InvoicesState().Kind)

	flow.LoadInvoices(nil)
	flow.Wait()
	assert.Equal(t, state.KindEmpty, flow.InvoicesState().Kind)

	repo.mu.Lock()
	repo.invoices = []models.Invoice{{ID: "b"}, {ID: "a"}}
	repo.mu.Unlock()

	user := "u-1"
	flow.LoadInvoices(&user)
	flow.Wait()

	current := flow.InvoicesState()
	require.Equal(t, state.KindSuccess, current.Kind)
	require.Len(t, current.Value, 2)
	assert.Equal(t, "b", current.Value[0].ID)
	assert.Equal(t, "a", current.Value[1].ID)
}

func TestLoadDetail(t *testing.T) {
	repo := &fakeRepository{invoices: []models.Invoice{{ID: "inv-1", Number: "FAC-000001"}}}
	flow, _, _ := newTestFlow(repo, nil)
	defer flow.Close()

	flow.LoadDetail("inv-1")
	flow.Wait()
	require.Equal(t, state.KindSuccess, flow.DetailState().Kind)
	assert.Equal(t, "FAC-000001", flow.DetailState().Value.Number)

	flow.LoadDetail("missing")
	flow.Wait()
	assert.Equal(t, state.KindError, flow.DetailState().Kind)
	assert.Equal(t, models.ErrInvoiceNotFound.Error(), flow.DetailState().Message)

	flow.ResetDetail()
	assert.Equal(t, state.KindIdle, flow.DetailState().Kind)
}

func TestFlowsHaveIndependentState(t *testing.T) {
	flow, _, _ := newTestFlow(&fakeRepository{}, nil)
	defer flow.Close()

	flow.LoadInvoices(nil)
	flow.Wait()

	assert.Equal(t, state.KindEmpty, flow.InvoicesState().Kind)
	assert.Equal(t, state.KindIdle, flow.CheckoutState().Kind)
	assert.Equal(t, state.KindIdle, flow.DetailState().Kind)
}

func TestViewStreamsStates(t *testing.T) {
	flow, _, _ := newTestFlow(&fakeRepository{}, nil)
	defer flow.Close()

	view, err := flow.View(FlowCheckout)
	require.NoError(t, err)
	assert.Equal(t, FlowCheckout, view.Name())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stream := view.Stream(ctx)

	flow.Checkout("cart-1")

	var kinds []state.Kind
	timeout := time.After(2 * time.Second)
	for len(kinds) < 3 {
		select {
		case s := <-stream:
			kinds = append(kinds, s.(state.State[*models.Invoice]).Kind)
		case <-timeout:
			t.Fatalf("timed out, got %v", kinds)
		}
	}
	assert.Equal(t, []state.Kind{state.KindIdle, state.KindLoading, state.KindSuccess}, kinds)

	view.Reset()
	assert.Equal(t, state.KindIdle, flow.CheckoutState().Kind)
}

func TestViewUnknownFlow(t *testing.T) {
	flow, _, _ := newTestFlow(&fakeRepository{}, nil)
	defer flow.Close()

	_, err := flow.View("payments")
	assert.ErrorIs(t, err, ErrUnknownFlow)
}

func TestViewStreamEndsOnClose(t *testing.T) {
	flow, _, _ := newTestFlow(&fakeRepository{}, nil)

	view, err := flow.View(FlowInvoices)
	require.NoError(t, err)
	stream := view.Stream(context.Background())

	<-stream
	flow.Close()

	select {
	case _, ok := <-stream:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatalf("stream for %s not closed", view.Name())
	}
}
