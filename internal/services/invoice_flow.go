package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hypernova-labs/storefront-service/internal/models"
	"github.com/hypernova-labs/storefront-service/internal/state"
	"github.com/sirupsen/logrus"
)

// Nombres de los flujos expuestos por sesión
const (
	FlowCheckout      = "checkout"
	FlowInvoices      = "invoices"
	FlowInvoiceDetail = "invoice-detail"
)

// ErrUnknownFlow indica un nombre de flujo inexistente
var ErrUnknownFlow = errors.New("unknown flow")

const sideEffectTimeout = 30 * time.Second

// InvoiceRepository es el acceso a facturas que usan los flujos
type InvoiceRepository interface {
	Checkout(ctx context.Context, order models.CheckoutOrder) (*models.Invoice, error)
	CreateDraft(ctx context.Context, req models.DraftRequest) (*models.Invoice, error)
	ListByUser(ctx context.Context, userID *string) ([]models.Invoice, error)
	GetByID(ctx context.Context, id string) (*models.Invoice, error)
}

// ProfileStore entrega el perfil autenticado de una sesión
type ProfileStore interface {
	Profile(ctx context.Context, sessionID string) (*models.UserProfile, error)
}

// EventPublisher publica eventos de facturas creadas
type EventPublisher interface {
	Publish(ctx context.Context, invoice *models.Invoice) error
}

// ReceiptMailer envía el comprobante de una factura
type ReceiptMailer interface {
	SendInvoiceReceipt(invoice *models.Invoice) error
}

// FlowDeps agrupa las dependencias compartidas por todos los flujos.
// Events y Mailer son opcionales.
type FlowDeps struct {
	Repository InvoiceRepository
	Profiles   ProfileStore
	Events     EventPublisher
	Mailer     ReceiptMailer
	Recorder   state.Recorder
	Timeout    time.Duration
	Logger     *logrus.Logger
}

// CheckoutInput es la entrada del controlador de checkout: un carrito o un borrador
type CheckoutInput struct {
	CartID string
	Draft  *models.DraftRequest
}

// InvoiceFlow agrupa los controladores de facturación de una sesión
type InvoiceFlow struct {
	sessionID string
	deps      FlowDeps
	logger    *logrus.Logger
	now       func() time.Time

	checkout *state.Controller[CheckoutInput, *models.Invoice]
	list     *state.Controller[*string, []models.Invoice]
	detail   *state.Controller[string, *models.Invoice]

	effects sync.WaitGroup
}

// NewInvoiceFlow crea los tres controladores de la sesión, todos en Idle
func NewInvoiceFlow(sessionID string, deps FlowDeps) *InvoiceFlow {
	if deps.Logger == nil {
		deps.Logger = logrus.StandardLogger()
	}

	f := &InvoiceFlow{
		sessionID: sessionID,
		deps:      deps,
		logger:    deps.Logger,
		now:       time.Now,
	}

	opts := []state.Option{state.WithLogger(deps.Logger), state.WithTimeout(deps.Timeout)}
	if deps.Recorder != nil {
		opts = append(opts, state.WithRecorder(deps.Recorder))
	}

	f.checkout = state.New(FlowCheckout, f.runCheckout, opts...)
	f.list = state.New(FlowInvoices, f.runList,
		append(opts, state.WithEmpty(func(invoices []models.Invoice) bool { return len(invoices) == 0 }))...)
	f.detail = state.New(FlowInvoiceDetail, f.runDetail, opts...)

	return f
}

// SessionID retorna la sesión dueña del flujo
func (f *InvoiceFlow) SessionID() string {
	return f.sessionID
}

// Checkout factura el carrito indicado
func (f *InvoiceFlow) Checkout(cartID string) {
	f.checkout.Trigger(CheckoutInput{CartID: cartID})
}

// CreateDraft crea un borrador de factura con las líneas indicadas
func (f *InvoiceFlow) CreateDraft(items []models.DraftItemRequest) {
	f.checkout.Trigger(CheckoutInput{Draft: &models.DraftRequest{Items: items}})
}

// LoadInvoices lista las facturas, opcionalmente de un usuario
func (f *InvoiceFlow) LoadInvoices(userID *string) {
	f.list.Trigger(userID)
}

// LoadDetail carga una factura
func (f *InvoiceFlow) LoadDetail(invoiceID string) {
	f.detail.Trigger(invoiceID)
}

func (f *InvoiceFlow) CheckoutState() state.State[*models.Invoice] {
	return f.checkout.Current()
}

func (f *InvoiceFlow) InvoicesState() state.State[[]models.Invoice] {
	return f.list.Current()
}

func (f *InvoiceFlow) DetailState() state.State[*models.Invoice] {
	return f.detail.Current()
}

// ResetCheckout, ResetInvoices y ResetDetail vuelven cada flujo a Idle
func (f *InvoiceFlow) ResetCheckout() { f.checkout.Reset() }

func (f *InvoiceFlow) ResetInvoices() { f.list.Reset() }

func (f *InvoiceFlow) ResetDetail() { f.detail.Reset() }

// View retorna la vista genérica de un flujo por nombre
func (f *InvoiceFlow) View(name string) (FlowView, error) {
	switch name {
	case FlowCheckout:
		return controllerView[CheckoutInput, *models.Invoice]{f.checkout}, nil
	case FlowInvoices:
		return controllerView[*string, []models.Invoice]{f.list}, nil
	case FlowInvoiceDetail:
		return controllerView[string, *models.Invoice]{f.detail}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownFlow, name)
	}
}

// Wait bloquea hasta que terminen las operaciones y los efectos pendientes
func (f *InvoiceFlow) Wait() {
	f.checkout.Wait()
	f.list.Wait()
	f.detail.Wait()
	f.effects.Wait()
}

// Close cancela las operaciones en curso y cierra las suscripciones
func (f *InvoiceFlow) Close() {
	f.checkout.Close()
	f.list.Close()
	f.detail.Close()
}

func (f *InvoiceFlow) runCheckout(ctx context.Context, in CheckoutInput) (*models.Invoice, error) {
	profile, err := f.deps.Profiles.Profile(ctx, f.sessionID)
	if err != nil {
		return nil, fmt.Errorf("error loading session profile: %w", err)
	}

	customer := profile.Snapshot(f.now())
	var createdBy *string
	if profile != nil && profile.UserID != "" {
		createdBy = &profile.UserID
	}

	var invoice *models.Invoice
	if in.Draft != nil {
		req := *in.Draft
		req.Customer = customer
		req.CreatedBy = createdBy
		invoice, err = f.deps.Repository.CreateDraft(ctx, req)
	} else {
		invoice, err = f.deps.Repository.Checkout(ctx, models.CheckoutOrder{
			CartID:    in.CartID,
			Customer:  customer,
			CreatedBy: createdBy,
		})
	}
	if err != nil {
		return nil, err
	}

	f.afterInvoice(invoice)
	return invoice, nil
}

func (f *InvoiceFlow) runList(ctx context.Context, userID *string) ([]models.Invoice, error) {
	return f.deps.Repository.ListByUser(ctx, userID)
}

func (f *InvoiceFlow) runDetail(ctx context.Context, id string) (*models.Invoice, error) {
	return f.deps.Repository.GetByID(ctx, id)
}

// afterInvoice publica el evento y envía el comprobante en segundo plano.
// Los errores sólo se registran.
func (f *InvoiceFlow) afterInvoice(invoice *models.Invoice) {
	if f.deps.Events == nil && f.deps.Mailer == nil {
		return
	}

	f.effects.Add(1)
	go func() {
		defer f.effects.Done()

		fields := logrus.Fields{
			"session_id": f.sessionID,
			"invoice_id": invoice.ID,
			"number":     invoice.Number,
		}

		if f.deps.Events != nil {
			ctx, cancel := context.WithTimeout(context.Background(), sideEffectTimeout)
			if err := f.deps.Events.Publish(ctx, invoice); err != nil {
				f.logger.WithFields(fields).WithError(err).Warn("Failed to publish invoice event")
			}
			cancel()
		}

		if f.deps.Mailer != nil && invoice.Status != models.InvoiceStatusDraft &&
			invoice.Customer != nil && invoice.Customer.Email != "" {
			if err := f.deps.Mailer.SendInvoiceReceipt(invoice); err != nil {
				f.logger.WithFields(fields).WithError(err).Warn("Failed to send invoice receipt")
			}
		}
	}()
}

// FlowView expone un controlador sin su tipo concreto
type FlowView interface {
	Name() string
	State() any
	Reset()
	Stream(ctx context.Context) <-chan any
}

type controllerView[In, Out any] struct {
	c *state.Controller[In, Out]
}

func (v controllerView[In, Out]) Name() string { return v.c.Name() }

func (v controllerView[In, Out]) State() any { return v.c.Current() }

func (v controllerView[In, Out]) Reset() { v.c.Reset() }

// Stream reenvía los estados hasta que se cancela ctx o se cierra el controlador
func (v controllerView[In, Out]) Stream(ctx context.Context) <-chan any {
	states, unsubscribe := v.c.Subscribe()
	out := make(chan any)

	go func() {
		defer close(out)
		defer unsubscribe()
		for {
			select {
			case <-ctx.Done():
				return
			case s, ok := <-states:
				if !ok {
					return
				}
				select {
				case out <- s:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out
}
