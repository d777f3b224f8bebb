package workflows

import (
	"context"
	"fmt"
	"time"

	"github.com/hypernova-labs/storefront-service/internal/config"
	"github.com/hypernova-labs/storefront-service/internal/models"
	"github.com/inngest/inngestgo"
	"github.com/sirupsen/logrus"
)

// Nombres de eventos publicados a Inngest
const (
	EventInvoiceIssued  = "storefront/invoice.issued"
	EventInvoiceDrafted = "storefront/invoice.drafted"
)

// EventSender es la parte de inngestgo.Client que usa el servicio
type EventSender interface {
	Send(ctx context.Context, evt any) (string, error)
}

// NewInngestClient crea el cliente de Inngest
func NewInngestClient(cfg *config.Config) (inngestgo.Client, error) {
	if cfg.Inngest.EventKey == "" {
		return nil, fmt.Errorf("INNGEST_EVENT_KEY not configured")
	}

	opts := inngestgo.ClientOpts{
		EventKey: &cfg.Inngest.EventKey,
		AppID:    cfg.Inngest.AppID,
	}
	if cfg.Inngest.SigningKey != "" {
		opts.SigningKey = &cfg.Inngest.SigningKey
	}

	client, err := inngestgo.NewClient(opts)
	if err != nil {
		return nil, fmt.Errorf("error creating Inngest client: %w", err)
	}
	return client, nil
}

// InvoiceEvents publica los eventos de facturas creadas
type InvoiceEvents struct {
	sender EventSender
	logger *logrus.Logger
}

// NewInvoiceEvents crea el publicador de eventos
func NewInvoiceEvents(sender EventSender, logger *logrus.Logger) *InvoiceEvents {
	return &InvoiceEvents{
		sender: sender,
		logger: logger,
	}
}

// EventFor construye el evento según el estado de la factura
func EventFor(invoice *models.Invoice) inngestgo.Event {
	name := EventInvoiceIssued
	if invoice.Status == models.InvoiceStatusDraft {
		name = EventInvoiceDrafted
	}

	data := map[string]any{
		"invoice_id":  invoice.ID,
		"number":      invoice.Number,
		"status":      string(invoice.EffectiveStatus()),
		"paid":        invoice.IsPaid(),
		"total":       invoice.Total.StringFixed(2),
		"total_units": invoice.TotalUnits(),
	}
	if invoice.CustomerID != nil {
		data["customer_id"] = *invoice.CustomerID
	}

	return inngestgo.Event{
		Name:      name,
		Data:      data,
		Timestamp: time.Now().UnixMilli(),
	}
}

// Publish envía el evento de la factura
func (e *InvoiceEvents) Publish(ctx context.Context, invoice *models.Invoice) error {
	evt := EventFor(invoice)

	id, err := e.sender.Send(ctx, evt)
	if err != nil {
		return fmt.Errorf("error sending %s event: %w", evt.Name, err)
	}

	e.logger.WithFields(logrus.Fields{
		"event_id":   id,
		"event":      evt.Name,
		"invoice_id": invoice.ID,
	}).Info("Invoice event published")

	return nil
}
