package email

import (
	"io"
	"testing"
	"time"

	"github.com/hypernova-labs/storefront-service/internal/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderReceipt(t *testing.T) {
	created := time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC)
	name := "Casco <Pro>"
	invoice := &models.Invoice{
		ID:        "inv-1",
		Number:    "FAC-000001",
		Customer:  &models.CustomerSnapshot{FirstName: "Ana", LastName: "Pérez", Email: "ana@example.com"},
		Items:     []models.InvoiceItem{{ProductID: "p-1", ProductName: &name, Quantity: 2, UnitPrice: decimal.NewFromInt(10)}},
		Total:     decimal.RequireFromString("23.8"),
		CreatedAt: &created,
	}

	subject, html, err := RenderReceipt(invoice, "https://shop.example.com")
	require.NoError(t, err)

	assert.Equal(t, "Factura #FAC-000001", subject)
	assert.Contains(t, html, "04/05/2026")
	assert.Contains(t, html, "Ana Pérez")
	assert.Contains(t, html, "Casco &lt;Pro&gt;")
	assert.Contains(t, html, "$23.80")
	assert.Contains(t, html, "https://shop.example.com/v1/invoices/inv-1/pdf")
}

func TestSendInvoiceReceiptWithoutCustomer(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	svc := NewResendService("re_test", "shop@example.com", "http://localhost", logger)

	err := svc.SendInvoiceReceipt(&models.Invoice{ID: "inv-1"})
	assert.ErrorIs(t, err, ErrNoRecipient)
}
