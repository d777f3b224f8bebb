package services

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hypernova-labs/storefront-service/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeArchive struct {
	objects   map[string][]byte
	uploads   int
	uploadErr error
}

func (a *fakeArchive) Upload(_ context.Context, key, _ string, data []byte) (string, error) {
	if a.uploadErr != nil {
		return "", a.uploadErr
	}
	a.uploads++
	a.objects[key] = data
	return "http://storage/" + key, nil
}

func (a *fakeArchive) Download(_ context.Context, key string) ([]byte, error) {
	data, ok := a.objects[key]
	if !ok {
		return nil, errors.New("no such key")
	}
	return data, nil
}

func sampleInvoice() models.Invoice {
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	name := "Café molido"
	return models.Invoice{
		ID:        "inv-1",
		Number:    "FAC-000001",
		Customer:  &models.CustomerSnapshot{FirstName: "Ana", Email: "ana@example.com"},
		Items:     []models.InvoiceItem{{ProductID: "p-1", ProductName: &name, Quantity: 2, UnitPrice: decimal.NewFromInt(10)}},
		Total:     decimal.RequireFromString("23.8"),
		Status:    models.InvoiceStatusIssued,
		CreatedAt: &created,
	}
}

func TestGenerateInvoicePDF(t *testing.T) {
	invoice := sampleInvoice()
	pdf, err := NewDocumentGenerator(quietLogger()).GenerateInvoicePDF(&invoice)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF")))
}

func TestGenerateDraftPDFWithoutCustomer(t *testing.T) {
	invoice := models.Invoice{ID: "draft-1", Number: "BOR-000001", Status: models.InvoiceStatusDraft}
	pdf, err := NewDocumentGenerator(quietLogger()).GenerateInvoicePDF(&invoice)
	require.NoError(t, err)
	assert.NotEmpty(t, pdf)
}

func TestInvoicePDFArchivesOnce(t *testing.T) {
	repo := &fakeRepository{invoices: []models.Invoice{sampleInvoice()}}
	archive := &fakeArchive{objects: map[string][]byte{}}
	svc := NewInvoiceDocumentService(repo, NewDocumentGenerator(quietLogger()), archive, quietLogger())

	first, name, err := svc.InvoicePDF(context.Background(), "inv-1")
	require.NoError(t, err)
	assert.Equal(t, "factura_FAC-000001.pdf", name)
	assert.Contains(t, archive.objects, "invoices/inv-1/FAC-000001.pdf")

	second, _, err := svc.InvoicePDF(context.Background(), "inv-1")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, archive.uploads)
}

func TestInvoicePDFWithoutArchive(t *testing.T) {
	repo := &fakeRepository{invoices: []models.Invoice{sampleInvoice()}}
	svc := NewInvoiceDocumentService(repo, NewDocumentGenerator(quietLogger()), nil, quietLogger())

	pdf, _, err := svc.InvoicePDF(context.Background(), "inv-1")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF")))

	_, _, err = svc.InvoicePDF(context.Background(), "missing")
	assert.ErrorIs(t, err, models.ErrInvoiceNotFound)
}

func TestInvoicePDFUploadFailureStillServes(t *testing.T) {
	repo := &fakeRepository{invoices: []models.Invoice{sampleInvoice()}}
	archive := &fakeArchive{objects: map[string][]byte{}, uploadErr: errors.New("bucket gone")}
	svc := NewInvoiceDocumentService(repo, NewDocumentGenerator(quietLogger()), archive, quietLogger())

	pdf, _, err := svc.InvoicePDF(context.Background(), "inv-1")
	require.NoError(t, err)
	assert.NotEmpty(t, pdf)
}
