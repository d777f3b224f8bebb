package services

import (
	"context"
	"fmt"

	"github.com/hypernova-labs/storefront-service/internal/models"
	"github.com/sirupsen/logrus"
)

const pdfContentType = "application/pdf"

// InvoiceReader carga una factura por id
type InvoiceReader interface {
	GetByID(ctx context.Context, id string) (*models.Invoice, error)
}

// DocumentArchive guarda y recupera documentos ya generados
type DocumentArchive interface {
	Upload(ctx context.Context, key, contentType string, data []byte) (string, error)
	Download(ctx context.Context, key string) ([]byte, error)
}

// InvoiceDocumentService entrega el PDF de una factura, archivándolo si hay almacenamiento
type InvoiceDocumentService struct {
	invoices  InvoiceReader
	generator *DocumentGenerator
	archive   DocumentArchive
	logger    *logrus.Logger
}

// NewInvoiceDocumentService crea el servicio. archive puede ser nil.
func NewInvoiceDocumentService(invoices InvoiceReader, generator *DocumentGenerator, archive DocumentArchive, logger *logrus.Logger) *InvoiceDocumentService {
	return &InvoiceDocumentService{
		invoices:  invoices,
		generator: generator,
		archive:   archive,
		logger:    logger,
	}
}

// ArchiveKey retorna la ruta del PDF dentro del bucket
func ArchiveKey(invoice *models.Invoice) string {
	return fmt.Sprintf("invoices/%s/%s.pdf", invoice.ID, invoice.Number)
}

// InvoicePDF retorna el PDF y el nombre de archivo de la factura
func (s *InvoiceDocumentService) InvoicePDF(ctx context.Context, invoiceID string) ([]byte, string, error) {
	invoice, err := s.invoices.GetByID(ctx, invoiceID)
	if err != nil {
		return nil, "", err
	}

	fileName := fmt.Sprintf("factura_%s.pdf", invoice.Number)
	key := ArchiveKey(invoice)
	fields := logrus.Fields{"invoice_id": invoice.ID, "key": key}

	if s.archive != nil {
		data, err := s.archive.Download(ctx, key)
		if err == nil && len(data) > 0 {
			s.logger.WithFields(fields).Debug("Invoice PDF served from archive")
			return data, fileName, nil
		}
	}

	data, err := s.generator.GenerateInvoicePDF(invoice)
	if err != nil {
		return nil, "", err
	}

	if s.archive != nil {
		if _, err := s.archive.Upload(ctx, key, pdfContentType, data); err != nil {
			s.logger.WithFields(fields).WithError(err).Warn("Failed to archive invoice PDF")
		}
	}

	return data, fileName, nil
}
