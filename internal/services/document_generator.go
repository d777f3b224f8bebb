package services

import (
	"bytes"
	"fmt"
	"time"

	"github.com/hypernova-labs/storefront-service/internal/models"
	"github.com/jung-kurt/gofpdf"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// DocumentGenerator genera el PDF de una factura
type DocumentGenerator struct {
	logger *logrus.Logger
	now    func() time.Time
}

// NewDocumentGenerator crea una nueva instancia del generador
func NewDocumentGenerator(logger *logrus.Logger) *DocumentGenerator {
	return &DocumentGenerator{
		logger: logger,
		now:    time.Now,
	}
}

func money(d decimal.Decimal) string {
	return "$" + d.StringFixed(2)
}

// GenerateInvoicePDF genera el PDF con los montos derivados de cada línea
func (d *DocumentGenerator) GenerateInvoicePDF(invoice *models.Invoice) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	// Encabezado
	pdf.SetFillColor(41, 128, 185)
	pdf.Rect(0, 0, 210, 40, "F")

	pdf.SetTextColor(255, 255, 255)
	pdf.SetFont("Arial", "B", 24)
	title := "FACTURA"
	if invoice.Status == models.InvoiceStatusDraft {
		title = "BORRADOR"
	}
	pdf.Cell(190, 15, title)
	pdf.Ln(15)

	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(190, 10, "#"+invoice.Number)
	pdf.Ln(10)

	pdf.SetFont("Arial", "", 12)
	if invoice.CreatedAt != nil {
		pdf.Cell(190, 8, "Fecha: "+invoice.CreatedAt.Format("02/01/2006"))
	}
	pdf.Ln(8)

	pdf.SetTextColor(44, 62, 80)
	pdf.SetFillColor(255, 255, 255)

	// Cliente
	pdf.SetY(50)
	pdf.SetFont("Arial", "B", 14)
	pdf.Cell(95, 8, "CLIENTE")
	pdf.Ln(8)

	pdf.SetFont("Arial", "", 10)
	if c := invoice.Customer; c != nil {
		pdf.Cell(95, 6, tr(c.FullName()))
		pdf.Ln(6)
		pdf.Cell(95, 6, c.Email)
		pdf.Ln(6)
	} else {
		pdf.Cell(95, 6, "Consumidor final")
		pdf.Ln(6)
	}

	pdf.SetY(50)
	pdf.SetX(120)
	pdf.SetFont("Arial", "B", 14)
	pdf.Cell(80, 8, "ESTADO")
	pdf.Ln(8)
	pdf.SetX(120)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(80, 6, string(invoice.EffectiveStatus()))

	// Líneas
	pdf.SetY(80)
	pdf.SetFillColor(236, 240, 241)
	pdf.SetFont("Arial", "B", 9)

	colWidths := []float64{60, 18, 25, 25, 22, 40}
	colHeaders := []string{"Producto", "Cant.", "Precio Unit.", "Base", "IVA", "Total"}
	for i, header := range colHeaders {
		pdf.CellFormat(colWidths[i], 10, header, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(10)

	pdf.SetFont("Arial", "", 9)
	rowHeight := 8.0
	for i, item := range invoice.Items {
		if i%2 == 0 {
			pdf.SetFillColor(248, 249, 250)
		} else {
			pdf.SetFillColor(255, 255, 255)
		}

		name := item.ProductID
		if item.ProductName != nil {
			name = *item.ProductName
		}

		pdf.CellFormat(colWidths[0], rowHeight, tr(name), "1", 0, "L", true, 0, "")
		pdf.CellFormat(colWidths[1], rowHeight, fmt.Sprintf("%d", item.Quantity), "1", 0, "R", true, 0, "")
		pdf.CellFormat(colWidths[2], rowHeight, money(item.UnitPrice), "1", 0, "R", true, 0, "")
		pdf.CellFormat(colWidths[3], rowHeight, money(item.DerivedTaxableBase()), "1", 0, "R", true, 0, "")
		pdf.CellFormat(colWidths[4], rowHeight, money(item.DerivedTaxAmount()), "1", 0, "R", true, 0, "")
		pdf.CellFormat(colWidths[5], rowHeight, money(item.DerivedTotal()), "1", 0, "R", true, 0, "")
		pdf.Ln(rowHeight)
	}

	// Totales
	subtotal, tax := decimal.Zero, decimal.Zero
	for _, item := range invoice.Items {
		subtotal = subtotal.Add(item.DerivedTaxableBase())
		tax = tax.Add(item.DerivedTaxAmount())
	}

	totalY := pdf.GetY() + 10
	pdf.SetY(totalY)
	pdf.SetDrawColor(189, 195, 199)
	pdf.Line(120, totalY, 200, totalY)
	pdf.Ln(5)

	pdf.SetFont("Arial", "B", 12)
	pdf.SetX(120)
	pdf.Cell(50, 8, "Subtotal:")
	pdf.Cell(30, 8, money(subtotal))
	pdf.Ln(8)

	pdf.SetX(120)
	pdf.Cell(50, 8, "IVA:")
	pdf.Cell(30, 8, money(tax))
	pdf.Ln(8)

	pdf.SetFillColor(41, 128, 185)
	pdf.SetTextColor(255, 255, 255)
	pdf.SetX(120)
	pdf.CellFormat(50, 12, "TOTAL:", "", 0, "L", true, 0, "")
	pdf.CellFormat(30, 12, money(invoice.Total), "", 0, "L", true, 0, "")
	pdf.Ln(12)

	pdf.SetY(270)
	pdf.SetTextColor(149, 165, 166)
	pdf.SetFont("Arial", "", 8)
	pdf.Cell(190, 6, tr("Documento generado electrónicamente"))
	pdf.Ln(6)
	pdf.Cell(190, 6, "Generado el: "+d.now().Format("02/01/2006 15:04:05"))

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("error generating PDF: %w", err)
	}

	d.logger.WithFields(logrus.Fields{
		"invoice_id": invoice.ID,
		"pdf_size":   buf.Len(),
	}).Debug("Invoice PDF generated")

	return buf.Bytes(), nil
}
