package email

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"

	"github.com/hypernova-labs/storefront-service/internal/models"
	"github.com/resend/resend-go/v2"
	"github.com/sirupsen/logrus"
)

// ErrNoRecipient indica que la factura no tiene email de cliente
var ErrNoRecipient = errors.New("invoice has no customer email")

var receiptTemplate = template.Must(template.New("receipt").Parse(`<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Factura {{.Number}}</title>
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
        .container { max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { background-color: #f8f9fa; padding: 20px; text-align: center; border-radius: 8px; }
        table { width: 100%; border-collapse: collapse; }
        td, th { padding: 6px; border-bottom: 1px solid #eee; text-align: left; }
        .total { font-size: 18px; font-weight: bold; color: #007bff; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h1>Factura {{.Number}}</h1>
            <p>Fecha: {{.Date}}</p>
        </div>
        <h2>Hola {{.CustomerName}},</h2>
        <p>Gracias por tu compra. Este es el detalle de tu factura:</p>
        <table>
            <tr><th>Producto</th><th>Cant.</th><th>Total</th></tr>
            {{range .Lines}}<tr><td>{{.Name}}</td><td>{{.Quantity}}</td><td>${{.Total}}</td></tr>
            {{end}}
        </table>
        <p class="total">Total: ${{.Total}}</p>
        <p><a href="{{.PDFURL}}">Descargar PDF</a></p>
    </div>
</body>
</html>`))

type receiptLine struct {
	Name     string
	Quantity int
	Total    string
}

type receiptData struct {
	Number       string
	Date         string
	CustomerName string
	Lines        []receiptLine
	Total        string
	PDFURL       string
}

// ResendService maneja el envío de correos electrónicos usando Resend API
type ResendService struct {
	client    *resend.Client
	fromEmail string
	baseURL   string
	logger    *logrus.Logger
}

// NewResendService crea una nueva instancia de ResendService
func NewResendService(apiKey, fromEmail, baseURL string, logger *logrus.Logger) *ResendService {
	return &ResendService{
		client:    resend.NewClient(apiKey),
		fromEmail: fromEmail,
		baseURL:   baseURL,
		logger:    logger,
	}
}

// SendInvoiceReceipt envía el comprobante de la factura al cliente
func (s *ResendService) SendInvoiceReceipt(invoice *models.Invoice) error {
	if invoice.Customer == nil || invoice.Customer.Email == "" {
		return ErrNoRecipient
	}

	subject, html, err := RenderReceipt(invoice, s.baseURL)
	if err != nil {
		return err
	}

	result, err := s.client.Emails.Send(&resend.SendEmailRequest{
		From:    s.fromEmail,
		To:      []string{invoice.Customer.Email},
		Subject: subject,
		Html:    html,
	})
	if err != nil {
		return fmt.Errorf("error sending email via Resend: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"email_id":   result.Id,
		"invoice_id": invoice.ID,
		"to":         invoice.Customer.Email,
	}).Info("Invoice receipt sent")

	return nil
}

// RenderReceipt construye el asunto y el HTML del comprobante
func RenderReceipt(invoice *models.Invoice, baseURL string) (string, string, error) {
	data := receiptData{
		Number: invoice.Number,
		Total:  invoice.Total.StringFixed(2),
		PDFURL: fmt.Sprintf("%s/v1/invoices/%s/pdf", baseURL, invoice.ID),
	}
	if invoice.CreatedAt != nil {
		data.Date = invoice.CreatedAt.Format("02/01/2006")
	}
	if invoice.Customer != nil {
		data.CustomerName = invoice.Customer.FullName()
	}
	for _, item := range invoice.Items {
		name := item.ProductID
		if item.ProductName != nil {
			name = *item.ProductName
		}
		data.Lines = append(data.Lines, receiptLine{
			Name:     name,
			Quantity: item.Quantity,
			Total:    item.DerivedTotal().StringFixed(2),
		})
	}

	var buf bytes.Buffer
	if err := receiptTemplate.Execute(&buf, data); err != nil {
		return "", "", fmt.Errorf("error rendering receipt: %w", err)
	}

	return fmt.Sprintf("Factura #%s", invoice.Number), buf.String(), nil
}
