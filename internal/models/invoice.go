package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// InvoiceStatus representa el estado de una factura
type InvoiceStatus string

const (
	InvoiceStatusPending InvoiceStatus = "PENDING"
	InvoiceStatusDraft   InvoiceStatus = "DRAFT"
	InvoiceStatusIssued  InvoiceStatus = "ISSUED"
	InvoiceStatusPaid    InvoiceStatus = "PAID"
)

// DefaultTaxRate es la tasa de IVA usada cuando la línea no trae una
var DefaultTaxRate = decimal.NewFromInt(19)

var hundred = decimal.NewFromInt(100)

// Invoice representa una factura emitida o en borrador
type Invoice struct {
	ID         string            `json:"id" db:"id"`
	Number     string            `json:"number" db:"number"`
	Customer   *CustomerSnapshot `json:"customer,omitempty"`
	CustomerID *string           `json:"customer_id,omitempty" db:"customer_id"`
	Items      []InvoiceItem     `json:"items"`
	Total      decimal.Decimal   `json:"total" db:"total"`
	CreatedBy  *string           `json:"created_by,omitempty" db:"created_by"`
	Status     InvoiceStatus     `json:"status" db:"status"`
	CreatedAt  *time.Time        `json:"created_at,omitempty" db:"created_at"`
}

// EffectiveStatus retorna el estado, PENDING si no viene informado
func (i *Invoice) EffectiveStatus() InvoiceStatus {
	if i.Status == "" {
		return InvoiceStatusPending
	}
	return i.Status
}

// IsPaid indica si la factura está pagada
func (i *Invoice) IsPaid() bool {
	return strings.EqualFold(string(i.Status), string(InvoiceStatusPaid))
}

// TotalUnits suma las cantidades de todas las líneas
func (i *Invoice) TotalUnits() int {
	units := 0
	for _, item := range i.Items {
		units += item.Quantity
	}
	return units
}

// InvoiceItem representa una línea de factura.
// Los campos opcionales vienen precalculados desde la base de datos y
// prevalecen sobre los valores derivados.
type InvoiceItem struct {
	ProductID   string              `json:"product_id" db:"product_id"`
	ProductName *string             `json:"product_name,omitempty" db:"product_name"`
	ProductCode *string             `json:"product_code,omitempty" db:"product_code"`
	Quantity    int                 `json:"quantity" db:"quantity"`
	UnitPrice   decimal.Decimal     `json:"unit_price" db:"unit_price"`
	Discount    decimal.Decimal     `json:"discount" db:"discount"`
	TaxableBase decimal.NullDecimal `json:"taxable_base" db:"taxable_base"`
	TaxRate     decimal.NullDecimal `json:"tax_rate" db:"tax_rate"`
	TaxAmount   decimal.NullDecimal `json:"tax_amount" db:"tax_amount"`
	Subtotal    decimal.NullDecimal `json:"subtotal" db:"subtotal"`
	LineTotal   decimal.NullDecimal `json:"line_total" db:"line_total"`
}

// Gross retorna cantidad por precio unitario
func (it InvoiceItem) Gross() decimal.Decimal {
	return it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))).Round(2)
}

// EffectiveTaxRate retorna la tasa de la línea o la tasa por defecto
func (it InvoiceItem) EffectiveTaxRate() decimal.Decimal {
	if it.TaxRate.Valid {
		return it.TaxRate.Decimal
	}
	return DefaultTaxRate
}

// DerivedSubtotal retorna el subtotal precalculado o bruto menos descuento
func (it InvoiceItem) DerivedSubtotal() decimal.Decimal {
	if it.Subtotal.Valid {
		return it.Subtotal.Decimal
	}
	return it.Gross().Sub(it.Discount).Round(2)
}

// DerivedTaxableBase retorna la base imponible precalculada o el subtotal
func (it InvoiceItem) DerivedTaxableBase() decimal.Decimal {
	if it.TaxableBase.Valid {
		return it.TaxableBase.Decimal
	}
	return it.DerivedSubtotal()
}

// DerivedTaxAmount retorna el IVA precalculado o base * tasa / 100
func (it InvoiceItem) DerivedTaxAmount() decimal.Decimal {
	if it.TaxAmount.Valid {
		return it.TaxAmount.Decimal
	}
	return it.DerivedTaxableBase().Mul(it.EffectiveTaxRate()).Div(hundred).Round(2)
}

// DerivedTotal retorna el total precalculado o base más IVA
func (it InvoiceItem) DerivedTotal() decimal.Decimal {
	if it.LineTotal.Valid {
		return it.LineTotal.Decimal
	}
	return it.DerivedTaxableBase().Add(it.DerivedTaxAmount()).Round(2)
}

// Settle fija todos los campos derivados como precalculados
func (it InvoiceItem) Settle() InvoiceItem {
	it.Subtotal = decimal.NewNullDecimal(it.DerivedSubtotal())
	it.TaxableBase = decimal.NewNullDecimal(it.DerivedTaxableBase())
	it.TaxRate = decimal.NewNullDecimal(it.EffectiveTaxRate())
	it.TaxAmount = decimal.NewNullDecimal(it.DerivedTaxAmount())
	it.LineTotal = decimal.NewNullDecimal(it.DerivedTotal())
	return it
}

// SumTotals suma el total derivado de cada línea
func SumTotals(items []InvoiceItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.DerivedTotal())
	}
	return total.Round(2)
}

// CheckoutRequest representa el request para facturar un carrito
type CheckoutRequest struct {
	CartID string `json:"cart_id" binding:"required"`
}

// CheckoutOrder es la orden de facturar un carrito con el cliente de la sesión
type CheckoutOrder struct {
	CartID    string
	Customer  *CustomerSnapshot
	CreatedBy *string
}

// DraftItemRequest representa una línea del borrador
type DraftItemRequest struct {
	ProductID string `json:"product_id" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required,gt=0"`
}

// DraftRequest representa el request para crear un borrador de factura.
// Customer y CreatedBy se completan desde la sesión, nunca desde el body.
type DraftRequest struct {
	Items     []DraftItemRequest `json:"items" binding:"required,min=1,dive"`
	Customer  *CustomerSnapshot  `json:"-"`
	CreatedBy *string            `json:"-"`
}

// ListInvoicesRequest representa el filtro de listado de facturas
type ListInvoicesRequest struct {
	UserID *string `json:"user_id,omitempty"`
}

// InvoiceDetailRequest representa el request de detalle de factura
type InvoiceDetailRequest struct {
	InvoiceID string `json:"invoice_id" binding:"required"`
}
