package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestInvoiceItemDerivedFromQuantityAndPrice(t *testing.T) {
	item := InvoiceItem{ProductID: "p-1", Quantity: 2, UnitPrice: dec("10")}

	assert.True(t, dec("20").Equal(item.Gross()))
	assert.True(t, dec("20").Equal(item.DerivedSubtotal()))
	assert.True(t, dec("20").Equal(item.DerivedTaxableBase()))
	assert.True(t, dec("3.8").Equal(item.DerivedTaxAmount()))
	assert.True(t, dec("23.8").Equal(item.DerivedTotal()))
}

func TestInvoiceItemPrecomputedWins(t *testing.T) {
	item := InvoiceItem{
		ProductID: "p-1",
		Quantity:  2,
		UnitPrice: dec("10"),
		Subtotal:  decimal.NewNullDecimal(dec("99")),
	}

	assert.True(t, dec("99").Equal(item.DerivedSubtotal()))
	assert.True(t, dec("99").Equal(item.DerivedTaxableBase()))
	assert.True(t, dec("18.81").Equal(item.DerivedTaxAmount()))

	item.LineTotal = decimal.NewNullDecimal(dec("1"))
	assert.True(t, dec("1").Equal(item.DerivedTotal()))
}

func TestInvoiceItemDiscountAndRate(t *testing.T) {
	item := InvoiceItem{
		Quantity:  3,
		UnitPrice: dec("5.5"),
		Discount:  dec("1.5"),
		TaxRate:   decimal.NewNullDecimal(dec("0")),
	}

	assert.True(t, dec("15").Equal(item.DerivedSubtotal()))
	assert.True(t, dec("0").Equal(item.DerivedTaxAmount()))
	assert.True(t, dec("15").Equal(item.DerivedTotal()))

	item.TaxableBase = decimal.NewNullDecimal(dec("10"))
	item.TaxRate = decimal.NullDecimal{}
	assert.True(t, dec("1.9").Equal(item.DerivedTaxAmount()))
	assert.True(t, dec("11.9").Equal(item.DerivedTotal()))
}

func TestInvoiceItemSettle(t *testing.T) {
	settled := InvoiceItem{Quantity: 2, UnitPrice: dec("10")}.Settle()

	assert.True(t, settled.Subtotal.Valid)
	assert.True(t, dec("19").Equal(settled.TaxRate.Decimal))
	assert.True(t, dec("23.8").Equal(settled.LineTotal.Decimal))
	assert.True(t, dec("47.6").Equal(SumTotals([]InvoiceItem{settled, settled})))
}

func TestInvoiceStatusHelpers(t *testing.T) {
	inv := &Invoice{Items: []InvoiceItem{{Quantity: 2}, {Quantity: 3}}}

	assert.Equal(t, InvoiceStatusPending, inv.EffectiveStatus())
	assert.False(t, inv.IsPaid())
	assert.Equal(t, 5, inv.TotalUnits())

	inv.Status = "paid"
	assert.True(t, inv.IsPaid())
}

func TestUserProfileSnapshot(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	snap := (&UserProfile{UserID: "u-1", Username: "ana", Email: "ana@example.com"}).Snapshot(now)
	if assert.NotNil(t, snap) {
		assert.Equal(t, "ana", snap.FirstName)
		assert.Equal(t, "", snap.LastName)
		assert.Equal(t, now, snap.RegisteredAt)
		assert.Equal(t, "ana", snap.FullName())
	}

	assert.Nil(t, (&UserProfile{UserID: "u-1", Username: "ana"}).Snapshot(now))
	assert.Nil(t, (*UserProfile)(nil).Snapshot(now))
}
