package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Cart representa un carrito de compras
type Cart struct {
	ID        string     `json:"id" db:"id"`
	UserID    *string    `json:"user_id,omitempty" db:"user_id"`
	Items     []CartItem `json:"items"`
	CreatedBy *string    `json:"created_by,omitempty" db:"created_by"`
	CreatedAt *time.Time `json:"created_at,omitempty" db:"created_at"`
}

// TotalUnits suma las cantidades del carrito
func (c *Cart) TotalUnits() int {
	units := 0
	for _, item := range c.Items {
		units += item.Quantity
	}
	return units
}

// CartItem representa una línea del carrito
type CartItem struct {
	ProductID string              `json:"product_id" db:"product_id"`
	Quantity  int                 `json:"quantity" db:"quantity"`
	UnitPrice decimal.NullDecimal `json:"unit_price" db:"unit_price"`
}

// CartItemRequest representa el request para agregar una línea
type CartItemRequest struct {
	ProductID string              `json:"product_id" binding:"required"`
	Quantity  int                 `json:"quantity" binding:"required,gt=0"`
	UnitPrice decimal.NullDecimal `json:"unit_price"`
}

// CreateCartRequest representa el request para crear un carrito
type CreateCartRequest struct {
	UserID *string           `json:"user_id,omitempty"`
	Items  []CartItemRequest `json:"items" binding:"dive"`
}

// MergeCartRequest representa el request para unir un carrito anónimo al del usuario
type MergeCartRequest struct {
	UserID     string            `json:"user_id" binding:"required"`
	AnonCartID *string           `json:"anon_cart_id,omitempty"`
	Items      []CartItemRequest `json:"items,omitempty" binding:"dive"`
}

// MergeCartResponse representa el resultado del merge
type MergeCartResponse struct {
	Merged     bool   `json:"merged"`
	CartID     string `json:"cart_id"`
	TotalItems int    `json:"total_items"`
	Cart       *Cart  `json:"cart"`
}
