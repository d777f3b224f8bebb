package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product representa un producto del catálogo
type Product struct {
	ID           string          `json:"id" db:"id"`
	Name         string          `json:"name" db:"name"`
	Code         *string         `json:"code,omitempty" db:"code"`
	Description  *string         `json:"description,omitempty" db:"description"`
	Price        decimal.Decimal `json:"price" db:"price"`
	Stock        int             `json:"stock" db:"stock"`
	CategoryID   *string         `json:"category_id,omitempty" db:"category_id"`
	ThumbnailURL *string         `json:"thumbnail_url,omitempty" db:"thumbnail_url"`
	CreatedAt    *time.Time      `json:"created_at,omitempty" db:"created_at"`
}

// Category representa una categoría del catálogo
type Category struct {
	ID          string     `json:"id" db:"id"`
	Name        string     `json:"name" db:"name"`
	Description *string    `json:"description,omitempty" db:"description"`
	ImageURL    *string    `json:"image_url,omitempty" db:"image_url"`
	CreatedAt   *time.Time `json:"created_at,omitempty" db:"created_at"`
}

// WarehouseStock representa la existencia de un producto en un almacén
type WarehouseStock struct {
	WarehouseID   string `json:"warehouse_id" db:"warehouse_id"`
	WarehouseName string `json:"warehouse_name" db:"warehouse_name"`
	Quantity      int    `json:"quantity" db:"quantity"`
}

// ProductStock representa el stock total con desglose por almacén
type ProductStock struct {
	ProductID  string           `json:"product_id"`
	Warehouses []WarehouseStock `json:"warehouses"`
	Total      int              `json:"total"`
}

// ProductFilter representa los filtros del listado de productos
type ProductFilter struct {
	CategoryID string `form:"category_id"`
	Query      string `form:"q"`
	Page       int    `form:"page" binding:"min=0"`
	Size       int    `form:"size" binding:"min=0,max=100"`
}

// Normalize aplica los valores por defecto de paginación
func (f ProductFilter) Normalize() ProductFilter {
	if f.Page < 0 {
		f.Page = 0
	}
	if f.Size <= 0 {
		f.Size = 20
	}
	return f
}

// ProductPage representa una página de productos
type ProductPage struct {
	Products []Product `json:"products"`
	Total    int64     `json:"total"`
	Page     int       `json:"page"`
	Size     int       `json:"size"`
}
