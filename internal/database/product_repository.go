package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/hypernova-labs/storefront-service/internal/models"
	"github.com/sirupsen/logrus"
)

const productColumns = `id, name, code, description, price, stock, category_id, thumbnail_url, created_at`

// ProductRepository maneja las consultas del catálogo
type ProductRepository struct {
	db     *DB
	logger *logrus.Logger
}

// NewProductRepository crea una nueva instancia del repositorio
func NewProductRepository(db *DB, logger *logrus.Logger) *ProductRepository {
	return &ProductRepository{
		db:     db,
		logger: logger,
	}
}

// List lista productos filtrando por categoría y nombre, paginado
func (r *ProductRepository) List(ctx context.Context, filter models.ProductFilter) (*models.ProductPage, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	filter = filter.Normalize()

	var conditions []string
	var args []interface{}
	if filter.CategoryID != "" {
		args = append(args, filter.CategoryID)
		conditions = append(conditions, "category_id = $"+strconv.Itoa(len(args)))
	}
	if filter.Query != "" {
		args = append(args, "%"+filter.Query+"%")
		conditions = append(conditions, "name ILIKE $"+strconv.Itoa(len(args)))
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("error counting products: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM products%s ORDER BY name LIMIT $%d OFFSET $%d`,
		productColumns, where, len(args)+1, len(args)+2)
	args = append(args, filter.Size, filter.Page*filter.Size)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying products: %w", err)
	}
	defer rows.Close()

	page := &models.ProductPage{Products: []models.Product{}, Total: total, Page: filter.Page, Size: filter.Size}
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		page.Products = append(page.Products, *product)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating products: %w", err)
	}

	return page, nil
}

// GetByID obtiene un producto por ID
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*models.Product, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	row := r.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	product, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", models.ErrProductNotFound, id)
	}
	return product, err
}

// Stock retorna el stock del producto desglosado por almacén
func (r *ProductRepository) Stock(ctx context.Context, id string) (*models.ProductStock, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var productStock int
	err := r.db.QueryRowContext(ctx, `SELECT stock FROM products WHERE id = $1`, id).Scan(&productStock)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", models.ErrProductNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("error querying product stock: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT warehouse_id, warehouse_name, quantity
		FROM warehouse_stock
		WHERE product_id = $1
		ORDER BY warehouse_name
	`, id)
	if err != nil {
		return nil, fmt.Errorf("error querying warehouse stock: %w", err)
	}
	defer rows.Close()

	stock := &models.ProductStock{ProductID: id, Warehouses: []models.WarehouseStock{}}
	for rows.Next() {
		var ws models.WarehouseStock
		if err := rows.Scan(&ws.WarehouseID, &ws.WarehouseName, &ws.Quantity); err != nil {
			return nil, fmt.Errorf("error scanning warehouse stock: %w", err)
		}
		stock.Warehouses = append(stock.Warehouses, ws)
		stock.Total += ws.Quantity
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating warehouse stock: %w", err)
	}

	// sin desglose por almacén el total es el stock del producto
	if len(stock.Warehouses) == 0 {
		stock.Total = productStock
	}

	return stock, nil
}

// Categories lista las categorías ordenadas por nombre
func (r *ProductRepository) Categories(ctx context.Context) ([]models.Category, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, description, image_url, created_at
		FROM categories
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("error querying categories: %w", err)
	}
	defer rows.Close()

	categories := []models.Category{}
	for rows.Next() {
		var category models.Category
		var description, imageURL sql.NullString
		var createdAt sql.NullTime
		if err := rows.Scan(&category.ID, &category.Name, &description, &imageURL, &createdAt); err != nil {
			return nil, fmt.Errorf("error scanning category: %w", err)
		}
		category.Description = nullableString(description)
		category.ImageURL = nullableString(imageURL)
		if createdAt.Valid {
			category.CreatedAt = &createdAt.Time
		}
		categories = append(categories, category)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating categories: %w", err)
	}

	return categories, nil
}

func scanProduct(row rowScanner) (*models.Product, error) {
	var product models.Product
	var code, description, categoryID, thumbnail sql.NullString
	var createdAt sql.NullTime

	err := row.Scan(
		&product.ID, &product.Name, &code, &description, &product.Price,
		&product.Stock, &categoryID, &thumbnail, &createdAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("error scanning product: %w", err)
	}

	product.Code = nullableString(code)
	product.Description = nullableString(description)
	product.CategoryID = nullableString(categoryID)
	product.ThumbnailURL = nullableString(thumbnail)
	if createdAt.Valid {
		product.CreatedAt = &createdAt.Time
	}

	return &product, nil
}

func nullableString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	return &s.String
}
