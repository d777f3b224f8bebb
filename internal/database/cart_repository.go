package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hypernova-labs/storefront-service/internal/models"
	"github.com/sirupsen/logrus"
)

const upsertCartItem = `
	INSERT INTO cart_items (cart_id, product_id, quantity, unit_price)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (cart_id, product_id) DO UPDATE
	SET quantity = cart_items.quantity + EXCLUDED.quantity,
	    unit_price = COALESCE(EXCLUDED.unit_price, cart_items.unit_price)
`

// CartRepository maneja las operaciones de base de datos para Cart
type CartRepository struct {
	db     *DB
	logger *logrus.Logger
}

// NewCartRepository crea una nueva instancia del repositorio
func NewCartRepository(db *DB, logger *logrus.Logger) *CartRepository {
	return &CartRepository{
		db:     db,
		logger: logger,
	}
}

// ListByUser lista los carritos de un usuario
func (r *CartRepository) ListByUser(ctx context.Context, userID string) ([]models.Cart, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	carts := []models.Cart{}
	if userID == "" {
		return carts, nil
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, created_by, created_at
		FROM carts
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("error querying carts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		cart, err := scanCart(rows)
		if err != nil {
			return nil, err
		}
		carts = append(carts, *cart)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating carts: %w", err)
	}

	for i := range carts {
		items, err := r.items(ctx, r.db.DB, carts[i].ID)
		if err != nil {
			return nil, err
		}
		carts[i].Items = items
	}

	return carts, nil
}

// GetByID obtiene un carrito con sus líneas
func (r *CartRepository) GetByID(ctx context.Context, id string) (*models.Cart, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	return r.load(ctx, r.db.DB, id)
}

// Create crea un carrito con líneas opcionales
func (r *CartRepository) Create(ctx context.Context, req models.CreateCartRequest, createdBy *string) (*models.Cart, error) {
	now := time.Now()
	cart := &models.Cart{
		ID:        uuid.New().String(),
		UserID:    req.UserID,
		CreatedBy: createdBy,
		CreatedAt: &now,
		Items:     []models.CartItem{},
	}

	err := r.db.WithTransaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO carts (id, user_id, created_by, created_at) VALUES ($1, $2, $3, $4)`,
			cart.ID, cart.UserID, cart.CreatedBy, cart.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("error inserting cart: %w", err)
		}

		for _, item := range req.Items {
			if _, err := tx.ExecContext(ctx, upsertCartItem, cart.ID, item.ProductID, item.Quantity, item.UnitPrice); err != nil {
				return fmt.Errorf("error inserting cart item: %w", err)
			}
		}

		items, err := r.items(ctx, tx, cart.ID)
		if err != nil {
			return err
		}
		cart.Items = items
		return nil
	})
	if err != nil {
		return nil, err
	}

	return cart, nil
}

// AddItem agrega una línea al carrito; las cantidades del mismo producto se acumulan
func (r *CartRepository) AddItem(ctx context.Context, cartID string, item models.CartItemRequest) (*models.Cart, error) {
	var cart *models.Cart

	err := r.db.WithTransaction(ctx, func(tx *sql.Tx) error {
		if err := r.lock(ctx, tx, cartID); err != nil {
			return err
		}

		var exists bool
		if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM products WHERE id = $1)`, item.ProductID).Scan(&exists); err != nil {
			return fmt.Errorf("error querying product: %w", err)
		}
		if !exists {
			return fmt.Errorf("%w: %s", models.ErrProductNotFound, item.ProductID)
		}

		if _, err := tx.ExecContext(ctx, upsertCartItem, cartID, item.ProductID, item.Quantity, item.UnitPrice); err != nil {
			return fmt.Errorf("error adding cart item: %w", err)
		}

		var err error
		cart, err = r.load(ctx, tx, cartID)
		return err
	})
	if err != nil {
		return nil, err
	}

	return cart, nil
}

// RemoveItem elimina la línea de un producto
func (r *CartRepository) RemoveItem(ctx context.Context, cartID, productID string) (*models.Cart, error) {
	return r.mutate(ctx, cartID, `DELETE FROM cart_items WHERE cart_id = $1 AND product_id = $2`, cartID, productID)
}

// Clear elimina todas las líneas del carrito
func (r *CartRepository) Clear(ctx context.Context, cartID string) (*models.Cart, error) {
	return r.mutate(ctx, cartID, `DELETE FROM cart_items WHERE cart_id = $1`, cartID)
}

// Delete elimina el carrito completo
func (r *CartRepository) Delete(ctx context.Context, cartID string) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	result, err := r.db.ExecContext(ctx, `DELETE FROM carts WHERE id = $1`, cartID)
	if err != nil {
		return fmt.Errorf("error deleting cart: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error getting rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", models.ErrCartNotFound, cartID)
	}

	return nil
}

// Merge une un carrito anónimo y/o líneas sueltas al carrito más reciente del usuario
func (r *CartRepository) Merge(ctx context.Context, req models.MergeCartRequest) (*models.MergeCartResponse, error) {
	response := &models.MergeCartResponse{}

	err := r.db.WithTransaction(ctx, func(tx *sql.Tx) error {
		var cartID string
		err := tx.QueryRowContext(ctx, `
			SELECT id FROM carts WHERE user_id = $1 ORDER BY created_at DESC LIMIT 1 FOR UPDATE
		`, req.UserID).Scan(&cartID)
		if errors.Is(err, sql.ErrNoRows) {
			cartID = uuid.New().String()
			_, err = tx.ExecContext(ctx,
				`INSERT INTO carts (id, user_id, created_by, created_at) VALUES ($1, $2, $2, NOW())`,
				cartID, req.UserID,
			)
			if err != nil {
				return fmt.Errorf("error inserting cart: %w", err)
			}
		} else if err != nil {
			return fmt.Errorf("error querying user cart: %w", err)
		}

		if req.AnonCartID != nil && *req.AnonCartID != cartID {
			anonItems, err := r.items(ctx, tx, *req.AnonCartID)
			if err != nil {
				return err
			}
			for _, item := range anonItems {
				if _, err := tx.ExecContext(ctx, upsertCartItem, cartID, item.ProductID, item.Quantity, item.UnitPrice); err != nil {
					return fmt.Errorf("error merging cart item: %w", err)
				}
				response.Merged = true
			}
			if _, err := tx.ExecContext(ctx, `DELETE FROM carts WHERE id = $1`, *req.AnonCartID); err != nil {
				return fmt.Errorf("error deleting anonymous cart: %w", err)
			}
		}

		for _, item := range req.Items {
			if _, err := tx.ExecContext(ctx, upsertCartItem, cartID, item.ProductID, item.Quantity, item.UnitPrice); err != nil {
				return fmt.Errorf("error merging cart item: %w", err)
			}
			response.Merged = true
		}

		cart, err := r.load(ctx, tx, cartID)
		if err != nil {
			return err
		}
		response.CartID = cart.ID
		response.Cart = cart
		response.TotalItems = cart.TotalUnits()
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.logger.WithFields(logrus.Fields{
		"user_id":     req.UserID,
		"cart_id":     response.CartID,
		"merged":      response.Merged,
		"total_items": response.TotalItems,
	}).Info("Cart merged")

	return response, nil
}

func (r *CartRepository) mutate(ctx context.Context, cartID, query string, args ...interface{}) (*models.Cart, error) {
	var cart *models.Cart

	err := r.db.WithTransaction(ctx, func(tx *sql.Tx) error {
		if err := r.lock(ctx, tx, cartID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("error updating cart: %w", err)
		}

		var err error
		cart, err = r.load(ctx, tx, cartID)
		return err
	})
	if err != nil {
		return nil, err
	}

	return cart, nil
}

func (r *CartRepository) lock(ctx context.Context, tx *sql.Tx, cartID string) error {
	var id string
	err := tx.QueryRowContext(ctx, `SELECT id FROM carts WHERE id = $1 FOR UPDATE`, cartID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", models.ErrCartNotFound, cartID)
	}
	if err != nil {
		return fmt.Errorf("error locking cart: %w", err)
	}
	return nil
}

// querier es la parte común de *sql.DB y *sql.Tx que usan las lecturas
type querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func (r *CartRepository) load(ctx context.Context, q querier, id string) (*models.Cart, error) {
	row := q.QueryRowContext(ctx, `SELECT id, user_id, created_by, created_at FROM carts WHERE id = $1`, id)
	cart, err := scanCart(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", models.ErrCartNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	cart.Items, err = r.items(ctx, q, id)
	if err != nil {
		return nil, err
	}
	return cart, nil
}

func (r *CartRepository) items(ctx context.Context, q querier, cartID string) ([]models.CartItem, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT product_id, quantity, unit_price
		FROM cart_items
		WHERE cart_id = $1
		ORDER BY product_id
	`, cartID)
	if err != nil {
		return nil, fmt.Errorf("error querying cart items: %w", err)
	}
	defer rows.Close()

	items := []models.CartItem{}
	for rows.Next() {
		var item models.CartItem
		if err := rows.Scan(&item.ProductID, &item.Quantity, &item.UnitPrice); err != nil {
			return nil, fmt.Errorf("error scanning cart item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cart items: %w", err)
	}
	return items, nil
}

func scanCart(row rowScanner) (*models.Cart, error) {
	var cart models.Cart
	var userID, createdBy sql.NullString
	var createdAt sql.NullTime

	if err := row.Scan(&cart.ID, &userID, &createdBy, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("error scanning cart: %w", err)
	}

	cart.UserID = nullableString(userID)
	cart.CreatedBy = nullableString(createdBy)
	if createdAt.Valid {
		cart.CreatedAt = &createdAt.Time
	}
	cart.Items = []models.CartItem{}
	return &cart, nil
}
