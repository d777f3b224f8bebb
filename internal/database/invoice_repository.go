package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hypernova-labs/storefront-service/internal/models"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const invoiceColumns = `id, number, customer_id, customer_username, customer_email,
	customer_first_name, customer_last_name, customer_registered_at,
	total, created_by, status, created_at`

const invoiceItemColumns = `invoice_id, product_id, product_name, product_code, quantity,
	unit_price, discount, taxable_base, tax_rate, tax_amount, subtotal, line_total`

// InvoiceRepository maneja las operaciones de base de datos para Invoice
type InvoiceRepository struct {
	db     *DB
	logger *logrus.Logger
	now    func() time.Time
}

// NewInvoiceRepository crea una nueva instancia del repositorio
func NewInvoiceRepository(db *DB, logger *logrus.Logger) *InvoiceRepository {
	return &InvoiceRepository{
		db:     db,
		logger: logger,
		now:    time.Now,
	}
}

type pricedLine struct {
	productID string
	name      sql.NullString
	code      sql.NullString
	quantity  int
	price     decimal.Decimal
}

// Checkout factura un carrito: descuenta stock, crea la factura emitida y vacía el carrito
func (r *InvoiceRepository) Checkout(ctx context.Context, order models.CheckoutOrder) (*models.Invoice, error) {
	var invoice *models.Invoice

	err := r.db.WithTransaction(ctx, func(tx *sql.Tx) error {
		var cartID string
		err := tx.QueryRowContext(ctx, `SELECT id FROM carts WHERE id = $1 FOR UPDATE`, order.CartID).Scan(&cartID)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s", models.ErrCartNotFound, order.CartID)
		}
		if err != nil {
			return fmt.Errorf("error locking cart: %w", err)
		}

		lines, err := r.cartLines(ctx, tx, cartID)
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			return models.ErrEmptyCart
		}

		for _, line := range lines {
			result, err := tx.ExecContext(ctx,
				`UPDATE products SET stock = stock - $1 WHERE id = $2 AND stock >= $1`,
				line.quantity, line.productID,
			)
			if err != nil {
				return fmt.Errorf("error updating stock: %w", err)
			}
			affected, err := result.RowsAffected()
			if err != nil {
				return fmt.Errorf("error getting rows affected: %w", err)
			}
			if affected == 0 {
				return fmt.Errorf("%w: %s", models.ErrInsufficientStock, line.productID)
			}
		}

		number, err := r.nextNumber(ctx, tx, "FAC")
		if err != nil {
			return err
		}

		invoice = r.buildInvoice(number, models.InvoiceStatusIssued, order.Customer, order.CreatedBy, lines)
		if err := r.insertInvoice(ctx, tx, invoice); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID); err != nil {
			return fmt.Errorf("error clearing cart: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.logger.WithFields(logrus.Fields{
		"invoice_id": invoice.ID,
		"number":     invoice.Number,
		"cart_id":    order.CartID,
		"total":      invoice.Total.String(),
	}).Info("Invoice issued from cart")

	return invoice, nil
}

// CreateDraft crea un borrador de factura sin afectar stock
func (r *InvoiceRepository) CreateDraft(ctx context.Context, req models.DraftRequest) (*models.Invoice, error) {
	var invoice *models.Invoice

	err := r.db.WithTransaction(ctx, func(tx *sql.Tx) error {
		lines := make([]pricedLine, 0, len(req.Items))
		for _, item := range req.Items {
			line := pricedLine{productID: item.ProductID, quantity: item.Quantity}
			err := tx.QueryRowContext(ctx,
				`SELECT name, code, price FROM products WHERE id = $1`, item.ProductID,
			).Scan(&line.name, &line.code, &line.price)
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("%w: %s", models.ErrProductNotFound, item.ProductID)
			}
			if err != nil {
				return fmt.Errorf("error querying product: %w", err)
			}
			lines = append(lines, line)
		}

		number, err := r.nextNumber(ctx, tx, "BOR")
		if err != nil {
			return err
		}

		invoice = r.buildInvoice(number, models.InvoiceStatusDraft, req.Customer, req.CreatedBy, lines)
		return r.insertInvoice(ctx, tx, invoice)
	})
	if err != nil {
		return nil, err
	}

	r.logger.WithFields(logrus.Fields{
		"invoice_id": invoice.ID,
		"number":     invoice.Number,
	}).Info("Draft invoice created")

	return invoice, nil
}

// ListByUser lista las facturas de un usuario, o todas si userID es nil
func (r *InvoiceRepository) ListByUser(ctx context.Context, userID *string) ([]models.Invoice, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `SELECT ` + invoiceColumns + ` FROM invoices`
	var args []interface{}
	if userID != nil {
		query += ` WHERE customer_id = $1`
		args = append(args, *userID)
	}
	query += ` ORDER BY created_at DESC, number DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying invoices: %w", err)
	}
	defer rows.Close()

	invoices := []models.Invoice{}
	for rows.Next() {
		invoice, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, *invoice)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating invoices: %w", err)
	}

	if len(invoices) == 0 {
		return invoices, nil
	}

	ids := make([]string, len(invoices))
	for i := range invoices {
		ids[i] = invoices[i].ID
	}

	items, err := r.itemsFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range invoices {
		if lines, ok := items[invoices[i].ID]; ok {
			invoices[i].Items = lines
		}
	}

	return invoices, nil
}

// GetByID obtiene una factura con sus líneas
func (r *InvoiceRepository) GetByID(ctx context.Context, id string) (*models.Invoice, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	row := r.db.QueryRowContext(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = $1`, id)
	invoice, err := scanInvoice(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", models.ErrInvoiceNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	items, err := r.itemsFor(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	if lines, ok := items[id]; ok {
		invoice.Items = lines
	}

	return invoice, nil
}

func (r *InvoiceRepository) cartLines(ctx context.Context, tx *sql.Tx, cartID string) ([]pricedLine, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT ci.product_id, p.name, p.code, ci.quantity, COALESCE(ci.unit_price, p.price)
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.cart_id = $1
		ORDER BY ci.product_id
	`, cartID)
	if err != nil {
		return nil, fmt.Errorf("error querying cart items: %w", err)
	}
	defer rows.Close()

	var lines []pricedLine
	for rows.Next() {
		var line pricedLine
		if err := rows.Scan(&line.productID, &line.name, &line.code, &line.quantity, &line.price); err != nil {
			return nil, fmt.Errorf("error scanning cart item: %w", err)
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cart items: %w", err)
	}
	return lines, nil
}

func (r *InvoiceRepository) nextNumber(ctx context.Context, tx *sql.Tx, prefix string) (string, error) {
	var seq int64
	if err := tx.QueryRowContext(ctx, `SELECT nextval('invoice_number_seq')`).Scan(&seq); err != nil {
		return "", fmt.Errorf("error allocating invoice number: %w", err)
	}
	return fmt.Sprintf("%s-%06d", prefix, seq), nil
}

func (r *InvoiceRepository) buildInvoice(number string, status models.InvoiceStatus, customer *models.CustomerSnapshot, createdBy *string, lines []pricedLine) *models.Invoice {
	now := r.now()
	invoice := &models.Invoice{
		ID:        uuid.New().String(),
		Number:    number,
		Customer:  customer,
		CreatedBy: createdBy,
		Status:    status,
		CreatedAt: &now,
		Items:     make([]models.InvoiceItem, 0, len(lines)),
	}
	if customer != nil {
		id := customer.ID
		invoice.CustomerID = &id
	}

	for _, line := range lines {
		item := models.InvoiceItem{
			ProductID: line.productID,
			Quantity:  line.quantity,
			UnitPrice: line.price,
		}
		item.ProductName = nullableString(line.name)
		item.ProductCode = nullableString(line.code)
		invoice.Items = append(invoice.Items, item.Settle())
	}
	invoice.Total = models.SumTotals(invoice.Items)

	return invoice
}

func (r *InvoiceRepository) insertInvoice(ctx context.Context, tx *sql.Tx, invoice *models.Invoice) error {
	var username, email, firstName, lastName sql.NullString
	var registeredAt sql.NullTime
	if c := invoice.Customer; c != nil {
		username = sql.NullString{String: c.Username, Valid: true}
		email = sql.NullString{String: c.Email, Valid: true}
		firstName = sql.NullString{String: c.FirstName, Valid: true}
		lastName = sql.NullString{String: c.LastName, Valid: true}
		registeredAt = sql.NullTime{Time: c.RegisteredAt, Valid: true}
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO invoices (`+invoiceColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`,
		invoice.ID, invoice.Number, invoice.CustomerID, username, email,
		firstName, lastName, registeredAt,
		invoice.Total, invoice.CreatedBy, string(invoice.Status), invoice.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("error inserting invoice: %w", err)
	}

	for i, item := range invoice.Items {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO invoice_items (line_no, `+invoiceItemColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		`,
			i+1, invoice.ID, item.ProductID, item.ProductName, item.ProductCode, item.Quantity,
			item.UnitPrice, item.Discount, item.TaxableBase, item.TaxRate, item.TaxAmount,
			item.Subtotal, item.LineTotal,
		)
		if err != nil {
			return fmt.Errorf("error inserting invoice item: %w", err)
		}
	}

	return nil
}

func (r *InvoiceRepository) itemsFor(ctx context.Context, invoiceIDs []string) (map[string][]models.InvoiceItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+invoiceItemColumns+`
		FROM invoice_items
		WHERE invoice_id = ANY($1)
		ORDER BY invoice_id, line_no
	`, pq.Array(invoiceIDs))
	if err != nil {
		return nil, fmt.Errorf("error querying invoice items: %w", err)
	}
	defer rows.Close()

	items := make(map[string][]models.InvoiceItem, len(invoiceIDs))
	for rows.Next() {
		var invoiceID string
		var item models.InvoiceItem
		var name, code sql.NullString
		err := rows.Scan(
			&invoiceID, &item.ProductID, &name, &code, &item.Quantity,
			&item.UnitPrice, &item.Discount, &item.TaxableBase, &item.TaxRate, &item.TaxAmount,
			&item.Subtotal, &item.LineTotal,
		)
		if err != nil {
			return nil, fmt.Errorf("error scanning invoice item: %w", err)
		}
		item.ProductName = nullableString(name)
		item.ProductCode = nullableString(code)
		items[invoiceID] = append(items[invoiceID], item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating invoice items: %w", err)
	}

	return items, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanInvoice(row rowScanner) (*models.Invoice, error) {
	var invoice models.Invoice
	var customerID, username, email, firstName, lastName, createdBy, status sql.NullString
	var registeredAt, createdAt sql.NullTime

	err := row.Scan(
		&invoice.ID, &invoice.Number, &customerID, &username, &email,
		&firstName, &lastName, &registeredAt,
		&invoice.Total, &createdBy, &status, &createdAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("error scanning invoice: %w", err)
	}

	invoice.Status = models.InvoiceStatus(status.String)
	invoice.Items = []models.InvoiceItem{}
	invoice.CreatedBy = nullableString(createdBy)
	if createdAt.Valid {
		invoice.CreatedAt = &createdAt.Time
	}
	if customerID.Valid {
		invoice.CustomerID = &customerID.String
		if username.Valid && email.Valid {
			invoice.Customer = &models.CustomerSnapshot{
				ID:           customerID.String,
				Username:     username.String,
				Email:        email.String,
				FirstName:    firstName.String,
				LastName:     lastName.String,
				RegisteredAt: registeredAt.Time,
			}
		}
	}

	return &invoice, nil
}
