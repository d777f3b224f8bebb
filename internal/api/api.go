package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hypernova-labs/storefront-service/internal/models"
	"github.com/hypernova-labs/storefront-service/internal/services"
	"github.com/sirupsen/logrus"
)

// SessionStore guarda las credenciales de cada sesión
type SessionStore interface {
	Save(ctx context.Context, session models.Session) error
	HasAccessToken(ctx context.Context, sessionID string) (bool, error)
	Profile(ctx context.Context, sessionID string) (*models.UserProfile, error)
	Clear(ctx context.Context, sessionID string) error
}

// ProductCatalog es el acceso de lectura al catálogo
type ProductCatalog interface {
	List(ctx context.Context, filter models.ProductFilter) (*models.ProductPage, error)
	GetByID(ctx context.Context, id string) (*models.Product, error)
	Stock(ctx context.Context, id string) (*models.ProductStock, error)
	Categories(ctx context.Context) ([]models.Category, error)
}

// CartStore es el acceso a carritos
type CartStore interface {
	ListByUser(ctx context.Context, userID string) ([]models.Cart, error)
	GetByID(ctx context.Context, id string) (*models.Cart, error)
	Create(ctx context.Context, req models.CreateCartRequest, createdBy *string) (*models.Cart, error)
	AddItem(ctx context.Context, cartID string, item models.CartItemRequest) (*models.Cart, error)
	RemoveItem(ctx context.Context, cartID, productID string) (*models.Cart, error)
	Clear(ctx context.Context, cartID string) (*models.Cart, error)
	Delete(ctx context.Context, cartID string) error
	Merge(ctx context.Context, req models.MergeCartRequest) (*models.MergeCartResponse, error)
}

// InvoiceDocuments entrega el PDF de una factura
type InvoiceDocuments interface {
	InvoicePDF(ctx context.Context, invoiceID string) ([]byte, string, error)
}

// FlowRegistry entrega el flujo de facturación de cada sesión
type FlowRegistry interface {
	Flow(sessionID string) *services.InvoiceFlow
	Drop(sessionID string)
}

// API maneja todos los endpoints de la API
type API struct {
	sessions  SessionStore
	products  ProductCatalog
	carts     CartStore
	documents InvoiceDocuments
	flows     FlowRegistry
	limiter   *SessionLimiter
	logger    *logrus.Logger
}

// NewAPI crea una nueva instancia de la API
func NewAPI(
	sessions SessionStore,
	products ProductCatalog,
	carts CartStore,
	documents InvoiceDocuments,
	flows FlowRegistry,
	limiter *SessionLimiter,
	logger *logrus.Logger,
) *API {
	return &API{
		sessions:  sessions,
		products:  products,
		carts:     carts,
		documents: documents,
		flows:     flows,
		limiter:   limiter,
		logger:    logger,
	}
}

// RegisterRoutes registra los endpoints /v1
func (api *API) RegisterRoutes(router gin.IRouter) {
	v1 := router.Group("/v1")
	{
		v1.POST("/session", api.SaveSession)
		v1.GET("/session", api.GetSession)
		v1.DELETE("/session", api.DeleteSession)

		// Catálogo
		v1.GET("/products", api.ListProducts)
		v1.GET("/products/:id", api.GetProduct)
		v1.GET("/products/:id/stock", api.GetProductStock)
		v1.GET("/categories", api.ListCategories)

		// Carritos
		v1.GET("/carts", api.ListCarts)
		v1.POST("/carts", api.CreateCart)
		v1.POST("/carts/merge", api.MergeCarts)
		v1.GET("/carts/:id", api.GetCart)
		v1.DELETE("/carts/:id", api.DeleteCart)
		v1.POST("/carts/:id/clear", api.ClearCart)
		v1.POST("/carts/:id/items", api.AddCartItem)
		v1.DELETE("/carts/:id/items/:product_id", api.RemoveCartItem)

		v1.GET("/invoices/:id/pdf", api.DownloadInvoicePDF)

		// Flujos por sesión
		flows := v1.Group("/flows")
		flows.Use(api.SessionMiddleware())
		{
			flows.POST("/checkout", api.TriggerCheckout)
			flows.POST("/checkout/draft", api.TriggerDraft)
			flows.POST("/invoices", api.TriggerInvoices)
			flows.POST("/invoice-detail", api.TriggerInvoiceDetail)
			flows.GET("/:flow", api.GetFlowState)
			flows.DELETE("/:flow", api.ResetFlow)
			flows.GET("/:flow/events", api.StreamFlow)
		}
	}
}

// DownloadInvoicePDF descarga el PDF de una factura
func (api *API) DownloadInvoicePDF(c *gin.Context) {
	data, fileName, err := api.documents.InvoicePDF(c.Request.Context(), c.Param("id"))
	if err != nil {
		api.respondError(c, err, "Error generating invoice PDF")
		return
	}

	c.Header("Content-Disposition", "inline; filename="+fileName)
	c.Data(http.StatusOK, "application/pdf", data)
}

// bindError responde 400 con el detalle del binding
func (api *API) bindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, models.NewValidationError("Invalid request format", []models.ErrorDetail{
		{Field: "body", Issue: err.Error()},
	}))
}

// respondError traduce los errores de dominio a la respuesta HTTP
func (api *API) respondError(c *gin.Context, err error, message string) {
	switch {
	case errors.Is(err, models.ErrCartNotFound),
		errors.Is(err, models.ErrInvoiceNotFound),
		errors.Is(err, models.ErrProductNotFound),
		errors.Is(err, models.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, models.NewNotFoundError(err.Error()))
	case errors.Is(err, models.ErrEmptyCart),
		errors.Is(err, models.ErrInsufficientStock):
		c.JSON(http.StatusConflict, models.NewConflictError(err.Error()))
	case errors.Is(err, services.ErrUnknownFlow):
		c.JSON(http.StatusNotFound, models.NewNotFoundError(err.Error()))
	default:
		api.logger.WithError(err).WithField("path", c.FullPath()).Error(message)
		c.JSON(http.StatusInternalServerError, models.NewInternalError(message))
	}
}
