package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hypernova-labs/storefront-service/internal/models"
)

// ListCarts lista los carritos de un usuario
func (api *API) ListCarts(c *gin.Context) {
	carts, err := api.carts.ListByUser(c.Request.Context(), c.Query("user_id"))
	if err != nil {
		api.respondError(c, err, "Error listing carts")
		return
	}

	c.JSON(http.StatusOK, gin.H{"carts": carts})
}

// CreateCart crea un carrito. Si la petición trae sesión, el carrito queda a nombre de su usuario.
func (api *API) CreateCart(c *gin.Context) {
	var req models.CreateCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.bindError(c, err)
		return
	}

	var createdBy *string
	if id := c.GetHeader(SessionHeader); id != "" {
		profile, err := api.sessions.Profile(c.Request.Context(), id)
		if err != nil {
			api.logger.WithError(err).WithField("session_id", id).Warn("Error loading session profile")
		} else if profile != nil && profile.UserID != "" {
			createdBy = &profile.UserID
		}
	}

	cart, err := api.carts.Create(c.Request.Context(), req, createdBy)
	if err != nil {
		api.respondError(c, err, "Error creating cart")
		return
	}

	c.JSON(http.StatusCreated, cart)
}

// GetCart obtiene un carrito
func (api *API) GetCart(c *gin.Context) {
	cart, err := api.carts.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		api.respondError(c, err, "Error retrieving cart")
		return
	}

	c.JSON(http.StatusOK, cart)
}

// AddCartItem agrega un producto; las cantidades se acumulan
func (api *API) AddCartItem(c *gin.Context) {
	var req models.CartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.bindError(c, err)
		return
	}

	cart, err := api.carts.AddItem(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		api.respondError(c, err, "Error adding cart item")
		return
	}

	c.JSON(http.StatusOK, cart)
}

// RemoveCartItem quita un producto del carrito
func (api *API) RemoveCartItem(c *gin.Context) {
	cart, err := api.carts.RemoveItem(c.Request.Context(), c.Param("id"), c.Param("product_id"))
	if err != nil {
		api.respondError(c, err, "Error removing cart item")
		return
	}

	c.JSON(http.StatusOK, cart)
}

// ClearCart vacía el carrito
func (api *API) ClearCart(c *gin.Context) {
	cart, err := api.carts.Clear(c.Request.Context(), c.Param("id"))
	if err != nil {
		api.respondError(c, err, "Error clearing cart")
		return
	}

	c.JSON(http.StatusOK, cart)
}

// DeleteCart elimina el carrito
func (api *API) DeleteCart(c *gin.Context) {
	if err := api.carts.Delete(c.Request.Context(), c.Param("id")); err != nil {
		api.respondError(c, err, "Error deleting cart")
		return
	}

	c.Status(http.StatusNoContent)
}

// MergeCarts fusiona un carrito anónimo en el carrito del usuario
func (api *API) MergeCarts(c *gin.Context) {
	var req models.MergeCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.bindError(c, err)
		return
	}

	resp, err := api.carts.Merge(c.Request.Context(), req)
	if err != nil {
		api.respondError(c, err, "Error merging carts")
		return
	}

	c.JSON(http.StatusOK, resp)
}
