package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hypernova-labs/storefront-service/internal/models"
)

// ListProducts lista productos con filtros opcionales de categoría y nombre
func (api *API) ListProducts(c *gin.Context) {
	var filter models.ProductFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.JSON(http.StatusBadRequest, models.NewValidationError("Invalid query", []models.ErrorDetail{
			{Field: "query", Issue: err.Error()},
		}))
		return
	}

	page, err := api.products.List(c.Request.Context(), filter.Normalize())
	if err != nil {
		api.respondError(c, err, "Error listing products")
		return
	}

	c.JSON(http.StatusOK, page)
}

// GetProduct obtiene un producto
func (api *API) GetProduct(c *gin.Context) {
	product, err := api.products.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		api.respondError(c, err, "Error retrieving product")
		return
	}

	c.JSON(http.StatusOK, product)
}

// GetProductStock obtiene el stock por bodega de un producto
func (api *API) GetProductStock(c *gin.Context) {
	stock, err := api.products.Stock(c.Request.Context(), c.Param("id"))
	if err != nil {
		api.respondError(c, err, "Error retrieving stock")
		return
	}

	c.JSON(http.StatusOK, stock)
}

// ListCategories lista las categorías
func (api *API) ListCategories(c *gin.Context) {
	categories, err := api.products.Categories(c.Request.Context())
	if err != nil {
		api.respondError(c, err, "Error listing categories")
		return
	}

	c.JSON(http.StatusOK, gin.H{"categories": categories})
}
