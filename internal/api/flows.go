package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hypernova-labs/storefront-service/internal/models"
	"github.com/hypernova-labs/storefront-service/internal/services"
	"github.com/hypernova-labs/storefront-service/internal/state"
)

// FlowResponse es el estado de un flujo
type FlowResponse struct {
	Flow  string `json:"flow"`
	State any    `json:"state"`
}

// accepted responde 202 con el estado Loading publicado por el trigger
func accepted(c *gin.Context, flow string) {
	c.JSON(http.StatusAccepted, FlowResponse{Flow: flow, State: state.Loading[any]()})
}

// TriggerCheckout inicia el checkout de un carrito
func (api *API) TriggerCheckout(c *gin.Context) {
	var req models.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.bindError(c, err)
		return
	}

	flow := api.flows.Flow(sessionID(c))
	flow.Checkout(req.CartID)
	accepted(c, services.FlowCheckout)
}

// TriggerDraft inicia la creación de un borrador de factura
func (api *API) TriggerDraft(c *gin.Context) {
	var req models.DraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.bindError(c, err)
		return
	}

	flow := api.flows.Flow(sessionID(c))
	flow.CreateDraft(req.Items)
	accepted(c, services.FlowCheckout)
}

// TriggerInvoices inicia el listado de facturas; el body es opcional
func (api *API) TriggerInvoices(c *gin.Context) {
	var req models.ListInvoicesRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		api.bindError(c, err)
		return
	}

	flow := api.flows.Flow(sessionID(c))
	flow.LoadInvoices(req.UserID)
	accepted(c, services.FlowInvoices)
}

// TriggerInvoiceDetail inicia la carga de una factura
func (api *API) TriggerInvoiceDetail(c *gin.Context) {
	var req models.InvoiceDetailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.bindError(c, err)
		return
	}

	flow := api.flows.Flow(sessionID(c))
	flow.LoadDetail(req.InvoiceID)
	accepted(c, services.FlowInvoiceDetail)
}

// GetFlowState retorna el estado actual de un flujo
func (api *API) GetFlowState(c *gin.Context) {
	view, err := api.flows.Flow(sessionID(c)).View(c.Param("flow"))
	if err != nil {
		api.respondError(c, err, "Error reading flow")
		return
	}

	c.JSON(http.StatusOK, FlowResponse{Flow: view.Name(), State: view.State()})
}

// ResetFlow vuelve un flujo a Idle
func (api *API) ResetFlow(c *gin.Context) {
	view, err := api.flows.Flow(sessionID(c)).View(c.Param("flow"))
	if err != nil {
		api.respondError(c, err, "Error resetting flow")
		return
	}

	view.Reset()
	c.JSON(http.StatusOK, FlowResponse{Flow: view.Name(), State: view.State()})
}

// StreamFlow envía cada estado del flujo como Server-Sent Event.
// El stream termina cuando el cliente se desconecta o la sesión se cierra.
func (api *API) StreamFlow(c *gin.Context) {
	view, err := api.flows.Flow(sessionID(c)).View(c.Param("flow"))
	if err != nil {
		api.respondError(c, err, "Error streaming flow")
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)

	for s := range view.Stream(c.Request.Context()) {
		c.SSEvent("state", s)
		c.Writer.Flush()
	}
}
