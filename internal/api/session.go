package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/hypernova-labs/storefront-service/internal/models"
	"github.com/sirupsen/logrus"
)

// SaveSession crea una sesión nueva con el token y el perfil recibidos
func (api *API) SaveSession(c *gin.Context) {
	var req models.SessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.bindError(c, err)
		return
	}

	session := models.Session{
		ID:           uuid.NewString(),
		AccessToken:  req.AccessToken,
		RefreshToken: req.RefreshToken,
		Profile:      req.Profile,
	}
	if err := api.sessions.Save(c.Request.Context(), session); err != nil {
		api.respondError(c, err, "Error saving session")
		return
	}

	api.logger.WithField("session_id", session.ID).Info("Session saved")

	c.JSON(http.StatusCreated, models.SessionStatus{
		SessionID:     session.ID,
		Authenticated: true,
		StartRoute:    models.RouteFor(true),
		Profile:       session.Profile,
	})
}

// GetSession indica si la sesión tiene token y cuál es la ruta inicial
func (api *API) GetSession(c *gin.Context) {
	id := c.GetHeader(SessionHeader)
	status := models.SessionStatus{
		SessionID:  id,
		StartRoute: models.RouteFor(false),
	}
	if id == "" {
		c.JSON(http.StatusOK, status)
		return
	}

	ctx := c.Request.Context()
	ok, err := api.sessions.HasAccessToken(ctx, id)
	if err != nil {
		api.respondError(c, err, "Error checking session")
		return
	}

	status.Authenticated = ok
	status.StartRoute = models.RouteFor(ok)
	if ok {
		profile, err := api.sessions.Profile(ctx, id)
		if err != nil {
			api.logger.WithError(err).WithField("session_id", id).Warn("Error loading session profile")
		}
		status.Profile = profile
	}

	c.JSON(http.StatusOK, status)
}

// DeleteSession borra las credenciales y cierra los flujos de la sesión
func (api *API) DeleteSession(c *gin.Context) {
	id := c.GetHeader(SessionHeader)
	if id == "" {
		c.JSON(http.StatusBadRequest, models.NewValidationError("Session ID required", []models.ErrorDetail{
			{Field: SessionHeader, Issue: "missing header"},
		}))
		return
	}

	if err := api.sessions.Clear(c.Request.Context(), id); err != nil {
		api.respondError(c, err, "Error clearing session")
		return
	}
	api.flows.Drop(id)
	if api.limiter != nil {
		api.limiter.Forget(id)
	}

	api.logger.WithFields(logrus.Fields{"session_id": id}).Info("Session cleared")
	c.Status(http.StatusNoContent)
}
