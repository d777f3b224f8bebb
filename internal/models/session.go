package models

// StartRoute es la pantalla inicial que corresponde a una sesión
type StartRoute string

const (
	StartRouteStore StartRoute = "store"
	StartRouteLogin StartRoute = "login"
)

// Session representa las credenciales guardadas de una sesión de UI
type Session struct {
	ID           string       `json:"id"`
	AccessToken  string       `json:"-"`
	RefreshToken string       `json:"-"`
	Profile      *UserProfile `json:"profile,omitempty"`
}

// SessionRequest representa el request para guardar credenciales.
// El ID de sesión siempre lo genera el servidor.
type SessionRequest struct {
	AccessToken  string       `json:"access_token" binding:"required"`
	RefreshToken string       `json:"refresh_token,omitempty"`
	Profile      *UserProfile `json:"profile,omitempty"`
}

// SessionStatus representa el estado de una sesión al reanudar
type SessionStatus struct {
	SessionID     string       `json:"session_id"`
	Authenticated bool         `json:"authenticated"`
	StartRoute    StartRoute   `json:"start_route"`
	Profile       *UserProfile `json:"profile,omitempty"`
}

// RouteFor retorna la ruta inicial según haya token o no
func RouteFor(authenticated bool) StartRoute {
	if authenticated {
		return StartRouteStore
	}
	return StartRouteLogin
}
