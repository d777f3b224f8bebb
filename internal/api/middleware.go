package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hypernova-labs/storefront-service/internal/models"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// SessionHeader es el header que identifica la sesión de UI
const SessionHeader = "X-Session-ID"

const sessionIDKey = "session_id"

// SessionLimiter limita las peticiones por sesión
type SessionLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
}

// NewSessionLimiter crea el limitador con requestsPerSecond y burst por sesión
func NewSessionLimiter(requestsPerSecond, burst int) *SessionLimiter {
	return &SessionLimiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Limit(requestsPerSecond),
		burst:    burst,
	}
}

// Allow consume un token de la sesión
func (l *SessionLimiter) Allow(sessionID string) bool {
	l.mu.Lock()
	limiter, ok := l.limiters[sessionID]
	if !ok {
		limiter = rate.NewLimiter(l.rate, l.burst)
		l.limiters[sessionID] = limiter
	}
	l.mu.Unlock()

	return limiter.Allow()
}

// Forget descarta el limitador de una sesión cerrada
func (l *SessionLimiter) Forget(sessionID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.limiters, sessionID)
}

// Len retorna la cantidad de sesiones con limitador
func (l *SessionLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}

// RetryAfter es el tiempo hasta el próximo token
func (l *SessionLimiter) RetryAfter() time.Duration {
	if l.rate <= 0 {
		return time.Second
	}
	return time.Duration(float64(time.Second) / float64(l.rate))
}

// SessionMiddleware exige una sesión con token guardado y aplica el rate limit
func (api *API) SessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := c.GetHeader(SessionHeader)
		if sessionID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.NewUnauthorizedError("Session ID required"))
			return
		}

		ok, err := api.sessions.HasAccessToken(c.Request.Context(), sessionID)
		if err != nil {
			api.logger.WithError(err).WithField("session_id", sessionID).Error("Error checking session token")
			c.AbortWithStatusJSON(http.StatusInternalServerError, models.NewInternalError("Error checking session"))
			return
		}
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.NewUnauthorizedError("Session not authenticated"))
			return
		}

		if api.limiter != nil && !api.limiter.Allow(sessionID) {
			api.logger.WithFields(logrus.Fields{
				"session_id": sessionID,
				"path":       c.FullPath(),
			}).Warn("Rate limit exceeded")
			c.AbortWithStatusJSON(http.StatusTooManyRequests,
				models.NewRateLimitedError("Too many requests", api.limiter.RetryAfter()))
			return
		}

		c.Set(sessionIDKey, sessionID)
		c.Next()
	}
}

func sessionID(c *gin.Context) string {
	return c.GetString(sessionIDKey)
}
