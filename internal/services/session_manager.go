package services

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// SessionGauge recibe la cantidad de sesiones activas
type SessionGauge interface {
	SetActiveSessions(n int)
}

type sessionEntry struct {
	flow     *InvoiceFlow
	lastUsed time.Time
}

// SessionManager mantiene un InvoiceFlow por sesión y elimina los inactivos
type SessionManager struct {
	deps    FlowDeps
	idleTTL time.Duration
	gauge   SessionGauge
	logger  *logrus.Logger
	now     func() time.Time

	mu       sync.Mutex
	sessions map[string]*sessionEntry
	cron     *cron.Cron
	onExpire []func(sessionID string)
}

// NewSessionManager crea el administrador de sesiones
func NewSessionManager(deps FlowDeps, idleTTL time.Duration, gauge SessionGauge, logger *logrus.Logger) *SessionManager {
	return &SessionManager{
		deps:     deps,
		idleTTL:  idleTTL,
		gauge:    gauge,
		logger:   logger,
		now:      time.Now,
		sessions: make(map[string]*sessionEntry),
	}
}

// Flow retorna el flujo de la sesión, creándolo si no existe
func (m *SessionManager) Flow(sessionID string) *InvoiceFlow {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.sessions[sessionID]
	if !ok {
		entry = &sessionEntry{flow: NewInvoiceFlow(sessionID, m.deps)}
		m.sessions[sessionID] = entry
		m.logger.WithField("session_id", sessionID).Debug("Invoice flow created")
		m.reportLocked()
	}
	entry.lastUsed = m.now()
	return entry.flow
}

// Drop cierra y elimina el flujo de la sesión
func (m *SessionManager) Drop(sessionID string) {
	m.mu.Lock()
	entry, ok := m.sessions[sessionID]
	if ok {
		delete(m.sessions, sessionID)
		m.reportLocked()
	}
	m.mu.Unlock()

	if ok {
		entry.flow.Close()
	}
}

// OnExpire registra fn para cada sesión que Sweep elimina por inactividad
func (m *SessionManager) OnExpire(fn func(sessionID string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onExpire = append(m.onExpire, fn)
}

// Len retorna la cantidad de sesiones activas
func (m *SessionManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Sweep cierra los flujos sin uso por más de idleTTL y retorna cuántos eliminó
func (m *SessionManager) Sweep() int {
	cutoff := m.now().Add(-m.idleTTL)

	m.mu.Lock()
	var expired []*sessionEntry
	var ids []string
	for id, entry := range m.sessions {
		if entry.lastUsed.Before(cutoff) {
			expired = append(expired, entry)
			ids = append(ids, id)
			delete(m.sessions, id)
		}
	}
	if len(expired) > 0 {
		m.reportLocked()
	}
	hooks := m.onExpire
	m.mu.Unlock()

	for _, entry := range expired {
		entry.flow.Close()
	}
	for _, id := range ids {
		for _, fn := range hooks {
			fn(id)
		}
	}

	if len(expired) > 0 {
		m.logger.WithFields(logrus.Fields{
			"expired":   len(expired),
			"remaining": m.Len(),
		}).Info("Idle sessions swept")
	}
	return len(expired)
}

// Start programa el barrido de sesiones inactivas
func (m *SessionManager) Start(schedule string) error {
	c := cron.New()
	if _, err := c.AddFunc(schedule, func() { m.Sweep() }); err != nil {
		return fmt.Errorf("error scheduling session sweep: %w", err)
	}
	c.Start()

	m.mu.Lock()
	m.cron = c
	m.mu.Unlock()

	m.logger.WithFields(logrus.Fields{
		"schedule": schedule,
		"idle_ttl": m.idleTTL.String(),
	}).Info("Session sweep scheduled")
	return nil
}

// Stop detiene el barrido, cierra todos los flujos y espera sus efectos pendientes
func (m *SessionManager) Stop() {
	m.mu.Lock()
	c := m.cron
	m.cron = nil
	flows := make([]*InvoiceFlow, 0, len(m.sessions))
	for id, entry := range m.sessions {
		flows = append(flows, entry.flow)
		delete(m.sessions, id)
	}
	m.reportLocked()
	m.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
	}
	for _, flow := range flows {
		flow.Close()
		flow.Wait()
	}
}

func (m *SessionManager) reportLocked() {
	if m.gauge != nil {
		m.gauge.SetActiveSessions(len(m.sessions))
	}
}
