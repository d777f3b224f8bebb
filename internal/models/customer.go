package models

import "time"

// CustomerSnapshot es la copia del cliente tomada al facturar
type CustomerSnapshot struct {
	ID           string    `json:"id" db:"customer_id"`
	Username     string    `json:"username" db:"customer_username"`
	Email        string    `json:"email" db:"customer_email"`
	FirstName    string    `json:"first_name" db:"customer_first_name"`
	LastName     string    `json:"last_name" db:"customer_last_name"`
	RegisteredAt time.Time `json:"registered_at" db:"customer_registered_at"`
}

// UserProfile es el perfil guardado junto al token de la sesión
type UserProfile struct {
	UserID    string     `json:"user_id"`
	Username  string     `json:"username"`
	Email     string     `json:"email"`
	FirstName string     `json:"first_name,omitempty"`
	LastName  string     `json:"last_name,omitempty"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
}

// Snapshot construye la copia del cliente para una factura.
// Retorna nil si falta el id, el username o el email.
func (p *UserProfile) Snapshot(now time.Time) *CustomerSnapshot {
	if p == nil || p.UserID == "" || p.Username == "" || p.Email == "" {
		return nil
	}

	snapshot := &CustomerSnapshot{
		ID:           p.UserID,
		Username:     p.Username,
		Email:        p.Email,
		FirstName:    p.FirstName,
		LastName:     p.LastName,
		RegisteredAt: now,
	}
	if snapshot.FirstName == "" {
		snapshot.FirstName = p.Username
	}
	if p.CreatedAt != nil {
		snapshot.RegisteredAt = *p.CreatedAt
	}
	return snapshot
}

// FullName retorna nombre y apellido
func (c *CustomerSnapshot) FullName() string {
	if c.LastName == "" {
		return c.FirstName
	}
	return c.FirstName + " " + c.LastName
}
