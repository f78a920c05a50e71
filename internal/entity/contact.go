package entity

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Contact is a person stored in contactos, optionally tied to a company.
type Contact struct {
	ID        uuid.UUID  `json:"id"`
	CompanyID *uuid.UUID `json:"empresa_id,omitempty"`
	FirstName string     `json:"nombre"`
	LastName  *string    `json:"apellidos,omitempty"`
	Role      *string    `json:"cargo,omitempty"`
	Email     *string    `json:"email,omitempty"`
	Phone     *string    `json:"telefono,omitempty"`
	LinkedIn  *string    `json:"linkedin,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// DisplayName joins first and last name.
func (c Contact) DisplayName() string {
	if c.LastName == nil {
		return strings.TrimSpace(c.FirstName)
	}
	return strings.TrimSpace(c.FirstName + " " + *c.LastName)
}
