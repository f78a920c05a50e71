package entity

import (
	"time"

	"github.com/google/uuid"
)

// DealRoleTarget marks the company a mandate is about.
const DealRoleTarget = "target"

// DealCompany links a company to a mandate (deal) with a role.
type DealCompany struct {
	ID        uuid.UUID `json:"id"`
	DealID    uuid.UUID `json:"mandato_id"`
	CompanyID uuid.UUID `json:"empresa_id"`
	Role      string    `json:"rol"`
	CreatedAt time.Time `json:"created_at"`
}
