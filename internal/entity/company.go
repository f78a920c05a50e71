package entity

import (
	"time"

	"github.com/google/uuid"
)

// Company is a row of the empresas directory.
type Company struct {
	ID                uuid.UUID  `json:"id"`
	Name              string     `json:"nombre"`
	TaxID             *string    `json:"cif,omitempty"`
	Website           *string    `json:"sitio_web,omitempty"`
	Sector            *string    `json:"sector,omitempty"`
	SectorID          *string    `json:"sector_id,omitempty"`
	Employees         *int       `json:"empleados,omitempty"`
	Description       *string    `json:"descripcion,omitempty"`
	Location          *string    `json:"ubicacion,omitempty"`
	CNAECode          *string    `json:"cnae_codigo,omitempty"`
	CNAEDescription   *string    `json:"cnae_descripcion,omitempty"`
	NotableActivities []string   `json:"actividades_destacadas"`
	EnrichmentSource  *string    `json:"fuente_enriquecimiento,omitempty"`
	EnrichedAt        *time.Time `json:"fecha_enriquecimiento,omitempty"`
	IsTarget          bool       `json:"es_target"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}
