package dto

// EnrichedContact is a candidate contact produced by the extraction step.
type EnrichedContact struct {
	Name     string  `json:"nombre"`
	Role     *string `json:"cargo,omitempty"`
	Email    *string `json:"email,omitempty"`
	Phone    *string `json:"telefono,omitempty"`
	LinkedIn *string `json:"linkedin,omitempty"`
}

// EnrichedData is the transient bag of candidate company values plus contacts
// and the provenance label.
type EnrichedData struct {
	Name              string            `json:"nombre"`
	TaxID             *string           `json:"cif,omitempty"`
	Description       *string           `json:"descripcion,omitempty"`
	Sector            *string           `json:"sector,omitempty"`
	SectorID          *string           `json:"sector_id,omitempty"`
	Employees         *int              `json:"empleados,omitempty"`
	Website           *string           `json:"sitio_web,omitempty"`
	Location          *string           `json:"ubicacion,omitempty"`
	CNAECode          *string           `json:"cnae_codigo,omitempty"`
	CNAEDescription   *string           `json:"cnae_descripcion,omitempty"`
	NotableActivities []string          `json:"actividades_destacadas,omitempty"`
	Source            string            `json:"fuente"`
	Contacts          []EnrichedContact `json:"contactos"`
}

// ContactWithDedupe is an incoming contact annotated with the duplicate check.
type ContactWithDedupe struct {
	EnrichedContact
	Selected            bool    `json:"selected"`
	IsDuplicate         bool    `json:"isDuplicate"`
	ExistingContactID   *string `json:"existingContactId,omitempty"`
	ExistingContactName *string `json:"existingContactName,omitempty"`
}

// DuplicateCheckRequest is the body of POST /enrichment/check-duplicate.
type DuplicateCheckRequest struct {
	Name    string  `json:"nombre"`
	TaxID   *string `json:"cif,omitempty"`
	Website *string `json:"sitio_web,omitempty"`
}

// FieldDiffRequest is the body of POST /enrichment/diff.
type FieldDiffRequest struct {
	CompanyID string       `json:"empresa_id"`
	Data      EnrichedData `json:"data"`
}

// ContactDedupeRequest is the body of POST /enrichment/contacts/dedupe.
type ContactDedupeRequest struct {
	Contacts  []EnrichedContact `json:"contactos"`
	CompanyID *string           `json:"empresa_id,omitempty"`
}

// MergeRequest is the body of POST /enrichment/merge.
type MergeRequest struct {
	Data            EnrichedData        `json:"data"`
	CompanyID       *string             `json:"empresa_id,omitempty"`
	Mode            string              `json:"merge_mode"`
	FieldSelections map[string]bool     `json:"field_selections,omitempty"`
	Contacts        []ContactWithDedupe `json:"contactos,omitempty"`
	DealID          *string             `json:"mandato_id,omitempty"`
}

// ExtractRequest is the body of POST /enrichment/extract.
type ExtractRequest struct {
	Website string `json:"sitio_web"`
}
