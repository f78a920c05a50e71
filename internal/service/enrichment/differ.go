package enrichment

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/octobees/dealflow-crm/internal/dto"
	"github.com/octobees/dealflow-crm/internal/entity"
	"github.com/octobees/dealflow-crm/internal/repository"
)

// FieldDiff compares one mergeable column of an existing company with the
// incoming value.
type FieldDiff struct {
	Field    string `json:"field"`
	Label    string `json:"label"`
	OldValue any    `json:"oldValue"`
	NewValue any    `json:"newValue"`
	Conflict bool   `json:"conflict"`
	Selected bool   `json:"selected"`
}

// mergeableField binds a column to its values on both sides and to the update
// slot it writes. Only columns listed in mergeableFields can ever be merged.
type mergeableField struct {
	column   string
	label    string
	existing func(entity.Company) any
	incoming func(dto.EnrichedData) any
	apply    func(*repository.CompanyUpdate, dto.EnrichedData)
}

var mergeableFields = []mergeableField{
	{
		column:   "nombre",
		label:    "Nombre",
		existing: func(c entity.Company) any { return textValue(&c.Name) },
		incoming: func(d dto.EnrichedData) any { return textValue(&d.Name) },
		apply:    func(u *repository.CompanyUpdate, d dto.EnrichedData) { u.Name = trimmed(&d.Name) },
	},
	{
		column:   "descripcion",
		label:    "Descripción",
		existing: func(c entity.Company) any { return textValue(c.Description) },
		incoming: func(d dto.EnrichedData) any { return textValue(d.Description) },
		apply:    func(u *repository.CompanyUpdate, d dto.EnrichedData) { u.Description = trimmed(d.Description) },
	},
	{
		column:   "sector",
		label:    "Sector",
		existing: func(c entity.Company) any { return textValue(c.Sector) },
		incoming: func(d dto.EnrichedData) any { return textValue(d.Sector) },
		apply:    func(u *repository.CompanyUpdate, d dto.EnrichedData) { u.Sector = trimmed(d.Sector) },
	},
	{
		column:   "empleados",
		label:    "Empleados",
		existing: func(c entity.Company) any { return intValue(c.Employees) },
		incoming: func(d dto.EnrichedData) any { return intValue(d.Employees) },
		apply:    func(u *repository.CompanyUpdate, d dto.EnrichedData) { u.Employees = d.Employees },
	},
	{
		column:   "sitio_web",
		label:    "Sitio web",
		existing: func(c entity.Company) any { return textValue(c.Website) },
		incoming: func(d dto.EnrichedData) any { return textValue(d.Website) },
		apply:    func(u *repository.CompanyUpdate, d dto.EnrichedData) { u.Website = trimmed(d.Website) },
	},
	{
		column:   "ubicacion",
		label:    "Ubicación",
		existing: func(c entity.Company) any { return textValue(c.Location) },
		incoming: func(d dto.EnrichedData) any { return textValue(d.Location) },
		apply:    func(u *repository.CompanyUpdate, d dto.EnrichedData) { u.Location = trimmed(d.Location) },
	},
	{
		column:   "cnae_codigo",
		label:    "Código CNAE",
		existing: func(c entity.Company) any { return textValue(c.CNAECode) },
		incoming: func(d dto.EnrichedData) any { return textValue(d.CNAECode) },
		apply:    func(u *repository.CompanyUpdate, d dto.EnrichedData) { u.CNAECode = trimmed(d.CNAECode) },
	},
	{
		column:   "cnae_descripcion",
		label:    "Descripción CNAE",
		existing: func(c entity.Company) any { return textValue(c.CNAEDescription) },
		incoming: func(d dto.EnrichedData) any { return textValue(d.CNAEDescription) },
		apply:    func(u *repository.CompanyUpdate, d dto.EnrichedData) { u.CNAEDescription = trimmed(d.CNAEDescription) },
	},
}

// ComputeFieldDiff returns one entry per mergeable field. A blank string
// counts as null on either side.
func ComputeFieldDiff(existing entity.Company, incoming dto.EnrichedData) []FieldDiff {
	diffs := make([]FieldDiff, 0, len(mergeableFields))
	for _, f := range mergeableFields {
		oldValue := f.existing(existing)
		newValue := f.incoming(incoming)
		conflict := oldValue != nil && newValue != nil && oldValue != newValue
		diffs = append(diffs, FieldDiff{
			Field:    f.column,
			Label:    f.label,
			OldValue: oldValue,
			NewValue: newValue,
			Conflict: conflict,
			Selected: newValue != nil && (oldValue == nil || conflict),
		})
	}
	return diffs
}

// DiffCompany loads the company and compares it with the incoming data.
func (s *Service) DiffCompany(ctx context.Context, id uuid.UUID, incoming dto.EnrichedData) ([]FieldDiff, error) {
	existing, err := s.companies.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return ComputeFieldDiff(*existing, incoming), nil
}

func textValue(v *string) any {
	if t := trimmed(v); t != nil {
		return *t
	}
	return nil
}

func intValue(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func trimmed(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	if t == "" {
		return nil
	}
	return &t
}
