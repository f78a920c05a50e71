package enrichment

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/octobees/dealflow-crm/internal/dto"
	"github.com/octobees/dealflow-crm/internal/entity"
	"github.com/octobees/dealflow-crm/internal/normalize"
	"github.com/octobees/dealflow-crm/internal/repository"
)

// MergeMode selects how incoming values are applied to an existing company.
type MergeMode string

const (
	ModeCreateNew MergeMode = "create_new"
	ModeEmptyOnly MergeMode = "empty_only"
	ModeSelective MergeMode = "selective"
)

// ParseMergeMode validates a mode received from a caller.
func ParseMergeMode(value string) (MergeMode, error) {
	switch mode := MergeMode(strings.TrimSpace(value)); mode {
	case ModeCreateNew, ModeEmptyOnly, ModeSelective:
		return mode, nil
	default:
		return "", eris.Wrapf(ErrInvalidMergeMode, "enrichment: %q", value)
	}
}

// MergeAction is what ApplyMerge did to the company.
type MergeAction string

const (
	ActionCreated MergeAction = "created"
	ActionUpdated MergeAction = "updated"
	ActionSkipped MergeAction = "skipped"
)

const (
	auditActionMerge = "enrichment_merge"
	defaultSource    = "enrichment"
)

// MergeInput is a validated merge request.
type MergeInput struct {
	Data            dto.EnrichedData
	CompanyID       *uuid.UUID
	Mode            MergeMode
	FieldSelections map[string]bool
	Contacts        []dto.ContactWithDedupe
	DealID          *uuid.UUID
	UserID          *uuid.UUID
}

// MergeResult summarizes a merge.
type MergeResult struct {
	CompanyID       uuid.UUID   `json:"empresaId"`
	Action          MergeAction `json:"action"`
	FieldsUpdated   []string    `json:"fieldsUpdated"`
	ContactsCreated int         `json:"contactsCreated"`
	ContactsSkipped int         `json:"contactsSkipped"`
	DealLinked      bool        `json:"dealLinked"`
}

// ApplyMerge creates or updates the company, links it to the deal on
// creation, imports contacts and records one audit entry. A failed company
// write aborts before any contact is touched; a failed contact insert is
// counted as skipped.
func (s *Service) ApplyMerge(ctx context.Context, in MergeInput) (MergeResult, error) {
	if _, err := ParseMergeMode(string(in.Mode)); err != nil {
		return MergeResult{}, err
	}

	source := strings.TrimSpace(in.Data.Source)
	if source == "" {
		source = defaultSource
	}

	var (
		result MergeResult
		err    error
	)
	if in.CompanyID != nil && in.Mode != ModeCreateNew {
		result, err = s.updateCompany(ctx, *in.CompanyID, in, source)
	} else {
		result, err = s.createCompany(ctx, in, source)
	}
	if err != nil {
		return MergeResult{}, err
	}

	if result.Action == ActionCreated && in.DealID != nil {
		link := &entity.DealCompany{DealID: *in.DealID, CompanyID: result.CompanyID, Role: entity.DealRoleTarget}
		if err := s.deals.LinkCompany(ctx, link); err != nil {
			zap.L().Warn("link company to deal failed",
				zap.String("empresa_id", result.CompanyID.String()),
				zap.String("mandato_id", in.DealID.String()),
				zap.Error(err),
			)
		} else {
			result.DealLinked = true
		}
	}

	result.ContactsCreated, result.ContactsSkipped = s.importContacts(ctx, result, in.Contacts)

	s.audit.Record(ctx, entity.AuditLog{
		Action:        auditActionMerge,
		TableName:     "empresas",
		RecordID:      &result.CompanyID,
		ChangedFields: result.FieldsUpdated,
		UserID:        in.UserID,
		NewValues: map[string]any{
			"action":           result.Action,
			"fields_updated":   result.FieldsUpdated,
			"source":           source,
			"merge_mode":       in.Mode,
			"contacts_created": result.ContactsCreated,
			"contacts_skipped": result.ContactsSkipped,
		},
	})

	return result, nil
}

func (s *Service) updateCompany(ctx context.Context, id uuid.UUID, in MergeInput, source string) (MergeResult, error) {
	existing, err := s.companies.GetByID(ctx, id)
	if err != nil {
		return MergeResult{}, err
	}

	diffs := ComputeFieldDiff(*existing, in.Data)
	var update repository.CompanyUpdate
	for i, f := range mergeableFields {
		diff := diffs[i]
		if !shouldWrite(in.Mode, diff, in.FieldSelections) {
			continue
		}
		f.apply(&update, in.Data)
	}

	now := s.now()
	update.EnrichmentSource = &source
	update.EnrichedAt = &now

	if err := s.companies.Update(ctx, id, update); err != nil {
		return MergeResult{}, err
	}

	result := MergeResult{
		CompanyID:     id,
		Action:        ActionSkipped,
		FieldsUpdated: update.Fields(),
	}
	if len(result.FieldsUpdated) > 0 {
		result.Action = ActionUpdated
	} else {
		result.FieldsUpdated = []string{}
	}
	return result, nil
}

// shouldWrite decides whether one field is written. Null incoming values and
// values equal to the stored one are never written.
func shouldWrite(mode MergeMode, diff FieldDiff, selections map[string]bool) bool {
	if diff.NewValue == nil || diff.NewValue == diff.OldValue {
		return false
	}
	if mode == ModeEmptyOnly {
		return diff.OldValue == nil
	}
	if selected, ok := selections[diff.Field]; ok {
		return selected
	}
	return diff.Selected
}

func (s *Service) createCompany(ctx context.Context, in MergeInput, source string) (MergeResult, error) {
	name := strings.TrimSpace(in.Data.Name)
	if name == "" {
		return MergeResult{}, ErrNameRequired
	}

	now := s.now()
	company := &entity.Company{
		Name:              name,
		TaxID:             trimmed(in.Data.TaxID),
		Website:           trimmed(in.Data.Website),
		Sector:            trimmed(in.Data.Sector),
		SectorID:          trimmed(in.Data.SectorID),
		Employees:         in.Data.Employees,
		Description:       trimmed(in.Data.Description),
		Location:          trimmed(in.Data.Location),
		CNAECode:          trimmed(in.Data.CNAECode),
		CNAEDescription:   trimmed(in.Data.CNAEDescription),
		NotableActivities: in.Data.NotableActivities,
		EnrichmentSource:  &source,
		EnrichedAt:        &now,
		IsTarget:          true,
	}
	if company.TaxID != nil {
		normalized := NormalizeTaxID(*company.TaxID)
		company.TaxID = &normalized
	}

	candidate := Candidate{Name: name, TaxID: company.TaxID, Website: company.Website}

	// An explicit company id with create_new means the operator chose to
	// create despite a known duplicate, so the recheck is skipped.
	var guard repository.CreateGuard
	if in.CompanyID == nil {
		guard = func(ctx context.Context, finder repository.CompanyFinder) error {
			check, err := s.checkDuplicate(ctx, finder, candidate)
			if err != nil {
				return err
			}
			if check.IsDuplicate {
				return &DuplicateError{Check: check}
			}
			return nil
		}
	}

	if err := s.companies.CreateLocked(ctx, creationLockKeys(candidate), company, guard); err != nil {
		return MergeResult{}, err
	}

	return MergeResult{
		CompanyID:     company.ID,
		Action:        ActionCreated,
		FieldsUpdated: []string{},
	}, nil
}

// creationLockKeys derives the advisory lock keys that serialize concurrent
// creations of the same company.
func creationLockKeys(c Candidate) []string {
	var keys []string
	if c.TaxID != nil && *c.TaxID != "" {
		keys = append(keys, "cif:"+*c.TaxID)
	}
	if name := normalize.CompanyName(c.Name); name != "" {
		keys = append(keys, "nombre:"+name)
	}
	if c.Website != nil {
		if domain, ok := RegistrableDomain(*c.Website); ok {
			keys = append(keys, "dominio:"+domain)
		}
	}
	return keys
}

// importContacts inserts selected, non-duplicate contacts. Everything else,
// including failed inserts, counts as skipped.
func (s *Service) importContacts(ctx context.Context, result MergeResult, contacts []dto.ContactWithDedupe) (created, skipped int) {
	if len(contacts) == 0 {
		return 0, 0
	}

	duplicates := s.recheckContacts(ctx, result, contacts)
	companyID := result.CompanyID

	for i, c := range contacts {
		if !c.Selected || c.IsDuplicate || duplicates[i] {
			skipped++
			continue
		}
		first, last := splitName(c.Name)
		if first == "" {
			skipped++
			continue
		}
		fields := sanitizeContact(c.EnrichedContact)
		contact := &entity.Contact{
			CompanyID: &companyID,
			FirstName: first,
			LastName:  last,
			Role:      fields.role,
			Email:     fields.email,
			Phone:     fields.phone,
			LinkedIn:  fields.linkedIn,
		}
		if err := s.contacts.Create(ctx, contact); err != nil {
			zap.L().Warn("create contact failed",
				zap.String("empresa_id", companyID.String()),
				zap.Error(err),
			)
			skipped++
			continue
		}
		created++
	}
	return created, skipped
}

// recheckContacts repeats the duplicate lookup for the contacts about to be
// inserted, scoped to the company when it already existed. A lookup failure
// falls back to the caller's flags.
func (s *Service) recheckContacts(ctx context.Context, result MergeResult, contacts []dto.ContactWithDedupe) []bool {
	flags := make([]bool, len(contacts))
	pending := make([]dto.EnrichedContact, 0, len(contacts))
	index := make([]int, 0, len(contacts))
	for i, c := range contacts {
		if c.Selected && !c.IsDuplicate {
			pending = append(pending, c.EnrichedContact)
			index = append(index, i)
		}
	}
	if len(pending) == 0 {
		return flags
	}

	var scope *uuid.UUID
	if result.Action != ActionCreated {
		scope = &result.CompanyID
	}
	checked, err := s.DedupeContacts(ctx, pending, scope)
	if err != nil {
		zap.L().Warn("contact duplicate recheck failed", zap.Error(err))
		return flags
	}
	for j, c := range checked {
		flags[index[j]] = c.IsDuplicate
	}
	return flags
}

// splitName takes the first word as the first name and the rest as surname.
func splitName(full string) (string, *string) {
	parts := strings.Fields(full)
	if len(parts) == 0 {
		return "", nil
	}
	if len(parts) == 1 {
		return parts[0], nil
	}
	last := strings.Join(parts[1:], " ")
	return parts[0], &last
}

// IsDuplicateConflict reports whether err means the company already exists.
func IsDuplicateConflict(err error) bool {
	var dupErr *DuplicateError
	if errors.As(err, &dupErr) {
		return true
	}
	var dbErr *repository.DatabaseError
	return errors.As(err, &dbErr) && dbErr.IsUniqueViolation()
}
