package enrichment

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/octobees/dealflow-crm/internal/entity"
	"github.com/octobees/dealflow-crm/internal/normalize"
	"github.com/octobees/dealflow-crm/internal/repository"
)

// MatchType names the strategy that found a duplicate.
type MatchType string

const (
	MatchTaxID   MatchType = "cif"
	MatchName    MatchType = "nombre"
	MatchWebsite MatchType = "website"
)

// Candidate is the company being checked for duplicates.
type Candidate struct {
	Name    string
	TaxID   *string
	Website *string
}

// DuplicateCheck is the outcome of a duplicate check. A duplicate is a normal
// result, not an error.
type DuplicateCheck struct {
	IsDuplicate bool            `json:"isDuplicate"`
	MatchType   MatchType       `json:"matchType,omitempty"`
	Existing    *entity.Company `json:"existingEmpresa,omitempty"`
}

// CheckDuplicate looks for an existing company by tax id, then normalized
// name, then website domain. The first strategy that matches wins.
func (s *Service) CheckDuplicate(ctx context.Context, candidate Candidate) (DuplicateCheck, error) {
	if strings.TrimSpace(candidate.Name) == "" {
		return DuplicateCheck{}, ErrNameRequired
	}
	return s.checkDuplicate(ctx, s.companies, candidate)
}

func (s *Service) checkDuplicate(ctx context.Context, finder repository.CompanyFinder, candidate Candidate) (DuplicateCheck, error) {
	if candidate.TaxID != nil {
		if taxID := NormalizeTaxID(*candidate.TaxID); taxID != "" {
			existing, err := finder.FindByTaxID(ctx, taxID)
			if err != nil {
				return DuplicateCheck{}, eris.Wrap(err, "enrichment: match by cif")
			}
			if existing != nil {
				return duplicateOf(existing, MatchTaxID), nil
			}
		}
	}

	if name := normalize.CompanyName(candidate.Name); name != "" {
		candidates, err := finder.SearchByName(ctx, name, s.nameMatchLimit)
		if err != nil {
			return DuplicateCheck{}, eris.Wrap(err, "enrichment: match by name")
		}
		for i := range candidates {
			if normalize.CompanyName(candidates[i].Name) == name {
				return duplicateOf(&candidates[i], MatchName), nil
			}
		}
	}

	if candidate.Website != nil {
		if domain, ok := RegistrableDomain(*candidate.Website); ok {
			existing, err := finder.FindByWebsiteDomain(ctx, domain)
			if err != nil {
				return DuplicateCheck{}, eris.Wrap(err, "enrichment: match by website")
			}
			if existing != nil {
				return duplicateOf(existing, MatchWebsite), nil
			}
		}
	}

	return DuplicateCheck{}, nil
}

func duplicateOf(company *entity.Company, match MatchType) DuplicateCheck {
	return DuplicateCheck{IsDuplicate: true, MatchType: match, Existing: company}
}
