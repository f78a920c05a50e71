// Package enrichment matches externally sourced company data against the
// directory and merges it without creating duplicates.
package enrichment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/octobees/dealflow-crm/internal/entity"
	"github.com/octobees/dealflow-crm/internal/repository"
)

const defaultNameMatchLimit = 50

var (
	// ErrNameRequired is returned when a candidate company has no name.
	ErrNameRequired = errors.New("nombre is required")
	// ErrInvalidMergeMode is returned for an unknown merge mode.
	ErrInvalidMergeMode = errors.New("invalid merge mode")
)

// DuplicateError reports that a company matching the one being created
// appeared while the creation lock was held.
type DuplicateError struct {
	Check DuplicateCheck
}

func (e *DuplicateError) Error() string {
	if e.Check.Existing == nil {
		return "duplicate company"
	}
	return fmt.Sprintf("duplicate company %q matched by %s", e.Check.Existing.Name, e.Check.MatchType)
}

// AuditSink receives audit entries. Record has no result: implementations
// must handle their own failures.
type AuditSink interface {
	Record(ctx context.Context, entry entity.AuditLog)
}

// Service implements the duplicate matcher, field differ, contact
// deduplicator and merge applier on top of the repositories.
type Service struct {
	companies repository.CompaniesRepository
	contacts  repository.ContactsRepository
	deals     repository.DealsRepository
	audit     AuditSink

	phoneRegion    string
	nameMatchLimit int
	now            func() time.Time
}

// Option configures optional settings.
type Option func(*Service)

// WithPhoneRegion sets the region used to parse phones without a country code.
func WithPhoneRegion(region string) Option {
	return func(s *Service) {
		if region = strings.ToUpper(strings.TrimSpace(region)); region != "" {
			s.phoneRegion = region
		}
	}
}

// WithNameMatchLimit bounds how many name candidates are fetched per check.
func WithNameMatchLimit(limit int) Option {
	return func(s *Service) {
		if limit > 0 {
			s.nameMatchLimit = limit
		}
	}
}

// WithClock overrides the time source used for provenance stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService wires the enrichment service.
func NewService(
	companies repository.CompaniesRepository,
	contacts repository.ContactsRepository,
	deals repository.DealsRepository,
	audit AuditSink,
	opts ...Option,
) *Service {
	s := &Service{
		companies:      companies,
		contacts:       contacts,
		deals:          deals,
		audit:          audit,
		phoneRegion:    defaultPhoneRegion,
		nameMatchLimit: defaultNameMatchLimit,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}
