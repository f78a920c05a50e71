package enrichment

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/octobees/dealflow-crm/internal/dto"
	"github.com/octobees/dealflow-crm/internal/entity"
	"github.com/octobees/dealflow-crm/internal/repository"
)

func ptr[T any](v T) *T { return &v }

type stubCompanies struct {
	findByTaxIDFn  func(ctx context.Context, taxID string) (*entity.Company, error)
	searchByNameFn func(ctx context.Context, term string, limit int) ([]entity.Company, error)
	findByDomainFn func(ctx context.Context, domain string) (*entity.Company, error)
	getByIDFn      func(ctx context.Context, id uuid.UUID) (*entity.Company, error)
	createFn       func(ctx context.Context, lockKeys []string, company *entity.Company) error
	updateFn       func(ctx context.Context, id uuid.UUID, update repository.CompanyUpdate) error
	listFn         func(ctx context.Context, filter dto.ListFilter) ([]entity.Company, error)

	calls   []string
	created []*entity.Company
	updates []repository.CompanyUpdate
}

func (s *stubCompanies) FindByTaxID(ctx context.Context, taxID string) (*entity.Company, error) {
	s.calls = append(s.calls, "cif")
	if s.findByTaxIDFn != nil {
		return s.findByTaxIDFn(ctx, taxID)
	}
	return nil, nil
}

func (s *stubCompanies) SearchByName(ctx context.Context, term string, limit int) ([]entity.Company, error) {
	s.calls = append(s.calls, "nombre")
	if s.searchByNameFn != nil {
		return s.searchByNameFn(ctx, term, limit)
	}
	return nil, nil
}

func (s *stubCompanies) FindByWebsiteDomain(ctx context.Context, domain string) (*entity.Company, error) {
	s.calls = append(s.calls, "website")
	if s.findByDomainFn != nil {
		return s.findByDomainFn(ctx, domain)
	}
	return nil, nil
}

func (s *stubCompanies) GetByID(ctx context.Context, id uuid.UUID) (*entity.Company, error) {
	if s.getByIDFn != nil {
		return s.getByIDFn(ctx, id)
	}
	return nil, repository.ErrCompanyNotFound
}

func (s *stubCompanies) CreateLocked(ctx context.Context, lockKeys []string, company *entity.Company, guard repository.CreateGuard) error {
	if guard != nil {
		if err := guard(ctx, s); err != nil {
			return err
		}
	}
	if s.createFn != nil {
		if err := s.createFn(ctx, lockKeys, company); err != nil {
			return err
		}
	}
	if company.ID == uuid.Nil {
		company.ID = uuid.New()
	}
	s.created = append(s.created, company)
	return nil
}

func (s *stubCompanies) Update(ctx context.Context, id uuid.UUID, update repository.CompanyUpdate) error {
	s.updates = append(s.updates, update)
	if s.updateFn != nil {
		return s.updateFn(ctx, id, update)
	}
	return nil
}

func (s *stubCompanies) List(ctx context.Context, filter dto.ListFilter) ([]entity.Company, error) {
	if s.listFn != nil {
		return s.listFn(ctx, filter)
	}
	return nil, nil
}

type stubContacts struct {
	mu             sync.Mutex
	findByEmailsFn func(ctx context.Context, emails []string, companyID *uuid.UUID) ([]entity.Contact, error)
	findByPhonesFn func(ctx context.Context, phones []string, companyID *uuid.UUID) ([]entity.Contact, error)
	createFn       func(ctx context.Context, contact *entity.Contact) error

	emailScopes []*uuid.UUID
	created     []*entity.Contact
}

func (s *stubContacts) FindByEmails(ctx context.Context, emails []string, companyID *uuid.UUID) ([]entity.Contact, error) {
	s.mu.Lock()
	s.emailScopes = append(s.emailScopes, companyID)
	s.mu.Unlock()
	if s.findByEmailsFn != nil {
		return s.findByEmailsFn(ctx, emails, companyID)
	}
	return nil, nil
}

func (s *stubContacts) FindByPhones(ctx context.Context, phones []string, companyID *uuid.UUID) ([]entity.Contact, error) {
	if s.findByPhonesFn != nil {
		return s.findByPhonesFn(ctx, phones, companyID)
	}
	return nil, nil
}

func (s *stubContacts) Create(ctx context.Context, contact *entity.Contact) error {
	if s.createFn != nil {
		if err := s.createFn(ctx, contact); err != nil {
			return err
		}
	}
	contact.ID = uuid.New()
	s.created = append(s.created, contact)
	return nil
}

type stubDeals struct {
	err   error
	links []entity.DealCompany
}

func (s *stubDeals) LinkCompany(_ context.Context, link *entity.DealCompany) error {
	if s.err != nil {
		return s.err
	}
	link.ID = uuid.New()
	s.links = append(s.links, *link)
	return nil
}

type recordingAudit struct {
	entries []entity.AuditLog
}

func (r *recordingAudit) Record(_ context.Context, entry entity.AuditLog) {
	r.entries = append(r.entries, entry)
}

type fixture struct {
	companies *stubCompanies
	contacts  *stubContacts
	deals     *stubDeals
	audit     *recordingAudit
	svc       *Service
}

var fixedNow = time.Date(2024, 5, 10, 9, 30, 0, 0, time.UTC)

func newFixture() *fixture {
	f := &fixture{
		companies: &stubCompanies{},
		contacts:  &stubContacts{},
		deals:     &stubDeals{},
		audit:     &recordingAudit{},
	}
	f.svc = NewService(f.companies, f.contacts, f.deals, f.audit,
		WithClock(func() time.Time { return fixedNow }))
	return f
}
