package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/octobees/dealflow-crm/internal/dto"
	"github.com/octobees/dealflow-crm/internal/entity"
	"github.com/octobees/dealflow-crm/internal/extraction"
	"github.com/octobees/dealflow-crm/internal/middleware"
	"github.com/octobees/dealflow-crm/internal/repository"
	"github.com/octobees/dealflow-crm/internal/service/enrichment"
)

type enrichmentServiceStub struct {
	check  func(ctx context.Context, candidate enrichment.Candidate) (enrichment.DuplicateCheck, error)
	diff   func(ctx context.Context, id uuid.UUID, incoming dto.EnrichedData) ([]enrichment.FieldDiff, error)
	dedupe func(ctx context.Context, incoming []dto.EnrichedContact, companyID *uuid.UUID) ([]dto.ContactWithDedupe, error)
	merge  func(ctx context.Context, in enrichment.MergeInput) (enrichment.MergeResult, error)

	lastMerge *enrichment.MergeInput
}

func (s *enrichmentServiceStub) CheckDuplicate(ctx context.Context, candidate enrichment.Candidate) (enrichment.DuplicateCheck, error) {
	if s.check != nil {
		return s.check(ctx, candidate)
	}
	return enrichment.DuplicateCheck{}, nil
}

func (s *enrichmentServiceStub) DiffCompany(ctx context.Context, id uuid.UUID, incoming dto.EnrichedData) ([]enrichment.FieldDiff, error) {
	if s.diff != nil {
		return s.diff(ctx, id, incoming)
	}
	return nil, nil
}

func (s *enrichmentServiceStub) DedupeContacts(ctx context.Context, incoming []dto.EnrichedContact, companyID *uuid.UUID) ([]dto.ContactWithDedupe, error) {
	if s.dedupe != nil {
		return s.dedupe(ctx, incoming, companyID)
	}
	return []dto.ContactWithDedupe{}, nil
}

func (s *enrichmentServiceStub) ApplyMerge(ctx context.Context, in enrichment.MergeInput) (enrichment.MergeResult, error) {
	s.lastMerge = &in
	if s.merge != nil {
		return s.merge(ctx, in)
	}
	return enrichment.MergeResult{CompanyID: uuid.New(), Action: enrichment.ActionCreated}, nil
}

type extractorStub struct {
	data          dto.EnrichedData
	err           error
	lastRequestID string
}

func (s *extractorStub) Extract(ctx context.Context, website, requestID string) (dto.EnrichedData, error) {
	s.lastRequestID = requestID
	if s.err != nil {
		return dto.EnrichedData{}, s.err
	}
	return s.data, nil
}

func jsonContext(method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder, data any) APIResponse {
	t.Helper()
	var raw struct {
		APIResponse
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &raw); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if data != nil && len(raw.Data) > 0 {
		if err := json.Unmarshal(raw.Data, data); err != nil {
			t.Fatalf("failed to decode data: %v", err)
		}
	}
	return raw.APIResponse
}

func TestEnrichmentHandler_CheckDuplicate(t *testing.T) {
	existingID := uuid.New()
	svc := &enrichmentServiceStub{
		check: func(ctx context.Context, candidate enrichment.Candidate) (enrichment.DuplicateCheck, error) {
			if candidate.Name != "Acme SL" || candidate.TaxID == nil || *candidate.TaxID != "B12345678" {
				t.Fatalf("unexpected candidate: %+v", candidate)
			}
			return enrichment.DuplicateCheck{
				IsDuplicate: true,
				MatchType:   enrichment.MatchTaxID,
				Existing:    &entity.Company{ID: existingID, Name: "Acme, S.L."},
			}, nil
		},
	}
	handler := NewEnrichmentHandler(svc, &extractorStub{})

	c, rec := jsonContext(http.MethodPost, "/enrichment/check-duplicate", `{"nombre":"Acme SL","cif":"B12345678"}`)
	if err := handler.CheckDuplicate(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var check struct {
		IsDuplicate bool   `json:"isDuplicate"`
		MatchType   string `json:"matchType"`
		Existing    struct {
			ID string `json:"id"`
		} `json:"existingEmpresa"`
	}
	payload := decodeEnvelope(t, rec, &check)
	if payload.Status != "success" || !check.IsDuplicate || check.MatchType != "cif" || check.Existing.ID != existingID.String() {
		t.Fatalf("unexpected payload: %+v %+v", payload, check)
	}
}

func TestEnrichmentHandler_CheckDuplicate_NameRequired(t *testing.T) {
	svc := &enrichmentServiceStub{
		check: func(ctx context.Context, candidate enrichment.Candidate) (enrichment.DuplicateCheck, error) {
			return enrichment.DuplicateCheck{}, enrichment.ErrNameRequired
		},
	}
	handler := NewEnrichmentHandler(svc, &extractorStub{})

	c, rec := jsonContext(http.MethodPost, "/enrichment/check-duplicate", `{"nombre":"  "}`)
	_ = handler.CheckDuplicate(c)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestEnrichmentHandler_Diff(t *testing.T) {
	companyID := uuid.New()

	tests := map[string]struct {
		body       string
		err        error
		expectCode int
	}{
		"invalid json":   {body: "not-json", expectCode: http.StatusBadRequest},
		"invalid id":     {body: `{"empresa_id":"nope","data":{"nombre":"Acme"}}`, expectCode: http.StatusBadRequest},
		"not found":      {body: `{"empresa_id":"` + companyID.String() + `","data":{"nombre":"Acme"}}`, err: repository.ErrCompanyNotFound, expectCode: http.StatusNotFound},
		"database error": {body: `{"empresa_id":"` + companyID.String() + `","data":{"nombre":"Acme"}}`, err: &repository.DatabaseError{Table: "empresas", Op: "select", Err: errors.New("down")}, expectCode: http.StatusInternalServerError},
		"success":        {body: `{"empresa_id":"` + companyID.String() + `","data":{"nombre":"Acme","sector":"Software"}}`, expectCode: http.StatusOK},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			svc := &enrichmentServiceStub{
				diff: func(ctx context.Context, id uuid.UUID, incoming dto.EnrichedData) ([]enrichment.FieldDiff, error) {
					if id != companyID {
						t.Fatalf("unexpected id %s", id)
					}
					if tt.err != nil {
						return nil, tt.err
					}
					return []enrichment.FieldDiff{{Field: "sector", Label: "Sector", NewValue: "Software", Selected: true}}, nil
				},
			}
			handler := NewEnrichmentHandler(svc, &extractorStub{})

			c, rec := jsonContext(http.MethodPost, "/enrichment/diff", tt.body)
			if err := handler.Diff(c); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if rec.Code != tt.expectCode {
				t.Fatalf("expected %d, got %d", tt.expectCode, rec.Code)
			}
			if tt.expectCode == http.StatusInternalServerError {
				payload := decodeEnvelope(t, rec, nil)
				if payload.Message != "operation failed" {
					t.Fatalf("expected generic message, got %q", payload.Message)
				}
			}
		})
	}
}

func TestEnrichmentHandler_DedupeContacts(t *testing.T) {
	companyID := uuid.New()
	svc := &enrichmentServiceStub{
		dedupe: func(ctx context.Context, incoming []dto.EnrichedContact, scope *uuid.UUID) ([]dto.ContactWithDedupe, error) {
			if scope == nil || *scope != companyID {
				t.Fatalf("expected company scope, got %v", scope)
			}
			if len(incoming) != 2 {
				t.Fatalf("expected 2 contacts, got %d", len(incoming))
			}
			return []dto.ContactWithDedupe{
				{EnrichedContact: incoming[0], Selected: false, IsDuplicate: true},
				{EnrichedContact: incoming[1], Selected: true},
			}, nil
		},
	}
	handler := NewEnrichmentHandler(svc, &extractorStub{})

	body := `{"empresa_id":"` + companyID.String() + `","contactos":[{"nombre":"Ana","email":"ana@acme.es"},{"nombre":"Luis"}]}`
	c, rec := jsonContext(http.MethodPost, "/enrichment/contacts/dedupe", body)
	if err := handler.DedupeContacts(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var contacts []dto.ContactWithDedupe
	decodeEnvelope(t, rec, &contacts)
	if len(contacts) != 2 || !contacts[0].IsDuplicate || contacts[0].Selected || !contacts[1].Selected {
		t.Fatalf("unexpected contacts: %+v", contacts)
	}
}

func TestEnrichmentHandler_DedupeContacts_InvalidScope(t *testing.T) {
	handler := NewEnrichmentHandler(&enrichmentServiceStub{}, &extractorStub{})

	c, rec := jsonContext(http.MethodPost, "/enrichment/contacts/dedupe", `{"empresa_id":"bad","contactos":[]}`)
	_ = handler.DedupeContacts(c)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestEnrichmentHandler_Merge(t *testing.T) {
	companyID := uuid.New()
	dealID := uuid.New()
	userID := uuid.New()

	t.Run("defaults to selective with empresa_id", func(t *testing.T) {
		svc := &enrichmentServiceStub{
			merge: func(ctx context.Context, in enrichment.MergeInput) (enrichment.MergeResult, error) {
				return enrichment.MergeResult{CompanyID: *in.CompanyID, Action: enrichment.ActionUpdated, FieldsUpdated: []string{"sector"}}, nil
			},
		}
		handler := NewEnrichmentHandler(svc, &extractorStub{})

		body := `{"empresa_id":"` + companyID.String() + `","data":{"nombre":"Acme","sector":"Software"},"field_selections":{"sector":true}}`
		c, rec := jsonContext(http.MethodPost, "/enrichment/merge", body)
		c.Set(middleware.ContextKeyUserID, userID.String())
		if err := handler.Merge(c); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		in := svc.lastMerge
		if in == nil || in.Mode != enrichment.ModeSelective || !in.FieldSelections["sector"] {
			t.Fatalf("unexpected merge input: %+v", in)
		}
		if in.UserID == nil || *in.UserID != userID {
			t.Fatalf("expected user id from token subject, got %v", in.UserID)
		}

		var result enrichment.MergeResult
		decodeEnvelope(t, rec, &result)
		if result.Action != enrichment.ActionUpdated || result.CompanyID != companyID {
			t.Fatalf("unexpected result: %+v", result)
		}
	})

	t.Run("defaults to create_new and passes the deal", func(t *testing.T) {
		svc := &enrichmentServiceStub{}
		handler := NewEnrichmentHandler(svc, &extractorStub{})

		body := `{"data":{"nombre":"Nueva SL"},"mandato_id":"` + dealID.String() + `"}`
		c, rec := jsonContext(http.MethodPost, "/enrichment/merge", body)
		c.Set(middleware.ContextKeyUserID, "auth0|not-a-uuid")
		if err := handler.Merge(c); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		in := svc.lastMerge
		if in.Mode != enrichment.ModeCreateNew || in.CompanyID != nil || in.DealID == nil || *in.DealID != dealID {
			t.Fatalf("unexpected merge input: %+v", in)
		}
		if in.UserID != nil {
			t.Fatalf("expected nil user id for non uuid subject")
		}
	})

	tests := map[string]struct {
		body       string
		err        error
		expectCode int
	}{
		"invalid json":           {body: "{", expectCode: http.StatusBadRequest},
		"invalid mode":           {body: `{"data":{"nombre":"X"},"merge_mode":"overwrite"}`, expectCode: http.StatusBadRequest},
		"update without company": {body: `{"data":{"nombre":"X"},"merge_mode":"empty_only"}`, expectCode: http.StatusBadRequest},
		"invalid deal":           {body: `{"data":{"nombre":"X"},"mandato_id":"x"}`, expectCode: http.StatusBadRequest},
		"name required":          {body: `{"data":{"nombre":""}}`, err: enrichment.ErrNameRequired, expectCode: http.StatusBadRequest},
		"unknown company":        {body: `{"empresa_id":"` + companyID.String() + `","data":{"nombre":"X"}}`, err: repository.ErrCompanyNotFound, expectCode: http.StatusNotFound},
		"duplicate on create":    {body: `{"data":{"nombre":"X"}}`, err: &enrichment.DuplicateError{}, expectCode: http.StatusConflict},
		"database error":         {body: `{"data":{"nombre":"X"}}`, err: &repository.DatabaseError{Table: "empresas", Op: "insert", Err: errors.New("down")}, expectCode: http.StatusInternalServerError},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			svc := &enrichmentServiceStub{
				merge: func(ctx context.Context, in enrichment.MergeInput) (enrichment.MergeResult, error) {
					return enrichment.MergeResult{}, tt.err
				},
			}
			handler := NewEnrichmentHandler(svc, &extractorStub{})

			c, rec := jsonContext(http.MethodPost, "/enrichment/merge", tt.body)
			if err := handler.Merge(c); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if rec.Code != tt.expectCode {
				t.Fatalf("expected %d, got %d: %s", tt.expectCode, rec.Code, rec.Body.String())
			}
			if tt.err == nil && svc.lastMerge != nil {
				t.Fatalf("expected request to be rejected before merging")
			}
		})
	}
}

func TestEnrichmentHandler_Extract(t *testing.T) {
	website := "https://acme.es"
	extractor := &extractorStub{data: dto.EnrichedData{Name: "Acme SL", Website: &website, Source: "web"}}
	svc := &enrichmentServiceStub{
		check: func(ctx context.Context, candidate enrichment.Candidate) (enrichment.DuplicateCheck, error) {
			if candidate.Website == nil || *candidate.Website != website {
				t.Fatalf("expected website in candidate")
			}
			return enrichment.DuplicateCheck{IsDuplicate: true, MatchType: enrichment.MatchWebsite, Existing: &entity.Company{Name: "Acme"}}, nil
		},
	}
	handler := NewEnrichmentHandler(svc, extractor)

	c, rec := jsonContext(http.MethodPost, "/enrichment/extract", `{"sitio_web":"https://acme.es"}`)
	c.Set(middleware.ContextKeyRequestID, "rid-9")
	if err := handler.Extract(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if extractor.lastRequestID != "rid-9" {
		t.Fatalf("expected request id forwarded to worker, got %q", extractor.lastRequestID)
	}

	var body struct {
		Data      dto.EnrichedData `json:"data"`
		Duplicate struct {
			IsDuplicate bool   `json:"isDuplicate"`
			MatchType   string `json:"matchType"`
		} `json:"duplicate"`
	}
	decodeEnvelope(t, rec, &body)
	if body.Data.Name != "Acme SL" || !body.Duplicate.IsDuplicate || body.Duplicate.MatchType != "website" {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestEnrichmentHandler_Extract_Errors(t *testing.T) {
	tests := map[string]struct {
		body       string
		err        error
		expectCode int
	}{
		"missing website": {body: `{}`, expectCode: http.StatusBadRequest},
		"invalid website": {body: `{"sitio_web":"localhost"}`, expectCode: http.StatusBadRequest},
		"worker error":    {body: `{"sitio_web":"https://acme.es"}`, err: extraction.ErrWorker, expectCode: http.StatusBadGateway},
		"worker down":     {body: `{"sitio_web":"https://acme.es"}`, err: context.DeadlineExceeded, expectCode: http.StatusBadGateway},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			handler := NewEnrichmentHandler(&enrichmentServiceStub{}, &extractorStub{err: tt.err})

			c, rec := jsonContext(http.MethodPost, "/enrichment/extract", tt.body)
			_ = handler.Extract(c)
			if rec.Code != tt.expectCode {
				t.Fatalf("expected %d, got %d", tt.expectCode, rec.Code)
			}
		})
	}
}
