package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/octobees/dealflow-crm/internal/dto"
	"github.com/octobees/dealflow-crm/internal/extraction"
	"github.com/octobees/dealflow-crm/internal/middleware"
	"github.com/octobees/dealflow-crm/internal/repository"
	"github.com/octobees/dealflow-crm/internal/service/enrichment"
)

// EnrichmentService is the enrichment pipeline used by the handler.
type EnrichmentService interface {
	CheckDuplicate(ctx context.Context, candidate enrichment.Candidate) (enrichment.DuplicateCheck, error)
	DiffCompany(ctx context.Context, id uuid.UUID, incoming dto.EnrichedData) ([]enrichment.FieldDiff, error)
	DedupeContacts(ctx context.Context, incoming []dto.EnrichedContact, companyID *uuid.UUID) ([]dto.ContactWithDedupe, error)
	ApplyMerge(ctx context.Context, in enrichment.MergeInput) (enrichment.MergeResult, error)
}

// EnrichmentHandler exposes the duplicate matcher, field differ, contact
// deduplicator, merge applier and website extraction.
type EnrichmentHandler struct {
	service   EnrichmentService
	extractor extraction.Extractor
}

// NewEnrichmentHandler wires a new EnrichmentHandler instance.
func NewEnrichmentHandler(service EnrichmentService, extractor extraction.Extractor) *EnrichmentHandler {
	return &EnrichmentHandler{service: service, extractor: extractor}
}

// CheckDuplicate handles POST /enrichment/check-duplicate.
func (h *EnrichmentHandler) CheckDuplicate(c echo.Context) error {
	var req dto.DuplicateCheckRequest
	if err := c.Bind(&req); err != nil {
		return Error(c, http.StatusBadRequest, "invalid JSON payload")
	}

	check, err := h.service.CheckDuplicate(c.Request().Context(), enrichment.Candidate{
		Name:    req.Name,
		TaxID:   req.TaxID,
		Website: req.Website,
	})
	if err != nil {
		return h.serviceError(c, err, "duplicate check failed")
	}

	return Success(c, http.StatusOK, "duplicate check completed", check)
}

// Diff handles POST /enrichment/diff.
func (h *EnrichmentHandler) Diff(c echo.Context) error {
	var req dto.FieldDiffRequest
	if err := c.Bind(&req); err != nil {
		return Error(c, http.StatusBadRequest, "invalid JSON payload")
	}
	companyID, err := uuid.Parse(strings.TrimSpace(req.CompanyID))
	if err != nil {
		return Error(c, http.StatusBadRequest, "invalid empresa_id")
	}

	diffs, err := h.service.DiffCompany(c.Request().Context(), companyID, req.Data)
	if err != nil {
		return h.serviceError(c, err, "diff failed")
	}

	return Success(c, http.StatusOK, "diff computed", diffs)
}

// DedupeContacts handles POST /enrichment/contacts/dedupe.
func (h *EnrichmentHandler) DedupeContacts(c echo.Context) error {
	var req dto.ContactDedupeRequest
	if err := c.Bind(&req); err != nil {
		return Error(c, http.StatusBadRequest, "invalid JSON payload")
	}
	companyID, err := parseOptionalUUID(req.CompanyID)
	if err != nil {
		return Error(c, http.StatusBadRequest, "invalid empresa_id")
	}

	contacts, err := h.service.DedupeContacts(c.Request().Context(), req.Contacts, companyID)
	if err != nil {
		return h.serviceError(c, err, "contact dedupe failed")
	}

	return Success(c, http.StatusOK, "contacts checked", contacts)
}

// Merge handles POST /enrichment/merge.
func (h *EnrichmentHandler) Merge(c echo.Context) error {
	var req dto.MergeRequest
	if err := c.Bind(&req); err != nil {
		return Error(c, http.StatusBadRequest, "invalid JSON payload")
	}

	companyID, err := parseOptionalUUID(req.CompanyID)
	if err != nil {
		return Error(c, http.StatusBadRequest, "invalid empresa_id")
	}
	dealID, err := parseOptionalUUID(req.DealID)
	if err != nil {
		return Error(c, http.StatusBadRequest, "invalid mandato_id")
	}

	modeValue := strings.TrimSpace(req.Mode)
	if modeValue == "" {
		modeValue = string(enrichment.ModeCreateNew)
		if companyID != nil {
			modeValue = string(enrichment.ModeSelective)
		}
	}
	mode, err := enrichment.ParseMergeMode(modeValue)
	if err != nil {
		return Error(c, http.StatusBadRequest, "invalid merge_mode")
	}
	if mode != enrichment.ModeCreateNew && companyID == nil {
		return Error(c, http.StatusBadRequest, "empresa_id is required for "+string(mode))
	}

	result, err := h.service.ApplyMerge(c.Request().Context(), enrichment.MergeInput{
		Data:            req.Data,
		CompanyID:       companyID,
		Mode:            mode,
		FieldSelections: req.FieldSelections,
		Contacts:        req.Contacts,
		DealID:          dealID,
		UserID:          middleware.UserIDFromContext(c),
	})
	if err != nil {
		return h.serviceError(c, err, "merge failed")
	}

	return Success(c, http.StatusOK, "merge applied", result)
}

// Extract handles POST /enrichment/extract: the worker extracts the website
// and the result is checked against the directory.
func (h *EnrichmentHandler) Extract(c echo.Context) error {
	var req dto.ExtractRequest
	if err := c.Bind(&req); err != nil {
		return Error(c, http.StatusBadRequest, "invalid JSON payload")
	}
	website := strings.TrimSpace(req.Website)
	if website == "" {
		return Error(c, http.StatusBadRequest, "sitio_web is required")
	}
	if _, ok := enrichment.RegistrableDomain(website); !ok {
		return Error(c, http.StatusBadRequest, "invalid sitio_web")
	}

	ctx := c.Request().Context()
	data, err := h.extractor.Extract(ctx, website, middleware.RequestIDFromContext(c))
	if err != nil {
		zap.L().Warn("website extraction failed",
			zap.String("request_id", middleware.RequestIDFromContext(c)),
			zap.String("sitio_web", website),
			zap.Error(err),
		)
		if errors.Is(err, extraction.ErrWorker) {
			return Error(c, http.StatusBadGateway, "extraction failed")
		}
		return Error(c, http.StatusBadGateway, "extraction worker unavailable")
	}

	check := enrichment.DuplicateCheck{}
	if strings.TrimSpace(data.Name) != "" {
		check, err = h.service.CheckDuplicate(ctx, enrichment.Candidate{
			Name:    data.Name,
			TaxID:   data.TaxID,
			Website: data.Website,
		})
		if err != nil {
			return h.serviceError(c, err, "duplicate check failed")
		}
	}

	return Success(c, http.StatusOK, "website extracted", map[string]any{
		"data":      data,
		"duplicate": check,
	})
}

func (h *EnrichmentHandler) serviceError(c echo.Context, err error, message string) error {
	var dbErr *repository.DatabaseError
	switch {
	case errors.Is(err, enrichment.ErrNameRequired):
		return Error(c, http.StatusBadRequest, "nombre is required")
	case errors.Is(err, enrichment.ErrInvalidMergeMode):
		return Error(c, http.StatusBadRequest, "invalid merge_mode")
	case errors.Is(err, repository.ErrCompanyNotFound):
		return Error(c, http.StatusNotFound, "empresa not found")
	case enrichment.IsDuplicateConflict(err):
		return Error(c, http.StatusConflict, "company already exists")
	case errors.As(err, &dbErr):
		zap.L().Error("database operation failed",
			zap.String("request_id", middleware.RequestIDFromContext(c)),
			zap.String("table", dbErr.Table),
			zap.String("op", dbErr.Op),
			zap.Error(err),
		)
		return Error(c, http.StatusInternalServerError, "operation failed")
	default:
		zap.L().Error(message,
			zap.String("request_id", middleware.RequestIDFromContext(c)),
			zap.Error(err),
		)
		return Error(c, http.StatusInternalServerError, message)
	}
}

func parseOptionalUUID(value *string) (*uuid.UUID, error) {
	if value == nil || strings.TrimSpace(*value) == "" {
		return nil, nil
	}
	id, err := uuid.Parse(strings.TrimSpace(*value))
	if err != nil {
		return nil, err
	}
	return &id, nil
}
