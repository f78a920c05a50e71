package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/octobees/dealflow-crm/internal/dto"
	"github.com/octobees/dealflow-crm/internal/middleware"
	"github.com/octobees/dealflow-crm/internal/service"
)

// CompaniesHandler exposes the company directory.
type CompaniesHandler struct {
	service *service.CompaniesService
}

// NewCompaniesHandler creates a new handler instance.
func NewCompaniesHandler(service *service.CompaniesService) *CompaniesHandler {
	return &CompaniesHandler{service: service}
}

// List handles GET /empresas requests.
func (h *CompaniesHandler) List(c echo.Context) error {
	filter := dto.ListFilter{
		Q:       strings.TrimSpace(c.QueryParam("q")),
		Sector:  strings.TrimSpace(c.QueryParam("sector")),
		Page:    parseIntDefault(c.QueryParam("page"), 1),
		PerPage: parseIntDefault(c.QueryParam("per_page"), 20),
	}

	if isTargetStr := strings.TrimSpace(c.QueryParam("es_target")); isTargetStr != "" {
		isTarget, err := strconv.ParseBool(isTargetStr)
		if err != nil {
			return Error(c, http.StatusBadRequest, "invalid es_target")
		}
		filter.IsTarget = &isTarget
	}

	companies, err := h.service.ListCompanies(c.Request().Context(), filter)
	if err != nil {
		zap.L().Error("list companies failed",
			zap.String("request_id", middleware.RequestIDFromContext(c)),
			zap.Error(err),
		)
		return Error(c, http.StatusInternalServerError, "failed to list companies")
	}

	return Success(c, http.StatusOK, "companies retrieved", companies)
}

func parseIntDefault(input string, fallback int) int {
	if input == "" {
		return fallback
	}
	if value, err := strconv.Atoi(input); err == nil {
		return value
	}
	return fallback
}
