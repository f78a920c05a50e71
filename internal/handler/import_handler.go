package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/octobees/dealflow-crm/internal/middleware"
	"github.com/octobees/dealflow-crm/internal/service"
)

// ImportHandler handles CSV and XLSX company imports for administrators.
type ImportHandler struct {
	companiesService *service.CompaniesService
}

// NewImportHandler wires a handler backed by the companies service.
func NewImportHandler(companiesService *service.CompaniesService) *ImportHandler {
	return &ImportHandler{companiesService: companiesService}
}

// Import handles POST /admin/import requests.
func (h *ImportHandler) Import(c echo.Context) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return Error(c, http.StatusBadRequest, "missing import file")
	}

	format, err := service.ParseImportFormat(fileHeader.Filename)
	if err != nil {
		return Error(c, http.StatusBadRequest, err.Error())
	}

	file, err := fileHeader.Open()
	if err != nil {
		return Error(c, http.StatusBadRequest, "unable to open file")
	}
	defer file.Close()

	summary, err := h.companiesService.ImportCompanies(
		c.Request().Context(), format, file, c.FormValue("fuente"), middleware.UserIDFromContext(c),
	)
	if err != nil {
		var validationErr service.ImportValidationError
		if errors.As(err, &validationErr) {
			return Error(c, http.StatusBadRequest, validationErr.Error())
		}
		zap.L().Error("company import failed",
			zap.String("request_id", middleware.RequestIDFromContext(c)),
			zap.String("file", fileHeader.Filename),
			zap.Any("summary", summary),
			zap.Error(err),
		)
		return Error(c, http.StatusInternalServerError, "failed to process import")
	}

	return Success(c, http.StatusOK, "companies imported", summary)
}
