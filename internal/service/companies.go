package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/octobees/dealflow-crm/internal/dto"
	"github.com/octobees/dealflow-crm/internal/entity"
	"github.com/octobees/dealflow-crm/internal/repository"
	"github.com/octobees/dealflow-crm/internal/service/enrichment"
)

// ImportFormat is the encoding of an uploaded company sheet.
type ImportFormat string

const (
	FormatCSV  ImportFormat = "csv"
	FormatXLSX ImportFormat = "xlsx"
)

const defaultImportSource = "importacion"

// Enricher is the part of the enrichment pipeline used by the import.
type Enricher interface {
	CheckDuplicate(ctx context.Context, candidate enrichment.Candidate) (enrichment.DuplicateCheck, error)
	ApplyMerge(ctx context.Context, in enrichment.MergeInput) (enrichment.MergeResult, error)
}

// CompaniesService exposes read and import operations for the directory.
type CompaniesService struct {
	repo     repository.CompaniesRepository
	enricher Enricher
}

// ImportValidationError indicates that an uploaded sheet is invalid. Row is
// the 1-based sheet row, or 0 for file-level problems.
type ImportValidationError struct {
	Row     int
	Message string
}

// Error implements the error interface.
func (e ImportValidationError) Error() string {
	if e.Row == 0 {
		return e.Message
	}
	return fmt.Sprintf("row %d: %s", e.Row, e.Message)
}

// NewCompaniesService creates a new instance of CompaniesService.
func NewCompaniesService(repo repository.CompaniesRepository, enricher Enricher) *CompaniesService {
	return &CompaniesService{repo: repo, enricher: enricher}
}

// ListCompanies returns companies respecting pagination defaults.
func (s *CompaniesService) ListCompanies(ctx context.Context, filter dto.ListFilter) ([]entity.Company, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PerPage <= 0 {
		filter.PerPage = 20
	}
	if filter.PerPage > 100 {
		filter.PerPage = 100
	}
	return s.repo.List(ctx, filter)
}

// ParseImportFormat infers the format from an uploaded file name.
func ParseImportFormat(filename string) (ImportFormat, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return FormatCSV, nil
	case ".xlsx":
		return FormatXLSX, nil
	default:
		return "", ImportValidationError{Message: "only .csv and .xlsx files are supported"}
	}
}

type importRow struct {
	line int
	data dto.EnrichedData
}

// ImportCompanies validates every row of the sheet and then routes each one
// through the duplicate matcher: matches are filled in empty_only mode, new
// names are created. Nothing is written when any row is invalid.
func (s *CompaniesService) ImportCompanies(ctx context.Context, format ImportFormat, r io.Reader, source string, userID *uuid.UUID) (dto.ImportSummary, error) {
	records, err := readSheet(format, r)
	if err != nil {
		return dto.ImportSummary{}, err
	}
	if len(records) == 0 {
		return dto.ImportSummary{}, ImportValidationError{Message: "file is empty"}
	}

	index, err := buildHeaderIndex(records[0])
	if err != nil {
		return dto.ImportSummary{}, err
	}

	source = strings.TrimSpace(source)
	if source == "" {
		source = defaultImportSource
	}

	rows := make([]importRow, 0, len(records)-1)
	for i, record := range records[1:] {
		line := i + 2
		if blankRecord(record) {
			continue
		}
		data, err := parseImportRow(record, index, line)
		if err != nil {
			return dto.ImportSummary{}, err
		}
		data.Source = source
		rows = append(rows, importRow{line: line, data: data})
	}

	summary := dto.ImportSummary{Total: len(rows)}
	for _, row := range rows {
		if row.data.Name == "" {
			summary.Skipped++
			continue
		}

		check, err := s.enricher.CheckDuplicate(ctx, enrichment.Candidate{
			Name:    row.data.Name,
			TaxID:   row.data.TaxID,
			Website: row.data.Website,
		})
		if err != nil {
			return summary, eris.Wrapf(err, "service: import row %d", row.line)
		}

		in := enrichment.MergeInput{Data: row.data, Mode: enrichment.ModeCreateNew, UserID: userID}
		if check.IsDuplicate {
			in.CompanyID = &check.Existing.ID
			in.Mode = enrichment.ModeEmptyOnly
		}

		result, err := s.enricher.ApplyMerge(ctx, in)
		if err != nil {
			if enrichment.IsDuplicateConflict(err) {
				zap.L().Info("import row matched a company created concurrently",
					zap.Int("row", row.line), zap.Error(err))
				summary.Skipped++
				continue
			}
			return summary, eris.Wrapf(err, "service: import row %d", row.line)
		}

		switch result.Action {
		case enrichment.ActionCreated:
			summary.Created++
		case enrichment.ActionUpdated:
			summary.Updated++
		default:
			summary.Skipped++
		}
	}

	return summary, nil
}

func readSheet(format ImportFormat, r io.Reader) ([][]string, error) {
	switch format {
	case FormatCSV:
		return readCSV(r)
	case FormatXLSX:
		return readXLSX(r)
	default:
		return nil, ImportValidationError{Message: fmt.Sprintf("unsupported format %q", format)}
	}
}

func readCSV(r io.Reader) ([][]string, error) {
	payload, err := io.ReadAll(r)
	if err != nil {
		return nil, eris.Wrap(err, "service: read csv")
	}
	payload = bytes.TrimPrefix(payload, []byte("\xef\xbb\xbf"))

	reader := csv.NewReader(bytes.NewReader(payload))
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1
	// Spreadsheets exported with a Spanish locale separate with semicolons.
	firstLine, _, _ := bytes.Cut(payload, []byte("\n"))
	if bytes.Count(firstLine, []byte(";")) > bytes.Count(firstLine, []byte(",")) {
		reader.Comma = ';'
	}

	records, err := reader.ReadAll()
	if err != nil {
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			return nil, ImportValidationError{Row: parseErr.StartLine, Message: parseErr.Err.Error()}
		}
		return nil, eris.Wrap(err, "service: parse csv")
	}
	return records, nil
}

func readXLSX(r io.Reader) ([][]string, error) {
	payload, err := io.ReadAll(r)
	if err != nil {
		return nil, eris.Wrap(err, "service: read xlsx")
	}
	file, err := xlsx.OpenBinary(payload)
	if err != nil {
		return nil, ImportValidationError{Message: "file is not a valid xlsx workbook"}
	}
	if len(file.Sheets) == 0 {
		return nil, nil
	}

	sheet := file.Sheets[0]
	records := make([][]string, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		if row == nil {
			records = append(records, nil)
			continue
		}
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cell.String()
		}
		records = append(records, cells)
	}
	return records, nil
}

var importColumns = []string{
	"nombre", "cif", "sitio_web", "sector", "empleados", "descripcion",
	"ubicacion", "cnae_codigo", "cnae_descripcion",
}

func buildHeaderIndex(header []string) (map[string]int, error) {
	index := make(map[string]int)
	for i, col := range header {
		index[strings.ToLower(strings.TrimSpace(col))] = i
	}
	if _, ok := index["nombre"]; !ok {
		return nil, ImportValidationError{Row: 1, Message: "missing required column: nombre"}
	}
	for key := range index {
		if !knownColumn(key) {
			delete(index, key)
		}
	}
	return index, nil
}

func knownColumn(name string) bool {
	for _, col := range importColumns {
		if col == name {
			return true
		}
	}
	return false
}

func parseImportRow(record []string, index map[string]int, line int) (dto.EnrichedData, error) {
	cell := func(column string) string {
		i, ok := index[column]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	employees, err := parseOptionalInt(cell("empleados"))
	if err != nil {
		return dto.EnrichedData{}, ImportValidationError{Row: line, Message: fmt.Sprintf("invalid empleados value %q", cell("empleados"))}
	}

	return dto.EnrichedData{
		Name:            cell("nombre"),
		TaxID:           normalizeString(cell("cif")),
		Website:         normalizeString(cell("sitio_web")),
		Sector:          normalizeString(cell("sector")),
		Employees:       employees,
		Description:     normalizeString(cell("descripcion")),
		Location:        normalizeString(cell("ubicacion")),
		CNAECode:        normalizeString(cell("cnae_codigo")),
		CNAEDescription: normalizeString(cell("cnae_descripcion")),
	}, nil
}

func blankRecord(record []string) bool {
	for _, value := range record {
		if strings.TrimSpace(value) != "" {
			return false
		}
	}
	return true
}

// groupedInt matches digits grouped in thousands by a single separator kind,
// as in "1.200" or "1,500".
var groupedInt = regexp.MustCompile(`^\d{1,3}(?:(?:\.\d{3})+|(?:,\d{3})+)$`)

func parseOptionalInt(value string) (*int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	if groupedInt.MatchString(value) {
		value = strings.NewReplacer(".", "", ",", "").Replace(value)
	}
	i, err := strconv.Atoi(value)
	if err != nil || i < 0 {
		return nil, errors.New("not a non-negative integer")
	}
	return &i, nil
}

func normalizeString(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}
