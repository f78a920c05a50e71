package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/octobees/dealflow-crm/internal/dto"
	"github.com/octobees/dealflow-crm/internal/entity"
	"github.com/octobees/dealflow-crm/internal/normalize"
)

const tableCompanies = "empresas"

// ErrCompanyNotFound indicates there is no empresas row for the given id.
var ErrCompanyNotFound = errors.New("company not found")

// CompanyFinder describes the lookups used to detect duplicate companies.
// Finders return nil without error when nothing matches.
type CompanyFinder interface {
	FindByTaxID(ctx context.Context, taxID string) (*entity.Company, error)
	SearchByName(ctx context.Context, term string, limit int) ([]entity.Company, error)
	FindByWebsiteDomain(ctx context.Context, domain string) (*entity.Company, error)
}

// CreateGuard runs inside the creating transaction after the advisory locks are
// held. Returning an error aborts the insert.
type CreateGuard func(ctx context.Context, finder CompanyFinder) error

// CompaniesRepository describes persistence operations for the directory.
type CompaniesRepository interface {
	CompanyFinder
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Company, error)
	CreateLocked(ctx context.Context, lockKeys []string, company *entity.Company, guard CreateGuard) error
	Update(ctx context.Context, id uuid.UUID, update CompanyUpdate) error
	List(ctx context.Context, filter dto.ListFilter) ([]entity.Company, error)
}

// CompanyUpdate holds one optional slot per mergeable column plus the
// provenance stamp. Columns outside this struct cannot be updated.
type CompanyUpdate struct {
	Name            *string
	Description     *string
	Sector          *string
	Employees       *int
	Website         *string
	Location        *string
	CNAECode        *string
	CNAEDescription *string

	EnrichmentSource *string
	EnrichedAt       *time.Time
}

// Fields lists the business columns set on the update, in column order.
func (u CompanyUpdate) Fields() []string {
	var fields []string
	if u.Name != nil {
		fields = append(fields, "nombre")
	}
	if u.Description != nil {
		fields = append(fields, "descripcion")
	}
	if u.Sector != nil {
		fields = append(fields, "sector")
	}
	if u.Employees != nil {
		fields = append(fields, "empleados")
	}
	if u.Website != nil {
		fields = append(fields, "sitio_web")
	}
	if u.Location != nil {
		fields = append(fields, "ubicacion")
	}
	if u.CNAECode != nil {
		fields = append(fields, "cnae_codigo")
	}
	if u.CNAEDescription != nil {
		fields = append(fields, "cnae_descripcion")
	}
	return fields
}

// PGXCompaniesRepository implements CompaniesRepository using pgx.
type PGXCompaniesRepository struct {
	db DB
}

// NewPGXCompaniesRepository wires a pgx backed repository.
func NewPGXCompaniesRepository(db DB) *PGXCompaniesRepository {
	return &PGXCompaniesRepository{db: db}
}

var _ CompaniesRepository = (*PGXCompaniesRepository)(nil)

const companyColumns = `id, nombre, cif, sitio_web, sector, sector_id, empleados, descripcion,
            ubicacion, cnae_codigo, cnae_descripcion, actividades_destacadas,
            fuente_enriquecimiento, fecha_enriquecimiento, es_target, created_at, updated_at`

// GetByID fetches a company by identifier.
func (r *PGXCompaniesRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Company, error) {
	row := r.db.QueryRow(ctx, `SELECT `+companyColumns+` FROM empresas WHERE id = $1`, id)
	company, err := scanCompany(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCompanyNotFound
		}
		return nil, eris.Wrapf(err, "repository: get company %s", id)
	}
	return company, nil
}

// FindByTaxID returns the company whose normalized cif equals taxID.
func (r *PGXCompaniesRepository) FindByTaxID(ctx context.Context, taxID string) (*entity.Company, error) {
	row := r.db.QueryRow(ctx, `SELECT `+companyColumns+` FROM empresas WHERE UPPER(TRIM(cif)) = $1 LIMIT 1`, taxID)
	company, err := scanCompany(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "repository: find company by cif")
	}
	return company, nil
}

// SearchByName returns up to limit companies whose stored normalized name
// equals the normalized form of term, oldest first.
func (r *PGXCompaniesRepository) SearchByName(ctx context.Context, term string, limit int) ([]entity.Company, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(ctx, `SELECT `+companyColumns+` FROM empresas WHERE nombre_normalizado = $1 ORDER BY created_at LIMIT $2`,
		normalize.CompanyName(term), limit)
	if err != nil {
		return nil, eris.Wrap(err, "repository: search companies by name")
	}
	defer rows.Close()

	return scanCompanies(rows)
}

// FindByWebsiteDomain returns the oldest company whose website contains domain.
func (r *PGXCompaniesRepository) FindByWebsiteDomain(ctx context.Context, domain string) (*entity.Company, error) {
	row := r.db.QueryRow(ctx, `SELECT `+companyColumns+` FROM empresas WHERE sitio_web ILIKE $1 ORDER BY created_at LIMIT 1`,
		containsPattern(domain))
	company, err := scanCompany(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "repository: find company by website")
	}
	return company, nil
}

// CreateLocked inserts company inside a transaction holding one advisory lock
// per key. The guard sees the same transaction, so a duplicate inserted by a
// concurrent caller holding the same key is visible to it.
func (r *PGXCompaniesRepository) CreateLocked(ctx context.Context, lockKeys []string, company *entity.Company, guard CreateGuard) error {
	if company == nil {
		return eris.New("repository: company payload is nil")
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return &DatabaseError{Table: tableCompanies, Op: "begin", Err: err}
	}
	defer tx.Rollback(ctx)

	// Sorted so concurrent callers acquire shared keys in the same order.
	keys := uniqueSorted(lockKeys)
	for _, key := range keys {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, key); err != nil {
			return &DatabaseError{Table: tableCompanies, Op: "lock", Err: err}
		}
	}

	if guard != nil {
		if err := guard(ctx, &PGXCompaniesRepository{db: tx}); err != nil {
			return err
		}
	}

	err = tx.QueryRow(ctx, `
        INSERT INTO empresas (
            nombre, cif, sitio_web, sector, sector_id, empleados, descripcion, ubicacion,
            cnae_codigo, cnae_descripcion, actividades_destacadas,
            fuente_enriquecimiento, fecha_enriquecimiento, es_target, nombre_normalizado
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
        RETURNING id, created_at, updated_at`,
		company.Name,
		stringOrNil(company.TaxID),
		stringOrNil(company.Website),
		stringOrNil(company.Sector),
		stringOrNil(company.SectorID),
		intOrNil(company.Employees),
		stringOrNil(company.Description),
		stringOrNil(company.Location),
		stringOrNil(company.CNAECode),
		stringOrNil(company.CNAEDescription),
		stringSliceOrEmpty(company.NotableActivities),
		stringOrNil(company.EnrichmentSource),
		company.EnrichedAt,
		company.IsTarget,
		normalize.CompanyName(company.Name),
	).Scan(&company.ID, &company.CreatedAt, &company.UpdatedAt)
	if err != nil {
		return &DatabaseError{Table: tableCompanies, Op: "insert", Err: err}
	}

	if err := tx.Commit(ctx); err != nil {
		return &DatabaseError{Table: tableCompanies, Op: "commit", Err: err}
	}
	return nil
}

// Update writes the populated slots of update in a single statement.
func (r *PGXCompaniesRepository) Update(ctx context.Context, id uuid.UUID, update CompanyUpdate) error {
	var (
		sets []string
		args = []any{id}
	)
	set := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if update.Name != nil {
		set("nombre", *update.Name)
		set("nombre_normalizado", normalize.CompanyName(*update.Name))
	}
	if update.Description != nil {
		set("descripcion", *update.Description)
	}
	if update.Sector != nil {
		set("sector", *update.Sector)
	}
	if update.Employees != nil {
		set("empleados", *update.Employees)
	}
	if update.Website != nil {
		set("sitio_web", *update.Website)
	}
	if update.Location != nil {
		set("ubicacion", *update.Location)
	}
	if update.CNAECode != nil {
		set("cnae_codigo", *update.CNAECode)
	}
	if update.CNAEDescription != nil {
		set("cnae_descripcion", *update.CNAEDescription)
	}
	if update.EnrichmentSource != nil {
		set("fuente_enriquecimiento", *update.EnrichmentSource)
	}
	if update.EnrichedAt != nil {
		set("fecha_enriquecimiento", *update.EnrichedAt)
	}
	if len(sets) == 0 {
		return nil
	}
	sets = append(sets, "updated_at = NOW()")

	tag, err := r.db.Exec(ctx, `UPDATE empresas SET `+strings.Join(sets, ", ")+` WHERE id = $1`, args...)
	if err != nil {
		return &DatabaseError{Table: tableCompanies, Op: "update", Err: err}
	}
	if tag.RowsAffected() == 0 {
		return ErrCompanyNotFound
	}
	return nil
}

// BackfillNormalizedNames fills nombre_normalizado for rows written before the
// column existed. It returns the number of rows updated.
func (r *PGXCompaniesRepository) BackfillNormalizedNames(ctx context.Context) (int, error) {
	rows, err := r.db.Query(ctx, `SELECT id, nombre FROM empresas WHERE nombre_normalizado IS NULL`)
	if err != nil {
		return 0, eris.Wrap(err, "repository: list unnormalized companies")
	}
	type pending struct {
		id   uuid.UUID
		name string
	}
	var todo []pending
	for rows.Next() {
		var p pending
		if err := rows.Scan(&p.id, &p.name); err != nil {
			rows.Close()
			return 0, eris.Wrap(err, "repository: scan unnormalized company")
		}
		todo = append(todo, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, eris.Wrap(err, "repository: iterate unnormalized companies")
	}

	for _, p := range todo {
		if _, err := r.db.Exec(ctx, `UPDATE empresas SET nombre_normalizado = $2 WHERE id = $1`,
			p.id, normalize.CompanyName(p.name)); err != nil {
			return 0, &DatabaseError{Table: tableCompanies, Op: "backfill", Err: err}
		}
	}
	return len(todo), nil
}

// List retrieves companies matching the filter, most recently updated first.
func (r *PGXCompaniesRepository) List(ctx context.Context, filter dto.ListFilter) ([]entity.Company, error) {
	query := strings.Builder{}
	query.WriteString(`SELECT ` + companyColumns + ` FROM empresas`)

	var (
		clauses []string
		args    []any
	)
	if filter.Q != "" {
		args = append(args, containsPattern(filter.Q))
		clauses = append(clauses, fmt.Sprintf("(nombre ILIKE $%d OR cif ILIKE $%d)", len(args), len(args)))
	}
	if filter.Sector != "" {
		args = append(args, filter.Sector)
		clauses = append(clauses, fmt.Sprintf("LOWER(sector) = LOWER($%d)", len(args)))
	}
	if filter.IsTarget != nil {
		args = append(args, *filter.IsTarget)
		clauses = append(clauses, fmt.Sprintf("es_target = $%d", len(args)))
	}
	if len(clauses) > 0 {
		query.WriteString(" WHERE ")
		query.WriteString(strings.Join(clauses, " AND "))
	}

	page := filter.Page
	if page <= 0 {
		page = 1
	}
	perPage := filter.PerPage
	if perPage <= 0 {
		perPage = 20
	}
	if perPage > 100 {
		perPage = 100
	}
	args = append(args, perPage, (page-1)*perPage)
	query.WriteString(fmt.Sprintf(" ORDER BY updated_at DESC, nombre ASC LIMIT $%d OFFSET $%d", len(args)-1, len(args)))

	rows, err := r.db.Query(ctx, query.String(), args...)
	if err != nil {
		return nil, eris.Wrap(err, "repository: list companies")
	}
	defer rows.Close()

	return scanCompanies(rows)
}

func scanCompany(row scanner) (*entity.Company, error) {
	var c entity.Company
	err := row.Scan(
		&c.ID,
		&c.Name,
		&c.TaxID,
		&c.Website,
		&c.Sector,
		&c.SectorID,
		&c.Employees,
		&c.Description,
		&c.Location,
		&c.CNAECode,
		&c.CNAEDescription,
		&c.NotableActivities,
		&c.EnrichmentSource,
		&c.EnrichedAt,
		&c.IsTarget,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func scanCompanies(rows pgx.Rows) ([]entity.Company, error) {
	var companies []entity.Company
	for rows.Next() {
		company, err := scanCompany(rows)
		if err != nil {
			return nil, eris.Wrap(err, "repository: scan company")
		}
		companies = append(companies, *company)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "repository: iterate companies")
	}
	return companies, nil
}

func uniqueSorted(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
