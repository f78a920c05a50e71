package repository

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/octobees/dealflow-crm/internal/entity"
)

const tableDealCompanies = "mandato_empresas"

// DealsRepository links companies to mandates.
type DealsRepository interface {
	LinkCompany(ctx context.Context, link *entity.DealCompany) error
}

// PGXDealsRepository implements DealsRepository using pgx.
type PGXDealsRepository struct {
	db DB
}

// NewPGXDealsRepository wires a pgx backed repository.
func NewPGXDealsRepository(db DB) *PGXDealsRepository {
	return &PGXDealsRepository{db: db}
}

var _ DealsRepository = (*PGXDealsRepository)(nil)

// LinkCompany inserts a mandato_empresas row and fills link with the stored
// id, role and creation time. An existing link is left as is and returned.
func (r *PGXDealsRepository) LinkCompany(ctx context.Context, link *entity.DealCompany) error {
	if link == nil {
		return eris.New("repository: deal link payload is nil")
	}
	if link.Role == "" {
		link.Role = entity.DealRoleTarget
	}
	err := r.db.QueryRow(ctx, `
        INSERT INTO mandato_empresas (mandato_id, empresa_id, rol)
        VALUES ($1, $2, $3)
        ON CONFLICT (mandato_id, empresa_id) DO UPDATE SET rol = mandato_empresas.rol
        RETURNING id, rol, created_at`,
		link.DealID, link.CompanyID, link.Role,
	).Scan(&link.ID, &link.Role, &link.CreatedAt)
	if err != nil {
		return &DatabaseError{Table: tableDealCompanies, Op: "insert", Err: err}
	}
	return nil
}
