package repository

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/octobees/dealflow-crm/internal/entity"
)

const tableContacts = "contactos"

// ContactsRepository describes persistence operations for contactos.
type ContactsRepository interface {
	FindByEmails(ctx context.Context, emails []string, companyID *uuid.UUID) ([]entity.Contact, error)
	FindByPhones(ctx context.Context, phones []string, companyID *uuid.UUID) ([]entity.Contact, error)
	Create(ctx context.Context, contact *entity.Contact) error
}

// PGXContactsRepository implements ContactsRepository using pgx.
type PGXContactsRepository struct {
	db DB
}

// NewPGXContactsRepository wires a pgx backed repository.
func NewPGXContactsRepository(db DB) *PGXContactsRepository {
	return &PGXContactsRepository{db: db}
}

var _ ContactsRepository = (*PGXContactsRepository)(nil)

const contactColumns = `id, empresa_id, nombre, apellidos, cargo, email, telefono, linkedin, created_at`

// FindByEmails returns contacts whose email matches any of emails, ignoring case.
func (r *PGXContactsRepository) FindByEmails(ctx context.Context, emails []string, companyID *uuid.UUID) ([]entity.Contact, error) {
	if len(emails) == 0 {
		return nil, nil
	}
	lowered := make([]string, 0, len(emails))
	for _, email := range emails {
		lowered = append(lowered, strings.ToLower(strings.TrimSpace(email)))
	}
	return r.findBy(ctx, "LOWER(email) = ANY($1)", lowered, companyID)
}

// FindByPhones returns contacts whose stored phone equals any of phones.
func (r *PGXContactsRepository) FindByPhones(ctx context.Context, phones []string, companyID *uuid.UUID) ([]entity.Contact, error) {
	if len(phones) == 0 {
		return nil, nil
	}
	return r.findBy(ctx, "telefono = ANY($1)", phones, companyID)
}

func (r *PGXContactsRepository) findBy(ctx context.Context, predicate string, values []string, companyID *uuid.UUID) ([]entity.Contact, error) {
	query := `SELECT ` + contactColumns + ` FROM contactos WHERE ` + predicate
	args := []any{values}
	if companyID != nil {
		query += ` AND empresa_id = $2`
		args = append(args, *companyID)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "repository: find contacts")
	}
	defer rows.Close()

	return scanContacts(rows)
}

// Create inserts contact and fills its generated columns.
func (r *PGXContactsRepository) Create(ctx context.Context, contact *entity.Contact) error {
	if contact == nil {
		return eris.New("repository: contact payload is nil")
	}

	err := r.db.QueryRow(ctx, `
        INSERT INTO contactos (empresa_id, nombre, apellidos, cargo, email, telefono, linkedin)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING id, created_at`,
		contact.CompanyID,
		contact.FirstName,
		stringOrNil(contact.LastName),
		stringOrNil(contact.Role),
		stringOrNil(contact.Email),
		stringOrNil(contact.Phone),
		stringOrNil(contact.LinkedIn),
	).Scan(&contact.ID, &contact.CreatedAt)
	if err != nil {
		return &DatabaseError{Table: tableContacts, Op: "insert", Err: err}
	}
	return nil
}

func scanContacts(rows pgx.Rows) ([]entity.Contact, error) {
	var contacts []entity.Contact
	for rows.Next() {
		var c entity.Contact
		if err := rows.Scan(
			&c.ID,
			&c.CompanyID,
			&c.FirstName,
			&c.LastName,
			&c.Role,
			&c.Email,
			&c.Phone,
			&c.LinkedIn,
			&c.CreatedAt,
		); err != nil {
			return nil, eris.Wrap(err, "repository: scan contact")
		}
		contacts = append(contacts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "repository: iterate contacts")
	}
	return contacts, nil
}
