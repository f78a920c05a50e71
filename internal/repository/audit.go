package repository

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/octobees/dealflow-crm/internal/entity"
)

const tableAuditLogs = "audit_logs"

// AuditRepository stores audit_logs rows.
type AuditRepository interface {
	Insert(ctx context.Context, entry entity.AuditLog) error
}

// PGXAuditRepository implements AuditRepository using pgx.
type PGXAuditRepository struct {
	db DB
}

// NewPGXAuditRepository wires a pgx backed repository.
func NewPGXAuditRepository(db DB) *PGXAuditRepository {
	return &PGXAuditRepository{db: db}
}

var _ AuditRepository = (*PGXAuditRepository)(nil)

// Insert writes entry to audit_logs.
func (r *PGXAuditRepository) Insert(ctx context.Context, entry entity.AuditLog) error {
	values := entry.NewValues
	if values == nil {
		values = map[string]any{}
	}
	payload, err := json.Marshal(values)
	if err != nil {
		return eris.Wrap(err, "repository: encode audit values")
	}

	_, err = r.db.Exec(ctx, `
        INSERT INTO audit_logs (action, table_name, record_id, new_values, changed_fields, user_id)
        VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.Action,
		entry.TableName,
		entry.RecordID,
		payload,
		stringSliceOrEmpty(entry.ChangedFields),
		entry.UserID,
	)
	if err != nil {
		return &DatabaseError{Table: tableAuditLogs, Op: "insert", Err: err}
	}
	return nil
}

// AuditLogger records audit entries on a best-effort basis: failures are
// logged and never reach the caller.
type AuditLogger struct {
	repo AuditRepository
}

// NewAuditLogger wraps repo.
func NewAuditLogger(repo AuditRepository) *AuditLogger {
	return &AuditLogger{repo: repo}
}

// Record stores entry, logging any failure.
func (a *AuditLogger) Record(ctx context.Context, entry entity.AuditLog) {
	if a == nil || a.repo == nil {
		return
	}
	if err := a.repo.Insert(ctx, entry); err != nil {
		zap.L().Warn("audit log write failed",
			zap.String("action", entry.Action),
			zap.String("table", entry.TableName),
			zap.Error(err),
		)
	}
}
