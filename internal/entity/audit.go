package entity

import (
	"time"

	"github.com/google/uuid"
)

// AuditLog is one row of audit_logs.
type AuditLog struct {
	ID            uuid.UUID      `json:"id"`
	Action        string         `json:"action"`
	TableName     string         `json:"table_name"`
	RecordID      *uuid.UUID     `json:"record_id,omitempty"`
	NewValues     map[string]any `json:"new_values"`
	ChangedFields []string       `json:"changed_fields"`
	UserID        *uuid.UUID     `json:"user_id,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}
