package models

import "time"

// AuditAction constants represent actions to be logged.
const (
	AuditActionConfigCreate = "CONFIG_CREATE"
	AuditActionConfigUpdate = "CONFIG_UPDATE"
	AuditActionConfigDelete = "CONFIG_DELETE"
)

// AuditLog represents an audit trail record.
type AuditLog struct {
	ID            string    `db:"id" json:"id"`
	Action        string    `db:"action" json:"action"`
	Resource      string    `db:"resource" json:"resource"`
	ResourceID    *string   `db:"resource_id" json:"resource_id,omitempty"`
	OldValues     []byte    `db:"old_values" json:"old_values,omitempty"`
	NewValues     []byte    `db:"new_values" json:"new_values,omitempty"`
	CorrelationID string    `db:"correlation_id" json:"correlation_id"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}
