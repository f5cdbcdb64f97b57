package dto

import (
	"encoding/json"
	"time"

	"github.com/clearconf/config-engine/internal/models"
)

// AuditLogResponse is the transport representation of one audit record.
type AuditLogResponse struct {
	ID            string          `json:"id"`
	Action        string          `json:"action"`
	Resource      string          `json:"resource"`
	ResourceID    *string         `json:"resource_id,omitempty"`
	OldValues     json.RawMessage `json:"old_values,omitempty"`
	NewValues     json.RawMessage `json:"new_values,omitempty"`
	CorrelationID string          `json:"correlation_id"`
	CreatedAt     string          `json:"created_at"`
}

// FromAuditLog builds the transport representation of an audit record.
func FromAuditLog(log *models.AuditLog) AuditLogResponse {
	return AuditLogResponse{
		ID:            log.ID,
		Action:        log.Action,
		Resource:      log.Resource,
		ResourceID:    log.ResourceID,
		OldValues:     json.RawMessage(log.OldValues),
		NewValues:     json.RawMessage(log.NewValues),
		CorrelationID: log.CorrelationID,
		CreatedAt:     log.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}
