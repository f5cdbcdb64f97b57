package events

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/clearconf/config-engine/internal/models"
)

type auditWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// AuditRecorder turns configuration events into audit trail rows.
type AuditRecorder struct {
	audit  auditWriter
	logger *zap.Logger
}

// NewAuditRecorder constructs the audit sink.
func NewAuditRecorder(audit auditWriter, logger *zap.Logger) *AuditRecorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditRecorder{audit: audit, logger: logger}
}

// Register subscribes the recorder to all configuration event kinds.
func (a *AuditRecorder) Register(bus *Bus) {
	bus.Subscribe(KindConfigurationCreated, "audit", a.Handle)
	bus.Subscribe(KindConfigurationUpdated, "audit", a.Handle)
	bus.Subscribe(KindConfigurationDeleted, "audit", a.Handle)
}

// Handle writes one audit row per event.
func (a *AuditRecorder) Handle(ctx context.Context, evt Event) error {
	var log *models.AuditLog

	switch e := evt.(type) {
	case ConfigurationCreated:
		log = a.entry(models.AuditActionConfigCreate, e.ConfigID, e.CorrelationID)
		log.NewValues = marshalEntity(e.Entity)
	case ConfigurationUpdated:
		log = a.entry(models.AuditActionConfigUpdate, e.ConfigID, e.CorrelationID)
		log.NewValues, _ = json.Marshal(e.Changes)
	case ConfigurationDeleted:
		log = a.entry(models.AuditActionConfigDelete, e.ConfigID, e.CorrelationID)
		log.OldValues = marshalEntity(e.Entity)
	default:
		return nil
	}

	if err := a.audit.CreateAuditLog(ctx, log); err != nil {
		a.logger.Warn("failed to record configuration audit",
			zap.String("kind", evt.Kind()),
			zap.Error(err),
		)
		return err
	}
	return nil
}

func (a *AuditRecorder) entry(action, configID, correlationID string) *models.AuditLog {
	id := configID
	return &models.AuditLog{
		Action:        action,
		Resource:      "configuration",
		ResourceID:    &id,
		CorrelationID: correlationID,
	}
}

func marshalEntity(cfg *models.Configuration) []byte {
	if cfg == nil {
		return nil
	}
	raw, _ := json.Marshal(cfg)
	return raw
}
