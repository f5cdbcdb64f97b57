package events

import (
	"time"

	"github.com/clearconf/config-engine/internal/models"
)

// Event kinds double as message-bus channel names.
const (
	KindConfigurationCreated = "configuration.created"
	KindConfigurationUpdated = "configuration.updated"
	KindConfigurationDeleted = "configuration.deleted"

	KindSystemStarted = "system.started"
	KindSystemStopped = "system.stopped"
)

// CorrelationUnknown is used when the caller supplied no correlation id.
const CorrelationUnknown = "unknown"

// Event is an immutable record describing a completed mutation.
type Event interface {
	Kind() string
	Correlation() string
}

// ConfigurationCreated is emitted after a configuration is persisted.
type ConfigurationCreated struct {
	ConfigID      string
	Key           string
	Label         string
	DataType      string
	CreatedAt     time.Time
	CorrelationID string
	Entity        *models.Configuration
}

func (ConfigurationCreated) Kind() string          { return KindConfigurationCreated }
func (e ConfigurationCreated) Correlation() string { return e.CorrelationID }

// ConfigurationUpdated is emitted after a partial update is persisted.
// Changes holds the fields supplied by the caller with their new values.
type ConfigurationUpdated struct {
	ConfigID      string
	Key           string
	Label         string
	DataType      string
	UpdatedAt     time.Time
	Changes       map[string]interface{}
	CorrelationID string
	Entity        *models.Configuration
}

func (ConfigurationUpdated) Kind() string          { return KindConfigurationUpdated }
func (e ConfigurationUpdated) Correlation() string { return e.CorrelationID }

// ConfigurationDeleted is emitted after a configuration is removed,
// carrying the entity's last known state.
type ConfigurationDeleted struct {
	ConfigID      string
	Key           string
	Label         string
	DataType      string
	DeletedAt     time.Time
	CorrelationID string
	Entity        *models.Configuration
}

func (ConfigurationDeleted) Kind() string          { return KindConfigurationDeleted }
func (e ConfigurationDeleted) Correlation() string { return e.CorrelationID }

// Lifecycle marks process start and stop.
type Lifecycle struct {
	Topic string
	At    time.Time
}

func (e Lifecycle) Kind() string      { return e.Topic }
func (Lifecycle) Correlation() string { return CorrelationUnknown }

// NormalizeCorrelation substitutes the unknown marker for empty ids.
func NormalizeCorrelation(id string) string {
	if id == "" {
		return CorrelationUnknown
	}
	return id
}
