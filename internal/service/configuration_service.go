package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/clearconf/config-engine/internal/dto"
	"github.com/clearconf/config-engine/internal/events"
	"github.com/clearconf/config-engine/internal/models"
	"github.com/clearconf/config-engine/internal/repository"
	appErrors "github.com/clearconf/config-engine/pkg/errors"
)

type configurationStore interface {
	Save(ctx context.Context, row *models.ConfigurationRow) error
	FindByID(ctx context.Context, id string) (*models.ConfigurationRow, error)
	FindByKey(ctx context.Context, key string) (*models.ConfigurationRow, error)
	FindAll(ctx context.Context, limit, offset int) ([]models.ConfigurationRow, int, error)
	ListAll(ctx context.Context) ([]models.ConfigurationRow, error)
	Update(ctx context.Context, row *models.ConfigurationRow) error
	Delete(ctx context.Context, id string) error
}

type eventPublisher interface {
	Publish(evt events.Event)
}

type entityCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

type auditReader interface {
	ListByResourceID(ctx context.Context, resourceID string, limit int) ([]models.AuditLog, error)
}

// ConfigurationServiceConfig tunes runtime behaviour.
type ConfigurationServiceConfig struct {
	CacheTTL time.Duration
}

// ConfigurationService orchestrates the CRUD lifecycle of configurations and
// publishes a domain event after every durable state change.
type ConfigurationService struct {
	repo      configurationStore
	bus       eventPublisher
	cache     entityCache
	audit     auditReader
	validator *validator.Validate
	logger    *zap.Logger
	cacheTTL  time.Duration
}

// NewConfigurationService constructs a ConfigurationService. cache may be nil
// when the entity cache is disabled; audit may be nil when no trail is stored.
func NewConfigurationService(repo configurationStore, bus eventPublisher, cache entityCache, audit auditReader, validate *validator.Validate, logger *zap.Logger, cfg ConfigurationServiceConfig) *ConfigurationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	return &ConfigurationService{
		repo:      repo,
		bus:       bus,
		cache:     cache,
		audit:     audit,
		validator: validate,
		logger:    logger,
		cacheTTL:  cfg.CacheTTL,
	}
}

// Create validates the request, enforces key uniqueness, persists the new
// configuration and publishes ConfigurationCreated.
func (s *ConfigurationService) Create(ctx context.Context, req dto.CreateConfigurationRequest, correlationID string) (*models.Configuration, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid configuration payload")
	}

	entity, err := models.NewConfiguration(req.Key, req.Label, models.DataType(req.DataType))
	if err != nil {
		return nil, err
	}
	entity.Description = req.Description
	entity.DefaultValue = req.DefaultValue
	entity.ParentConfigID = req.ParentConfigID
	entity.ValidationRules = dto.RulesFromDTO(req.ValidationRules)
	entity.ParentConditions = dto.ConditionsFromDTO(req.ParentConditions)
	entity.Translations = dto.TranslationsFromDTO(req.Translations)

	if err := validateConditions(entity.ParentConditions); err != nil {
		return nil, err
	}
	if err := validateTranslations(entity.Translations); err != nil {
		return nil, err
	}

	if _, err := s.repo.FindByKey(ctx, entity.Key); err == nil {
		return nil, appErrors.Clone(appErrors.ErrDuplicateKey, fmt.Sprintf("configuration with key %q already exists", entity.Key))
	} else if err != sql.ErrNoRows {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check configuration key")
	}

	if entity.ParentConfigID != nil {
		if _, err := s.repo.FindByID(ctx, *entity.ParentConfigID); err != nil {
			if err == sql.ErrNoRows {
				return nil, appErrors.Clone(appErrors.ErrValidation, "parent configuration not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify parent configuration")
		}
	}

	now := time.Now().UTC()
	entity.ID = uuid.NewString()
	entity.CreatedAt = now
	entity.UpdatedAt = now

	row, err := entity.ToRow()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode configuration")
	}
	if err := s.repo.Save(ctx, row); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrDuplicateKey, fmt.Sprintf("configuration with key %q already exists", entity.Key))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create configuration")
	}

	s.logger.Info("configuration created", zap.String("config_id", entity.ID), zap.String("key", entity.Key))
	s.bus.Publish(events.ConfigurationCreated{
		ConfigID:      entity.ID,
		Key:           entity.Key,
		Label:         entity.Label,
		DataType:      string(entity.DataType),
		CreatedAt:     entity.CreatedAt,
		CorrelationID: events.NormalizeCorrelation(correlationID),
		Entity:        entity,
	})

	return entity, nil
}

// Get returns a configuration by id, reading through the entity cache when
// one is configured.
func (s *ConfigurationService) Get(ctx context.Context, id string) (*models.Configuration, error) {
	if s.cache != nil {
		var cached models.Configuration
		if err := s.cache.Get(ctx, events.EntityCacheKey(id), &cached); err == nil {
			return &cached, nil
		}
	}

	row, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "configuration not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to get configuration")
	}
	entity, err := row.ToEntity()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to decode configuration")
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, events.EntityCacheKey(id), entity, s.cacheTTL); err != nil {
			s.logger.Warn("failed to cache configuration", zap.String("config_id", id), zap.Error(err))
		}
	}
	return entity, nil
}

// List returns a page of configurations in insertion order plus the total
// count across the whole set.
func (s *ConfigurationService) List(ctx context.Context, limit, offset int) ([]models.Configuration, int, error) {
	if limit <= 0 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}

	rows, total, err := s.repo.FindAll(ctx, limit, offset)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list configurations")
	}
	items, err := rowsToEntities(rows)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to decode configurations")
	}
	return items, total, nil
}

// Update applies a partial update. The key is immutable: a supplied key is
// silently dropped. On success ConfigurationUpdated carries the map of
// fields that were supplied together with their new values.
func (s *ConfigurationService) Update(ctx context.Context, id string, patch dto.ConfigurationPatch, correlationID string) (*models.Configuration, error) {
	row, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "configuration not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch configuration")
	}
	entity, err := row.ToEntity()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to decode configuration")
	}

	changes, err := s.applyPatch(ctx, entity, patch)
	if err != nil {
		return nil, err
	}

	entity.UpdatedAt = time.Now().UTC()
	updated, err := entity.ToRow()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode configuration")
	}
	if err := s.repo.Update(ctx, updated); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "configuration not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update configuration")
	}
	s.evict(ctx, entity.ID)

	s.logger.Info("configuration updated", zap.String("config_id", entity.ID), zap.Int("changed_fields", len(changes)))
	s.bus.Publish(events.ConfigurationUpdated{
		ConfigID:      entity.ID,
		Key:           entity.Key,
		Label:         entity.Label,
		DataType:      string(entity.DataType),
		UpdatedAt:     entity.UpdatedAt,
		Changes:       changes,
		CorrelationID: events.NormalizeCorrelation(correlationID),
		Entity:        entity,
	})

	return entity, nil
}

// Delete removes a configuration, detaching its children, and publishes
// ConfigurationDeleted with the entity's last known state.
func (s *ConfigurationService) Delete(ctx context.Context, id string, correlationID string) error {
	row, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "configuration not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch configuration")
	}
	entity, err := row.ToEntity()
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to decode configuration")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "configuration not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete configuration")
	}
	s.evict(ctx, id)

	s.logger.Info("configuration deleted", zap.String("config_id", id), zap.String("key", entity.Key))
	s.bus.Publish(events.ConfigurationDeleted{
		ConfigID:      entity.ID,
		Key:           entity.Key,
		Label:         entity.Label,
		DataType:      string(entity.DataType),
		DeletedAt:     time.Now().UTC(),
		CorrelationID: events.NormalizeCorrelation(correlationID),
		Entity:        entity,
	})

	return nil
}

// GetAuditTrail returns the audit records for one configuration, newest
// first. The trail of an already deleted configuration stays readable.
func (s *ConfigurationService) GetAuditTrail(ctx context.Context, id string, limit int) ([]models.AuditLog, error) {
	if s.audit == nil {
		return []models.AuditLog{}, nil
	}
	logs, err := s.audit.ListByResourceID(ctx, id, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list audit trail")
	}
	return logs, nil
}

// GetParentOptions returns the configurations eligible as parent for the
// given id; an empty id returns the full set.
func (s *ConfigurationService) GetParentOptions(ctx context.Context, currentID string) ([]models.Configuration, error) {
	rows, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list configurations")
	}
	all, err := rowsToEntities(rows)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to decode configurations")
	}
	return parentOptions(all, currentID), nil
}

func (s *ConfigurationService) applyPatch(ctx context.Context, entity *models.Configuration, patch dto.ConfigurationPatch) (map[string]interface{}, error) {
	changes := make(map[string]interface{})

	if patch.Label.Set {
		label := strings.TrimSpace(patch.Label.Value)
		if label == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "label cannot be empty")
		}
		entity.Label = label
		changes["label"] = label
	}
	if patch.Description.Set {
		entity.Description = patch.Description.Value
		changes["description"] = strOrNil(patch.Description.Value)
	}
	if patch.DataType.Set {
		dataType := models.DataType(patch.DataType.Value)
		if !dataType.Valid() {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported data type %q", patch.DataType.Value))
		}
		entity.DataType = dataType
		changes["data_type"] = string(dataType)
	}
	if patch.DefaultValue.Set {
		entity.DefaultValue = patch.DefaultValue.Value
		changes["default_value"] = strOrNil(patch.DefaultValue.Value)
	}
	if patch.Active.Set {
		entity.Active = patch.Active.Value
		changes["active"] = patch.Active.Value
	}
	if patch.ParentConfigID.Set {
		if err := s.validateParentAssignment(ctx, entity.ID, patch.ParentConfigID.Value); err != nil {
			return nil, err
		}
		entity.ParentConfigID = patch.ParentConfigID.Value
		changes["parent_config_id"] = strOrNil(patch.ParentConfigID.Value)
	}
	if patch.ValidationRules.Set {
		entity.ValidationRules = dto.RulesFromDTO(patch.ValidationRules.Value)
		changes["validation_rules"] = entity.ValidationRules
	}
	if patch.ParentConditions.Set {
		conditions := dto.ConditionsFromDTO(patch.ParentConditions.Value)
		if err := validateConditions(conditions); err != nil {
			return nil, err
		}
		entity.ParentConditions = conditions
		changes["parent_conditions"] = conditions
	}
	if patch.Translations.Set {
		translations := dto.TranslationsFromDTO(patch.Translations.Value)
		if err := validateTranslations(translations); err != nil {
			return nil, err
		}
		entity.Translations = translations
		changes["translations"] = translations
	}

	// A supplied key is dropped without error; keys are immutable.
	return changes, nil
}

// evict drops the cached entity before the mutation returns, so a read that
// follows the call cannot serve stale data. List pages are cleared by the
// event-driven invalidator.
func (s *ConfigurationService) evict(ctx context.Context, id string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, events.EntityCacheKey(id)); err != nil {
		s.logger.Warn("failed to evict cached configuration", zap.String("config_id", id), zap.Error(err))
	}
}

func (s *ConfigurationService) validateParentAssignment(ctx context.Context, id string, parentID *string) error {
	if parentID == nil {
		return nil
	}
	if *parentID == id {
		return appErrors.Clone(appErrors.ErrValidation, "configuration cannot be its own parent")
	}
	if _, err := s.repo.FindByID(ctx, *parentID); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrValidation, "parent configuration not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify parent configuration")
	}

	rows, err := s.repo.ListAll(ctx)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list configurations")
	}
	all, err := rowsToEntities(rows)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to decode configurations")
	}
	if isDescendant(all, id, *parentID) {
		return appErrors.Clone(appErrors.ErrValidation, "parent assignment would create a cycle")
	}
	return nil
}

func validateConditions(conditions []models.ParentCondition) error {
	for _, c := range conditions {
		if _, ok := models.ConditionOperators[c.Operator]; !ok {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported operator %q", c.Operator))
		}
	}
	return nil
}

func validateTranslations(translations []models.Translation) error {
	seen := make(map[string]struct{}, len(translations))
	for _, t := range translations {
		if t.Language == "" {
			return appErrors.Clone(appErrors.ErrValidation, "translation language is required")
		}
		if _, dup := seen[t.Language]; dup {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("duplicate translation language %q", t.Language))
		}
		seen[t.Language] = struct{}{}
	}
	return nil
}

func rowsToEntities(rows []models.ConfigurationRow) ([]models.Configuration, error) {
	items := make([]models.Configuration, 0, len(rows))
	for i := range rows {
		entity, err := rows[i].ToEntity()
		if err != nil {
			return nil, err
		}
		items = append(items, *entity)
	}
	return items, nil
}

func strOrNil(v *string) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
