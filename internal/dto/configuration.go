package dto

import (
	"time"

	"github.com/clearconf/config-engine/internal/models"
)

// ValidationRuleDTO mirrors models.ValidationRule on the wire.
type ValidationRuleDTO struct {
	RuleType string      `json:"rule_type" binding:"required" validate:"required"`
	Value    interface{} `json:"value"`
}

// ParentConditionDTO mirrors models.ParentCondition on the wire.
type ParentConditionDTO struct {
	Operator     string      `json:"operator" binding:"required" validate:"required"`
	Value        interface{} `json:"value"`
	DefaultValue interface{} `json:"default_value"`
}

// TranslationDTO mirrors models.Translation on the wire.
type TranslationDTO struct {
	Language    string  `json:"language" binding:"required" validate:"required"`
	Label       string  `json:"label" binding:"required" validate:"required"`
	Description *string `json:"description,omitempty"`
}

// CreateConfigurationRequest describes the payload for creating a configuration.
type CreateConfigurationRequest struct {
	Key              string               `json:"key" binding:"required,max=255" validate:"required,max=255"`
	Label            string               `json:"label" binding:"required,max=255" validate:"required,max=255"`
	Description      *string              `json:"description,omitempty"`
	DataType         string               `json:"data_type" binding:"required,oneof=string number date list" validate:"required,oneof=string number date list"`
	DefaultValue     *string              `json:"default_value,omitempty"`
	ParentConfigID   *string              `json:"parent_config_id,omitempty"`
	ValidationRules  []ValidationRuleDTO  `json:"validation_rules" validate:"dive"`
	ParentConditions []ParentConditionDTO `json:"parent_conditions" validate:"dive"`
	Translations     []TranslationDTO     `json:"translations" validate:"dive"`
}

// ConfigurationPatch describes a partial update. Every field tracks its own
// presence; key is accepted but never applied.
type ConfigurationPatch struct {
	Key              Optional[string]               `json:"key"`
	Label            Optional[string]               `json:"label"`
	Description      Optional[*string]              `json:"description"`
	DataType         Optional[string]               `json:"data_type"`
	DefaultValue     Optional[*string]              `json:"default_value"`
	Active           Optional[bool]                 `json:"active"`
	ParentConfigID   Optional[*string]              `json:"parent_config_id"`
	ValidationRules  Optional[[]ValidationRuleDTO]  `json:"validation_rules"`
	ParentConditions Optional[[]ParentConditionDTO] `json:"parent_conditions"`
	Translations     Optional[[]TranslationDTO]     `json:"translations"`
}

// ConfigurationResponse is the transport representation of a configuration.
type ConfigurationResponse struct {
	ID               string               `json:"id"`
	Key              string               `json:"key"`
	Label            string               `json:"label"`
	Description      *string              `json:"description,omitempty"`
	DataType         string               `json:"data_type"`
	DefaultValue     *string              `json:"default_value,omitempty"`
	Active           bool                 `json:"active"`
	ParentConfigID   *string              `json:"parent_config_id,omitempty"`
	ValidationRules  []ValidationRuleDTO  `json:"validation_rules"`
	ParentConditions []ParentConditionDTO `json:"parent_conditions"`
	Translations     []TranslationDTO     `json:"translations"`
	CreatedAt        string               `json:"created_at"`
	UpdatedAt        string               `json:"updated_at"`
}

// ConfigurationListResponse wraps a page of configurations.
type ConfigurationListResponse struct {
	Items  []ConfigurationResponse `json:"items"`
	Total  int                     `json:"total"`
	Limit  int                     `json:"limit"`
	Offset int                     `json:"offset"`
}

// RulesFromDTO converts wire validation rules into domain values.
func RulesFromDTO(rules []ValidationRuleDTO) []models.ValidationRule {
	out := make([]models.ValidationRule, 0, len(rules))
	for _, r := range rules {
		out = append(out, models.ValidationRule{RuleType: r.RuleType, Value: r.Value})
	}
	return out
}

// ConditionsFromDTO converts wire parent conditions into domain values.
func ConditionsFromDTO(conditions []ParentConditionDTO) []models.ParentCondition {
	out := make([]models.ParentCondition, 0, len(conditions))
	for _, c := range conditions {
		out = append(out, models.ParentCondition{Operator: c.Operator, Value: c.Value, DefaultValue: c.DefaultValue})
	}
	return out
}

// TranslationsFromDTO converts wire translations into domain values.
func TranslationsFromDTO(translations []TranslationDTO) []models.Translation {
	out := make([]models.Translation, 0, len(translations))
	for _, t := range translations {
		out = append(out, models.Translation{Language: t.Language, Label: t.Label, Description: t.Description})
	}
	return out
}

// FromConfiguration builds the transport representation of an entity.
func FromConfiguration(cfg *models.Configuration) ConfigurationResponse {
	rules := make([]ValidationRuleDTO, 0, len(cfg.ValidationRules))
	for _, r := range cfg.ValidationRules {
		rules = append(rules, ValidationRuleDTO{RuleType: r.RuleType, Value: r.Value})
	}
	conditions := make([]ParentConditionDTO, 0, len(cfg.ParentConditions))
	for _, c := range cfg.ParentConditions {
		conditions = append(conditions, ParentConditionDTO{Operator: c.Operator, Value: c.Value, DefaultValue: c.DefaultValue})
	}
	translations := make([]TranslationDTO, 0, len(cfg.Translations))
	for _, t := range cfg.Translations {
		translations = append(translations, TranslationDTO{Language: t.Language, Label: t.Label, Description: t.Description})
	}

	return ConfigurationResponse{
		ID:               cfg.ID,
		Key:              cfg.Key,
		Label:            cfg.Label,
		Description:      cfg.Description,
		DataType:         string(cfg.DataType),
		DefaultValue:     cfg.DefaultValue,
		Active:           cfg.Active,
		ParentConfigID:   cfg.ParentConfigID,
		ValidationRules:  rules,
		ParentConditions: conditions,
		Translations:     translations,
		CreatedAt:        cfg.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:        cfg.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}
