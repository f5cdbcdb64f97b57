package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx/types"

	appErrors "github.com/clearconf/config-engine/pkg/errors"
)

// DataType enumerates the supported configuration value types.
type DataType string

const (
	DataTypeString DataType = "string"
	DataTypeNumber DataType = "number"
	DataTypeDate   DataType = "date"
	DataTypeList   DataType = "list"
)

// MaxKeyLength bounds the human-chosen configuration key.
const MaxKeyLength = 255

// Valid reports whether the data type belongs to the closed set.
func (d DataType) Valid() bool {
	switch d {
	case DataTypeString, DataTypeNumber, DataTypeDate, DataTypeList:
		return true
	}
	return false
}

// ConditionOperators lists the operators accepted in parent conditions.
var ConditionOperators = map[string]struct{}{
	"=": {}, "!=": {}, ">": {}, ">=": {}, "<": {}, "<=": {}, "between": {},
}

// ValidationRule is a constraint consumers apply to candidate values.
type ValidationRule struct {
	RuleType string      `json:"rule_type"`
	Value    interface{} `json:"value"`
}

// ParentCondition maps a parent's resolved value to an override default.
type ParentCondition struct {
	Operator     string      `json:"operator"`
	Value        interface{} `json:"value"`
	DefaultValue interface{} `json:"default_value"`
}

// Translation carries localized display text keyed by language code.
type Translation struct {
	Language    string  `json:"language"`
	Label       string  `json:"label"`
	Description *string `json:"description,omitempty"`
}

// Configuration is a named, typed, hierarchical setting definition.
type Configuration struct {
	ID               string            `json:"id"`
	Key              string            `json:"key"`
	Label            string            `json:"label"`
	Description      *string           `json:"description,omitempty"`
	DataType         DataType          `json:"data_type"`
	DefaultValue     *string           `json:"default_value,omitempty"`
	Active           bool              `json:"active"`
	ParentConfigID   *string           `json:"parent_config_id,omitempty"`
	ValidationRules  []ValidationRule  `json:"validation_rules"`
	ParentConditions []ParentCondition `json:"parent_conditions"`
	Translations     []Translation     `json:"translations"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// NewConfiguration builds an active configuration after checking construction rules.
// Identity and timestamps are assigned by the service at persistence time.
func NewConfiguration(key, label string, dataType DataType) (*Configuration, error) {
	key = strings.TrimSpace(key)
	label = strings.TrimSpace(label)
	if key == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "key is required")
	}
	if len(key) > MaxKeyLength {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("key exceeds %d characters", MaxKeyLength))
	}
	if label == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "label is required")
	}
	if !dataType.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported data type %q", dataType))
	}

	return &Configuration{
		Key:      key,
		Label:    label,
		DataType: dataType,
		Active:   true,
	}, nil
}

// ConfigurationRow is the storage representation: the nested lists are
// persisted as JSON blobs on the configurations row.
type ConfigurationRow struct {
	ID               string         `db:"id"`
	Key              string         `db:"key"`
	Label            string         `db:"label"`
	Description      *string        `db:"description"`
	DataType         string         `db:"data_type"`
	DefaultValue     *string        `db:"default_value"`
	Active           bool           `db:"active"`
	ParentConfigID   *string        `db:"parent_config_id"`
	ValidationRules  types.JSONText `db:"validation_rules"`
	ParentConditions types.JSONText `db:"parent_conditions"`
	Translations     types.JSONText `db:"translations"`
	CreatedAt        time.Time      `db:"created_at"`
	UpdatedAt        time.Time      `db:"updated_at"`
}

// ToRow converts the entity to its storage representation.
func (c *Configuration) ToRow() (*ConfigurationRow, error) {
	rules, err := marshalList(c.ValidationRules)
	if err != nil {
		return nil, fmt.Errorf("encode validation rules: %w", err)
	}
	conditions, err := marshalList(c.ParentConditions)
	if err != nil {
		return nil, fmt.Errorf("encode parent conditions: %w", err)
	}
	translations, err := marshalList(c.Translations)
	if err != nil {
		return nil, fmt.Errorf("encode translations: %w", err)
	}

	return &ConfigurationRow{
		ID:               c.ID,
		Key:              c.Key,
		Label:            c.Label,
		Description:      c.Description,
		DataType:         string(c.DataType),
		DefaultValue:     c.DefaultValue,
		Active:           c.Active,
		ParentConfigID:   c.ParentConfigID,
		ValidationRules:  rules,
		ParentConditions: conditions,
		Translations:     translations,
		CreatedAt:        c.CreatedAt,
		UpdatedAt:        c.UpdatedAt,
	}, nil
}

// ToEntity reconstructs the domain entity from a stored row.
func (r *ConfigurationRow) ToEntity() (*Configuration, error) {
	cfg := &Configuration{
		ID:               r.ID,
		Key:              r.Key,
		Label:            r.Label,
		Description:      r.Description,
		DataType:         DataType(r.DataType),
		DefaultValue:     r.DefaultValue,
		Active:           r.Active,
		ParentConfigID:   r.ParentConfigID,
		ValidationRules:  []ValidationRule{},
		ParentConditions: []ParentCondition{},
		Translations:     []Translation{},
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}

	if err := unmarshalList(r.ValidationRules, &cfg.ValidationRules); err != nil {
		return nil, fmt.Errorf("decode validation rules: %w", err)
	}
	if err := unmarshalList(r.ParentConditions, &cfg.ParentConditions); err != nil {
		return nil, fmt.Errorf("decode parent conditions: %w", err)
	}
	if err := unmarshalList(r.Translations, &cfg.Translations); err != nil {
		return nil, fmt.Errorf("decode translations: %w", err)
	}

	return cfg, nil
}

func marshalList(v interface{}) (types.JSONText, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if string(raw) == "null" {
		raw = []byte(`[]`)
	}
	return types.JSONText(raw), nil
}

func unmarshalList(raw types.JSONText, dest interface{}) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dest)
}
