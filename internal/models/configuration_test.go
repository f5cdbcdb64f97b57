package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/clearconf/config-engine/pkg/errors"
)

func TestNewConfigurationValidation(t *testing.T) {
	cases := []struct {
		name     string
		key      string
		label    string
		dataType DataType
		wantErr  bool
	}{
		{name: "valid", key: "MAX_RETRIES", label: "Max retries", dataType: DataTypeNumber},
		{name: "missing key", key: "", label: "Label", dataType: DataTypeString, wantErr: true},
		{name: "missing label", key: "KEY", label: "  ", dataType: DataTypeString, wantErr: true},
		{name: "bad data type", key: "KEY", label: "Label", dataType: DataType("boolean"), wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := NewConfiguration(tc.key, tc.label, tc.dataType)
			if tc.wantErr {
				require.Error(t, err)
				assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation))
				return
			}
			require.NoError(t, err)
			assert.True(t, cfg.Active)
			assert.Equal(t, tc.key, cfg.Key)
		})
	}
}

func TestNewConfigurationKeyLength(t *testing.T) {
	long := make([]byte, MaxKeyLength+1)
	for i := range long {
		long[i] = 'a'
	}
	_, err := NewConfiguration(string(long), "Label", DataTypeString)
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation))
}

func TestConfigurationRowRoundTrip(t *testing.T) {
	desc := "localized description"
	parentID := "parent-1"
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	original := &Configuration{
		ID:             "cfg-1",
		Key:            "MAX_RETRIES",
		Label:          "Max retries",
		DataType:       DataTypeNumber,
		Active:         true,
		ParentConfigID: &parentID,
		ValidationRules: []ValidationRule{
			{RuleType: "min", Value: float64(1)},
			{RuleType: "max", Value: float64(10)},
		},
		ParentConditions: []ParentCondition{
			{Operator: ">=", Value: float64(5), DefaultValue: "3"},
			{Operator: "between", Value: []interface{}{float64(1), float64(9)}, DefaultValue: "7"},
		},
		Translations: []Translation{
			{Language: "de", Label: "Maximale Versuche", Description: &desc},
			{Language: "fr", Label: "Tentatives maximales"},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	row, err := original.ToRow()
	require.NoError(t, err)
	restored, err := row.ToEntity()
	require.NoError(t, err)

	assert.Equal(t, original, restored)
}

func TestConfigurationRowEmptyLists(t *testing.T) {
	cfg := &Configuration{ID: "cfg-2", Key: "K", Label: "L", DataType: DataTypeString}
	row, err := cfg.ToRow()
	require.NoError(t, err)
	assert.Equal(t, `[]`, string(row.ValidationRules))

	restored, err := row.ToEntity()
	require.NoError(t, err)
	assert.Empty(t, restored.ValidationRules)
	assert.Empty(t, restored.ParentConditions)
	assert.Empty(t, restored.Translations)
}
