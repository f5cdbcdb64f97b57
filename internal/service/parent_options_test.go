package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/clearconf/config-engine/internal/models"
)

func buildForest() []models.Configuration {
	parent := func(id string) *string { return &id }
	return []models.Configuration{
		{ID: "A", Key: "a"},
		{ID: "B", Key: "b", ParentConfigID: parent("A")},
		{ID: "C", Key: "c"},
		{ID: "D", Key: "d", ParentConfigID: parent("B")},
	}
}

func optionIDs(configs []models.Configuration) []string {
	ids := make([]string, 0, len(configs))
	for _, c := range configs {
		ids = append(ids, c.ID)
	}
	return ids
}

func TestParentOptionsExcludesDescendants(t *testing.T) {
	forest := buildForest()

	assert.Equal(t, []string{"C"}, optionIDs(parentOptions(forest, "A")))
	assert.Equal(t, []string{"A", "C"}, optionIDs(parentOptions(forest, "B")))
	assert.Equal(t, []string{"A", "B", "D"}, optionIDs(parentOptions(forest, "C")))
}

func TestParentOptionsNoCurrentReturnsAll(t *testing.T) {
	forest := buildForest()
	assert.Len(t, parentOptions(forest, ""), len(forest))
}

func TestParentOptionsUnknownCurrent(t *testing.T) {
	forest := buildForest()
	assert.Equal(t, []string{"A", "B", "C", "D"}, optionIDs(parentOptions(forest, "Z")))
}

func TestParentOptionsLeafExcludesOnlyItself(t *testing.T) {
	forest := buildForest()
	assert.Equal(t, []string{"A", "B", "C"}, optionIDs(parentOptions(forest, "D")))
}

func TestParentOptionsTerminatesOnCyclicData(t *testing.T) {
	parent := func(id string) *string { return &id }
	cyclic := []models.Configuration{
		{ID: "X", ParentConfigID: parent("Y")},
		{ID: "Y", ParentConfigID: parent("X")},
		{ID: "Z"},
	}
	assert.Equal(t, []string{"Z"}, optionIDs(parentOptions(cyclic, "X")))
}

func TestIsDescendant(t *testing.T) {
	forest := buildForest()

	assert.True(t, isDescendant(forest, "A", "D"))
	assert.True(t, isDescendant(forest, "A", "A"))
	assert.False(t, isDescendant(forest, "B", "A"))
	assert.False(t, isDescendant(forest, "A", "C"))
}
