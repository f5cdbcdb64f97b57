package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clearconf/config-engine/internal/dto"
	"github.com/clearconf/config-engine/internal/events"
	"github.com/clearconf/config-engine/internal/models"
	appErrors "github.com/clearconf/config-engine/pkg/errors"
)

type configurationStoreStub struct {
	rows      map[string]models.ConfigurationRow
	order     []string
	saveErr   error
	findErr   error
	updateErr error
	deleteErr error
}

func newConfigurationStoreStub() *configurationStoreStub {
	return &configurationStoreStub{rows: make(map[string]models.ConfigurationRow)}
}

func (s *configurationStoreStub) Save(ctx context.Context, row *models.ConfigurationRow) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.rows[row.ID] = *row
	s.order = append(s.order, row.ID)
	return nil
}

func (s *configurationStoreStub) FindByID(ctx context.Context, id string) (*models.ConfigurationRow, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	row, ok := s.rows[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &row, nil
}

func (s *configurationStoreStub) FindByKey(ctx context.Context, key string) (*models.ConfigurationRow, error) {
	for _, row := range s.rows {
		if row.Key == key {
			r := row
			return &r, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *configurationStoreStub) FindAll(ctx context.Context, limit, offset int) ([]models.ConfigurationRow, int, error) {
	total := len(s.order)
	var page []models.ConfigurationRow
	for i := offset; i < total && len(page) < limit; i++ {
		page = append(page, s.rows[s.order[i]])
	}
	return page, total, nil
}

func (s *configurationStoreStub) ListAll(ctx context.Context) ([]models.ConfigurationRow, error) {
	all := make([]models.ConfigurationRow, 0, len(s.order))
	for _, id := range s.order {
		all = append(all, s.rows[id])
	}
	return all, nil
}

func (s *configurationStoreStub) Update(ctx context.Context, row *models.ConfigurationRow) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	if _, ok := s.rows[row.ID]; !ok {
		return sql.ErrNoRows
	}
	s.rows[row.ID] = *row
	return nil
}

func (s *configurationStoreStub) Delete(ctx context.Context, id string) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	if _, ok := s.rows[id]; !ok {
		return sql.ErrNoRows
	}
	delete(s.rows, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	for key, row := range s.rows {
		if row.ParentConfigID != nil && *row.ParentConfigID == id {
			row.ParentConfigID = nil
			s.rows[key] = row
		}
	}
	return nil
}

type recordingBus struct {
	published []events.Event
}

func (b *recordingBus) Publish(evt events.Event) {
	b.published = append(b.published, evt)
}

type cacheStub struct {
	entries map[string][]byte
}

func newCacheStub() *cacheStub {
	return &cacheStub{entries: make(map[string][]byte)}
}

func (c *cacheStub) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := c.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (c *cacheStub) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.entries[key] = raw
	return nil
}

func (c *cacheStub) Delete(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(c.entries, key)
	}
	return nil
}

func newTestService() (*ConfigurationService, *configurationStoreStub, *recordingBus) {
	store := newConfigurationStoreStub()
	bus := &recordingBus{}
	svc := NewConfigurationService(store, bus, nil, nil, nil, nil, ConfigurationServiceConfig{})
	return svc, store, bus
}

func TestCreateConfiguration(t *testing.T) {
	svc, _, bus := newTestService()

	cfg, err := svc.Create(context.Background(), dto.CreateConfigurationRequest{
		Key:      "MAX_RETRIES",
		Label:    "Max retries",
		DataType: "number",
		ValidationRules: []dto.ValidationRuleDTO{
			{RuleType: "min", Value: float64(1)},
			{RuleType: "max", Value: float64(10)},
		},
	}, "corr-1")
	require.NoError(t, err)

	assert.NotEmpty(t, cfg.ID)
	assert.True(t, cfg.Active)
	require.Len(t, cfg.ValidationRules, 2)
	assert.Equal(t, "min", cfg.ValidationRules[0].RuleType)
	assert.Equal(t, "max", cfg.ValidationRules[1].RuleType)

	require.Len(t, bus.published, 1)
	created, ok := bus.published[0].(events.ConfigurationCreated)
	require.True(t, ok)
	assert.Equal(t, cfg.ID, created.ConfigID)
	assert.Equal(t, "MAX_RETRIES", created.Key)
	assert.Equal(t, "corr-1", created.CorrelationID)
}

func TestCreateConfigurationDuplicateKey(t *testing.T) {
	svc, _, bus := newTestService()

	_, err := svc.Create(context.Background(), dto.CreateConfigurationRequest{Key: "K", Label: "L", DataType: "string"}, "")
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), dto.CreateConfigurationRequest{Key: "K", Label: "Other", DataType: "string"}, "")
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrDuplicateKey))
	assert.Len(t, bus.published, 1)
}

func TestCreateConfigurationInvalidOperator(t *testing.T) {
	svc, _, bus := newTestService()

	_, err := svc.Create(context.Background(), dto.CreateConfigurationRequest{
		Key:      "K",
		Label:    "L",
		DataType: "string",
		ParentConditions: []dto.ParentConditionDTO{
			{Operator: "~=", Value: "x", DefaultValue: "y"},
		},
	}, "")
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation))
	assert.Empty(t, bus.published)
}

func TestCreateConfigurationUnknownParent(t *testing.T) {
	svc, _, _ := newTestService()

	missing := "missing-parent"
	_, err := svc.Create(context.Background(), dto.CreateConfigurationRequest{
		Key:            "K",
		Label:          "L",
		DataType:       "string",
		ParentConfigID: &missing,
	}, "")
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation))
}

func TestCreateConfigurationDefaultCorrelation(t *testing.T) {
	svc, _, bus := newTestService()

	_, err := svc.Create(context.Background(), dto.CreateConfigurationRequest{Key: "K", Label: "L", DataType: "string"}, "")
	require.NoError(t, err)

	created := bus.published[0].(events.ConfigurationCreated)
	assert.Equal(t, events.CorrelationUnknown, created.CorrelationID)
}

func TestCreateConfigurationPersistenceFailure(t *testing.T) {
	svc, store, bus := newTestService()
	store.saveErr = sql.ErrConnDone

	_, err := svc.Create(context.Background(), dto.CreateConfigurationRequest{Key: "K", Label: "L", DataType: "string"}, "")
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrInternal))
	assert.Empty(t, bus.published)
}

func TestUpdateConfigurationPersistenceFailure(t *testing.T) {
	svc, store, bus := newTestService()

	cfg, err := svc.Create(context.Background(), dto.CreateConfigurationRequest{Key: "K", Label: "L", DataType: "string"}, "")
	require.NoError(t, err)

	store.updateErr = sql.ErrConnDone
	patch := dto.ConfigurationPatch{Label: dto.Optional[string]{Value: "New", Set: true}}
	_, err = svc.Update(context.Background(), cfg.ID, patch, "")
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrInternal))
	assert.Len(t, bus.published, 1)
}

func TestDeleteConfigurationPersistenceFailure(t *testing.T) {
	svc, store, bus := newTestService()

	cfg, err := svc.Create(context.Background(), dto.CreateConfigurationRequest{Key: "K", Label: "L", DataType: "string"}, "")
	require.NoError(t, err)

	store.deleteErr = sql.ErrConnDone
	err = svc.Delete(context.Background(), cfg.ID, "")
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrInternal))
	assert.Len(t, bus.published, 1)
}

func TestMutationsEvictCachedEntity(t *testing.T) {
	store := newConfigurationStoreStub()
	bus := &recordingBus{}
	cache := newCacheStub()
	svc := NewConfigurationService(store, bus, cache, nil, nil, nil, ConfigurationServiceConfig{})

	cfg, err := svc.Create(context.Background(), dto.CreateConfigurationRequest{Key: "K", Label: "Old", DataType: "string"}, "")
	require.NoError(t, err)

	got, err := svc.Get(context.Background(), cfg.ID)
	require.NoError(t, err)
	assert.Equal(t, "Old", got.Label)
	assert.NotEmpty(t, cache.entries)

	patch := dto.ConfigurationPatch{Label: dto.Optional[string]{Value: "New", Set: true}}
	_, err = svc.Update(context.Background(), cfg.ID, patch, "")
	require.NoError(t, err)

	got, err = svc.Get(context.Background(), cfg.ID)
	require.NoError(t, err)
	assert.Equal(t, "New", got.Label)

	require.NoError(t, svc.Delete(context.Background(), cfg.ID, ""))

	_, err = svc.Get(context.Background(), cfg.ID)
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound))
}

func TestGetConfigurationNotFound(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.Get(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound))
}

func TestUpdateConfiguration(t *testing.T) {
	svc, _, bus := newTestService()

	cfg, err := svc.Create(context.Background(), dto.CreateConfigurationRequest{Key: "MAX_RETRIES", Label: "Old", DataType: "number"}, "")
	require.NoError(t, err)

	patch := dto.ConfigurationPatch{
		Key:   dto.Optional[string]{Value: "RENAMED", Set: true},
		Label: dto.Optional[string]{Value: "New", Set: true},
	}
	updated, err := svc.Update(context.Background(), cfg.ID, patch, "corr-2")
	require.NoError(t, err)

	assert.Equal(t, "New", updated.Label)
	assert.Equal(t, "MAX_RETRIES", updated.Key)

	require.Len(t, bus.published, 2)
	evt, ok := bus.published[1].(events.ConfigurationUpdated)
	require.True(t, ok)
	assert.Equal(t, map[string]interface{}{"label": "New"}, evt.Changes)
	assert.Equal(t, "corr-2", evt.CorrelationID)
}

func TestUpdateConfigurationNotFound(t *testing.T) {
	svc, _, bus := newTestService()

	patch := dto.ConfigurationPatch{Label: dto.Optional[string]{Value: "New", Set: true}}
	_, err := svc.Update(context.Background(), "ghost", patch, "")
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound))
	assert.Empty(t, bus.published)
}

func TestUpdateConfigurationRejectsCycle(t *testing.T) {
	svc, _, _ := newTestService()

	a, err := svc.Create(context.Background(), dto.CreateConfigurationRequest{Key: "A", Label: "A", DataType: "string"}, "")
	require.NoError(t, err)
	b, err := svc.Create(context.Background(), dto.CreateConfigurationRequest{Key: "B", Label: "B", DataType: "string", ParentConfigID: &a.ID}, "")
	require.NoError(t, err)

	patch := dto.ConfigurationPatch{ParentConfigID: dto.Optional[*string]{Value: &b.ID, Set: true}}
	_, err = svc.Update(context.Background(), a.ID, patch, "")
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation))

	patch = dto.ConfigurationPatch{ParentConfigID: dto.Optional[*string]{Value: &a.ID, Set: true}}
	_, err = svc.Update(context.Background(), a.ID, patch, "")
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation))
}

func TestDeleteConfiguration(t *testing.T) {
	svc, _, bus := newTestService()

	cfg, err := svc.Create(context.Background(), dto.CreateConfigurationRequest{Key: "K", Label: "L", DataType: "string"}, "")
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), cfg.ID, "corr-3"))

	_, err = svc.Get(context.Background(), cfg.ID)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound))

	require.Len(t, bus.published, 2)
	evt, ok := bus.published[1].(events.ConfigurationDeleted)
	require.True(t, ok)
	assert.Equal(t, cfg.ID, evt.ConfigID)
	assert.Equal(t, "K", evt.Key)
	assert.Equal(t, "corr-3", evt.CorrelationID)
}

func TestDeleteConfigurationNotFound(t *testing.T) {
	svc, _, bus := newTestService()

	err := svc.Delete(context.Background(), "ghost", "")
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound))
	assert.Empty(t, bus.published)
}

func TestListConfigurationsPagination(t *testing.T) {
	svc, _, _ := newTestService()

	keys := []string{"K1", "K2", "K3", "K4", "K5"}
	for _, key := range keys {
		_, err := svc.Create(context.Background(), dto.CreateConfigurationRequest{Key: key, Label: key, DataType: "string"}, "")
		require.NoError(t, err)
	}

	items, total, err := svc.List(context.Background(), 2, 0)
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	assert.Len(t, items, 2)
	assert.Equal(t, "K1", items[0].Key)

	items, total, err = svc.List(context.Background(), 2, 4)
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	assert.Len(t, items, 1)
	assert.Equal(t, "K5", items[0].Key)
}

type auditReaderStub struct {
	logs     []models.AuditLog
	gotID    string
	gotLimit int
}

func (s *auditReaderStub) ListByResourceID(ctx context.Context, resourceID string, limit int) ([]models.AuditLog, error) {
	s.gotID = resourceID
	s.gotLimit = limit
	return s.logs, nil
}

func TestGetAuditTrail(t *testing.T) {
	store := newConfigurationStoreStub()
	bus := &recordingBus{}
	audit := &auditReaderStub{logs: []models.AuditLog{{ID: "a1", Action: models.AuditActionConfigCreate}}}
	svc := NewConfigurationService(store, bus, nil, audit, nil, nil, ConfigurationServiceConfig{})

	logs, err := svc.GetAuditTrail(context.Background(), "cfg-1", 25)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "a1", logs[0].ID)
	assert.Equal(t, "cfg-1", audit.gotID)
	assert.Equal(t, 25, audit.gotLimit)
}

func TestGetAuditTrailWithoutStore(t *testing.T) {
	svc, _, _ := newTestService()

	logs, err := svc.GetAuditTrail(context.Background(), "cfg-1", 0)
	require.NoError(t, err)
	assert.Empty(t, logs)
}

func TestGetParentOptionsThroughService(t *testing.T) {
	svc, _, _ := newTestService()

	a, err := svc.Create(context.Background(), dto.CreateConfigurationRequest{Key: "A", Label: "A", DataType: "string"}, "")
	require.NoError(t, err)
	b, err := svc.Create(context.Background(), dto.CreateConfigurationRequest{Key: "B", Label: "B", DataType: "string", ParentConfigID: &a.ID}, "")
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), dto.CreateConfigurationRequest{Key: "D", Label: "D", DataType: "string", ParentConfigID: &b.ID}, "")
	require.NoError(t, err)
	c, err := svc.Create(context.Background(), dto.CreateConfigurationRequest{Key: "C", Label: "C", DataType: "string"}, "")
	require.NoError(t, err)

	options, err := svc.GetParentOptions(context.Background(), a.ID)
	require.NoError(t, err)
	require.Len(t, options, 1)
	assert.Equal(t, c.ID, options[0].ID)

	options, err = svc.GetParentOptions(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, options, 4)
}
