package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clearconf/config-engine/internal/models"
)

type auditWriterStub struct {
	logs []models.AuditLog
	err  error
}

func (s *auditWriterStub) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	if s.err != nil {
		return s.err
	}
	s.logs = append(s.logs, *log)
	return nil
}

func TestAuditRecorderCreated(t *testing.T) {
	writer := &auditWriterStub{}
	recorder := NewAuditRecorder(writer, nil)

	entity := &models.Configuration{ID: "c1", Key: "MAX_RETRIES", Label: "Max retries", DataType: models.DataTypeNumber, Active: true}
	err := recorder.Handle(context.Background(), ConfigurationCreated{
		ConfigID:      "c1",
		Key:           "MAX_RETRIES",
		CorrelationID: "corr-1",
		Entity:        entity,
	})
	require.NoError(t, err)

	require.Len(t, writer.logs, 1)
	log := writer.logs[0]
	assert.Equal(t, models.AuditActionConfigCreate, log.Action)
	assert.Equal(t, "configuration", log.Resource)
	require.NotNil(t, log.ResourceID)
	assert.Equal(t, "c1", *log.ResourceID)
	assert.Equal(t, "corr-1", log.CorrelationID)
	assert.Nil(t, log.OldValues)

	var snapshot models.Configuration
	require.NoError(t, json.Unmarshal(log.NewValues, &snapshot))
	assert.Equal(t, "MAX_RETRIES", snapshot.Key)
}

func TestAuditRecorderUpdatedStoresChanges(t *testing.T) {
	writer := &auditWriterStub{}
	recorder := NewAuditRecorder(writer, nil)

	err := recorder.Handle(context.Background(), ConfigurationUpdated{
		ConfigID:      "c1",
		Changes:       map[string]interface{}{"label": "New"},
		CorrelationID: "corr-2",
	})
	require.NoError(t, err)

	require.Len(t, writer.logs, 1)
	log := writer.logs[0]
	assert.Equal(t, models.AuditActionConfigUpdate, log.Action)

	var changes map[string]interface{}
	require.NoError(t, json.Unmarshal(log.NewValues, &changes))
	assert.Equal(t, map[string]interface{}{"label": "New"}, changes)
}

func TestAuditRecorderDeletedKeepsLastState(t *testing.T) {
	writer := &auditWriterStub{}
	recorder := NewAuditRecorder(writer, nil)

	entity := &models.Configuration{ID: "c1", Key: "K", Label: "L", DataType: models.DataTypeString}
	err := recorder.Handle(context.Background(), ConfigurationDeleted{ConfigID: "c1", CorrelationID: "corr-3", Entity: entity})
	require.NoError(t, err)

	require.Len(t, writer.logs, 1)
	log := writer.logs[0]
	assert.Equal(t, models.AuditActionConfigDelete, log.Action)
	assert.Nil(t, log.NewValues)

	var snapshot models.Configuration
	require.NoError(t, json.Unmarshal(log.OldValues, &snapshot))
	assert.Equal(t, "K", snapshot.Key)
}

func TestAuditRecorderPropagatesWriterError(t *testing.T) {
	writer := &auditWriterStub{err: errors.New("db down")}
	recorder := NewAuditRecorder(writer, nil)

	err := recorder.Handle(context.Background(), ConfigurationCreated{ConfigID: "c1"})
	assert.Error(t, err)
}

type channelPublisherStub struct {
	channels []string
	payloads [][]byte
	err      error
}

func (s *channelPublisherStub) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	cmd := redis.NewIntCmd(ctx)
	if s.err != nil {
		cmd.SetErr(s.err)
		return cmd
	}
	s.channels = append(s.channels, channel)
	s.payloads = append(s.payloads, message.([]byte))
	cmd.SetVal(1)
	return cmd
}

func TestRedisPublisherCreatedPayload(t *testing.T) {
	client := &channelPublisherStub{}
	publisher := NewRedisPublisher(client, "config-engine.", nil)

	createdAt := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	err := publisher.Handle(context.Background(), ConfigurationCreated{
		ConfigID:      "c1",
		Key:           "MAX_RETRIES",
		Label:         "Max retries",
		DataType:      "number",
		CreatedAt:     createdAt,
		CorrelationID: "corr-1",
	})
	require.NoError(t, err)

	require.Equal(t, []string{"config-engine.configuration.created"}, client.channels)

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(client.payloads[0], &payload))
	assert.Equal(t, "c1", payload["configuration_id"])
	assert.Equal(t, "MAX_RETRIES", payload["key"])
	assert.Equal(t, "number", payload["data_type"])
	assert.Equal(t, "corr-1", payload["correlation_id"])
	assert.Equal(t, createdAt.Format(time.RFC3339Nano), payload["created_at"])
}

func TestRedisPublisherUpdatedCarriesChanges(t *testing.T) {
	client := &channelPublisherStub{}
	publisher := NewRedisPublisher(client, "", nil)

	err := publisher.Handle(context.Background(), ConfigurationUpdated{
		ConfigID:      "c1",
		Key:           "K",
		UpdatedAt:     time.Now(),
		Changes:       map[string]interface{}{"label": "New"},
		CorrelationID: "corr-2",
	})
	require.NoError(t, err)

	require.Equal(t, []string{"configuration.updated"}, client.channels)

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(client.payloads[0], &payload))
	assert.Equal(t, map[string]interface{}{"label": "New"}, payload["changes"])
}

func TestRedisPublisherPropagatesPublishError(t *testing.T) {
	client := &channelPublisherStub{err: errors.New("connection refused")}
	publisher := NewRedisPublisher(client, "", nil)

	err := publisher.Handle(context.Background(), ConfigurationDeleted{ConfigID: "c1", DeletedAt: time.Now()})
	assert.Error(t, err)
}

type cacheEvictorStub struct {
	deleted  []string
	patterns []string
	err      error
}

func (s *cacheEvictorStub) Delete(ctx context.Context, keys ...string) error {
	if s.err != nil {
		return s.err
	}
	s.deleted = append(s.deleted, keys...)
	return nil
}

func (s *cacheEvictorStub) DeleteByPattern(ctx context.Context, pattern string) error {
	if s.err != nil {
		return s.err
	}
	s.patterns = append(s.patterns, pattern)
	return nil
}

func TestCacheInvalidatorEvictsEntityAndLists(t *testing.T) {
	cache := &cacheEvictorStub{}
	invalidator := NewCacheInvalidator(cache, nil)

	err := invalidator.Handle(context.Background(), ConfigurationUpdated{ConfigID: "c1"})
	require.NoError(t, err)

	assert.Equal(t, []string{"configurations:id:c1"}, cache.deleted)
	assert.Equal(t, []string{ListCachePattern}, cache.patterns)
}

func TestCacheInvalidatorIgnoresLifecycleEvents(t *testing.T) {
	cache := &cacheEvictorStub{}
	invalidator := NewCacheInvalidator(cache, nil)

	err := invalidator.Handle(context.Background(), Lifecycle{Topic: KindSystemStarted, At: time.Now()})
	require.NoError(t, err)
	assert.Empty(t, cache.deleted)
	assert.Empty(t, cache.patterns)
}
