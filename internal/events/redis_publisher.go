package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type channelPublisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisPublisher forwards configuration events onto Redis pub/sub channels
// named after the event kind, so external consumers can react out-of-process.
type RedisPublisher struct {
	client channelPublisher
	prefix string
	logger *zap.Logger
}

// NewRedisPublisher constructs the message-bus sink.
func NewRedisPublisher(client channelPublisher, prefix string, logger *zap.Logger) *RedisPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisPublisher{client: client, prefix: prefix, logger: logger}
}

// Register subscribes the publisher to all configuration event kinds.
func (p *RedisPublisher) Register(bus *Bus) {
	bus.Subscribe(KindConfigurationCreated, "redis-publisher", p.Handle)
	bus.Subscribe(KindConfigurationUpdated, "redis-publisher", p.Handle)
	bus.Subscribe(KindConfigurationDeleted, "redis-publisher", p.Handle)
}

// Handle serializes the event payload and publishes it on the kind's channel.
func (p *RedisPublisher) Handle(ctx context.Context, evt Event) error {
	payload, err := p.payload(evt)
	if err != nil {
		return err
	}
	if payload == nil {
		return nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}

	channel := p.prefix + evt.Kind()
	if err := p.client.Publish(ctx, channel, raw).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", channel, err)
	}

	p.logger.Debug("event published",
		zap.String("channel", channel),
		zap.String("correlation_id", evt.Correlation()),
	)
	return nil
}

func (p *RedisPublisher) payload(evt Event) (map[string]interface{}, error) {
	switch e := evt.(type) {
	case ConfigurationCreated:
		return map[string]interface{}{
			"configuration_id": e.ConfigID,
			"key":              e.Key,
			"label":            e.Label,
			"data_type":        e.DataType,
			"created_at":       e.CreatedAt.UTC().Format(time.RFC3339Nano),
			"correlation_id":   e.CorrelationID,
		}, nil
	case ConfigurationUpdated:
		return map[string]interface{}{
			"configuration_id": e.ConfigID,
			"key":              e.Key,
			"label":            e.Label,
			"data_type":        e.DataType,
			"updated_at":       e.UpdatedAt.UTC().Format(time.RFC3339Nano),
			"changes":          e.Changes,
			"correlation_id":   e.CorrelationID,
		}, nil
	case ConfigurationDeleted:
		return map[string]interface{}{
			"configuration_id": e.ConfigID,
			"key":              e.Key,
			"label":            e.Label,
			"data_type":        e.DataType,
			"deleted_at":       e.DeletedAt.UTC().Format(time.RFC3339Nano),
			"correlation_id":   e.CorrelationID,
		}, nil
	default:
		return nil, nil
	}
}
