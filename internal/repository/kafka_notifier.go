package repository

import (
	"context"
	"fmt"
	"strconv"

	domrepo "stockpulse/internal/domain/repository"
	"stockpulse/pkg/kafka"
	"stockpulse/pkg/logger"
)

// KafkaNotifier publishes batch and pipeline lifecycle events to a
// status topic, keyed by tenant so one tenant's events stay ordered.
type KafkaNotifier struct {
	producer *kafka.Producer
	topic    string
	l        *logger.Logger
}

func NewKafkaNotifier(producer *kafka.Producer, topic string, l *logger.Logger) *KafkaNotifier {
	return &KafkaNotifier{producer: producer, topic: topic, l: l}
}

func (n *KafkaNotifier) NotifyStatus(ctx context.Context, event domrepo.StatusEvent) error {
	key := []byte(strconv.FormatInt(event.TenantID, 10))
	if err := n.producer.Publish(ctx, n.topic, key, event); err != nil {
		return fmt.Errorf("publish status event: %w", err)
	}
	n.l.Debug("status event published",
		logger.Int64("tenant_id", event.TenantID),
		logger.String("task", event.Task),
		logger.String("state", event.State))
	return nil
}

// Close flushes and closes the underlying producer.
func (n *KafkaNotifier) Close() error {
	return n.producer.Close()
}

// NopNotifier discards status events. Used when no broker is configured.
type NopNotifier struct{}

func (NopNotifier) NotifyStatus(ctx context.Context, event domrepo.StatusEvent) error { return nil }
