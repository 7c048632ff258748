// Package mirror forwards a copy of every created activity to a Kafka topic
// for downstream consumers (SIEM, analytics). Delivery is fire-and-forget:
// the trail in the durable store is the source of truth and a lost mirror
// record never fails or blocks the logging call.
package mirror

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"

	"vaulttrail/internal/activity"
)

type Kafka struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

// NewKafka connects a producer to the given brokers. Returns nil (disabled
// mirror) when no brokers are configured.
func NewKafka(brokers []string, topic string, logger *slog.Logger) (*Kafka, error) {
	if len(brokers) == 0 {
		return nil, nil
	}
	if logger == nil {
		logger = slog.Default()
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return &Kafka{client: client, topic: topic, logger: logger}, nil
}

// Publish enqueues the record asynchronously. Failures are logged and
// dropped.
func (k *Kafka) Publish(ctx context.Context, log activity.Log) {
	payload, err := json.Marshal(log)
	if err != nil {
		k.logger.Warn("mirror: marshal activity failed", "activity_id", log.ID, "error", err)
		return
	}

	record := &kgo.Record{
		Topic: k.topic,
		Key:   []byte(log.ID),
		Value: payload,
	}
	k.client.Produce(ctx, record, func(_ *kgo.Record, err error) {
		if err != nil {
			k.logger.Warn("mirror: produce failed", "activity_id", log.ID, "error", err)
		}
	})
}

// Close flushes outstanding records and releases the producer.
func (k *Kafka) Close() {
	k.client.Close()
}
