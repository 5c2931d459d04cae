package outbox

import (
	"context"
	"log/slog"
)

// LogProducer stands in for Kafka when no brokers are configured.
type LogProducer struct {
	Logger *slog.Logger
}

func (p LogProducer) Publish(ctx context.Context, topic string, key string, payload []byte, headers map[string]string) error {
	if p.Logger != nil {
		p.Logger.Debug("event published", "topic", topic, "key", key, "type", headers["ce_type"], "bytes", len(payload))
	}
	return nil
}
