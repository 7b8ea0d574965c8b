package events

import "log/slog"

// Open returns a kafka producer, or Noop when no brokers are configured.
func Open(brokers []string, log *slog.Logger) Publisher {
	if len(brokers) == 0 {
		log.Info("event publishing disabled")
		return Noop{}
	}
	p, err := NewProducer(brokers)
	if err != nil {
		log.Warn("kafka_producer_error", "error", err)
		return Noop{}
	}
	return p
}
