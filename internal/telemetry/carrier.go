package telemetry

import (
	"slices"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/propagation"
)

var _ propagation.TextMapCarrier = (*KafkaHeaderCarrier)(nil)

// KafkaHeaderCarrier exposes the headers of a kafka message
// as a propagation.TextMapCarrier, so the trace of a decoded
// signal can travel with the record.
type KafkaHeaderCarrier struct {
	msg *kafka.Message
}

func NewKafkaHeaderCarrier(msg *kafka.Message) *KafkaHeaderCarrier {
	return &KafkaHeaderCarrier{
		msg: msg,
	}
}

func (c *KafkaHeaderCarrier) Get(key string) string {
	idx := slices.IndexFunc(c.msg.Headers, func(h kafka.Header) bool { return h.Key == key })
	if idx < 0 {
		return ""
	}
	return string(c.msg.Headers[idx].Value)
}

func (c *KafkaHeaderCarrier) Set(key, value string) {
	c.msg.Headers = slices.DeleteFunc(c.msg.Headers, func(h kafka.Header) bool {
		return h.Key == key
	})

	c.msg.Headers = append(c.msg.Headers, kafka.Header{
		Key:   key,
		Value: []byte(value),
	})
}

func (c *KafkaHeaderCarrier) Keys() []string {
	keys := make([]string, 0, len(c.msg.Headers))
	for _, h := range c.msg.Headers {
		keys = append(keys, h.Key)
	}
	return keys
}
