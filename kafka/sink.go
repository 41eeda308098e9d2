// Package kafka publishes decoded signals to a Kafka topic.
package kafka

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/squadracorsepolito/candecode/dispatch"
	"github.com/squadracorsepolito/candecode/internal"
	"github.com/squadracorsepolito/candecode/internal/telemetry"
	"github.com/squadracorsepolito/candecode/output"
	"go.opentelemetry.io/otel/metric"
)

type Config struct {
	Enabled bool     `yaml:"enabled" env:"ENABLED"`
	Brokers []string `yaml:"brokers" env:"BROKERS" envSeparator:","`
	Topic   string   `yaml:"topic" env:"TOPIC"`

	// Limit on how many messages will be buffered before being sent to a
	// partition.
	BatchSize int `yaml:"batch_size" env:"BATCH_SIZE"`

	// Time limit on how often incomplete message batches will be flushed.
	BatchTimeout time.Duration `yaml:"batch_timeout" env:"BATCH_TIMEOUT"`

	// With Async set, writes never block and delivery errors are only logged.
	Async bool `yaml:"async" env:"ASYNC"`

	AllowAutoTopicCreation bool `yaml:"allow_auto_topic_creation" env:"ALLOW_AUTO_TOPIC_CREATION"`
}

func NewDefaultConfig() *Config {
	return &Config{
		Brokers:                []string{"localhost:9092"},
		Topic:                  "can-signals",
		BatchSize:              100,
		BatchTimeout:           time.Second,
		Async:                  true,
		AllowAutoTopicCreation: true,
	}
}

// Sink writes every decoded signal as a JSON message keyed by signal name.
// Unmatched frames are not published.
type Sink struct {
	tel *internal.Telemetry

	cfg *Config

	writer *kafka.Writer

	writtenMessages metric.Int64Counter
}

func NewSink(cfg *Config) *Sink {
	tel := internal.NewTelemetry("sink", "kafka")

	return &Sink{
		tel: tel,

		cfg: cfg,

		writtenMessages: tel.NewCounter("written_messages"),
	}
}

func (s *Sink) Init(_ context.Context) error {
	s.writer = &kafka.Writer{
		Addr:                   kafka.TCP(s.cfg.Brokers...),
		Topic:                  s.cfg.Topic,
		Balancer:               &kafka.Hash{},
		BatchSize:              s.cfg.BatchSize,
		BatchTimeout:           s.cfg.BatchTimeout,
		RequiredAcks:           kafka.RequireNone,
		Async:                  s.cfg.Async,
		Compression:            kafka.Snappy,
		AllowAutoTopicCreation: s.cfg.AllowAutoTopicCreation,
		Completion: func(_ []kafka.Message, err error) {
			if err != nil {
				s.tel.LogError("failed to deliver messages", err)
			}
		},
	}

	s.tel.LogInfo("writer ready", "brokers", s.cfg.Brokers, "topic", s.cfg.Topic)

	return nil
}

func (s *Sink) Observe(ctx context.Context, ev *dispatch.Event) {
	if ev.Unmatched() {
		return
	}

	msg, err := newMessage(ev)
	if err != nil {
		s.tel.LogError("failed to encode event", err, "signal", ev.SignalName())
		return
	}

	// the headers carry the span of the decoded frame
	s.tel.InjectTrace(ctx, telemetry.NewKafkaHeaderCarrier(msg))

	if err := s.writer.WriteMessages(ctx, *msg); err != nil {
		s.tel.LogError("failed to write message", err, "signal", ev.SignalName())
		return
	}

	s.writtenMessages.Add(ctx, 1)
}

func newMessage(ev *dispatch.Event) (*kafka.Message, error) {
	value, err := output.MarshalEvent(ev)
	if err != nil {
		return nil, err
	}

	return &kafka.Message{
		Key:   []byte(ev.SignalName()),
		Value: value,
		Time:  ev.Timestamp,
	}, nil
}

func (s *Sink) Close(_ context.Context) error {
	if s.writer == nil {
		return nil
	}
	return s.writer.Close()
}
