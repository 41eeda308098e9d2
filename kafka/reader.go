package kafka

import (
	"context"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/squadracorsepolito/candecode/internal"
	"github.com/squadracorsepolito/candecode/internal/telemetry"
	"github.com/squadracorsepolito/candecode/output"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type ReaderConfig struct {
	Brokers []string `yaml:"brokers" env:"BROKERS" envSeparator:","`
	Topic   string   `yaml:"topic" env:"TOPIC"`

	// GroupID holds the consumer group id. Without it every partition
	// of the topic is read from StartOffset.
	GroupID string `yaml:"group_id" env:"GROUP_ID"`

	// MinBytes and MaxBytes bound the size of a fetched batch.
	MinBytes int `yaml:"min_bytes" env:"MIN_BYTES"`
	MaxBytes int `yaml:"max_bytes" env:"MAX_BYTES"`

	// MaxWait is the longest a fetch waits for MinBytes to be available.
	MaxWait time.Duration `yaml:"max_wait" env:"MAX_WAIT"`

	// StartOffset is either kafka.FirstOffset or kafka.LastOffset.
	StartOffset int64 `yaml:"start_offset" env:"START_OFFSET"`

	MaxAttempts int `yaml:"max_attempts" env:"MAX_ATTEMPTS"`
}

func NewDefaultReaderConfig() *ReaderConfig {
	return &ReaderConfig{
		Brokers:     []string{"localhost:9092"},
		Topic:       "can-signals",
		GroupID:     "candecode-tail",
		MinBytes:    1,
		MaxBytes:    10e6,
		MaxWait:     time.Second,
		StartOffset: kafka.LastOffset,
		MaxAttempts: 3,
	}
}

// Reader consumes the records published by [Sink].
type Reader struct {
	tel *internal.Telemetry

	cfg *ReaderConfig

	reader *kafka.Reader

	readMessages metric.Int64Counter
	readBytes    metric.Int64Counter
}

func NewReader(cfg *ReaderConfig) *Reader {
	tel := internal.NewTelemetry("reader", "kafka")

	return &Reader{
		tel: tel,

		cfg: cfg,

		readMessages: tel.NewCounter("read_messages"),
		readBytes:    tel.NewCounter("read_bytes"),
	}
}

func (r *Reader) Init(_ context.Context) error {
	r.reader = kafka.NewReader(kafka.ReaderConfig{
		Brokers:     r.cfg.Brokers,
		Topic:       r.cfg.Topic,
		GroupID:     r.cfg.GroupID,
		MinBytes:    r.cfg.MinBytes,
		MaxBytes:    r.cfg.MaxBytes,
		MaxWait:     r.cfg.MaxWait,
		StartOffset: r.cfg.StartOffset,
		MaxAttempts: r.cfg.MaxAttempts,
	})

	r.tel.LogInfo("reader ready", "brokers", r.cfg.Brokers, "topic", r.cfg.Topic, "group_id", r.cfg.GroupID)

	return nil
}

// Run hands every record to handle until ctx is cancelled.
// Messages that cannot be decoded are logged and skipped.
func (r *Reader) Run(ctx context.Context, handle func(context.Context, *output.Record)) error {
	for {
		msg, err := r.reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}

		rec, msgCtx, err := r.handleMessage(ctx, &msg)
		if err != nil {
			r.tel.LogWarn("skipping message", "partition", msg.Partition, "offset", msg.Offset, "reason", err)
			continue
		}

		handle(msgCtx, rec)
	}
}

func (r *Reader) handleMessage(ctx context.Context, msg *kafka.Message) (*output.Record, context.Context, error) {
	if len(msg.Headers) > 0 {
		ctx = r.tel.ExtractTrace(ctx, telemetry.NewKafkaHeaderCarrier(msg))
	}

	ctx, span := r.tel.NewTrace(ctx, "read signal record")
	defer span.End()

	span.SetAttributes(
		attribute.String("key", string(msg.Key)),
		attribute.Int("value_size", len(msg.Value)),
	)

	r.readMessages.Add(ctx, 1)
	r.readBytes.Add(ctx, int64(len(msg.Value)))

	rec, err := output.UnmarshalRecord(msg.Value)
	if err != nil {
		span.RecordError(err)
		return nil, ctx, err
	}

	return rec, ctx, nil
}

func (r *Reader) Close() error {
	if r.reader == nil {
		return nil
	}
	return r.reader.Close()
}
