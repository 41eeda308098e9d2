// Package questdb stores decoded signals into QuestDB
// through the InfluxDB line protocol over HTTP.
package questdb

import (
	"context"
	"time"

	qdb "github.com/questdb/go-questdb-client/v3"
	"github.com/squadracorsepolito/candecode/dispatch"
	"github.com/squadracorsepolito/candecode/internal"
	"go.opentelemetry.io/otel/metric"
)

type Config struct {
	Enabled        bool          `yaml:"enabled" env:"ENABLED"`
	Address        string        `yaml:"address" env:"ADDRESS"`
	SignalTable    string        `yaml:"signal_table" env:"SIGNAL_TABLE"`
	UnmatchedTable string        `yaml:"unmatched_table" env:"UNMATCHED_TABLE"`
	AutoFlushRows  int           `yaml:"auto_flush_rows" env:"AUTO_FLUSH_ROWS"`
	RetryTimeout   time.Duration `yaml:"retry_timeout" env:"RETRY_TIMEOUT"`
}

func NewDefaultConfig() *Config {
	return &Config{
		Address:        "localhost:9000",
		SignalTable:    "can_signals",
		UnmatchedTable: "can_unmatched_frames",
		AutoFlushRows:  75_000,
		RetryTimeout:   time.Second,
	}
}

// Sink writes every event it observes as a QuestDB row.
type Sink struct {
	tel *internal.Telemetry

	cfg *Config

	senderPool *qdb.LineSenderPool
	sender     qdb.LineSender

	insertedRows metric.Int64Counter
}

func NewSink(cfg *Config) *Sink {
	tel := internal.NewTelemetry("sink", "questdb")

	return &Sink{
		tel: tel,

		cfg: cfg,

		insertedRows: tel.NewCounter("inserted_rows"),
	}
}

func (s *Sink) Init(ctx context.Context) error {
	senderPool, err := qdb.PoolFromOptions(
		qdb.WithAddress(s.cfg.Address),
		qdb.WithHttp(),
		qdb.WithAutoFlushRows(s.cfg.AutoFlushRows),
		qdb.WithRetryTimeout(s.cfg.RetryTimeout),
	)
	if err != nil {
		return err
	}
	s.senderPool = senderPool

	sender, err := senderPool.Sender(ctx)
	if err != nil {
		return err
	}
	s.sender = sender

	s.tel.LogInfo("connected", "address", s.cfg.Address)

	return nil
}

func (s *Sink) Observe(ctx context.Context, ev *dispatch.Event) {
	row := newEventRow(ev, s.cfg)

	if err := s.writeRow(ctx, row); err != nil {
		s.tel.LogError("failed to write row", err, "table", row.Table)
		return
	}

	s.insertedRows.Add(ctx, 1)
}

func (s *Sink) writeRow(ctx context.Context, row *Row) error {
	query := s.sender.Table(row.Table)

	for _, symbol := range row.Symbols {
		query.Symbol(symbol.Name, symbol.Value)
	}

	for _, col := range row.Columns {
		switch col.Type {
		case ColumnTypeInt:
			query.Int64Column(col.Name, col.Value.(int64))
		case ColumnTypeFloat:
			query.Float64Column(col.Name, col.Value.(float64))
		case ColumnTypeString:
			query.StringColumn(col.Name, col.Value.(string))
		}
	}

	return query.At(ctx, row.Timestamp)
}

func (s *Sink) Close(ctx context.Context) error {
	if s.sender != nil {
		if err := s.sender.Flush(ctx); err != nil {
			s.tel.LogError("failed to flush rows", err)
		}

		if err := s.sender.Close(ctx); err != nil {
			s.tel.LogError("failed to close sender", err)
		}
	}

	if s.senderPool == nil {
		return nil
	}

	return s.senderPool.Close(ctx)
}
