// Package candecode wires a frame source, the dispatcher
// and the configured sinks into a decoding pipeline.
package candecode

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/squadracorsepolito/candecode/can"
	"github.com/squadracorsepolito/candecode/candump"
	"github.com/squadracorsepolito/candecode/dbc"
	"github.com/squadracorsepolito/candecode/dispatch"
	"github.com/squadracorsepolito/candecode/internal"
	"github.com/squadracorsepolito/candecode/kafka"
	"github.com/squadracorsepolito/candecode/mqtt"
	"github.com/squadracorsepolito/candecode/output"
	"github.com/squadracorsepolito/candecode/questdb"
	"github.com/squadracorsepolito/candecode/socketcan"
)

// Source produces raw frames and hands them to process one at a time.
type Source interface {
	Run(ctx context.Context, process func(context.Context, *can.Frame)) error
}

// Sink is an observer with a lifecycle.
type Sink interface {
	dispatch.Observer
	Init(ctx context.Context) error
	Close(ctx context.Context) error
}

type Pipeline struct {
	l *internal.Logger

	source     Source
	dispatcher *dispatch.Dispatcher
	sinks      []Sink
	stats      *internal.Stats

	initialized []Sink
	closers     []io.Closer
}

func NewPipeline(source Source, dispatcher *dispatch.Dispatcher, sinks ...Sink) *Pipeline {
	return &Pipeline{
		l: internal.NewLogger("pipeline", "main"),

		source:     source,
		dispatcher: dispatcher,
		sinks:      sinks,
	}
}

// EnableStats logs the throughput of the dispatcher while running.
func (p *Pipeline) EnableStats() {
	p.stats = internal.NewStats(internal.NewLogger("pipeline", "stats"))
	p.dispatcher.SetStats(p.stats)
}

func (p *Pipeline) Dispatcher() *dispatch.Dispatcher {
	return p.dispatcher
}

// Init initializes the sinks in order. On failure the ones
// already initialized are closed.
func (p *Pipeline) Init(ctx context.Context) error {
	for _, sink := range p.sinks {
		if err := sink.Init(ctx); err != nil {
			p.Close(ctx)
			return err
		}
		p.initialized = append(p.initialized, sink)
	}

	return nil
}

// Run processes frames until the source is exhausted or ctx is cancelled.
func (p *Pipeline) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if p.stats != nil {
		go p.stats.RunStats(runCtx)
	}

	p.l.Debug("running", "sinks", len(p.initialized))

	err := p.source.Run(runCtx, p.dispatcher.Process)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	p.l.Debug("source exhausted")

	return nil
}

// Close closes the sinks in reverse order.
func (p *Pipeline) Close(ctx context.Context) error {
	errs := []error{}

	for i := len(p.initialized) - 1; i >= 0; i-- {
		if err := p.initialized[i].Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	p.initialized = nil

	for _, closer := range p.closers {
		if err := closer.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	p.closers = nil

	return errors.Join(errs...)
}

// Build creates the pipeline described by cfg over db.
// stdin is read when the candump input has no file, the printer writes to stdout.
//
// Every selector must resolve against db, otherwise an error is returned
// and nothing is built.
func Build(cfg *Config, db *dbc.Database, stdin io.Reader, stdout io.Writer) (*Pipeline, error) {
	l := internal.NewLogger("pipeline", "build")

	sinks, err := newSinks(cfg, stdout)
	if err != nil {
		return nil, err
	}

	obs := make(dispatch.Fanout, 0, len(sinks))
	for _, sink := range sinks {
		obs = append(obs, sink)
	}

	var dispatcher *dispatch.Dispatcher
	if cfg.DecodeAll() {
		dispatcher = dispatch.NewBroadcast(db, obs)
		l.Info("decoding all frames", "frames", db.FrameCount(), "signals", db.SignalCount())
	} else {
		dispatcher = dispatch.New(db)

		for _, sel := range cfg.Selectors {
			sub, err := dispatcher.SubscribeSelector(sel, obs, cfg.OnChange)
			if err != nil {
				return nil, err
			}
			logSubscription(l, sub)
		}
	}

	var closers []io.Closer

	var source Source
	switch cfg.Input.Kind {
	case InputSocketCAN:
		source = socketcan.NewSource(cfg.Input.SocketCAN)

	default:
		in := stdin
		if cfg.Input.File != "" && cfg.Input.File != "-" {
			f, err := os.Open(cfg.Input.File)
			if err != nil {
				return nil, err
			}
			in = f
			closers = append(closers, f)
		}
		source = candump.NewReader(in)
	}

	p := NewPipeline(source, dispatcher, sinks...)
	p.closers = closers

	if cfg.Stats {
		p.EnableStats()
	}

	return p, nil
}

func newSinks(cfg *Config, stdout io.Writer) ([]Sink, error) {
	sinks := []Sink{}

	if !cfg.Output.Quiet {
		format, err := output.ParseFormat(cfg.Output.Format)
		if err != nil {
			return nil, err
		}

		printer := output.NewPrinter(stdout, format)
		f, isFile := stdout.(*os.File)
		if (isFile && isatty.IsTerminal(f.Fd())) || cfg.Input.Kind == InputSocketCAN {
			printer.SetLineBuffered(true)
		}
		sinks = append(sinks, printer)
	}

	if cfg.QuestDB.Enabled {
		sinks = append(sinks, questdb.NewSink(cfg.QuestDB))
	}

	if cfg.Kafka.Enabled {
		sinks = append(sinks, kafka.NewSink(cfg.Kafka))
	}

	if cfg.MQTT.Enabled {
		sinks = append(sinks, mqtt.NewSink(cfg.MQTT))
	}

	return sinks, nil
}

func logSubscription(l *internal.Logger, sub *dispatch.Subscription) {
	frame := sub.Frame()
	id := fmt.Sprintf("0x%03x", frame.ID)

	sig := sub.Signal()
	if sig == nil {
		l.Info("decoding frame", "frame", frame.Name, "id", id, "on_change", sub.OnChange())
		return
	}

	l.Info("decoding signal",
		"frame", frame.Name, "id", id,
		"signal", sig.Name, "start_bit", sig.DBCStartBit(), "length", sig.Length,
		"on_change", sub.OnChange(),
	)
}
