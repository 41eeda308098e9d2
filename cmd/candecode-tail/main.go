// Command candecode-tail prints the signals published on kafka by candecode.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/segmentio/kafka-go"
	"github.com/squadracorsepolito/candecode/internal"
	candecodekafka "github.com/squadracorsepolito/candecode/kafka"
	"github.com/squadracorsepolito/candecode/output"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg := candecodekafka.NewDefaultReaderConfig()

	brokers := flag.String("brokers", strings.Join(cfg.Brokers, ","), "comma separated kafka brokers")
	flag.StringVar(&cfg.Topic, "topic", cfg.Topic, "topic written by candecode")
	flag.StringVar(&cfg.GroupID, "group", cfg.GroupID, "consumer group, empty to read without a group")
	fromStart := flag.Bool("from-start", false, "read the topic from the first offset")
	flag.Parse()

	cfg.Brokers = strings.Split(*brokers, ",")
	if *fromStart {
		cfg.StartOffset = kafka.FirstOffset
	}

	ctx, cancelCtx := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancelCtx()

	l := internal.NewLogger("cmd", "candecode-tail")

	reader := candecodekafka.NewReader(cfg)
	if err := reader.Init(ctx); err != nil {
		l.Error("failed to init reader", err)
		return 1
	}

	defer func() {
		if err := reader.Close(); err != nil {
			l.Error("failed to close reader", err)
		}
	}()

	err := reader.Run(ctx, func(_ context.Context, rec *output.Record) {
		fmt.Println(formatRecord(rec))
	})
	if err != nil {
		l.Error("failed to read", err)
		return 1
	}

	return 0
}

func formatRecord(rec *output.Record) string {
	ts := rec.Timestamp.Format("15:04:05.000000")
	if rec.Label != "" {
		return fmt.Sprintf("%s %s.%s: %q", ts, rec.Frame, rec.Signal, rec.Label)
	}
	return strings.TrimSpace(fmt.Sprintf("%s %s.%s: %g %s", ts, rec.Frame, rec.Signal, rec.Value, rec.Unit))
}
