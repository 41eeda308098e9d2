// Package socketcan reads live frames from a SocketCAN interface.
package socketcan

import (
	"context"
	"errors"
	"time"

	"github.com/brutella/can"
	"github.com/squadracorsepolito/candecode/internal"

	rawcan "github.com/squadracorsepolito/candecode/can"
)

type Config struct {
	Interface  string `yaml:"interface" env:"INTERFACE"`
	BufferSize int    `yaml:"buffer_size" env:"BUFFER_SIZE"`
}

func NewDefaultConfig() *Config {
	return &Config{
		Interface:  "can0",
		BufferSize: 1024,
	}
}

// Source publishes the frames received on a SocketCAN interface.
type Source struct {
	l *internal.Logger

	cfg *Config

	frameCh chan can.Frame
	done    chan struct{}
}

func NewSource(cfg *Config) *Source {
	return &Source{
		l: internal.NewLogger("socketcan", cfg.Interface),

		cfg: cfg,

		frameCh: make(chan can.Frame, cfg.BufferSize),
		done:    make(chan struct{}),
	}
}

// Handle is called by the bus for every received frame.
func (s *Source) Handle(frame can.Frame) {
	select {
	case s.frameCh <- frame:
	case <-s.done:
	}
}

// Run connects to the interface and feeds every received frame to process
// until ctx is cancelled or the bus fails. Frames are processed one at a
// time in the calling goroutine.
func (s *Source) Run(ctx context.Context, process func(context.Context, *rawcan.Frame)) error {
	bus, err := can.NewBusForInterfaceWithName(s.cfg.Interface)
	if err != nil {
		return err
	}

	bus.Subscribe(s)

	errCh := make(chan error, 1)
	go func() {
		errCh <- bus.ConnectAndPublish()
	}()

	s.l.Info("listening", "interface", s.cfg.Interface)

	defer close(s.done)

	for {
		select {
		case <-ctx.Done():
			if err := bus.Disconnect(); err != nil {
				s.l.Error("failed to disconnect", err)
			}
			return nil

		case err := <-errCh:
			if err == nil {
				err = errors.New("socketcan: bus closed")
			}
			return err

		case frame := <-s.frameCh:
			process(ctx, s.convert(frame, time.Now()))
		}
	}
}

func (s *Source) convert(frame can.Frame, recvTime time.Time) *rawcan.Frame {
	id, remote := rawcan.SplitKernelID(frame.ID)

	length := min(frame.Length, rawcan.MaxDataLen)

	return &rawcan.Frame{
		ID:        id,
		Len:       length,
		Data:      frame.Data,
		Remote:    remote,
		Timestamp: recvTime,
		Device:    s.cfg.Interface,
	}
}
