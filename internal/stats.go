package internal

import (
	"context"
	"sync/atomic"
	"time"
)

// Stats periodically logs the throughput of a component.
type Stats struct {
	l *Logger

	frameCount  atomic.Uint64
	signalCount atomic.Uint64
}

func NewStats(l *Logger) *Stats {
	return &Stats{
		l: l,
	}
}

func (s *Stats) RunStats(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			frameCount := s.frameCount.Load()
			signalCount := s.signalCount.Load()

			if frameCount == 0 && signalCount == 0 {
				continue
			}

			s.frameCount.Store(0)
			s.signalCount.Store(0)

			s.l.Info("stats", "frames_per_sec", frameCount, "signals_per_sec", signalCount)
		}
	}
}

func (s *Stats) IncrementFrameCount() {
	s.frameCount.Add(1)
}

func (s *Stats) IncrementSignalCount() {
	s.signalCount.Add(1)
}
