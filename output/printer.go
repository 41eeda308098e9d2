package output

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/squadracorsepolito/candecode/dispatch"
	"github.com/squadracorsepolito/candecode/internal"
)

type Format int

const (
	FormatText Format = iota
	FormatJSON
)

var ErrUnknownFormat = errors.New("output: unknown format")

func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "text":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnknownFormat, s)
	}
}

func (f Format) String() string {
	switch f {
	case FormatText:
		return "text"
	case FormatJSON:
		return "json"
	default:
		return "unknown"
	}
}

// FormatLine renders an event in the classic candecode line format.
func FormatLine(ev *dispatch.Event) string {
	ts := fmt.Sprintf("(%04d.%06d)", ev.Timestamp.Unix(), ev.Timestamp.Nanosecond()/1000)

	switch {
	case ev.Unmatched():
		return fmt.Sprintf("%s %s: Frame 0x%02x not found", ts, ev.Device, ev.RawValue)
	case ev.HasLabel:
		return fmt.Sprintf("%s %s %s: 0x%02x \"%s\"", ts, ev.Device, ev.SignalName(), ev.RawValue, ev.Label)
	default:
		return fmt.Sprintf("%s %s %s: 0x%02x %f", ts, ev.Device, ev.SignalName(), ev.RawValue, ev.Value)
	}
}

// Printer writes one line per event.
type Printer struct {
	l *internal.Logger

	w      *bufio.Writer
	format Format

	lineBuffered bool
}

func NewPrinter(w io.Writer, format Format) *Printer {
	return &Printer{
		l: internal.NewLogger("output", format.String()),

		w:      bufio.NewWriter(w),
		format: format,
	}
}

func (p *Printer) Init(_ context.Context) error {
	return nil
}

func (p *Printer) Observe(_ context.Context, ev *dispatch.Event) {
	switch p.format {
	case FormatJSON:
		data, err := MarshalEvent(ev)
		if err != nil {
			p.l.Error("failed to encode event", err)
			return
		}
		p.w.Write(data)

	default:
		p.w.WriteString(FormatLine(ev))
	}

	p.w.WriteByte('\n')

	if p.lineBuffered {
		p.Flush()
	}
}

// SetLineBuffered makes the printer flush after every line,
// for terminals and live sources.
func (p *Printer) SetLineBuffered(lineBuffered bool) {
	p.lineBuffered = lineBuffered
}

// Flush writes the buffered lines.
func (p *Printer) Flush() error {
	return p.w.Flush()
}

func (p *Printer) Close(_ context.Context) error {
	return p.Flush()
}
