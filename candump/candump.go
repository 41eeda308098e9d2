// Package candump reads the ASCII log format written by candump -l:
//
//	(1436509052.249713) vcan0 123#DEADBEEF
package candump

import (
	"bufio"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/squadracorsepolito/candecode/can"
	"github.com/squadracorsepolito/candecode/internal"
)

const (
	sffIDLen = 3
	effIDLen = 8
)

var (
	ErrInvalidLine  = errors.New("candump: invalid line")
	ErrInvalidFrame = errors.New("candump: invalid frame")
)

// ParseLine parses a single log line.
func ParseLine(line string) (*can.Frame, error) {
	fields := strings.Fields(line)
	if len(fields) < 3 {
		return nil, fmt.Errorf("%w: expected timestamp, interface and frame", ErrInvalidLine)
	}

	ts, err := parseTimestamp(fields[0])
	if err != nil {
		return nil, err
	}

	frame, err := ParseFrame(fields[2])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidLine, err)
	}

	frame.Timestamp = ts
	frame.Device = fields[1]

	return frame, nil
}

func parseTimestamp(s string) (time.Time, error) {
	if !strings.HasPrefix(s, "(") || !strings.HasSuffix(s, ")") {
		return time.Time{}, fmt.Errorf("%w: timestamp %q", ErrInvalidLine, s)
	}

	secStr, usecStr, found := strings.Cut(s[1:len(s)-1], ".")
	if !found {
		return time.Time{}, fmt.Errorf("%w: timestamp %q", ErrInvalidLine, s)
	}

	sec, err := strconv.ParseInt(secStr, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: timestamp %q", ErrInvalidLine, s)
	}

	usec, err := strconv.ParseInt(usecStr, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: timestamp %q", ErrInvalidLine, s)
	}

	return time.Unix(sec, usec*int64(time.Microsecond)), nil
}

// ParseFrame parses the <id>#<data> part of a line.
// Ids of 3 hex digits are standard, ids of 8 hex digits are extended
// and get the EFF flag. Data is made of hex byte pairs, optionally
// separated by dots, or R for a remote frame.
func ParseFrame(s string) (*can.Frame, error) {
	idStr, dataStr, found := strings.Cut(s, "#")
	if !found {
		return nil, fmt.Errorf("%w: missing separator in %q", ErrInvalidFrame, s)
	}

	rawID, err := strconv.ParseUint(idStr, 16, 32)
	if err != nil {
		return nil, fmt.Errorf("%w: id %q", ErrInvalidFrame, idStr)
	}

	var id uint32
	switch len(idStr) {
	case sffIDLen:
		if uint32(rawID) > can.MaskSFF {
			return nil, fmt.Errorf("%w: standard id %q", ErrInvalidFrame, idStr)
		}
		id = uint32(rawID)

	case effIDLen:
		id, _ = can.SplitKernelID(uint32(rawID) | can.FlagEFF)

	default:
		return nil, fmt.Errorf("%w: id %q must have 3 or 8 digits", ErrInvalidFrame, idStr)
	}

	if strings.HasPrefix(dataStr, "R") {
		frame, err := can.NewFrame(id, nil, time.Time{}, "")
		if err != nil {
			return nil, err
		}
		frame.Remote = true

		if len(dataStr) > 1 {
			dlc, err := strconv.ParseUint(dataStr[1:], 10, 8)
			if err != nil || dlc > can.MaxDataLen {
				return nil, fmt.Errorf("%w: remote length %q", ErrInvalidFrame, dataStr)
			}
			frame.Len = uint8(dlc)
		}

		return frame, nil
	}

	data, err := hex.DecodeString(strings.ReplaceAll(dataStr, ".", ""))
	if err != nil {
		return nil, fmt.Errorf("%w: data %q", ErrInvalidFrame, dataStr)
	}

	frame, err := can.NewFrame(id, data, time.Time{}, "")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidFrame, err)
	}

	return frame, nil
}

// Reader reads frames from a candump log.
type Reader struct {
	l *internal.Logger

	scanner *bufio.Scanner
	lineNum int
}

func NewReader(r io.Reader) *Reader {
	return &Reader{
		l: internal.NewLogger("candump", "reader"),

		scanner: bufio.NewScanner(r),
	}
}

// Next returns the next frame, or [io.EOF] at the end of the log.
// Blank lines are skipped.
func (r *Reader) Next() (*can.Frame, error) {
	for r.scanner.Scan() {
		r.lineNum++

		line := strings.TrimSpace(r.scanner.Text())
		if line == "" {
			continue
		}

		frame, err := ParseLine(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", r.lineNum, err)
		}

		return frame, nil
	}

	if err := r.scanner.Err(); err != nil {
		return nil, err
	}

	return nil, io.EOF
}

// Run feeds every frame of the log to process until the log ends,
// a line is malformed or ctx is cancelled.
func (r *Reader) Run(ctx context.Context, process func(context.Context, *can.Frame)) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		frame, err := r.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				r.l.Debug("end of log", "lines", r.lineNum)
				return nil
			}
			return err
		}

		process(ctx, frame)
	}
}
