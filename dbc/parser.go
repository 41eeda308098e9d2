package dbc

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/squadracorsepolito/candecode/codec"
	"github.com/squadracorsepolito/candecode/internal"
)

const (
	kwFrame  = "BO_ "
	kwValue  = "VAL_ "
	kwSignal = "SG_ "
)

var (
	ErrSyntax           = errors.New("dbc: syntax error")
	ErrInvalidNumber    = errors.New("dbc: invalid number")
	ErrInvalidDLC       = errors.New("dbc: invalid data length code")
	ErrSignalOutOfFrame = errors.New("dbc: signal declared outside of a frame")
)

// The layout part shared by both signal shapes:
// start|length@order sign (factor,offset) [min|max] unit receivers
const signalLayoutExpr = `:\s*(\S+)\|(\S+)@(\S)(\S)\s*\(([^,]*),([^)]*)\)\s*\[([^|]*)\|([^\]]*)\]\s*("[^"]*"|\S+)\s*(.*)$`

var (
	signalPlainRegexp = regexp.MustCompile(`^SG_\s+(\S+)\s*` + signalLayoutExpr)
	signalMuxRegexp   = regexp.MustCompile(`^SG_\s+(\S+)\s+(\S+)\s*` + signalLayoutExpr)
)

// Diagnostic reports a line that was recognized but could not be loaded.
type Diagnostic struct {
	Line int
	Text string
	Err  error
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("line %d: %v", d.Line, d.Err)
}

// Parser reads a DBC description line by line.
//
// Only frame, signal and value table records are loaded. Any other line
// is ignored. Records that fail to load produce a [Diagnostic] and
// parsing goes on with the next line.
type Parser struct {
	l *internal.Logger

	r io.Reader

	db      *Database
	frame   *Frame
	lineNum int
	diags   []Diagnostic
}

func NewParser(r io.Reader) *Parser {
	return &Parser{
		l: internal.NewLogger("dbc", "parser"),

		r: r,
	}
}

// ParseFile opens and parses the DBC file at path.
// Failing to open the file is the only fatal error.
func ParseFile(path string) (*Database, []Diagnostic, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	p := NewParser(f)
	db, err := p.Parse()
	if err != nil {
		return nil, nil, err
	}

	return db, p.Diagnostics(), nil
}

// Parse builds the database. It returns an error only if reading fails.
func (p *Parser) Parse() (*Database, error) {
	p.db = NewDatabase()
	p.frame = nil
	p.lineNum = 0
	p.diags = nil

	scanner := bufio.NewScanner(p.r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		p.lineNum++
		p.parseLine(strings.TrimSpace(scanner.Text()))
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	p.l.Debug("database parsed", "frames", p.db.FrameCount(), "signals", p.db.SignalCount(), "diagnostics", len(p.diags))

	return p.db, nil
}

// Diagnostics returns the problems found by the last call to Parse.
func (p *Parser) Diagnostics() []Diagnostic {
	return p.diags
}

func (p *Parser) diagnose(line string, err error) {
	d := Diagnostic{Line: p.lineNum, Text: line, Err: err}
	p.diags = append(p.diags, d)
	p.l.Warn("skipping record", "line", d.Line, "reason", err)
}

func (p *Parser) parseLine(line string) {
	switch {
	case strings.HasPrefix(line, kwFrame):
		if err := p.parseFrame(line); err != nil {
			p.frame = nil
			p.diagnose(line, err)
		}

	case strings.HasPrefix(line, kwValue):
		if err := p.parseValues(line); err != nil {
			p.diagnose(line, err)
		}

	case strings.HasPrefix(line, kwSignal):
		if err := p.parseSignal(line); err != nil {
			p.diagnose(line, err)
		}
	}
}

// parseFrame handles BO_ <id> <name>: <dlc> <sender>
func (p *Parser) parseFrame(line string) error {
	fields := strings.Fields(line)

	// the colon may be detached from the name
	if len(fields) > 3 && fields[3] == ":" {
		fields = append(fields[:3], fields[4:]...)
	}

	if len(fields) < 4 {
		return fmt.Errorf("%w: frame record needs id, name and dlc", ErrSyntax)
	}

	id, err := strconv.ParseUint(fields[1], 10, 32)
	if err != nil {
		return fmt.Errorf("%w: frame id %q", ErrInvalidNumber, fields[1])
	}

	name := strings.TrimSuffix(fields[2], ":")

	dlc, err := strconv.ParseUint(fields[3], 10, 8)
	if err != nil {
		return fmt.Errorf("%w: dlc %q", ErrInvalidNumber, fields[3])
	}
	if dlc > codec.PayloadSize {
		return fmt.Errorf("%w: %d", ErrInvalidDLC, dlc)
	}

	sender := ""
	if len(fields) > 4 {
		sender = fields[4]
	}

	frame := NewFrame(uint32(id), name, uint8(dlc), sender)
	if err := p.db.AddFrame(frame); err != nil {
		return err
	}

	p.frame = frame

	return nil
}

// parseSignal handles the SG_ records of the last parsed frame.
func (p *Parser) parseSignal(line string) error {
	if p.frame == nil {
		return ErrSignalOutOfFrame
	}

	var name, muxToken string
	var layout []string

	if m := signalPlainRegexp.FindStringSubmatch(line); m != nil {
		name = m[1]
		layout = m[2:]
	} else if m := signalMuxRegexp.FindStringSubmatch(line); m != nil {
		name = m[1]
		muxToken = m[2]
		layout = m[3:]
	} else {
		return fmt.Errorf("%w: malformed signal record", ErrSyntax)
	}

	sig, err := parseSignalLayout(name, layout)
	if err != nil {
		return err
	}

	if err := parseMuxToken(sig, muxToken); err != nil {
		return err
	}

	return p.db.AddSignal(p.frame.ID, sig)
}

func parseSignalLayout(name string, layout []string) (*Signal, error) {
	startBit, err := strconv.Atoi(layout[0])
	if err != nil {
		return nil, fmt.Errorf("%w: start bit %q", ErrInvalidNumber, layout[0])
	}

	length, err := strconv.Atoi(layout[1])
	if err != nil {
		return nil, fmt.Errorf("%w: length %q", ErrInvalidNumber, layout[1])
	}

	var byteOrder ByteOrder
	switch layout[2] {
	case "0":
		byteOrder = ByteOrderMotorola
	case "1":
		byteOrder = ByteOrderIntel
	default:
		return nil, fmt.Errorf("%w: byte order %q", ErrSyntax, layout[2])
	}

	floats := make([]float64, 4)
	for i, token := range layout[4:8] {
		val, err := strconv.ParseFloat(strings.TrimSpace(token), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidNumber, token)
		}
		floats[i] = val
	}

	// the start bit is stored as the position of the least significant bit
	if byteOrder == ByteOrderMotorola {
		startBit = codec.MotorolaStartBit(startBit, length)
	}

	return &Signal{
		Name:      name,
		StartBit:  startBit,
		Length:    length,
		ByteOrder: byteOrder,
		Signed:    layout[3] == "-",
		Factor:    floats[0],
		Offset:    floats[1],
		Min:       floats[2],
		Max:       floats[3],
		Unit:      strings.Trim(layout[8], `"`),
		Receivers: parseReceivers(layout[9]),
	}, nil
}

func parseMuxToken(sig *Signal, token string) error {
	switch {
	case token == "M":
		sig.MuxRole = MuxRoleSelector

	case strings.HasPrefix(token, "m") && len(token) > 1:
		// only the leading digits count, m1M is a data signal of group 1
		digits := token[1:]
		if end := strings.IndexFunc(digits, func(r rune) bool { return r < '0' || r > '9' }); end >= 0 {
			digits = digits[:end]
		}

		muxID, err := strconv.ParseUint(digits, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: multiplexer id %q", ErrInvalidNumber, token)
		}
		sig.MuxRole = MuxRoleData
		sig.MuxID = muxID

	default:
		sig.MuxRole = MuxRoleNone
	}

	return nil
}

func parseReceivers(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
}

// parseValues handles VAL_ <frameId> <signal> (<value> "<label>")+ ;
func (p *Parser) parseValues(line string) error {
	rest := strings.TrimSpace(strings.TrimPrefix(line, kwValue))

	frameToken, rest := nextToken(rest)
	sigName, rest := nextToken(rest)
	if sigName == "" {
		return fmt.Errorf("%w: value record needs frame id and signal", ErrSyntax)
	}

	frameID, err := strconv.ParseUint(frameToken, 10, 32)
	if err != nil {
		return fmt.Errorf("%w: frame id %q", ErrInvalidNumber, frameToken)
	}

	frame, ok := p.db.FrameByID(uint32(frameID))
	if !ok {
		return fmt.Errorf("%w: 0x%x", ErrFrameNotFound, frameID)
	}
	if _, ok := frame.Signal(sigName); !ok {
		return fmt.Errorf("%w: %s in frame %s", ErrSignalNotFound, sigName, frame.Name)
	}

	entries := []ValueEntry{}
	for {
		rest = strings.TrimSpace(rest)
		if rest == "" || rest[0] == ';' {
			break
		}

		var rawToken string
		rawToken, rest = nextToken(rest)
		raw, err := parseValue(strings.TrimSuffix(rawToken, ";"))
		if err != nil {
			return err
		}

		rest = strings.TrimSpace(rest)
		if !strings.HasPrefix(rest, `"`) {
			return fmt.Errorf("%w: missing label for value %d", ErrSyntax, raw)
		}

		end := strings.IndexByte(rest[1:], '"')
		if end < 0 {
			return fmt.Errorf("%w: unterminated label for value %d", ErrSyntax, raw)
		}

		entries = append(entries, ValueEntry{Raw: raw, Label: rest[1 : end+1]})
		rest = rest[end+2:]
	}

	for _, entry := range entries {
		if err := p.db.AddValue(frame.ID, sigName, entry.Raw, entry.Label); err != nil {
			p.diagnose(line, err)
		}
	}

	return nil
}

// parseValue accepts signed values and unsigned values up to 64 bits.
func parseValue(token string) (int64, error) {
	if val, err := strconv.ParseInt(token, 10, 64); err == nil {
		return val, nil
	}

	val, err := strconv.ParseUint(token, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: value %q", ErrInvalidNumber, token)
	}

	return int64(val), nil
}

func nextToken(s string) (string, string) {
	s = strings.TrimSpace(s)
	idx := strings.IndexAny(s, " \t")
	if idx < 0 {
		return s, ""
	}
	return s[:idx], s[idx:]
}
