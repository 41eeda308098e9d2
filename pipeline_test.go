package candecode

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/squadracorsepolito/candecode/candump"
	"github.com/squadracorsepolito/candecode/dbc"
	"github.com/squadracorsepolito/candecode/dispatch"
	"github.com/squadracorsepolito/candecode/internal"
	"github.com/squadracorsepolito/candecode/output"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDBC = `
VERSION ""

BO_ 100 EngineData: 8 ECU
 SG_ RPM : 0|16@1+ (0.25,0) [0|16383.75] "rpm" DASH
 SG_ Temp : 16|8@1- (1,-40) [-40|215] "degC" DASH
 SG_ Gear : 24|4@1+ (1,0) [0|15] "" DASH

VAL_ 100 Gear 0 "Neutral" 1 "First" 2 "Second" ;
`

const testLog = `(1436509052.249713) vcan0 064#A00F030000000000
(1436509052.250000) vcan0 7FF#00
(1436509052.260000) vcan0 064#A00F030100000000
(1436509052.270000) vcan0 064#A00F030100000000
(1436509052.280000) vcan0 064#A00F030200000000
`

func TestMain(m *testing.M) {
	internal.DiscardLogs()
	os.Exit(m.Run())
}

func loadDatabase(t *testing.T) *dbc.Database {
	t.Helper()

	db, err := dbc.NewParser(strings.NewReader(testDBC)).Parse()
	require.NoError(t, err)

	return db
}

func runPipeline(t *testing.T, cfg *Config, input string) []string {
	t.Helper()

	ctx := context.Background()
	stdout := &bytes.Buffer{}

	p, err := Build(cfg, loadDatabase(t), strings.NewReader(input), stdout)
	require.NoError(t, err)

	require.NoError(t, p.Init(ctx))
	require.NoError(t, p.Run(ctx))
	require.NoError(t, p.Close(ctx))

	return strings.Split(strings.TrimSuffix(stdout.String(), "\n"), "\n")
}

func Test_Pipeline_decodeAll(t *testing.T) {
	cfg := NewDefaultConfig()

	lines := runPipeline(t, cfg, testLog)

	require.Len(t, lines, 13)
	assert.Equal(t, []string{
		"(1436509052.249713) vcan0 RPM: 0xfa0 1000.000000",
		"(1436509052.249713) vcan0 Temp: 0x03 -37.000000",
		`(1436509052.249713) vcan0 Gear: 0x00 "Neutral"`,
		"(1436509052.250000) vcan0: Frame 0x7ff not found",
		"(1436509052.260000) vcan0 RPM: 0xfa0 1000.000000",
		"(1436509052.260000) vcan0 Temp: 0x03 -37.000000",
		`(1436509052.260000) vcan0 Gear: 0x01 "First"`,
	}, lines[:7])
	assert.Equal(t, `(1436509052.280000) vcan0 Gear: 0x02 "Second"`, lines[12])
}

func Test_Pipeline_subscription(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Selectors = []string{"EngineData.Gear"}

	lines := runPipeline(t, cfg, testLog)

	assert.Equal(t, []string{
		`(1436509052.249713) vcan0 Gear: 0x00 "Neutral"`,
		`(1436509052.260000) vcan0 Gear: 0x01 "First"`,
		`(1436509052.270000) vcan0 Gear: 0x01 "First"`,
		`(1436509052.280000) vcan0 Gear: 0x02 "Second"`,
	}, lines)
}

func Test_Pipeline_onChange(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Selectors = []string{"Gear"}
	cfg.OnChange = true

	lines := runPipeline(t, cfg, testLog)

	// the history starts at zero, so the first Neutral is not reported
	assert.Equal(t, []string{
		`(1436509052.260000) vcan0 Gear: 0x01 "First"`,
		`(1436509052.280000) vcan0 Gear: 0x02 "Second"`,
	}, lines)
}

func Test_Pipeline_remoteFrame(t *testing.T) {
	input := "(1436509052.249713) vcan0 064#R\n"

	lines := runPipeline(t, NewDefaultConfig(), input)
	assert.Equal(t, []string{"(1436509052.249713) vcan0: Frame 0x40000064 not found"}, lines)

	cfg := NewDefaultConfig()
	cfg.Selectors = []string{"EngineData"}

	lines = runPipeline(t, cfg, input)
	assert.Equal(t, []string{""}, lines)
}

func Test_Pipeline_json(t *testing.T) {
	assert := assert.New(t)

	cfg := NewDefaultConfig()
	cfg.Selectors = []string{"EngineData.RPM"}
	cfg.Output.Format = "json"

	lines := runPipeline(t, cfg, testLog)
	require.Len(t, lines, 4)

	rec, err := output.UnmarshalRecord([]byte(lines[0]))
	require.NoError(t, err)

	assert.Equal("EngineData", rec.Frame)
	assert.Equal("RPM", rec.Signal)
	assert.Equal(uint64(0xfa0), rec.RawValue)
	assert.InDelta(1000.0, rec.Value, 1e-9)
	assert.Equal("rpm", rec.Unit)
	assert.Equal("vcan0", rec.Device)
}

func Test_Pipeline_inputFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.log")
	require.NoError(t, os.WriteFile(path, []byte(testLog), 0o600))

	cfg := NewDefaultConfig()
	cfg.Selectors = []string{"EngineData.Temp"}
	cfg.Input.File = path

	lines := runPipeline(t, cfg, "")

	assert.Len(t, lines, 4)
	assert.Equal(t, "(1436509052.249713) vcan0 Temp: 0x03 -37.000000", lines[0])
}

func Test_Pipeline_invalidLine(t *testing.T) {
	ctx := context.Background()

	p, err := Build(NewDefaultConfig(), loadDatabase(t), strings.NewReader("garbage\n"), &bytes.Buffer{})
	require.NoError(t, err)

	require.NoError(t, p.Init(ctx))
	assert.ErrorIs(t, p.Run(ctx), candump.ErrInvalidLine)
	assert.NoError(t, p.Close(ctx))
}

func Test_Build_errors(t *testing.T) {
	db := loadDatabase(t)

	cfg := NewDefaultConfig()
	cfg.Selectors = []string{"Unknown"}
	_, err := Build(cfg, db, strings.NewReader(""), &bytes.Buffer{})
	assert.ErrorIs(t, err, dispatch.ErrUnknownFrame)

	cfg.Selectors = []string{"EngineData.Unknown"}
	_, err = Build(cfg, db, strings.NewReader(""), &bytes.Buffer{})
	assert.ErrorIs(t, err, dispatch.ErrUnknownSignal)

	cfg = NewDefaultConfig()
	cfg.Output.Format = "xml"
	_, err = Build(cfg, db, strings.NewReader(""), &bytes.Buffer{})
	assert.ErrorIs(t, err, output.ErrUnknownFormat)

	cfg = NewDefaultConfig()
	cfg.Input.File = filepath.Join(t.TempDir(), "missing.log")
	_, err = Build(cfg, db, strings.NewReader(""), &bytes.Buffer{})
	assert.Error(t, err)
}
