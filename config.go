package candecode

import (
	"errors"
	"fmt"
	"os"

	"github.com/caarlos0/env/v6"
	"github.com/squadracorsepolito/candecode/internal/telemetry"
	"github.com/squadracorsepolito/candecode/kafka"
	"github.com/squadracorsepolito/candecode/mqtt"
	"github.com/squadracorsepolito/candecode/output"
	"github.com/squadracorsepolito/candecode/questdb"
	"github.com/squadracorsepolito/candecode/socketcan"
	"gopkg.in/yaml.v3"
)

// SelectorAll decodes every frame of the database.
const SelectorAll = "all"

const (
	InputCandump   = "candump"
	InputSocketCAN = "socketcan"
)

var ErrInvalidConfig = errors.New("candecode: invalid config")

type InputConfig struct {
	// Kind is either candump or socketcan.
	Kind string `yaml:"kind" env:"KIND"`
	// File is the candump log to read, stdin when empty or "-".
	File string `yaml:"file" env:"FILE"`

	SocketCAN *socketcan.Config `yaml:"socketcan" envPrefix:"SOCKETCAN_"`
}

type OutputConfig struct {
	Format string `yaml:"format" env:"FORMAT"`
	// Quiet disables the printer, leaving only the sinks.
	Quiet bool `yaml:"quiet" env:"QUIET"`
}

type Config struct {
	DBC       string   `yaml:"dbc" env:"CANDECODE_DBC"`
	Selectors []string `yaml:"selectors" env:"CANDECODE_SELECTORS" envSeparator:","`
	OnChange  bool     `yaml:"on_change" env:"CANDECODE_ON_CHANGE"`
	LogLevel  string   `yaml:"log_level" env:"CANDECODE_LOG_LEVEL"`
	Stats     bool     `yaml:"stats" env:"CANDECODE_STATS"`

	Input     *InputConfig      `yaml:"input" envPrefix:"CANDECODE_INPUT_"`
	Output    *OutputConfig     `yaml:"output" envPrefix:"CANDECODE_OUTPUT_"`
	QuestDB   *questdb.Config   `yaml:"questdb" envPrefix:"CANDECODE_QUESTDB_"`
	Kafka     *kafka.Config     `yaml:"kafka" envPrefix:"CANDECODE_KAFKA_"`
	MQTT      *mqtt.Config      `yaml:"mqtt" envPrefix:"CANDECODE_MQTT_"`
	Telemetry *telemetry.Config `yaml:"telemetry" envPrefix:"CANDECODE_TELEMETRY_"`
}

func NewDefaultConfig() *Config {
	return &Config{
		LogLevel: "info",

		Input: &InputConfig{
			Kind:      InputCandump,
			SocketCAN: socketcan.NewDefaultConfig(),
		},
		Output: &OutputConfig{
			Format: output.FormatText.String(),
		},
		QuestDB:   questdb.NewDefaultConfig(),
		Kafka:     kafka.NewDefaultConfig(),
		MQTT:      mqtt.NewDefaultConfig(),
		Telemetry: telemetry.NewDefaultConfig(),
	}
}

// LoadConfig starts from the defaults, applies the YAML file at path
// when path is not empty, and then the environment.
func LoadConfig(path string) (*Config, error) {
	cfg := NewDefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	return cfg, nil
}

// DecodeAll reports whether every frame must be decoded.
func (c *Config) DecodeAll() bool {
	if len(c.Selectors) == 0 {
		return true
	}

	for _, sel := range c.Selectors {
		if sel == SelectorAll {
			return true
		}
	}

	return false
}

func (c *Config) Validate() error {
	if c.DBC == "" {
		return fmt.Errorf("%w: missing dbc path", ErrInvalidConfig)
	}

	if c.Input == nil || c.Output == nil {
		return fmt.Errorf("%w: missing input or output section", ErrInvalidConfig)
	}

	switch c.Input.Kind {
	case InputCandump:
	case InputSocketCAN:
		if c.Input.SocketCAN == nil || c.Input.SocketCAN.Interface == "" {
			return fmt.Errorf("%w: missing socketcan interface", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown input %q", ErrInvalidConfig, c.Input.Kind)
	}

	if _, err := output.ParseFormat(c.Output.Format); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	return nil
}
