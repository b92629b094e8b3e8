// Package config loads the simulator configuration from a TOML file.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"clint/kernel/irq"

	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"
	toml "github.com/pelletier/go-toml/v2"
)

// validate caches struct metadata and is safe for concurrent use.
var validate = validator.New()

var (
	errTooManyLines    = fmt.Errorf("config: lines exceeds handler table capacity (%d)", irq.NrISR)
	errLineOutOfRange  = errors.New("config: interrupt line out of range")
	errDuplicateLine   = errors.New("config: interrupt line used by more than one timer")
	errCalibrationLine = errors.New("config: calibration line must be driven by a timer")
)

// Config is the top-level simulator configuration.
type Config struct {
	// Listen is the address of the HTTP control surface.
	Listen string `toml:"listen" json:"listen" validate:"required,hostname_port"`

	// Lines is the number of interrupt lines of the emulated controller.
	Lines int `toml:"lines" json:"lines" validate:"gte=1"`

	Log         Log          `toml:"log" json:"log"`
	Timers      []Timer      `toml:"timer" json:"timer,omitempty" validate:"dive"`
	Calibration *Calibration `toml:"calibration" json:"calibration,omitempty"`
}

// Log configures the simulator logger.
type Log struct {
	File  string `toml:"file" json:"file" validate:"required"`
	Level string `toml:"level" json:"level" validate:"oneof=debug info warn error"`
}

// Timer describes a periodic interrupt source.
type Timer struct {
	Name   string   `toml:"name" json:"name" validate:"required"`
	Line   int      `toml:"line" json:"line" validate:"gte=0"`
	Period Duration `toml:"period" json:"period" validate:"gt=0"`
}

// Calibration enables a start-up phase that temporarily overrides the handler
// of Line until Ticks interrupts have been observed.
type Calibration struct {
	Line  int `toml:"line" json:"line" validate:"gte=0"`
	Ticks int `toml:"ticks" json:"ticks" validate:"gte=1"`
}

// Duration is a time.Duration written as a string such as "10ms".
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}

	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// JSONSchema describes Duration as a string in the generated schema.
func (Duration) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:        "string",
		Description: "Go duration string, e.g. 10ms",
		Examples:    []any{"10ms", "1s"},
	}
}

// Default returns the configuration used for values missing from the file.
func Default() Config {
	return Config{
		Listen: "127.0.0.1:4000",
		Lines:  irq.NrISR,
		Log: Log{
			File:  "log/irqsim.log",
			Level: "info",
		},
	}
}

// Load reads and validates the configuration stored at path.
func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}

	return Parse(b)
}

// Parse decodes and validates a TOML document. Keys missing from the document
// keep the values returned by Default.
func Parse(b []byte) (Config, error) {
	cfg := Default()
	if err := toml.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate checks field constraints and the relations between timers,
// calibration and the available interrupt lines.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config: validation failed: %w", err)
	}

	if c.Lines > irq.NrISR {
		return errTooManyLines
	}

	used := make(map[int]string, len(c.Timers))
	for _, t := range c.Timers {
		if t.Line >= c.Lines {
			return fmt.Errorf("%w: timer %q uses line %d, controller has %d", errLineOutOfRange, t.Name, t.Line, c.Lines)
		}
		if other, ok := used[t.Line]; ok {
			return fmt.Errorf("%w: line %d (%q and %q)", errDuplicateLine, t.Line, other, t.Name)
		}
		used[t.Line] = t.Name
	}

	if cal := c.Calibration; cal != nil {
		if _, ok := used[cal.Line]; !ok {
			return fmt.Errorf("%w: line %d", errCalibrationLine, cal.Line)
		}
	}

	return nil
}

// Schema returns the JSON schema of the configuration file.
func Schema() ([]byte, error) {
	reflector := jsonschema.Reflector{
		ExpandedStruct: true,
	}

	b, err := json.MarshalIndent(reflector.Reflect(&Config{}), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("config: marshal schema: %w", err)
	}

	return b, nil
}
