// Package config holds the generator settings: defaults, an optional TOML
// file and the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"github.com/ardanlabs/aubio-extgen/cpp"
	"github.com/ardanlabs/aubio-extgen/parser"
)

type Config struct {
	Header       string        `toml:"header" validate:"required"`
	OutputDir    string        `toml:"output_dir" validate:"required"`
	UseDouble    bool          `toml:"use_double"`
	Overwrite    bool          `toml:"overwrite"`
	SkipObjects  []string      `toml:"skip_objects" validate:"dive,required"`
	Compiler     string        `toml:"compiler"`      // overrides CC
	ProbeTimeout string        `toml:"probe_timeout"` // e.g. "5s"
	Logging      LoggingConfig `toml:"logging"`
}

type LoggingConfig struct {
	Level string `toml:"level" validate:"oneof=trace debug info warn error"`
}

var DefaultHeader = filepath.Join("src", "aubio.h")

var DefaultOutputDir = filepath.Join("python", "gen")

// DefaultSkipObjects are objects the generator leaves alone unless told otherwise.
var DefaultSkipObjects = []string{
	// already in ext/
	"fft",
	"pvoc",
	"filter",
	"filterbank",
	// AUBIO_UNSTABLE
	"hist",
	"parameter",
	"scale",
	"beattracking",
	"resampler",
	"peakpicker",
	"pitchfcomb",
	"pitchmcomb",
	"pitchschmitt",
	"pitchspecacf",
	"pitchyin",
	"pitchyinfft",
	"pitchyinfast",
	"sink",
	"sink_apple_audio",
	"sink_sndfile",
	"sink_wavwrite",
	"source",
	"source_apple_audio",
	"source_sndfile",
	"source_avcodec",
	"source_wavread",
	"audio_unit",
	"spectral_whitening",
	// the uint_t *read parameter of its _do is not wrapped
	"timestretch",
}

func Default() *Config {
	return &Config{
		Header:       DefaultHeader,
		OutputDir:    DefaultOutputDir,
		Overwrite:    true,
		SkipObjects:  append([]string(nil), DefaultSkipObjects...),
		ProbeTimeout: cpp.DefaultProbeTimeout.String(),
		Logging:      LoggingConfig{Level: "info"},
	}
}

// Load builds a Config from the defaults, the TOML file at path (skipped
// when path is empty), a .env file in the working directory if there is
// one, and the process environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	} else if err != nil {
		return fmt.Errorf("checking %s: %w", path, err)
	}

	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("could not load %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	if cc := os.Getenv("CC"); cc != "" {
		c.Compiler = cc
	}
}

func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := c.ProbeTimeoutDuration(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func (c *Config) ProbeTimeoutDuration() (time.Duration, error) {
	if c.ProbeTimeout == "" {
		return cpp.DefaultProbeTimeout, nil
	}

	d, err := time.ParseDuration(c.ProbeTimeout)
	if err != nil {
		return 0, fmt.Errorf("probe_timeout: %w", err)
	}
	return d, nil
}

func (c *Config) SkipSet() parser.SkipSet {
	return parser.NewSkipSet(c.SkipObjects...)
}

// Strategies returns the compiler resolution order for this configuration.
func (c *Config) Strategies() []cpp.Strategy {
	timeout, _ := c.ProbeTimeoutDuration()
	return cpp.DefaultStrategies(c.Compiler, timeout)
}
