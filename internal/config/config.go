// Package config loads the shadow-removal settings shared by the MCP server
// and the batch CLI.
package config

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/ironsheep/shadow-tools-mcp/internal/waterfill"
)

// Environment variables consulted by Load.
const (
	EnvConfig   = "SHADOW_MCP_CONFIG"
	EnvLogLevel = "SHADOW_MCP_LOG_LEVEL"
)

// ErrInvalid is returned by Validate.
var ErrInvalid = errors.New("invalid configuration")

// Stage holds the iteration budget of one relaxation.
type Stage struct {
	Iterations  int   `yaml:"iterations"`
	Checkpoints []int `yaml:"checkpoints"`
}

// Diagnostics controls snapshot files. An empty Prefix disables them.
type Diagnostics struct {
	Prefix  string `yaml:"prefix"`
	Heatmap bool   `yaml:"heatmap"`
}

// Log controls the zerolog output.
type Log struct {
	Level string `yaml:"level"`
	Human bool   `yaml:"human"`
}

// OCR selects the Tesseract model.
type OCR struct {
	Language       string `yaml:"language"`
	TessdataPrefix string `yaml:"tessdata_prefix"`
}

// Config is the on-disk configuration.
type Config struct {
	Rate        float64     `yaml:"rate"`
	Flood       Stage       `yaml:"flood"`
	Refine      Stage       `yaml:"refine"`
	Brightness  float64     `yaml:"brightness"`
	MinShading  float64     `yaml:"min_shading"`
	Workers     int         `yaml:"workers"`
	Diagnostics Diagnostics `yaml:"diagnostics"`
	Log         Log         `yaml:"log"`
	OCR         OCR         `yaml:"ocr"`
}

// Default returns the calibrated settings.
func Default() *Config {
	return &Config{
		Rate: waterfill.DefaultRate,
		Flood: Stage{
			Iterations:  waterfill.DefaultFloodIterations,
			Checkpoints: append([]int(nil), waterfill.DefaultFloodCheckpoints...),
		},
		Refine: Stage{
			Iterations:  waterfill.DefaultRefineIterations,
			Checkpoints: append([]int(nil), waterfill.DefaultRefineCheckpoints...),
		},
		Brightness: waterfill.DefaultBrightness,
		MinShading: waterfill.DefaultMinShading,
		Workers:    1,
		Log:        Log{Level: "info"},
		OCR:        OCR{Language: "eng"},
	}
}

// Load reads path over the defaults. An empty path falls back to
// $SHADOW_MCP_CONFIG; when both are empty only the defaults apply.
// $SHADOW_MCP_LOG_LEVEL overrides log.level.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		path = os.Getenv(EnvConfig)
	}
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open config: %w", err)
		}
		defer f.Close()
		if err := cfg.decode(f); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}
	if lvl := os.Getenv(EnvLogLevel); lvl != "" {
		cfg.Log.Level = lvl
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) decode(r io.Reader) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Validate checks ranges.
func (c *Config) Validate() error {
	switch {
	case !(c.Rate > 0 && c.Rate <= 1):
		return fmt.Errorf("%w: rate must be in (0, 1], got %v", ErrInvalid, c.Rate)
	case c.Flood.Iterations < 0:
		return fmt.Errorf("%w: flood.iterations must not be negative", ErrInvalid)
	case c.Refine.Iterations < 0:
		return fmt.Errorf("%w: refine.iterations must not be negative", ErrInvalid)
	case c.Workers < 1:
		return fmt.Errorf("%w: workers must be at least 1, got %d", ErrInvalid, c.Workers)
	case !(c.Brightness > 0) || math.IsInf(c.Brightness, 0):
		return fmt.Errorf("%w: brightness must be positive, got %v", ErrInvalid, c.Brightness)
	case !(c.MinShading > 0) || math.IsInf(c.MinShading, 0):
		return fmt.Errorf("%w: min_shading must be positive, got %v", ErrInvalid, c.MinShading)
	}
	if _, err := zerolog.ParseLevel(strings.ToLower(c.Log.Level)); err != nil {
		return fmt.Errorf("%w: log.level %q", ErrInvalid, c.Log.Level)
	}
	return nil
}

// Options converts the configuration to solver options. The diagnostics sink
// is attached when a prefix is configured.
func (c *Config) Options(logger zerolog.Logger) waterfill.Options {
	opts := waterfill.Options{
		Rate:              c.Rate,
		FloodIterations:   c.Flood.Iterations,
		FloodCheckpoints:  append([]int(nil), c.Flood.Checkpoints...),
		RefineIterations:  c.Refine.Iterations,
		RefineCheckpoints: append([]int(nil), c.Refine.Checkpoints...),
		Brightness:        c.Brightness,
		MinShading:        c.MinShading,
		Workers:           c.Workers,
		Logger:            logger,
	}
	if c.Diagnostics.Prefix != "" {
		opts.Sink = waterfill.FileSink{Prefix: c.Diagnostics.Prefix, Heatmap: c.Diagnostics.Heatmap}
	}
	return opts
}

// Logger builds a zerolog logger writing to w at the configured level.
// Human selects the console writer.
func (c *Config) Logger(w io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(c.Log.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	if c.Log.Human {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}
