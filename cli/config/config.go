// Package config loads and validates gridcap.yaml.
package config

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/justapithecus/gridcap/types"
)

// Default values reproduce the reference calibration: a 6×9 grid of
// 180px cells whose top-left cell starts at (1110, 172) on a 2560px wide
// display, saved under screenshots/.
const (
	DefaultTileSize      = 180
	DefaultRows          = 6
	DefaultCols          = 9
	DefaultOriginX       = 1110
	DefaultOriginY       = 172
	DefaultCommandPrefix = "scriptevent mimi:tera"
	DefaultStoragePath   = "screenshots"
	DefaultMode          = "continuous"
	DefaultLogLevel      = "info"
)

// Config represents a gridcap.yaml configuration file.
// CLI flags always override config values.
type Config struct {
	Server      ServerConfig  `yaml:"server"`
	Grid        GridConfig    `yaml:"grid"`
	Capture     CaptureConfig `yaml:"capture"`
	Storage     StorageConfig `yaml:"storage"`
	Adapter     AdapterConfig `yaml:"adapter"`
	Mode        string        `yaml:"mode"`
	Interactive bool          `yaml:"interactive"`
	LogLevel    string        `yaml:"log_level"`
}

// ServerConfig describes the external process and its control channel.
type ServerConfig struct {
	Path            string            `yaml:"path"`
	Args            []string          `yaml:"args,omitempty"`
	Dir             string            `yaml:"dir,omitempty"`
	Env             map[string]string `yaml:"env,omitempty"`
	CommandPrefix   *string           `yaml:"command_prefix,omitempty"`
	ReadyPattern    string            `yaml:"ready_pattern,omitempty"`
	ShutdownCommand string            `yaml:"shutdown_command,omitempty"`
	ShutdownTimeout Duration          `yaml:"shutdown_timeout,omitempty"`
}

// Prefix returns the configured command prefix. An explicit empty string
// is honored; an absent key yields DefaultCommandPrefix.
func (s ServerConfig) Prefix() string {
	if s.CommandPrefix == nil {
		return DefaultCommandPrefix
	}
	return *s.CommandPrefix
}

// GridConfig holds grid geometry.
type GridConfig struct {
	TileWidth  int `yaml:"tile_width"`
	TileHeight int `yaml:"tile_height"`
	Rows       int `yaml:"rows"`
	Cols       int `yaml:"cols"`
	OriginX    int `yaml:"origin_x"`
	OriginY    int `yaml:"origin_y"`
}

// Types converts to the pipeline's grid configuration.
func (g GridConfig) Types() types.GridConfig {
	return types.GridConfig{
		TileWidth:  g.TileWidth,
		TileHeight: g.TileHeight,
		Rows:       g.Rows,
		Cols:       g.Cols,
		OriginX:    g.OriginX,
		OriginY:    g.OriginY,
	}
}

// CaptureConfig selects the capture source. File wins over Command.
type CaptureConfig struct {
	Command []string `yaml:"command,omitempty"`
	File    string   `yaml:"file,omitempty"`
	Timeout Duration `yaml:"timeout,omitempty"`
}

// StorageConfig holds storage defaults from the config file.
type StorageConfig struct {
	Backend        string `yaml:"backend"`
	Path           string `yaml:"path"`
	Region         string `yaml:"region"`
	Endpoint       string `yaml:"endpoint"`
	S3PathStyle    bool   `yaml:"s3_path_style"`
	RawPrefix      string `yaml:"raw_prefix"`
	CroppedPrefix  string `yaml:"cropped_prefix"`
	ManifestPrefix string `yaml:"manifest_prefix"`
}

// AdapterConfig holds adapter defaults from the config file.
type AdapterConfig struct {
	Type    string            `yaml:"type"`
	URL     string            `yaml:"url"`
	Channel string            `yaml:"channel,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty"`
	Timeout Duration          `yaml:"timeout,omitempty"`
	Retries *int              `yaml:"retries,omitempty"`
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

// Default returns a Config populated with the built-in defaults.
func Default() *Config {
	return &Config{
		Grid: GridConfig{
			TileWidth:  DefaultTileSize,
			TileHeight: DefaultTileSize,
			Rows:       DefaultRows,
			Cols:       DefaultCols,
			OriginX:    DefaultOriginX,
			OriginY:    DefaultOriginY,
		},
		Storage: StorageConfig{
			Backend: "fs",
			Path:    DefaultStoragePath,
		},
		Mode:     DefaultMode,
		LogLevel: DefaultLogLevel,
	}
}

// Validate reports every configuration problem at once.
// The server path is not checked here; `run` may supply it by flag.
func (c *Config) Validate() error {
	var errs []error

	if err := c.Grid.Types().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("grid: %w", err))
	}

	switch c.Mode {
	case "", "continuous", "once":
	default:
		errs = append(errs, fmt.Errorf("mode must be continuous or once, got %q", c.Mode))
	}

	switch c.Storage.Backend {
	case "", "fs", "s3":
	default:
		errs = append(errs, fmt.Errorf("storage.backend must be fs or s3, got %q", c.Storage.Backend))
	}

	if c.Server.ReadyPattern != "" {
		if _, err := regexp.Compile(c.Server.ReadyPattern); err != nil {
			errs = append(errs, fmt.Errorf("server.ready_pattern: %w", err))
		}
	}

	switch c.Adapter.Type {
	case "":
	case "webhook", "redis":
		if c.Adapter.URL == "" {
			errs = append(errs, fmt.Errorf("adapter.url is required for %s adapter", c.Adapter.Type))
		}
	default:
		errs = append(errs, fmt.Errorf("adapter.type must be webhook or redis, got %q", c.Adapter.Type))
	}
	if c.Adapter.Retries != nil && *c.Adapter.Retries < 0 {
		errs = append(errs, errors.New("adapter.retries must be >= 0"))
	}

	return errors.Join(errs...)
}
