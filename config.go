package marginalia

import (
	"errors"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// ConfigFileName is the file ReadConfig looks for in a directory.
const ConfigFileName = "marginalia.toml"

// Config holds the settings shared by the commands.
type Config struct {
	Gap    float64      `toml:"gap"`
	Layout LayoutConfig `toml:"layout"`
	Log    LogConfig    `toml:"log"`
}

// LayoutConfig mirrors LayoutOptions.
type LayoutConfig struct {
	Columns      int     `toml:"columns"`
	LineHeight   float64 `toml:"line_height"`
	CharWidth    float64 `toml:"char_width"`
	ParagraphGap float64 `toml:"paragraph_gap"`
	Padding      float64 `toml:"padding"`
}

// LogConfig selects the log level ("debug", "info", "warn", "error").
type LogConfig struct {
	Level string `toml:"level"`
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() *Config {
	o := DefaultLayoutOptions()
	return &Config{
		Gap: DefaultGap,
		Layout: LayoutConfig{
			Columns:      o.Columns,
			LineHeight:   o.LineHeight,
			CharWidth:    o.CharWidth,
			ParagraphGap: o.ParagraphGap,
			Padding:      o.Padding,
		},
		Log: LogConfig{Level: "info"},
	}
}

// ReadConfig loads path over the defaults. A missing file yields the defaults.
func ReadConfig(path string) (*Config, error) {
	config := DefaultConfig()
	if path == "" {
		return config, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return config, nil
	}
	if err != nil {
		return DefaultConfig(), err
	}
	return ParseConfig(data)
}

// ParseConfig decodes TOML over the defaults and validates the result.
func ParseConfig(data []byte) (*Config, error) {
	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return DefaultConfig(), fmt.Errorf("parse config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return DefaultConfig(), err
	}
	return config, nil
}

// Validate rejects settings the resolver or layout cannot use.
func (c *Config) Validate() error {
	if c.Gap < 0 {
		return fmt.Errorf("%w: %v", ErrInvalidGap, c.Gap)
	}
	return c.LayoutOptions().Validate()
}

// LayoutOptions converts the layout section.
func (c *Config) LayoutOptions() LayoutOptions {
	return LayoutOptions{
		Columns:      c.Layout.Columns,
		LineHeight:   c.Layout.LineHeight,
		CharWidth:    c.Layout.CharWidth,
		ParagraphGap: c.Layout.ParagraphGap,
		Padding:      c.Layout.Padding,
	}
}

// Resolver builds a Resolver with the configured gap.
func (c *Config) Resolver(opts ...ResolverOption) (*Resolver, error) {
	return NewResolver(append([]ResolverOption{WithGap(c.Gap)}, opts...)...)
}
