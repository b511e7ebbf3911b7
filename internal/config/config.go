package config

import (
	"os"
	"path/filepath"

	"github.com/spf13/pflag"
)

// Defaults for the recognized options. Style values are validated later by
// the watermark package; the defaults here are always valid.
const (
	DefaultFontSize = 24
	DefaultColor    = "white"
	DefaultPosition = "bottom-right"
	DefaultOpacity  = 0.8
	DefaultLogFile  = "watermark.log"
	DefaultLogLevel = "info"
)

type Config struct {
	InputDir  string
	OutputDir string
	FontSize  int
	Color     string
	Position  string
	Opacity   float64
	FontPath  string
	LogFile   string
	LogLevel  string
}

// Load parses command-line arguments into a Config. An empty InputDir
// means none was given and the caller should fall back to the interactive
// prompt sequence. FONT_PATH and LOG_LEVEL environment variables supply
// defaults for their flags.
func Load(args []string) (*Config, error) {
	cfg := &Config{}
	fs := pflag.NewFlagSet("watermark", pflag.ContinueOnError)
	fs.StringVarP(&cfg.InputDir, "input", "i", "", "input image directory")
	fs.StringVarP(&cfg.OutputDir, "output", "o", "", "output directory (default: {input}_watermark)")
	fs.IntVarP(&cfg.FontSize, "font-size", "s", DefaultFontSize, "watermark font size in points (8-200)")
	fs.StringVarP(&cfg.Color, "color", "c", DefaultColor, "watermark color: name, #RRGGBB or rgb(r,g,b)")
	fs.StringVarP(&cfg.Position, "position", "p", DefaultPosition, "watermark position anchor")
	fs.Float64Var(&cfg.Opacity, "opacity", DefaultOpacity, "watermark opacity (0.0-1.0)")
	fs.StringVar(&cfg.FontPath, "font", envOr("FONT_PATH", ""), "path to a .ttf font file (default: embedded Go Regular)")
	fs.StringVar(&cfg.LogFile, "log-file", DefaultLogFile, "log file path")
	fs.StringVar(&cfg.LogLevel, "log-level", envOr("LOG_LEVEL", DefaultLogLevel), "log level: debug, info, warn or error")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ResolvedOutputDir returns the configured output directory, deriving the
// default "{input}_watermark" sibling path when none was set.
func (c *Config) ResolvedOutputDir() string {
	if c.OutputDir != "" {
		return c.OutputDir
	}
	return DeriveOutputDir(c.InputDir)
}

// DeriveOutputDir builds the default output directory path next to the
// input directory.
func DeriveOutputDir(inputDir string) string {
	return filepath.Clean(inputDir) + "_watermark"
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
