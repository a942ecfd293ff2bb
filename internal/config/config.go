// Package config loads mergepdf settings from an optional YAML file and MERGEPDF_* environment
// variables. Environment values win over the file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/gardar/mergepdf/pkg/canvas"
)

const (
	DefaultDPI      = 72
	DefaultWorkers  = 2
	DefaultEngine   = "tesseract"
	DefaultOutput   = "pdf"
	DefaultBinary   = "tesseract"
	DefaultLanguage = "eng"
	DefaultTimeout  = 2 * time.Minute
)

// Engines lists the accepted ocr.engine values.
var Engines = []string{"tesseract", "gosseract", "documentai", "none"}

type Config struct {
	DPI        int       `yaml:"dpi"`
	KeepFiles  bool      `yaml:"keep_files"`
	ScratchDir string    `yaml:"scratch_dir"`
	Workers    int       `yaml:"workers"`
	LogLevel   string    `yaml:"log_level"`
	OCR        OCRConfig `yaml:"ocr"`
}

type OCRConfig struct {
	Engine     string        `yaml:"engine"`
	Output     string        `yaml:"output"`
	Binary     string        `yaml:"binary"`
	Language   string        `yaml:"language"`
	Timeout    time.Duration `yaml:"timeout"`
	DebugLayer bool          `yaml:"debug_layer"`

	// Variables are Tesseract parameters such as preserve_interword_spaces, passed to both
	// Tesseract engines.
	Variables  map[string]string `yaml:"variables"`
	DocumentAI DocumentAIConfig  `yaml:"documentai"`
}

type DocumentAIConfig struct {
	ProjectID       string `yaml:"project_id"`
	Location        string `yaml:"location"`
	ProcessorID     string `yaml:"processor_id"`
	CredentialsFile string `yaml:"credentials_file"`
	DebugDir        string `yaml:"debug_dir"`
}

// Default returns the configuration used when no file or environment is given.
func Default() *Config {
	return &Config{
		DPI:      DefaultDPI,
		Workers:  DefaultWorkers,
		LogLevel: "info",
		OCR: OCRConfig{
			Engine:   DefaultEngine,
			Output:   DefaultOutput,
			Binary:   DefaultBinary,
			Language: DefaultLanguage,
			Timeout:  DefaultTimeout,
		},
	}
}

// GetEnv returns the value of key, or fallback when it is unset.
func GetEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// Load reads path (skipped when empty) over the defaults, applies environment overrides and
// validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	var err error
	if v := GetEnv("MERGEPDF_DPI", ""); v != "" {
		if c.DPI, err = strconv.Atoi(v); err != nil {
			return fmt.Errorf("MERGEPDF_DPI: %w", err)
		}
	}
	if v := GetEnv("MERGEPDF_WORKERS", ""); v != "" {
		if c.Workers, err = strconv.Atoi(v); err != nil {
			return fmt.Errorf("MERGEPDF_WORKERS: %w", err)
		}
	}
	if v := GetEnv("MERGEPDF_KEEP_FILES", ""); v != "" {
		c.KeepFiles = truthy(v)
	}
	c.ScratchDir = GetEnv("MERGEPDF_SCRATCH_DIR", c.ScratchDir)
	c.LogLevel = GetEnv("MERGEPDF_LOG_LEVEL", c.LogLevel)
	c.OCR.Engine = GetEnv("MERGEPDF_OCR_ENGINE", c.OCR.Engine)
	c.OCR.Output = GetEnv("MERGEPDF_OCR_OUTPUT", c.OCR.Output)
	return nil
}

func truthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if _, err := canvas.New(c.DPI); err != nil {
		return err
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	known := false
	for _, e := range Engines {
		if c.OCR.Engine == e {
			known = true
		}
	}
	if !known {
		return fmt.Errorf("unknown ocr engine %q (want one of %s)", c.OCR.Engine, strings.Join(Engines, ", "))
	}
	if c.OCR.Output != "pdf" && c.OCR.Output != "hocr" {
		return fmt.Errorf("unknown ocr output %q (want pdf or hocr)", c.OCR.Output)
	}
	if c.OCR.Timeout <= 0 {
		return errors.New("ocr timeout must be positive")
	}
	if c.OCR.Engine == "documentai" {
		d := c.OCR.DocumentAI
		if d.ProjectID == "" || d.Location == "" || d.ProcessorID == "" {
			return errors.New("documentai engine needs project_id, location and processor_id")
		}
	}
	return nil
}

// Level maps log_level onto a slog level.
func (c *Config) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("log_level: %w", err)
	}
	return l, nil
}
