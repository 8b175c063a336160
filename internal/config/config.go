package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"tracecap/internal/capture"
	"tracecap/internal/parser"
	"tracecap/internal/printer"
)

// MaxCount is the largest bounded frame count accepted.
const MaxCount = 255

// CaptureConfig holds the capture source settings.
type CaptureConfig struct {
	Device      string `yaml:"device"`
	SnapLen     int    `yaml:"snap_len"`
	Promiscuous bool   `yaml:"promiscuous"`
	ReadTimeout string `yaml:"read_timeout"`
	Count       int    `yaml:"count"`
}

// DissectConfig bounds the dissection pipeline.
type DissectConfig struct {
	MaxDepth    int `yaml:"max_depth"`
	MaxVLANTags int `yaml:"max_vlan_tags"`
}

// OutputConfig controls the text printer.
type OutputConfig struct {
	Indent  int  `yaml:"indent"`
	HexDump bool `yaml:"hex_dump"`
}

// LiveViewConfig enables the WebSocket live view when Listen is set.
type LiveViewConfig struct {
	Listen string `yaml:"listen"`
}

// NATSConfig enables publication of decoded frames when URL is set.
type NATSConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

// Config is the top-level configuration struct for the entire application.
type Config struct {
	Capture  CaptureConfig  `yaml:"capture"`
	Dissect  DissectConfig  `yaml:"dissect"`
	Output   OutputConfig   `yaml:"output"`
	LiveView LiveViewConfig `yaml:"live_view"`
	NATS     NATSConfig     `yaml:"nats"`
}

// Default returns the built-in configuration.
func Default() *Config {
	opts := capture.DefaultOptions()
	return &Config{
		Capture: CaptureConfig{
			SnapLen:     opts.SnapLen,
			Promiscuous: opts.Promiscuous,
			ReadTimeout: opts.ReadTimeout.String(),
		},
		Dissect: DissectConfig{
			MaxDepth:    parser.DefaultMaxDepth,
			MaxVLANTags: parser.DefaultMaxVLANTags,
		},
		Output: OutputConfig{Indent: printer.DefaultIndent},
		NATS:   NATSConfig{Subject: "tracecap.frames"},
	}
}

// LoadConfig reads the configuration from a YAML file. Keys missing from the
// file keep their default values.
func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config YAML: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", filePath, err)
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	var errs []error
	if c.Capture.SnapLen <= 0 {
		errs = append(errs, fmt.Errorf("capture.snap_len must be positive, got %d", c.Capture.SnapLen))
	}
	if _, err := c.ReadTimeout(); err != nil {
		errs = append(errs, err)
	}
	if c.Capture.Count < 0 || c.Capture.Count > MaxCount {
		errs = append(errs, fmt.Errorf("capture.count must be between 0 and %d, got %d", MaxCount, c.Capture.Count))
	}
	if c.Dissect.MaxDepth <= 0 {
		errs = append(errs, fmt.Errorf("dissect.max_depth must be positive, got %d", c.Dissect.MaxDepth))
	}
	if c.Dissect.MaxVLANTags < 0 {
		errs = append(errs, fmt.Errorf("dissect.max_vlan_tags must not be negative, got %d", c.Dissect.MaxVLANTags))
	}
	if c.Output.Indent < 0 {
		errs = append(errs, fmt.Errorf("output.indent must not be negative, got %d", c.Output.Indent))
	}
	if c.NATS.URL != "" && c.NATS.Subject == "" {
		errs = append(errs, errors.New("nats.subject is required when nats.url is set"))
	}
	return errors.Join(errs...)
}

// ReadTimeout parses Capture.ReadTimeout.
func (c *Config) ReadTimeout() (time.Duration, error) {
	d, err := time.ParseDuration(c.Capture.ReadTimeout)
	if err != nil {
		return 0, fmt.Errorf("capture.read_timeout: %w", err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("capture.read_timeout must be positive, got %s", d)
	}
	return d, nil
}

// CaptureOptions returns the options for capture.OpenLive.
func (c *Config) CaptureOptions() (capture.Options, error) {
	timeout, err := c.ReadTimeout()
	if err != nil {
		return capture.Options{}, err
	}
	return capture.Options{
		SnapLen:     c.Capture.SnapLen,
		Promiscuous: c.Capture.Promiscuous,
		ReadTimeout: timeout,
	}, nil
}
