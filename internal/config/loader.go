package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/tidwall/jsonc"

	"tempagent/internal/logger"
)

// rawConfig mirrors Config with duration strings and optional switches, so
// that absent keys keep their defaults.
type rawConfig struct {
	Provider        rawProviderConfig `json:"Provider"`
	Hardware        rawHardwareConfig `json:"Hardware"`
	TemperatureFile string            `json:"TemperatureFile"`
	Interval        string            `json:"Interval"`
	AsyncWrites     *bool             `json:"AsyncWrites"`
}

type rawProviderConfig struct {
	Type           string `json:"Type"`
	HelperPath     string `json:"HelperPath"`
	RequestTimeout string `json:"RequestTimeout"`
	WMINamespace   string `json:"WMINamespace"`
	HwmonRoot      string `json:"HwmonRoot"`
}

type rawHardwareConfig struct {
	CPU         *bool `json:"CPU"`
	GPU         *bool `json:"GPU"`
	Memory      *bool `json:"Memory"`
	Motherboard *bool `json:"Motherboard"`
	Controller  *bool `json:"Controller"`
	Network     *bool `json:"Network"`
	Storage     *bool `json:"Storage"`
}

type rawLoggingConfig struct {
	Level      string `json:"Level"`
	FilePath   string `json:"FilePath"`
	Format     string `json:"Format"`
	MaxSizeMB  int    `json:"MaxSizeMB"`
	MaxBackups int    `json:"MaxBackups"`
	MaxAgeDays int    `json:"MaxAgeDays"`
	Compress   *bool  `json:"Compress"`
	Console    *bool  `json:"Console"`
}

// Load reads configuration from the specified file path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses configuration from JSON bytes. Comments and trailing commas
// are allowed.
func Parse(data []byte) (*Config, error) {
	var raw rawConfig
	if err := json.Unmarshal(jsonc.ToJSON(data), &raw); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	cfg := DefaultConfig()
	if err := cfg.apply(&raw); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (c *Config) apply(raw *rawConfig) error {
	if raw.Provider.Type != "" {
		c.Provider.Type = raw.Provider.Type
	}
	if raw.Provider.HelperPath != "" {
		c.Provider.HelperPath = raw.Provider.HelperPath
	}
	if raw.Provider.WMINamespace != "" {
		c.Provider.WMINamespace = raw.Provider.WMINamespace
	}
	if raw.Provider.HwmonRoot != "" {
		c.Provider.HwmonRoot = raw.Provider.HwmonRoot
	}
	if err := parseDuration("Provider.RequestTimeout", raw.Provider.RequestTimeout, &c.Provider.RequestTimeout); err != nil {
		return err
	}

	setBool(&c.Hardware.CPU, raw.Hardware.CPU)
	setBool(&c.Hardware.GPU, raw.Hardware.GPU)
	setBool(&c.Hardware.Memory, raw.Hardware.Memory)
	setBool(&c.Hardware.Motherboard, raw.Hardware.Motherboard)
	setBool(&c.Hardware.Controller, raw.Hardware.Controller)
	setBool(&c.Hardware.Network, raw.Hardware.Network)
	setBool(&c.Hardware.Storage, raw.Hardware.Storage)

	if raw.TemperatureFile != "" {
		c.TemperatureFile = raw.TemperatureFile
	}
	if err := parseDuration("Interval", raw.Interval, &c.Interval); err != nil {
		return err
	}
	setBool(&c.AsyncWrites, raw.AsyncWrites)
	return nil
}

func parseDuration(name, s string, dst *time.Duration) error {
	if s == "" {
		return nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid %s duration: %w", name, err)
	}
	*dst = d
	return nil
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

// LoadLogging reads logging configuration from the specified file path.
func LoadLogging(path string) (*logger.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read logging config file: %w", err)
	}
	return ParseLogging(data)
}

// ParseLogging parses logging configuration from JSON bytes, filling absent
// keys from logger.DefaultConfig.
func ParseLogging(data []byte) (*logger.Config, error) {
	var raw rawLoggingConfig
	if err := json.Unmarshal(jsonc.ToJSON(data), &raw); err != nil {
		return nil, fmt.Errorf("failed to parse logging config JSON: %w", err)
	}

	lc := logger.DefaultConfig()
	if raw.Level != "" {
		lc.Level = raw.Level
	}
	if raw.FilePath != "" {
		lc.FilePath = raw.FilePath
	}
	if raw.Format != "" {
		lc.Format = raw.Format
	}
	if raw.MaxSizeMB != 0 {
		lc.MaxSizeMB = raw.MaxSizeMB
	}
	if raw.MaxBackups != 0 {
		lc.MaxBackups = raw.MaxBackups
	}
	if raw.MaxAgeDays != 0 {
		lc.MaxAgeDays = raw.MaxAgeDays
	}
	setBool(&lc.Compress, raw.Compress)
	setBool(&lc.Console, raw.Console)

	return &lc, nil
}

// LoadAll loads TempAgent.json and Logging.json. A missing logging file is
// not an error: logging falls back to its defaults.
func LoadAll(configPath, loggingPath string) (*Config, *logger.Config, error) {
	cfg, err := Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	lc, err := LoadLogging(loggingPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, nil, fmt.Errorf("failed to load logging config: %w", err)
		}
		def := logger.DefaultConfig()
		lc = &def
	}

	return cfg, lc, nil
}
