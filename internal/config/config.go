// Package config provides configuration management for TempAgent.
package config

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"tempagent/internal/hardware"
)

// Provider types accepted in Provider.Type.
const (
	ProviderAuto     = "auto"
	ProviderLHM      = "lhm"
	ProviderWMI      = "wmi"
	ProviderHwmon    = "hwmon"
	ProviderGopsutil = "gopsutil"
)

// DefaultInterval is the sampling period.
const DefaultInterval = 60 * time.Second

// Config is the root configuration structure (TempAgent.json).
type Config struct {
	Provider        ProviderConfig `json:"Provider"`
	Hardware        HardwareConfig `json:"Hardware"`
	TemperatureFile string         `json:"TemperatureFile"`
	Interval        time.Duration  `json:"Interval"`
	AsyncWrites     bool           `json:"AsyncWrites"`
}

// ProviderConfig selects and tunes the sensor provider.
type ProviderConfig struct {
	Type           string        `json:"Type"`
	HelperPath     string        `json:"HelperPath"`     // lhm: empty means search the usual locations
	RequestTimeout time.Duration `json:"RequestTimeout"` // lhm
	WMINamespace   string        `json:"WMINamespace"`   // wmi
	HwmonRoot      string        `json:"HwmonRoot"`      // hwmon
}

// HardwareConfig enables hardware categories for enumeration.
type HardwareConfig struct {
	CPU         bool `json:"CPU"`
	GPU         bool `json:"GPU"`
	Memory      bool `json:"Memory"`
	Motherboard bool `json:"Motherboard"`
	Controller  bool `json:"Controller"`
	Network     bool `json:"Network"`
	Storage     bool `json:"Storage"`
}

// Categories converts the hardware switches for the provider.
func (h HardwareConfig) Categories() hardware.Categories {
	return hardware.Categories{
		CPU:         h.CPU,
		GPU:         h.GPU,
		Memory:      h.Memory,
		Motherboard: h.Motherboard,
		Controller:  h.Controller,
		Network:     h.Network,
		Storage:     h.Storage,
	}
}

// DefaultTemperatureFile returns the platform's well-known output path.
func DefaultTemperatureFile() string {
	if runtime.GOOS == "windows" {
		return `C:\OpenHardwareMonitor\temperature.txt`
	}
	return "/var/lib/tempagent/temperature.txt"
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Provider: ProviderConfig{
			Type:           ProviderAuto,
			RequestTimeout: 10 * time.Second,
			WMINamespace:   `root\LibreHardwareMonitor`,
			HwmonRoot:      "/sys/class/hwmon",
		},
		Hardware: HardwareConfig{
			CPU:         true,
			GPU:         true,
			Memory:      true,
			Motherboard: true,
			Controller:  true,
			Network:     true,
			Storage:     true,
		},
		TemperatureFile: DefaultTemperatureFile(),
		Interval:        DefaultInterval,
	}
}

// ResolveProviderType maps "auto" to the platform default provider.
func (c *Config) ResolveProviderType() string {
	t := strings.ToLower(c.Provider.Type)
	if t == "" || t == ProviderAuto {
		if runtime.GOOS == "windows" {
			return ProviderLHM
		}
		return ProviderHwmon
	}
	return t
}

// Validate checks the configuration for values the agent cannot run with.
func (c *Config) Validate() error {
	switch c.ResolveProviderType() {
	case ProviderLHM, ProviderWMI, ProviderHwmon, ProviderGopsutil:
	default:
		return fmt.Errorf("unknown provider type %q", c.Provider.Type)
	}
	if c.Hardware.Categories() == (hardware.Categories{}) {
		return fmt.Errorf("at least one Hardware category must be enabled")
	}
	if c.TemperatureFile == "" {
		return fmt.Errorf("TemperatureFile must not be empty")
	}
	if c.Interval <= 0 {
		return fmt.Errorf("Interval must be positive, got %v", c.Interval)
	}
	if c.Provider.RequestTimeout <= 0 {
		return fmt.Errorf("Provider.RequestTimeout must be positive, got %v", c.Provider.RequestTimeout)
	}
	return nil
}
