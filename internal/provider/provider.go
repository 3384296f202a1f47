// Package provider implements hardware.Provider on top of the sensor sources
// the agent can read: the LibreHardwareMonitor helper process, the
// LibreHardwareMonitor WMI namespace, Linux hwmon and gopsutil.
package provider

import (
	"errors"
	"fmt"

	"tempagent/internal/config"
	"tempagent/internal/hardware"
)

var (
	// ErrNotOpen is returned by Hardware before Open or after Close.
	ErrNotOpen = errors.New("provider is not open")

	// ErrUnsupported is returned by Open when the provider cannot run on
	// this platform.
	ErrUnsupported = errors.New("provider is not supported on this platform")
)

// New creates the provider selected by cfg.Provider.Type.
func New(cfg *config.Config) (hardware.Provider, error) {
	pc := cfg.Provider
	switch t := cfg.ResolveProviderType(); t {
	case config.ProviderLHM:
		return NewLHM(pc.HelperPath, pc.RequestTimeout), nil
	case config.ProviderWMI:
		return NewWMI(pc.WMINamespace), nil
	case config.ProviderHwmon:
		return NewHwmon(nil, pc.HwmonRoot), nil
	case config.ProviderGopsutil:
		return NewGopsutil(), nil
	default:
		return nil, fmt.Errorf("unknown provider type %q", t)
	}
}
