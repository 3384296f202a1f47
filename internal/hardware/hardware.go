// Package hardware models the hardware topology exposed by a sensor provider.
package hardware

import (
	"context"
	"strings"
)

// Kind classifies a hardware node. It is informational only; sensor
// selection never looks at it.
type Kind int

const (
	KindOther Kind = iota
	KindCPU
	KindGPU
	KindMemory
	KindMotherboard
	KindSuperIO
	KindController
	KindNetwork
	KindStorage
)

var kindNames = map[Kind]string{
	KindOther:       "other",
	KindCPU:         "cpu",
	KindGPU:         "gpu",
	KindMemory:      "memory",
	KindMotherboard: "motherboard",
	KindSuperIO:     "superio",
	KindController:  "controller",
	KindNetwork:     "network",
	KindStorage:     "storage",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "other"
}

// ParseKind maps a provider hardware type string onto a Kind.
// LibreHardwareMonitor type names (e.g. "Cpu", "GpuNvidia", "SuperIO",
// "EmbeddedController", "Storage") are recognized case-insensitively.
func ParseKind(s string) Kind {
	t := strings.ToLower(strings.TrimSpace(s))
	switch {
	case t == "cpu":
		return KindCPU
	case strings.HasPrefix(t, "gpu"):
		return KindGPU
	case t == "memory":
		return KindMemory
	case t == "motherboard":
		return KindMotherboard
	case t == "superio":
		return KindSuperIO
	case strings.HasSuffix(t, "controller") || t == "cooler" || t == "psu" || t == "battery":
		return KindController
	case t == "network":
		return KindNetwork
	case t == "storage" || t == "hdd":
		return KindStorage
	}
	return KindOther
}

// SensorType is the measured quantity of a sensor.
type SensorType int

const (
	SensorOther SensorType = iota
	SensorTemperature
	SensorLoad
	SensorClock
	SensorVoltage
	SensorFan
	SensorPower
)

var sensorTypeNames = map[SensorType]string{
	SensorOther:       "Other",
	SensorTemperature: "Temperature",
	SensorLoad:        "Load",
	SensorClock:       "Clock",
	SensorVoltage:     "Voltage",
	SensorFan:         "Fan",
	SensorPower:       "Power",
}

func (t SensorType) String() string {
	if s, ok := sensorTypeNames[t]; ok {
		return s
	}
	return "Other"
}

// ParseSensorType maps a provider sensor type string onto a SensorType.
func ParseSensorType(s string) SensorType {
	for t, name := range sensorTypeNames {
		if strings.EqualFold(strings.TrimSpace(s), name) {
			return t
		}
	}
	return SensorOther
}

// Sensor is a single reading point of a hardware node.
// Value is nil when the provider has no current reading.
type Sensor struct {
	Name  string
	Type  SensorType
	Value *float32
}

// Node is one hardware component in the topology.
type Node struct {
	Name        string
	Kind        Kind
	Sensors     []Sensor
	SubHardware []Node
}

// Categories selects which hardware groups a provider enumerates.
type Categories struct {
	CPU         bool
	GPU         bool
	Memory      bool
	Motherboard bool
	Controller  bool
	Network     bool
	Storage     bool
}

// AllCategories enables every hardware group.
func AllCategories() Categories {
	return Categories{
		CPU:         true,
		GPU:         true,
		Memory:      true,
		Motherboard: true,
		Controller:  true,
		Network:     true,
		Storage:     true,
	}
}

// Includes reports whether nodes of kind k are enabled. SuperIO chips hang
// off the motherboard and follow it; unclassified nodes are always kept.
func (c Categories) Includes(k Kind) bool {
	switch k {
	case KindCPU:
		return c.CPU
	case KindGPU:
		return c.GPU
	case KindMemory:
		return c.Memory
	case KindMotherboard, KindSuperIO:
		return c.Motherboard
	case KindController:
		return c.Controller
	case KindNetwork:
		return c.Network
	case KindStorage:
		return c.Storage
	}
	return true
}

// Names returns the enabled categories in a fixed order, lowercase.
func (c Categories) Names() []string {
	var names []string
	add := func(on bool, name string) {
		if on {
			names = append(names, name)
		}
	}
	add(c.CPU, "cpu")
	add(c.GPU, "gpu")
	add(c.Memory, "memory")
	add(c.Motherboard, "motherboard")
	add(c.Controller, "controller")
	add(c.Network, "network")
	add(c.Storage, "storage")
	return names
}

// Provider supplies the hardware topology.
//
// Open is called once before any Hardware call and Close once after the
// last. Hardware returns a fresh snapshot of the root nodes; callers must not
// cache it across samples. Close must not be called while a Hardware call is
// in progress.
type Provider interface {
	Name() string
	Open(ctx context.Context, categories Categories) error
	Hardware(ctx context.Context) ([]Node, error)
	Close() error
}

// Float32 returns a pointer to v, for building sensors with a value.
func Float32(v float32) *float32 {
	return &v
}
