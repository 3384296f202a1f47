package provider

import (
	"context"
	"fmt"
	"sync"

	"tempagent/internal/hardware"
	"tempagent/internal/logger"
)

// wmiHardware is a row of LibreHardwareMonitor's WMI Hardware class.
type wmiHardware struct {
	Name         string
	Identifier   string
	HardwareType string
	Parent       string
}

// wmiSensor is a row of LibreHardwareMonitor's WMI Sensor class.
type wmiSensor struct {
	Name       string
	Identifier string
	SensorType string
	Parent     string
	Value      float32
}

// wmiQueryFunc returns all Hardware and Sensor rows of a namespace.
type wmiQueryFunc func(namespace string) ([]wmiHardware, []wmiSensor, error)

// WMI reads the hardware tree that a running LibreHardwareMonitor instance
// publishes in its WMI namespace.
type WMI struct {
	namespace string
	query     wmiQueryFunc

	mu         sync.Mutex
	categories hardware.Categories
	opened     bool
}

// NewWMI creates a WMI provider for namespace, normally
// root\LibreHardwareMonitor.
func NewWMI(namespace string) *WMI {
	return &WMI{namespace: namespace, query: queryWMI}
}

// Name implements hardware.Provider.
func (w *WMI) Name() string { return "wmi" }

// Open queries the namespace once. It fails when LibreHardwareMonitor is not
// running or the platform has no WMI.
func (w *WMI) Open(_ context.Context, cats hardware.Categories) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	hw, _, err := w.query(w.namespace)
	if err != nil {
		return fmt.Errorf("failed to query WMI namespace %s: %w", w.namespace, err)
	}
	w.categories = cats
	w.opened = true

	log := logger.WithComponent("wmi-provider")
	log.Info().Str("namespace", w.namespace).Int("hardware", len(hw)).Msg("WMI provider opened")
	return nil
}

// Hardware queries both classes and rebuilds the tree.
func (w *WMI) Hardware(ctx context.Context) ([]hardware.Node, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.opened {
		return nil, ErrNotOpen
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	hw, sensors, err := w.query(w.namespace)
	if err != nil {
		return nil, fmt.Errorf("failed to query WMI namespace %s: %w", w.namespace, err)
	}
	return hardware.Filter(buildWMITree(hw, sensors), w.categories), nil
}

// Close implements hardware.Provider.
func (w *WMI) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.opened = false
	return nil
}

// buildWMITree links rows by Parent identifier. Hardware whose parent is not
// a known hardware identifier becomes a root. Row order is preserved at every
// level. Sensors of unknown hardware are dropped. Hardware caught in a parent
// cycle is appended as extra roots.
func buildWMITree(hw []wmiHardware, sensors []wmiSensor) []hardware.Node {
	known := make(map[string]bool, len(hw))
	for _, h := range hw {
		known[h.Identifier] = true
	}

	sensorsByParent := make(map[string][]hardware.Sensor)
	for _, s := range sensors {
		sensorsByParent[s.Parent] = append(sensorsByParent[s.Parent], hardware.Sensor{
			Name:  s.Name,
			Type:  hardware.ParseSensorType(s.SensorType),
			Value: hardware.Float32(s.Value),
		})
	}

	children := make(map[string][]wmiHardware)
	var roots []wmiHardware
	for _, h := range hw {
		if h.Parent != "" && h.Parent != h.Identifier && known[h.Parent] {
			children[h.Parent] = append(children[h.Parent], h)
		} else {
			roots = append(roots, h)
		}
	}

	visited := make(map[string]bool, len(hw))
	var build func(h wmiHardware) hardware.Node
	build = func(h wmiHardware) hardware.Node {
		visited[h.Identifier] = true
		n := hardware.Node{
			Name:    h.Name,
			Kind:    hardware.ParseKind(h.HardwareType),
			Sensors: sensorsByParent[h.Identifier],
		}
		for _, c := range children[h.Identifier] {
			if visited[c.Identifier] {
				continue
			}
			n.SubHardware = append(n.SubHardware, build(c))
		}
		return n
	}

	nodes := make([]hardware.Node, 0, len(roots))
	for _, r := range roots {
		nodes = append(nodes, build(r))
	}

	// Hardware in a parent cycle is unreachable from any root. The first
	// unvisited row of each cycle becomes a root.
	for _, h := range hw {
		if visited[h.Identifier] {
			continue
		}
		log := logger.WithComponent("wmi-provider")
		log.Warn().
			Str("identifier", h.Identifier).
			Str("parent", h.Parent).
			Msg("Hardware parent cycle, reporting as root")
		nodes = append(nodes, build(h))
	}
	return nodes
}
