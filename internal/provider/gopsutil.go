package provider

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/shirou/gopsutil/v3/host"

	"tempagent/internal/hardware"
	"tempagent/internal/logger"
)

// temperatureFunc matches host.SensorsTemperaturesWithContext.
type temperatureFunc func(ctx context.Context) ([]host.TemperatureStat, error)

// Gopsutil reads temperatures through gopsutil. It only reports temperature
// sensors and is the portable fallback when neither LibreHardwareMonitor nor
// hwmon is usable.
type Gopsutil struct {
	read temperatureFunc

	mu         sync.Mutex
	categories hardware.Categories
	opened     bool
}

// NewGopsutil creates a gopsutil provider.
func NewGopsutil() *Gopsutil {
	return &Gopsutil{read: host.SensorsTemperaturesWithContext}
}

// Name implements hardware.Provider.
func (g *Gopsutil) Name() string { return "gopsutil" }

// Open performs one read so an unusable source fails at startup.
func (g *Gopsutil) Open(ctx context.Context, cats hardware.Categories) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	stats, err := g.read(ctx)
	if err != nil && len(stats) == 0 {
		return fmt.Errorf("failed to read temperatures: %w", err)
	}
	g.categories = cats
	g.opened = true

	log := logger.WithComponent("gopsutil-provider")
	log.Info().Int("sensors", len(stats)).Msg("gopsutil provider opened")
	return nil
}

// Hardware groups the readings into one node per chip. gopsutil reports
// per-sensor failures as warnings next to partial results; those are logged
// and the partial results kept.
func (g *Gopsutil) Hardware(ctx context.Context) ([]hardware.Node, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.opened {
		return nil, ErrNotOpen
	}

	stats, err := g.read(ctx)
	if err != nil {
		if len(stats) == 0 {
			return nil, fmt.Errorf("failed to read temperatures: %w", err)
		}
		log := logger.WithComponent("gopsutil-provider")
		log.Debug().Err(err).Msg("Partial temperature read")
	}
	return hardware.Filter(groupTemperatures(stats), g.categories), nil
}

// Close implements hardware.Provider.
func (g *Gopsutil) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.opened = false
	return nil
}

// groupTemperatures splits sensor keys of the form "<chip>_<label>" and
// builds one node per chip in first-seen order. Keys without a chip prefix
// (Windows thermal zones) form a node of their own.
func groupTemperatures(stats []host.TemperatureStat) []hardware.Node {
	var nodes []hardware.Node
	index := make(map[string]int)

	for _, st := range stats {
		chip, label := st.SensorKey, st.SensorKey
		if i := strings.Index(st.SensorKey, "_"); i > 0 {
			chip, label = st.SensorKey[:i], st.SensorKey[i+1:]
		}
		label = strings.TrimSuffix(label, "_input")

		i, ok := index[chip]
		if !ok {
			i = len(nodes)
			index[chip] = i
			nodes = append(nodes, hardware.Node{Name: chip, Kind: chipKind(chip)})
		}
		nodes[i].Sensors = append(nodes[i].Sensors, hardware.Sensor{
			Name:  lhmSensorName(chip, label),
			Type:  hardware.SensorTemperature,
			Value: hardware.Float32(float32(st.Temperature)),
		})
	}
	return nodes
}
