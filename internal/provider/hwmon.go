package provider

import (
	"context"
	"fmt"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/spf13/afero"

	"tempagent/internal/hardware"
	"tempagent/internal/logger"
)

// hwmonInput matches the input files read from a chip directory:
// temperatures in millidegrees, fans in RPM and voltages in millivolts.
var hwmonInput = regexp.MustCompile(`^(temp|fan|in)([0-9]+)_input$`)

// Hwmon reads Linux hwmon chips, one node per /sys/class/hwmon/hwmonN.
type Hwmon struct {
	fs   afero.Fs
	root string

	mu         sync.Mutex
	categories hardware.Categories
	opened     bool
}

// NewHwmon creates an hwmon provider reading root on fs. A nil fs means the
// operating system filesystem.
func NewHwmon(fs afero.Fs, root string) *Hwmon {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if root == "" {
		root = "/sys/class/hwmon"
	}
	return &Hwmon{fs: fs, root: root}
}

// Name implements hardware.Provider.
func (h *Hwmon) Name() string { return "hwmon" }

// Open checks that the hwmon class directory is readable.
func (h *Hwmon) Open(_ context.Context, cats hardware.Categories) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, err := afero.ReadDir(h.fs, h.root); err != nil {
		return fmt.Errorf("failed to read hwmon directory %s: %w", h.root, err)
	}
	h.categories = cats
	h.opened = true

	log := logger.WithComponent("hwmon-provider")
	log.Info().Str("root", h.root).Strs("categories", cats.Names()).Msg("hwmon provider opened")
	return nil
}

// Hardware rescans every chip. Unreadable inputs (drivers commonly return
// EIO for sleeping devices) are reported as sensors without a value.
func (h *Hwmon) Hardware(ctx context.Context) ([]hardware.Node, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.opened {
		return nil, ErrNotOpen
	}

	entries, err := afero.ReadDir(h.fs, h.root)
	if err != nil {
		return nil, fmt.Errorf("failed to read hwmon directory %s: %w", h.root, err)
	}

	var nodes []hardware.Node
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !strings.HasPrefix(e.Name(), "hwmon") {
			continue
		}
		n, ok := h.readChip(path.Join(h.root, e.Name()))
		if ok {
			nodes = append(nodes, n)
		}
	}
	return hardware.Filter(nodes, h.categories), nil
}

// Close implements hardware.Provider.
func (h *Hwmon) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.opened = false
	return nil
}

type hwmonSensor struct {
	class string
	index int
	s     hardware.Sensor
}

var hwmonClassOrder = map[string]int{"temp": 0, "fan": 1, "in": 2}

func (h *Hwmon) readChip(dir string) (hardware.Node, bool) {
	chip, err := h.readString(path.Join(dir, "name"))
	if err != nil {
		return hardware.Node{}, false
	}

	files, err := afero.ReadDir(h.fs, dir)
	if err != nil {
		return hardware.Node{}, false
	}

	var found []hwmonSensor
	for _, f := range files {
		m := hwmonInput.FindStringSubmatch(f.Name())
		if m == nil {
			continue
		}
		class := m[1]
		index, _ := strconv.Atoi(m[2])
		found = append(found, hwmonSensor{
			class: class,
			index: index,
			s:     h.readSensor(dir, chip, class, m[1]+m[2]),
		})
	}

	sort.Slice(found, func(i, j int) bool {
		if found[i].class != found[j].class {
			return hwmonClassOrder[found[i].class] < hwmonClassOrder[found[j].class]
		}
		return found[i].index < found[j].index
	})

	n := hardware.Node{Name: chip, Kind: chipKind(chip)}
	for _, f := range found {
		n.Sensors = append(n.Sensors, f.s)
	}
	return n, true
}

func (h *Hwmon) readSensor(dir, chip, class, base string) hardware.Sensor {
	label, err := h.readString(path.Join(dir, base+"_label"))
	if err != nil || label == "" {
		label = base
	}

	s := hardware.Sensor{Name: label}
	var scale float64
	switch class {
	case "temp":
		s.Type = hardware.SensorTemperature
		s.Name = lhmSensorName(chip, label)
		scale = 1000
	case "fan":
		s.Type = hardware.SensorFan
		scale = 1
	case "in":
		s.Type = hardware.SensorVoltage
		scale = 1000
	}

	raw, err := h.readString(path.Join(dir, base+"_input"))
	if err != nil {
		return s
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return s
	}
	s.Value = hardware.Float32(float32(float64(v) / scale))
	return s
}

func (h *Hwmon) readString(name string) (string, error) {
	data, err := afero.ReadFile(h.fs, name)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
