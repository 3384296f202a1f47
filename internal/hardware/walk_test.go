package hardware

import (
	"errors"
	"strings"
	"testing"
)

func twoRootTopology() []Node {
	return []Node{
		{
			Name:    "node1",
			Kind:    KindCPU,
			Sensors: []Sensor{{Name: "node1.sensor", Type: SensorTemperature}},
			SubHardware: []Node{
				{Name: "node1.sub", Sensors: []Sensor{{Name: "node1.sub.sensor", Type: SensorTemperature}}},
			},
		},
		{
			Name:    "node2",
			Kind:    KindMotherboard,
			Sensors: []Sensor{{Name: "node2.sensor", Type: SensorVoltage}},
			SubHardware: []Node{
				{Name: "node2.sub", Kind: KindSuperIO, Sensors: []Sensor{{Name: "node2.sub.sensor", Type: SensorFan}}},
			},
		},
	}
}

func TestWalk_PreOrder(t *testing.T) {
	var visited []string
	err := Walk(twoRootTopology(), func(s Sensor) error {
		visited = append(visited, s.Name)
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"node1.sensor", "node1.sub.sensor", "node2.sensor", "node2.sub.sensor"}
	if len(visited) != len(want) {
		t.Fatalf("expected %d callbacks, got %d: %v", len(want), len(visited), visited)
	}
	for i := range want {
		if visited[i] != want[i] {
			t.Errorf("visit %d: expected %q, got %q", i, want[i], visited[i])
		}
	}
}

func TestWalk_OwnSensorsBeforeSubHardware(t *testing.T) {
	roots := []Node{{
		Name: "cpu",
		Sensors: []Sensor{
			{Name: "a"},
			{Name: "b"},
		},
		SubHardware: []Node{
			{Name: "sub1", Sensors: []Sensor{{Name: "c"}}, SubHardware: []Node{{Sensors: []Sensor{{Name: "d"}}}}},
			{Name: "sub2", Sensors: []Sensor{{Name: "e"}}},
		},
	}}

	var got strings.Builder
	_ = Walk(roots, func(s Sensor) error {
		got.WriteString(s.Name)
		return nil
	})
	if got.String() != "abcde" {
		t.Errorf("expected order abcde, got %s", got.String())
	}
}

func TestWalk_EmptyTopology(t *testing.T) {
	calls := 0
	if err := Walk(nil, func(Sensor) error { calls++; return nil }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 0 {
		t.Errorf("expected no callbacks, got %d", calls)
	}
}

func TestWalk_CallbackErrorDoesNotAbort(t *testing.T) {
	boom := errors.New("boom")
	var visited []string
	err := Walk(twoRootTopology(), func(s Sensor) error {
		visited = append(visited, s.Name)
		if s.Name == "node1.sensor" {
			return boom
		}
		return nil
	})

	if len(visited) != 4 {
		t.Errorf("expected all 4 sensors visited, got %v", visited)
	}
	if !errors.Is(err, boom) {
		t.Fatalf("expected joined error to wrap boom, got %v", err)
	}
	if !strings.Contains(err.Error(), "node1.sensor") {
		t.Errorf("expected error to name the sensor, got %v", err)
	}
}

func TestWalk_CallbackPanicIsRecovered(t *testing.T) {
	var visited []string
	err := Walk(twoRootTopology(), func(s Sensor) error {
		visited = append(visited, s.Name)
		if s.Name == "node1.sub.sensor" {
			panic("sensor exploded")
		}
		return nil
	})

	if len(visited) != 4 {
		t.Errorf("expected traversal to continue after panic, got %v", visited)
	}
	if err == nil || !strings.Contains(err.Error(), "sensor exploded") {
		t.Errorf("expected panic to be reported as error, got %v", err)
	}
}

func TestFilter_DropsDisabledKinds(t *testing.T) {
	cats := AllCategories()
	cats.Motherboard = false

	filtered := Filter(twoRootTopology(), cats)
	if len(filtered) != 1 || filtered[0].Name != "node1" {
		t.Fatalf("expected only node1 to remain, got %+v", filtered)
	}
	if CountSensors(filtered) != 2 {
		t.Errorf("expected 2 sensors after filter, got %d", CountSensors(filtered))
	}
}

func TestFilter_DoesNotModifyInput(t *testing.T) {
	roots := twoRootTopology()
	cats := AllCategories()
	cats.Motherboard = false
	_ = Filter(roots, cats)
	if CountSensors(roots) != 4 {
		t.Errorf("input topology was modified")
	}
}

func TestCategories_Names(t *testing.T) {
	got := strings.Join(AllCategories().Names(), ",")
	want := "cpu,gpu,memory,motherboard,controller,network,storage"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
	if len((Categories{}).Names()) != 0 {
		t.Error("expected no names for empty categories")
	}
}

func TestParseKind(t *testing.T) {
	tests := []struct {
		in   string
		want Kind
	}{
		{"Cpu", KindCPU},
		{"GpuNvidia", KindGPU},
		{"GpuAmd", KindGPU},
		{"Memory", KindMemory},
		{"Motherboard", KindMotherboard},
		{"SuperIO", KindSuperIO},
		{"EmbeddedController", KindController},
		{"Cooler", KindController},
		{"Network", KindNetwork},
		{"Storage", KindStorage},
		{"Something", KindOther},
	}
	for _, tt := range tests {
		if got := ParseKind(tt.in); got != tt.want {
			t.Errorf("ParseKind(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseSensorType(t *testing.T) {
	if ParseSensorType("temperature") != SensorTemperature {
		t.Error("expected case-insensitive Temperature")
	}
	if ParseSensorType("Fan") != SensorFan {
		t.Error("expected Fan")
	}
	if ParseSensorType("Throughput") != SensorOther {
		t.Error("expected unknown type to map to Other")
	}
}
