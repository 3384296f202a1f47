package hardware

import (
	"errors"
	"fmt"
)

// SensorFunc is called for each sensor reached by Walk.
type SensorFunc func(Sensor) error

// Walk visits every sensor under roots depth-first in pre-order: a node's own
// sensors in order, then each of its sub-hardware nodes in order.
//
// A failing or panicking callback does not stop the walk. All failures are
// returned joined, each prefixed with the sensor name.
func Walk(roots []Node, fn SensorFunc) error {
	var errs []error
	for i := range roots {
		walkNode(&roots[i], fn, &errs)
	}
	return errors.Join(errs...)
}

func walkNode(n *Node, fn SensorFunc, errs *[]error) {
	for _, s := range n.Sensors {
		if err := visitSensor(s, fn); err != nil {
			*errs = append(*errs, err)
		}
	}
	for i := range n.SubHardware {
		walkNode(&n.SubHardware[i], fn, errs)
	}
}

func visitSensor(s Sensor, fn SensorFunc) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sensor %q: panic: %v", s.Name, r)
		}
	}()
	if err := fn(s); err != nil {
		return fmt.Errorf("sensor %q: %w", s.Name, err)
	}
	return nil
}

// Filter returns a copy of roots without the nodes whose kind is disabled in
// categories. A removed node takes its sub-hardware with it.
func Filter(roots []Node, categories Categories) []Node {
	out := make([]Node, 0, len(roots))
	for _, n := range roots {
		if !categories.Includes(n.Kind) {
			continue
		}
		n.SubHardware = Filter(n.SubHardware, categories)
		out = append(out, n)
	}
	return out
}

// CountSensors returns the number of sensors under roots.
func CountSensors(roots []Node) int {
	count := 0
	_ = Walk(roots, func(Sensor) error {
		count++
		return nil
	})
	return count
}
