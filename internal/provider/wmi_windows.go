//go:build windows

package provider

import (
	"github.com/yusufpapurcu/wmi"
)

func queryWMI(namespace string) ([]wmiHardware, []wmiSensor, error) {
	var hw []wmiHardware
	if err := wmi.QueryNamespace("SELECT Name, Identifier, HardwareType, Parent FROM Hardware", &hw, namespace); err != nil {
		return nil, nil, err
	}
	var sensors []wmiSensor
	if err := wmi.QueryNamespace("SELECT Name, Identifier, SensorType, Parent, Value FROM Sensor", &sensors, namespace); err != nil {
		return nil, nil, err
	}
	return hw, sensors, nil
}
