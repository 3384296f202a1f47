//go:build !windows

package provider

func queryWMI(string) ([]wmiHardware, []wmiSensor, error) {
	return nil, nil, ErrUnsupported
}
