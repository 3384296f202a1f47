package provider

import (
	"strings"

	"tempagent/internal/hardware"
)

// Sensor names as LibreHardwareMonitor reports them. Chip drivers on other
// sources use their own labels for the same sensors; those are renamed here
// so sensor selection works unchanged across providers.
const (
	lhmCPUPackage = "CPU Package"
	lhmTctlTdie   = "Core (Tctl/Tdie)"
)

func compactLabel(s string) string {
	s = strings.ToLower(s)
	return strings.NewReplacer(" ", "", "_", "", "-", "").Replace(s)
}

// lhmSensorName maps a chip driver's temperature label onto the
// LibreHardwareMonitor name of the same sensor. Unknown labels pass through.
func lhmSensorName(chip, label string) string {
	l := compactLabel(label)
	switch strings.ToLower(chip) {
	case "coretemp":
		if strings.HasPrefix(l, "packageid") || l == "package" {
			return lhmCPUPackage
		}
	case "k10temp", "zenpower":
		if l == "tctl" || l == "tdie" {
			return lhmTctlTdie
		}
	}
	return label
}

// chipKind classifies an hwmon chip driver name.
func chipKind(chip string) hardware.Kind {
	c := strings.ToLower(chip)
	switch {
	case c == "coretemp" || c == "k10temp" || c == "zenpower" || c == "cpu_thermal":
		return hardware.KindCPU
	case c == "amdgpu" || c == "radeon" || c == "nouveau" || c == "i915":
		return hardware.KindGPU
	case c == "nvme" || c == "drivetemp":
		return hardware.KindStorage
	case strings.HasPrefix(c, "nct") || strings.HasPrefix(c, "it87") || strings.HasPrefix(c, "w83"):
		return hardware.KindSuperIO
	case c == "acpitz" || c == "pch_skylake" || strings.HasPrefix(c, "pch_"):
		return hardware.KindMotherboard
	case strings.HasPrefix(c, "iwlwifi") || strings.HasPrefix(c, "r8169"):
		return hardware.KindNetwork
	case strings.HasPrefix(c, "bat") || c == "ac":
		return hardware.KindController
	}
	return hardware.KindOther
}
