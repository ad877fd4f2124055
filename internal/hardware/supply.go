package hardware

import (
	"fmt"
	"strings"

	"dynamic_power/internal/models"

	"github.com/prometheus/procfs/sysfs"
)

// SupplyProbe derives the power source from /sys/class/power_supply.
// It backs the power-source monitor when UPower is not reachable.
type SupplyProbe struct {
	fs sysfs.FS
}

// NewSupplyProbe opens sysfs at mount, normally sysfs.DefaultMountPoint.
func NewSupplyProbe(mount string) (*SupplyProbe, error) {
	fs, err := sysfs.NewFS(mount)
	if err != nil {
		return nil, fmt.Errorf("open sysfs at %q: %w", mount, err)
	}
	return &SupplyProbe{fs: fs}, nil
}

// PowerSource reads every supply and classifies the host.
func (p *SupplyProbe) PowerSource() (models.PowerSource, error) {
	class, err := p.fs.PowerSupplyClass()
	if err != nil {
		return models.PowerSourceAC, fmt.Errorf("read power_supply class: %w", err)
	}
	return classify(class), nil
}

// classify: any online mains adapter means AC. Without an online adapter the
// host is on battery when a battery exists and either an adapter reports
// offline or a battery reports discharging. Desktops without a battery are AC.
func classify(class sysfs.PowerSupplyClass) models.PowerSource {
	var (
		mainsOffline bool
		battery      bool
		discharging  bool
	)
	for _, ps := range class {
		switch strings.ToLower(ps.Type) {
		case "mains", "usb":
			if ps.Online != nil {
				if *ps.Online == 1 {
					return models.PowerSourceAC
				}
				mainsOffline = true
			}
		case "battery":
			if ps.Scope != "" && !strings.EqualFold(ps.Scope, "system") {
				continue
			}
			battery = true
			if strings.EqualFold(ps.Status, "discharging") {
				discharging = true
			}
		}
	}
	if battery && (mainsOffline || discharging) {
		return models.PowerSourceBattery
	}
	return models.PowerSourceAC
}
