//go:build windows
// +build windows

package agent

import (
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// systemStats samples cpu and memory usage for heartbeats. The WMI calls
// behind gopsutil can panic on locked-down hosts, so each sample is taken
// behind a recover.
func systemStats() (cpuUsage, memUsage float64) {
	func() {
		defer func() { recover() }()
		if percentages, err := cpu.Percent(time.Second, false); err == nil && len(percentages) > 0 {
			cpuUsage = percentages[0]
		}
	}()

	func() {
		defer func() { recover() }()
		if vm, err := mem.VirtualMemory(); err == nil {
			memUsage = vm.UsedPercent
		}
	}()

	return cpuUsage, memUsage
}
