package munintest

import (
	"fmt"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
)

// RegisterLivePlugins wires a default plugin set backed by real host
// statistics, mirroring what a stock munin-node would serve. Used by the
// mocknode subcommand for local development against the bridge.
func RegisterLivePlugins(s *Server) {
	s.HandleFunc("load", loadPlugin)
	s.HandleFunc("cpu", cpuPlugin)
	s.HandleFunc("memory", memoryPlugin)
	s.HandleFunc("uptime", uptimePlugin)
}

func loadPlugin() []string {
	avg, err := load.Avg()
	if err != nil {
		return []string{"load.value Unknown"}
	}
	return []string{fmt.Sprintf("load.value %.2f", avg.Load5)}
}

func cpuPlugin() []string {
	times, err := cpu.Times(false)
	if err != nil || len(times) == 0 {
		return []string{"cpu.value Unknown"}
	}
	t := times[0]
	return []string{
		fmt.Sprintf("user.value %.2f", t.User),
		fmt.Sprintf("system.value %.2f", t.System),
		fmt.Sprintf("idle.value %.2f", t.Idle),
		fmt.Sprintf("iowait.value %.2f", t.Iowait),
	}
}

func memoryPlugin() []string {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return []string{"memory.value Unknown"}
	}
	return []string{
		fmt.Sprintf("total.value %d", vm.Total),
		fmt.Sprintf("free.value %d", vm.Free),
		fmt.Sprintf("cached.value %d", vm.Cached),
		fmt.Sprintf("active.value %d", vm.Active),
	}
}

func uptimePlugin() []string {
	up, err := host.Uptime()
	if err != nil {
		return []string{"uptime.value Unknown"}
	}
	// munin reports uptime in days
	return []string{fmt.Sprintf("uptime.value %.2f", float64(up)/86400)}
}
