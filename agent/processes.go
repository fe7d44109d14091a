package agent

import (
	"os"
	"os/exec"
	"sort"

	"remcon/pkg/protocol"

	"github.com/shirou/gopsutil/v3/process"
)

// listProcesses builds a process snapshot, sorted by name for stable
// presentation. Window titles are filled in where the platform exposes
// them.
func listProcesses() []protocol.ProcessEntry {
	procs, err := process.Processes()
	if err != nil {
		return nil
	}

	titles := windowTitles()

	entries := make([]protocol.ProcessEntry, 0, len(procs))
	for _, p := range procs {
		name, err := p.Name()
		if err != nil || name == "" {
			continue
		}
		entries = append(entries, protocol.ProcessEntry{
			Name:        name,
			PID:         p.Pid,
			WindowTitle: titles[p.Pid],
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Name != entries[j].Name {
			return entries[i].Name < entries[j].Name
		}
		return entries[i].PID < entries[j].PID
	})
	return entries
}

// startProcess launches a program detached from the agent
func startProcess(name string) error {
	cmd := exec.Command(name)
	if err := cmd.Start(); err != nil {
		return err
	}
	go cmd.Wait()
	return nil
}

// endProcess terminates a process by pid
func endProcess(pid int32) error {
	p, err := process.NewProcess(pid)
	if err != nil {
		return err
	}
	return p.Kill()
}

func hostnameOrEmpty() (string, error) {
	return os.Hostname()
}
