//go:build !windows
// +build !windows

package agent

import (
	"fmt"

	"remcon/pkg/protocol"

	"github.com/shirou/gopsutil/v3/process"
)

// dumpProcess reports that memory dumps are not supported on this
// platform. Failure travels in-band through the payload.
func dumpProcess(pid int32) protocol.DumpResponsePayload {
	result := protocol.DumpResponsePayload{
		PID:           pid,
		FailureReason: "memory dumps require windows",
	}

	if p, err := process.NewProcess(pid); err == nil {
		if name, err := p.Name(); err == nil {
			result.ProcessName = name
		}
	} else {
		result.FailureReason = fmt.Sprintf("process %d not found", pid)
	}

	return result
}
