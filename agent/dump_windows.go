//go:build windows
// +build windows

package agent

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"remcon/pkg/protocol"

	"github.com/shirou/gopsutil/v3/process"
)

var (
	dbghelp              *syscall.LazyDLL
	procMiniDumpWriteDmp *syscall.LazyProc
)

func initDumpProcs() {
	if dbghelp != nil {
		return
	}
	dbghelp = syscall.NewLazyDLL("dbghelp.dll")
	procMiniDumpWriteDmp = dbghelp.NewProc("MiniDumpWriteDump")
}

const miniDumpWithFullMemory = 0x00000002

// dumpProcess writes a full memory dump of the target process into the
// temp directory. Failure is reported in-band through the payload.
func dumpProcess(pid int32) protocol.DumpResponsePayload {
	result := protocol.DumpResponsePayload{PID: pid}

	p, err := process.NewProcess(pid)
	if err != nil {
		result.FailureReason = fmt.Sprintf("process %d not found", pid)
		return result
	}
	name, err := p.Name()
	if err != nil || name == "" {
		name = fmt.Sprintf("pid-%d", pid)
	}
	result.ProcessName = name

	initDumpProcs()
	if err := procMiniDumpWriteDmp.Find(); err != nil {
		result.FailureReason = "dbghelp.dll unavailable"
		return result
	}

	handle, err := syscall.OpenProcess(
		syscall.PROCESS_QUERY_INFORMATION|syscall.PROCESS_VM_READ|syscall.PROCESS_DUP_HANDLE,
		false, uint32(pid))
	if err != nil {
		result.FailureReason = fmt.Sprintf("failed to open process: %v", err)
		return result
	}
	defer syscall.CloseHandle(handle)

	base := strings.TrimSuffix(name, filepath.Ext(name))
	path := filepath.Join(os.TempDir(), fmt.Sprintf("%s_%d.dmp", base, pid))
	file, err := os.Create(path)
	if err != nil {
		result.FailureReason = fmt.Sprintf("failed to create dump file: %v", err)
		return result
	}
	defer file.Close()

	ret, _, callErr := procMiniDumpWriteDmp.Call(
		uintptr(handle),
		uintptr(pid),
		file.Fd(),
		miniDumpWithFullMemory,
		0, 0, 0)
	if ret == 0 {
		os.Remove(path)
		result.FailureReason = fmt.Sprintf("MiniDumpWriteDump failed: %v", callErr)
		return result
	}

	result.Result = true
	result.DumpPath = path
	return result
}
