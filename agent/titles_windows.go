//go:build windows
// +build windows

package agent

import (
	"syscall"
	"unsafe"
)

var (
	titlesUser32 *syscall.LazyDLL

	procEnumWindows              *syscall.LazyProc
	procGetWindowTextW           *syscall.LazyProc
	procGetWindowTextLengthW     *syscall.LazyProc
	procIsWindowVisible          *syscall.LazyProc
	procGetWindowThreadProcessId *syscall.LazyProc
)

func initTitleProcs() {
	if titlesUser32 != nil {
		return
	}
	titlesUser32 = syscall.NewLazyDLL("user32.dll")
	procEnumWindows = titlesUser32.NewProc("EnumWindows")
	procGetWindowTextW = titlesUser32.NewProc("GetWindowTextW")
	procGetWindowTextLengthW = titlesUser32.NewProc("GetWindowTextLengthW")
	procIsWindowVisible = titlesUser32.NewProc("IsWindowVisible")
	procGetWindowThreadProcessId = titlesUser32.NewProc("GetWindowThreadProcessId")
}

// windowTitles maps pids to the title of their first visible top-level
// window. Processes without a visible window are absent from the map.
func windowTitles() map[int32]string {
	initTitleProcs()

	titles := make(map[int32]string)

	callback := syscall.NewCallback(func(hwnd uintptr, _ uintptr) uintptr {
		visible, _, _ := procIsWindowVisible.Call(hwnd)
		if visible == 0 {
			return 1 // continue enumeration
		}

		length, _, _ := procGetWindowTextLengthW.Call(hwnd)
		if length == 0 {
			return 1
		}

		buf := make([]uint16, length+1)
		procGetWindowTextW.Call(hwnd, uintptr(unsafe.Pointer(&buf[0])), length+1)

		var pid uint32
		procGetWindowThreadProcessId.Call(hwnd, uintptr(unsafe.Pointer(&pid)))
		if pid == 0 {
			return 1
		}

		if _, seen := titles[int32(pid)]; !seen {
			titles[int32(pid)] = syscall.UTF16ToString(buf)
		}
		return 1
	})

	procEnumWindows.Call(callback, 0)
	return titles
}
