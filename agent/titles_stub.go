//go:build !windows
// +build !windows

package agent

// windowTitles reports no titles; window enumeration is windows-only
func windowTitles() map[int32]string {
	return nil
}
