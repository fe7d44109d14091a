//go:build windows
// +build windows

package agent

import (
	"strings"

	"golang.org/x/sys/windows/registry"
)

// platformMachineID reads the MachineGuid the installer stamped into the
// registry.
func platformMachineID() (string, error) {
	key, err := registry.OpenKey(registry.LOCAL_MACHINE, `SOFTWARE\Microsoft\Cryptography`, registry.QUERY_VALUE)
	if err != nil {
		return "", err
	}
	defer key.Close()

	val, _, err := key.GetStringValue("MachineGuid")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(val), nil
}
