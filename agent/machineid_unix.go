//go:build !windows
// +build !windows

package agent

import (
	"fmt"
	"os"
	"strings"
)

// platformMachineID reads the distribution machine-id where present
func platformMachineID() (string, error) {
	paths := []string{
		"/etc/machine-id",
		"/var/lib/dbus/machine-id",
	}
	for _, path := range paths {
		if data, err := os.ReadFile(path); err == nil {
			return strings.TrimSpace(string(data)), nil
		}
	}
	return "", fmt.Errorf("machine-id not found")
}
