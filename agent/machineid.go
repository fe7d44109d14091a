package agent

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/shirou/gopsutil/v3/host"
)

// machineIDGenerator derives a stable identifier from hardware and OS
// identifiers, cached on disk so the agent keeps its identity across
// restarts.
type machineIDGenerator struct {
	cacheDir string
}

func newMachineIDGenerator() *machineIDGenerator {
	return &machineIDGenerator{cacheDir: defaultCacheDir()}
}

// MachineID returns the cached identifier, generating one if needed
func (m *machineIDGenerator) MachineID() (string, error) {
	if cached, err := m.readCached(); err == nil && cached != "" {
		return cached, nil
	}

	id, err := m.generate()
	if err != nil {
		return "", err
	}
	if err := m.writeCached(id); err != nil {
		// Still usable, just regenerated next run
		fmt.Fprintf(os.Stderr, "warning: failed to cache machine id: %v\n", err)
	}
	return id, nil
}

func (m *machineIDGenerator) generate() (string, error) {
	var parts []string

	if hostname, err := os.Hostname(); err == nil {
		parts = append(parts, hostname)
	}
	if info, err := host.Info(); err == nil && info.HostID != "" {
		parts = append(parts, info.HostID)
	}
	if id, err := platformMachineID(); err == nil && id != "" {
		parts = append(parts, id)
	}

	if len(parts) == 0 {
		return "", fmt.Errorf("unable to generate machine id: no identifiers found")
	}

	hash := sha256.Sum256([]byte(strings.Join(parts, "-")))
	return hex.EncodeToString(hash[:16]), nil
}

func (m *machineIDGenerator) readCached() (string, error) {
	data, err := os.ReadFile(filepath.Join(m.cacheDir, "machine-id"))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func (m *machineIDGenerator) writeCached(id string) error {
	if err := os.MkdirAll(m.cacheDir, 0700); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(m.cacheDir, "machine-id"), []byte(id), 0600)
}

func defaultCacheDir() string {
	switch runtime.GOOS {
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "RemconAgent")
		}
		return filepath.Join(os.Getenv("USERPROFILE"), ".remcon-agent")
	case "darwin":
		return filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "RemconAgent")
	default:
		if xdgCache := os.Getenv("XDG_CACHE_HOME"); xdgCache != "" {
			return filepath.Join(xdgCache, "remcon-agent")
		}
		return filepath.Join(os.Getenv("HOME"), ".cache", "remcon-agent")
	}
}
