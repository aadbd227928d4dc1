//go:build linux

package fingerprint

import (
	"os"
	"strings"
)

// osInfo reports "sysname-release-version" from /proc/sys/kernel, the same
// three fields device_fingerprint.py's platform.system()/release()/version()
// triple contributes, read the same way cpuInfo reads /proc/cpuinfo rather
// than through a syscall struct whose field widths vary by architecture.
// Falls back to GOOS-GOARCH for any field the host doesn't expose.
func osInfo() string {
	parts := []string{
		readProcKernel("ostype", "Linux"),
		readProcKernel("osrelease", ""),
		readProcKernel("version", ""),
	}
	var nonEmpty []string
	for _, p := range parts {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	if len(nonEmpty) == 0 {
		return fallbackOSInfo()
	}
	return strings.Join(nonEmpty, "-")
}

func readProcKernel(name, fallback string) string {
	b, err := os.ReadFile("/proc/sys/kernel/" + name)
	if err != nil {
		return fallback
	}
	return strings.TrimSpace(string(b))
}
