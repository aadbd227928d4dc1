//go:build linux

package fingerprint

import (
	"bufio"
	"os"
	"strings"
)

// cpuInfo reads the "model name" line from /proc/cpuinfo. Returns "" if the
// signal can't be collected (container without procfs, permission denied).
func cpuInfo() string {
	f, err := os.Open("/proc/cpuinfo")
	if err != nil {
		return ""
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "model name") {
			parts := strings.SplitN(line, ":", 2)
			if len(parts) == 2 {
				return strings.TrimSpace(parts[1])
			}
		}
	}
	return ""
}
