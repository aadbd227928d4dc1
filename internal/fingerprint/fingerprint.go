// Package fingerprint derives a stable per-host identifier used to bind
// offline credentials to the device that cached them.
package fingerprint

import (
	"fmt"
	"net"
	"os"
	"runtime"
	"strings"

	"github.com/google/uuid"

	"github.com/cg8-5712/EAIP-Viewer/internal/cryptoutil"
)

// fallbackOSInfo is the portable OS signal used when a platform-specific
// osInfo implementation can't read a richer release/version string.
func fallbackOSInfo() string {
	return fmt.Sprintf("%s-%s", runtime.GOOS, runtime.GOARCH)
}

// Signals holds the raw, unhashed components that feed the fingerprint.
// Any signal the host can't produce is simply omitted rather than
// substituted, so the fingerprint degrades gracefully instead of aliasing
// two different hosts onto the same value.
type Signals struct {
	MachineID string
	OSInfo    string
	CPUInfo   string
	Hostname  string
}

// machineID derives a UUID from the primary network interface's MAC
// address, the way uuid.UUID{int: uuid.getnode()} does in the original
// implementation. Falls back to the hostname when no hardware MAC is
// available (containers, VMs without a real NIC).
func machineID() (string, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return "", fmt.Errorf("fingerprint: list interfaces: %w", err)
	}

	for _, iface := range ifaces {
		if len(iface.HardwareAddr) == 0 {
			continue
		}
		if iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		var nodeID [6]byte
		copy(nodeID[:], iface.HardwareAddr)
		id := uuid.NewSHA1(uuid.NameSpaceOID, nodeID[:])
		return id.String(), nil
	}

	return "", fmt.Errorf("fingerprint: no hardware MAC address found")
}

// CollectSignals gathers every fingerprint input this host can produce.
func CollectSignals() Signals {
	var s Signals

	if id, err := machineID(); err == nil {
		s.MachineID = id
	}

	s.OSInfo = osInfo()
	s.CPUInfo = cpuInfo()

	if hostname, err := os.Hostname(); err == nil {
		s.Hostname = hostname
	}

	return s
}

// nonEmpty returns the non-empty fields of s in stable order, joined later
// by the caller with "|" exactly as the components list is built upstream.
func (s Signals) nonEmpty() []string {
	var parts []string
	for _, v := range []string{s.MachineID, s.OSInfo, s.CPUInfo, s.Hostname} {
		if v != "" {
			parts = append(parts, v)
		}
	}
	return parts
}

// Fingerprint returns the lowercase hex SHA-256 digest of every available
// signal, joined with "|".
func Fingerprint() string {
	signals := CollectSignals()
	joined := strings.Join(signals.nonEmpty(), "|")
	return cryptoutil.SHA256Hex([]byte(joined))
}

// Verify reports whether stored matches the fingerprint of the current host.
func Verify(stored string) bool {
	return stored == Fingerprint()
}

// Info is a diagnostic snapshot: the digest plus every contributing signal.
// Never persisted and never sent over the wire.
type Info struct {
	Fingerprint string
	Signals     Signals
}

// Describe returns a full diagnostic snapshot of this host's fingerprint.
func Describe() Info {
	return Info{
		Fingerprint: Fingerprint(),
		Signals:     CollectSignals(),
	}
}
