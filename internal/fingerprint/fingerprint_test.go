package fingerprint

import "testing"

func TestFingerprintDeterministicOnSameHost(t *testing.T) {
	a := Fingerprint()
	b := Fingerprint()
	if a != b {
		t.Errorf("Fingerprint not stable across calls: %s != %s", a, b)
	}
	if len(a) != 64 {
		t.Errorf("fingerprint length = %d, want 64 (hex-encoded SHA-256)", len(a))
	}
}

func TestVerify(t *testing.T) {
	if !Verify(Fingerprint()) {
		t.Error("Verify(Fingerprint()) = false, want true")
	}
	if Verify("0000000000000000000000000000000000000000000000000000000000000000") {
		t.Error("Verify on wrong digest = true, want false")
	}
}

func TestDescribeCarriesSignals(t *testing.T) {
	info := Describe()
	if info.Fingerprint != Fingerprint() {
		t.Errorf("Describe().Fingerprint = %s, want %s", info.Fingerprint, Fingerprint())
	}
	if info.Signals.OSInfo == "" {
		t.Error("Signals.OSInfo is empty, want os-arch string")
	}
}
