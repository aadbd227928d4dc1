package auth

import (
	"bytes"
	"testing"
)

func TestKeyHolderSetGetRelease(t *testing.T) {
	var h KeyHolder

	key := []byte{1, 2, 3, 4}
	h.Set(key)

	got := h.Get()
	if !bytes.Equal(got, []byte{1, 2, 3, 4}) {
		t.Errorf("Get() = %v, want %v", got, []byte{1, 2, 3, 4})
	}

	h.Release()
	if h.Get() != nil {
		t.Errorf("Get() after Release = %v, want nil", h.Get())
	}
	// The original backing array must be zeroed, not just unreferenced.
	if !bytes.Equal(key, []byte{0, 0, 0, 0}) {
		t.Errorf("backing array not zeroed after Release: %v", key)
	}
}

func TestKeyHolderSetZeroesPreviousKey(t *testing.T) {
	var h KeyHolder

	first := []byte{9, 9, 9}
	h.Set(first)
	h.Set([]byte{1, 1, 1})

	if !bytes.Equal(first, []byte{0, 0, 0}) {
		t.Errorf("previous key not zeroed on Set: %v", first)
	}
}
