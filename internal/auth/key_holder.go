package auth

import "sync"

// KeyHolder owns a single key buffer (the active master key or distribution
// key) for as long as a caller holds it. Release overwrites the buffer with
// zero before dropping the reference, so no lingering goroutine can observe
// the key after logout. There is deliberately no package-level instance of
// this type: each Authenticator owns exactly one.
type KeyHolder struct {
	mu  sync.Mutex
	key []byte
}

// Set replaces the held key, zeroing whatever was held before.
func (h *KeyHolder) Set(key []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	zeroBytes(h.key)
	h.key = key
}

// Get returns the currently held key, or nil if none is held. The returned
// slice aliases the holder's internal buffer; callers must not retain it
// past a subsequent Release.
func (h *KeyHolder) Get() []byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.key
}

// Release zeroes and drops the held key.
func (h *KeyHolder) Release() {
	h.mu.Lock()
	defer h.mu.Unlock()
	zeroBytes(h.key)
	h.key = nil
}

func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
