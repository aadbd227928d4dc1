// Package vault persists AEAD-sealed offline credential blobs so a prior
// successful login can authenticate a user again without network access.
package vault

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cg8-5712/EAIP-Viewer/internal/cryptoutil"
	"github.com/cg8-5712/EAIP-Viewer/internal/fingerprint"
)

// vaultKeyIterations is deliberately lower than the master-key derivation
// in cryptoutil: the password is already checked against the stored hash
// after decryption, so the KDF here only needs to resist a stolen vault
// file, not stand alone as the sole authentication factor.
const vaultKeyIterations = 10_000

const credentialFileExt = ".credential"

// Credential is one cached offline login.
type Credential struct {
	Username          string         `json:"username"`
	PasswordHash      string         `json:"password_hash"` // hex SHA-256
	Token             string         `json:"token"`
	DeviceFingerprint string         `json:"device_fingerprint"`
	CreatedAt         time.Time      `json:"created_at"`
	ExpiresAt         time.Time      `json:"expires_at"`
	UserInfo          map[string]any `json:"user_info"`
}

// Vault persists credentials under a cache directory, one file per user.
type Vault struct {
	CacheDir  string
	CacheDays int
	Logger    *slog.Logger

	// FingerprintFunc returns the current device fingerprint. Defaults to
	// fingerprint.Fingerprint; overridable so a test can simulate "the
	// same vault file opened on a different device" without depending on
	// the real host's MAC/CPU/hostname signals.
	FingerprintFunc func() string
}

// New creates a Vault rooted at cacheDir, creating the directory if needed.
func New(cacheDir string, cacheDays int, logger *slog.Logger) (*Vault, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(cacheDir, 0o700); err != nil {
		return nil, fmt.Errorf("vault: create cache dir: %w", err)
	}
	return &Vault{
		CacheDir:        cacheDir,
		CacheDays:       cacheDays,
		Logger:          logger,
		FingerprintFunc: fingerprint.Fingerprint,
	}, nil
}

func (v *Vault) currentFingerprint() string {
	if v.FingerprintFunc != nil {
		return v.FingerprintFunc()
	}
	return fingerprint.Fingerprint()
}

func (v *Vault) cachePath(username string) string {
	hash := cryptoutil.SHA256Hex([]byte(username))
	return filepath.Join(v.CacheDir, hash[:16]+credentialFileExt)
}

// deriveKey derives the vault's encryption key from password and the
// current device fingerprint, so a copied vault file can't be decrypted on
// a different machine even with the correct password.
func (v *Vault) deriveKey(password string) ([]byte, error) {
	fp := v.currentFingerprint()
	salt := cryptoutil.SHA256([]byte(password + fp))
	return cryptoutil.DeriveMasterKey(password, salt, vaultKeyIterations, v.Logger)
}

// Save seals and writes a credential for username. The caller supplies the
// plaintext password only to derive the key and stored hash; it is never
// itself written to disk.
func (v *Vault) Save(username, password, token string, userInfo map[string]any) error {
	now := time.Now()
	cred := Credential{
		Username:          username,
		PasswordHash:      cryptoutil.SHA256Hex([]byte(password)),
		Token:             token,
		DeviceFingerprint: v.currentFingerprint(),
		CreatedAt:         now,
		ExpiresAt:         now.AddDate(0, 0, v.CacheDays),
		UserInfo:          userInfo,
	}

	payload, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("vault: marshal credential: %w", err)
	}

	key, err := v.deriveKey(password)
	if err != nil {
		return fmt.Errorf("vault: derive key: %w", err)
	}
	defer zero(key)

	ciphertext, iv, err := cryptoutil.Encrypt(payload, key, nil, []byte(username))
	if err != nil {
		return fmt.Errorf("vault: seal credential: %w", err)
	}

	blob := append(append([]byte(nil), iv...), ciphertext...)
	if err := os.WriteFile(v.cachePath(username), blob, 0o600); err != nil {
		return fmt.Errorf("vault: write credential file: %w", err)
	}

	v.Logger.Info("offline credential cached", "username", username)
	return nil
}

// Load decrypts and returns the cached credential for username, or nil if
// none is cached or any post-decrypt check fails (wrong password, wrong
// device, or expired — an expired file is deleted as a side effect).
// It never returns a hard authentication error: per §4.6, any mismatch is
// reported as "no credential available", not a failure worth surfacing.
func (v *Vault) Load(username, password string) (*Credential, error) {
	path := v.cachePath(username)
	blob, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("vault: read credential file: %w", err)
	}
	if len(blob) < cryptoutil.IVSize {
		return nil, nil
	}
	iv, ciphertext := blob[:cryptoutil.IVSize], blob[cryptoutil.IVSize:]

	key, err := v.deriveKey(password)
	if err != nil {
		return nil, fmt.Errorf("vault: derive key: %w", err)
	}
	defer zero(key)

	plaintext, err := cryptoutil.Decrypt(ciphertext, key, iv, []byte(username))
	if err != nil {
		v.Logger.Warn("offline credential decrypt failed", "username", username)
		return nil, nil
	}

	var cred Credential
	if err := json.Unmarshal(plaintext, &cred); err != nil {
		return nil, fmt.Errorf("vault: parse credential: %w", err)
	}

	if cred.PasswordHash != cryptoutil.SHA256Hex([]byte(password)) {
		v.Logger.Warn("offline credential password mismatch", "username", username)
		return nil, nil
	}
	if cred.DeviceFingerprint != v.currentFingerprint() {
		v.Logger.Warn("offline credential device fingerprint mismatch", "username", username)
		return nil, nil
	}
	if time.Now().After(cred.ExpiresAt) {
		v.Logger.Info("offline credential expired", "username", username)
		_ = v.Delete(username)
		return nil, nil
	}

	return &cred, nil
}

// Delete removes the cached credential for username, if any.
func (v *Vault) Delete(username string) error {
	err := os.Remove(v.cachePath(username))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("vault: delete credential file: %w", err)
	}
	return nil
}

// CleanupExpired deletes every cached credential whose file modification
// time is older than CacheDays, and returns the count removed. This is a
// coarser, filesystem-only check than Load's expires_at comparison — it
// runs without knowing any password.
func (v *Vault) CleanupExpired() (int, error) {
	entries, err := os.ReadDir(v.CacheDir)
	if err != nil {
		return 0, fmt.Errorf("vault: read cache dir: %w", err)
	}

	cutoff := time.Now().AddDate(0, 0, -v.CacheDays)
	count := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), credentialFileExt) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(v.CacheDir, entry.Name())); err == nil {
				count++
			}
		}
	}

	if count > 0 {
		v.Logger.Info("cleaned up expired credentials", "count", count)
	}
	return count, nil
}

// ListUsernames returns the cache filenames currently present, for
// diagnostics. The on-disk name is a hash of the username, not the
// username itself, so this cannot recover usernames directly.
func (v *Vault) ListUsernames() ([]string, error) {
	entries, err := os.ReadDir(v.CacheDir)
	if err != nil {
		return nil, fmt.Errorf("vault: read cache dir: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), credentialFileExt) {
			names = append(names, entry.Name())
		}
	}
	return names, nil
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
