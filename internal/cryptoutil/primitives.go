package cryptoutil

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

// ensureLogger falls back to slog.Default() so callers can pass nil.
func ensureLogger(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}

// DefaultPBKDF2Iterations is the master-key iteration count (§4.1).
const DefaultPBKDF2Iterations = 100_000

// minSafeIterations is the floor below which DeriveMasterKey logs a warning
// but still proceeds — the caller's choice, not ours to block.
const minSafeIterations = 10_000

// RandomBytes returns n cryptographically random bytes.
func RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return nil, fmt.Errorf("cryptoutil: read random bytes: %w", err)
	}
	return b, nil
}

// GenerateSalt returns a fresh 32-byte PBKDF2 salt.
func GenerateSalt() ([]byte, error) { return RandomBytes(SaltSize) }

// GenerateIV returns a fresh 12-byte GCM nonce.
func GenerateIV() ([]byte, error) { return RandomBytes(IVSize) }

// DeriveMasterKey derives a 32-byte key from password and salt using
// PBKDF2-HMAC-SHA256. Rejects an empty password or a salt that isn't 32
// bytes; logs (but does not fail on) an iteration count below the
// recommended floor.
func DeriveMasterKey(password string, salt []byte, iterations int, logger *slog.Logger) ([]byte, error) {
	logger = ensureLogger(logger)
	if password == "" {
		return nil, ErrEmptyPassword
	}
	if len(salt) != SaltSize {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidSaltSize, SaltSize, len(salt))
	}
	if iterations <= 0 {
		iterations = DefaultPBKDF2Iterations
	}
	if iterations < minSafeIterations {
		logger.Warn("pbkdf2 iteration count below recommended floor", "iterations", iterations, "floor", minSafeIterations)
	}
	return pbkdf2.Key([]byte(password), salt, iterations, KeySize, sha256.New), nil
}

// Encrypt AEAD-seals plaintext under key with optional associated data.
// Generates a fresh IV when iv is nil. Returns the ciphertext (with the
// 16-byte GCM tag appended) and the IV actually used.
func Encrypt(plaintext, key, iv, aad []byte) (ciphertext, usedIV []byte, err error) {
	if len(key) != KeySize {
		return nil, nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidKeySize, KeySize, len(key))
	}
	if iv == nil {
		iv, err = GenerateIV()
		if err != nil {
			return nil, nil, err
		}
	} else if len(iv) != IVSize {
		return nil, nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidIVSize, IVSize, len(iv))
	}

	engine, err := NewCipherEngine(AESGCM, key)
	if err != nil {
		return nil, nil, NewEncryptionError("encrypt", err)
	}
	return engine.Seal(iv, plaintext, aad), iv, nil
}

// Decrypt AEAD-opens ciphertextWithTag under key, iv, and aad. Returns
// ErrAuthenticationFailure (never a generic error) when the tag doesn't
// verify — the caller never receives partial plaintext on failure.
func Decrypt(ciphertextWithTag, key, iv, aad []byte) ([]byte, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidKeySize, KeySize, len(key))
	}
	if len(iv) != IVSize {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidIVSize, IVSize, len(iv))
	}

	engine, err := NewCipherEngine(AESGCM, key)
	if err != nil {
		return nil, NewEncryptionError("decrypt", err)
	}
	return engine.Open(iv, ciphertextWithTag, aad)
}

// SHA256 returns the raw 32-byte SHA-256 digest of data.
func SHA256(data []byte) []byte {
	sum := sha256.Sum256(data)
	return sum[:]
}

// SHA256Hex returns the lowercase hex SHA-256 digest of data.
func SHA256Hex(data []byte) string {
	return hex.EncodeToString(SHA256(data))
}

// SHA256Reader streams r through SHA-256 and returns the raw digest,
// without holding the whole input in memory.
func SHA256Reader(r io.Reader) ([]byte, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return nil, fmt.Errorf("cryptoutil: hash stream: %w", err)
	}
	return h.Sum(nil), nil
}

// EncodeBase64 / DecodeBase64 codec raw bytes for embedding in JSON fields
// (entry IVs, per spec §3).
func EncodeBase64(b []byte) string { return base64.StdEncoding.EncodeToString(b) }

func DecodeBase64(s string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("cryptoutil: decode base64: %w", err)
	}
	return b, nil
}

var (
	hasLower   = regexp.MustCompile(`[a-z]`)
	hasUpper   = regexp.MustCompile(`[A-Z]`)
	hasDigit   = regexp.MustCompile(`[0-9]`)
	hasSpecial = regexp.MustCompile(`[!@#$%^&*(),.?":{}|<>]`)
)

var weakPasswords = map[string]bool{
	"password":    true,
	"12345678":    true,
	"qwerty":      true,
	"abc123":      true,
	"password123": true,
	"admin123":    true,
	"88888888":    true,
}

// PasswordStrength reports whether password passes the minimum bar: at
// least 8 characters, one lowercase, one uppercase, one digit, and not on
// the weak-password denylist. It logs (never fails on) the soft
// recommendations: length below 12, no special character.
func PasswordStrength(password string, logger *slog.Logger) (ok bool, reason string) {
	logger = ensureLogger(logger)
	if len(password) < 8 {
		return false, "password must be at least 8 characters"
	}
	if len(password) < 12 {
		logger.Warn("password shorter than the recommended 12 characters")
	}
	if !hasLower.MatchString(password) {
		return false, "password must contain a lowercase letter"
	}
	if !hasUpper.MatchString(password) {
		return false, "password must contain an uppercase letter"
	}
	if !hasDigit.MatchString(password) {
		return false, "password must contain a digit"
	}
	if !hasSpecial.MatchString(password) {
		logger.Warn("password has no special character; recommended for additional strength")
	}
	if weakPasswords[strings.ToLower(password)] {
		return false, "password is too common, choose a stronger one"
	}
	return true, ""
}
