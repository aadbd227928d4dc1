package cryptoutil

import (
	"bytes"
	"errors"
	"testing"
)

func TestDeriveMasterKeyDeterministic(t *testing.T) {
	salt, err := GenerateSalt()
	if err != nil {
		t.Fatalf("GenerateSalt: %v", err)
	}

	k1, err := DeriveMasterKey("correct horse battery staple", salt, DefaultPBKDF2Iterations, nil)
	if err != nil {
		t.Fatalf("DeriveMasterKey: %v", err)
	}
	k2, err := DeriveMasterKey("correct horse battery staple", salt, DefaultPBKDF2Iterations, nil)
	if err != nil {
		t.Fatalf("DeriveMasterKey: %v", err)
	}

	if len(k1) != KeySize {
		t.Errorf("key length = %d, want %d", len(k1), KeySize)
	}
	if !bytes.Equal(k1, k2) {
		t.Errorf("DeriveMasterKey not deterministic: %x != %x", k1, k2)
	}
}

func TestDeriveMasterKeyRejectsBadInput(t *testing.T) {
	salt, err := GenerateSalt()
	if err != nil {
		t.Fatalf("GenerateSalt: %v", err)
	}

	if _, err := DeriveMasterKey("", salt, DefaultPBKDF2Iterations, nil); !errors.Is(err, ErrEmptyPassword) {
		t.Errorf("empty password: got %v, want ErrEmptyPassword", err)
	}

	if _, err := DeriveMasterKey("password", []byte("short"), DefaultPBKDF2Iterations, nil); !errors.Is(err, ErrInvalidSaltSize) {
		t.Errorf("short salt: got %v, want ErrInvalidSaltSize", err)
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key := make([]byte, KeySize)
	plaintext := []byte("the quick brown fox jumps over the lazy dog")
	aad := []byte("entry-id-123")

	ciphertext, iv, err := Encrypt(plaintext, key, nil, aad)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	decrypted, err := Decrypt(ciphertext, key, iv, aad)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if !bytes.Equal(plaintext, decrypted) {
		t.Errorf("round trip mismatch: got %q, want %q", decrypted, plaintext)
	}
}

func TestDecryptFailsOnTamper(t *testing.T) {
	key := make([]byte, KeySize)
	plaintext := []byte("sensitive chart data")
	aad := []byte("zbaa_sid_deadbeef")

	ciphertext, iv, err := Encrypt(plaintext, key, nil, aad)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	cases := map[string]func() ([]byte, []byte, []byte){
		"flip ciphertext byte": func() ([]byte, []byte, []byte) {
			tampered := append([]byte(nil), ciphertext...)
			tampered[0] ^= 0xFF
			return tampered, iv, aad
		},
		"flip iv byte": func() ([]byte, []byte, []byte) {
			tampered := append([]byte(nil), iv...)
			tampered[0] ^= 0xFF
			return ciphertext, tampered, aad
		},
		"flip aad byte": func() ([]byte, []byte, []byte) {
			tampered := append([]byte(nil), aad...)
			tampered[0] ^= 0xFF
			return ciphertext, iv, tampered
		},
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			ct, tiv, taad := mutate()
			_, err := Decrypt(ct, key, tiv, taad)
			if !errors.Is(err, ErrAuthenticationFailure) {
				t.Errorf("got %v, want ErrAuthenticationFailure", err)
			}
		})
	}
}

func TestSHA256ReaderMatchesSHA256(t *testing.T) {
	data := bytes.Repeat([]byte("chart-payload"), 1000)
	direct := SHA256(data)
	streamed, err := SHA256Reader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("SHA256Reader: %v", err)
	}
	if !bytes.Equal(direct, streamed) {
		t.Errorf("SHA256Reader mismatch: %x != %x", streamed, direct)
	}
}

func TestBase64RoundTrip(t *testing.T) {
	raw, err := RandomBytes(IVSize)
	if err != nil {
		t.Fatalf("RandomBytes: %v", err)
	}
	encoded := EncodeBase64(raw)
	decoded, err := DecodeBase64(encoded)
	if err != nil {
		t.Fatalf("DecodeBase64: %v", err)
	}
	if !bytes.Equal(raw, decoded) {
		t.Errorf("base64 round trip mismatch")
	}
}

func TestPasswordStrength(t *testing.T) {
	cases := []struct {
		password string
		wantOK   bool
	}{
		{"short", false},
		{"alllowercase1!", false},
		{"ALLUPPER1!", false},
		{"NoDigits!!", false},
		{"password", false},
		{"Aviation2025!", true},
	}

	for _, tc := range cases {
		ok, reason := PasswordStrength(tc.password, nil)
		if ok != tc.wantOK {
			t.Errorf("password %q: got ok=%v (%s), want %v", tc.password, ok, reason, tc.wantOK)
		}
	}
}
