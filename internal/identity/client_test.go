package identity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func mintTestToken(t *testing.T, username string) string {
	t.Helper()
	claims := jwt.MapClaims{
		"username":           username,
		"device_fingerprint": "test-fingerprint",
		"app_version":        "1.0.0",
		"exp":                time.Now().Add(time.Hour).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte("test-signing-secret"))
	if err != nil {
		t.Fatalf("sign test token: %v", err)
	}
	return signed
}

func TestHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(srv.URL, "1.0.0")
	if !c.Health(context.Background()) {
		t.Error("Health() = false, want true")
	}
}

func TestHealthUnreachable(t *testing.T) {
	c := New("http://127.0.0.1:1", "1.0.0")
	c.HTTPClient.Timeout = 200 * time.Millisecond
	if c.Health(context.Background()) {
		t.Error("Health() = true for unreachable server, want false")
	}
}

func TestLoginSuccess(t *testing.T) {
	token := mintTestToken(t, "pilot@example.com")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Username != "pilot@example.com" {
			t.Errorf("request username = %q", req.Username)
		}
		json.NewEncoder(w).Encode(loginResponse{
			Success: true,
			Token:   token,
			User:    map[string]any{"username": req.Username},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, "1.0.0")
	result, err := c.Login(context.Background(), "pilot@example.com", "Aviation2025!", "fp-abc")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if result.Token != token {
		t.Errorf("Token = %q, want %q", result.Token, token)
	}
}

func TestLoginAuthError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(loginResponse{Error: "invalid credentials"})
	}))
	defer srv.Close()

	c := New(srv.URL, "1.0.0")
	_, err := c.Login(context.Background(), "pilot@example.com", "wrong", "fp-abc")
	if err == nil {
		t.Fatal("expected AuthError, got nil")
	}
	authErr, ok := err.(*AuthError)
	if !ok {
		t.Fatalf("got %T, want *AuthError", err)
	}
	if authErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("StatusCode = %d, want 401", authErr.StatusCode)
	}
}

func TestLoginNetworkError(t *testing.T) {
	c := New("http://127.0.0.1:1", "1.0.0")
	c.HTTPClient.Timeout = 200 * time.Millisecond
	_, err := c.Login(context.Background(), "pilot@example.com", "Aviation2025!", "fp-abc")
	if _, ok := err.(*NetworkError); !ok {
		t.Fatalf("got %T (%v), want *NetworkError", err, err)
	}
}

func TestVerify(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		valid := auth == "Bearer good-token"
		json.NewEncoder(w).Encode(verifyResponse{Valid: valid})
	}))
	defer srv.Close()

	c := New(srv.URL, "1.0.0")
	if !c.Verify(context.Background(), "good-token") {
		t.Error("Verify(good-token) = false, want true")
	}
	if c.Verify(context.Background(), "bad-token") {
		t.Error("Verify(bad-token) = true, want false")
	}
}

func TestLogout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(srv.URL, "1.0.0")
	if !c.Logout(context.Background(), "any-token") {
		t.Error("Logout() = false, want true")
	}
}

func TestLogoutNeverFatalOnNetworkFailure(t *testing.T) {
	c := New("http://127.0.0.1:1", "1.0.0")
	c.HTTPClient.Timeout = 200 * time.Millisecond
	if c.Logout(context.Background(), "any-token") {
		t.Error("Logout() = true for unreachable server, want false")
	}
}

func TestUserInfo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"display_name": "Test Pilot"})
	}))
	defer srv.Close()

	c := New(srv.URL, "1.0.0")
	info, err := c.UserInfo(context.Background(), "good-token")
	if err != nil {
		t.Fatalf("UserInfo: %v", err)
	}
	if info["display_name"] != "Test Pilot" {
		t.Errorf("UserInfo = %+v", info)
	}
}
