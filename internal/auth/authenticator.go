// Package auth implements the hybrid online/offline authenticator: online
// login first, falling back to the offline credential vault only on a
// network failure, never on a rejected credential.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cg8-5712/EAIP-Viewer/internal/cryptoutil"
	"github.com/cg8-5712/EAIP-Viewer/internal/fingerprint"
	"github.com/cg8-5712/EAIP-Viewer/internal/identity"
	"github.com/cg8-5712/EAIP-Viewer/internal/vault"
)

// State is one of the three states the authenticator can be in.
type State int

const (
	Unauthenticated State = iota
	Online
	Offline
)

func (s State) String() string {
	switch s {
	case Online:
		return "online"
	case Offline:
		return "offline"
	default:
		return "unauthenticated"
	}
}

// ErrNotAuthenticated is returned by GetDistributionPassword when no
// successful Authenticate call is currently in effect.
var ErrNotAuthenticated = errors.New("auth: not authenticated")

// defaultDistributionSecret is the well-known distribution secret baked
// into the binary at build time. It is not a defense against a user who
// already has the application; it exists only to put the distribution key
// under the same zero-on-release lifecycle as every other key. Override it
// per-deployment with SetDistributionSecret before the first Authenticate.
var defaultDistributionSecret = "Aviation2025!ComplexServerPassword"

// SetDistributionSecret overrides the package-wide distribution secret.
// Call during process init, before any Authenticator is used.
func SetDistributionSecret(secret string) {
	defaultDistributionSecret = secret
}

// Authenticator orchestrates online-first, offline-fallback authentication
// and holds the derived distribution key between a successful Authenticate
// and Logout. Each instance owns its own KeyHolder; there is no shared
// package-level authenticator.
type Authenticator struct {
	Identity *identity.Client
	Vault    *vault.Vault
	Logger   *slog.Logger

	state State
	token string
	user  map[string]any
	keys  KeyHolder
}

// New builds an Authenticator bound to the given identity client and
// offline vault.
func New(identityClient *identity.Client, credentialVault *vault.Vault, logger *slog.Logger) *Authenticator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Authenticator{Identity: identityClient, Vault: credentialVault, Logger: logger}
}

// State reports the authenticator's current state.
func (a *Authenticator) State() State { return a.state }

// IsAuthenticated reports whether the authenticator holds a valid session.
func (a *Authenticator) IsAuthenticated() bool { return a.state != Unauthenticated }

// CurrentUser returns the authenticated user's profile, or nil if
// unauthenticated.
func (a *Authenticator) CurrentUser() map[string]any { return a.user }

// Authenticate tries online login first; on a network failure it falls
// back to the offline vault. An explicit rejection from the server
// (AuthError) does not fall back — the caller must retry with different
// credentials, not silently downgrade to a stale cached session.
func (a *Authenticator) Authenticate(ctx context.Context, username, password string) error {
	if !a.Identity.Health(ctx) {
		a.Logger.Info("identity server unreachable, trying offline vault", "username", username)
		return a.authenticateOffline(username, password)
	}

	result, err := a.Identity.Login(ctx, username, password, fingerprint.Fingerprint())
	if err != nil {
		var netErr *identity.NetworkError
		if errors.As(err, &netErr) {
			a.Logger.Warn("network error during login, falling back to offline vault", "username", username, "error", err)
			return a.authenticateOffline(username, password)
		}
		return err
	}

	a.token = result.Token
	a.user = result.User
	a.state = Online

	if err := a.Vault.Save(username, password, result.Token, result.User); err != nil {
		a.Logger.Warn("failed to cache credential for offline use", "username", username, "error", err)
	}

	if err := a.deriveDistributionKey(); err != nil {
		return err
	}

	a.Logger.Info("online authentication successful", "username", username)
	return nil
}

func (a *Authenticator) authenticateOffline(username, password string) error {
	cred, err := a.Vault.Load(username, password)
	if err != nil {
		return fmt.Errorf("auth: offline authentication: %w", err)
	}
	if cred == nil {
		return fmt.Errorf("auth: no usable cached credential for %q", username)
	}

	a.token = cred.Token
	a.user = cred.UserInfo
	a.state = Offline

	if err := a.deriveDistributionKey(); err != nil {
		return err
	}

	a.Logger.Info("offline authentication successful", "username", username, "expires_at", cred.ExpiresAt)
	return nil
}

// deriveDistributionKey derives the distribution key from the well-known
// secret with salt = SHA-256(secret), the way §4.8 specifies, and stores it
// in the key holder under the same lifecycle discipline as every other key.
func (a *Authenticator) deriveDistributionKey() error {
	salt := cryptoutil.SHA256([]byte(defaultDistributionSecret))
	key, err := cryptoutil.DeriveMasterKey(defaultDistributionSecret, salt, cryptoutil.DefaultPBKDF2Iterations, a.Logger)
	if err != nil {
		return fmt.Errorf("auth: derive distribution key: %w", err)
	}
	a.keys.Set(key)
	return nil
}

// GetDistributionPassword returns the well-known distribution secret.
// Only callable while authenticated, matching §4.8: the secret is gated
// behind a successful Authenticate even though its value is fixed.
func (a *Authenticator) GetDistributionPassword() (string, error) {
	if !a.IsAuthenticated() {
		return "", ErrNotAuthenticated
	}
	return defaultDistributionSecret, nil
}

// Logout best-effort notifies the server when online, then unconditionally
// clears local session state and zeroes the distribution key.
func (a *Authenticator) Logout(ctx context.Context) {
	if a.state == Online && a.token != "" {
		if !a.Identity.Logout(ctx, a.token) {
			a.Logger.Warn("server-side logout call failed")
		}
	}

	a.token = ""
	a.user = nil
	a.state = Unauthenticated
	a.keys.Release()

	a.Logger.Info("logged out")
}
