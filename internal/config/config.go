// Package config defines the Conf struct cmd/aipkgctl binds cobra flags and
// viper configuration values into.
package config

// Conf holds the configuration values populated by viper from cobra flags,
// environment variables (AIPKG_* prefix), or $HOME/.aipkg.yaml.
//
// mapstructure tags are required wherever the lowercased Go field name
// doesn't match the flag name viper binds; without them viper.Unmarshal
// silently leaves that field at its zero value.
type Conf struct {
	// IdentityServerURL is the base URL of the remote identity service used
	// by the hybrid authenticator.
	IdentityServerURL string `mapstructure:"identity-server"`

	// OfflineCacheDays is the vault's default credential lifetime.
	OfflineCacheDays int `mapstructure:"offline-cache-days"`

	// PBKDF2Iterations overrides the default master-key derivation work
	// factor. Leave at 0 to use cryptoutil.DefaultPBKDF2Iterations.
	PBKDF2Iterations int `mapstructure:"pbkdf2-iterations"`

	// CompressionLevel is the default gzip level for newly built packages.
	CompressionLevel int `mapstructure:"compression-level"`

	// VaultDir is the directory offline credentials are cached under.
	VaultDir string `mapstructure:"vault-dir"`

	// AppVersion is sent to the identity server on login and stamped into
	// package metadata when no --version flag is given.
	AppVersion string `mapstructure:"app-version"`

	// LogLevel controls the slog handler's minimum level: debug, info,
	// warn, or error.
	LogLevel string `mapstructure:"log-level"`
}

// Defaults returns the built-in configuration used when no flag, env var,
// or config file overrides a field.
func Defaults() Conf {
	return Conf{
		IdentityServerURL: "https://identity.example.com",
		OfflineCacheDays:  7,
		PBKDF2Iterations:  100_000,
		CompressionLevel:  6,
		VaultDir:          "",
		AppVersion:        "1.0.0",
		LogLevel:          "info",
	}
}
