// Package config loads and validates app config from env and an
// optional .env file using Viper, and builds the key ring from the
// configured key material.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"

	"commauth/internal/provider"
	"commauth/internal/security"
	"commauth/internal/token"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP server listens on (e.g. :8080).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// DatabaseURL is the Postgres DSN.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// ServerURL is the plugin's externally reachable base URL; guests
	// are sent here by the auth-select widget.
	ServerURL string `mapstructure:"SERVER_URL"`
	// InternalURL is the base URL the broker core uses to reach the
	// plugin, e.g. for auth-result delivery.
	InternalURL string `mapstructure:"INTERNAL_URL"`
	// CoreURL is the broker core's base URL.
	CoreURL string `mapstructure:"CORE_URL"`
	// WidgetURL is the auth-select widget's base URL.
	WidgetURL string `mapstructure:"WIDGET_URL"`
	// DisplayName is the communication method's display name shown in
	// the auth-select widget.
	DisplayName string `mapstructure:"DISPLAY_NAME"`

	// DecryptionPrivKey opens attribute bundle JWEs. PEM inline
	// (literal \n allowed) or a file path, like all key fields below.
	DecryptionPrivKey string `mapstructure:"DECRYPTION_PRIVKEY"`
	// SignaturePubKey verifies the JWS nested in attribute bundles.
	SignaturePubKey string `mapstructure:"SIGNATURE_PUBKEY"`
	// WidgetSigningPrivKey signs auth-select widget parameters.
	WidgetSigningPrivKey string `mapstructure:"WIDGET_SIGNING_PRIVKEY"`
	// StartAuthSigningPrivKey signs start-authentication requests.
	StartAuthSigningPrivKey string `mapstructure:"START_AUTH_SIGNING_PRIVKEY"`
	// StartAuthKeyID is the kid the broker core expects on
	// start-authentication requests.
	StartAuthKeyID string `mapstructure:"START_AUTH_KEY_ID"`
	// GuestSignatureSecret verifies guest platform tokens (HS256).
	// Hex-encoded secrets are decoded; anything else is used as-is.
	GuestSignatureSecret string `mapstructure:"GUEST_SIGNATURE_SECRET"`
	// HostSignatureSecret verifies host platform tokens (HS256).
	HostSignatureSecret string `mapstructure:"HOST_SIGNATURE_SECRET"`

	// AuthProvider selects the OAuth identity provider: google or microsoft.
	AuthProvider string `mapstructure:"AUTH_PROVIDER"`
	// OAuthClientID and OAuthClientSecret identify this plugin at the provider.
	OAuthClientID     string `mapstructure:"OAUTH_CLIENT_ID"`
	OAuthClientSecret string `mapstructure:"OAUTH_CLIENT_SECRET"`
	// OAuthRedirectURL is the registered redirect endpoint
	// (typically SERVER_URL + /auth/redirect).
	OAuthRedirectURL string `mapstructure:"OAUTH_REDIRECT_URL"`

	// CleanInterval is how often the session sweeper runs (e.g. "5m").
	CleanInterval string `mapstructure:"CLEAN_INTERVAL"`
}

// Load reads .env (if present), then builds and validates Config from
// the environment via Viper. Missing .env is ignored (e.g. in CI). Env
// vars override .env.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("SERVER_URL", "")
	v.SetDefault("INTERNAL_URL", "")
	v.SetDefault("CORE_URL", "")
	v.SetDefault("WIDGET_URL", "")
	v.SetDefault("DISPLAY_NAME", "")
	v.SetDefault("DECRYPTION_PRIVKEY", "")
	v.SetDefault("SIGNATURE_PUBKEY", "")
	v.SetDefault("WIDGET_SIGNING_PRIVKEY", "")
	v.SetDefault("START_AUTH_SIGNING_PRIVKEY", "")
	v.SetDefault("START_AUTH_KEY_ID", "")
	v.SetDefault("GUEST_SIGNATURE_SECRET", "")
	v.SetDefault("HOST_SIGNATURE_SECRET", "")
	v.SetDefault("AUTH_PROVIDER", "")
	v.SetDefault("OAUTH_CLIENT_ID", "")
	v.SetDefault("OAUTH_CLIENT_SECRET", "")
	v.SetDefault("OAUTH_REDIRECT_URL", "")
	v.SetDefault("CLEAN_INTERVAL", "5m")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}
	if cfg.DatabaseURL == "" {
		return nil, errors.New("config: DATABASE_URL must be set")
	}
	for name, val := range map[string]string{
		"SERVER_URL":   cfg.ServerURL,
		"CORE_URL":     cfg.CoreURL,
		"WIDGET_URL":   cfg.WidgetURL,
		"DISPLAY_NAME": cfg.DisplayName,
	} {
		if val == "" {
			return nil, fmt.Errorf("config: %s must be set", name)
		}
	}
	if cfg.InternalURL == "" {
		cfg.InternalURL = cfg.ServerURL
	}
	if cfg.AuthProvider != "" {
		if _, err := provider.ParseKind(cfg.AuthProvider); err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
	}

	return &cfg, nil
}

// CleanIntervalDuration parses CleanInterval. Returns 5m if unset or invalid.
func (c *Config) CleanIntervalDuration() time.Duration {
	d, err := time.ParseDuration(c.CleanInterval)
	if err != nil || d <= 0 {
		return 5 * time.Minute
	}
	return d
}

// Keys builds the key ring from the configured key material. All
// parsing and signer selection happens here, once; the returned ring
// is read-only.
func (c *Config) Keys() (*token.KeyRing, error) {
	decrypter, err := security.ParsePrivateKey(c.DecryptionPrivKey)
	if err != nil {
		return nil, fmt.Errorf("config: DECRYPTION_PRIVKEY: %w", err)
	}
	verifier, err := security.ParsePublicKey(c.SignaturePubKey)
	if err != nil {
		return nil, fmt.Errorf("config: SIGNATURE_PUBKEY: %w", err)
	}
	widgetKey, err := security.ParsePrivateKey(c.WidgetSigningPrivKey)
	if err != nil {
		return nil, fmt.Errorf("config: WIDGET_SIGNING_PRIVKEY: %w", err)
	}
	widgetSigner, err := token.NewSigner(widgetKey)
	if err != nil {
		return nil, fmt.Errorf("config: WIDGET_SIGNING_PRIVKEY: %w", err)
	}
	startAuthKey, err := security.ParsePrivateKey(c.StartAuthSigningPrivKey)
	if err != nil {
		return nil, fmt.Errorf("config: START_AUTH_SIGNING_PRIVKEY: %w", err)
	}
	startAuthSigner, err := token.NewSignerWithKeyID(startAuthKey, c.StartAuthKeyID)
	if err != nil {
		return nil, fmt.Errorf("config: START_AUTH_SIGNING_PRIVKEY: %w", err)
	}
	guestSecret, err := parseSecret(c.GuestSignatureSecret)
	if err != nil {
		return nil, fmt.Errorf("config: GUEST_SIGNATURE_SECRET: %w", err)
	}
	hostSecret, err := parseSecret(c.HostSignatureSecret)
	if err != nil {
		return nil, fmt.Errorf("config: HOST_SIGNATURE_SECRET: %w", err)
	}

	return &token.KeyRing{
		AttributeVerifier:  verifier,
		AttributeDecrypter: decrypter,
		WidgetSigner:       widgetSigner,
		StartAuthSigner:    startAuthSigner,
		GuestSecret:        guestSecret,
		HostSecret:         hostSecret,
	}, nil
}

// Provider builds the configured OAuth identity provider, or nil when
// AUTH_PROVIDER is unset (login routes disabled).
func (c *Config) Provider() (*provider.Provider, error) {
	if c.AuthProvider == "" {
		return nil, nil
	}
	kind, err := provider.ParseKind(c.AuthProvider)
	if err != nil {
		return nil, err
	}
	return provider.New(kind, c.OAuthClientID, c.OAuthClientSecret, c.OAuthRedirectURL)
}

// parseSecret validates an HMAC secret. The platform hands secrets out
// as hex strings whose bytes are used verbatim as key material.
func parseSecret(s string) ([]byte, error) {
	if s == "" {
		return nil, errors.New("empty secret")
	}
	return []byte(s), nil
}
