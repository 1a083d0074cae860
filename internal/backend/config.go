package backend

import (
	"fmt"
	"time"

	"pennywise/internal/auth"
	"pennywise/internal/config"
	"pennywise/internal/core"
)

// Config selects and parameterises the data client implementation.
type Config struct {
	Type BackendType

	SQLiteDBPath string
	DatabaseURL  string

	Auth auth.Config

	// AMQP is optional; without it reset links are logged and ledger
	// sync is disabled.
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	CurrencyCacheTTL time.Duration
}

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	backendType := BackendType(appConfig.DataBackend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.DataBackend)
	}

	providers := make(map[string]auth.ProviderConfig)
	if appConfig.OAuthEnabled(core.ProviderGoogle) {
		providers[core.ProviderGoogle] = auth.ProviderConfig{
			ClientID:     appConfig.GoogleClientID,
			ClientSecret: appConfig.GoogleClientSecret,
		}
	}
	if appConfig.OAuthEnabled(core.ProviderGitHub) {
		providers[core.ProviderGitHub] = auth.ProviderConfig{
			ClientID:     appConfig.GitHubClientID,
			ClientSecret: appConfig.GitHubClientSecret,
		}
	}

	return Config{
		Type:         backendType,
		SQLiteDBPath: appConfig.SQLiteDBPath,
		DatabaseURL:  appConfig.DatabaseURL,
		Auth: auth.Config{
			SiteURL:         appConfig.SiteURL,
			JWTSecret:       appConfig.JWTSecret,
			AccessTokenTTL:  appConfig.AccessTokenTTL,
			RefreshTokenTTL: appConfig.RefreshTokenTTL,
			Providers:       providers,
		},
		AMQPURL:          appConfig.AMQPURL,
		AMQPExchange:     appConfig.AMQPExchange,
		AMQPQueue:        appConfig.AMQPQueue,
		CurrencyCacheTTL: defaultCurrencyCacheTTL,
	}, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}

	switch c.Type {
	case SQLiteBackend:
		if c.SQLiteDBPath == "" {
			return fmt.Errorf("SQLite database path is required for sqlite backend")
		}
	case PostgresBackend:
		if c.DatabaseURL == "" {
			return fmt.Errorf("database URL is required for postgres backend")
		}
	case MemoryBackend:
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT secret is required")
	}
	if c.AMQPURL != "" && (c.AMQPExchange == "" || c.AMQPQueue == "") {
		return fmt.Errorf("AMQP exchange and queue are required when AMQP URL is set")
	}
	return nil
}

// GetBackendTypes returns all valid backend types
func GetBackendTypes() []BackendType {
	return []BackendType{SQLiteBackend, PostgresBackend, MemoryBackend}
}

// GetBackendTypeStrings returns all valid backend type strings
func GetBackendTypeStrings() []string {
	types := GetBackendTypes()
	strings := make([]string, len(types))
	for i, t := range types {
		strings[i] = t.String()
	}
	return strings
}
