package backend

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pennywise/internal/auth"
	"pennywise/internal/config"
	"pennywise/internal/core"
	"pennywise/internal/log"
)

func TestFromAppConfig(t *testing.T) {
	appCfg := &config.Config{
		DataBackend:        "sqlite",
		SQLiteDBPath:       "./data/test.db",
		SiteURL:            "http://localhost:8081",
		JWTSecret:          "secret",
		AccessTokenTTL:     time.Hour,
		GitHubClientID:     "gh-id",
		GitHubClientSecret: "gh-secret",
	}

	cfg, err := FromAppConfig(appCfg)
	require.NoError(t, err)
	assert.Equal(t, SQLiteBackend, cfg.Type)
	assert.Equal(t, "secret", cfg.Auth.JWTSecret)
	assert.Contains(t, cfg.Auth.Providers, core.ProviderGitHub)
	assert.NotContains(t, cfg.Auth.Providers, core.ProviderGoogle)
	assert.NoError(t, cfg.Validate())

	_, err = FromAppConfig(&config.Config{DataBackend: "sheets"})
	assert.Error(t, err)
	_, err = FromAppConfig(nil)
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	assert.Error(t, Config{Type: "nope"}.Validate())
	assert.Error(t, Config{Type: PostgresBackend, Auth: authCfg()}.Validate())
	assert.Error(t, Config{Type: MemoryBackend}.Validate(), "jwt secret required")
	assert.Error(t, Config{Type: MemoryBackend, Auth: authCfg(), AMQPURL: "amqp://localhost/"}.Validate())
	assert.NoError(t, Config{Type: MemoryBackend, Auth: authCfg()}.Validate())
	assert.Equal(t, []string{"sqlite", "postgres", "memory"}, GetBackendTypeStrings())
}

func TestCreateMemoryBackend(t *testing.T) {
	result, err := NewFactory(log.Discard()).CreateBackend(context.Background(), Config{Type: MemoryBackend, Auth: authCfg()})
	require.NoError(t, err)
	defer result.Cleanup()

	client := result.Client
	require.NotNil(t, client.Auth)
	assert.Nil(t, client.Ledger)
	assert.NoError(t, client.Ping(context.Background()))

	currencies, err := client.Currencies.ListCurrencies(context.Background())
	require.NoError(t, err)
	assert.Len(t, currencies, 8)

	session, err := client.Auth.SignUp(context.Background(), "ada@example.com", "secret1", "Ada")
	require.NoError(t, err)
	user, err := result.AuthService.GetUser(context.Background(), session.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "Ada", user.FullName)
}

func TestCreateSQLiteBackend(t *testing.T) {
	cfg := Config{
		Type:         SQLiteBackend,
		SQLiteDBPath: filepath.Join(t.TempDir(), "pennywise.db"),
		Auth:         authCfg(),
	}
	result, err := NewFactory(nil).CreateBackend(context.Background(), cfg)
	require.NoError(t, err)

	eur, err := result.Client.Currencies.GetCurrency(context.Background(), "EUR")
	require.NoError(t, err)
	assert.Equal(t, "€", eur.Symbol)
	assert.NoError(t, result.Cleanup())
}

func authCfg() auth.Config {
	return auth.Config{SiteURL: "http://localhost:8081", JWTSecret: "secret"}
}
