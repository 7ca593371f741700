package app_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/nepjol-importer/internal/app"
	"github.com/JakeFAU/nepjol-importer/internal/config"
)

func memoryConfig() config.Config {
	return config.Config{
		Server:  config.ServerConfig{Port: 8080},
		Source:  config.SourceConfig{BaseURL: "https://nepjol.test", IndexPath: "/index.php/index"},
		HTTP:    config.HTTPConfig{TimeoutSeconds: 5, DownloadTimeoutSeconds: 5},
		Import:  config.ImportConfig{SkipDuplicates: true, DownloadPDFs: true},
		Status:  config.StatusConfig{Backend: config.BackendMemory, TTLHours: 1},
		Catalog: config.CatalogConfig{Backend: config.BackendMemory},
		Storage: config.StorageConfig{Backend: "memory"},
	}
}

func TestNewWithMemoryBackends(t *testing.T) {
	t.Parallel()

	a, err := app.New(context.Background(), memoryConfig(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, a.Close()) })

	require.NotNil(t, a.Service)
	require.NoError(t, a.Ready(context.Background()))

	st, err := a.Service.Status(context.Background())
	require.NoError(t, err)
	assert.False(t, st.IsRunning)

	rec := httptest.NewRecorder()
	a.Server().Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestNewWithLocalStorage(t *testing.T) {
	t.Parallel()

	cfg := memoryConfig()
	cfg.Storage = config.StorageConfig{Backend: "local", BaseDir: t.TempDir()}
	a, err := app.New(context.Background(), cfg, nil)
	require.NoError(t, err)
	require.NoError(t, a.Close())
	require.NoError(t, a.Close(), "second close is a no-op")
}

func TestNewFailsOnBadDSN(t *testing.T) {
	t.Parallel()

	cfg := memoryConfig()
	cfg.Catalog.Backend = config.BackendPostgres
	cfg.DB.DSN = "::not a dsn::"
	_, err := app.New(context.Background(), cfg, nil)
	require.Error(t, err)
}

func TestNewFailsOnUnknownStorage(t *testing.T) {
	t.Parallel()

	cfg := memoryConfig()
	cfg.Storage.Backend = "ftp"
	_, err := app.New(context.Background(), cfg, nil)
	require.Error(t, err)
}
