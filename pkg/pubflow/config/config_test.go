package config_test

import (
	"testing"

	"github.com/pubflow/pubflow/pkg/pubflow"
	"github.com/pubflow/pubflow/pkg/pubflow/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRegistry(t *testing.T) *pubflow.Registry {
	t.Helper()
	r, err := pubflow.NewRegistry(pubflow.TypeDescriptor{Name: "article"})
	require.NoError(t, err)
	return r
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "link", cfg.MediaBackend)
	assert.Equal(t, []string{"en"}, cfg.SupportedLanguages())
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("LANGUAGES", "ru, en")
	t.Setenv("BASE_URL", "https://news.example")
	t.Setenv("SITEMAP_SHARD_SIZE", "1000")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, []string{"ru", "en"}, cfg.SupportedLanguages())
	assert.Equal(t, "https://news.example", cfg.BaseURL)
	assert.Equal(t, 1000, cfg.SitemapShardSize)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(c *config.ServerConfig)
		expectError bool
	}{
		{
			name:   "defaults are valid",
			mutate: func(c *config.ServerConfig) {},
		},
		{
			name:        "empty port fails",
			mutate:      func(c *config.ServerConfig) { c.Port = "" },
			expectError: true,
		},
		{
			name:        "bogus database url fails",
			mutate:      func(c *config.ServerConfig) { c.DatabaseURL = "mysql://nope" },
			expectError: true,
		},
		{
			name:   "postgres database url passes",
			mutate: func(c *config.ServerConfig) { c.DatabaseURL = "postgres://u:p@localhost/db" },
		},
		{
			name:        "fs media backend without url prefix fails",
			mutate:      func(c *config.ServerConfig) { c.MediaBackend = "fs" },
			expectError: true,
		},
		{
			name:        "s3 media backend without bucket fails",
			mutate:      func(c *config.ServerConfig) { c.MediaBackend = "s3" },
			expectError: true,
		},
		{
			name:        "unknown media backend fails",
			mutate:      func(c *config.ServerConfig) { c.MediaBackend = "tape" },
			expectError: true,
		},
		{
			name:        "empty language list fails",
			mutate:      func(c *config.ServerConfig) { c.Languages = " , " },
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := config.Load()
			require.NoError(t, err)
			tt.mutate(cfg)

			err = cfg.Validate()
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestBuildServiceWithDefaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)
	cfg.OutputDir = t.TempDir()

	svc, err := cfg.BuildService(testRegistry(t))
	require.NoError(t, err)
	assert.NotNil(t, svc)
	assert.True(t, svc.Registry().Has("article"))
}

func TestBuildServiceWithFsMedia(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)
	cfg.OutputDir = t.TempDir()
	cfg.MediaBackend = "fs"
	cfg.Media.BaseDir = t.TempDir()
	cfg.Media.URLPrefix = "https://news.example/media"

	svc, err := cfg.BuildService(testRegistry(t))
	require.NoError(t, err)
	assert.NotNil(t, svc)
}
