package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Mode:   ModeFull,
		Server: ServerConfig{Port: 8080},
		Edge:   EdgeConfig{MaxHops: 5},
		Store:  StoreConfig{Backend: "redis"},
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ModeFull, cfg.Mode)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 5, cfg.Edge.MaxHops)
	assert.Equal(t, "redis", cfg.Store.Backend)
	assert.Equal(t, "config", cfg.Store.Key)
	assert.Equal(t, 30, cfg.Store.CacheTTLSeconds)
	assert.Equal(t, 15, cfg.Dispatch.TimeoutSeconds)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
mode: lite
server:
  port: 9090
store:
  backend: file
  file:
    path: /etc/edge/routing.json
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ModeLite, cfg.Mode)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "file", cfg.Store.Backend)
	assert.Equal(t, "/etc/edge/routing.json", cfg.Store.File.Path)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("EDGE_MODE", "lite")
	t.Setenv("EDGE_INGEST_KEYS", "key-a, key-b ,,key-c")
	t.Setenv("STORE_BACKEND", "file")
	t.Setenv("EDGE_MAX_HOPS", "3")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ModeLite, cfg.Mode)
	assert.Equal(t, []string{"key-a", "key-b", "key-c"}, cfg.Edge.IngestKeys)
	assert.Equal(t, "file", cfg.Store.Backend)
	assert.Equal(t, 3, cfg.Edge.MaxHops)
}

func TestParseCommaList(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{in: "", want: nil},
		{in: "   ", want: nil},
		{in: "one", want: []string{"one"}},
		{in: "a,b,c", want: []string{"a", "b", "c"}},
		{in: " a , ,b, ", want: []string{"a", "b"}},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseCommaList(tt.in))
	}
}

func TestValidateStatic(t *testing.T) {
	assert.NoError(t, ValidateStatic(validConfig()))

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "bad mode", mutate: func(c *Config) { c.Mode = "hybrid" }},
		{name: "port zero", mutate: func(c *Config) { c.Server.Port = 0 }},
		{name: "port too high", mutate: func(c *Config) { c.Server.Port = 70000 }},
		{name: "max hops zero", mutate: func(c *Config) { c.Edge.MaxHops = 0 }},
		{name: "lite bad backend", mutate: func(c *Config) {
			c.Mode = ModeLite
			c.Store.Backend = "s3"
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			assert.Error(t, ValidateStatic(cfg))
		})
	}
}

func TestValidateStaticBackendOnlyCheckedInLite(t *testing.T) {
	cfg := validConfig()
	cfg.Store.Backend = "s3"
	assert.NoError(t, ValidateStatic(cfg), "store backend is a lite-mode concern")
}

func TestResolvedUpstreamURL(t *testing.T) {
	tests := []struct {
		name string
		cfg  UpstreamConfig
		want string
	}{
		{
			name: "explicit URL wins",
			cfg: UpstreamConfig{
				IngestURL: "https://up.example.com/custom",
				BaseURL:   "https://ignored.example.com",
			},
			want: "https://up.example.com/custom",
		},
		{
			name: "derived from base and endpoint",
			cfg:  UpstreamConfig{BaseURL: "https://up.example.com/", EndpointID: "ep-1"},
			want: "https://up.example.com/api/ingest/ep-1",
		},
		{
			name: "base alone is not enough",
			cfg:  UpstreamConfig{BaseURL: "https://up.example.com"},
			want: "",
		},
		{
			name: "unconfigured",
			cfg:  UpstreamConfig{},
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cfg.ResolvedUpstreamURL())
		})
	}
}
