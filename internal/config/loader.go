package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

func Load(configFile string) (*Config, error) {
	viper.Reset()

	viper.SetConfigType("yaml")

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	bindEnvVariables()
	setDefaults()

	if configFile != "" {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			if _, statErr := os.Stat(configFile); statErr == nil {
				return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
			}
			return nil, fmt.Errorf("config file %s not found: %w", configFile, err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyEnvOverrides(&cfg)

	if err := ValidateStatic(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

func bindEnvVariables() {
	viper.BindEnv("mode", "EDGE_MODE")

	viper.BindEnv("edge.name", "EDGE_NAME")
	viper.BindEnv("edge.ingest_keys", "EDGE_INGEST_KEYS")
	viper.BindEnv("edge.expect_endpoint_id", "EDGE_EXPECT_ENDPOINT_ID")
	viper.BindEnv("edge.max_hops", "EDGE_MAX_HOPS")

	viper.BindEnv("upstream.ingest_url", "UPSTREAM_INGEST_URL")
	viper.BindEnv("upstream.ingest_key", "UPSTREAM_INGEST_KEY")
	viper.BindEnv("upstream.base_url", "UPSTREAM_BASE_URL")
	viper.BindEnv("upstream.endpoint_id", "UPSTREAM_ENDPOINT_ID")

	viper.BindEnv("store.backend", "STORE_BACKEND")
	viper.BindEnv("store.key", "STORE_KEY")
	viper.BindEnv("store.redis.addr", "STORE_REDIS_ADDR")
	viper.BindEnv("store.redis.password", "STORE_REDIS_PASSWORD")
	viper.BindEnv("store.redis.db", "STORE_REDIS_DB")
	viper.BindEnv("store.file.path", "STORE_FILE_PATH")

	viper.BindEnv("server.port", "SERVER_PORT")
	viper.BindEnv("server.read_timeout_seconds", "SERVER_READ_TIMEOUT_SECONDS")
	viper.BindEnv("server.write_timeout_seconds", "SERVER_WRITE_TIMEOUT_SECONDS")

	viper.BindEnv("logging.level", "LOGGING_LEVEL")
	viper.BindEnv("logging.format", "LOGGING_FORMAT")
}

func setDefaults() {
	viper.SetDefault("mode", ModeFull)
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout_seconds", 30)
	viper.SetDefault("server.write_timeout_seconds", 30)
	viper.SetDefault("edge.max_hops", 5)
	viper.SetDefault("store.backend", "redis")
	viper.SetDefault("store.key", "config")
	viper.SetDefault("store.cache_ttl_seconds", 30)
	viper.SetDefault("dispatch.timeout_seconds", 15)
	viper.SetDefault("logging.level", "info")
}

// EDGE_INGEST_KEYS arrives as one comma-separated value; viper unmarshals it
// as a single-element slice.
func applyEnvOverrides(cfg *Config) {
	if len(cfg.Edge.IngestKeys) == 1 && strings.Contains(cfg.Edge.IngestKeys[0], ",") {
		cfg.Edge.IngestKeys = ParseCommaList(cfg.Edge.IngestKeys[0])
	}
}

// ParseCommaList splits a comma-separated value, trimming blanks.
func ParseCommaList(value string) []string {
	raw := strings.TrimSpace(value)
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
