package config

import "strings"

// Mode selects how the edge node terminates an ingest request.
const (
	ModeFull = "full"
	ModeLite = "lite"
)

type Config struct {
	Mode      string          `mapstructure:"mode"`
	Server    ServerConfig    `mapstructure:"server"`
	Edge      EdgeConfig      `mapstructure:"edge"`
	Upstream  UpstreamConfig  `mapstructure:"upstream"`
	Store     StoreConfig     `mapstructure:"store"`
	Dispatch  DispatchConfig  `mapstructure:"dispatch"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

type ServerConfig struct {
	Port                int `mapstructure:"port"`
	ReadTimeoutSeconds  int `mapstructure:"read_timeout_seconds"`
	WriteTimeoutSeconds int `mapstructure:"write_timeout_seconds"`
}

// EdgeConfig carries the node's own identity and inbound auth material.
type EdgeConfig struct {
	Name             string   `mapstructure:"name"`
	IngestKeys       []string `mapstructure:"ingest_keys"`
	ExpectEndpointID string   `mapstructure:"expect_endpoint_id"`
	MaxHops          int      `mapstructure:"max_hops"`
}

// UpstreamConfig is only consulted in full mode.
type UpstreamConfig struct {
	IngestURL  string `mapstructure:"ingest_url"`
	IngestKey  string `mapstructure:"ingest_key"`
	BaseURL    string `mapstructure:"base_url"`
	EndpointID string `mapstructure:"endpoint_id"`
}

// StoreConfig selects the routing-config backend for lite mode.
type StoreConfig struct {
	Backend         string      `mapstructure:"backend"` // "redis" or "file"
	Key             string      `mapstructure:"key"`
	CacheTTLSeconds int         `mapstructure:"cache_ttl_seconds"`
	Redis           RedisConfig `mapstructure:"redis"`
	File            FileConfig  `mapstructure:"file"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type FileConfig struct {
	Path string `mapstructure:"path"`
}

type DispatchConfig struct {
	TimeoutSeconds int           `mapstructure:"timeout_seconds"`
	Breaker        BreakerConfig `mapstructure:"breaker"`
}

type BreakerConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	MaxRequests uint32  `mapstructure:"max_requests"`
	IntervalSec int     `mapstructure:"interval_seconds"`
	TimeoutSec  int     `mapstructure:"timeout_seconds"`
	MinRequests uint32  `mapstructure:"min_requests"`
	FailRatio   float64 `mapstructure:"failure_ratio"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type RateLimitConfig struct {
	Enabled bool    `mapstructure:"enabled"`
	RPS     float64 `mapstructure:"rps"`
	Burst   int     `mapstructure:"burst"`
}

// ResolvedUpstreamURL returns the upstream ingest URL, deriving it from the
// base URL + endpoint id when no explicit URL is configured. Empty means
// the node is not configured for forwarding.
func (c UpstreamConfig) ResolvedUpstreamURL() string {
	if u := strings.TrimSpace(c.IngestURL); u != "" {
		return u
	}
	base := strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	endpointID := strings.TrimSpace(c.EndpointID)
	if base != "" && endpointID != "" {
		return base + "/api/ingest/" + endpointID
	}
	return ""
}
