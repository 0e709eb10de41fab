package routing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/coachpo/beacon-spear-edge/internal/config"
)

// ErrNotFound means the configured backend holds no routing config.
var ErrNotFound = errors.New("routing config not found")

// Store supplies the routing config snapshot for one request.
type Store interface {
	Load(ctx context.Context) (*Config, error)
}

// NewStore builds the backend selected by the store config, wrapped in a
// best-effort cache when a TTL is configured.
func NewStore(cfg config.StoreConfig) (Store, error) {
	var inner Store
	switch cfg.Backend {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		inner = NewRedisStore(client, cfg.Key)
	case "file":
		inner = NewFileStore(cfg.File.Path)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}

	if cfg.CacheTTLSeconds > 0 {
		inner = NewCachedStore(inner, time.Duration(cfg.CacheTTLSeconds)*time.Second)
	}
	return inner, nil
}

// RedisStore reads the routing config JSON from a single redis key.
type RedisStore struct {
	client *redis.Client
	key    string
}

func NewRedisStore(client *redis.Client, key string) *RedisStore {
	return &RedisStore{client: client, key: key}
}

func (s *RedisStore) Load(ctx context.Context) (*Config, error) {
	raw, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load routing config from redis: %w", err)
	}
	return decode(raw)
}

// FileStore reads the routing config JSON from disk on every load, for
// standalone nodes provisioned by file drop.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Load(_ context.Context) (*Config, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read routing config file: %w", err)
	}
	return decode(raw)
}

// StaticStore serves a fixed snapshot; used in tests.
type StaticStore struct {
	cfg *Config
}

func NewStaticStore(cfg *Config) *StaticStore {
	return &StaticStore{cfg: cfg}
}

func (s *StaticStore) Load(_ context.Context) (*Config, error) {
	if s.cfg == nil {
		return nil, ErrNotFound
	}
	return s.cfg, nil
}

// CachedStore keeps the last loaded snapshot for a short TTL. Purely an
// optimization: a stale read is acceptable, a failed refresh is not masked.
type CachedStore struct {
	inner Store
	ttl   time.Duration

	mu        sync.Mutex
	cached    *Config
	fetchedAt time.Time
}

func NewCachedStore(inner Store, ttl time.Duration) *CachedStore {
	return &CachedStore{inner: inner, ttl: ttl}
}

func (s *CachedStore) Load(ctx context.Context) (*Config, error) {
	s.mu.Lock()
	if s.cached != nil && time.Since(s.fetchedAt) < s.ttl {
		cfg := s.cached
		s.mu.Unlock()
		return cfg, nil
	}
	s.mu.Unlock()

	cfg, err := s.inner.Load(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.cached = cfg
	s.fetchedAt = time.Now()
	s.mu.Unlock()
	return cfg, nil
}

func decode(raw []byte) (*Config, error) {
	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode routing config: %w", err)
	}
	return &cfg, nil
}
