package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/BaSui01/extractflow/llm"
)

var ErrCacheMiss = errors.New("cache miss")

// Entry 缓存条目
type Entry struct {
	Response    *llm.ChatResponse `json:"response"`
	TokensSaved int               `json:"tokens_saved"`
	CreatedAt   time.Time         `json:"created_at"`
	ExpiresAt   time.Time         `json:"expires_at"`
	HitCount    int               `json:"hit_count"`
}

// Config 缓存配置
type Config struct {
	LocalMaxSize int           // 本地缓存最大条目数
	LocalTTL     time.Duration // 本地缓存 TTL
	RedisTTL     time.Duration // Redis 缓存 TTL
	EnableLocal  bool
	EnableRedis  bool
	RedisPrefix  string                          // Redis 键前缀
	Cacheable    func(req *llm.ChatRequest) bool // 判断请求是否可缓存，nil 表示全部可缓存
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		LocalMaxSize: 1000,
		LocalTTL:     5 * time.Minute,
		RedisTTL:     1 * time.Hour,
		EnableLocal:  true,
		EnableRedis:  true,
		RedisPrefix:  "extractflow:completion:",
	}
}

// Stats 命中统计
type Stats struct {
	LocalHits int64
	RedisHits int64
	Misses    int64
}

// MultiLevelCache 多级缓存实现
type MultiLevelCache struct {
	local  *LRU
	redis  *redis.Client
	config Config
	logger *zap.Logger

	localHits atomic.Int64
	redisHits atomic.Int64
	misses    atomic.Int64
}

// NewMultiLevelCache 创建多级缓存；rdb 为 nil 时只使用本地层。
func NewMultiLevelCache(rdb *redis.Client, config *Config, logger *zap.Logger) *MultiLevelCache {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg := *config
	if cfg.RedisPrefix == "" {
		cfg.RedisPrefix = DefaultConfig().RedisPrefix
	}

	var local *LRU
	if cfg.EnableLocal {
		local = NewLRU(cfg.LocalMaxSize, cfg.LocalTTL)
	}

	return &MultiLevelCache{
		local:  local,
		redis:  rdb,
		config: cfg,
		logger: logger.With(zap.String("component", "completion_cache")),
	}
}

func (c *MultiLevelCache) redisEnabled() bool {
	return c.config.EnableRedis && c.redis != nil
}

// Get 获取缓存
func (c *MultiLevelCache) Get(ctx context.Context, key string) (*Entry, error) {
	// 1. 查本地缓存
	if c.local != nil {
		if entry, ok := c.local.Get(key); ok {
			c.localHits.Add(1)
			c.logger.Debug("local cache hit", zap.String("key", key))
			return entry, nil
		}
	}

	// 2. 查 Redis 缓存
	if c.redisEnabled() {
		data, err := c.redis.Get(ctx, c.redisKey(key)).Bytes()
		switch {
		case err == nil:
			var entry Entry
			if err := json.Unmarshal(data, &entry); err != nil {
				c.logger.Warn("discarding corrupt redis entry", zap.String("key", key), zap.Error(err))
				break
			}
			// 回填本地缓存
			if c.local != nil {
				c.local.Set(key, &entry)
			}
			c.redisHits.Add(1)
			c.logger.Debug("redis cache hit", zap.String("key", key))
			return &entry, nil
		case !errors.Is(err, redis.Nil):
			c.logger.Warn("redis get error", zap.Error(err))
		}
	}

	c.misses.Add(1)
	return nil, ErrCacheMiss
}

// Set 设置缓存
func (c *MultiLevelCache) Set(ctx context.Context, key string, entry *Entry) error {
	now := time.Now()
	entry.CreatedAt = now
	entry.ExpiresAt = now.Add(c.config.RedisTTL)

	if c.local != nil {
		c.local.Set(key, entry)
	}

	if c.redisEnabled() {
		data, err := json.Marshal(entry)
		if err != nil {
			return err
		}
		if err := c.redis.Set(ctx, c.redisKey(key), data, c.config.RedisTTL).Err(); err != nil {
			c.logger.Warn("redis set error", zap.Error(err))
			return err
		}
	}

	c.logger.Debug("cache set", zap.String("key", key))
	return nil
}

// Delete 删除缓存
func (c *MultiLevelCache) Delete(ctx context.Context, key string) error {
	if c.local != nil {
		c.local.Delete(key)
	}
	if c.redisEnabled() {
		if err := c.redis.Del(ctx, c.redisKey(key)).Err(); err != nil {
			return err
		}
	}
	return nil
}

// IsCacheable 判断请求是否可缓存
func (c *MultiLevelCache) IsCacheable(req *llm.ChatRequest) bool {
	if req == nil {
		return false
	}
	if c.config.Cacheable != nil {
		return c.config.Cacheable(req)
	}
	return true
}

// Stats 返回命中统计
func (c *MultiLevelCache) Stats() Stats {
	return Stats{
		LocalHits: c.localHits.Load(),
		RedisHits: c.redisHits.Load(),
		Misses:    c.misses.Load(),
	}
}

func (c *MultiLevelCache) redisKey(key string) string {
	return c.config.RedisPrefix + key
}
