// cache/cache.go
package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wfunc/whotserver/engine"
	"github.com/wfunc/whotserver/models"
)

// ErrCacheMiss 缓存未命中
var ErrCacheMiss = errors.New("cache miss")

// GameCache holds delegated games between the deal and the end of play.
type GameCache interface {
	Put(ctx context.Context, g *engine.Game) error
	Get(ctx context.Context, gameID string) (*engine.Game, error)
	Delete(ctx context.Context, gameID string) error
}

const keyPrefix = "whot:game:"

// Key is the redis key holding a game snapshot.
func Key(gameID string) string {
	return keyPrefix + gameID
}

// RedisCache 使用 Redis 保存委托中的游戏
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache connects to addr and pings it once.
func NewRedisCache(ctx context.Context, addr, password string, db int, ttl time.Duration) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return &RedisCache{client: client, ttl: ttl}, nil
}

func (c *RedisCache) Put(ctx context.Context, g *engine.Game) error {
	data, err := models.EncodeGame(g)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, Key(g.ID), data, c.ttl).Err()
}

func (c *RedisCache) Get(ctx context.Context, gameID string) (*engine.Game, error) {
	data, err := c.client.Get(ctx, Key(gameID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, err
	}
	return models.DecodeGame(data)
}

func (c *RedisCache) Delete(ctx context.Context, gameID string) error {
	return c.client.Del(ctx, Key(gameID)).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

// MemoryCache is the in-process cache used when no redis is configured.
type MemoryCache struct {
	mutex sync.RWMutex
	games map[string][]byte
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{games: make(map[string][]byte)}
}

func (c *MemoryCache) Put(_ context.Context, g *engine.Game) error {
	data, err := models.EncodeGame(g)
	if err != nil {
		return err
	}
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.games[Key(g.ID)] = data
	return nil
}

func (c *MemoryCache) Get(_ context.Context, gameID string) (*engine.Game, error) {
	c.mutex.RLock()
	data, ok := c.games[Key(gameID)]
	c.mutex.RUnlock()
	if !ok {
		return nil, ErrCacheMiss
	}
	return models.DecodeGame(data)
}

func (c *MemoryCache) Delete(_ context.Context, gameID string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	delete(c.games, Key(gameID))
	return nil
}

// Len 缓存中的游戏数
func (c *MemoryCache) Len() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.games)
}
