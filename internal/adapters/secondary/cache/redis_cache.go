package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache implémente ports.Cache : sets (relations) + clés simples
// (sessions, refresh tokens). Toujours éphémère, jamais source de vérité.
type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) SetMembers(ctx context.Context, key string) ([]string, error) {
	vals, err := c.client.SMembers(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("cache: smembers %s: %w", key, err)
	}
	return vals, nil
}

func (c *RedisCache) AddMembers(ctx context.Context, key string, vals []string, ttl time.Duration) error {
	if len(vals) == 0 {
		return nil
	}
	members := make([]interface{}, len(vals))
	for i, v := range vals {
		members[i] = v
	}
	if err := c.client.SAdd(ctx, key, members...).Err(); err != nil {
		return fmt.Errorf("cache: sadd %s: %w", key, err)
	}
	// ttl <= 0 : on ne touche pas à l'expiration existante (cas AddMember)
	if ttl > 0 {
		if err := c.client.Expire(ctx, key, ttl).Err(); err != nil {
			return fmt.Errorf("cache: expire %s: %w", key, err)
		}
	}
	return nil
}

func (c *RedisCache) RemoveMember(ctx context.Context, key, val string) error {
	if err := c.client.SRem(ctx, key, val).Err(); err != nil {
		return fmt.Errorf("cache: srem %s: %w", key, err)
	}
	return nil
}

func (c *RedisCache) Exists(ctx context.Context, key string) (bool, error) {
	n, err := c.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("cache: exists %s: %w", key, err)
	}
	return n > 0, nil
}

func (c *RedisCache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("cache: del %s: %w", key, err)
	}
	return nil
}

func (c *RedisCache) Set(ctx context.Context, key, val string, ttl time.Duration) error {
	if err := c.client.Set(ctx, key, val, ttl).Err(); err != nil {
		return fmt.Errorf("cache: set %s: %w", key, err)
	}
	return nil
}

// Get retourne "" sans erreur sur une clé absente : l'absence est une
// information normale pour les appelants (miss), pas une faute.
func (c *RedisCache) Get(ctx context.Context, key string) (string, error) {
	val, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", fmt.Errorf("cache: get %s: %w", key, err)
	}
	return val, nil
}
