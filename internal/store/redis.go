package store

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis stores every key as a plain string under a prefix.
type Redis struct {
	Client *redis.Client
	prefix string
}

var _ KV = (*Redis)(nil)

// NewRedis connects to redis with short timeouts.
func NewRedis(addr, prefix string) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  1 * time.Second,
		WriteTimeout: 1 * time.Second,
	})
	return NewRedisFromClient(client, prefix)
}

// NewRedisFromClient wraps an existing client.
func NewRedisFromClient(client *redis.Client, prefix string) *Redis {
	return &Redis{Client: client, prefix: prefix}
}

func (r *Redis) Get(ctx context.Context, key string) (string, error) {
	v, err := r.Client.Get(ctx, r.prefix+key).Result()
	if err == redis.Nil {
		return "", ErrNotFound
	}
	return v, err
}

func (r *Redis) Set(ctx context.Context, key, value string) error {
	return r.Client.Set(ctx, r.prefix+key, value, 0).Err()
}

func (r *Redis) Remove(ctx context.Context, key string) error {
	return r.Client.Del(ctx, r.prefix+key).Err()
}

// Ping verifies redis connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	return r.Client.Ping(ctx).Err()
}

func (r *Redis) Close() error {
	if r == nil || r.Client == nil {
		return nil
	}
	return r.Client.Close()
}
