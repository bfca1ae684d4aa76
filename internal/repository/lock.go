package repository

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

const lockKeyPrefix = "pipeline:lock:"

// RedisLock 基于 Redis SETNX 的分布式锁。
type RedisLock struct {
	rdb *redis.Client
}

// NewRedisLock 创建分布式锁实例。
func NewRedisLock(rdb *redis.Client) *RedisLock {
	return &RedisLock{rdb: rdb}
}

// Acquire 尝试获取锁，返回是否成功。锁带 TTL，持有者崩溃后自动释放。
func (l *RedisLock) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return l.rdb.SetNX(ctx, lockKeyPrefix+key, 1, ttl).Result()
}

// Release 释放锁。
func (l *RedisLock) Release(ctx context.Context, key string) error {
	return l.rdb.Del(ctx, lockKeyPrefix+key).Err()
}
