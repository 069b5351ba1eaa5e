// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: BUSL-1.1

package processor

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/xcherryio/taskexpiry/config"
)

// Deduplicator remembers processed record ids for a short window.
// It only saves work, every step is idempotent without it.
type Deduplicator interface {
	IsProcessed(ctx context.Context, recordId string) (bool, error)
	MarkProcessed(ctx context.Context, recordId string) error
	Close() error
}

// RedisClient is the subset of the redis API used by the deduplicator
type RedisClient interface {
	Exists(ctx context.Context, keys ...string) *redis.IntCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Close() error
}

type redisDeduplicator struct {
	client    RedisClient
	keyPrefix string
	window    time.Duration
}

// NewDeduplicator returns the redis deduplicator when configured, else a no-op one
func NewDeduplicator(ctx context.Context, cfg config.DedupConfig) (Deduplicator, error) {
	if cfg.Redis == nil {
		return noopDeduplicator{}, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return NewRedisDeduplicator(client, cfg.Redis.KeyPrefix, cfg.Window), nil
}

func NewRedisDeduplicator(client RedisClient, keyPrefix string, window time.Duration) Deduplicator {
	return &redisDeduplicator{
		client:    client,
		keyPrefix: keyPrefix,
		window:    window,
	}
}

func (d *redisDeduplicator) IsProcessed(ctx context.Context, recordId string) (bool, error) {
	n, err := d.client.Exists(ctx, d.key(recordId)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (d *redisDeduplicator) MarkProcessed(ctx context.Context, recordId string) error {
	return d.client.Set(ctx, d.key(recordId), 1, d.window).Err()
}

func (d *redisDeduplicator) Close() error {
	return d.client.Close()
}

func (d *redisDeduplicator) key(recordId string) string {
	return d.keyPrefix + recordId
}

type noopDeduplicator struct{}

func (noopDeduplicator) IsProcessed(context.Context, string) (bool, error) {
	return false, nil
}

func (noopDeduplicator) MarkProcessed(context.Context, string) error {
	return nil
}

func (noopDeduplicator) Close() error {
	return nil
}
