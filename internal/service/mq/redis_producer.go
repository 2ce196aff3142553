package mq

import (
	"context"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"
)

// RedisProducer 实现 Producer 接口，底层是 Redis Streams
type RedisProducer struct {
	client *redis.Client
}

// NewRedisProducer 创建 Redis 生产者
func NewRedisProducer(client *redis.Client) *RedisProducer {
	return &RedisProducer{
		client: client,
	}
}

// Publish 发送消息到 Redis Stream (XADD)
// Stream Name = topic (e.g. "safe_events_executed")
func (p *RedisProducer) Publish(ctx context.Context, topic string, key string, payload []byte) error {
	err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: topic,
		Values: map[string]interface{}{
			"key":     key,
			"payload": payload,
		},
	}).Err()

	if err != nil {
		log.Printf("[MQ] Publish Error: %v", err)
		return fmt.Errorf("redis xadd error: %w", err)
	}

	return nil
}

// Close 只关闭 Producer 视角，底层连接由调用方管理
func (p *RedisProducer) Close() error {
	return nil
}
