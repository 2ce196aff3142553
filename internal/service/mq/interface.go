package mq

import "context"

// Producer 屏蔽消息队列实现 (Kafka / Redis Streams)
type Producer interface {
	Publish(ctx context.Context, topic string, key string, payload []byte) error
	Close() error
}
