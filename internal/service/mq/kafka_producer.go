package mq

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaProducer 实现 Producer 接口
type KafkaProducer struct {
	writer *kafka.Writer
}

// NewKafkaProducer 创建 Kafka 生产者
// brokers: Kafka 节点地址列表 (e.g. ["localhost:9092"])
// Topic 不在 Writer 上绑定，由每条消息自带，和 RedisProducer 语义一致
func NewKafkaProducer(brokers []string) *KafkaProducer {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},    // 按 Key 哈希，同一个 Safe 的事件保持有序
		AllowAutoTopicCreation: true,             // 开发环境允许自动创建 Topic
		RequiredAcks:           kafka.RequireAll, // 等待所有 ISR 副本确认
		BatchSize:              100,
		BatchTimeout:           10 * time.Millisecond,
	}

	return &KafkaProducer{
		writer: writer,
	}
}

// Publish 发送消息到 Kafka
func (p *KafkaProducer) Publish(ctx context.Context, topic string, key string, payload []byte) error {
	msg := kafka.Message{
		Topic: topic,
		Value: payload,
		Key:   []byte(key), // Key 保证分区内有序
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		log.Printf("[Kafka] Publish Error: %v", err)
		return fmt.Errorf("kafka write error: %w", err)
	}

	return nil
}

// Close 关闭连接
func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}
