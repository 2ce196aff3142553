package mq

import (
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
)

// Topic 必须由每条消息携带: Writer 上绑定了 Topic 的话，
// 带 Topic 的消息会被 kafka-go 拒绝，Publish 的 topic 参数就失效了
func TestKafkaProducerUsesPerMessageTopic(t *testing.T) {
	p := NewKafkaProducer([]string{"localhost:9092"})

	assert.Empty(t, p.writer.Topic, "writer must not pin a topic")
	assert.Equal(t, kafka.RequireAll, p.writer.RequiredAcks)
	assert.True(t, p.writer.AllowAutoTopicCreation)
}
