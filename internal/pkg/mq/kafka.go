// internal/pkg/mq/kafka.go
package mq

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
)

// 死信消息携带的头部，记录原始位置和失败原因
const (
	HeaderOriginalTopic     = "x-original-topic"
	HeaderOriginalPartition = "x-original-partition"
	HeaderOriginalOffset    = "x-original-offset"
	HeaderExceptionFqcn     = "x-exception-fqcn"
	HeaderExceptionMessage  = "x-exception-message"
)

// KafkaHeaderCarrier 让 kafka 消息头实现 propagation.TextMapCarrier，
// 用于在生产者和消费者之间传递追踪上下文。
type KafkaHeaderCarrier []kafka.Header

func (c *KafkaHeaderCarrier) Get(key string) string {
	for _, h := range *c {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func (c *KafkaHeaderCarrier) Set(key, value string) {
	for i, h := range *c {
		if h.Key == key {
			(*c)[i].Value = []byte(value)
			return
		}
	}
	*c = append(*c, kafka.Header{Key: key, Value: []byte(value)})
}

func (c *KafkaHeaderCarrier) Keys() []string {
	keys := make([]string, 0, len(*c))
	for _, h := range *c {
		keys = append(keys, h.Key)
	}
	return keys
}

// NewKafkaWriter 创建一个写入指定 topic 的生产者
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{}, // 同一个 key（用户）落在同一分区，保证顺序
		RequiredAcks:           kafka.RequireAll,
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
}

// NewKafkaReader 创建一个属于消费组的消费者，offset 由调用方手动提交
func NewKafkaReader(brokers []string, topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0,
	})
}

// NewKafkaGroupReader 与 NewKafkaReader 相同，但同时订阅多个 topic
func NewKafkaGroupReader(brokers []string, topics []string, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupTopics:    topics,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0,
	})
}

// MessageWriter 是 *kafka.Writer 的写入部分，测试中可以替换
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// ProduceMessage 发送一条消息，并把当前 ctx 的追踪信息注入消息头
func ProduceMessage(ctx context.Context, writer MessageWriter, key, value []byte) error {
	headers := KafkaHeaderCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, &headers)

	return writer.WriteMessages(ctx, kafka.Message{
		Key:     key,
		Value:   value,
		Headers: headers,
		Time:    time.Now(),
	})
}

// ForwardToDLT 把无法处理的消息原样转发到死信 topic，并附带失败原因
func ForwardToDLT(ctx context.Context, dlt MessageWriter, msg kafka.Message, cause error) error {
	headers := KafkaHeaderCarrier(append([]kafka.Header{}, msg.Headers...))
	headers.Set(HeaderOriginalTopic, msg.Topic)
	headers.Set(HeaderOriginalPartition, strconv.Itoa(msg.Partition))
	headers.Set(HeaderOriginalOffset, strconv.FormatInt(msg.Offset, 10))
	headers.Set(HeaderExceptionFqcn, errorType(cause))
	headers.Set(HeaderExceptionMessage, cause.Error())

	return dlt.WriteMessages(ctx, kafka.Message{
		Key:     msg.Key,
		Value:   msg.Value,
		Headers: headers,
		Time:    time.Now(),
	})
}

func errorType(err error) string {
	return fmt.Sprintf("%T", errors.Cause(err))
}
