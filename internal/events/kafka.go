package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/d60-Lab/hijabworld/pkg/logger"
)

// NotificationEvent 通知事件，下游（邮件/推送）消费
type NotificationEvent struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId"`
	Type       string    `json:"type"`
	Title      string    `json:"title"`
	Message    string    `json:"message"`
	OrderID    string    `json:"orderId,omitempty"`
	Link       string    `json:"link,omitempty"`
	Priority   string    `json:"priority"`
	OccurredAt time.Time `json:"occurredAt"`
}

// Publisher 事件发布接口
type Publisher interface {
	Publish(ctx context.Context, ev NotificationEvent) error
}

// NewSyncProducer 创建 Kafka 同步生产者
func NewSyncProducer(brokers []string) (sarama.SyncProducer, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5
	cfg.Producer.Idempotent = false

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return producer, nil
}

// KafkaPublisher 以 userId 作为消息 key，同一用户的事件落在同一分区
type KafkaPublisher struct {
	producer sarama.SyncProducer
	topic    string
}

func NewKafkaPublisher(producer sarama.SyncProducer, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

func (p *KafkaPublisher) Publish(ctx context.Context, ev NotificationEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	carrier := make(headerCarrier, 0, 2)
	otel.GetTextMapPropagator().Inject(ctx, &carrier)

	msg := &sarama.ProducerMessage{
		Topic:   p.topic,
		Key:     sarama.StringEncoder(ev.UserID),
		Value:   sarama.ByteEncoder(payload),
		Headers: append([]sarama.RecordHeader(carrier), sarama.RecordHeader{Key: []byte("event_type"), Value: []byte(ev.Type)}),
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}

	traceID := ""
	if sc := trace.SpanFromContext(ctx).SpanContext(); sc.IsValid() {
		traceID = sc.TraceID().String()
	}
	logger.Debug("notification event published",
		zap.String("trace_id", traceID),
		zap.String("topic", p.topic),
		zap.String("type", ev.Type),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset))
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}

// LogPublisher 未启用 Kafka 时使用，只记录日志
type LogPublisher struct{}

func (LogPublisher) Publish(_ context.Context, ev NotificationEvent) error {
	logger.Info("notification event", zap.String("type", ev.Type), zap.String("user", ev.UserID), zap.String("order", ev.OrderID))
	return nil
}

// headerCarrier adapts sarama record headers to a TextMapCarrier.
type headerCarrier []sarama.RecordHeader

func (c headerCarrier) Get(key string) string {
	for _, h := range c {
		if string(h.Key) == key {
			return string(h.Value)
		}
	}
	return ""
}

func (c *headerCarrier) Set(key, value string) {
	*c = append(*c, sarama.RecordHeader{Key: []byte(key), Value: []byte(value)})
}

func (c headerCarrier) Keys() []string {
	keys := make([]string, len(c))
	for i, h := range c {
		keys[i] = string(h.Key)
	}
	return keys
}
