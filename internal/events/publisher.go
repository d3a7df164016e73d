package events

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// StockAlertEvent is emitted after a stock alert row has been committed.
type StockAlertEvent struct {
	AlertID   int64     `json:"alert_id"`
	SiteID    int64     `json:"site_id"`
	ProductID int64     `json:"product_id"`
	PrestaID  int64     `json:"presta_id"`
	Reference string    `json:"reference"`
	Name      string    `json:"name"`
	AlertType string    `json:"alert_type"`
	Quantity  int       `json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
}

// Publisher delivers stock alert events to downstream consumers.
type Publisher interface {
	PublishStockAlerts(ctx context.Context, events []StockAlertEvent) error
	Close() error
}

// ==================== Kafka ====================

type KafkaPublisher struct {
	writer *kafka.Writer
	logger *zap.Logger
}

// NewKafkaPublisher writes to topic on brokers. Messages are keyed by site so
// that one store's alerts stay ordered within a partition.
func NewKafkaPublisher(brokers []string, topic string, logger *zap.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			BatchTimeout: 50 * time.Millisecond,
			WriteTimeout: 10 * time.Second,
		},
		logger: logger,
	}
}

func (p *KafkaPublisher) PublishStockAlerts(ctx context.Context, events []StockAlertEvent) error {
	if len(events) == 0 {
		return nil
	}

	msgs := make([]kafka.Message, 0, len(events))
	for _, ev := range events {
		value, err := json.Marshal(ev)
		if err != nil {
			return err
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(strconv.FormatInt(ev.SiteID, 10)),
			Value: value,
			Headers: []kafka.Header{
				{Key: "type", Value: []byte(ev.AlertType)},
			},
		})
	}

	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return err
	}
	p.logger.Debug("stock alerts published",
		zap.String("topic", p.writer.Topic),
		zap.Int("count", len(msgs)))
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// ==================== Noop ====================

// NoopPublisher drops events; used when no broker is configured.
type NoopPublisher struct{}

func (NoopPublisher) PublishStockAlerts(context.Context, []StockAlertEvent) error { return nil }

func (NoopPublisher) Close() error { return nil }

// ==================== Recording ====================

// MemoryPublisher keeps published events in memory.
type MemoryPublisher struct {
	Events []StockAlertEvent
	Err    error
}

func (m *MemoryPublisher) PublishStockAlerts(_ context.Context, events []StockAlertEvent) error {
	if m.Err != nil {
		return m.Err
	}
	m.Events = append(m.Events, events...)
	return nil
}

func (m *MemoryPublisher) Close() error { return nil }

// New picks the Kafka publisher when brokers are configured.
func New(brokers []string, topic string, logger *zap.Logger) Publisher {
	if len(brokers) == 0 || topic == "" {
		logger.Info("kafka not configured, stock alert events are dropped")
		return NoopPublisher{}
	}
	logger.Info("stock alert events enabled", zap.Strings("brokers", brokers), zap.String("topic", topic))
	return NewKafkaPublisher(brokers, topic, logger)
}
