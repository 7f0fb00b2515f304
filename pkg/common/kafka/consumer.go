package kafka

import (
	"context"
	"encoding/json"

	"github.com/fiscalflow/platform/pkg/common/config"
	"github.com/fiscalflow/platform/pkg/common/logger"
	"github.com/fiscalflow/platform/pkg/common/models"
	"github.com/segmentio/kafka-go"
)

type Consumer struct {
	reader *kafka.Reader
}

type MessageHandler func(ctx context.Context, msg models.Message) error

func NewConsumer(topic string, groupID string) *Consumer {
	cfg := config.Load()
	if groupID == "" {
		groupID = cfg.KafkaGroupID
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.KafkaBrokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 10e3, // 10KB
		MaxBytes: 10e6, // 10MB
	})

	return &Consumer{reader: reader}
}

// Consume fetches messages until the context is cancelled. Messages are
// committed only after the handler returns nil, so delivery is at-least-once
// and handlers must tolerate redelivery.
func (c *Consumer) Consume(ctx context.Context, handler MessageHandler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			fetched, err := c.reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				logger.Log.WithError(err).Error("Failed to fetch message")
				continue
			}

			var msg models.Message
			if err := json.Unmarshal(fetched.Value, &msg); err != nil {
				logger.Log.WithError(err).Error("Failed to unmarshal message")
				c.reader.CommitMessages(ctx, fetched)
				continue
			}

			if err := handler(ctx, msg); err != nil {
				logger.Log.WithError(err).WithFields(map[string]interface{}{
					"message_id":  msg.ID,
					"document_id": msg.DocumentID,
				}).Error("Failed to process message")
				// Not committed, the broker will redeliver.
				continue
			}

			if err := c.reader.CommitMessages(ctx, fetched); err != nil {
				logger.Log.WithError(err).Error("Failed to commit message")
			}
		}
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
