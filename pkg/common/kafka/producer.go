package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/fiscalflow/platform/pkg/common/config"
	"github.com/fiscalflow/platform/pkg/common/logger"
	"github.com/fiscalflow/platform/pkg/common/models"
	"github.com/segmentio/kafka-go"
)

type Producer struct {
	writer *kafka.Writer
}

func NewProducer(topic string) *Producer {
	cfg := config.Load()
	writer := &kafka.Writer{
		Addr:  kafka.TCP(cfg.KafkaBrokers...),
		Topic: topic,
		// Hash on the key so every message for a document lands on the
		// same partition and per-document ordering holds.
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Async:        false,
		BatchSize:    1,
		BatchTimeout: 10 * time.Millisecond,
	}

	return &Producer{writer: writer}
}

// Publish writes the message keyed by document id.
func (p *Producer) Publish(ctx context.Context, msg models.Message) error {
	value, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	kafkaMsg := kafka.Message{
		Key:   []byte(strconv.FormatUint(uint64(msg.DocumentID), 10)),
		Value: value,
		Headers: []kafka.Header{
			{Key: "message-id", Value: []byte(msg.ID)},
			{Key: "family", Value: []byte(msg.Family)},
			{Key: "status", Value: []byte(msg.Status)},
		},
	}

	if err := p.writer.WriteMessages(ctx, kafkaMsg); err != nil {
		logger.Log.WithError(err).WithFields(map[string]interface{}{
			"message_id":  msg.ID,
			"document_id": msg.DocumentID,
			"topic":       p.writer.Topic,
		}).Error("Failed to publish message")
		return err
	}

	logger.Log.WithFields(map[string]interface{}{
		"message_id":  msg.ID,
		"document_id": msg.DocumentID,
		"status":      msg.Status,
		"topic":       p.writer.Topic,
	}).Info("Message published")

	return nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
