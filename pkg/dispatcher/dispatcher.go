package dispatcher

import (
	"context"
	"fmt"
	"time"

	"github.com/fiscalflow/platform/pkg/common/kafka"
	"github.com/fiscalflow/platform/pkg/common/logger"
	"github.com/fiscalflow/platform/pkg/common/models"
	"github.com/fiscalflow/platform/pkg/family"
	"github.com/google/uuid"
)

// Publisher is the slice of the broker producer the dispatcher needs.
type Publisher interface {
	Publish(ctx context.Context, msg models.Message) error
	Close() error
}

// Dispatcher is a stateless publisher over the per-family pipeline channels.
// Only the requests channel matters for correctness; processing and terminal
// messages exist for audit and observability.
type Dispatcher struct {
	producers map[string]Publisher
}

func NewDispatcher(catalog family.Catalog) *Dispatcher {
	producers := make(map[string]Publisher)
	for _, name := range catalog.Names() {
		for _, stage := range []string{family.StageRequests, family.StageProcessing, family.StageResponses, family.StageFailed} {
			topic := family.Topic(name, stage)
			producers[topic] = kafka.NewProducer(topic)
		}
	}
	return &Dispatcher{producers: producers}
}

// NewWithPublishers wires pre-built publishers keyed by topic.
func NewWithPublishers(producers map[string]Publisher) *Dispatcher {
	return &Dispatcher{producers: producers}
}

// Submit publishes a submission request keyed by document id and returns the
// generated message id.
func (d *Dispatcher) Submit(ctx context.Context, familyName string, documentID uint, payload *models.SubmissionPayload) (string, error) {
	msg := models.Message{
		ID:         uuid.New().String(),
		DocumentID: documentID,
		Family:     familyName,
		Status:     models.StatusRequested,
		Payload:    payload,
		Timestamp:  time.Now().UTC(),
	}
	if err := d.publish(ctx, family.Topic(familyName, family.StageRequests), msg); err != nil {
		return "", err
	}
	return msg.ID, nil
}

// MarkProcessing records that the gateway acknowledged the submission and
// processing continues asynchronously.
func (d *Dispatcher) MarkProcessing(ctx context.Context, familyName string, documentID uint) {
	msg := models.Message{
		ID:         uuid.New().String(),
		DocumentID: documentID,
		Family:     familyName,
		Status:     models.StatusProcessing,
		Timestamp:  time.Now().UTC(),
	}
	if err := d.publish(ctx, family.Topic(familyName, family.StageProcessing), msg); err != nil {
		logger.WithDocument(documentID, familyName).WithError(err).Warn("Failed to publish processing message")
	}
}

// MarkTerminal publishes the final outcome to the responses channel.
func (d *Dispatcher) MarkTerminal(ctx context.Context, familyName string, documentID uint, links *models.ArtifactLinks, errMsg string) {
	status := models.StatusCompleted
	if errMsg != "" {
		status = models.StatusFailed
	}
	msg := models.Message{
		ID:         uuid.New().String(),
		DocumentID: documentID,
		Family:     familyName,
		Status:     status,
		Links:      links,
		Error:      errMsg,
		Timestamp:  time.Now().UTC(),
	}
	if err := d.publish(ctx, family.Topic(familyName, family.StageResponses), msg); err != nil {
		logger.WithDocument(documentID, familyName).WithError(err).Warn("Failed to publish terminal message")
	}
}

// DeadLetter captures a gateway failure with its verbatim error payload.
func (d *Dispatcher) DeadLetter(ctx context.Context, familyName string, documentID uint, errMsg string) {
	msg := models.Message{
		ID:         uuid.New().String(),
		DocumentID: documentID,
		Family:     familyName,
		Status:     models.StatusFailed,
		Error:      errMsg,
		Timestamp:  time.Now().UTC(),
	}
	if err := d.publish(ctx, family.Topic(familyName, family.StageFailed), msg); err != nil {
		logger.WithDocument(documentID, familyName).WithError(err).Warn("Failed to publish dead letter")
	}
}

func (d *Dispatcher) publish(ctx context.Context, topic string, msg models.Message) error {
	producer, ok := d.producers[topic]
	if !ok {
		return fmt.Errorf("no producer registered for topic %s", topic)
	}
	return producer.Publish(ctx, msg)
}

func (d *Dispatcher) Close() {
	for topic, producer := range d.producers {
		if err := producer.Close(); err != nil {
			logger.Log.WithError(err).WithField("topic", topic).Warn("Failed to close producer")
		}
	}
}
