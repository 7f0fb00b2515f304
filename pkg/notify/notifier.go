package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/fiscalflow/platform/pkg/common/logger"
	"github.com/fiscalflow/platform/pkg/common/models"
	"github.com/redis/go-redis/v9"
)

// CompletionEvent is pushed to connected clients once a document reaches
// completed with its gateway artifacts.
type CompletionEvent struct {
	DocumentID uint                 `json:"document_id"`
	Family     string               `json:"family"`
	Series     string               `json:"series"`
	Number     int64                `json:"number"`
	Links      models.ArtifactLinks `json:"links"`
	Timestamp  time.Time            `json:"timestamp"`
}

// Notifier publishes completion events over Redis pub/sub. Delivery is
// fire-and-forget: a publish failure is logged, never propagated.
type Notifier struct {
	client  *redis.Client
	channel string
}

func NewNotifier(client *redis.Client, channel string) *Notifier {
	return &Notifier{client: client, channel: channel}
}

func (n *Notifier) DocumentCompleted(ctx context.Context, event CompletionEvent) {
	event.Timestamp = time.Now().UTC()

	payload, err := json.Marshal(event)
	if err != nil {
		logger.Log.WithError(err).Error("Failed to marshal completion event")
		return
	}

	if err := n.client.Publish(ctx, n.channel, payload).Err(); err != nil {
		logger.WithDocument(event.DocumentID, event.Family).WithError(err).Warn("Failed to publish completion notification")
		return
	}

	logger.WithDocument(event.DocumentID, event.Family).Info("Completion notification published")
}
