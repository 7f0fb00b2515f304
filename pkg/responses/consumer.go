package responses

import (
	"context"

	"github.com/fiscalflow/platform/pkg/common/logger"
	"github.com/fiscalflow/platform/pkg/common/models"
	"github.com/fiscalflow/platform/pkg/notify"
	"github.com/fiscalflow/platform/pkg/observability/metrics"
)

// Store is the slice of the document repository the consumer needs.
type Store interface {
	MarkCompleted(ctx context.Context, id uint, links models.ArtifactLinks) (bool, error)
	MarkFailed(ctx context.Context, id uint, reason string) (bool, error)
}

// PollStopper cancels the document's polling task once its outcome landed.
type PollStopper interface {
	StopPolling(documentID uint)
}

// Notifier pushes completion events to connected clients.
type Notifier interface {
	DocumentCompleted(ctx context.Context, event notify.CompletionEvent)
}

// Consumer applies terminal outcomes arriving on the responses channels. It
// races the poll manager for the same documents by design: the conditional
// store write makes the second finalizer a no-op, so both paths stay safe
// without cross-process locks.
type Consumer struct {
	store    Store
	poller   PollStopper
	notifier Notifier
}

func NewConsumer(store Store, poller PollStopper, notifier Notifier) *Consumer {
	return &Consumer{store: store, poller: poller, notifier: notifier}
}

// Handle applies one terminal-response message idempotently.
func (c *Consumer) Handle(ctx context.Context, msg models.Message) error {
	log := logger.WithDocument(msg.DocumentID, msg.Family)

	switch msg.Status {
	case models.StatusCompleted:
		if msg.Links == nil || !msg.Links.Complete() {
			log.Warn("Terminal response missing artifact links, dropping")
			return nil
		}
		won, err := c.store.MarkCompleted(ctx, msg.DocumentID, *msg.Links)
		if err != nil {
			return err
		}
		if !won {
			log.Debug("Document already terminal, response ignored")
		} else {
			metrics.DocumentCompleted()
			c.notifier.DocumentCompleted(ctx, notify.CompletionEvent{
				DocumentID: msg.DocumentID,
				Family:     msg.Family,
				Links:      *msg.Links,
			})
			log.Info("Document completed via terminal response")
		}
		c.poller.StopPolling(msg.DocumentID)
		return nil

	case models.StatusFailed:
		reason := msg.Error
		if reason == "" {
			reason = "terminal failure reported by gateway"
		}
		won, err := c.store.MarkFailed(ctx, msg.DocumentID, reason)
		if err != nil {
			return err
		}
		if !won {
			log.Debug("Document already terminal, response ignored")
		} else {
			metrics.DocumentFailed()
			log.WithField("reason", reason).Warn("Document failed via terminal response")
		}
		c.poller.StopPolling(msg.DocumentID)
		return nil

	default:
		// Processing acknowledgements and the like carry no state change.
		log.WithField("status", msg.Status).Debug("Non-terminal response ignored")
		return nil
	}
}
