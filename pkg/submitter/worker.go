package submitter

import (
	"context"
	"fmt"

	"github.com/fiscalflow/platform/pkg/common/logger"
	"github.com/fiscalflow/platform/pkg/common/models"
	"github.com/fiscalflow/platform/pkg/document"
	"github.com/fiscalflow/platform/pkg/notify"
	"github.com/fiscalflow/platform/pkg/observability/metrics"
)

// Store is the slice of the document repository the worker needs.
type Store interface {
	Get(ctx context.Context, id uint) (*document.Document, error)
	Transition(ctx context.Context, id uint, from, to document.State, updates map[string]interface{}) (bool, error)
	MarkCompleted(ctx context.Context, id uint, links models.ArtifactLinks) (bool, error)
	MarkFailed(ctx context.Context, id uint, reason string) (bool, error)
	SetTicket(ctx context.Context, id uint, ticket string) error
}

// Gateway is the fiscal authority's create operation.
type Gateway interface {
	CreateDocument(ctx context.Context, payload *models.SubmissionPayload) (*models.CreateResponse, error)
}

// StatusPublisher mirrors pipeline progress onto the audit channels.
type StatusPublisher interface {
	MarkProcessing(ctx context.Context, familyName string, documentID uint)
	MarkTerminal(ctx context.Context, familyName string, documentID uint, links *models.ArtifactLinks, errMsg string)
	DeadLetter(ctx context.Context, familyName string, documentID uint, errMsg string)
}

// PollStarter hands an in-flight document to the poll manager.
type PollStarter interface {
	StartPolling(documentID uint, familyName string, corr models.CorrelationPayload)
}

// Notifier pushes completion events to connected clients.
type Notifier interface {
	DocumentCompleted(ctx context.Context, event notify.CompletionEvent)
}

// Worker consumes submission requests. The broker delivers at-least-once,
// so the state check inside the conditional queued -> in_flight transition
// is the pipeline's sole deduplication mechanism.
type Worker struct {
	store     Store
	gateway   Gateway
	publisher StatusPublisher
	poller    PollStarter
	notifier  Notifier
}

func NewWorker(store Store, gateway Gateway, publisher StatusPublisher, poller PollStarter, notifier Notifier) *Worker {
	return &Worker{
		store:     store,
		gateway:   gateway,
		publisher: publisher,
		poller:    poller,
		notifier:  notifier,
	}
}

// Handle processes one request message. A nil return commits the offset; an
// error leaves the message for redelivery.
func (w *Worker) Handle(ctx context.Context, msg models.Message) (err error) {
	log := logger.WithDocument(msg.DocumentID, msg.Family)

	doc, getErr := w.store.Get(ctx, msg.DocumentID)
	if getErr != nil {
		if getErr == document.ErrDocumentNotFound {
			log.Warn("Request message for unknown document, dropping")
			return nil
		}
		return getErr
	}

	if doc.State != document.StateQueued {
		// Broker redelivery or a consumer-group rebalance replayed the
		// message after another worker already took it.
		log.WithField("state", doc.State).Warn("Duplicate delivery, dropping")
		metrics.DuplicateDropped()
		return nil
	}

	// Write-ahead of the external call: claim the document before talking
	// to the gateway. Losing the conditional write means a concurrent
	// worker holds the document.
	claimed, trErr := w.store.Transition(ctx, msg.DocumentID, document.StateQueued, document.StateInFlight, nil)
	if trErr != nil {
		return trErr
	}
	if !claimed {
		log.Warn("Duplicate delivery lost claim race, dropping")
		metrics.DuplicateDropped()
		return nil
	}

	// The document is now in_flight with this worker as its only owner.
	// Whatever happens below, it must not be stranded there silently.
	defer func() {
		if r := recover(); r != nil {
			reason := fmt.Sprintf("worker panic: %v", r)
			log.WithField("panic", r).Error("Submission worker panicked")
			if _, failErr := w.store.MarkFailed(ctx, msg.DocumentID, reason); failErr != nil {
				log.WithError(failErr).Error("Failed to mark panicked document failed")
			}
			err = nil
		}
	}()

	if msg.Payload == nil {
		w.fail(ctx, msg, "request message missing submission payload")
		return nil
	}

	metrics.DocumentSubmitted()
	resp, callErr := w.gateway.CreateDocument(ctx, msg.Payload)
	if callErr != nil {
		w.fail(ctx, msg, callErr.Error())
		return nil
	}

	if resp.Links.Complete() {
		// Immediate final response, no polling needed.
		won, compErr := w.store.MarkCompleted(ctx, msg.DocumentID, resp.Links)
		if compErr != nil {
			w.fail(ctx, msg, "completion write failed: "+compErr.Error())
			return nil
		}
		if won {
			metrics.DocumentCompleted()
			w.publisher.MarkTerminal(ctx, msg.Family, msg.DocumentID, &resp.Links, "")
			w.notifier.DocumentCompleted(ctx, notify.CompletionEvent{
				DocumentID: msg.DocumentID,
				Family:     msg.Family,
				Series:     doc.Series,
				Number:     doc.Number,
				Links:      resp.Links,
			})
			log.Info("Document completed on submission")
		}
		return nil
	}

	// The common case: the gateway queued the document and will resolve it
	// asynchronously.
	if resp.TicketID != "" {
		if tErr := w.store.SetTicket(ctx, msg.DocumentID, resp.TicketID); tErr != nil {
			log.WithError(tErr).Warn("Failed to record gateway ticket")
		}
	}
	w.publisher.MarkProcessing(ctx, msg.Family, msg.DocumentID)
	w.poller.StartPolling(msg.DocumentID, msg.Family, models.CorrelationPayload{
		DocumentType: msg.Payload.DocumentType,
		Series:       msg.Payload.Series,
		Number:       msg.Payload.Number,
	})
	log.WithField("ticket", resp.TicketID).Info("Document in flight, polling started")
	return nil
}

func (w *Worker) fail(ctx context.Context, msg models.Message, reason string) {
	logger.WithDocument(msg.DocumentID, msg.Family).WithField("reason", reason).Error("Submission failed")
	if _, err := w.store.MarkFailed(ctx, msg.DocumentID, reason); err != nil {
		logger.WithDocument(msg.DocumentID, msg.Family).WithError(err).Error("Failed to mark document failed")
	}
	metrics.DocumentFailed()
	w.publisher.DeadLetter(ctx, msg.Family, msg.DocumentID, reason)
}
