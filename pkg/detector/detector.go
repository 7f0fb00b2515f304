package detector

import (
	"context"
	"errors"
	"time"

	"github.com/fiscalflow/platform/pkg/common/logger"
	"github.com/fiscalflow/platform/pkg/common/models"
	"github.com/fiscalflow/platform/pkg/document"
	"github.com/fiscalflow/platform/pkg/family"
	"github.com/fiscalflow/platform/pkg/observability/metrics"
)

// Store is the slice of the document repository the detector needs.
type Store interface {
	FindDrafts(ctx context.Context) ([]document.Document, error)
	MarkQueued(ctx context.Context, id uint) (bool, error)
	MarkFailed(ctx context.Context, id uint, reason string) (bool, error)
}

// Submitter hands a queued document's payload to the requests channel.
type Submitter interface {
	Submit(ctx context.Context, familyName string, documentID uint, payload *models.SubmissionPayload) (string, error)
}

// Detector periodically scans for draft documents, validates them against
// their family's required-field set and queues the complete ones for
// submission. Incomplete documents stay draft and are re-evaluated next
// cycle; an operator may still be editing them.
type Detector struct {
	store     Store
	catalog   family.Catalog
	submitter Submitter
	interval  time.Duration
}

func NewDetector(store Store, catalog family.Catalog, submitter Submitter, interval time.Duration) *Detector {
	return &Detector{
		store:     store,
		catalog:   catalog,
		submitter: submitter,
		interval:  interval,
	}
}

// Run drives the scan on a fixed period until the context is cancelled.
func (d *Detector) Run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := d.RunOnce(ctx); err != nil {
				logger.Log.WithError(err).Error("Detector cycle failed")
			}
		}
	}
}

// RunOnce performs a single scan and returns how many documents were queued.
// It is also the operator's force-run entry point.
func (d *Detector) RunOnce(ctx context.Context) (int, error) {
	drafts, err := d.store.FindDrafts(ctx)
	if err != nil {
		return 0, err
	}

	queued := 0
	for i := range drafts {
		doc := &drafts[i]
		if d.process(ctx, doc) {
			queued++
		}
	}

	if queued > 0 {
		logger.Log.WithField("queued", queued).Info("Detector cycle queued documents")
	}
	return queued, nil
}

func (d *Detector) process(ctx context.Context, doc *document.Document) bool {
	log := logger.WithDocument(doc.ID, doc.Family)

	if err := d.catalog.Validate(doc); err != nil {
		var verr *family.ValidationError
		if errors.As(err, &verr) {
			// Incomplete, not broken. Leave it for the next cycle.
			log.WithField("reason", verr.Error()).Debug("Draft not ready for submission")
			return false
		}
		log.WithError(err).Warn("Draft validation errored")
		return false
	}

	payload, err := d.catalog.BuildPayload(doc)
	if err != nil {
		d.fail(ctx, doc, "payload build failed: "+err.Error())
		return false
	}

	claimed, err := d.store.MarkQueued(ctx, doc.ID)
	if err != nil {
		d.fail(ctx, doc, "queue transition failed: "+err.Error())
		return false
	}
	if !claimed {
		// Another detector run or an operator got here first.
		log.Debug("Draft already claimed")
		return false
	}

	if _, err := d.submitter.Submit(ctx, doc.Family, doc.ID, payload); err != nil {
		d.fail(ctx, doc, "request publish failed: "+err.Error())
		return false
	}

	metrics.DocumentQueued()
	log.Info("Document queued for submission")
	return true
}

func (d *Detector) fail(ctx context.Context, doc *document.Document, reason string) {
	logger.WithDocument(doc.ID, doc.Family).WithField("reason", reason).Error("Draft failed before submission")
	if _, err := d.store.MarkFailed(ctx, doc.ID, reason); err != nil {
		logger.WithDocument(doc.ID, doc.Family).WithError(err).Error("Failed to mark document failed")
	}
	metrics.DocumentFailed()
}
