package poller

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fiscalflow/platform/pkg/common/logger"
	"github.com/fiscalflow/platform/pkg/common/models"
	"github.com/fiscalflow/platform/pkg/document"
	"github.com/fiscalflow/platform/pkg/family"
	"github.com/fiscalflow/platform/pkg/notify"
	"github.com/fiscalflow/platform/pkg/observability/metrics"
	"github.com/google/uuid"
)

// Store is the slice of the document repository the manager needs.
type Store interface {
	FindInFlight(ctx context.Context) ([]document.Document, error)
	MarkCompleted(ctx context.Context, id uint, links models.ArtifactLinks) (bool, error)
	MarkFailed(ctx context.Context, id uint, reason string) (bool, error)
}

// Gateway is the fiscal authority's query operation.
type Gateway interface {
	QueryDocument(ctx context.Context, corr models.CorrelationPayload) (*models.QueryResponse, error)
}

// StatusPublisher mirrors terminal outcomes onto the responses channel.
type StatusPublisher interface {
	MarkTerminal(ctx context.Context, familyName string, documentID uint, links *models.ArtifactLinks, errMsg string)
}

// Notifier pushes completion events to connected clients.
type Notifier interface {
	DocumentCompleted(ctx context.Context, event notify.CompletionEvent)
}

// PollStatus is the operator-facing view of one active polling task.
type PollStatus struct {
	DocumentID    uint          `json:"document_id"`
	Family        string        `json:"family"`
	CorrelationID string        `json:"correlation_id"`
	Attempts      int           `json:"attempts"`
	StartedAt     time.Time     `json:"started_at"`
	Elapsed       time.Duration `json:"elapsed"`
}

type task struct {
	documentID    uint
	family        string
	correlationID string
	corr          models.CorrelationPayload
	attempts      atomic.Int64
	startedAt     time.Time
	cancel        context.CancelFunc
}

// Manager owns one polling task per in-flight document. Tasks live only in
// memory; destroying one never abandons its document, which stays in_flight
// in the store until RecoverPending rebuilds the task after a restart.
type Manager struct {
	store     Store
	gateway   Gateway
	publisher StatusPublisher
	notifier  Notifier
	catalog   family.Catalog

	interval    time.Duration
	maxAttempts int

	mu    sync.Mutex
	tasks map[uint]*task
	wg    sync.WaitGroup
}

func NewManager(store Store, gateway Gateway, publisher StatusPublisher, notifier Notifier, catalog family.Catalog, interval time.Duration, maxAttempts int) *Manager {
	return &Manager{
		store:       store,
		gateway:     gateway,
		publisher:   publisher,
		notifier:    notifier,
		catalog:     catalog,
		interval:    interval,
		maxAttempts: maxAttempts,
		tasks:       make(map[uint]*task),
	}
}

// StartPolling registers a task for the document and schedules its first
// check immediately. Starting an already-polled document is a no-op.
func (m *Manager) StartPolling(documentID uint, familyName string, corr models.CorrelationPayload) {
	m.mu.Lock()
	if _, exists := m.tasks[documentID]; exists {
		m.mu.Unlock()
		logger.WithDocument(documentID, familyName).Debug("Polling already active")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	t := &task{
		documentID:    documentID,
		family:        familyName,
		correlationID: uuid.New().String(),
		corr:          corr,
		startedAt:     time.Now().UTC(),
		cancel:        cancel,
	}
	m.tasks[documentID] = t
	metrics.SetActivePollers(len(m.tasks))
	m.mu.Unlock()

	m.wg.Add(1)
	go m.run(ctx, t)

	logger.WithDocument(documentID, familyName).WithFields(map[string]interface{}{
		"correlation_id": t.correlationID,
		"series":         corr.Series,
		"number":         corr.Number,
	}).Info("Polling started")
}

// StopPolling cancels the document's scheduled checks. A check already in
// progress is not aborted; cancellation is cooperative.
func (m *Manager) StopPolling(documentID uint) {
	m.mu.Lock()
	t, ok := m.tasks[documentID]
	if ok {
		delete(m.tasks, documentID)
		metrics.SetActivePollers(len(m.tasks))
	}
	m.mu.Unlock()

	if ok {
		t.cancel()
	}
}

// ForcePoll runs one check outside the schedule, the operator's "check this
// document now" action. It reports whether a task was found.
func (m *Manager) ForcePoll(ctx context.Context, documentID uint) bool {
	m.mu.Lock()
	t, ok := m.tasks[documentID]
	m.mu.Unlock()
	if !ok {
		return false
	}
	if done := m.check(ctx, t); done {
		m.StopPolling(documentID)
	}
	return true
}

// Active lists the registered tasks with attempt counts and elapsed time.
func (m *Manager) Active() []PollStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	statuses := make([]PollStatus, 0, len(m.tasks))
	for _, t := range m.tasks {
		statuses = append(statuses, PollStatus{
			DocumentID:    t.documentID,
			Family:        t.family,
			CorrelationID: t.correlationID,
			Attempts:      int(t.attempts.Load()),
			StartedAt:     t.startedAt,
			Elapsed:       now.Sub(t.startedAt),
		})
	}
	return statuses
}

// RecoverPending scans the store for documents left in_flight by a previous
// process and resumes polling for each, rebuilding the re-query tuple from
// the document's own fields and resetting the attempt budget.
func (m *Manager) RecoverPending(ctx context.Context) (int, error) {
	docs, err := m.store.FindInFlight(ctx)
	if err != nil {
		return 0, err
	}

	recovered := 0
	for i := range docs {
		doc := &docs[i]
		corr, corrErr := m.catalog.Correlation(doc)
		if corrErr != nil {
			logger.WithDocument(doc.ID, doc.Family).WithError(corrErr).Error("Cannot rebuild correlation payload, skipping recovery")
			continue
		}
		m.StartPolling(doc.ID, doc.Family, corr)
		recovered++
	}

	if recovered > 0 {
		logger.Log.WithField("recovered", recovered).Info("Resumed polling for in-flight documents")
	}
	return recovered, nil
}

// Shutdown cancels every task locally. The underlying documents stay
// in_flight in the store so the next process recovers them.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	for id, t := range m.tasks {
		t.cancel()
		delete(m.tasks, id)
	}
	metrics.SetActivePollers(0)
	m.mu.Unlock()

	m.wg.Wait()
	logger.Log.Info("Poll manager stopped")
}

func (m *Manager) run(ctx context.Context, t *task) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		if ctx.Err() != nil {
			return
		}

		if done := m.check(ctx, t); done {
			m.StopPolling(t.documentID)
			return
		}

		if int(t.attempts.Load()) >= m.maxAttempts {
			m.exhaust(ctx, t)
			m.StopPolling(t.documentID)
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// check performs one gateway query. It returns true when the document
// reached a terminal outcome and polling should stop.
func (m *Manager) check(ctx context.Context, t *task) bool {
	attempt := t.attempts.Add(1)
	log := logger.WithDocument(t.documentID, t.family).WithFields(map[string]interface{}{
		"correlation_id": t.correlationID,
		"attempt":        attempt,
	})

	resp, err := m.gateway.QueryDocument(ctx, t.corr)
	if err != nil {
		// Transport errors burn an attempt but are otherwise retried
		// on the next tick, bounded by the attempt cap.
		log.WithError(err).Warn("Gateway query failed")
		return false
	}

	if resp.Rejected {
		// Rejection is terminal even when some artifact links exist.
		reason := resp.RejectionReason
		if reason == "" {
			reason = "rejected by fiscal authority"
		}
		m.finalizeFailed(ctx, t, reason)
		return true
	}

	if resp.Accepted && resp.Links.Complete() {
		// Conditional write guards the race with the terminal-response
		// consumer: whichever path writes first wins, the other no-ops.
		won, compErr := m.store.MarkCompleted(ctx, t.documentID, resp.Links)
		if compErr != nil {
			log.WithError(compErr).Error("Completion write failed")
			return false
		}
		if !won {
			log.Debug("Document already terminal, skipping completion")
			return true
		}

		metrics.DocumentCompleted()
		m.publisher.MarkTerminal(ctx, t.family, t.documentID, &resp.Links, "")
		m.notifier.DocumentCompleted(ctx, notify.CompletionEvent{
			DocumentID: t.documentID,
			Family:     t.family,
			Series:     t.corr.Series,
			Number:     t.corr.Number,
			Links:      resp.Links,
		})
		log.Info("Document completed")
		return true
	}

	log.Debug("Artifacts not ready, polling continues")
	return false
}

func (m *Manager) exhaust(ctx context.Context, t *task) {
	reason := fmt.Sprintf("polling timed out after %d attempts", m.maxAttempts)
	m.finalizeFailed(ctx, t, reason)
}

func (m *Manager) finalizeFailed(ctx context.Context, t *task, reason string) {
	won, err := m.store.MarkFailed(ctx, t.documentID, reason)
	if err != nil {
		logger.WithDocument(t.documentID, t.family).WithError(err).Error("Failure write failed")
		return
	}
	if !won {
		logger.WithDocument(t.documentID, t.family).Debug("Document already terminal, skipping failure")
		return
	}

	metrics.DocumentFailed()
	m.publisher.MarkTerminal(ctx, t.family, t.documentID, nil, reason)
	logger.WithDocument(t.documentID, t.family).WithField("reason", reason).Warn("Document failed")
}
