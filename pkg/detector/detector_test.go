package detector

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/fiscalflow/platform/pkg/common/logger"
	"github.com/fiscalflow/platform/pkg/common/models"
	"github.com/fiscalflow/platform/pkg/document"
	"github.com/fiscalflow/platform/pkg/family"
)

func TestMain(m *testing.M) {
	logger.Init()
	os.Exit(m.Run())
}

type fakeStore struct {
	drafts    []document.Document
	queued    []uint
	failed    map[uint]string
	claimDeny bool
}

func (s *fakeStore) FindDrafts(ctx context.Context) ([]document.Document, error) {
	return s.drafts, nil
}

func (s *fakeStore) MarkQueued(ctx context.Context, id uint) (bool, error) {
	if s.claimDeny {
		return false, nil
	}
	s.queued = append(s.queued, id)
	return true, nil
}

func (s *fakeStore) MarkFailed(ctx context.Context, id uint, reason string) (bool, error) {
	if s.failed == nil {
		s.failed = make(map[uint]string)
	}
	s.failed[id] = reason
	return true, nil
}

type fakeSubmitter struct {
	submitted []uint
	payloads  []*models.SubmissionPayload
	err       error
}

func (f *fakeSubmitter) Submit(ctx context.Context, familyName string, documentID uint, payload *models.SubmissionPayload) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.submitted = append(f.submitted, documentID)
	f.payloads = append(f.payloads, payload)
	return "msg-1", nil
}

func draftInvoice(id uint) document.Document {
	return document.Document{
		ID:            id,
		Family:        family.Invoice,
		Series:        "F001",
		Number:        int64(id),
		State:         document.StateDraft,
		IssueDate:     time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC),
		Currency:      "PEN",
		CustomerTaxID: "20123456789",
		TaxIDType:     document.TaxIDRUC,
		CustomerName:  "ACME SAC",
		Subtotal:      100.00,
		Tax:           18.00,
		Total:         118.00,
		Items: []document.LineItem{
			{Description: "Service", Quantity: 1, UnitPrice: 100.00, TaxCode: "IGV", Subtotal: 100.00, Tax: 18.00, Total: 118.00},
		},
	}
}

func TestValidDraftIsQueuedAndDispatched(t *testing.T) {
	store := &fakeStore{drafts: []document.Document{draftInvoice(1)}}
	sub := &fakeSubmitter{}
	det := NewDetector(store, family.DefaultCatalog(), sub, time.Second)

	queued, err := det.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if queued != 1 {
		t.Fatalf("expected 1 queued, got %d", queued)
	}
	if len(sub.submitted) != 1 || sub.submitted[0] != 1 {
		t.Fatalf("expected document 1 dispatched, got %v", sub.submitted)
	}
	if sub.payloads[0].IssueDate != "15-08-2026" {
		t.Fatalf("expected gateway-formatted date, got %s", sub.payloads[0].IssueDate)
	}
}

func TestIncompleteDraftLeftUntouched(t *testing.T) {
	doc := draftInvoice(2)
	doc.Items = nil // still being edited
	store := &fakeStore{drafts: []document.Document{doc}}
	sub := &fakeSubmitter{}
	det := NewDetector(store, family.DefaultCatalog(), sub, time.Second)

	queued, err := det.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if queued != 0 {
		t.Fatalf("expected nothing queued, got %d", queued)
	}
	if len(store.queued) != 0 || len(store.failed) != 0 {
		t.Fatal("incomplete draft must stay draft with no error recorded")
	}
}

func TestPublishFailureMarksFailed(t *testing.T) {
	store := &fakeStore{drafts: []document.Document{draftInvoice(3)}}
	sub := &fakeSubmitter{err: errors.New("broker unreachable")}
	det := NewDetector(store, family.DefaultCatalog(), sub, time.Second)

	if _, err := det.RunOnce(context.Background()); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if store.failed[3] == "" {
		t.Fatal("expected publish failure to mark the document failed")
	}
}

func TestClaimedDraftIsSkipped(t *testing.T) {
	store := &fakeStore{drafts: []document.Document{draftInvoice(4)}, claimDeny: true}
	sub := &fakeSubmitter{}
	det := NewDetector(store, family.DefaultCatalog(), sub, time.Second)

	queued, err := det.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if queued != 0 || len(sub.submitted) != 0 {
		t.Fatal("a draft claimed elsewhere must not be dispatched again")
	}
}
