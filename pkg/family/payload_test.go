package family

import (
	"testing"
	"time"

	"github.com/fiscalflow/platform/pkg/document"
	"gorm.io/datatypes"
)

func TestBuildPayloadFormats(t *testing.T) {
	cat := DefaultCatalog()
	doc := validInvoice()
	doc.IssueDate = time.Date(2026, 3, 7, 0, 0, 0, 0, time.UTC)
	doc.Installments = []document.Installment{
		{DueDate: time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), Amount: 59.0},
		{DueDate: time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC), Amount: 59.0},
	}

	payload, err := cat.BuildPayload(doc)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}

	if payload.DocumentType != "01" {
		t.Fatalf("expected invoice code 01, got %s", payload.DocumentType)
	}
	if payload.IssueDate != "07-03-2026" {
		t.Fatalf("expected DD-MM-YYYY date, got %s", payload.IssueDate)
	}
	if payload.Total != "118.00" {
		t.Fatalf("expected fixed-precision total, got %s", payload.Total)
	}
	if len(payload.Items) != 1 || payload.Items[0].UnitPrice != "100.00" {
		t.Fatalf("unexpected items %+v", payload.Items)
	}
	if len(payload.Installments) != 2 || payload.Installments[0].DueDate != "01-04-2026" {
		t.Fatalf("unexpected installments %+v", payload.Installments)
	}
	if payload.Carrier != nil || payload.Driver != nil || payload.Recipient != nil {
		t.Fatal("expected unpopulated blocks to be omitted")
	}
}

func TestBuildPayloadIncludesPopulatedBlocks(t *testing.T) {
	cat := DefaultCatalog()
	doc := validInvoice()
	doc.Family = DispatchGuide
	doc.Series = "T001"
	doc.TransportMode = document.TransportPublic
	doc.Carrier = datatypes.JSONMap{"tax_id": "20987654321"}

	payload, err := cat.BuildPayload(doc)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if payload.DocumentType != "09" {
		t.Fatalf("expected dispatch guide code 09, got %s", payload.DocumentType)
	}
	if payload.TransportMode != document.TransportPublic {
		t.Fatalf("expected transport mode, got %q", payload.TransportMode)
	}
	if payload.Carrier == nil || payload.Carrier["tax_id"] != "20987654321" {
		t.Fatalf("expected carrier block, got %+v", payload.Carrier)
	}
}

func TestCorrelationDerivedFromDocument(t *testing.T) {
	cat := DefaultCatalog()
	doc := validInvoice()

	corr, err := cat.Correlation(doc)
	if err != nil {
		t.Fatalf("correlation failed: %v", err)
	}
	if corr.DocumentType != "01" || corr.Series != "F001" || corr.Number != 42 {
		t.Fatalf("unexpected correlation %+v", corr)
	}
}

func TestCatalogLookupUnknownFamily(t *testing.T) {
	cat := DefaultCatalog()
	if _, ok := cat.Lookup("receipt"); ok {
		t.Fatal("expected unknown family to miss")
	}
	if _, err := cat.BuildPayload(&document.Document{Family: "receipt"}); err == nil {
		t.Fatal("expected build for unknown family to fail")
	}
}
