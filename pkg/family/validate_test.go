package family

import (
	"testing"
	"time"

	"github.com/fiscalflow/platform/pkg/document"
	"gorm.io/datatypes"
)

func validInvoice() *document.Document {
	return &document.Document{
		ID:            1,
		Family:        Invoice,
		Series:        "F001",
		Number:        42,
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

func TestValidInvoicePasses(t *testing.T) {
	cat := DefaultCatalog()
	if err := cat.Validate(validInvoice()); err != nil {
		t.Fatalf("expected valid invoice, got %v", err)
	}
}

func TestSeriesShape(t *testing.T) {
	cat := DefaultCatalog()

	doc := validInvoice()
	doc.Series = "F01"
	if err := cat.Validate(doc); err == nil {
		t.Fatal("expected short series to fail")
	}

	doc = validInvoice()
	doc.Series = "T001"
	if err := cat.Validate(doc); err == nil {
		t.Fatal("expected wrong prefix to fail for invoice")
	}

	doc = validInvoice()
	doc.Series = "F0A1"
	if err := cat.Validate(doc); err == nil {
		t.Fatal("expected non-numeric suffix to fail")
	}
}

func TestNumberAndItems(t *testing.T) {
	cat := DefaultCatalog()

	doc := validInvoice()
	doc.Number = 0
	if err := cat.Validate(doc); err == nil {
		t.Fatal("expected number 0 to fail")
	}

	doc = validInvoice()
	doc.Items = nil
	if err := cat.Validate(doc); err == nil {
		t.Fatal("expected empty items to fail")
	}
}

func TestTaxIDShape(t *testing.T) {
	cat := DefaultCatalog()

	doc := validInvoice()
	doc.CustomerTaxID = "12345678" // 8 digits, but declared RUC
	if err := cat.Validate(doc); err == nil {
		t.Fatal("expected 8-digit RUC to fail")
	}

	doc = validInvoice()
	doc.TaxIDType = document.TaxIDDNI
	doc.CustomerTaxID = "12345678"
	if err := cat.Validate(doc); err != nil {
		t.Fatalf("expected 8-digit DNI to pass, got %v", err)
	}

	doc = validInvoice()
	doc.TaxIDType = "PASSPORT"
	if err := cat.Validate(doc); err == nil {
		t.Fatal("expected unknown tax id type to fail")
	}
}

func TestTotalsReconcile(t *testing.T) {
	cat := DefaultCatalog()

	doc := validInvoice()
	doc.Total = 118.005
	if err := cat.Validate(doc); err != nil {
		t.Fatalf("expected sub-tolerance drift to pass, got %v", err)
	}

	doc = validInvoice()
	doc.Total = 120.00
	if err := cat.Validate(doc); err == nil {
		t.Fatal("expected mismatched total to fail")
	}
}

func TestNotesRequireRelatedDocument(t *testing.T) {
	cat := DefaultCatalog()

	doc := validInvoice()
	doc.Family = CreditNote
	if err := cat.Validate(doc); err == nil {
		t.Fatal("expected credit note without related document to fail")
	}

	doc.Related = []document.RelatedDocument{
		{RelatedType: "01", RelatedSeries: "F001", RelatedNumber: 40},
	}
	if err := cat.Validate(doc); err != nil {
		t.Fatalf("expected credit note with related document to pass, got %v", err)
	}
}

func TestCarrierGuideRequiresDriverAndRecipient(t *testing.T) {
	cat := DefaultCatalog()

	doc := validInvoice()
	doc.Family = CarrierGuide
	doc.Series = "V001"
	if err := cat.Validate(doc); err == nil {
		t.Fatal("expected carrier guide without blocks to fail")
	}

	doc.Driver = datatypes.JSONMap{"name": "J. Quispe", "license": "Q12345678"}
	if err := cat.Validate(doc); err == nil {
		t.Fatal("expected carrier guide without recipient to fail")
	}

	doc.Recipient = datatypes.JSONMap{"tax_id": "20123456789", "name": "Destino SAC"}
	if err := cat.Validate(doc); err != nil {
		t.Fatalf("expected complete carrier guide to pass, got %v", err)
	}
}

func TestDispatchGuideTransportModes(t *testing.T) {
	cat := DefaultCatalog()

	doc := validInvoice()
	doc.Family = DispatchGuide
	doc.Series = "T001"
	if err := cat.Validate(doc); err == nil {
		t.Fatal("expected missing transport mode to fail")
	}

	doc.TransportMode = document.TransportPublic
	if err := cat.Validate(doc); err == nil {
		t.Fatal("expected public mode without carrier to fail")
	}
	doc.Carrier = datatypes.JSONMap{"tax_id": "20987654321", "name": "Transporte SAC"}
	if err := cat.Validate(doc); err != nil {
		t.Fatalf("expected public mode with carrier to pass, got %v", err)
	}

	doc.Carrier = nil
	doc.TransportMode = document.TransportPrivate
	if err := cat.Validate(doc); err == nil {
		t.Fatal("expected private mode without driver to fail")
	}
	doc.Driver = datatypes.JSONMap{"name": "J. Quispe", "license": "Q12345678"}
	if err := cat.Validate(doc); err != nil {
		t.Fatalf("expected private mode with driver to pass, got %v", err)
	}
}
