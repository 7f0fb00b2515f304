package family

import (
	"fmt"
	"math"
	"strings"
	"unicode"

	"github.com/fiscalflow/platform/pkg/document"
)

// Totals must reconcile against the sum of line items within this tolerance.
const roundingTolerance = 0.01

// ValidationError marks a document as incomplete rather than broken. The
// detector leaves such documents untouched for the next cycle.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func invalid(field, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// Validate reports whether the document is complete enough to submit. A nil
// return means the document passes its family's required-field set.
func (c Catalog) Validate(doc *document.Document) error {
	entry, ok := c.Lookup(doc.Family)
	if !ok {
		return invalid("family", "unknown family %q", doc.Family)
	}

	if err := validateSeries(doc.Series, entry.SeriesPrefix); err != nil {
		return err
	}
	if doc.Number < 1 {
		return invalid("number", "sequence must be >= 1, got %d", doc.Number)
	}
	if doc.IssueDate.IsZero() {
		return invalid("issue_date", "missing")
	}
	if strings.TrimSpace(doc.CustomerName) == "" {
		return invalid("customer_name", "missing")
	}
	if err := validateTaxID(doc.TaxIDType, doc.CustomerTaxID); err != nil {
		return err
	}
	if len(doc.Items) == 0 {
		return invalid("items", "at least one line item required")
	}
	if err := validateTotals(doc); err != nil {
		return err
	}

	switch doc.Family {
	case CreditNote, DebitNote:
		if len(doc.Related) == 0 {
			return invalid("related", "note must reference the document it amends")
		}
	case CarrierGuide:
		if len(doc.Driver) == 0 {
			return invalid("driver", "carrier guide requires a driver block")
		}
		if len(doc.Recipient) == 0 {
			return invalid("recipient", "carrier guide requires a recipient block")
		}
	case DispatchGuide:
		switch doc.TransportMode {
		case document.TransportPublic:
			if len(doc.Carrier) == 0 {
				return invalid("carrier", "public transport requires a registered carrier block")
			}
		case document.TransportPrivate:
			if len(doc.Driver) == 0 {
				return invalid("driver", "private transport requires a driver block")
			}
		default:
			return invalid("transport_mode", "must be %q or %q", document.TransportPublic, document.TransportPrivate)
		}
	}

	return nil
}

func validateSeries(series, prefix string) error {
	if len(series) != 4 {
		return invalid("series", "must be exactly 4 characters, got %q", series)
	}
	if !strings.HasPrefix(series, prefix) {
		return invalid("series", "must start with %q, got %q", prefix, series)
	}
	for _, r := range series[len(prefix):] {
		if !unicode.IsDigit(r) {
			return invalid("series", "suffix must be numeric, got %q", series)
		}
	}
	return nil
}

func validateTaxID(idType, id string) error {
	var want int
	switch idType {
	case document.TaxIDRUC:
		want = 11
	case document.TaxIDDNI:
		want = 8
	default:
		return invalid("tax_id_type", "unknown type %q", idType)
	}
	if len(id) != want {
		return invalid("customer_tax_id", "%s requires %d digits, got %d", idType, want, len(id))
	}
	for _, r := range id {
		if !unicode.IsDigit(r) {
			return invalid("customer_tax_id", "must be numeric")
		}
	}
	return nil
}

func validateTotals(doc *document.Document) error {
	var subtotal, tax, total float64
	for _, item := range doc.Items {
		subtotal += item.Subtotal
		tax += item.Tax
		total += item.Total
	}
	if math.Abs(subtotal-doc.Subtotal) > roundingTolerance {
		return invalid("subtotal", "declared %.2f but items sum to %.2f", doc.Subtotal, subtotal)
	}
	if math.Abs(tax-doc.Tax) > roundingTolerance {
		return invalid("tax", "declared %.2f but items sum to %.2f", doc.Tax, tax)
	}
	if math.Abs(total-doc.Total) > roundingTolerance {
		return invalid("total", "declared %.2f but items sum to %.2f", doc.Total, total)
	}
	return nil
}
