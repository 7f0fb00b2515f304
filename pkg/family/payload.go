package family

import (
	"fmt"

	"github.com/fiscalflow/platform/pkg/common/models"
	"github.com/fiscalflow/platform/pkg/document"
)

// gatewayDateLayout is the gateway's local calendar format, DD-MM-YYYY.
const gatewayDateLayout = "02-01-2006"

// BuildPayload transforms a validated document into the gateway's submission
// shape: dates reformatted, amounts serialized as fixed two-decimal strings,
// optional blocks included only when populated.
func (c Catalog) BuildPayload(doc *document.Document) (*models.SubmissionPayload, error) {
	entry, ok := c.Lookup(doc.Family)
	if !ok {
		return nil, fmt.Errorf("unknown family %q", doc.Family)
	}

	payload := &models.SubmissionPayload{
		DocumentType:  entry.Code,
		Series:        doc.Series,
		Number:        doc.Number,
		IssueDate:     doc.IssueDate.Format(gatewayDateLayout),
		Currency:      doc.Currency,
		CustomerTaxID: doc.CustomerTaxID,
		TaxIDType:     doc.TaxIDType,
		CustomerName:  doc.CustomerName,
		Subtotal:      amount(doc.Subtotal),
		Tax:           amount(doc.Tax),
		Total:         amount(doc.Total),
		Items:         make([]models.PayloadItem, 0, len(doc.Items)),
	}

	for _, item := range doc.Items {
		payload.Items = append(payload.Items, models.PayloadItem{
			Description: item.Description,
			Quantity:    amount(item.Quantity),
			UnitPrice:   amount(item.UnitPrice),
			TaxCode:     item.TaxCode,
			Subtotal:    amount(item.Subtotal),
			Tax:         amount(item.Tax),
			Total:       amount(item.Total),
		})
	}

	for _, rel := range doc.Related {
		payload.Related = append(payload.Related, models.RelatedRef{
			DocumentType: rel.RelatedType,
			Series:       rel.RelatedSeries,
			Number:       rel.RelatedNumber,
		})
	}

	for _, inst := range doc.Installments {
		payload.Installments = append(payload.Installments, models.InstallmentEntry{
			DueDate: inst.DueDate.Format(gatewayDateLayout),
			Amount:  amount(inst.Amount),
		})
	}

	if doc.TransportMode != "" {
		payload.TransportMode = doc.TransportMode
	}
	if len(doc.Carrier) > 0 {
		payload.Carrier = map[string]interface{}(doc.Carrier)
	}
	if len(doc.Driver) > 0 {
		payload.Driver = map[string]interface{}(doc.Driver)
	}
	if len(doc.Recipient) > 0 {
		payload.Recipient = map[string]interface{}(doc.Recipient)
	}

	return payload, nil
}

// Correlation derives the minimal re-query tuple from the document itself,
// which is all the poll manager needs to resume after a restart.
func (c Catalog) Correlation(doc *document.Document) (models.CorrelationPayload, error) {
	entry, ok := c.Lookup(doc.Family)
	if !ok {
		return models.CorrelationPayload{}, fmt.Errorf("unknown family %q", doc.Family)
	}
	return models.CorrelationPayload{
		DocumentType: entry.Code,
		Series:       doc.Series,
		Number:       doc.Number,
	}, nil
}

func amount(v float64) string {
	return fmt.Sprintf("%.2f", v)
}
