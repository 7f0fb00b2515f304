package models

import "time"

// Message statuses carried on the broker channels.
const (
	StatusRequested  = "requested"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Message is the immutable envelope published to every pipeline channel.
type Message struct {
	ID         string             `json:"id"`
	DocumentID uint               `json:"document_id"`
	Family     string             `json:"family"`
	Status     string             `json:"status"`
	Payload    *SubmissionPayload `json:"payload,omitempty"`
	Links      *ArtifactLinks     `json:"links,omitempty"`
	Error      string             `json:"error,omitempty"`
	Timestamp  time.Time          `json:"timestamp"`
}

// SubmissionPayload is the gateway's "create document" wire shape. Dates are
// DD-MM-YYYY strings, amounts fixed two-decimal strings.
type SubmissionPayload struct {
	DocumentType  string                 `json:"document_type"`
	Series        string                 `json:"series"`
	Number        int64                  `json:"number"`
	IssueDate     string                 `json:"issue_date"`
	Currency      string                 `json:"currency"`
	CustomerTaxID string                 `json:"customer_tax_id"`
	TaxIDType     string                 `json:"tax_id_type"`
	CustomerName  string                 `json:"customer_name"`
	Subtotal      string                 `json:"subtotal"`
	Tax           string                 `json:"tax"`
	Total         string                 `json:"total"`
	Items         []PayloadItem          `json:"items"`
	Related       []RelatedRef           `json:"related_documents,omitempty"`
	Installments  []InstallmentEntry     `json:"installments,omitempty"`
	TransportMode string                 `json:"transport_mode,omitempty"`
	Carrier       map[string]interface{} `json:"carrier,omitempty"`
	Driver        map[string]interface{} `json:"driver,omitempty"`
	Recipient     map[string]interface{} `json:"recipient,omitempty"`
}

type PayloadItem struct {
	Description string `json:"description"`
	Quantity    string `json:"quantity"`
	UnitPrice   string `json:"unit_price"`
	TaxCode     string `json:"tax_code"`
	Subtotal    string `json:"subtotal"`
	Tax         string `json:"tax"`
	Total       string `json:"total"`
}

type RelatedRef struct {
	DocumentType string `json:"document_type"`
	Series       string `json:"series"`
	Number       int64  `json:"number"`
}

type InstallmentEntry struct {
	DueDate string `json:"due_date"`
	Amount  string `json:"amount"`
}

// ArtifactLinks are the gateway-issued proof files. A document is only
// finalizable as completed once all three are present.
type ArtifactLinks struct {
	PDF string `json:"pdf_url"`
	XML string `json:"xml_url"`
	CDR string `json:"cdr_url"`
}

func (l ArtifactLinks) Complete() bool {
	return l.PDF != "" && l.XML != "" && l.CDR != ""
}

// CorrelationPayload is the minimal tuple needed to re-query a submitted
// document. It is re-derivable from the document row alone, which is what
// makes crash recovery possible without persisting polling tasks.
type CorrelationPayload struct {
	DocumentType string `json:"document_type"`
	Series       string `json:"series"`
	Number       int64  `json:"number"`
}

// CreateResponse is the gateway's answer to a create call. TicketID is set
// when the gateway processes asynchronously and links are not yet available.
type CreateResponse struct {
	TicketID string        `json:"ticket_id,omitempty"`
	Accepted bool          `json:"accepted"`
	Links    ArtifactLinks `json:"links"`
}

// QueryResponse is the gateway's answer to a status query.
type QueryResponse struct {
	Accepted        bool          `json:"accepted"`
	Rejected        bool          `json:"rejected"`
	RejectionReason string        `json:"rejection_reason,omitempty"`
	Links           ArtifactLinks `json:"links"`
}
