package document

import (
	"time"

	"gorm.io/datatypes"
)

// Tax id types accepted by the gateway.
const (
	TaxIDRUC = "RUC"
	TaxIDDNI = "DNI"
)

// Transport modes for outbound waybills.
const (
	TransportPublic  = "public"  // registered carrier performs the transfer
	TransportPrivate = "private" // issuer's own vehicle and driver
)

type Document struct {
	ID     uint   `gorm:"primaryKey" json:"id"`
	Family string `gorm:"column:family;index:idx_family_series_number,unique" json:"family"`
	Series string `gorm:"column:series;index:idx_family_series_number,unique" json:"series"`
	Number int64  `gorm:"column:number;index:idx_family_series_number,unique" json:"number"`
	State  State  `gorm:"column:state;default:draft" json:"state"`

	IssueDate     time.Time `gorm:"column:issue_date" json:"issue_date"`
	Currency      string    `gorm:"column:currency;default:PEN" json:"currency"`
	CustomerTaxID string    `gorm:"column:customer_tax_id" json:"customer_tax_id"`
	TaxIDType     string    `gorm:"column:tax_id_type" json:"tax_id_type"`
	CustomerName  string    `gorm:"column:customer_name" json:"customer_name"`

	Subtotal float64 `gorm:"column:subtotal" json:"subtotal"`
	Tax      float64 `gorm:"column:tax" json:"tax"`
	Total    float64 `gorm:"column:total" json:"total"`

	// Waybill-only blocks, stored as jsonb since their shape varies by
	// family. Empty maps mean the block is absent.
	TransportMode string            `gorm:"column:transport_mode" json:"transport_mode,omitempty"`
	Carrier       datatypes.JSONMap `gorm:"column:carrier;type:jsonb" json:"carrier,omitempty"`
	Driver        datatypes.JSONMap `gorm:"column:driver;type:jsonb" json:"driver,omitempty"`
	Recipient     datatypes.JSONMap `gorm:"column:recipient;type:jsonb" json:"recipient,omitempty"`

	// Gateway outcome. Links are populated only once terminal.
	GatewayTicket string `gorm:"column:gateway_ticket" json:"gateway_ticket,omitempty"`
	LastError     string `gorm:"column:last_error" json:"last_error,omitempty"`
	PDFLink       string `gorm:"column:pdf_link" json:"pdf_link,omitempty"`
	XMLLink       string `gorm:"column:xml_link" json:"xml_link,omitempty"`
	CDRLink       string `gorm:"column:cdr_link" json:"cdr_link,omitempty"`

	Items        []LineItem        `gorm:"foreignKey:DocumentID" json:"items"`
	Related      []RelatedDocument `gorm:"foreignKey:DocumentID" json:"related,omitempty"`
	Installments []Installment     `gorm:"foreignKey:DocumentID" json:"installments,omitempty"`

	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (Document) TableName() string {
	return "fiscal_documents"
}

type LineItem struct {
	ID          uint    `gorm:"primaryKey" json:"id"`
	DocumentID  uint    `gorm:"column:document_id;index" json:"document_id"`
	Description string  `gorm:"column:description" json:"description"`
	Quantity    float64 `gorm:"column:quantity" json:"quantity"`
	UnitPrice   float64 `gorm:"column:unit_price" json:"unit_price"`
	TaxCode     string  `gorm:"column:tax_code" json:"tax_code"`
	Subtotal    float64 `gorm:"column:subtotal" json:"subtotal"`
	Tax         float64 `gorm:"column:tax" json:"tax"`
	Total       float64 `gorm:"column:total" json:"total"`
}

func (LineItem) TableName() string {
	return "fiscal_document_items"
}

// RelatedDocument references a prior document, e.g. the invoice a waybill
// accompanies or the invoice a credit note amends.
type RelatedDocument struct {
	ID            uint   `gorm:"primaryKey" json:"id"`
	DocumentID    uint   `gorm:"column:document_id;index" json:"document_id"`
	RelatedType   string `gorm:"column:related_type" json:"related_type"`
	RelatedSeries string `gorm:"column:related_series" json:"related_series"`
	RelatedNumber int64  `gorm:"column:related_number" json:"related_number"`
}

func (RelatedDocument) TableName() string {
	return "fiscal_document_related"
}

type Installment struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	DocumentID uint      `gorm:"column:document_id;index" json:"document_id"`
	DueDate    time.Time `gorm:"column:due_date" json:"due_date"`
	Amount     float64   `gorm:"column:amount" json:"amount"`
}

func (Installment) TableName() string {
	return "fiscal_document_installments"
}
