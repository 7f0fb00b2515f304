package document

import (
	"context"
	"errors"
	"time"

	"github.com/fiscalflow/platform/pkg/common/models"
	"gorm.io/gorm"
)

var ErrDocumentNotFound = errors.New("fiscal document not found")

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&Document{}, &LineItem{}, &RelatedDocument{}, &Installment{})
}

func (r *Repository) Create(ctx context.Context, doc *Document) error {
	return r.db.WithContext(ctx).Create(doc).Error
}

func (r *Repository) Get(ctx context.Context, id uint) (*Document, error) {
	var doc Document
	result := r.db.WithContext(ctx).
		Preload("Items").
		Preload("Related").
		Preload("Installments").
		First(&doc, "id = ?", id)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrDocumentNotFound
	}
	return &doc, result.Error
}

// FindDrafts returns every document still awaiting submission. The empty
// string is matched alongside draft because rows inserted by the CRUD layer
// may never have touched the state column.
func (r *Repository) FindDrafts(ctx context.Context) ([]Document, error) {
	var docs []Document
	result := r.db.WithContext(ctx).
		Preload("Items").
		Preload("Related").
		Preload("Installments").
		Where("state IN ?", []string{"", string(StateDraft)}).
		Order("id asc").
		Find(&docs)
	return docs, result.Error
}

// FindInFlight returns documents stranded mid-submission, used by the poll
// manager's startup recovery scan.
func (r *Repository) FindInFlight(ctx context.Context) ([]Document, error) {
	var docs []Document
	result := r.db.WithContext(ctx).
		Where("state = ?", string(StateInFlight)).
		Order("id asc").
		Find(&docs)
	return docs, result.Error
}

// Transition performs the atomic read-check-write the pipeline relies on:
// the row is updated only if it is still in the expected state. The boolean
// reports whether this caller won the write; a false result with a nil error
// means another path got there first.
func (r *Repository) Transition(ctx context.Context, id uint, from, to State, updates map[string]interface{}) (bool, error) {
	if updates == nil {
		updates = map[string]interface{}{}
	}
	updates["state"] = string(to)
	updates["updated_at"] = time.Now().UTC()

	result := r.db.WithContext(ctx).
		Model(&Document{}).
		Where("id = ? AND state = ?", id, string(from)).
		Updates(updates)
	return result.RowsAffected == 1, result.Error
}

// MarkQueued moves a draft into the queue. Drafts with an unset state column
// are claimed too.
func (r *Repository) MarkQueued(ctx context.Context, id uint) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&Document{}).
		Where("id = ? AND state IN ?", id, []string{"", string(StateDraft)}).
		Updates(map[string]interface{}{
			"state":      string(StateQueued),
			"updated_at": time.Now().UTC(),
		})
	return result.RowsAffected == 1, result.Error
}

// MarkCompleted writes the artifact links and the terminal state in one
// conditional update. It loses (returns false) if the document already left
// in_flight, which is how the finalize race stays benign.
func (r *Repository) MarkCompleted(ctx context.Context, id uint, links models.ArtifactLinks) (bool, error) {
	return r.Transition(ctx, id, StateInFlight, StateCompleted, map[string]interface{}{
		"pdf_link": links.PDF,
		"xml_link": links.XML,
		"cdr_link": links.CDR,
	})
}

// MarkFailed finalizes a non-terminal document with the reason captured
// verbatim for operator visibility.
func (r *Repository) MarkFailed(ctx context.Context, id uint, reason string) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&Document{}).
		Where("id = ? AND state NOT IN ?", id, []string{string(StateCompleted), string(StateFailed)}).
		Updates(map[string]interface{}{
			"state":      string(StateFailed),
			"last_error": reason,
			"updated_at": time.Now().UTC(),
		})
	return result.RowsAffected == 1, result.Error
}

func (r *Repository) SetTicket(ctx context.Context, id uint, ticket string) error {
	return r.db.WithContext(ctx).
		Model(&Document{}).
		Where("id = ?", id).
		Update("gateway_ticket", ticket).Error
}

// ResetToDraft is the operator action that permits resubmission of a failed
// document. Partial gateway artifacts are cleared so the next run starts
// clean.
func (r *Repository) ResetToDraft(ctx context.Context, id uint) (bool, error) {
	return r.Transition(ctx, id, StateFailed, StateDraft, map[string]interface{}{
		"last_error":     "",
		"gateway_ticket": "",
		"pdf_link":       "",
		"xml_link":       "",
		"cdr_link":       "",
	})
}
