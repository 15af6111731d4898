package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/minerva-intel/minerva/pkg/identifier"
)

// DocumentStatus is the lifecycle state of a document.
type DocumentStatus string

const (
	StatusSubmitted  DocumentStatus = "submitted"
	StatusAnalyzed   DocumentStatus = "analyzed"
	StatusRegistered DocumentStatus = "registered"
)

// ValidStatus reports whether s is a known lifecycle state.
func ValidStatus(s DocumentStatus) bool {
	switch s {
	case StatusSubmitted, StatusAnalyzed, StatusRegistered:
		return true
	}
	return false
}

// Document is an intelligence report with attached files and tag
// associations.
//
// Reference and URL are public identifiers: Reference is assigned once, when
// the document first reaches the registered status, and never changes; URL is
// regenerated only when the title changes. SequenceID is unique within the
// (year, month) of RegistrationDate, which the unique Reference index
// enforces since the reference embeds both the period and the sequence.
type Document struct {
	ID uint `gorm:"primaryKey" json:"id"`

	DocumentUUID uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"documentUuid"`

	// SequenceID is 0 until the document is registered.
	SequenceID int     `gorm:"not null;default:0" json:"sequenceId"`
	Reference  *string `gorm:"uniqueIndex;size:64" json:"reference,omitempty"`
	URL        string  `gorm:"uniqueIndex;not null;size:500" json:"url"`

	Title  string         `gorm:"not null;size:500" json:"title"`
	Status DocumentStatus `gorm:"type:varchar(20);not null;default:'submitted';index" json:"status"`

	RegistrationDate time.Time `gorm:"not null;index" json:"registrationDate"`
	ModificationDate time.Time `gorm:"not null" json:"modificationDate"`

	SourceURL      string `gorm:"size:2048" json:"sourceUrl,omitempty"`
	Classification string `gorm:"size:50" json:"classification,omitempty"`

	// Releasability control: group names the document may be released to,
	// and groups it is restricted to exclusively.
	ReleasableTo []string `gorm:"serializer:json" json:"releasableTo,omitempty"`
	EyesOnly     []string `gorm:"serializer:json" json:"eyesOnly,omitempty"`

	Tags  []Tag          `gorm:"many2many:document_tags" json:"tags,omitempty"`
	Files []DocumentFile `gorm:"foreignKey:DocumentID" json:"files,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName specifies the table name.
func (Document) TableName() string {
	return "documents"
}

// BeforeCreate hook to ensure identity fields are set.
func (d *Document) BeforeCreate(tx *gorm.DB) error {
	if d.DocumentUUID == uuid.Nil {
		d.DocumentUUID = uuid.New()
	}
	if d.Status == "" {
		d.Status = StatusSubmitted
	}
	if d.RegistrationDate.IsZero() {
		d.RegistrationDate = time.Now()
	}
	if d.ModificationDate.IsZero() {
		d.ModificationDate = d.RegistrationDate
	}
	return nil
}

// IsRegistered reports whether the document has reached the registered
// lifecycle state.
func (d *Document) IsRegistered() bool {
	return d.Status == StatusRegistered
}

// GetDocumentByUUID retrieves a document by its UUID.
func GetDocumentByUUID(db *gorm.DB, id uuid.UUID) (*Document, error) {
	var doc Document
	err := db.Preload("Tags").Preload("Files").
		Where("document_uuid = ?", id).
		First(&doc).Error
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// GetDocumentByReference retrieves a document by its public reference.
func GetDocumentByReference(db *gorm.DB, reference string) (*Document, error) {
	var doc Document
	err := db.Preload("Tags").Preload("Files").
		Where("reference = ?", reference).
		First(&doc).Error
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// GetDocumentByURL retrieves a document by its slug.
func GetDocumentByURL(db *gorm.DB, url string) (*Document, error) {
	var doc Document
	err := db.Preload("Tags").Preload("Files").
		Where("url = ?", url).
		First(&doc).Error
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// DocumentSlugExists reports whether any document other than excludeID
// already uses the given slug. The exclusion keeps a document's slug stable
// across updates that don't change its title.
func DocumentSlugExists(db *gorm.DB, slug string, excludeID uint) (bool, error) {
	var count int64
	q := db.Model(&Document{}).Where("url = ?", slug)
	if excludeID != 0 {
		q = q.Where("id != ?", excludeID)
	}
	if err := q.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// MaxSequenceForPeriod returns the highest sequence number among documents
// whose registration date falls in the same calendar month as period, or 0
// when the period has none. The caller allocates max+1; serialization of
// concurrent registrations is delegated to the unique reference constraint.
func MaxSequenceForPeriod(db *gorm.DB, period time.Time) (int, error) {
	start, end := identifier.PeriodBounds(period)

	var max int
	err := db.Model(&Document{}).
		Where("registration_date >= ? AND registration_date < ?", start, end).
		Select("COALESCE(MAX(sequence_id), 0)").
		Scan(&max).Error
	if err != nil {
		return 0, err
	}
	return max, nil
}

// DocumentFilter narrows a document listing.
type DocumentFilter struct {
	Status        DocumentStatus
	TagID         uint
	FacetID       uint
	Period        *time.Time // calendar month
	TitleContains string
	Limit         int
	Offset        int
}

// ListDocuments returns documents matching the filter, most recently
// registered first.
func ListDocuments(db *gorm.DB, filter DocumentFilter) ([]Document, error) {
	q := db.Model(&Document{}).Preload("Tags").Preload("Files")

	if filter.Status != "" {
		q = q.Where("documents.status = ?", filter.Status)
	}
	if filter.TitleContains != "" {
		q = q.Where("documents.title LIKE ?", "%"+filter.TitleContains+"%")
	}
	if filter.Period != nil {
		start, end := identifier.PeriodBounds(*filter.Period)
		q = q.Where("documents.registration_date >= ? AND documents.registration_date < ?", start, end)
	}
	if filter.TagID != 0 {
		q = q.Joins("JOIN document_tags ON document_tags.document_id = documents.id").
			Where("document_tags.tag_id = ?", filter.TagID)
	}
	if filter.FacetID != 0 {
		q = q.Joins("JOIN document_tags dt_facet ON dt_facet.document_id = documents.id").
			Joins("JOIN tags ON tags.id = dt_facet.tag_id").
			Where("tags.facet_id = ?", filter.FacetID)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}

	var docs []Document
	err := q.Distinct().Order("documents.registration_date DESC").Find(&docs).Error
	return docs, err
}
