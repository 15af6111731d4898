package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DocumentFile is a file attached to exactly one document. The extension and
// mime type come from content sniffing, never from client-supplied metadata,
// and Sha256Hash is unique across the whole system: the same content may not
// live under two different documents.
type DocumentFile struct {
	ID uint `gorm:"primaryKey" json:"id"`

	FileUUID   uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"fileUuid"`
	DocumentID uint      `gorm:"not null;index" json:"documentId"`

	Sha256Hash string `gorm:"type:varchar(64);uniqueIndex;not null" json:"sha256Hash"`
	Filepath   string `gorm:"size:512;not null" json:"filepath"`
	Filename   string `gorm:"size:512" json:"filename,omitempty"`
	MimeType   string `gorm:"size:255" json:"mimeType"`
	Size       int64  `json:"size"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Document *Document `gorm:"foreignKey:DocumentID" json:"-"`
}

// TableName specifies the table name.
func (DocumentFile) TableName() string {
	return "document_files"
}

// BeforeCreate hook to generate the file UUID if not set.
func (f *DocumentFile) BeforeCreate(tx *gorm.DB) error {
	if f.FileUUID == uuid.Nil {
		f.FileUUID = uuid.New()
	}
	return nil
}

// FindFileByHash retrieves the file with the given content hash, with its
// owning document preloaded, or nil when no such file exists. The duplicate
// check needs the document so it can report the existing reference.
func FindFileByHash(db *gorm.DB, hash string) (*DocumentFile, error) {
	var file DocumentFile
	err := db.Preload("Document").Where("sha256_hash = ?", hash).First(&file).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &file, nil
}

// GetFileByUUID retrieves a file by its UUID.
func GetFileByUUID(db *gorm.DB, id uuid.UUID) (*DocumentFile, error) {
	var file DocumentFile
	err := db.Preload("Document").Where("file_uuid = ?", id).First(&file).Error
	if err != nil {
		return nil, err
	}
	return &file, nil
}

// GetFilesForDocument retrieves all files attached to a document.
func GetFilesForDocument(db *gorm.DB, documentID uint) ([]DocumentFile, error) {
	var files []DocumentFile
	err := db.Where("document_id = ?", documentID).
		Order("created_at ASC").
		Find(&files).Error
	return files, err
}
