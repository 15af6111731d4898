package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DocumentTag is the explicit join record between documents and tags.
// Merges rewrite these rows rather than mutating association collections in
// place, so every back-reference survives a merge.
type DocumentTag struct {
	DocumentID uint `gorm:"primaryKey" json:"documentId"`
	TagID      uint `gorm:"primaryKey" json:"tagId"`

	CreatedAt time.Time `json:"createdAt"`
}

// TableName specifies the table name.
func (DocumentTag) TableName() string {
	return "document_tags"
}

// SetupJoinTables registers the explicit join model with GORM so association
// writes go through DocumentTag.
func SetupJoinTables(db *gorm.DB) error {
	return db.SetupJoinTable(&Document{}, "Tags", &DocumentTag{})
}

// DocumentIDsForTag returns the ids of all documents associated with a tag.
func DocumentIDsForTag(db *gorm.DB, tagID uint) ([]uint, error) {
	var ids []uint
	err := db.Model(&DocumentTag{}).
		Where("tag_id = ?", tagID).
		Pluck("document_id", &ids).Error
	return ids, err
}

// DocumentUUIDsForTag returns the UUIDs of all documents associated with a
// tag. Merge events carry UUIDs so consumers can refresh without another
// lookup.
func DocumentUUIDsForTag(db *gorm.DB, tagID uint) ([]uuid.UUID, error) {
	var uuids []uuid.UUID
	err := db.Model(&Document{}).
		Joins("JOIN document_tags ON document_tags.document_id = documents.id").
		Where("document_tags.tag_id = ?", tagID).
		Pluck("documents.document_uuid", &uuids).Error
	return uuids, err
}

// AssociationExists reports whether the document-tag association is present.
func AssociationExists(db *gorm.DB, documentID, tagID uint) (bool, error) {
	var count int64
	err := db.Model(&DocumentTag{}).
		Where("document_id = ? AND tag_id = ?", documentID, tagID).
		Count(&count).Error
	return count > 0, err
}

// CreateAssociation links a document to a tag.
func CreateAssociation(db *gorm.DB, documentID, tagID uint) error {
	return db.Create(&DocumentTag{DocumentID: documentID, TagID: tagID}).Error
}

// DeleteAssociationsForTag removes every association pointing at a tag.
func DeleteAssociationsForTag(db *gorm.DB, tagID uint) error {
	return db.Where("tag_id = ?", tagID).Delete(&DocumentTag{}).Error
}

// DeleteAssociationsForDocument removes every association a document holds.
func DeleteAssociationsForDocument(db *gorm.DB, documentID uint) error {
	return db.Where("document_id = ?", documentID).Delete(&DocumentTag{}).Error
}

// ReassignAssociations moves every association from one tag to another,
// skipping documents already linked to the target so no duplicate rows are
// created, then removes the leftover source rows. Returns the ids of the
// documents whose associations changed.
func ReassignAssociations(db *gorm.DB, fromTagID, toTagID uint) ([]uint, error) {
	fromDocs, err := DocumentIDsForTag(db, fromTagID)
	if err != nil {
		return nil, err
	}

	var moved []uint
	for _, docID := range fromDocs {
		exists, err := AssociationExists(db, docID, toTagID)
		if err != nil {
			return nil, err
		}
		if !exists {
			if err := CreateAssociation(db, docID, toTagID); err != nil {
				return nil, err
			}
		}
		moved = append(moved, docID)
	}

	if err := DeleteAssociationsForTag(db, fromTagID); err != nil {
		return nil, err
	}
	return moved, nil
}
