package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// Tag is a controlled-vocabulary entry belonging to exactly one facet. Label
// is unique within the facet case-insensitively, tracked through the stored
// LabelLower column; URL is unique across all tags.
type Tag struct {
	ID uint `gorm:"primaryKey" json:"id"`

	FacetID uint      `gorm:"not null;index;uniqueIndex:idx_tags_facet_label" json:"facetId"`
	Facet   *TagFacet `gorm:"foreignKey:FacetID" json:"facet,omitempty"`

	Label string `gorm:"not null;size:255" json:"label"`

	// LabelLower backs the case-insensitive (facet, label) uniqueness
	// constraint; maintained by the BeforeSave hook.
	LabelLower string `gorm:"not null;size:255;uniqueIndex:idx_tags_facet_label" json:"-"`

	URL string `gorm:"uniqueIndex;not null;size:500" json:"url"`

	Description string `gorm:"size:1000" json:"description,omitempty"`

	Documents []Document `gorm:"many2many:document_tags" json:"-"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName specifies the table name.
func (Tag) TableName() string {
	return "tags"
}

// BeforeSave hook to keep the case-folded label in sync.
func (t *Tag) BeforeSave(tx *gorm.DB) error {
	t.LabelLower = strings.ToLower(t.Label)
	return nil
}

// FriendlyName returns the namespaced display name, prefix:label when the
// facet carries a prefix, else the bare label.
func (t *Tag) FriendlyName() string {
	if t.Facet != nil && t.Facet.Prefix != "" {
		return t.Facet.Prefix + ":" + t.Label
	}
	return t.Label
}

// GetTag retrieves a tag by id with its facet preloaded.
func GetTag(db *gorm.DB, id uint) (*Tag, error) {
	var tag Tag
	if err := db.Preload("Facet").First(&tag, id).Error; err != nil {
		return nil, err
	}
	return &tag, nil
}

// GetTagByURL retrieves a tag by its slug.
func GetTagByURL(db *gorm.DB, url string) (*Tag, error) {
	var tag Tag
	if err := db.Preload("Facet").Where("url = ?", url).First(&tag).Error; err != nil {
		return nil, err
	}
	return &tag, nil
}

// FindTagByFacetAndLabel retrieves the tag with the given label under the
// facet, matching case-insensitively, or nil when none exists.
func FindTagByFacetAndLabel(db *gorm.DB, facetID uint, label string) (*Tag, error) {
	var tag Tag
	err := db.Where("facet_id = ? AND label_lower = ?", facetID, strings.ToLower(label)).
		First(&tag).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &tag, nil
}

// FindTagByFacetAndExactLabel retrieves the tag with the given label under
// the facet, matching case-sensitively, or nil when none exists. The facet
// merge collision pass matches labels exactly.
func FindTagByFacetAndExactLabel(db *gorm.DB, facetID uint, label string) (*Tag, error) {
	var tags []Tag
	err := db.Where("facet_id = ? AND label_lower = ?", facetID, strings.ToLower(label)).
		Find(&tags).Error
	if err != nil {
		return nil, err
	}
	for i := range tags {
		if tags[i].Label == label {
			return &tags[i], nil
		}
	}
	return nil, nil
}

// TagsForFacet retrieves all tags under a facet ordered by label.
func TagsForFacet(db *gorm.DB, facetID uint) ([]Tag, error) {
	var tags []Tag
	err := db.Where("facet_id = ?", facetID).Order("label ASC").Find(&tags).Error
	return tags, err
}

// SiblingTagSlugs returns the slugs of all tags whose URL is the given base
// slug or the base slug with a suffix. Feeds the suffix-increment slug
// variant so tag updates don't re-probe from the bottom.
func SiblingTagSlugs(db *gorm.DB, base string, excludeID uint) ([]string, error) {
	var slugs []string
	q := db.Model(&Tag{}).
		Where("url = ? OR url LIKE ?", base, base+"-%")
	if excludeID != 0 {
		q = q.Where("id != ?", excludeID)
	}
	err := q.Pluck("url", &slugs).Error
	return slugs, err
}

// ListTags returns all tags with facets preloaded, ordered by facet then
// label.
func ListTags(db *gorm.DB) ([]Tag, error) {
	var tags []Tag
	err := db.Preload("Facet").Order("facet_id ASC, label ASC").Find(&tags).Error
	return tags, err
}
