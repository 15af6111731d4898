package models

import (
	"time"

	"gorm.io/gorm"
)

// TagFacet is a namespace for tags. Its prefix is globally unique and forms
// the tag's friendly name; TagNormalization names the transform applied to
// every label written under the facet.
type TagFacet struct {
	ID uint `gorm:"primaryKey" json:"id"`

	Prefix      string `gorm:"uniqueIndex;not null;size:100" json:"prefix"`
	Description string `gorm:"size:1000" json:"description,omitempty"`

	// TagNormalization is a transform name from pkg/normalize. An empty or
	// unrecognized name means labels are stored as written.
	TagNormalization string `gorm:"size:50" json:"tagNormalization,omitempty"`

	// Mandatory marks facets every registered document must carry at least
	// one tag from.
	Mandatory bool `gorm:"not null;default:false" json:"mandatory"`

	Tags []Tag `gorm:"foreignKey:FacetID" json:"tags,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName specifies the table name.
func (TagFacet) TableName() string {
	return "tag_facets"
}

// GetFacet retrieves a facet by id.
func GetFacet(db *gorm.DB, id uint) (*TagFacet, error) {
	var facet TagFacet
	if err := db.First(&facet, id).Error; err != nil {
		return nil, err
	}
	return &facet, nil
}

// GetFacetByPrefix retrieves a facet by its unique prefix.
func GetFacetByPrefix(db *gorm.DB, prefix string) (*TagFacet, error) {
	var facet TagFacet
	if err := db.Where("prefix = ?", prefix).First(&facet).Error; err != nil {
		return nil, err
	}
	return &facet, nil
}

// ListFacets returns all facets ordered by prefix.
func ListFacets(db *gorm.DB) ([]TagFacet, error) {
	var facets []TagFacet
	err := db.Order("prefix ASC").Find(&facets).Error
	return facets, err
}
