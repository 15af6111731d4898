package registry

import (
	"context"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/minerva-intel/minerva/pkg/events"
	"github.com/minerva-intel/minerva/pkg/identifier"
	"github.com/minerva-intel/minerva/pkg/models"
	"github.com/minerva-intel/minerva/pkg/normalize"
)

// TagInput carries the caller-controlled fields of a tag.
type TagInput struct {
	FacetID     uint
	Label       string
	Description string
}

func (in TagInput) validate() error {
	return newValidationError(validation.ValidateStruct(&in,
		validation.Field(&in.FacetID, validation.Required),
		validation.Field(&in.Label, validation.Required, validation.Length(1, 255)),
	))
}

// CreateTag creates a tag under a facet. The label is normalized with the
// facet's transform before the uniqueness check, and the slug is derived
// from the normalized label.
func (r *Registry) CreateTag(ctx context.Context, principal string, in TagInput) (*models.Tag, error) {
	if err := r.authorize(ctx, principal, ActionCreate, "tag"); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	var tag *models.Tag
	err := r.withConflictRetry(func() error {
		return r.db.Transaction(func(tx *gorm.DB) error {
			facet, err := models.GetFacet(tx, in.FacetID)
			if err != nil {
				return notFoundOr(err, "facet")
			}

			label := normalize.Apply(in.Label, facet.TagNormalization)
			if label == "" {
				return fieldError("label", "empty after normalization")
			}

			existing, err := models.FindTagByFacetAndLabel(tx, facet.ID, label)
			if err != nil {
				return err
			}
			if existing != nil {
				return fieldError("label", fmt.Sprintf("already exists in facet %q", facet.Prefix))
			}

			url, err := nextTagSlug(tx, label, 0)
			if err != nil {
				return err
			}

			t := models.Tag{
				FacetID:     facet.ID,
				Facet:       facet,
				Label:       label,
				URL:         url,
				Description: in.Description,
			}
			if err := tx.Omit(clause.Associations).Create(&t).Error; err != nil {
				return err
			}

			evt := events.New(events.TypeTagCreated)
			evt.TagID = t.ID
			evt.FacetID = facet.ID
			if err := events.Enqueue(tx, evt); err != nil {
				return err
			}

			tag = &t
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	r.wakeDrainer()
	r.log.Info("created tag", "tag_id", tag.ID, "label", tag.Label, "url", tag.URL)
	return tag, nil
}

// UpdateTag applies caller-controlled fields to an existing tag. When the
// normalized label changed, the slug is regenerated; an unchanged label
// keeps it.
func (r *Registry) UpdateTag(ctx context.Context, principal string, tagID uint, in TagInput) (*models.Tag, error) {
	if err := r.authorize(ctx, principal, ActionUpdate, "tag"); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	var tag *models.Tag
	err := r.withConflictRetry(func() error {
		return r.db.Transaction(func(tx *gorm.DB) error {
			t, err := models.GetTag(tx, tagID)
			if err != nil {
				return notFoundOr(err, "tag")
			}
			facet := t.Facet
			facetChanged := false
			if in.FacetID != 0 && in.FacetID != t.FacetID {
				facet, err = models.GetFacet(tx, in.FacetID)
				if err != nil {
					return notFoundOr(err, "facet")
				}
				t.FacetID = facet.ID
				t.Facet = facet
				facetChanged = true
			}

			label := normalize.Apply(in.Label, facet.TagNormalization)
			if label == "" {
				return fieldError("label", "empty after normalization")
			}

			// A facet move needs the duplicate check even when the label is
			// unchanged: the label may already be taken in the target facet.
			if label != t.Label || facetChanged {
				existing, err := models.FindTagByFacetAndLabel(tx, t.FacetID, label)
				if err != nil {
					return err
				}
				if existing != nil && existing.ID != t.ID {
					return fieldError("label", fmt.Sprintf("already exists in facet %q", facet.Prefix))
				}
			}

			if label != t.Label {
				url, err := nextTagSlug(tx, label, t.ID)
				if err != nil {
					return err
				}
				t.Label = label
				t.URL = url
			}
			t.Description = in.Description

			if err := tx.Omit(clause.Associations).Save(t).Error; err != nil {
				return err
			}

			evt := events.New(events.TypeTagUpdated)
			evt.TagID = t.ID
			evt.FacetID = t.FacetID
			if err := events.Enqueue(tx, evt); err != nil {
				return err
			}

			tag = t
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	r.wakeDrainer()
	return tag, nil
}

// MergeTags folds the secondary tag into the primary one. Every document
// associated with the secondary ends up associated with the primary exactly
// once, the secondary is deleted, and the merge event carries the documents
// whose associations changed. The caller decides which tag survives.
func (r *Registry) MergeTags(ctx context.Context, principal string, primaryID, secondaryID uint) (*models.Tag, error) {
	if err := r.authorize(ctx, principal, ActionMerge, "tag"); err != nil {
		return nil, err
	}
	if primaryID == secondaryID {
		return nil, fieldError("secondaryId", "cannot merge a tag into itself")
	}

	var primary *models.Tag
	err := r.db.Transaction(func(tx *gorm.DB) error {
		p, err := models.GetTag(tx, primaryID)
		if err != nil {
			return notFoundOr(err, "primary tag")
		}
		if _, err := models.GetTag(tx, secondaryID); err != nil {
			return notFoundOr(err, "secondary tag")
		}

		affected, err := models.DocumentUUIDsForTag(tx, secondaryID)
		if err != nil {
			return err
		}

		if _, err := models.ReassignAssociations(tx, secondaryID, primaryID); err != nil {
			return err
		}
		if err := tx.Delete(&models.Tag{}, secondaryID).Error; err != nil {
			return err
		}

		evt := events.New(events.TypeTagsMerged)
		evt.RetainedID = primaryID
		evt.RemovedID = secondaryID
		evt.FacetID = p.FacetID
		for _, id := range affected {
			evt.AffectedDocuments = append(evt.AffectedDocuments, id.String())
		}
		if err := events.Enqueue(tx, evt); err != nil {
			return err
		}

		primary = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.wakeDrainer()
	r.log.Info("merged tags", "retained", primaryID, "removed", secondaryID)
	return primary, nil
}

// GetTag retrieves a tag by id.
func (r *Registry) GetTag(id uint) (*models.Tag, error) {
	tag, err := models.GetTag(r.db, id)
	if err != nil {
		return nil, notFoundOr(err, "tag")
	}
	return tag, nil
}

// GetTagByURL retrieves a tag by its slug.
func (r *Registry) GetTagByURL(url string) (*models.Tag, error) {
	tag, err := models.GetTagByURL(r.db, url)
	if err != nil {
		return nil, notFoundOr(err, "tag")
	}
	return tag, nil
}

// ListTags returns all tags with facets preloaded.
func (r *Registry) ListTags() ([]models.Tag, error) {
	return models.ListTags(r.db)
}

// nextTagSlug derives a slug from the normalized label using the
// suffix-increment variant: the maximum numeric suffix among sibling slugs
// is incremented rather than re-probing from -1 on every update.
func nextTagSlug(tx *gorm.DB, label string, excludeID uint) (string, error) {
	base := identifier.Slugify(label)
	siblings, err := models.SiblingTagSlugs(tx, base, excludeID)
	if err != nil {
		return "", err
	}
	return identifier.NextSlug(label, siblings), nil
}
