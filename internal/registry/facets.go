package registry

import (
	"context"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/minerva-intel/minerva/pkg/events"
	"github.com/minerva-intel/minerva/pkg/models"
)

// FacetInput carries the caller-controlled fields of a tag facet.
//
// TagNormalization is not validated against the known transform set: an
// unrecognized name is accepted and behaves as identity. See pkg/normalize.
type FacetInput struct {
	Prefix           string
	Description      string
	TagNormalization string
	Mandatory        bool
}

func (in FacetInput) validate() error {
	return newValidationError(validation.ValidateStruct(&in,
		validation.Field(&in.Prefix, validation.Required, validation.Length(1, 100)),
	))
}

// CreateFacet creates a tag facet.
func (r *Registry) CreateFacet(ctx context.Context, principal string, in FacetInput) (*models.TagFacet, error) {
	if err := r.authorize(ctx, principal, ActionCreate, "facet"); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	facet := models.TagFacet{
		Prefix:           in.Prefix,
		Description:      in.Description,
		TagNormalization: in.TagNormalization,
		Mandatory:        in.Mandatory,
	}
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(&facet).Error; err != nil {
			if isUniqueViolation(err) {
				return fieldError("prefix", "already in use")
			}
			return err
		}
		evt := events.New(events.TypeFacetCreated)
		evt.FacetID = facet.ID
		return events.Enqueue(tx, evt)
	})
	if err != nil {
		return nil, err
	}

	r.wakeDrainer()
	r.log.Info("created facet", "facet_id", facet.ID, "prefix", facet.Prefix)
	return &facet, nil
}

// UpdateFacet applies caller-controlled fields to an existing facet.
// A changed normalization transform applies to labels written afterwards;
// existing labels are not rewritten.
func (r *Registry) UpdateFacet(ctx context.Context, principal string, facetID uint, in FacetInput) (*models.TagFacet, error) {
	if err := r.authorize(ctx, principal, ActionUpdate, "facet"); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	var facet *models.TagFacet
	err := r.db.Transaction(func(tx *gorm.DB) error {
		f, err := models.GetFacet(tx, facetID)
		if err != nil {
			return notFoundOr(err, "facet")
		}

		f.Prefix = in.Prefix
		f.Description = in.Description
		f.TagNormalization = in.TagNormalization
		f.Mandatory = in.Mandatory

		if err := tx.Omit(clause.Associations).Save(f).Error; err != nil {
			if isUniqueViolation(err) {
				return fieldError("prefix", "already in use")
			}
			return err
		}

		evt := events.New(events.TypeFacetUpdated)
		evt.FacetID = f.ID
		if err := events.Enqueue(tx, evt); err != nil {
			return err
		}

		facet = f
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.wakeDrainer()
	return facet, nil
}

// MergeFacets folds the secondary facet into the primary one. Tags under the
// secondary facet whose label collides case-sensitively with a primary-facet
// tag have their associations rewritten onto the primary-facet tag and are
// deleted; the remaining secondary tags are re-homed onto the primary facet
// with their identity and slug preserved. The secondary facet is then
// deleted. Runs in a single transaction, so a failure partway leaves no
// partially merged state.
func (r *Registry) MergeFacets(ctx context.Context, principal string, primaryID, secondaryID uint) (*models.TagFacet, error) {
	if err := r.authorize(ctx, principal, ActionMerge, "facet"); err != nil {
		return nil, err
	}
	if primaryID == secondaryID {
		return nil, fieldError("secondaryId", "cannot merge a facet into itself")
	}

	var primary *models.TagFacet
	err := r.db.Transaction(func(tx *gorm.DB) error {
		p, err := models.GetFacet(tx, primaryID)
		if err != nil {
			return notFoundOr(err, "primary facet")
		}
		if _, err := models.GetFacet(tx, secondaryID); err != nil {
			return notFoundOr(err, "secondary facet")
		}

		primaryTags, err := models.TagsForFacet(tx, primaryID)
		if err != nil {
			return err
		}

		// Resolve label collisions first so no two tags share
		// (primary facet, label) after the merge.
		for i := range primaryTags {
			collision, err := models.FindTagByFacetAndExactLabel(tx, secondaryID, primaryTags[i].Label)
			if err != nil {
				return err
			}
			if collision == nil {
				continue
			}
			if _, err := models.ReassignAssociations(tx, collision.ID, primaryTags[i].ID); err != nil {
				return err
			}
			if err := tx.Delete(&models.Tag{}, collision.ID).Error; err != nil {
				return err
			}
		}

		// Re-home the remaining secondary tags, keeping identity and slug.
		remaining, err := models.TagsForFacet(tx, secondaryID)
		if err != nil {
			return err
		}
		rehomed := make([]uint, 0, len(remaining))
		for i := range remaining {
			if err := tx.Model(&models.Tag{}).
				Where("id = ?", remaining[i].ID).
				Update("facet_id", primaryID).Error; err != nil {
				return err
			}
			rehomed = append(rehomed, remaining[i].ID)
		}

		if err := tx.Delete(&models.TagFacet{}, secondaryID).Error; err != nil {
			return err
		}

		evt := events.New(events.TypeFacetsMerged)
		evt.RetainedID = primaryID
		evt.RemovedID = secondaryID
		evt.RehomedTags = rehomed
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
	r.log.Info("merged facets",
		"retained", primaryID, "removed", secondaryID, "prefix", primary.Prefix)
	return primary, nil
}

// GetFacet retrieves a facet by id.
func (r *Registry) GetFacet(id uint) (*models.TagFacet, error) {
	facet, err := models.GetFacet(r.db, id)
	if err != nil {
		return nil, notFoundOr(err, "facet")
	}
	return facet, nil
}

// GetFacetByPrefix retrieves a facet by its unique prefix.
func (r *Registry) GetFacetByPrefix(prefix string) (*models.TagFacet, error) {
	facet, err := models.GetFacetByPrefix(r.db, prefix)
	if err != nil {
		return nil, notFoundOr(err, "facet")
	}
	return facet, nil
}

// ListFacets returns all facets.
func (r *Registry) ListFacets() ([]models.TagFacet, error) {
	return models.ListFacets(r.db)
}
