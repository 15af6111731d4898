package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minerva-intel/minerva/pkg/events"
	"github.com/minerva-intel/minerva/pkg/models"
)

func TestCreateTag(t *testing.T) {
	t.Run("derives the slug from the label", func(t *testing.T) {
		env := setupTest(t)
		facet := env.createFacet(t, "actor", "")

		tag := env.createTag(t, facet.ID, "Fancy Bear")
		assert.Equal(t, "Fancy Bear", tag.Label)
		assert.Equal(t, "fancy-bear", tag.URL)
	})

	t.Run("normalizes the label before slugging", func(t *testing.T) {
		env := setupTest(t)
		facet := env.createFacet(t, "country", "upcase")

		tag := env.createTag(t, facet.ID, "france")
		assert.Equal(t, "FRANCE", tag.Label)
		assert.Equal(t, "france", tag.URL)
	})

	t.Run("unknown normalization is identity", func(t *testing.T) {
		env := setupTest(t)
		facet := env.createFacet(t, "misc", "shoutcase")

		tag := env.createTag(t, facet.ID, "As Written")
		assert.Equal(t, "As Written", tag.Label)
	})

	t.Run("duplicate label in facet is rejected case-insensitively", func(t *testing.T) {
		env := setupTest(t)
		facet := env.createFacet(t, "actor", "")
		env.createTag(t, facet.ID, "Emotet")

		_, err := env.registry.CreateTag(context.Background(), "tester", TagInput{
			FacetID: facet.ID,
			Label:   "EMOTET",
		})
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
	})

	t.Run("same label under another facet gets a suffixed slug", func(t *testing.T) {
		env := setupTest(t)
		cities := env.createFacet(t, "city", "")
		people := env.createFacet(t, "person", "")

		first := env.createTag(t, cities.ID, "Paris")
		second := env.createTag(t, people.ID, "Paris")
		assert.Equal(t, "paris", first.URL)
		assert.Equal(t, "paris-1", second.URL)
	})

	t.Run("friendly name is prefixed", func(t *testing.T) {
		env := setupTest(t)
		facet := env.createFacet(t, "actor", "")
		tag := env.createTag(t, facet.ID, "Sandworm")
		assert.Equal(t, "actor:Sandworm", tag.FriendlyName())
	})

	t.Run("is retrievable by slug", func(t *testing.T) {
		env := setupTest(t)
		facet := env.createFacet(t, "actor", "")
		tag := env.createTag(t, facet.ID, "Wizard Spider")

		found, err := env.registry.GetTagByURL("wizard-spider")
		require.NoError(t, err)
		assert.Equal(t, tag.ID, found.ID)

		_, err = env.registry.GetTagByURL("nobody")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("missing facet is NotFound", func(t *testing.T) {
		env := setupTest(t)
		_, err := env.registry.CreateTag(context.Background(), "tester", TagInput{
			FacetID: 999,
			Label:   "orphan",
		})
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestUpdateTag(t *testing.T) {
	t.Run("unchanged label keeps the slug", func(t *testing.T) {
		env := setupTest(t)
		facet := env.createFacet(t, "actor", "")
		tag := env.createTag(t, facet.ID, "Turla")

		updated, err := env.registry.UpdateTag(context.Background(), "tester", tag.ID, TagInput{
			FacetID:     facet.ID,
			Label:       "Turla",
			Description: "aka Snake",
		})
		require.NoError(t, err)
		assert.Equal(t, "turla", updated.URL)
		assert.Equal(t, "aka Snake", updated.Description)
	})

	t.Run("changed label regenerates the slug with suffix increment", func(t *testing.T) {
		env := setupTest(t)
		facet := env.createFacet(t, "actor", "")
		blocker := env.createFacet(t, "other", "")
		env.createTag(t, blocker.ID, "Renamed")
		tag := env.createTag(t, facet.ID, "Original")

		updated, err := env.registry.UpdateTag(context.Background(), "tester", tag.ID, TagInput{
			FacetID: facet.ID,
			Label:   "Renamed",
		})
		require.NoError(t, err)
		assert.Equal(t, "Renamed", updated.Label)
		assert.Equal(t, "renamed-1", updated.URL)
	})

	t.Run("facet move with a taken label is rejected", func(t *testing.T) {
		env := setupTest(t)
		source := env.createFacet(t, "actor", "")
		target := env.createFacet(t, "group", "")
		env.createTag(t, target.ID, "Lockbit")
		tag := env.createTag(t, source.ID, "LOCKBIT")

		_, err := env.registry.UpdateTag(context.Background(), "tester", tag.ID, TagInput{
			FacetID: target.ID,
			Label:   "LOCKBIT",
		})
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Contains(t, verr.Fields["label"], "already exists")
	})

	t.Run("facet move with a free label succeeds", func(t *testing.T) {
		env := setupTest(t)
		source := env.createFacet(t, "actor", "")
		target := env.createFacet(t, "group", "")
		tag := env.createTag(t, source.ID, "Conti")

		moved, err := env.registry.UpdateTag(context.Background(), "tester", tag.ID, TagInput{
			FacetID: target.ID,
			Label:   "Conti",
		})
		require.NoError(t, err)
		assert.Equal(t, target.ID, moved.FacetID)
		assert.Equal(t, "conti", moved.URL)
	})

	t.Run("normalization applies on label change", func(t *testing.T) {
		env := setupTest(t)
		facet := env.createFacet(t, "country", "upcase")
		tag := env.createTag(t, facet.ID, "spain")

		updated, err := env.registry.UpdateTag(context.Background(), "tester", tag.ID, TagInput{
			FacetID: facet.ID,
			Label:   "portugal",
		})
		require.NoError(t, err)
		assert.Equal(t, "PORTUGAL", updated.Label)
	})
}

func TestMergeTags(t *testing.T) {
	t.Run("rehomes associations exactly once", func(t *testing.T) {
		env := setupTest(t)
		facet := env.createFacet(t, "actor", "")
		primary := env.createTag(t, facet.ID, "APT28")
		secondary := env.createTag(t, facet.ID, "Fancy Bear")

		docBoth := env.createDocument(t, "Linked To Both", "")
		docSecondary := env.createDocument(t, "Linked To Secondary", "")

		require.NoError(t, models.CreateAssociation(env.db, docBoth.ID, primary.ID))
		require.NoError(t, models.CreateAssociation(env.db, docBoth.ID, secondary.ID))
		require.NoError(t, models.CreateAssociation(env.db, docSecondary.ID, secondary.ID))

		merged, err := env.registry.MergeTags(context.Background(), "tester", primary.ID, secondary.ID)
		require.NoError(t, err)
		assert.Equal(t, primary.ID, merged.ID)

		// The secondary tag is gone.
		_, err = env.registry.GetTag(secondary.ID)
		assert.ErrorIs(t, err, ErrNotFound)

		// Every document previously linked to the secondary is linked to the
		// primary exactly once.
		for _, docID := range []uint{docBoth.ID, docSecondary.ID} {
			var count int64
			require.NoError(t, env.db.Model(&models.DocumentTag{}).
				Where("document_id = ? AND tag_id = ?", docID, primary.ID).
				Count(&count).Error)
			assert.Equal(t, int64(1), count)
		}

		// No associations reference the deleted tag.
		var orphans int64
		require.NoError(t, env.db.Model(&models.DocumentTag{}).
			Where("tag_id = ?", secondary.ID).
			Count(&orphans).Error)
		assert.Zero(t, orphans)
	})

	t.Run("emits a merge event with the affected documents", func(t *testing.T) {
		env := setupTest(t)
		facet := env.createFacet(t, "actor", "")
		primary := env.createTag(t, facet.ID, "Keep")
		secondary := env.createTag(t, facet.ID, "Fold")
		doc := env.createDocument(t, "Moved", "")
		require.NoError(t, models.CreateAssociation(env.db, doc.ID, secondary.ID))

		_, err := env.registry.MergeTags(context.Background(), "tester", primary.ID, secondary.ID)
		require.NoError(t, err)
		env.drain(t)

		merges := env.recorder.ByType(events.TypeTagsMerged)
		require.Len(t, merges, 1)
		assert.Equal(t, primary.ID, merges[0].RetainedID)
		assert.Equal(t, secondary.ID, merges[0].RemovedID)
		assert.Equal(t, []string{doc.DocumentUUID.String()}, merges[0].AffectedDocuments)
	})

	t.Run("missing tag fails the merge", func(t *testing.T) {
		env := setupTest(t)
		facet := env.createFacet(t, "actor", "")
		tag := env.createTag(t, facet.ID, "Lonely")

		_, err := env.registry.MergeTags(context.Background(), "tester", tag.ID, 999)
		assert.ErrorIs(t, err, ErrNotFound)

		_, err = env.registry.MergeTags(context.Background(), "tester", 999, tag.ID)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("merging a tag into itself is rejected", func(t *testing.T) {
		env := setupTest(t)
		facet := env.createFacet(t, "actor", "")
		tag := env.createTag(t, facet.ID, "Self")

		_, err := env.registry.MergeTags(context.Background(), "tester", tag.ID, tag.ID)
		var verr *ValidationError
		assert.ErrorAs(t, err, &verr)
	})
}
