package registry

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minerva-intel/minerva/pkg/events"
	"github.com/minerva-intel/minerva/pkg/models"
)

func TestCreateDocument(t *testing.T) {
	t.Run("assigns a slug from the title", func(t *testing.T) {
		env := setupTest(t)
		doc := env.createDocument(t, "Quarterly Threat Report", "")
		assert.Equal(t, "quarterly-threat-report", doc.URL)
		assert.Equal(t, models.StatusSubmitted, doc.Status)
		assert.Nil(t, doc.Reference)
		assert.NotEqual(t, uuid.Nil, doc.DocumentUUID)
	})

	t.Run("slug collisions probe increasing suffixes", func(t *testing.T) {
		env := setupTest(t)
		first := env.createDocument(t, "Weekly Digest", "")
		second := env.createDocument(t, "Weekly Digest", "")
		third := env.createDocument(t, "Weekly Digest", "")

		assert.Equal(t, "weekly-digest", first.URL)
		assert.Equal(t, "weekly-digest-1", second.URL)
		assert.Equal(t, "weekly-digest-2", third.URL)
	})

	t.Run("slugs stay unique across many creates", func(t *testing.T) {
		env := setupTest(t)
		seen := make(map[string]bool)
		for i := 0; i < 10; i++ {
			doc := env.createDocument(t, "Same Title", "")
			assert.False(t, seen[doc.URL], "duplicate slug %s", doc.URL)
			seen[doc.URL] = true
		}
	})

	t.Run("registered creation assigns sequence and reference", func(t *testing.T) {
		env := setupTest(t)
		doc := env.createDocument(t, "Flash Report", models.StatusRegistered)

		assert.Equal(t, 1, doc.SequenceID)
		require.NotNil(t, doc.Reference)
		assert.Equal(t, "DI-2024-03-001", *doc.Reference)
	})

	t.Run("sequences are monotonic within the period", func(t *testing.T) {
		env := setupTest(t)
		for i := 1; i <= 3; i++ {
			doc := env.createDocument(t, "Report", models.StatusRegistered)
			assert.Equal(t, i, doc.SequenceID)
		}
		last := env.createDocument(t, "Final", models.StatusRegistered)
		require.NotNil(t, last.Reference)
		assert.Equal(t, "DI-2024-03-004", *last.Reference)
	})

	t.Run("missing title fails validation", func(t *testing.T) {
		env := setupTest(t)
		_, err := env.registry.CreateDocument(context.Background(), "tester", DocumentInput{})
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Contains(t, verr.Fields, "Title")
	})

	t.Run("denied authorization leaves no state", func(t *testing.T) {
		env := setupTest(t)
		env.registry.authorizer = denyAll{}

		_, err := env.registry.CreateDocument(context.Background(), "tester", DocumentInput{Title: "X"})
		require.ErrorIs(t, err, ErrUnauthorized)

		var count int64
		require.NoError(t, env.db.Model(&models.Document{}).Count(&count).Error)
		assert.Zero(t, count)
	})

	t.Run("emits a created event through the outbox", func(t *testing.T) {
		env := setupTest(t)
		doc := env.createDocument(t, "Evented", "")
		env.drain(t)

		created := env.recorder.ByType(events.TypeDocumentCreated)
		require.Len(t, created, 1)
		assert.Equal(t, doc.DocumentUUID.String(), created[0].DocumentUUID)
	})
}

func TestUpdateDocument(t *testing.T) {
	t.Run("unchanged title keeps the slug", func(t *testing.T) {
		env := setupTest(t)
		doc := env.createDocument(t, "Stable Title", "")

		updated, err := env.registry.UpdateDocument(context.Background(), "tester", doc.DocumentUUID, DocumentInput{
			Title:          "Stable Title",
			Classification: "TLP:AMBER",
		})
		require.NoError(t, err)
		assert.Equal(t, doc.URL, updated.URL)
		assert.Equal(t, "TLP:AMBER", updated.Classification)
	})

	t.Run("changed title regenerates the slug", func(t *testing.T) {
		env := setupTest(t)
		doc := env.createDocument(t, "Old Title", "")

		updated, err := env.registry.UpdateDocument(context.Background(), "tester", doc.DocumentUUID, DocumentInput{
			Title: "New Title",
		})
		require.NoError(t, err)
		assert.Equal(t, "new-title", updated.URL)
	})

	t.Run("rename onto an occupied slug gets a suffix", func(t *testing.T) {
		env := setupTest(t)
		env.createDocument(t, "Taken", "")
		doc := env.createDocument(t, "Something Else", "")

		updated, err := env.registry.UpdateDocument(context.Background(), "tester", doc.DocumentUUID, DocumentInput{
			Title: "Taken",
		})
		require.NoError(t, err)
		assert.Equal(t, "taken-1", updated.URL)
	})

	t.Run("first transition to registered allocates the reference once", func(t *testing.T) {
		env := setupTest(t)
		doc := env.createDocument(t, "Pending Report", "")

		updated, err := env.registry.UpdateDocument(context.Background(), "tester", doc.DocumentUUID, DocumentInput{
			Title:  "Pending Report",
			Status: models.StatusRegistered,
		})
		require.NoError(t, err)
		require.NotNil(t, updated.Reference)
		ref := *updated.Reference

		// Further edits don't cross the boundary again.
		again, err := env.registry.UpdateDocument(context.Background(), "tester", doc.DocumentUUID, DocumentInput{
			Title:  "Pending Report",
			Status: models.StatusRegistered,
		})
		require.NoError(t, err)
		require.NotNil(t, again.Reference)
		assert.Equal(t, ref, *again.Reference)
		assert.Equal(t, updated.SequenceID, again.SequenceID)
	})

	t.Run("unknown document is NotFound", func(t *testing.T) {
		env := setupTest(t)
		_, err := env.registry.UpdateDocument(context.Background(), "tester", uuid.New(), DocumentInput{Title: "X"})
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestRegisterDocument(t *testing.T) {
	env := setupTest(t)
	doc := env.createDocument(t, "Analyzed Report", models.StatusAnalyzed)

	registered, err := env.registry.RegisterDocument(context.Background(), "tester", doc.DocumentUUID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRegistered, registered.Status)
	require.NotNil(t, registered.Reference)
	assert.Equal(t, "DI-2024-03-001", *registered.Reference)

	t.Run("registering again is a no-op", func(t *testing.T) {
		again, err := env.registry.RegisterDocument(context.Background(), "tester", doc.DocumentUUID)
		require.NoError(t, err)
		assert.Equal(t, *registered.Reference, *again.Reference)
	})

	t.Run("emits a registered event", func(t *testing.T) {
		env.drain(t)
		regEvents := env.recorder.ByType(events.TypeDocumentRegistered)
		require.Len(t, regEvents, 1)
		assert.Equal(t, "DI-2024-03-001", regEvents[0].Reference)
	})
}

func TestAddFile(t *testing.T) {
	pdfBytes := []byte{0x25, 0x50, 0x44, 0x46, 0x2D, 0x31, 0x2E, 0x37, 0x00, 0x01, 0x02}

	t.Run("classifies and stores content", func(t *testing.T) {
		env := setupTest(t)
		doc := env.createDocument(t, "With Attachment", models.StatusRegistered)

		file, err := env.registry.AddFile(context.Background(), "tester", doc.DocumentUUID, "report.bin", bytes.NewReader(pdfBytes))
		require.NoError(t, err)
		assert.Equal(t, "application/pdf", file.MimeType)
		assert.True(t, strings.HasSuffix(file.Filepath, ".pdf"))
		assert.True(t, strings.HasPrefix(file.Filepath, "2024/03/"))
		assert.Equal(t, int64(len(pdfBytes)), file.Size)

		// Content actually landed in the store.
		f, err := env.store.Open(file.Filepath)
		require.NoError(t, err)
		f.Close()
	})

	t.Run("duplicate content across documents is rejected with the first reference", func(t *testing.T) {
		env := setupTest(t)
		first := env.createDocument(t, "First Doc", models.StatusRegistered)
		second := env.createDocument(t, "Second Doc", models.StatusRegistered)

		_, err := env.registry.AddFile(context.Background(), "tester", first.DocumentUUID, "a.pdf", bytes.NewReader(pdfBytes))
		require.NoError(t, err)

		_, err = env.registry.AddFile(context.Background(), "tester", second.DocumentUUID, "b.pdf", bytes.NewReader(pdfBytes))
		var dup *DuplicateContentError
		require.ErrorAs(t, err, &dup)
		assert.Equal(t, *first.Reference, dup.ExistingReference)
		assert.NotEmpty(t, dup.Hash)
	})

	t.Run("re-attaching the same content to the same document is a no-op", func(t *testing.T) {
		env := setupTest(t)
		doc := env.createDocument(t, "Doc", models.StatusRegistered)

		file, err := env.registry.AddFile(context.Background(), "tester", doc.DocumentUUID, "a.pdf", bytes.NewReader(pdfBytes))
		require.NoError(t, err)
		again, err := env.registry.AddFile(context.Background(), "tester", doc.DocumentUUID, "a.pdf", bytes.NewReader(pdfBytes))
		require.NoError(t, err)
		assert.Equal(t, file.ID, again.ID)
	})

	t.Run("unknown binary signature is rejected", func(t *testing.T) {
		env := setupTest(t)
		doc := env.createDocument(t, "Doc", "")

		elf := []byte{0x7F, 0x45, 0x4C, 0x46, 0x00, 0x01}
		_, err := env.registry.AddFile(context.Background(), "tester", doc.DocumentUUID, "a.bin", bytes.NewReader(elf))
		assert.ErrorIs(t, err, ErrUnsupportedContentType)
	})

	t.Run("html text classifies as html", func(t *testing.T) {
		env := setupTest(t)
		doc := env.createDocument(t, "Doc", "")

		file, err := env.registry.AddFile(context.Background(), "tester", doc.DocumentUUID, "page",
			strings.NewReader("<!DOCTYPE HTML><html><body>hi</body></html>"))
		require.NoError(t, err)
		assert.True(t, strings.HasSuffix(file.Filepath, ".html"))
	})
}

func TestDeleteFile(t *testing.T) {
	env := setupTest(t)
	doc := env.createDocument(t, "Doc", models.StatusRegistered)

	file, err := env.registry.AddFile(context.Background(), "tester", doc.DocumentUUID, "note.txt",
		strings.NewReader("plain text attachment"))
	require.NoError(t, err)

	require.NoError(t, env.registry.DeleteFile(context.Background(), "tester", file.FileUUID))

	_, err = env.store.Open(file.Filepath)
	assert.Error(t, err, "content should be removed from storage")

	err = env.registry.DeleteFile(context.Background(), "tester", file.FileUUID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListDocuments(t *testing.T) {
	env := setupTest(t)
	facet := env.createFacet(t, "actor", "")
	tag := env.createTag(t, facet.ID, "APT28")

	doc := env.createDocument(t, "Tagged Report", models.StatusRegistered)
	_, err := env.registry.UpdateDocument(context.Background(), "tester", doc.DocumentUUID, DocumentInput{
		Title:  "Tagged Report",
		Status: models.StatusRegistered,
		TagIDs: []uint{tag.ID},
	})
	require.NoError(t, err)
	env.createDocument(t, "Untagged Report", "")

	t.Run("by status", func(t *testing.T) {
		docs, err := env.registry.ListDocuments(models.DocumentFilter{Status: models.StatusRegistered})
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Equal(t, "Tagged Report", docs[0].Title)
	})

	t.Run("by tag", func(t *testing.T) {
		docs, err := env.registry.ListDocuments(models.DocumentFilter{TagID: tag.ID})
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Equal(t, doc.DocumentUUID, docs[0].DocumentUUID)
	})

	t.Run("by facet", func(t *testing.T) {
		docs, err := env.registry.ListDocuments(models.DocumentFilter{FacetID: facet.ID})
		require.NoError(t, err)
		assert.Len(t, docs, 1)
	})

	t.Run("by title fragment", func(t *testing.T) {
		docs, err := env.registry.ListDocuments(models.DocumentFilter{TitleContains: "Untagged"})
		require.NoError(t, err)
		assert.Len(t, docs, 1)
	})

	t.Run("by period", func(t *testing.T) {
		period := testClock()
		docs, err := env.registry.ListDocuments(models.DocumentFilter{Period: &period})
		require.NoError(t, err)
		assert.Len(t, docs, 2)
	})
}

func TestGetDocument(t *testing.T) {
	env := setupTest(t)
	doc := env.createDocument(t, "Findable", models.StatusRegistered)

	byUUID, err := env.registry.GetDocument(doc.DocumentUUID)
	require.NoError(t, err)
	assert.Equal(t, doc.ID, byUUID.ID)

	byRef, err := env.registry.GetDocumentByReference(*doc.Reference)
	require.NoError(t, err)
	assert.Equal(t, doc.ID, byRef.ID)

	byURL, err := env.registry.GetDocumentByURL(doc.URL)
	require.NoError(t, err)
	assert.Equal(t, doc.ID, byURL.ID)

	_, err = env.registry.GetDocument(uuid.New())
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestListFiles(t *testing.T) {
	env := setupTest(t)
	doc := env.createDocument(t, "With Attachments", "")
	pdf := []byte{0x25, 0x50, 0x44, 0x46, 0x2D, 0x31, 0x2E, 0x37}
	png := []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}

	first, err := env.registry.AddFile(context.Background(), "tester", doc.DocumentUUID, "report.pdf", bytes.NewReader(pdf))
	require.NoError(t, err)
	second, err := env.registry.AddFile(context.Background(), "tester", doc.DocumentUUID, "chart.png", bytes.NewReader(png))
	require.NoError(t, err)

	files, err := env.registry.ListFiles(doc.DocumentUUID)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.ElementsMatch(t,
		[]uuid.UUID{first.FileUUID, second.FileUUID},
		[]uuid.UUID{files[0].FileUUID, files[1].FileUUID})

	_, err = env.registry.ListFiles(uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}
