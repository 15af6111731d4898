package registry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/minerva-intel/minerva/pkg/content"
	"github.com/minerva-intel/minerva/pkg/events"
	"github.com/minerva-intel/minerva/pkg/identifier"
	"github.com/minerva-intel/minerva/pkg/models"
	"github.com/minerva-intel/minerva/pkg/storage"
)

// DocumentInput carries the caller-controlled fields of a document.
type DocumentInput struct {
	Title          string
	Status         models.DocumentStatus
	SourceURL      string
	Classification string
	ReleasableTo   []string
	EyesOnly       []string
	TagIDs         []uint
}

func (in DocumentInput) validate() error {
	return newValidationError(validation.ValidateStruct(&in,
		validation.Field(&in.Title, validation.Required, validation.Length(1, 500)),
		validation.Field(&in.Status, validation.By(func(value interface{}) error {
			s, _ := value.(models.DocumentStatus)
			if s != "" && !models.ValidStatus(s) {
				return fmt.Errorf("must be one of submitted, analyzed, registered")
			}
			return nil
		})),
		validation.Field(&in.SourceURL, validation.Length(0, 2048)),
	))
}

// CreateDocument registers a new document. The slug is derived from the
// title with collision probing; a document created directly in the
// registered status also receives its period sequence and reference.
func (r *Registry) CreateDocument(ctx context.Context, principal string, in DocumentInput) (*models.Document, error) {
	if err := r.authorize(ctx, principal, ActionCreate, "document"); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	status := in.Status
	if status == "" {
		status = models.StatusSubmitted
	}

	var doc *models.Document
	err := r.withConflictRetry(func() error {
		return r.db.Transaction(func(tx *gorm.DB) error {
			now := r.now()
			d := models.Document{
				Title:            in.Title,
				Status:           status,
				SourceURL:        in.SourceURL,
				Classification:   in.Classification,
				ReleasableTo:     in.ReleasableTo,
				EyesOnly:         in.EyesOnly,
				RegistrationDate: now,
				ModificationDate: now,
			}

			url, err := r.uniqueDocumentSlug(tx, in.Title, 0)
			if err != nil {
				return err
			}
			d.URL = url

			if status == models.StatusRegistered {
				if err := r.assignReference(tx, &d, now); err != nil {
					return err
				}
			}

			if err := tx.Omit(clause.Associations).Create(&d).Error; err != nil {
				return err
			}
			if err := r.setDocumentTags(tx, &d, in.TagIDs); err != nil {
				return err
			}

			evt := events.New(events.TypeDocumentCreated)
			evt.DocumentUUID = d.DocumentUUID.String()
			evt.Reference = referenceString(&d)
			if err := events.Enqueue(tx, evt); err != nil {
				return err
			}

			doc = &d
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	r.wakeDrainer()
	r.log.Info("created document",
		"document_uuid", doc.DocumentUUID, "url", doc.URL, "status", doc.Status)
	return doc, nil
}

// UpdateDocument applies caller-controlled fields to an existing document.
// The slug is regenerated only when the title literally changed; a first
// transition into the registered status allocates the sequence and
// reference, and later edits keep them.
func (r *Registry) UpdateDocument(ctx context.Context, principal string, id uuid.UUID, in DocumentInput) (*models.Document, error) {
	if err := r.authorize(ctx, principal, ActionUpdate, "document"); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	var doc *models.Document
	err := r.withConflictRetry(func() error {
		return r.db.Transaction(func(tx *gorm.DB) error {
			d, err := models.GetDocumentByUUID(tx, id)
			if err != nil {
				return notFoundOr(err, "document")
			}

			now := r.now()
			becameRegistered := false

			if in.Title != d.Title {
				url, err := r.uniqueDocumentSlug(tx, in.Title, d.ID)
				if err != nil {
					return err
				}
				d.URL = url
			}
			d.Title = in.Title
			d.SourceURL = in.SourceURL
			d.Classification = in.Classification
			d.ReleasableTo = in.ReleasableTo
			d.EyesOnly = in.EyesOnly
			d.ModificationDate = now

			if in.Status != "" {
				if in.Status == models.StatusRegistered && d.Reference == nil {
					if err := r.assignReference(tx, d, d.RegistrationDate); err != nil {
						return err
					}
					becameRegistered = true
				}
				d.Status = in.Status
			}

			if err := tx.Omit(clause.Associations).Save(d).Error; err != nil {
				return err
			}
			if err := r.setDocumentTags(tx, d, in.TagIDs); err != nil {
				return err
			}

			evt := events.New(events.TypeDocumentUpdated)
			evt.DocumentUUID = d.DocumentUUID.String()
			evt.Reference = referenceString(d)
			if err := events.Enqueue(tx, evt); err != nil {
				return err
			}
			if becameRegistered {
				reg := events.New(events.TypeDocumentRegistered)
				reg.DocumentUUID = d.DocumentUUID.String()
				reg.Reference = referenceString(d)
				if err := events.Enqueue(tx, reg); err != nil {
					return err
				}
			}

			doc = d
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	r.wakeDrainer()
	return doc, nil
}

// RegisterDocument transitions a document into the registered status,
// allocating its sequence and reference on the first transition.
func (r *Registry) RegisterDocument(ctx context.Context, principal string, id uuid.UUID) (*models.Document, error) {
	if err := r.authorize(ctx, principal, ActionRegister, "document"); err != nil {
		return nil, err
	}

	var doc *models.Document
	err := r.withConflictRetry(func() error {
		return r.db.Transaction(func(tx *gorm.DB) error {
			d, err := models.GetDocumentByUUID(tx, id)
			if err != nil {
				return notFoundOr(err, "document")
			}

			if d.IsRegistered() {
				doc = d
				return nil
			}

			if d.Reference == nil {
				if err := r.assignReference(tx, d, d.RegistrationDate); err != nil {
					return err
				}
			}
			d.Status = models.StatusRegistered
			d.ModificationDate = r.now()

			if err := tx.Omit(clause.Associations).Save(d).Error; err != nil {
				return err
			}

			evt := events.New(events.TypeDocumentRegistered)
			evt.DocumentUUID = d.DocumentUUID.String()
			evt.Reference = referenceString(d)
			if err := events.Enqueue(tx, evt); err != nil {
				return err
			}

			doc = d
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	r.wakeDrainer()
	r.log.Info("registered document",
		"document_uuid", doc.DocumentUUID, "reference", referenceString(doc))
	return doc, nil
}

// AddFile attaches file content to a document. The extension comes from
// content sniffing, the dedup key from the SHA-256 digest; content already
// attached to a different document is rejected with the existing document's
// reference.
func (r *Registry) AddFile(ctx context.Context, principal string, id uuid.UUID, filename string, data io.ReadSeeker) (*models.DocumentFile, error) {
	if err := r.authorize(ctx, principal, ActionAddFile, "document"); err != nil {
		return nil, err
	}

	doc, err := models.GetDocumentByUUID(r.db, id)
	if err != nil {
		return nil, notFoundOr(err, "document")
	}

	cls, err := content.Classify(data)
	if err != nil {
		if errors.Is(err, content.ErrUnknownSignature) {
			return nil, fmt.Errorf("%w: %v", ErrUnsupportedContentType, err)
		}
		return nil, err
	}

	hash, err := content.HashSHA256(data)
	if err != nil {
		return nil, err
	}

	existing, err := models.FindFileByHash(r.db, hash)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if existing.DocumentID == doc.ID {
			// Same content re-attached to the same document is a no-op.
			return existing, nil
		}
		return nil, &DuplicateContentError{
			Hash:              hash,
			ExistingReference: referenceString(existing.Document),
		}
	}

	size, err := data.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, fmt.Errorf("sizing stream: %w", err)
	}

	fileUUID := uuid.New()
	path := storage.PathFor(
		doc.RegistrationDate.Year(), int(doc.RegistrationDate.Month()), fileUUID, cls.Extension)

	if _, err := data.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewinding stream: %w", err)
	}
	if err := r.store.Save(path, data); err != nil {
		return nil, err
	}

	file := models.DocumentFile{
		FileUUID:   fileUUID,
		DocumentID: doc.ID,
		Sha256Hash: hash,
		Filepath:   path,
		Filename:   filename,
		MimeType:   cls.MimeType,
		Size:       size,
	}
	err = r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&file).Error; err != nil {
			return err
		}
		evt := events.New(events.TypeFileAdded)
		evt.DocumentUUID = doc.DocumentUUID.String()
		evt.Reference = referenceString(doc)
		evt.FileUUID = fileUUID.String()
		return events.Enqueue(tx, evt)
	})
	if err != nil {
		// The row never committed; don't leave orphaned bytes behind.
		if cleanupErr := r.store.Delete(path); cleanupErr != nil {
			r.log.Error("failed to clean up stored file after aborted attach",
				"path", path, "error", cleanupErr)
		}
		if isUniqueViolation(err) {
			return nil, &DuplicateContentError{Hash: hash}
		}
		return nil, err
	}

	r.wakeDrainer()
	r.log.Info("attached file",
		"document_uuid", doc.DocumentUUID, "file_uuid", fileUUID, "hash", hash)
	return &file, nil
}

// DeleteFile removes a file row and its stored content.
func (r *Registry) DeleteFile(ctx context.Context, principal string, fileID uuid.UUID) error {
	if err := r.authorize(ctx, principal, ActionDelete, "document-file"); err != nil {
		return err
	}

	file, err := models.GetFileByUUID(r.db, fileID)
	if err != nil {
		return notFoundOr(err, "document file")
	}

	err = r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&models.DocumentFile{}, file.ID).Error; err != nil {
			return err
		}
		evt := events.New(events.TypeFileRemoved)
		if file.Document != nil {
			evt.DocumentUUID = file.Document.DocumentUUID.String()
			evt.Reference = referenceString(file.Document)
		}
		evt.FileUUID = file.FileUUID.String()
		return events.Enqueue(tx, evt)
	})
	if err != nil {
		return err
	}

	r.wakeDrainer()
	if err := r.store.Delete(file.Filepath); err != nil {
		return fmt.Errorf("file record removed but content deletion failed: %w", err)
	}
	return nil
}

// GetDocument retrieves a document by UUID.
func (r *Registry) GetDocument(id uuid.UUID) (*models.Document, error) {
	doc, err := models.GetDocumentByUUID(r.db, id)
	if err != nil {
		return nil, notFoundOr(err, "document")
	}
	return doc, nil
}

// GetDocumentByReference retrieves a document by its public reference.
func (r *Registry) GetDocumentByReference(reference string) (*models.Document, error) {
	doc, err := models.GetDocumentByReference(r.db, reference)
	if err != nil {
		return nil, notFoundOr(err, "document")
	}
	return doc, nil
}

// GetDocumentByURL retrieves a document by its slug.
func (r *Registry) GetDocumentByURL(url string) (*models.Document, error) {
	doc, err := models.GetDocumentByURL(r.db, url)
	if err != nil {
		return nil, notFoundOr(err, "document")
	}
	return doc, nil
}

// ListFiles returns the files attached to a document, oldest first.
func (r *Registry) ListFiles(id uuid.UUID) ([]models.DocumentFile, error) {
	doc, err := models.GetDocumentByUUID(r.db, id)
	if err != nil {
		return nil, notFoundOr(err, "document")
	}
	return models.GetFilesForDocument(r.db, doc.ID)
}

// ListDocuments returns documents matching the filter.
func (r *Registry) ListDocuments(filter models.DocumentFilter) ([]models.Document, error) {
	return models.ListDocuments(r.db, filter)
}

// uniqueDocumentSlug derives a slug from the title and probes -1, -2, ...
// until it is free among all documents except excludeID.
func (r *Registry) uniqueDocumentSlug(tx *gorm.DB, title string, excludeID uint) (string, error) {
	var probeErr error
	url := identifier.UniqueSlug(title, func(slug string) bool {
		exists, err := models.DocumentSlugExists(tx, slug, excludeID)
		if err != nil {
			probeErr = err
			return false
		}
		return exists
	})
	if probeErr != nil {
		return "", probeErr
	}
	return url, nil
}

// assignReference allocates the next sequence for the document's
// registration period and formats its public reference.
func (r *Registry) assignReference(tx *gorm.DB, d *models.Document, period time.Time) error {
	maxSeq, err := models.MaxSequenceForPeriod(tx, period)
	if err != nil {
		return err
	}
	d.SequenceID = identifier.NextSequence(maxSeq)
	ref := identifier.FormatReference(r.cfg.ReferencePrefix, period, d.SequenceID)
	d.Reference = &ref
	return nil
}

// setDocumentTags replaces the document's tag associations with the given
// set. A nil set leaves associations untouched; an empty non-nil set clears
// them.
func (r *Registry) setDocumentTags(tx *gorm.DB, d *models.Document, tagIDs []uint) error {
	if tagIDs == nil {
		return nil
	}

	for _, tagID := range tagIDs {
		if _, err := models.GetTag(tx, tagID); err != nil {
			return notFoundOr(err, fmt.Sprintf("tag %d", tagID))
		}
	}

	if err := models.DeleteAssociationsForDocument(tx, d.ID); err != nil {
		return err
	}
	for _, tagID := range tagIDs {
		if err := models.CreateAssociation(tx, d.ID, tagID); err != nil {
			return err
		}
	}
	return nil
}

// referenceString returns the document's reference, or its slug while no
// reference has been assigned yet.
func referenceString(d *models.Document) string {
	if d == nil {
		return ""
	}
	if d.Reference != nil {
		return *d.Reference
	}
	return d.URL
}
