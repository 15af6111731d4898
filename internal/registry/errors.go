package registry

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gorm.io/gorm"
)

// Sentinel errors returned by registry operations. Callers should match with
// errors.Is / errors.As; the registry never logs and swallows.
var (
	// ErrNotFound means a referenced document, tag, or facet doesn't exist.
	ErrNotFound = errors.New("registry: not found")

	// ErrUnauthorized means the authorization check denied the action. No
	// partial state change has occurred.
	ErrUnauthorized = errors.New("registry: unauthorized")

	// ErrUnsupportedContentType means a binary upload matched no known file
	// signature.
	ErrUnsupportedContentType = errors.New("registry: unsupported content type")
)

// ValidationError reports field-level constraint failures.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "registry: validation failed: " + strings.Join(parts, "; ")
}

// newValidationError converts an ozzo validation error into a
// ValidationError; other errors pass through unchanged.
func newValidationError(err error) error {
	if err == nil {
		return nil
	}
	var verrs validation.Errors
	if errors.As(err, &verrs) {
		fields := make(map[string]string, len(verrs))
		for field, ferr := range verrs {
			fields[field] = ferr.Error()
		}
		return &ValidationError{Fields: fields}
	}
	return err
}

// fieldError builds a single-field ValidationError.
func fieldError(field, reason string) error {
	return &ValidationError{Fields: map[string]string{field: reason}}
}

// DuplicateContentError means a file with the same content hash already
// exists under a different document. It carries the existing document's
// reference so callers can redirect the user instead of creating a duplicate.
type DuplicateContentError struct {
	Hash              string
	ExistingReference string
}

func (e *DuplicateContentError) Error() string {
	return fmt.Sprintf("registry: duplicate content %s already attached to document %s",
		e.Hash, e.ExistingReference)
}

// ConflictError means a storage uniqueness constraint was violated during
// commit and the retry was exhausted; two concurrent writers raced for the
// same sequence or slug.
type ConflictError struct {
	Err error
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("registry: conflicting identifier: %v", e.Err)
}

func (e *ConflictError) Unwrap() error {
	return e.Err
}

// isUniqueViolation reports whether err is a uniqueness-constraint violation
// surfaced by the database. GORM translates these when the dialector
// supports it; the string checks cover drivers that don't.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}

// notFoundOr maps gorm's record-not-found onto ErrNotFound, wrapping with the
// entity name for context.
func notFoundOr(err error, entity string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, entity)
	}
	return err
}
