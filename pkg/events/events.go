// Package events defines the domain events emitted after a registry mutation
// commits, and the publishers that dispatch them.
package events

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Type identifies the kind of domain event.
type Type string

const (
	TypeDocumentCreated    Type = "document.created"
	TypeDocumentUpdated    Type = "document.updated"
	TypeDocumentRegistered Type = "document.registered"
	TypeFileAdded          Type = "document.file-added"
	TypeFileRemoved        Type = "document.file-removed"
	TypeTagCreated         Type = "tag.created"
	TypeTagUpdated         Type = "tag.updated"
	TypeTagsMerged         Type = "tag.merged"
	TypeFacetCreated       Type = "facet.created"
	TypeFacetUpdated       Type = "facet.updated"
	TypeFacetsMerged       Type = "facet.merged"
)

// Event is a domain event. Only the fields relevant to the event type are
// populated; merge events additionally carry the retained/removed ids and the
// entities whose associations changed, so downstream consumers (e.g. a search
// index) can refresh exactly what moved.
type Event struct {
	ID        string    `json:"id"`
	Type      Type      `json:"type"`
	Timestamp time.Time `json:"timestamp"`

	DocumentUUID string `json:"documentUuid,omitempty"`
	Reference    string `json:"reference,omitempty"`
	TagID        uint   `json:"tagId,omitempty"`
	FacetID      uint   `json:"facetId,omitempty"`
	FileUUID     string `json:"fileUuid,omitempty"`

	// Merge bookkeeping.
	RetainedID        uint     `json:"retainedId,omitempty"`
	RemovedID         uint     `json:"removedId,omitempty"`
	AffectedDocuments []string `json:"affectedDocuments,omitempty"`
	RehomedTags       []uint   `json:"rehomedTags,omitempty"`
}

// New returns an event of the given type with a fresh id and timestamp.
func New(t Type) Event {
	return Event{
		ID:        uuid.New().String(),
		Type:      t,
		Timestamp: time.Now(),
	}
}

// PartitionKey returns the key used to order related events on the same
// partition: all events about one document are ordered, then all events
// about one tag or facet.
func (e Event) PartitionKey() string {
	switch {
	case e.DocumentUUID != "":
		return fmt.Sprintf("doc:%s", e.DocumentUUID)
	case e.TagID != 0 || e.RetainedID != 0 && isTagEvent(e.Type):
		return fmt.Sprintf("tag:%d", firstNonZero(e.TagID, e.RetainedID))
	case e.FacetID != 0 || e.RetainedID != 0:
		return fmt.Sprintf("facet:%d", firstNonZero(e.FacetID, e.RetainedID))
	default:
		return e.ID
	}
}

func isTagEvent(t Type) bool {
	switch t {
	case TypeTagCreated, TypeTagUpdated, TypeTagsMerged:
		return true
	}
	return false
}

func firstNonZero(values ...uint) uint {
	for _, v := range values {
		if v != 0 {
			return v
		}
	}
	return 0
}
