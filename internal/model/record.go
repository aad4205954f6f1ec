package model

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// NodeType is the closed set of importer-facing card types.
type NodeType string

const (
	NodeNote     NodeType = "note"
	NodeTask     NodeType = "task"
	NodeDocument NodeType = "document"
	NodePerson   NodeType = "person"
	NodeContact  NodeType = "contact"
	NodeEvent    NodeType = "event"
	NodeMeeting  NodeType = "meeting"
	NodeResource NodeType = "resource"
	NodeLink     NodeType = "link"
	NodeFile     NodeType = "file"
)

var validNodeTypes = map[NodeType]bool{
	NodeNote: true, NodeTask: true, NodeDocument: true, NodePerson: true,
	NodeContact: true, NodeEvent: true, NodeMeeting: true, NodeResource: true,
	NodeLink: true, NodeFile: true,
}

// CardType is the reduced set a NodeType maps to at write time.
type CardType string

const (
	CardNote     CardType = "note"
	CardPerson   CardType = "person"
	CardEvent    CardType = "event"
	CardResource CardType = "resource"
)

// ReduceNodeType applies the {note,task,document}->note, {person,contact}->person,
// {event,meeting}->event, {resource,link,file}->resource reduction.
func ReduceNodeType(nt NodeType) CardType {
	switch nt {
	case NodeNote, NodeTask, NodeDocument:
		return CardNote
	case NodePerson, NodeContact:
		return CardPerson
	case NodeEvent, NodeMeeting:
		return CardEvent
	case NodeResource, NodeLink, NodeFile:
		return CardResource
	default:
		return CardNote
	}
}

// CanonicalRecord is the validated in-memory representation of a single
// card. Importers produce unvalidated instances; Validate enforces every
// invariant and applies defaults.
type CanonicalRecord struct {
	// Required
	ID         string
	NodeType   NodeType
	Name       string
	CreatedAt  time.Time
	ModifiedAt time.Time

	// Location (L)
	Latitude        *float64
	Longitude       *float64
	LocationName    string
	LocationAddress string

	// Alphabet (A)
	Summary string

	// Time (T)
	DueAt       *time.Time
	CompletedAt *time.Time
	EventStart  *time.Time
	EventEnd    *time.Time

	// Category (C)
	Folder string
	Tags   []string
	Status string

	// Hierarchy (H)
	Priority   int
	Importance int
	SortOrder  int

	// Provenance
	Source    string
	SourceID  string
	SourceURL string
	Version   int
	DeletedAt *time.Time

	// Free-form extension
	Properties map[string]Value
}

// ApplyDefaults fills in the required defaults before validation: integer
// hierarchy fields default to 0 (already the Go zero value), Tags defaults
// to [], Properties defaults to {}, Version defaults to 1.
func (r *CanonicalRecord) ApplyDefaults() {
	if r.Tags == nil {
		r.Tags = []string{}
	}
	if r.Properties == nil {
		r.Properties = map[string]Value{}
	}
	if r.Version == 0 {
		r.Version = 1
	}
}

// Validate enforces every schema invariant and returns the record with
// defaults applied, or the first ValidationError encountered.
// Validation is idempotent: Validate(Validate(r)) == Validate(r), since it
// never mutates invariant-bearing fields, only fills already-zero defaults.
func Validate(r CanonicalRecord) (CanonicalRecord, error) {
	r.ApplyDefaults()

	if strings.TrimSpace(r.ID) == "" {
		return r, &ValidationError{Field: "id", Detail: "must not be empty"}
	}
	if !validNodeTypes[r.NodeType] {
		return r, &ValidationError{Field: "nodeType", Detail: "not in closed set: " + string(r.NodeType)}
	}
	if strings.TrimSpace(r.Name) == "" {
		return r, &ValidationError{Field: "name", Detail: "must not be empty"}
	}
	if r.CreatedAt.IsZero() {
		return r, &ValidationError{Field: "createdAt", Detail: "must not be zero"}
	}
	if r.ModifiedAt.IsZero() {
		return r, &ValidationError{Field: "modifiedAt", Detail: "must not be zero"}
	}
	if r.CreatedAt.After(r.ModifiedAt) {
		return r, &ValidationError{Field: "modifiedAt", Detail: "must be >= createdAt"}
	}
	for i, t := range r.Tags {
		if strings.TrimSpace(t) == "" {
			return r, &ValidationError{Field: "tags", Detail: fmt.Sprintf("empty string at index %d", i)}
		}
	}
	for k := range r.Properties {
		if strings.TrimSpace(k) == "" {
			return r, &ValidationError{Field: "properties", Detail: "property key must not be empty"}
		}
	}

	return r, nil
}

// SortedPropertyKeys returns Properties' keys in lexicographic order, used
// where deterministic iteration is required (the EAV write-out).
func (r CanonicalRecord) SortedPropertyKeys() []string {
	keys := make([]string, 0, len(r.Properties))
	for k := range r.Properties {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
