// Package importers implements the per-extension format parsers: each
// importer turns a FileSource into a sequence of canonical records, routing
// anything it cannot map onto a named column into Properties. None of them
// validate. That is the coordinator's job.
package importers

import (
	"time"

	"isometry/internal/model"
)

// FileSource is one file handed to an importer.
type FileSource struct {
	Filename string
	Content  []byte
	ModTime  time.Time
}

// Importer parses one FileSource into zero or more unvalidated canonical
// records. An empty/degenerate input returns an empty slice, not an error;
// structurally unreadable input returns a *model.ParseError.
type Importer interface {
	Import(source FileSource) ([]model.CanonicalRecord, error)
}

// newBaseRecord fills the fields every importer must set before an ID is
// known: timestamps default to ModTime (or now if absent), NodeType
// defaults to note, and Properties/Tags start empty so importers can
// append freely.
func newBaseRecord(source FileSource, nodeType model.NodeType) model.CanonicalRecord {
	ts := source.ModTime
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return model.CanonicalRecord{
		NodeType:   nodeType,
		CreatedAt:  ts,
		ModifiedAt: ts,
		Tags:       []string{},
		Properties: map[string]model.Value{},
	}
}
