package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"isometry/internal/idgen"
	"isometry/internal/logging"
	"isometry/internal/model"
)

// InsertOptions configures InsertCanonical's transaction mode.
type InsertOptions struct {
	// Transaction true rolls the whole batch back on any failure; false
	// inserts each record independently. The zero value InsertOptions{}
	// selects the non-transactional mode.
	Transaction bool
}

// InsertResult reports how an InsertCanonical call went.
type InsertResult struct {
	Inserted int
	Failed   int
	Errors   []error
}

// cardColumns is the fixed, ordered column list used to build every
// INSERT ... VALUES statement, mirroring the canonical record's
// camelCase->snake_case field mapping.
var cardColumns = []string{
	"id", "card_type", "name", "content", "summary",
	"latitude", "longitude", "location_name", "location_address",
	"created_at", "modified_at", "due_at", "completed_at", "event_start", "event_end",
	"folder", "tags", "status", "priority", "importance", "sort_order",
	"grid_x", "grid_y", "source", "source_id", "source_url", "deleted_at", "version",
}

// InsertCanonical maps canonical records onto the cards/card_properties
// storage model and writes them in the mode opts.Transaction selects.
//
// In transaction mode, any single failing record rolls back the entire
// batch: Inserted is 0, and the failing record's error is reported.
// In non-transaction mode, each record is independent; failures accumulate
// and the loop continues. Neither mode ever partial-commits a card: a row
// and its properties are written in the same transaction scope.
func (s *Store) InsertCanonical(records []model.CanonicalRecord, opts InsertOptions) (InsertResult, error) {
	timer := logging.StartTimer(logging.CategoryStore, "InsertCanonical")
	defer timer.Stop()

	txMode := opts.Transaction
	if len(records) == 0 {
		return InsertResult{}, nil
	}

	if txMode {
		return s.insertTransactional(records)
	}
	return s.insertIndependent(records), nil
}

func (s *Store) insertTransactional(records []model.CanonicalRecord) (InsertResult, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return InsertResult{}, &model.StorageError{Op: "begin transaction", Err: err}
	}

	for _, r := range records {
		if err := writeCard(tx, r); err != nil {
			tx.Rollback()
			return InsertResult{Inserted: 0, Failed: len(records), Errors: []error{err}}, nil
		}
	}

	if err := tx.Commit(); err != nil {
		return InsertResult{}, &model.StorageError{Op: "commit transaction", Err: err}
	}

	return InsertResult{Inserted: len(records), Failed: 0}, nil
}

func (s *Store) insertIndependent(records []model.CanonicalRecord) InsertResult {
	result := InsertResult{}
	for _, r := range records {
		tx, err := s.db.Begin()
		if err != nil {
			result.Failed++
			result.Errors = append(result.Errors, &model.StorageError{Op: "begin transaction", Err: err})
			continue
		}
		if err := writeCard(tx, r); err != nil {
			tx.Rollback()
			result.Failed++
			result.Errors = append(result.Errors, err)
			continue
		}
		if err := tx.Commit(); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, &model.StorageError{Op: "commit transaction", Err: err})
			continue
		}
		result.Inserted++
	}
	return result
}

// writeCard inserts one card row plus its property sidecar rows within an
// already-open transaction. It never partial-commits: the caller owns
// tx.Commit()/tx.Rollback().
func writeCard(tx *sql.Tx, r model.CanonicalRecord) error {
	cardType := model.ReduceNodeType(r.NodeType)

	var tagsJSON interface{}
	if len(r.Tags) > 0 {
		b, err := json.Marshal(r.Tags)
		if err != nil {
			return &model.StorageError{Op: "marshal tags", Err: err}
		}
		tagsJSON = string(b)
	}

	values := []interface{}{
		r.ID, string(cardType), r.Name, nil, nullIfEmpty(r.Summary),
		nullableFloat(r.Latitude), nullableFloat(r.Longitude), nullIfEmpty(r.LocationName), nullIfEmpty(r.LocationAddress),
		formatTime(r.CreatedAt), formatTime(r.ModifiedAt), nullableTime(r.DueAt), nullableTime(r.CompletedAt), nullableTime(r.EventStart), nullableTime(r.EventEnd),
		nullIfEmpty(r.Folder), tagsJSON, nullIfEmpty(r.Status), r.Priority, r.Importance, r.SortOrder,
		nil, nil, nullIfEmpty(r.Source), nullIfEmpty(r.SourceID), nullIfEmpty(r.SourceURL), nullableTime(r.DeletedAt), r.Version,
	}

	placeholders := make([]string, len(cardColumns))
	for i := range placeholders {
		placeholders[i] = "?"
	}

	stmt := fmt.Sprintf(
		"INSERT INTO cards (%s) VALUES (%s)",
		joinColumns(cardColumns), joinColumns(placeholders),
	)

	if _, err := tx.Exec(stmt, values...); err != nil {
		if isUniqueConstraintErr(err) {
			return &model.UniquenessViolation{Field: "id/source+sourceId", Value: r.ID}
		}
		return &model.StorageError{Op: "insert card", Err: err}
	}

	for _, key := range r.SortedPropertyKeys() {
		if err := writeProperty(tx, r.ID, key, r.Properties[key]); err != nil {
			return err
		}
	}

	return nil
}

// writeProperty upserts one EAV sidecar row, populating the typed column
// that matches the value's Kind.
func writeProperty(tx *sql.Tx, cardID, key string, v model.Value) error {
	id := idgen.PropertyID(cardID, key)

	rawJSON, err := json.Marshal(v.ToAny())
	if err != nil {
		return &model.StorageError{Op: "marshal property value", Err: err}
	}

	var (
		valueType    string
		valueString  interface{}
		valueNumber  interface{}
		valueBoolean interface{}
		valueJSON    interface{}
	)

	switch v.Kind {
	case model.KindString:
		valueType = "string"
		valueString = v.Str
	case model.KindNumber:
		valueType = "number"
		valueNumber = v.Num
	case model.KindBool:
		valueType = "boolean"
		if v.Bool {
			valueBoolean = 1
		} else {
			valueBoolean = 0
		}
	case model.KindList, model.KindMap:
		valueType = v.Kind.String()
		valueJSON = string(rawJSON)
	default:
		valueType = "null"
	}

	const stmt = `
		INSERT INTO card_properties
			(id, card_id, key, value, value_type, value_string, value_number, value_boolean, value_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(card_id, key) DO UPDATE SET
			value=excluded.value, value_type=excluded.value_type,
			value_string=excluded.value_string, value_number=excluded.value_number,
			value_boolean=excluded.value_boolean, value_json=excluded.value_json
	`
	if _, err := tx.Exec(stmt, id, cardID, key, string(rawJSON), valueType, valueString, valueNumber, valueBoolean, valueJSON); err != nil {
		return &model.StorageError{Op: "upsert property", Err: err}
	}
	return nil
}

func joinColumns(cols []string) string {
	out := ""
	for i, c := range cols {
		if i > 0 {
			out += ", "
		}
		out += c
	}
	return out
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullableFloat(f *float64) interface{} {
	if f == nil {
		return nil
	}
	return *f
}

func nullableTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// isUniqueConstraintErr detects a SQLite unique-constraint violation by
// message, since modernc.org/sqlite doesn't expose a typed error here.
func isUniqueConstraintErr(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return containsFold(msg, "unique constraint") || containsFold(msg, "UNIQUE constraint")
}

func containsFold(s, substr string) bool {
	return len(s) >= len(substr) && (indexFold(s, substr) >= 0)
}

func indexFold(s, substr string) int {
	ls, lsub := len(s), len(substr)
	if lsub == 0 {
		return 0
	}
	for i := 0; i+lsub <= ls; i++ {
		if equalFold(s[i:i+lsub], substr) {
			return i
		}
	}
	return -1
}

func equalFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}
