package importers

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"time"

	"isometry/internal/idgen"
	"isometry/internal/model"
)

// JSONImporter handles .json files. A top-level array is treated as
// multiple records; a top-level object is one record. Known canonical
// field names (camelCase) are mapped directly; everything else lands in
// Properties.
type JSONImporter struct {
	SourceName string
}

func NewJSONImporter(sourceName string) *JSONImporter {
	return &JSONImporter{SourceName: sourceName}
}

func (j *JSONImporter) Import(source FileSource) ([]model.CanonicalRecord, error) {
	trimmed := strings.TrimSpace(string(source.Content))
	if trimmed == "" {
		return nil, nil
	}

	var raw interface{}
	if err := json.Unmarshal(source.Content, &raw); err != nil {
		return nil, &model.ParseError{Kind: "json", Detail: "invalid JSON in " + source.Filename, Err: err}
	}

	var objs []map[string]interface{}
	switch t := raw.(type) {
	case []interface{}:
		for _, item := range t {
			if m, ok := item.(map[string]interface{}); ok {
				objs = append(objs, m)
			}
		}
	case map[string]interface{}:
		objs = append(objs, t)
	default:
		return nil, nil
	}

	records := make([]model.CanonicalRecord, 0, len(objs))
	for _, obj := range objs {
		records = append(records, j.recordFromObject(source, obj))
	}
	return records, nil
}

var jsonClaimedFields = map[string]bool{
	"id": true, "nodeType": true, "name": true, "createdAt": true, "modifiedAt": true,
	"latitude": true, "longitude": true, "locationName": true, "locationAddress": true,
	"summary": true, "dueAt": true, "completedAt": true, "eventStart": true, "eventEnd": true,
	"folder": true, "tags": true, "status": true,
	"priority": true, "importance": true, "sortOrder": true,
	"source": true, "sourceId": true, "sourceUrl": true, "version": true,
}

func (j *JSONImporter) recordFromObject(source FileSource, obj map[string]interface{}) model.CanonicalRecord {
	rec := newBaseRecord(source, nodeTypeOf(obj))
	rec.Source = j.SourceName
	rec.Folder = firstNonEmpty(stringField(obj, "folder"), filepath.Dir(source.Filename))
	rec.Name = firstNonEmpty(stringField(obj, "name"), filepath.Base(source.Filename))
	rec.Summary = stringField(obj, "summary")
	rec.Status = stringField(obj, "status")
	rec.SourceID = stringField(obj, "sourceId")
	rec.SourceURL = stringField(obj, "sourceUrl")
	rec.LocationName = stringField(obj, "locationName")
	rec.LocationAddress = stringField(obj, "locationAddress")
	if f, ok := obj["latitude"].(float64); ok {
		rec.Latitude = &f
	}
	if f, ok := obj["longitude"].(float64); ok {
		rec.Longitude = &f
	}
	for key, dst := range map[string]**time.Time{
		"dueAt": &rec.DueAt, "completedAt": &rec.CompletedAt,
		"eventStart": &rec.EventStart, "eventEnd": &rec.EventEnd,
	} {
		if t, ok := timeField(obj, key); ok {
			*dst = &t
		}
	}

	if tags, ok := obj["tags"]; ok {
		rec.Tags = append(rec.Tags, stringSlice(tags)...)
	}
	rec.Priority = intField(obj, "priority")
	rec.Importance = intField(obj, "importance")
	rec.SortOrder = intField(obj, "sortOrder")

	if t, ok := timeField(obj, "createdAt"); ok {
		rec.CreatedAt = t
	}
	if t, ok := timeField(obj, "modifiedAt"); ok {
		rec.ModifiedAt = t
	}
	if v, ok := obj["version"]; ok {
		if f, ok := v.(float64); ok {
			rec.Version = int(f)
		}
	}

	for k, v := range obj {
		if jsonClaimedFields[k] {
			continue
		}
		rec.Properties[k] = model.FromAny(v)
	}

	header := map[string]interface{}{}
	for k, v := range obj {
		header[k] = v
	}
	rec.ID = idgen.SourceID(source.Filename, header, j.SourceName, source.Content)
	return rec
}

func nodeTypeOf(obj map[string]interface{}) model.NodeType {
	if s := stringField(obj, "nodeType"); s != "" {
		return model.NodeType(s)
	}
	return model.NodeNote
}

func stringField(obj map[string]interface{}, key string) string {
	if v, ok := obj[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func intField(obj map[string]interface{}, key string) int {
	if v, ok := obj[key]; ok {
		if f, ok := v.(float64); ok {
			return int(f)
		}
	}
	return 0
}

// timeField parses an RFC3339 (ISO-8601) timestamp string at key, the only
// wire format json.Marshal(time.Time) ever produces.
func timeField(obj map[string]interface{}, key string) (time.Time, bool) {
	s, ok := obj[key].(string)
	if !ok {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
