package importers

import (
	"encoding/csv"
	"path/filepath"
	"strconv"
	"strings"

	"isometry/internal/idgen"
	"isometry/internal/model"
)

// CSVImporter handles .csv and .tsv. The first row is the header; every
// subsequent row becomes one record, with cells mapped onto canonical
// columns by (case-insensitive) header name and anything unrecognized
// routed to Properties.
type CSVImporter struct {
	SourceName string
	Delimiter  rune // ',' for .csv, '\t' for .tsv
}

func NewCSVImporter(sourceName string, delimiter rune) *CSVImporter {
	return &CSVImporter{SourceName: sourceName, Delimiter: delimiter}
}

func (c *CSVImporter) Import(source FileSource) ([]model.CanonicalRecord, error) {
	if len(strings.TrimSpace(string(source.Content))) == 0 {
		return nil, nil
	}

	reader := csv.NewReader(strings.NewReader(string(source.Content)))
	reader.Comma = c.Delimiter
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, &model.ParseError{Kind: "csv", Detail: "malformed rows in " + source.Filename, Err: err}
	}
	if len(rows) < 2 {
		return nil, nil
	}

	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		header[i] = strings.ToLower(strings.TrimSpace(h))
	}

	records := make([]model.CanonicalRecord, 0, len(rows)-1)
	for rowIdx, row := range rows[1:] {
		records = append(records, c.recordFromRow(source, header, row, rowIdx))
	}
	return records, nil
}

var csvClaimedColumns = map[string]bool{
	"id": true, "name": true, "folder": true, "summary": true, "status": true,
	"tags": true, "priority": true, "importance": true, "sortorder": true,
	"source": true, "sourceid": true, "sourceurl": true,
}

func (c *CSVImporter) recordFromRow(source FileSource, header, row []string, rowIdx int) model.CanonicalRecord {
	rec := newBaseRecord(source, model.NodeNote)
	rec.Source = c.SourceName
	rec.Folder = filepath.Dir(source.Filename)

	cellMap := map[string]interface{}{}
	for i, col := range header {
		if i >= len(row) {
			continue
		}
		cellMap[col] = row[i]
	}

	rec.Name = firstNonEmpty(asString(cellMap["name"]), filepath.Base(source.Filename)+"#"+strconv.Itoa(rowIdx))
	rec.Summary = asString(cellMap["summary"])
	rec.Status = asString(cellMap["status"])
	rec.SourceID = asString(cellMap["sourceid"])
	rec.SourceURL = asString(cellMap["sourceurl"])
	rec.Folder = firstNonEmpty(asString(cellMap["folder"]), rec.Folder)

	if tagsRaw := asString(cellMap["tags"]); tagsRaw != "" {
		for _, t := range strings.Split(tagsRaw, ";") {
			t = strings.TrimSpace(t)
			if t != "" {
				rec.Tags = append(rec.Tags, t)
			}
		}
	}
	rec.Priority = atoiOr(asString(cellMap["priority"]), 0)
	rec.Importance = atoiOr(asString(cellMap["importance"]), 0)
	rec.SortOrder = atoiOr(asString(cellMap["sortorder"]), 0)

	for col, v := range cellMap {
		if csvClaimedColumns[col] {
			continue
		}
		s, _ := v.(string)
		if s == "" {
			continue
		}
		rec.Properties[col] = model.NewString(s)
	}

	rec.ID = idgen.SourceID(source.Filename, cellMap, c.SourceName, nil)
	return rec
}

func asString(v interface{}) string {
	s, _ := v.(string)
	return s
}

func atoiOr(s string, fallback int) int {
	if s == "" {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return fallback
	}
	return n
}
