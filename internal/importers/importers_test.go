package importers

import (
	"archive/zip"
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMarkdownImporter_FrontmatterAndBody(t *testing.T) {
	content := []byte("---\ntitle: Meeting Notes\ntags: [work, standup]\n---\n\n# Meeting Notes\n\nDiscussed the quarterly roadmap.\n")
	imp := NewMarkdownImporter("alto")
	records, err := imp.Import(FileSource{Filename: "/notes/standup.md", Content: content, ModTime: time.Now()})
	require.NoError(t, err)
	require.Len(t, records, 1)

	r := records[0]
	require.Equal(t, "Meeting Notes", r.Name)
	require.Contains(t, r.Summary, "roadmap")
	require.Equal(t, []string{"work", "standup"}, r.Tags)
	require.NotEmpty(t, r.ID)
}

func TestMarkdownImporter_EmptyContentYieldsNoRecords(t *testing.T) {
	imp := NewMarkdownImporter("alto")
	records, err := imp.Import(FileSource{Filename: "empty.md", Content: []byte("   \n")})
	require.NoError(t, err)
	require.Empty(t, records)
}

func TestJSONImporter_ArrayOfObjects(t *testing.T) {
	content := []byte(`[{"name":"First","priority":3,"custom":"x"},{"name":"Second"}]`)
	imp := NewJSONImporter("alto")
	records, err := imp.Import(FileSource{Filename: "data.json", Content: content})
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, "First", records[0].Name)
	require.Equal(t, 3, records[0].Priority)
	require.Equal(t, "x", records[0].Properties["custom"].Str)
}

func TestJSONImporter_InvalidJSONIsParseError(t *testing.T) {
	imp := NewJSONImporter("alto")
	_, err := imp.Import(FileSource{Filename: "bad.json", Content: []byte("{not json")})
	require.Error(t, err)
}

func TestJSONImporter_MapsCreatedAtModifiedAtAndVersion(t *testing.T) {
	content := []byte(`{"name":"First","createdAt":"2023-05-01T12:00:00Z","modifiedAt":"2023-06-01T12:00:00Z","version":4}`)
	imp := NewJSONImporter("alto")
	records, err := imp.Import(FileSource{Filename: "data.json", Content: content})
	require.NoError(t, err)
	require.Len(t, records, 1)

	r := records[0]
	require.Equal(t, "2023-05-01T12:00:00Z", r.CreatedAt.Format(time.RFC3339))
	require.Equal(t, "2023-06-01T12:00:00Z", r.ModifiedAt.Format(time.RFC3339))
	require.Equal(t, 4, r.Version)
	require.NotContains(t, r.Properties, "createdAt")
	require.NotContains(t, r.Properties, "modifiedAt")
	require.NotContains(t, r.Properties, "version")
}

func TestJSONImporter_MalformedTimestampFallsBackToModTime(t *testing.T) {
	modTime := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
	content := []byte(`{"name":"First","createdAt":"not-a-date"}`)
	imp := NewJSONImporter("alto")
	records, err := imp.Import(FileSource{Filename: "data.json", Content: content, ModTime: modTime})
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, modTime, records[0].CreatedAt)
}

func TestCSVImporter_HeaderRowMapping(t *testing.T) {
	content := []byte("name,priority,tags,color\nTask A,2,a;b,blue\nTask B,1,,red\n")
	imp := NewCSVImporter("alto", ',')
	records, err := imp.Import(FileSource{Filename: "tasks.csv", Content: content})
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, "Task A", records[0].Name)
	require.Equal(t, 2, records[0].Priority)
	require.Equal(t, []string{"a", "b"}, records[0].Tags)
	require.Equal(t, "blue", records[0].Properties["color"].Str)
}

func TestCSVImporter_HeaderOnlyYieldsNoRecords(t *testing.T) {
	imp := NewCSVImporter("alto", ',')
	records, err := imp.Import(FileSource{Filename: "only_header.csv", Content: []byte("name,priority\n")})
	require.NoError(t, err)
	require.Empty(t, records)
}

func TestHTMLImporter_TitleAndMeta(t *testing.T) {
	content := []byte(`<html><head><title>Page Title</title><meta name="description" content="A summary"></head><body><p>Hello</p></body></html>`)
	imp := NewHTMLImporter("alto")
	records, err := imp.Import(FileSource{Filename: "page.html", Content: content})
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "Page Title", records[0].Name)
	require.Equal(t, "A summary", records[0].Summary)
}

func buildMinimalXLSX(t *testing.T) []byte {
	t.Helper()
	buf := &bytes.Buffer{}
	zw := zip.NewWriter(buf)

	sheet, err := zw.Create("xl/worksheets/sheet1.xml")
	require.NoError(t, err)
	_, err = sheet.Write([]byte(`<?xml version="1.0"?>
<worksheet><sheetData>
<row><c t="s"><v>0</v></c><c t="s"><v>1</v></c></row>
<row><c t="s"><v>2</v></c><c><v>5</v></c></row>
</sheetData></worksheet>`))
	require.NoError(t, err)

	sst, err := zw.Create("xl/sharedStrings.xml")
	require.NoError(t, err)
	_, err = sst.Write([]byte(`<?xml version="1.0"?>
<sst><si><t>name</t></si><si><t>priority</t></si><si><t>Row One</t></si></sst>`))
	require.NoError(t, err)

	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestXLSXImporter_ParsesSharedStringsAndRows(t *testing.T) {
	imp := NewXLSXImporter("alto")
	records, err := imp.Import(FileSource{Filename: "sheet.xlsx", Content: buildMinimalXLSX(t)})
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "Row One", records[0].Name)
}

func TestXLSXImporter_LegacyXLSIsParseError(t *testing.T) {
	imp := NewXLSXImporter("alto")
	_, err := imp.Import(FileSource{Filename: "legacy.xls", Content: []byte("not actually xls binary")})
	require.Error(t, err)
}
