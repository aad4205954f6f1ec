package importers

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"isometry/internal/idgen"
	"isometry/internal/model"
)

// XLSXImporter handles .xlsx (and rejects .xls, see Import). Only .xlsx is
// an OOXML zip/XML package that the standard library can parse without a
// spreadsheet library (DESIGN.md records why no such library is wired).
// Legacy binary .xls input fails with ParseError rather than being
// silently misread.
type XLSXImporter struct {
	SourceName string
}

func NewXLSXImporter(sourceName string) *XLSXImporter {
	return &XLSXImporter{SourceName: sourceName}
}

func (x *XLSXImporter) Import(source FileSource) ([]model.CanonicalRecord, error) {
	if strings.EqualFold(filepath.Ext(source.Filename), ".xls") {
		return nil, &model.ParseError{Kind: "xls", Detail: "legacy binary .xls is not supported, save as .xlsx"}
	}

	zr, err := zip.NewReader(bytes.NewReader(source.Content), int64(len(source.Content)))
	if err != nil {
		return nil, &model.ParseError{Kind: "xlsx", Detail: "not a valid zip/OOXML package: " + source.Filename, Err: err}
	}

	shared, err := readSharedStrings(zr)
	if err != nil {
		return nil, &model.ParseError{Kind: "xlsx", Detail: "failed to read shared strings", Err: err}
	}

	rows, err := readFirstSheet(zr, shared)
	if err != nil {
		return nil, &model.ParseError{Kind: "xlsx", Detail: "failed to read worksheet", Err: err}
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
		records = append(records, x.recordFromRow(source, header, row, rowIdx))
	}
	return records, nil
}

func (x *XLSXImporter) recordFromRow(source FileSource, header, row []string, rowIdx int) model.CanonicalRecord {
	rec := newBaseRecord(source, model.NodeNote)
	rec.Source = x.SourceName
	rec.Folder = filepath.Dir(source.Filename)

	cellMap := map[string]interface{}{}
	for i, col := range header {
		if i >= len(row) {
			continue
		}
		cellMap[col] = row[i]
	}

	rec.Name = firstNonEmpty(asString(cellMap["name"]), fmt.Sprintf("%s#%d", filepath.Base(source.Filename), rowIdx))
	rec.Summary = asString(cellMap["summary"])
	rec.Folder = firstNonEmpty(asString(cellMap["folder"]), rec.Folder)
	rec.Status = asString(cellMap["status"])

	for col, v := range cellMap {
		if col == "name" || col == "summary" || col == "folder" || col == "status" {
			continue
		}
		s, _ := v.(string)
		if s == "" {
			continue
		}
		rec.Properties[col] = model.NewString(s)
	}

	rec.ID = idgen.SourceID(source.Filename, cellMap, x.SourceName, nil)
	return rec
}

// --- minimal OOXML spreadsheet parsing ---

type sstML struct {
	SI []struct {
		T string `xml:"t"`
		R []struct {
			T string `xml:"t"`
		} `xml:"r"`
	} `xml:"si"`
}

func readSharedStrings(zr *zip.Reader) ([]string, error) {
	f := findFile(zr, "xl/sharedStrings.xml")
	if f == nil {
		return nil, nil
	}
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var sst sstML
	if err := xml.NewDecoder(rc).Decode(&sst); err != nil {
		return nil, err
	}

	out := make([]string, len(sst.SI))
	for i, si := range sst.SI {
		if si.T != "" {
			out[i] = si.T
			continue
		}
		var b strings.Builder
		for _, r := range si.R {
			b.WriteString(r.T)
		}
		out[i] = b.String()
	}
	return out, nil
}

type sheetML struct {
	SheetData struct {
		Row []struct {
			C []struct {
				R string `xml:"r,attr"`
				T string `xml:"t,attr"`
				V string `xml:"v"`
			} `xml:"c"`
		} `xml:"row"`
	} `xml:"sheetData"`
}

func readFirstSheet(zr *zip.Reader, shared []string) ([][]string, error) {
	f := findFile(zr, "xl/worksheets/sheet1.xml")
	if f == nil {
		return nil, fmt.Errorf("xl/worksheets/sheet1.xml not found")
	}
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var sheet sheetML
	if err := xml.NewDecoder(rc).Decode(&sheet); err != nil {
		return nil, err
	}

	rows := make([][]string, 0, len(sheet.SheetData.Row))
	for _, r := range sheet.SheetData.Row {
		cols := make([]string, 0, len(r.C))
		for _, c := range r.C {
			if c.T == "s" {
				idx, err := strconv.Atoi(strings.TrimSpace(c.V))
				if err == nil && idx >= 0 && idx < len(shared) {
					cols = append(cols, shared[idx])
					continue
				}
			}
			cols = append(cols, c.V)
		}
		rows = append(rows, cols)
	}
	return rows, nil
}

func findFile(zr *zip.Reader, name string) *zip.File {
	for _, f := range zr.File {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// DOCXImporter handles .docx: it reads word/document.xml from the OOXML
// zip package and builds a single record whose Name and Summary are the
// first non-empty paragraph and whose properties["content"] is every
// paragraph joined by blank lines, since a Word document maps onto exactly
// one canonical record (unlike the row-per-record spreadsheet importers).
type DOCXImporter struct {
	SourceName string
}

func NewDOCXImporter(sourceName string) *DOCXImporter {
	return &DOCXImporter{SourceName: sourceName}
}

type wordDocML struct {
	Body struct {
		P []struct {
			R []struct {
				T string `xml:"t"`
			} `xml:"r"`
		} `xml:"p"`
	} `xml:"body"`
}

func (d *DOCXImporter) Import(source FileSource) ([]model.CanonicalRecord, error) {
	zr, err := zip.NewReader(bytes.NewReader(source.Content), int64(len(source.Content)))
	if err != nil {
		return nil, &model.ParseError{Kind: "docx", Detail: "not a valid zip/OOXML package: " + source.Filename, Err: err}
	}

	f := findFile(zr, "word/document.xml")
	if f == nil {
		return nil, &model.ParseError{Kind: "docx", Detail: "word/document.xml not found in " + source.Filename}
	}
	rc, err := f.Open()
	if err != nil {
		return nil, &model.ParseError{Kind: "docx", Detail: "failed to open word/document.xml", Err: err}
	}
	defer rc.Close()

	raw, err := io.ReadAll(rc)
	if err != nil {
		return nil, &model.ParseError{Kind: "docx", Detail: "failed to read word/document.xml", Err: err}
	}

	var doc wordDocML
	if err := xml.Unmarshal(raw, &doc); err != nil {
		return nil, &model.ParseError{Kind: "docx", Detail: "malformed word/document.xml", Err: err}
	}

	paragraphs := make([]string, 0, len(doc.Body.P))
	for _, p := range doc.Body.P {
		var b strings.Builder
		for _, r := range p.R {
			b.WriteString(r.T)
		}
		if t := strings.TrimSpace(b.String()); t != "" {
			paragraphs = append(paragraphs, t)
		}
	}
	if len(paragraphs) == 0 {
		return nil, nil
	}

	rec := newBaseRecord(source, model.NodeDocument)
	rec.Source = d.SourceName
	rec.Folder = filepath.Dir(source.Filename)
	rec.Name = firstNonEmpty(paragraphs[0], filepath.Base(source.Filename))
	rec.Summary = paragraphs[0]
	rec.Properties["content"] = model.NewString(strings.Join(paragraphs, "\n\n"))

	rec.ID = idgen.SourceID(source.Filename, nil, d.SourceName, source.Content)
	return []model.CanonicalRecord{rec}, nil
}
