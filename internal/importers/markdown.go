package importers

import (
	"path/filepath"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"gopkg.in/yaml.v3"

	"isometry/internal/idgen"
	"isometry/internal/model"
)

// MarkdownImporter handles .md, .markdown, and .mdx. A leading YAML
// frontmatter block (delimited by "---" lines) supplies the header used
// for ID generation and property extraction; the body is parsed with
// goldmark to recover a title (first heading) and summary (first
// paragraph) when the frontmatter doesn't already name them.
type MarkdownImporter struct {
	SourceName string
}

func NewMarkdownImporter(sourceName string) *MarkdownImporter {
	return &MarkdownImporter{SourceName: sourceName}
}

func (m *MarkdownImporter) Import(source FileSource) ([]model.CanonicalRecord, error) {
	if len(strings.TrimSpace(string(source.Content))) == 0 {
		return nil, nil
	}

	header, body := splitFrontmatter(source.Content)

	rec := newBaseRecord(source, model.NodeNote)
	rec.Source = m.SourceName
	rec.Folder = filepath.Dir(source.Filename)

	title, summary := scanMarkdownBody(body)
	rec.Name = firstNonEmpty(headerString(header, "title"), headerString(header, "name"), title, filepath.Base(source.Filename))
	rec.Summary = firstNonEmpty(headerString(header, "summary"), summary)

	if tags, ok := header["tags"]; ok {
		rec.Tags = append(rec.Tags, stringSlice(tags)...)
	}
	rec.Status = headerString(header, "status")
	rec.SourceID = headerString(header, "id")
	rec.SourceURL = headerString(header, "url")

	applyUnmappedHeaderFields(&rec, header, map[string]bool{
		"title": true, "name": true, "summary": true, "tags": true, "status": true, "id": true, "url": true,
	})

	rec.ID = idgen.SourceID(source.Filename, header, m.SourceName, source.Content)
	return []model.CanonicalRecord{rec}, nil
}

// splitFrontmatter returns the parsed YAML header and the remaining body.
// If no frontmatter delimiter is present, header is nil and body is the
// whole content.
func splitFrontmatter(content []byte) (map[string]interface{}, []byte) {
	const delim = "---"
	trimmedLeft := strings.TrimLeft(string(content), "\ufeff")
	if !strings.HasPrefix(trimmedLeft, delim) {
		return nil, content
	}
	trimmed := strings.TrimPrefix(trimmedLeft, delim)
	idx := strings.Index(trimmed, "\n"+delim)
	if idx < 0 {
		return nil, content
	}
	raw := trimmed[:idx]
	rest := trimmed[idx+len("\n"+delim):]
	rest = strings.TrimPrefix(rest, "\r\n")
	rest = strings.TrimPrefix(rest, "\n")

	var header map[string]interface{}
	if err := yaml.Unmarshal([]byte(raw), &header); err != nil {
		return nil, content
	}
	return header, []byte(rest)
}

// scanMarkdownBody walks the goldmark AST for the first heading (title)
// and first paragraph (summary).
func scanMarkdownBody(body []byte) (title, summary string) {
	reader := text.NewReader(body)
	doc := goldmark.New().Parser().Parse(reader)

	ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n.Kind() {
		case ast.KindHeading:
			if title == "" {
				title = nodeText(n, body)
			}
		case ast.KindParagraph:
			if summary == "" {
				summary = nodeText(n, body)
			}
		}
		if title != "" && summary != "" {
			return ast.WalkStop, nil
		}
		return ast.WalkContinue, nil
	})
	return title, summary
}

func nodeText(n ast.Node, source []byte) string {
	var b strings.Builder
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*ast.Text); ok {
			b.Write(t.Segment.Value(source))
		}
	}
	return strings.TrimSpace(b.String())
}

func headerString(header map[string]interface{}, key string) string {
	if header == nil {
		return ""
	}
	v, ok := header[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

func stringSlice(v interface{}) []string {
	switch t := v.(type) {
	case []interface{}:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return t
	default:
		return nil
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// applyUnmappedHeaderFields routes every frontmatter key not already
// claimed by a named canonical column into rec.Properties.
func applyUnmappedHeaderFields(rec *model.CanonicalRecord, header map[string]interface{}, claimed map[string]bool) {
	for k, v := range header {
		if claimed[k] {
			continue
		}
		rec.Properties[k] = model.FromAny(v)
	}
}
