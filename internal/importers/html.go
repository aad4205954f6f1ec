package importers

import (
	"bytes"
	"path/filepath"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"isometry/internal/idgen"
	"isometry/internal/model"
)

// HTMLImporter handles .html and .htm. Name comes from <title>; Summary
// from the first <meta name="description"> or, failing that, the first
// non-empty <p> text; <meta name="..."> tags not already claimed become
// Properties entries.
type HTMLImporter struct {
	SourceName string
}

func NewHTMLImporter(sourceName string) *HTMLImporter {
	return &HTMLImporter{SourceName: sourceName}
}

func (h *HTMLImporter) Import(source FileSource) ([]model.CanonicalRecord, error) {
	if len(strings.TrimSpace(string(source.Content))) == 0 {
		return nil, nil
	}

	doc, err := html.Parse(bytes.NewReader(source.Content))
	if err != nil {
		return nil, &model.ParseError{Kind: "html", Detail: "malformed markup in " + source.Filename, Err: err}
	}

	var title, firstParagraph string
	meta := map[string]string{}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Title:
				if title == "" {
					title = collectText(n)
				}
			case atom.P:
				if firstParagraph == "" {
					if t := strings.TrimSpace(collectText(n)); t != "" {
						firstParagraph = t
					}
				}
			case atom.Meta:
				name, content := metaAttrs(n)
				if _, seen := meta[name]; !seen && name != "" && content != "" {
					meta[name] = content
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	rec := newBaseRecord(source, model.NodeDocument)
	rec.Source = h.SourceName
	rec.Folder = filepath.Dir(source.Filename)
	rec.Name = firstNonEmpty(strings.TrimSpace(title), filepath.Base(source.Filename))
	rec.Summary = firstNonEmpty(meta["description"], firstParagraph)
	if kw, ok := meta["keywords"]; ok {
		for _, t := range strings.Split(kw, ",") {
			t = strings.TrimSpace(t)
			if t != "" {
				rec.Tags = append(rec.Tags, t)
			}
		}
	}

	for k, v := range meta {
		if k == "description" || k == "keywords" {
			continue
		}
		rec.Properties[k] = model.NewString(v)
	}

	headerMap := map[string]interface{}{"title": title}
	for k, v := range meta {
		headerMap[k] = v
	}
	rec.ID = idgen.SourceID(source.Filename, headerMap, h.SourceName, source.Content)
	return []model.CanonicalRecord{rec}, nil
}

func collectText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

func metaAttrs(n *html.Node) (name, content string) {
	for _, a := range n.Attr {
		switch strings.ToLower(a.Key) {
		case "name":
			name = strings.ToLower(a.Val)
		case "content":
			content = a.Val
		}
	}
	return name, content
}
