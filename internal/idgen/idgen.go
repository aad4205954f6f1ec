// Package idgen implements the deterministic, idempotent card identifier.
// SourceID is a pure function: normalize path, canonicalize header, fall
// back through an identity chain, hash, prefix with the source name.
package idgen

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// fallbackKeys is the ordered set of header fields probed to build the
// fallback identity chain that is folded into every composite.
var fallbackKeys = []string{"id", "source_id", "title", "name", "created", "modified"}

// SourceID computes a stable 16-hex-character-digest identifier from a
// source path and its structured header. When fallbackContent is non-empty,
// its hash is appended to the fallback identity chain after the non-empty
// fallbackKeys values; pass nil when there is no raw content to fall back to.
//
// The function is pure and total: byte-identical input (after path
// normalization and header-key canonicalization) always produces
// byte-identical output.
func SourceID(path string, header map[string]interface{}, sourceName string, fallbackContent []byte) string {
	normalizedPath := normalizePath(path)
	if normalizedPath == "" {
		normalizedPath = "__no_path__"
	}

	headerJSON := canonicalJSON(header)
	fallbackIdentity := fallbackIdentityOf(header, fallbackContent)

	composite := normalizedPath + ":" + headerJSON + ":" + fallbackIdentity
	digest := hashDigest(composite)

	return sourceName + "-" + digest
}

// normalizePath trims whitespace, lowercases, and converts backslashes to
// forward slashes, so "\Users\A\Notes\FOO.MD" and "/Users/A/Notes/foo.md"
// normalize identically.
func normalizePath(path string) string {
	p := strings.TrimSpace(path)
	p = strings.ToLower(p)
	p = strings.ReplaceAll(p, "\\", "/")
	return p
}

// canonicalJSON sorts header keys lexicographically and emits a
// deterministic JSON encoding, so key order in the input map never affects
// the resulting identifier.
func canonicalJSON(header map[string]interface{}) string {
	if len(header) == 0 {
		return "{}"
	}

	keys := make([]string, 0, len(header))
	for k := range header {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		kb, _ := json.Marshal(k)
		vb, _ := json.Marshal(header[k])
		b.Write(kb)
		b.WriteByte(':')
		b.Write(vb)
	}
	b.WriteByte('}')
	return b.String()
}

// fallbackIdentityOf builds the pipe-joined identity chain of
// [id, source_id, title, name, created, modified, hash(fallbackContent)],
// skipping empty values, falling back to "__no_identity__" if everything is
// empty.
func fallbackIdentityOf(header map[string]interface{}, fallbackContent []byte) string {
	parts := make([]string, 0, len(fallbackKeys)+1)
	for _, key := range fallbackKeys {
		if v, ok := header[key]; ok {
			if s := stringify(v); s != "" {
				parts = append(parts, s)
			}
		}
	}
	if len(fallbackContent) > 0 {
		parts = append(parts, hashDigest(string(fallbackContent)))
	}
	if len(parts) == 0 {
		return "__no_identity__"
	}
	return strings.Join(parts, "|")
}

func stringify(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	default:
		b, _ := json.Marshal(t)
		return string(b)
	}
}

// hashDigest truncates a SHA-256 digest to its first 8 bytes (16 hex
// characters); see DESIGN.md for why this repo picked SHA-256 over composed
// FNV-1a rounds.
func hashDigest(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:8])
}

// PropertyID computes the deterministic EAV sidecar row id for a given card
// id and property key.
func PropertyID(cardID, key string) string {
	return fmt.Sprintf("prop-%s-%s", cardID, key)
}
