package idgen

import "testing"

func TestSourceID_Deterministic(t *testing.T) {
	header := map[string]interface{}{"title": "Foo", "created": "2024-01-01"}
	a := SourceID("/Users/A/Notes/foo.md", header, "alto", nil)
	b := SourceID("/Users/A/Notes/foo.md", header, "alto", nil)
	if a != b {
		t.Fatalf("expected deterministic output, got %q and %q", a, b)
	}
}

func TestSourceID_PathAndKeyOrderInsensitive(t *testing.T) {
	a := SourceID("/Users/A/Notes/foo.md",
		map[string]interface{}{"title": "Foo", "created": "2024-01-01"}, "alto", nil)
	b := SourceID(`\Users\A\Notes\FOO.MD`,
		map[string]interface{}{"created": "2024-01-01", "title": "Foo"}, "alto", nil)

	if a != b {
		t.Fatalf("expected normalized path + key order to be irrelevant: %q != %q", a, b)
	}
}

func TestSourceID_DifferentSourceNameDiffers(t *testing.T) {
	header := map[string]interface{}{"title": "Foo"}
	a := SourceID("/a/b.md", header, "alto", nil)
	b := SourceID("/a/b.md", header, "beta", nil)
	if a == b {
		t.Fatalf("expected different source names to produce different ids")
	}
}

func TestSourceID_EmptyHeaderFallsBackToContentHash(t *testing.T) {
	a := SourceID("", nil, "alto", []byte("hello world"))
	b := SourceID("", nil, "alto", []byte("hello world"))
	c := SourceID("", nil, "alto", []byte("different content"))

	if a != b {
		t.Fatalf("expected same content to hash identically")
	}
	if a == c {
		t.Fatalf("expected different content to hash differently")
	}
}

func TestSourceID_NoIdentityAtAll(t *testing.T) {
	a := SourceID("", nil, "alto", nil)
	b := SourceID("", map[string]interface{}{}, "alto", nil)
	if a != b {
		t.Fatalf("expected missing path+header+content to hash to the same __no_identity__ sentinel")
	}
}

func TestPropertyID(t *testing.T) {
	if got, want := PropertyID("card-1", "color"), "prop-card-1-color"; got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}
