package document

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ts = time.Date(2026, 10, 17, 9, 30, 0, 0, time.UTC)

func sampleDoc() *Document {
	return &Document{
		Meta:   Meta{Project: `Shop "v2"`, UpdatedAt: ts},
		Manual: "# Shop API Documentation\n\nHand-written intro.\n\n",
		Sections: []Section{
			{Key: "GET /users", Hash: "sha256:aaa", Body: "## GET /users\n\nLists users.", GeneratedAt: ts},
			{Key: "POST /users", Hash: "", Body: "", GeneratedAt: time.Time{}},
			{Key: "DELETE /users/{id}", Hash: "sha256:ccc", Body: "trailing newline\n", GeneratedAt: ts.Add(time.Hour)},
		},
	}
}

func TestSerialize_RoundTrip(t *testing.T) {
	docs := map[string]*Document{
		"sample":       sampleDoc(),
		"empty":        {},
		"new":          New("Shop"),
		"manual only":  {Manual: "just text\nno sections\n"},
		"no manual":    {Sections: []Section{{Key: "GET /", Hash: "sha256:x", Body: "root"}}},
		"blank manual": {Manual: "\n\n", Sections: []Section{{Key: "GET /", Hash: "h", Body: "\n\nspaced\n\n"}}},
	}

	for name, d := range docs {
		t.Run(name, func(t *testing.T) {
			raw := Serialize(d)
			parsed := Parse(raw)
			assert.Equal(t, d.Meta, parsed.Meta)
			assert.Equal(t, d.Manual, parsed.Manual)
			if len(d.Sections) == 0 {
				assert.Empty(t, parsed.Sections)
			} else {
				assert.Equal(t, d.Sections, parsed.Sections)
			}
			assert.Equal(t, raw, Serialize(parsed))
		})
	}
}

func TestParse_UnterminatedManualIsStable(t *testing.T) {
	first := Parse("# Shop\n\nHand notes, no newline")
	assert.Equal(t, "# Shop\n\nHand notes, no newline\n", first.Manual)

	second := Parse(Serialize(first))
	assert.Equal(t, first.Manual, second.Manual)
	assert.Equal(t, Serialize(first), Serialize(second))
}

func TestSerialize_Layout(t *testing.T) {
	d := &Document{
		Meta:     Meta{Project: "Shop", UpdatedAt: ts},
		Manual:   "# Title\n",
		Sections: []Section{{Key: "GET /users", Hash: "sha256:a", Body: "Body", GeneratedAt: ts}},
	}

	want := `<!-- docagent:document project="Shop" updated="2026-10-17T09:30:00Z" -->
# Title
<!-- docagent:section key="GET /users" hash="sha256:a" generated="2026-10-17T09:30:00Z" -->
Body
<!-- docagent:end key="GET /users" -->

`
	assert.Equal(t, want, Serialize(d))
}

func TestParse_PlainMarkdownIsManual(t *testing.T) {
	raw := "# Legacy docs\n\nSome text without any markers.\n"
	d := Parse(raw)

	assert.Equal(t, raw, d.Manual)
	assert.Empty(t, d.Sections)
	assert.Equal(t, Meta{}, d.Meta)
}

func TestParse_TextBetweenSectionsJoinsManual(t *testing.T) {
	raw := `<!-- docagent:document project="P" updated="" -->
intro
<!-- docagent:section key="GET /a" hash="h1" generated="" -->
A
<!-- docagent:end key="GET /a" -->

hand note between
<!-- docagent:section key="GET /b" hash="h2" generated="" -->
B
<!-- docagent:end key="GET /b" -->

footer`

	d := Parse(raw)
	assert.Equal(t, "intro\nhand note between\nfooter", d.Manual)
	assert.Equal(t, []string{"GET /a", "GET /b"}, d.Keys())

	// Once normalised, the layout is stable.
	again := Parse(Serialize(d))
	assert.Equal(t, "intro\nhand note between\nfooter\n", again.Manual)
	assert.Equal(t, Serialize(again), Serialize(Parse(Serialize(again))))
}

func TestParse_Malformed(t *testing.T) {
	t.Run("unterminated section degrades to manual", func(t *testing.T) {
		raw := "top\n<!-- docagent:section key=\"GET /a\" hash=\"h\" generated=\"\" -->\nkept body\nmore\n"
		d := Parse(raw)
		assert.Empty(t, d.Sections)
		assert.Equal(t, "top\nkept body\nmore\n", d.Manual)
	})

	t.Run("open inside open keeps the later section", func(t *testing.T) {
		raw := `<!-- docagent:section key="GET /a" hash="h" generated="" -->
orphan text
<!-- docagent:section key="GET /b" hash="h" generated="" -->
B
<!-- docagent:end key="GET /b" -->
`
		d := Parse(raw)
		assert.Equal(t, []string{"GET /b"}, d.Keys())
		assert.Equal(t, "orphan text\n", d.Manual)
	})

	t.Run("stray end marker is dropped", func(t *testing.T) {
		d := Parse("a\n<!-- docagent:end key=\"GET /x\" -->\nb\n")
		assert.Equal(t, "a\nb\n", d.Manual)
	})

	t.Run("duplicate key keeps first and degrades second", func(t *testing.T) {
		raw := `<!-- docagent:section key="GET /a" hash="h1" generated="" -->
first
<!-- docagent:end key="GET /a" -->
<!-- docagent:section key="GET /a" hash="h2" generated="" -->
second
<!-- docagent:end key="GET /a" -->
`
		d := Parse(raw)
		require.Len(t, d.Sections, 1)
		assert.Equal(t, "first", d.Sections[0].Body)
		assert.Equal(t, "h1", d.Sections[0].Hash)
		assert.Equal(t, "second\n", d.Manual)
	})

	t.Run("broken attributes are plain text", func(t *testing.T) {
		lines := []string{
			"<!-- docagent:section hash=\"h\" -->\n",
			"<!-- docagent:section key=\"unterminated -->\n",
			"<!-- docagent:section key=\"GET /a\" junk -->\n",
			"<!-- docagent:bogus key=\"GET /a\" -->\n",
		}
		for _, l := range lines {
			d := Parse(l)
			assert.Equal(t, l, d.Manual, l)
			assert.Empty(t, d.Sections)
		}
	})

	t.Run("bad timestamp is tolerated", func(t *testing.T) {
		raw := "<!-- docagent:section key=\"GET /a\" hash=\"h\" generated=\"yesterday\" -->\nA\n<!-- docagent:end key=\"GET /a\" -->\n"
		d := Parse(raw)
		require.Len(t, d.Sections, 1)
		assert.True(t, d.Sections[0].GeneratedAt.IsZero())
	})

	t.Run("only first document marker counts", func(t *testing.T) {
		raw := "<!-- docagent:document project=\"One\" updated=\"\" -->\n<!-- docagent:document project=\"Two\" updated=\"\" -->\n"
		d := Parse(raw)
		assert.Equal(t, "One", d.Meta.Project)
		assert.Equal(t, "", d.Manual)
	})
}

func TestStripMarkers(t *testing.T) {
	body := "line one\n<!-- docagent:end key=\"GET /a\" -->\n<!-- an ordinary comment -->\nline two"
	assert.Equal(t, "line one\n<!-- an ordinary comment -->\nline two", StripMarkers(body))
	assert.Equal(t, "untouched", StripMarkers("untouched"))
}

func TestDocument_Prune(t *testing.T) {
	d := sampleDoc()
	removed := d.Prune(map[string]bool{"GET /users": true})

	assert.Equal(t, []string{"DELETE /users/{id}", "POST /users"}, removed)
	assert.Equal(t, []string{"GET /users"}, d.Keys())
	assert.Equal(t, sampleDoc().Manual, d.Manual)
}

func TestDocument_CloneIsIndependent(t *testing.T) {
	d := sampleDoc()
	c := d.Clone()
	c.Sections[0].Body = "changed"

	assert.Equal(t, "## GET /users\n\nLists users.", d.Sections[0].Body)
	sec, ok := d.Section("GET /users")
	require.True(t, ok)
	assert.False(t, sec.Pending())
	pending, _ := d.Section("POST /users")
	assert.True(t, pending.Pending())
}

func TestFile_ReadWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docs", "API.md")

	missing, err := ReadFile(path)
	require.NoError(t, err)
	assert.Nil(t, missing)

	d := sampleDoc()
	require.NoError(t, WriteFile(path, d))

	loaded, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, d, loaded)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file must not be left behind")
}
