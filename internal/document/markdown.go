package document

import (
	"strings"
)

type openSection struct {
	section Section
	lines   []string
}

func (o *openSection) body() string {
	body := strings.Join(o.lines, "")
	return strings.TrimSuffix(body, "\n")
}

// Parse reads a documentation file. It never fails: sections whose markers
// are broken, unterminated or duplicated fall back into the manual region with
// their text intact, and only the machine-written marker lines are dropped.
func Parse(raw string) *Document {
	doc := &Document{}
	var manual strings.Builder
	var cur *openSection
	seen := make(map[string]bool)
	metaSeen := false
	afterEnd := false

	degrade := func() {
		for _, l := range cur.lines {
			manual.WriteString(l)
		}
		cur = nil
	}

	for _, line := range strings.SplitAfter(raw, "\n") {
		if line == "" {
			continue
		}
		m := classify(line)

		if cur != nil {
			if m.kind == endMarker && m.attrs["key"] == cur.section.Key {
				cur.section.Body = cur.body()
				if seen[cur.section.Key] {
					degrade()
				} else {
					seen[cur.section.Key] = true
					doc.Sections = append(doc.Sections, cur.section)
					cur = nil
				}
				afterEnd = true
				continue
			}
			if m.kind == notMarker {
				cur.lines = append(cur.lines, line)
				continue
			}
			// Any other marker means the open section was never closed.
			degrade()
		}

		if afterEnd {
			afterEnd = false
			if strings.TrimSpace(line) == "" {
				continue
			}
		}

		switch m.kind {
		case documentMarker:
			if !metaSeen {
				metaSeen = true
				doc.Meta = Meta{
					Project:   m.attrs["project"],
					UpdatedAt: parseTime(m.attrs["updated"]),
				}
			}
		case sectionMarker:
			cur = &openSection{section: Section{
				Key:         m.attrs["key"],
				Hash:        m.attrs["hash"],
				GeneratedAt: parseTime(m.attrs["generated"]),
			}}
		case endMarker:
			// stray end marker
		default:
			manual.WriteString(line)
		}
	}
	if cur != nil {
		degrade()
	}

	// Serialize always terminates the manual region.
	if manual.Len() > 0 && !strings.HasSuffix(manual.String(), "\n") {
		manual.WriteString("\n")
	}
	doc.Manual = manual.String()
	return doc
}

// Serialize renders the document. Sections are emitted in slice order, so the
// caller decides ordering; the manual region is written verbatim after the
// document marker.
func Serialize(d *Document) string {
	if d == nil {
		d = &Document{}
	}
	var b strings.Builder
	b.WriteString(formatDocumentMarker(d.Meta))
	b.WriteString("\n")

	b.WriteString(d.Manual)
	if d.Manual != "" && !strings.HasSuffix(d.Manual, "\n") {
		b.WriteString("\n")
	}

	for _, s := range d.Sections {
		b.WriteString(formatSectionMarker(s))
		b.WriteString("\n")
		b.WriteString(s.Body)
		b.WriteString("\n")
		b.WriteString(formatEndMarker(s.Key))
		b.WriteString("\n\n")
	}
	return b.String()
}
