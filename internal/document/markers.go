package document

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

const markerPrefix = "docagent:"

type markerKind int

const (
	notMarker markerKind = iota
	documentMarker
	sectionMarker
	endMarker
)

var (
	markerLine = regexp.MustCompile(`^<!--\s*docagent:(document|section|end)\b(.*?)\s*-->$`)
	markerAttr = regexp.MustCompile(`([a-z]+)=("(?:[^"\\]|\\.)*")`)
)

type marker struct {
	kind  markerKind
	attrs map[string]string
}

// classify recognises a marker line. Anything malformed is reported as
// notMarker so that it stays in the manual region as plain text.
func classify(line string) marker {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "<!--") || !strings.Contains(trimmed, markerPrefix) {
		return marker{}
	}
	m := markerLine.FindStringSubmatch(trimmed)
	if m == nil {
		return marker{}
	}

	attrs := make(map[string]string)
	rest := m[2]
	for _, am := range markerAttr.FindAllStringSubmatchIndex(rest, -1) {
		name := rest[am[2]:am[3]]
		val, err := strconv.Unquote(rest[am[4]:am[5]])
		if err != nil {
			return marker{}
		}
		attrs[name] = val
	}
	// Every byte outside the attributes must be whitespace.
	if strings.TrimSpace(markerAttr.ReplaceAllString(rest, "")) != "" {
		return marker{}
	}

	switch m[1] {
	case "document":
		return marker{kind: documentMarker, attrs: attrs}
	case "section":
		if attrs["key"] == "" {
			return marker{}
		}
		return marker{kind: sectionMarker, attrs: attrs}
	case "end":
		if attrs["key"] == "" {
			return marker{}
		}
		return marker{kind: endMarker, attrs: attrs}
	}
	return marker{}
}

func formatDocumentMarker(m Meta) string {
	return "<!-- docagent:document project=" + strconv.Quote(m.Project) +
		" updated=" + strconv.Quote(formatTime(m.UpdatedAt)) + " -->"
}

func formatSectionMarker(s Section) string {
	return "<!-- docagent:section key=" + strconv.Quote(s.Key) +
		" hash=" + strconv.Quote(s.Hash) +
		" generated=" + strconv.Quote(formatTime(s.GeneratedAt)) + " -->"
}

func formatEndMarker(key string) string {
	return "<!-- docagent:end key=" + strconv.Quote(key) + " -->"
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// parseTime is lenient: a bad timestamp becomes the zero time rather than
// invalidating the marker.
func parseTime(v string) time.Time {
	if v == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

// StripMarkers drops any line that would be read back as a marker. Generated
// bodies pass through it so model output cannot forge section boundaries.
func StripMarkers(body string) string {
	if !strings.Contains(body, markerPrefix) {
		return body
	}
	lines := strings.SplitAfter(body, "\n")
	var b strings.Builder
	for _, line := range lines {
		if classify(line).kind != notMarker {
			continue
		}
		b.WriteString(line)
	}
	return b.String()
}
