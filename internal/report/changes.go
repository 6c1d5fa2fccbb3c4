package report

import (
	"os"
	"path/filepath"
	"strings"

	"docagent/internal/endpoint"
	"docagent/internal/merge"
)

// ChangeSummary lists endpoint keys that appeared, disappeared or changed
// between two analyses.
type ChangeSummary struct {
	Added    []string `json:"added"`
	Removed  []string `json:"removed"`
	Modified []string `json:"modified"`
}

// Diff compares two endpoint lists by key and content hash. Keys keep the
// order of the list they come from.
func Diff(previous, current []endpoint.Signature) ChangeSummary {
	old := make(map[string]string, len(previous))
	for _, s := range previous {
		if _, ok := old[s.Key()]; !ok {
			old[s.Key()] = s.ContentHash()
		}
	}
	cur := make(map[string]bool, len(current))

	summary := ChangeSummary{Added: []string{}, Removed: []string{}, Modified: []string{}}
	for _, s := range current {
		key := s.Key()
		if cur[key] {
			continue
		}
		cur[key] = true
		hash, ok := old[key]
		switch {
		case !ok:
			summary.Added = append(summary.Added, key)
		case hash != s.ContentHash():
			summary.Modified = append(summary.Modified, key)
		}
	}
	seen := make(map[string]bool, len(previous))
	for _, s := range previous {
		key := s.Key()
		if cur[key] || seen[key] {
			continue
		}
		seen[key] = true
		summary.Removed = append(summary.Removed, key)
	}
	return summary
}

func (c ChangeSummary) Empty() bool {
	return len(c.Added) == 0 && len(c.Removed) == 0 && len(c.Modified) == 0
}

// Markdown renders the summary as an "API Documentation Changes" block.
func (c ChangeSummary) Markdown() string {
	var sb strings.Builder
	sb.WriteString("## API Documentation Changes\n\n")
	writeList := func(title string, keys []string) {
		if len(keys) == 0 {
			return
		}
		sb.WriteString("### " + title + "\n")
		for _, k := range keys {
			sb.WriteString("- `" + k + "`\n")
		}
		sb.WriteString("\n")
	}
	writeList("Added Endpoints", c.Added)
	writeList("Removed Endpoints", c.Removed)
	writeList("Modified Endpoints", c.Modified)
	if c.Empty() {
		sb.WriteString("No changes detected.\n")
	}
	return sb.String()
}

// Save writes the markdown rendering to path.
func (c ChangeSummary) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(c.Markdown()), 0644)
}

// SummarizeResult turns a merge result into change table rows.
func SummarizeResult(res *merge.Result) []SectionOutcome {
	if res == nil {
		return nil
	}
	errs := make(map[string]string, len(res.Errors))
	for _, e := range res.Errors {
		errs[e.Key] = e.Err.Error()
	}
	rows := make([]SectionOutcome, 0, len(res.Changes))
	for _, c := range res.Changes {
		rows = append(rows, SectionOutcome{
			Key:    c.Key,
			Status: string(c.Status),
			Failed: c.Failed,
			Error:  errs[c.Key],
		})
	}
	return rows
}

// ChangeTable renders rows as a markdown table for terminals and CI logs.
func ChangeTable(rows []SectionOutcome) string {
	var sb strings.Builder
	sb.WriteString("| Endpoint | Status | Result |\n")
	sb.WriteString("|---|---|---|\n")
	for _, r := range rows {
		result := "ok"
		if r.Failed {
			result = "failed"
		}
		sb.WriteString("| `" + r.Key + "` | " + r.Status + " | " + result + " |\n")
	}
	return sb.String()
}
