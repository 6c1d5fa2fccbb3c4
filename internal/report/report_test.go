package report

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"docagent/internal/endpoint"
	"docagent/internal/merge"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunReport_StagesAndSummary(t *testing.T) {
	r := NewRunReport("Shop", "docs/API.md")
	tick := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)
	r.now = func() time.Time {
		tick = tick.Add(250 * time.Millisecond)
		return tick
	}

	h := r.BeginStage("analyze")
	r.EndStage(h, "", map[string]float64{"endpoints": 3, " ": 1}, []string{" ", "found 3"}, nil)
	h = r.BeginStage("write")
	r.EndStage(h, "", nil, nil, errors.New("disk full"))

	r.AddSignal("generation_failed", "merge", "WARNING", "1 section failed", 1)
	r.AddSignal("io_error", "write", "critical", "disk full", 0)
	r.AddSignal("", "write", "info", "dropped", 0)
	r.AddSections([]SectionOutcome{
		{Key: "GET /users", Status: "new"},
		{Key: "POST /users", Status: "new", Failed: true, Error: "boom"},
		{Key: "", Status: "stale"},
	})

	path := filepath.Join(t.TempDir(), "out", "report.json")
	require.NoError(t, r.Save(path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var loaded RunReport
	require.NoError(t, json.Unmarshal(raw, &loaded))

	require.Len(t, loaded.Stages, 2)
	assert.Equal(t, "ok", loaded.Stages[0].Status)
	assert.Equal(t, int64(250), loaded.Stages[0].DurationMS)
	assert.Equal(t, map[string]float64{"endpoints": 3}, loaded.Stages[0].Counters)
	assert.Equal(t, []string{"found 3"}, loaded.Stages[0].Notes)
	assert.Equal(t, "error", loaded.Stages[1].Status)
	assert.Equal(t, "disk full", loaded.Stages[1].Error)

	require.Len(t, loaded.Signals, 2)
	assert.Equal(t, "io_error", loaded.Signals[0].Code, "critical signals sort first")
	assert.Equal(t, "warning", loaded.Signals[1].Severity)

	assert.Equal(t, Summary{
		StageCount:        2,
		SectionCount:      2,
		FailedStages:      1,
		FailedSections:    1,
		SectionsByStatus:  map[string]int{"new": 2},
		SignalsBySeverity: map[string]int{"critical": 1, "warning": 1, "info": 0},
	}, loaded.Summary)
}

func TestRunReport_NilIsNoop(t *testing.T) {
	var r *RunReport
	h := r.BeginStage("x")
	r.EndStage(h, "ok", nil, nil, nil)
	r.AddSignal("a", "b", "info", "c", 0)
	r.AddSections([]SectionOutcome{{Key: "k"}})
	r.Finalize()
	assert.NoError(t, r.Save(filepath.Join(t.TempDir(), "never.json")))
}

func sig(method, path, summary string) endpoint.Signature {
	return endpoint.Signature{Method: method, Path: path, Summary: summary}
}

func TestDiff(t *testing.T) {
	previous := []endpoint.Signature{
		sig("GET", "/users", "List"),
		sig("DELETE", "/users/{id}", "Delete"),
		sig("PUT", "/users/{id}", "Replace"),
	}
	moved := sig("PUT", "/users/{id}", "Replace")
	moved.File = "elsewhere.py"
	current := []endpoint.Signature{
		sig("GET", "/users", "List all users"),
		sig("POST", "/users", "Create"),
		moved,
	}

	c := Diff(previous, current)
	assert.Equal(t, []string{"POST /users"}, c.Added)
	assert.Equal(t, []string{"DELETE /users/{id}"}, c.Removed)
	assert.Equal(t, []string{"GET /users"}, c.Modified)
	assert.False(t, c.Empty())

	assert.Equal(t, "## API Documentation Changes\n\n"+
		"### Added Endpoints\n- `POST /users`\n\n"+
		"### Removed Endpoints\n- `DELETE /users/{id}`\n\n"+
		"### Modified Endpoints\n- `GET /users`\n\n", c.Markdown())
}

func TestDiff_NoChanges(t *testing.T) {
	list := []endpoint.Signature{sig("GET", "/", "Root")}
	c := Diff(list, list)
	assert.True(t, c.Empty())
	assert.Equal(t, "## API Documentation Changes\n\nNo changes detected.\n", c.Markdown())

	all := Diff(nil, list)
	assert.Equal(t, []string{"GET /"}, all.Added)
	assert.Empty(t, all.Removed)
}

func TestChangeSummary_Save(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docs", "CHANGES.md")
	c := ChangeSummary{Added: []string{"GET /a"}}
	require.NoError(t, c.Save(path))
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "- `GET /a`")
}

func TestSummarizeResult(t *testing.T) {
	res := &merge.Result{
		Changes: []merge.Change{
			{Key: "GET /users", Status: merge.StatusUnchanged},
			{Key: "POST /users", Status: merge.StatusNew, Failed: true},
			{Key: "GET /old", Status: merge.StatusOrphaned},
		},
		Errors: []*merge.SectionError{
			{Key: "POST /users", Status: merge.StatusNew, Err: errors.New("provider down")},
		},
	}

	rows := SummarizeResult(res)
	assert.Equal(t, []SectionOutcome{
		{Key: "GET /users", Status: "unchanged"},
		{Key: "POST /users", Status: "new", Failed: true, Error: "provider down"},
		{Key: "GET /old", Status: "orphaned"},
	}, rows)
	assert.Nil(t, SummarizeResult(nil))

	table := ChangeTable(rows)
	assert.Contains(t, table, "| `POST /users` | new | failed |")
	assert.Contains(t, table, "| `GET /old` | orphaned | ok |")
}
