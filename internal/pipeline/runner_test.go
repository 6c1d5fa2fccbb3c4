package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docagent/internal/config"
	"docagent/internal/crawler"
	"docagent/internal/document"
	"docagent/internal/endpoint"
	"docagent/internal/extractor"
	"docagent/internal/generator"
	"docagent/internal/merge"
	"docagent/internal/report"
	"docagent/internal/storage"
)

const appSource = `from fastapi import FastAPI

app = FastAPI()


@app.get("/users")
def list_users(limit: int = 10):
    """List users."""
    return []


@app.post("/users", status_code=201)
def create_user(user: UserCreate):
    """Create a user."""
    return user
`

type fixture struct {
	root    string
	output  string
	store   *storage.SQLiteStore
	calls   atomic.Int32
	fail    map[string]bool
	runner  *Runner
	options Options
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	root := filepath.Join(dir, "app")
	require.NoError(t, os.MkdirAll(root, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "main.py"), []byte(appSource), 0o644))

	store, err := storage.NewSQLiteStore(filepath.Join(dir, "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	ext, err := extractor.NewExtractor("fastapi", nil)
	require.NoError(t, err)

	f := &fixture{root: root, output: filepath.Join(dir, "docs", "API.md"), store: store, fail: map[string]bool{}}
	f.runner = &Runner{
		Generator: generator.Func(func(ctx context.Context, req generator.Request) (string, error) {
			f.calls.Add(1)
			if f.fail[req.Signature.Key()] {
				return "", errors.New("provider down")
			}
			return "### " + req.Signature.Key() + "\n\n" + req.Signature.Summary, nil
		}),
		Crawler: crawler.NewCrawler(ext, nil),
		Store:   store,
		Clock:   func() time.Time { return time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC) },
		Out:     io.Discard,
	}
	f.options = Options{
		Root:        root,
		Project:     "Shop",
		Output:      f.output,
		Concurrency: 2,
		Timeout:     time.Minute,
		ReportPath:  filepath.Join(dir, "report.json"),
		SummaryPath: filepath.Join(dir, "CHANGES.md"),
	}
	return f
}

func TestRunner_FirstRunThenNoop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.runner.Run(ctx, f.options)
	require.NoError(t, err)
	assert.Len(t, first.Signatures, 2)
	assert.Equal(t, 2, first.Result.Count(merge.StatusNew))
	assert.False(t, first.HasBaseline)
	assert.Equal(t, []string{"GET /users", "POST /users"}, first.Changes.Added)
	assert.NotZero(t, first.RunID)
	assert.EqualValues(t, 2, f.calls.Load())

	doc, err := document.ReadFile(f.output)
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, []string{"GET /users", "POST /users"}, doc.Keys())
	assert.Equal(t, "Shop", doc.Meta.Project)

	written, err := os.ReadFile(f.output)
	require.NoError(t, err)

	second, err := f.runner.Run(ctx, f.options)
	require.NoError(t, err)
	assert.EqualValues(t, 2, f.calls.Load(), "unchanged endpoints are not regenerated")
	assert.Equal(t, 2, second.Result.Count(merge.StatusUnchanged))
	assert.True(t, second.HasBaseline)
	assert.True(t, second.Changes.Empty())

	again, err := os.ReadFile(f.output)
	require.NoError(t, err)
	assert.Equal(t, string(written), string(again))

	summary, err := os.ReadFile(f.options.SummaryPath)
	require.NoError(t, err)
	assert.Contains(t, string(summary), "No changes detected.")

	runs, err := f.store.ListRuns(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestRunner_ChangedEndpointIsRegenerated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.runner.Run(ctx, f.options)
	require.NoError(t, err)

	changed := appSource + "\n\n@app.delete(\"/users/{user_id}\")\ndef delete_user(user_id: int):\n    pass\n"
	changed = strings.Replace(changed, "limit: int = 10", "limit: int = 50", 1)
	require.NoError(t, os.WriteFile(filepath.Join(f.root, "main.py"), []byte(changed), 0o644))

	out, err := f.runner.Run(ctx, f.options)
	require.NoError(t, err)
	assert.EqualValues(t, 4, f.calls.Load())
	assert.Equal(t, []string{"GET /users"}, out.Result.Keys(merge.StatusStale))
	assert.Equal(t, []string{"DELETE /users/{user_id}"}, out.Result.Keys(merge.StatusNew))
	assert.Equal(t, []string{"DELETE /users/{user_id}"}, out.Changes.Added)
	assert.Equal(t, []string{"GET /users"}, out.Changes.Modified)
	assert.Empty(t, out.Changes.Removed)
}

func TestRunner_SectionFailureIsNotFatal(t *testing.T) {
	f := newFixture(t)
	f.fail["POST /users"] = true

	out, err := f.runner.Run(context.Background(), f.options)
	require.NoError(t, err)
	require.Len(t, out.Result.Errors, 1)
	assert.Equal(t, "POST /users", out.Result.Errors[0].Key)

	raw, err := os.ReadFile(f.options.ReportPath)
	require.NoError(t, err)
	var rep report.RunReport
	require.NoError(t, json.Unmarshal(raw, &rep))
	assert.Equal(t, 1, rep.Summary.FailedSections)
	assert.Equal(t, 1, rep.Summary.SignalsBySeverity[report.SeverityCritical])

	doc, err := document.ReadFile(f.output)
	require.NoError(t, err)
	sec, ok := doc.Section("POST /users")
	require.True(t, ok)
	assert.True(t, sec.Pending(), "failed sections are retried on the next run")

	delete(f.fail, "POST /users")
	retry, err := f.runner.Run(context.Background(), f.options)
	require.NoError(t, err)
	assert.Empty(t, retry.Result.Errors)
	assert.Equal(t, []string{"POST /users"}, retry.Result.Keys(merge.StatusStale))
}

func TestRunner_FromAnalysisWithoutCrawlerOrStore(t *testing.T) {
	f := newFixture(t)
	sigs, err := f.runner.Crawler.Analyze(context.Background(), f.root)
	require.NoError(t, err)

	analysisPath := filepath.Join(t.TempDir(), "endpoints_analysis.json")
	require.NoError(t, endpoint.SaveAnalysis(analysisPath, endpoint.NewAnalysis("Shop", sigs)))

	f.runner.Crawler = nil
	f.runner.Store = nil
	opts := f.options
	opts.Root = ""
	opts.FromAnalysis = analysisPath
	opts.SummaryPath = ""

	out, err := f.runner.Run(context.Background(), opts)
	require.NoError(t, err)
	assert.Len(t, out.Signatures, 2)
	assert.Zero(t, out.RunID)
	assert.Equal(t, 2, out.Result.Count(merge.StatusNew))
	assert.Equal(t, []string{"GET /users", "POST /users"}, out.Changes.Added, "without history the summary follows merge statuses")
	assert.Empty(t, out.Changes.Removed)
}

func TestRunner_SavesAnalysis(t *testing.T) {
	f := newFixture(t)
	opts := f.options
	opts.AnalysisOutput = filepath.Join(t.TempDir(), "out", "endpoints_analysis.json")

	_, err := f.runner.Run(context.Background(), opts)
	require.NoError(t, err)

	a, err := endpoint.LoadAnalysis(opts.AnalysisOutput)
	require.NoError(t, err)
	assert.Equal(t, "Shop", a.Project)
	assert.Len(t, a.Endpoints, 2)
}

func TestRunner_AutoCommitOutsideRepositoryIsSkipped(t *testing.T) {
	f := newFixture(t)
	opts := f.options
	opts.AutoCommit = true

	out, err := f.runner.Run(context.Background(), opts)
	require.NoError(t, err)
	assert.False(t, out.Committed)

	var commit *report.StageMetric
	for i := range out.Report.Stages {
		if out.Report.Stages[i].Name == "commit" {
			commit = &out.Report.Stages[i]
		}
	}
	require.NotNil(t, commit)
	assert.Equal(t, "skipped", commit.Status)
}

func TestRunner_MissingAnalysisFileFails(t *testing.T) {
	f := newFixture(t)
	opts := f.options
	opts.FromAnalysis = filepath.Join(t.TempDir(), "missing.json")

	out, err := f.runner.Run(context.Background(), opts)
	require.Error(t, err)
	require.NotNil(t, out)
	_, statErr := os.Stat(f.output)
	assert.True(t, os.IsNotExist(statErr), "nothing is written when analysis fails")
	_, statErr = os.Stat(opts.ReportPath)
	assert.NoError(t, statErr, "the report still records the failed stage")
}

func TestRunner_RequiresGenerator(t *testing.T) {
	_, err := (&Runner{}).Run(context.Background(), Options{Output: "x.md"})
	assert.Error(t, err)
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Project.Name = "Shop"
	cfg.Git.AutoCommit = true
	cfg.Report.Path = "report.json"

	opts := OptionsFromConfig(cfg)
	assert.Equal(t, "Shop", opts.Project)
	assert.Equal(t, "docs/API.md", opts.Output)
	assert.Equal(t, 4, opts.Concurrency)
	assert.Equal(t, 10*time.Minute, opts.Timeout)
	assert.True(t, opts.AutoCommit)
	assert.Equal(t, "report.json", opts.ReportPath)
	assert.Equal(t, cfg.Git.CommitMessage, opts.CommitMessage)
}
