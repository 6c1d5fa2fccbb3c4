// Package pipeline runs one documentation pass end to end: analysis, merge,
// atomic write, run history, reports and the optional commit.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"docagent/internal/config"
	"docagent/internal/crawler"
	"docagent/internal/document"
	"docagent/internal/endpoint"
	"docagent/internal/generator"
	"docagent/internal/git"
	"docagent/internal/merge"
	"docagent/internal/report"
	"docagent/internal/storage"
)

// Options controls a single run.
type Options struct {
	Root    string
	Project string
	Output  string

	// FromAnalysis loads signatures from an analysis JSON instead of scanning Root.
	FromAnalysis   string
	AnalysisOutput string

	Concurrency int
	Timeout     time.Duration

	ReportPath  string
	SummaryPath string

	AutoCommit    bool
	CommitMessage string
}

// OptionsFromConfig maps the loaded configuration onto run options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Root:           cfg.Project.Root,
		Project:        cfg.Project.Name,
		Output:         cfg.Project.Output,
		AnalysisOutput: cfg.Project.AnalysisOutput,
		Concurrency:    cfg.Generation.Concurrency,
		Timeout:        cfg.Generation.Timeout,
		ReportPath:     cfg.Report.Path,
		SummaryPath:    cfg.Report.SummaryPath,
		AutoCommit:     cfg.Git.AutoCommit,
		CommitMessage:  cfg.Git.CommitMessage,
	}
}

// Outcome is what a successful run produced. Section failures live in
// Result.Errors; they do not make Run return an error.
type Outcome struct {
	Signatures []endpoint.Signature
	Result     *merge.Result
	Changes    report.ChangeSummary
	// HasBaseline is false when no earlier run was recorded for the project.
	HasBaseline bool
	RunID       int64
	Committed   bool
	Report      *report.RunReport
}

// Runner wires the collaborators of a run. Store and Repo are optional.
type Runner struct {
	Generator generator.Generator
	Crawler   *crawler.Crawler
	Store     storage.RunStore
	Repo      *git.Repo
	Clock     func() time.Time
	Logger    *zap.Logger
	// Out receives progress lines; defaults to os.Stdout.
	Out io.Writer
}

func (r *Runner) Run(ctx context.Context, opts Options) (*Outcome, error) {
	if r.Generator == nil {
		return nil, fmt.Errorf("pipeline: generator is required")
	}
	if opts.Output == "" {
		return nil, fmt.Errorf("pipeline: output path is required")
	}

	out := &Outcome{Report: report.NewRunReport(opts.Project, opts.Output)}
	err := r.run(ctx, opts, out)
	if opts.ReportPath != "" {
		if saveErr := out.Report.Save(opts.ReportPath); saveErr != nil {
			r.logger().Warn("failed to save run report", zap.String("path", opts.ReportPath), zap.Error(saveErr))
		} else {
			r.printf("🧾 Run report saved to %s\n", opts.ReportPath)
		}
	}
	return out, err
}

func (r *Runner) run(ctx context.Context, opts Options, out *Outcome) error {
	sigs, err := r.analyzeStage(ctx, opts, out.Report)
	if err != nil {
		return err
	}
	out.Signatures = sigs

	prior, err := r.loadStage(opts, out.Report)
	if err != nil {
		return err
	}

	out.Result = r.mergeStage(ctx, opts, sigs, prior, out.Report)

	if err := r.writeStage(opts, out.Result.Document, out.Report); err != nil {
		return err
	}

	if err := r.historyStage(ctx, opts, out); err != nil {
		return err
	}

	if opts.SummaryPath != "" {
		if err := out.Changes.Save(opts.SummaryPath); err != nil {
			return fmt.Errorf("failed to save change summary: %w", err)
		}
		r.printf("📝 Change summary saved to %s\n", opts.SummaryPath)
	}

	committed, err := r.commitStage(ctx, opts, prior == nil, out.Result, out.Report)
	if err != nil {
		return err
	}
	out.Committed = committed
	return nil
}

func (r *Runner) analyzeStage(ctx context.Context, opts Options, rep *report.RunReport) ([]endpoint.Signature, error) {
	h := rep.BeginStage("analyze")

	var (
		sigs []endpoint.Signature
		err  error
	)
	if opts.FromAnalysis != "" {
		r.printf("📂 Loading endpoints from %s...\n", opts.FromAnalysis)
		var a *endpoint.Analysis
		a, err = endpoint.LoadAnalysis(opts.FromAnalysis)
		if a != nil {
			sigs = a.Endpoints
		}
	} else {
		if r.Crawler == nil {
			err = fmt.Errorf("pipeline: crawler is required without an analysis file")
		} else {
			r.printf("🔍 Analyzing %s...\n", opts.Root)
			sigs, err = r.Crawler.Analyze(ctx, opts.Root)
		}
	}
	if err != nil {
		rep.EndStage(h, "error", nil, nil, err)
		return nil, fmt.Errorf("analysis failed: %w", err)
	}

	r.printf("  -> %d endpoints found\n", len(sigs))
	if len(sigs) == 0 {
		rep.AddSignal("no_endpoints", "analyze", report.SeverityWarning, "no FastAPI endpoints were found", 0)
	}

	var notes []string
	if opts.AnalysisOutput != "" && opts.FromAnalysis == "" {
		if err := endpoint.SaveAnalysis(opts.AnalysisOutput, endpoint.NewAnalysis(opts.Project, sigs)); err != nil {
			rep.EndStage(h, "error", nil, nil, err)
			return nil, fmt.Errorf("failed to save analysis: %w", err)
		}
		notes = append(notes, "analysis saved to "+opts.AnalysisOutput)
		r.printf("💾 Analysis saved to %s\n", opts.AnalysisOutput)
	}
	rep.EndStage(h, "ok", map[string]float64{"endpoints": float64(len(sigs))}, notes, nil)
	return sigs, nil
}

func (r *Runner) loadStage(opts Options, rep *report.RunReport) (*document.Document, error) {
	h := rep.BeginStage("load")
	prior, err := document.ReadFile(opts.Output)
	if err != nil {
		rep.EndStage(h, "error", nil, nil, err)
		return nil, err
	}
	if prior == nil {
		r.printf("📄 %s not found, generating from scratch...\n", opts.Output)
		rep.EndStage(h, "ok", map[string]float64{"sections": 0}, []string{"no prior document"}, nil)
		return nil, nil
	}
	r.printf("📄 Loaded %s (%d sections)\n", opts.Output, len(prior.Sections))
	rep.EndStage(h, "ok", map[string]float64{"sections": float64(len(prior.Sections))}, nil, nil)
	return prior, nil
}

func (r *Runner) mergeStage(ctx context.Context, opts Options, sigs []endpoint.Signature, prior *document.Document, rep *report.RunReport) *merge.Result {
	h := rep.BeginStage("merge")
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	r.printf("✍️  Reconciling documentation...\n")
	engine := &merge.Engine{
		Generator:   r.Generator,
		Project:     opts.Project,
		Concurrency: opts.Concurrency,
		Clock:       r.Clock,
		Logger:      r.logger(),
	}
	res := engine.Merge(ctx, sigs, prior)

	rows := report.SummarizeResult(res)
	rep.AddSections(rows)
	for _, e := range res.Errors {
		rep.AddSignal("generation_failed", "merge", report.SeverityCritical, e.Error(), 0)
	}
	for _, key := range res.Duplicates {
		rep.AddSignal("duplicate_endpoint", "merge", report.SeverityWarning, "duplicate route "+key+" ignored", 0)
	}
	if n := res.Count(merge.StatusOrphaned); n > 0 {
		rep.AddSignal("orphaned_sections", "merge", report.SeverityInfo, "sections kept for endpoints that no longer exist", float64(n))
	}

	status := "ok"
	if len(res.Errors) > 0 {
		status = "partial"
	}
	rep.EndStage(h, status, map[string]float64{
		"new":             float64(res.Count(merge.StatusNew)),
		"stale":           float64(res.Count(merge.StatusStale)),
		"unchanged":       float64(res.Count(merge.StatusUnchanged)),
		"orphaned":        float64(res.Count(merge.StatusOrphaned)),
		"failed":          float64(len(res.Errors)),
		"generator_calls": float64(res.GeneratorCalls),
	}, nil, nil)

	r.printf("  -> new=%d stale=%d unchanged=%d orphaned=%d failed=%d\n",
		res.Count(merge.StatusNew), res.Count(merge.StatusStale), res.Count(merge.StatusUnchanged),
		res.Count(merge.StatusOrphaned), len(res.Errors))
	for _, e := range res.Errors {
		r.printf("⚠️  %v\n", e)
	}
	return res
}

func (r *Runner) writeStage(opts Options, doc *document.Document, rep *report.RunReport) error {
	h := rep.BeginStage("write")
	if err := document.WriteFile(opts.Output, doc); err != nil {
		rep.EndStage(h, "error", nil, nil, err)
		return err
	}
	rep.EndStage(h, "ok", map[string]float64{"sections": float64(len(doc.Sections))}, nil, nil)
	r.printf("✅ Documentation written to %s\n", opts.Output)
	return nil
}

func (r *Runner) historyStage(ctx context.Context, opts Options, out *Outcome) error {
	if r.Store == nil {
		out.Changes = changesFromResult(out.Result)
		return nil
	}
	h := out.Report.BeginStage("history")

	previous, err := r.Store.LatestSnapshot(ctx, opts.Project)
	if err != nil {
		out.Report.EndStage(h, "error", nil, nil, err)
		return fmt.Errorf("failed to load previous snapshot: %w", err)
	}
	out.HasBaseline = previous != nil
	out.Changes = report.Diff(previous, out.Signatures)

	res := out.Result
	run := storage.RunRecord{
		StartedAt:      r.now(),
		Project:        opts.Project,
		Output:         opts.Output,
		New:            res.Count(merge.StatusNew),
		Stale:          res.Count(merge.StatusStale),
		Unchanged:      res.Count(merge.StatusUnchanged),
		Orphaned:       res.Count(merge.StatusOrphaned),
		Failed:         len(res.Errors),
		GeneratorCalls: res.GeneratorCalls,
	}
	id, err := r.Store.SaveRun(ctx, run, out.Signatures)
	if err != nil {
		out.Report.EndStage(h, "error", nil, nil, err)
		return fmt.Errorf("failed to record run: %w", err)
	}
	out.RunID = id

	out.Report.EndStage(h, "ok", map[string]float64{
		"added":    float64(len(out.Changes.Added)),
		"removed":  float64(len(out.Changes.Removed)),
		"modified": float64(len(out.Changes.Modified)),
	}, nil, nil)
	if out.HasBaseline {
		r.printf("📊 Since last run: %d added, %d removed, %d modified\n",
			len(out.Changes.Added), len(out.Changes.Removed), len(out.Changes.Modified))
	}
	return nil
}

// changesFromResult approximates the change summary from merge statuses when
// no run history is available.
func changesFromResult(res *merge.Result) report.ChangeSummary {
	return report.ChangeSummary{
		Added:    nonNil(res.Keys(merge.StatusNew)),
		Removed:  nonNil(res.Keys(merge.StatusOrphaned)),
		Modified: nonNil(res.Keys(merge.StatusStale)),
	}
}

func nonNil(keys []string) []string {
	if keys == nil {
		return []string{}
	}
	return keys
}

// commitStage commits the output when it was created or its sections changed.
func (r *Runner) commitStage(ctx context.Context, opts Options, created bool, res *merge.Result, rep *report.RunReport) (bool, error) {
	if !opts.AutoCommit {
		return false, nil
	}
	h := rep.BeginStage("commit")
	if r.Repo == nil || !r.Repo.IsRepository(ctx) {
		rep.EndStage(h, "skipped", nil, []string{"not a git repository"}, nil)
		r.printf("⚠️  Skipping commit: not a git repository\n")
		return false, nil
	}
	changed := created || res.Count(merge.StatusNew)+res.Count(merge.StatusStale) > 0
	if !changed {
		rep.EndStage(h, "skipped", nil, []string{"no documentation changes"}, nil)
		r.printf("✅ No documentation changes to commit.\n")
		return false, nil
	}

	paths := []string{opts.Output}
	if opts.SummaryPath != "" {
		paths = append(paths, opts.SummaryPath)
	}
	for i, p := range paths {
		if abs, err := filepath.Abs(p); err == nil {
			paths[i] = abs
		}
	}
	if err := r.Repo.Commit(ctx, paths, opts.CommitMessage); err != nil {
		rep.EndStage(h, "error", nil, nil, err)
		return false, fmt.Errorf("failed to commit documentation: %w", err)
	}
	rep.EndStage(h, "ok", nil, nil, nil)
	r.printf("📦 Committed %s\n", opts.Output)
	return true, nil
}

func (r *Runner) printf(format string, args ...any) {
	fmt.Fprintf(r.out(), format, args...)
}

func (r *Runner) out() io.Writer {
	if r.Out == nil {
		return os.Stdout
	}
	return r.Out
}

func (r *Runner) logger() *zap.Logger {
	if r.Logger == nil {
		return zap.NewNop()
	}
	return r.Logger
}

func (r *Runner) now() time.Time {
	if r.Clock == nil {
		return time.Now().UTC()
	}
	return r.Clock().UTC()
}
