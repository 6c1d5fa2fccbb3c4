package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"docagent/internal/generator"
	"docagent/internal/git"
	"docagent/internal/pipeline"
	"docagent/internal/report"
)

var generateFlags struct {
	projectName    string
	output         string
	provider       string
	model          string
	apiKey         string
	fromAnalysis   string
	analysisOutput string
	reportPath     string
	summaryPath    string
	concurrency    int
	timeout        time.Duration
	agentic        bool
	autoCommit     bool
	failOnError    bool
	showTable      bool
}

var generateCmd = &cobra.Command{
	Use:   "generate [path]",
	Short: "Generate or update the API documentation",
	Long: `Scans the FastAPI project at path (default: project.root from the config),
regenerates documentation only for new and changed endpoints and writes the
result back to the output file. Manual edits and sections for removed
endpoints are preserved.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runGenerate,
}

func init() {
	f := generateCmd.Flags()
	f.StringVarP(&generateFlags.projectName, "project-name", "n", "", "Project name shown in the document")
	f.StringVarP(&generateFlags.output, "output", "o", "", "Output markdown file")
	f.StringVar(&generateFlags.provider, "provider", "", "AI provider: groq, openai or gemini")
	f.StringVar(&generateFlags.model, "model", "", "Model name")
	f.StringVar(&generateFlags.apiKey, "api-key", "", "API key (defaults to the provider's environment variable)")
	f.StringVar(&generateFlags.fromAnalysis, "from-analysis", "", "Use endpoints from an analysis JSON instead of scanning")
	f.StringVar(&generateFlags.analysisOutput, "analysis-output", "", "Also write the endpoints analysis JSON here")
	f.StringVar(&generateFlags.reportPath, "report", "", "Write the JSON run report here")
	f.StringVar(&generateFlags.summaryPath, "summary", "", "Write the markdown change summary here")
	f.IntVar(&generateFlags.concurrency, "concurrency", 0, "Maximum concurrent generator calls")
	f.DurationVar(&generateFlags.timeout, "timeout", 0, "Overall generation timeout")
	f.BoolVar(&generateFlags.agentic, "agentic", false, "Critique and refine every generated section")
	f.BoolVar(&generateFlags.autoCommit, "auto-commit", false, "Commit the updated documentation")
	f.BoolVar(&generateFlags.failOnError, "fail-on-error", false, "Exit non-zero when any section failed to generate")
	f.BoolVar(&generateFlags.showTable, "table", false, "Print the per-section change table")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	flags := cmd.Flags()
	if len(args) > 0 {
		cfg.Project.Root = args[0]
	}
	if flags.Changed("project-name") {
		cfg.Project.Name = generateFlags.projectName
	}
	if flags.Changed("output") {
		cfg.Project.Output = generateFlags.output
	}
	if flags.Changed("analysis-output") {
		cfg.Project.AnalysisOutput = generateFlags.analysisOutput
	}
	if flags.Changed("provider") {
		cfg.AI.Provider = generateFlags.provider
	}
	if flags.Changed("model") {
		cfg.AI.Model = generateFlags.model
	}
	if flags.Changed("api-key") {
		cfg.AI.APIKey = generateFlags.apiKey
	}
	if flags.Changed("concurrency") {
		cfg.Generation.Concurrency = generateFlags.concurrency
	}
	if flags.Changed("timeout") {
		cfg.Generation.Timeout = generateFlags.timeout
	}
	if flags.Changed("agentic") {
		cfg.Generation.Agentic = generateFlags.agentic
	}
	if flags.Changed("auto-commit") {
		cfg.Git.AutoCommit = generateFlags.autoCommit
	}
	if flags.Changed("report") {
		cfg.Report.Path = generateFlags.reportPath
	}
	if flags.Changed("summary") {
		cfg.Report.SummaryPath = generateFlags.summaryPath
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx := contextFor(cmd)
	gen, err := generator.New(ctx, generator.Options{
		Provider:      cfg.AI.Provider,
		APIKey:        cfg.ResolvedAPIKey(),
		Model:         cfg.AI.Model,
		BaseURL:       cfg.AI.BaseURL,
		Temperature:   cfg.AI.Temperature,
		MaxTokens:     cfg.AI.MaxTokens,
		HTTPTimeout:   cfg.AI.HTTPTimeout,
		MaxRetries:    cfg.Generation.MaxRetries,
		RetryInterval: cfg.Generation.RetryInterval,
		Agentic:       cfg.Generation.Agentic,
		Logger:        logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create generator: %w", err)
	}

	runner := &pipeline.Runner{
		Generator: gen,
		Repo:      git.NewRepo(""),
		Logger:    logger,
	}
	opts := pipeline.OptionsFromConfig(cfg)
	opts.FromAnalysis = generateFlags.fromAnalysis

	if opts.FromAnalysis == "" {
		c, err := newCrawler(logger)
		if err != nil {
			return err
		}
		warnIfNotFastAPI(c, cfg.Project.Root)
		runner.Crawler = c
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
		runner.Store = store
	}

	outcome, err := runner.Run(ctx, opts)
	if err != nil {
		return err
	}

	if generateFlags.showTable {
		fmt.Println()
		fmt.Print(report.ChangeTable(report.SummarizeResult(outcome.Result)))
	}
	if n := len(outcome.Result.Errors); n > 0 {
		logger.Warn("sections failed to generate", zap.Int("failed", n))
		if generateFlags.failOnError {
			return fmt.Errorf("%d section(s) failed to generate", n)
		}
	}
	return nil
}
