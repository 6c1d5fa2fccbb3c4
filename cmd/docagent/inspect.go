package main

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"docagent/internal/endpoint"
	"docagent/internal/git"
	"docagent/internal/pipeline"
)

var (
	analyzeOutput string
	changesBase   string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [path]",
	Short: "Extract endpoints without generating documentation",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		defer logger.Sync()

		root := cfg.Project.Root
		if len(args) > 0 {
			root = args[0]
		}
		c, err := newCrawler(logger)
		if err != nil {
			return err
		}
		warnIfNotFastAPI(c, root)

		fmt.Printf("🔍 Analyzing %s...\n", root)
		sigs, err := c.Analyze(contextFor(cmd), root)
		if err != nil {
			return fmt.Errorf("analysis failed: %w", err)
		}
		for _, s := range sigs {
			fmt.Printf("  %-40s %s:%d\n", s.Key(), s.File, s.Line)
		}
		fmt.Printf("📊 %d endpoints found\n", len(sigs))

		out := analyzeOutput
		if out == "" {
			out = filepath.Join(root, "endpoints_analysis.json")
		}
		if err := endpoint.SaveAnalysis(out, endpoint.NewAnalysis(cfg.Project.Name, sigs)); err != nil {
			return fmt.Errorf("failed to save analysis: %w", err)
		}
		fmt.Printf("💾 Analysis saved to %s\n", out)
		return nil
	},
}

var changesCmd = &cobra.Command{
	Use:   "changes [path]",
	Short: "List endpoints whose handlers changed since the base branch",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		defer logger.Sync()

		root := cfg.Project.Root
		if len(args) > 0 {
			root = args[0]
		}
		base := changesBase
		if base == "" {
			base = cfg.Git.Base
		}

		ctx := contextFor(cmd)
		repo := git.NewRepo(root)
		if !repo.IsRepository(ctx) {
			return fmt.Errorf("%s is not inside a git repository", root)
		}
		if base == "" {
			base = repo.DefaultBranch(ctx)
		}

		files, err := repo.ChangedFiles(ctx, base, ".py")
		if err != nil {
			return fmt.Errorf("failed to list changed files: %w", err)
		}
		hunks, err := repo.DiffHunks(ctx, base)
		if err != nil {
			return fmt.Errorf("failed to read diff: %w", err)
		}

		fmt.Printf("📝 %d Python files changed since %s\n", len(files), base)
		for _, f := range files {
			fmt.Printf("  %s\n", f)
		}

		c, err := newCrawler(logger)
		if err != nil {
			return err
		}
		sigs, err := c.Analyze(ctx, root)
		if err != nil {
			return fmt.Errorf("analysis failed: %w", err)
		}
		affected := pipeline.AffectedEndpoints(sigs, hunks)
		keys := make([]string, 0, len(affected))
		for _, s := range affected {
			keys = append(keys, s.Key())
		}
		sort.Strings(keys)

		if len(keys) == 0 {
			fmt.Println("✅ No endpoint handlers changed.")
			return nil
		}
		fmt.Printf("🔍 %d endpoints affected:\n", len(keys))
		for _, k := range keys {
			fmt.Printf("  - %s\n", k)
		}
		return nil
	},
}

func init() {
	analyzeCmd.Flags().StringVarP(&analyzeOutput, "output", "o", "", "Analysis JSON path (default: <path>/endpoints_analysis.json)")
	changesCmd.Flags().StringVar(&changesBase, "base", "", "Compare against this ref (default: git.base or the default branch)")
}
