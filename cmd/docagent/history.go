package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"docagent/internal/document"
	"docagent/internal/endpoint"
	"docagent/internal/pipeline"
)

var (
	historyLimit  int
	pruneOutput   string
	pruneAnalysis string
	pruneDryRun   bool
	pruneForce    bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent documentation runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		defer logger.Sync()

		store, err := openStore(cfg)
		if err != nil {
			return err
		}
		if store == nil {
			return fmt.Errorf("run history is disabled (storage.db_path is empty)")
		}
		defer store.Close()

		runs, err := store.ListRuns(contextFor(cmd), historyLimit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("No runs recorded yet.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSTARTED\tPROJECT\tENDPOINTS\tNEW\tSTALE\tUNCHANGED\tORPHANED\tFAILED\tCALLS")
		for _, r := range runs {
			fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%d\t%d\t%d\t%d\t%d\t%d\n",
				r.ID, r.StartedAt.Format("2006-01-02 15:04:05"), r.Project, r.Endpoints,
				r.New, r.Stale, r.Unchanged, r.Orphaned, r.Failed, r.GeneratorCalls)
		}
		return w.Flush()
	},
}

var pruneCmd = &cobra.Command{
	Use:   "prune [path]",
	Short: "Remove sections for endpoints that no longer exist",
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
		output := cfg.Project.Output
		if pruneOutput != "" {
			output = pruneOutput
		}

		doc, err := document.ReadFile(output)
		if err != nil {
			return err
		}
		if doc == nil {
			return fmt.Errorf("%s does not exist", output)
		}

		var sigs []endpoint.Signature
		if pruneAnalysis != "" {
			a, err := endpoint.LoadAnalysis(pruneAnalysis)
			if err != nil {
				return err
			}
			sigs = a.Endpoints
		} else {
			c, err := newCrawler(logger)
			if err != nil {
				return err
			}
			sigs, err = c.Analyze(contextFor(cmd), root)
			if err != nil {
				return fmt.Errorf("analysis failed: %w", err)
			}
		}

		removed, err := pipeline.Prune(doc, sigs, pruneForce)
		if err != nil {
			return err
		}
		if len(removed) == 0 {
			fmt.Println("✅ No orphaned sections.")
			return nil
		}
		for _, k := range removed {
			fmt.Printf("  - %s\n", k)
		}
		if pruneDryRun {
			fmt.Printf("🧭 %d sections would be removed (dry run)\n", len(removed))
			return nil
		}
		if err := document.WriteFile(output, doc); err != nil {
			return err
		}
		fmt.Printf("🧹 Removed %d sections from %s\n", len(removed), output)
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "l", 20, "Number of runs to show")
	pruneCmd.Flags().StringVarP(&pruneOutput, "output", "o", "", "Documentation file (default: project.output)")
	pruneCmd.Flags().StringVar(&pruneAnalysis, "from-analysis", "", "Use endpoints from an analysis JSON instead of scanning")
	pruneCmd.Flags().BoolVar(&pruneDryRun, "dry-run", false, "Only list the sections that would be removed")
	pruneCmd.Flags().BoolVar(&pruneForce, "force", false, "Prune even when no endpoints were found")
}
