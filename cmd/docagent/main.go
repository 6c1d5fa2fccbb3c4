package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"docagent/internal/config"
	"docagent/internal/crawler"
	"docagent/internal/extractor"
	"docagent/internal/storage"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

var (
	rootCmd = &cobra.Command{
		Use:           "docagent",
		Short:         "Keeps FastAPI endpoint documentation in sync with the code",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	configPath string
	dbPath     string
	verbose    bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "❌", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "Path to the YAML config file")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Path to the run history database (SQLite); overrides storage.db_path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable development logging")

	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(changesCmd)
	rootCmd.AddCommand(pruneCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(versionCmd)
}

func newLogger() (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	return cfg.Build()
}

// setup loads config and the logger shared by every command.
func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if dbPath != "" {
		cfg.Storage.DBPath = dbPath
	}
	logger, err := newLogger()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return cfg, logger, nil
}

func newCrawler(logger *zap.Logger) (*crawler.Crawler, error) {
	ext, err := extractor.NewExtractor("fastapi", logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create extractor: %w", err)
	}
	return crawler.NewCrawler(ext, logger), nil
}

// openStore returns nil when history is disabled.
func openStore(cfg *config.Config) (*storage.SQLiteStore, error) {
	if cfg.Storage.DBPath == "" {
		return nil, nil
	}
	store, err := storage.NewSQLiteStore(cfg.Storage.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return store, nil
}

// warnIfNotFastAPI prints a hint when no file under root imports fastapi.
func warnIfNotFastAPI(c *crawler.Crawler, root string) {
	ok, err := c.DetectFastAPI(root)
	if err == nil && !ok {
		fmt.Printf("⚠️  No FastAPI imports found under %s\n", root)
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the docagent version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("docagent", version)
	},
}

func contextFor(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
