// Package main provides the shelfsort CLI entry point.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/orneryd/shelfsort/pkg/config"
	"github.com/orneryd/shelfsort/pkg/encryption"
	"github.com/orneryd/shelfsort/pkg/logging"
	"github.com/orneryd/shelfsort/pkg/organizer"
	"github.com/orneryd/shelfsort/pkg/storage"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "shelfsort",
		Short: "shelfsort - embedding-based document organization",
		Long: `shelfsort groups documents by the similarity of their embeddings and
suggests a shelf and folder for each one.

Strategies:
  • communities: similarity graph + community detection
  • kmeans: k-means++ over the raw embeddings`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().String("config", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().String("data-dir", "", "Data directory (overrides config)")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "shelfsort v%s (%s)\n", version, commit)
		},
	})

	importCmd := &cobra.Command{
		Use:   "import [file]",
		Short: "Import documents with embeddings from a YAML or JSON file",
		Args:  cobra.ExactArgs(1),
		RunE:  runImport,
	}
	rootCmd.AddCommand(importCmd)

	rootCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List stored documents and their locations",
		RunE:  runList,
	})

	organizeCmd := &cobra.Command{
		Use:   "organize",
		Short: "Suggest (and optionally apply) new document locations",
		RunE:  runOrganize,
	}
	addOrganizeFlags(organizeCmd)
	organizeCmd.Flags().Bool("apply", false, "Persist the suggested locations")
	organizeCmd.Flags().Bool("all", false, "Show unchanged suggestions too")
	rootCmd.AddCommand(organizeCmd)

	clustersCmd := &cobra.Command{
		Use:   "clusters",
		Short: "Show the clusters the current documents form",
		RunE:  runClusters,
	}
	addOrganizeFlags(clustersCmd)
	rootCmd.AddCommand(clustersCmd)

	scheduleCmd := &cobra.Command{
		Use:   "schedule",
		Short: "Re-organize periodically until interrupted",
		RunE:  runSchedule,
	}
	addOrganizeFlags(scheduleCmd)
	scheduleCmd.Flags().String("cron", "", "Six-field cron expression (overrides config)")
	scheduleCmd.Flags().Bool("auto-apply", false, "Persist changed locations after each run")
	scheduleCmd.Flags().Bool("run-now", false, "Run once immediately before waiting for the schedule")
	rootCmd.AddCommand(scheduleCmd)

	return rootCmd
}

func addOrganizeFlags(cmd *cobra.Command) {
	cmd.Flags().String("strategy", config.StrategyCommunities, "Clustering strategy: communities or kmeans")
	cmd.Flags().Int("k", 0, "k-means cluster count (0 = min(documents, shelves*folders))")
	cmd.Flags().Int64("seed", 42, "k-means seed")
	cmd.Flags().Float64("threshold", 0.7, "Minimum cosine similarity for a graph edge")
	cmd.Flags().Int("max-iterations", 100, "Iteration cap for the chosen strategy")
	cmd.Flags().Int("shelves", 5, "Number of shelves")
	cmd.Flags().Int("folders", 5, "Folders per shelf (at most 26)")
}

// loadConfig loads the config file and environment, then applies flags the
// user set explicitly.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("data-dir") {
		cfg.Storage.DataDir, _ = flags.GetString("data-dir")
	}
	if flags.Lookup("strategy") != nil {
		if flags.Changed("strategy") {
			strategy, _ := flags.GetString("strategy")
			cfg.Organize.Strategy = strings.ToLower(strategy)
		}
		if flags.Changed("k") {
			cfg.Organize.K, _ = flags.GetInt("k")
		}
		if flags.Changed("seed") {
			cfg.Organize.Seed, _ = flags.GetInt64("seed")
		}
		if flags.Changed("threshold") {
			cfg.Organize.SimilarityThreshold, _ = flags.GetFloat64("threshold")
		}
		if flags.Changed("max-iterations") {
			n, _ := flags.GetInt("max-iterations")
			cfg.Organize.KMeansMaxIterations = n
			cfg.Organize.CommunityMaxIterations = n
		}
		if flags.Changed("shelves") {
			cfg.Organize.MaxShelves, _ = flags.GetInt("shelves")
		}
		if flags.Changed("folders") {
			cfg.Organize.MaxFolders, _ = flags.GetInt("folders")
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// app bundles what every command needs.
type app struct {
	cfg    *config.Config
	logger *logging.Logger
	engine storage.Engine
}

func (a *app) Close() error {
	return a.engine.Close()
}

func openApp(cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(cmd.ErrOrStderr(), cfg.Logging.Format, cfg.Logging.Level)
	if err != nil {
		return nil, err
	}

	engine, err := openEngine(cfg, logger)
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, logger: logger, engine: engine}, nil
}

// openEngine opens the configured document store.
func openEngine(cfg *config.Config, logger *logging.Logger) (storage.Engine, error) {
	if cfg.Storage.InMemory {
		return storage.NewMemoryEngine(), nil
	}

	if err := os.MkdirAll(cfg.Storage.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", cfg.Storage.DataDir, err)
	}

	cacheSize, err := config.ParseMemorySize(cfg.Storage.CacheSize)
	if err != nil {
		return nil, err
	}
	opts := storage.BadgerOptions{
		DataDir:        cfg.Storage.DataDir,
		Logger:         logger.Badger(),
		BlockCacheSize: cacheSize,
	}

	if cfg.Storage.EncryptionEnabled {
		salt, err := loadOrCreateSalt(cfg.Storage.DataDir)
		if err != nil {
			return nil, err
		}
		enc, err := encryption.NewEncryptor(cfg.Storage.EncryptionPassword, encryption.Options{Salt: salt})
		if err != nil {
			return nil, err
		}
		opts.Encryptor = enc
	}

	engine, err := storage.NewBadgerEngineWithOptions(opts)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return engine, nil
}

// loadOrCreateSalt returns the per-directory key derivation salt, creating it
// on first use.
func loadOrCreateSalt(dataDir string) ([]byte, error) {
	path := filepath.Join(dataDir, "encryption.salt")
	salt, err := os.ReadFile(path)
	if err == nil {
		return salt, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading salt: %w", err)
	}

	salt, err = encryption.GenerateSalt()
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, salt, 0o600); err != nil {
		return nil, fmt.Errorf("writing salt: %w", err)
	}
	return salt, nil
}

func runOrganize(cmd *cobra.Command, args []string) error {
	apply, _ := cmd.Flags().GetBool("apply")
	showAll, _ := cmd.Flags().GetBool("all")

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	out := cmd.OutOrStdout()
	req := organizer.RequestFromConfig(a.cfg.Organize)
	req.Progress = func(p organizer.Progress) {
		a.logger.Debug("progress", "job", p.JobID, "stage", p.Stage, "percent", p.Percent, "message", p.Message)
	}

	org := organizer.New(a.engine, a.logger)
	report, result, err := org.Run(cmd.Context(), req, apply)
	if err != nil {
		return err
	}

	suggestions := report.ChangedSuggestions()
	if showAll {
		suggestions = report.Suggestions
	}
	fmt.Fprintln(out, renderSuggestions(suggestions))
	fmt.Fprintln(out, renderSummary(report))

	if apply {
		fmt.Fprintf(out, "✅ Applied %d moves\n", result.Applied)
		if db, ok := a.engine.(*storage.BadgerEngine); ok && result.Applied > 0 {
			if err := db.RunGC(); err != nil {
				a.logger.Warn("value log GC failed", "error", err)
			}
		}
	} else if report.Changed > 0 {
		fmt.Fprintln(out, "Run again with --apply to persist these moves.")
	}
	return nil
}

func runClusters(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	report, err := organizer.New(a.engine, a.logger).Suggest(cmd.Context(), organizer.RequestFromConfig(a.cfg.Organize))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, renderClusters(report.Clusters))
	fmt.Fprintln(out, renderSummary(report))
	return nil
}

func runSchedule(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	sc := organizer.ScheduleConfig{
		Cron:      a.cfg.Schedule.Cron,
		AutoApply: a.cfg.Schedule.AutoApply,
		Timeout:   a.cfg.Schedule.Timeout,
	}
	if cmd.Flags().Changed("cron") {
		sc.Cron, _ = cmd.Flags().GetString("cron")
	}
	if cmd.Flags().Changed("auto-apply") {
		sc.AutoApply, _ = cmd.Flags().GetBool("auto-apply")
	}
	if err := organizer.ValidateCron(sc.Cron); err != nil {
		return err
	}

	scheduler := organizer.NewScheduler(organizer.New(a.engine, a.logger), organizer.RequestFromConfig(a.cfg.Organize), sc)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if runNow, _ := cmd.Flags().GetBool("run-now"); runNow {
		scheduler.RunNow(ctx)
		if last := scheduler.LastRun(); last != nil && last.Err != nil {
			a.logger.Error("initial run failed", "error", last.Err)
		}
	}

	if err := scheduler.Start(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "⏰ Scheduled organization with %q (auto-apply: %v). Press Ctrl+C to stop.\n",
		sc.Cron, sc.AutoApply)

	<-ctx.Done()
	scheduler.Stop(30 * time.Second)
	fmt.Fprintf(cmd.OutOrStdout(), "✅ Scheduler stopped after %d runs\n", scheduler.Runs())
	return nil
}
