package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"unmerge/internal/archive"
	"unmerge/internal/config"
	"unmerge/internal/distmarker"
	"unmerge/internal/logging"
	"unmerge/internal/watch"
)

var (
	// Global flags
	verbose    bool
	configPath string
	watchInput bool
	debounce   time.Duration

	// Run flags, shared by the root and source commands
	inputPath     string
	outputPath    string
	distribution  string
	targetClasses string
	batchSize     int

	// Source-only flags
	manifestPath string

	// Config command flags
	configOut string

	cfg *config.Config
)

// rootCmd strips a compiled jar
var rootCmd = &cobra.Command{
	Use:   "unmerge",
	Short: "Strip client-only or server-only code from a merged jar",
	Long: `unmerge produces a single-distribution jar from a merged one.

Classes, methods and fields annotated as belonging to the other side
(@OnlyIn, @SideOnly, @Environment) are removed, as are entries listed in
the jar manifest's Fabric-Loom client/server-only attributes.

Example:
  unmerge --input merged.jar --output server.jar --distribution server`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setup(cmd)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logging.Sync()
	},
	RunE: runBinary,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (YAML)")
	rootCmd.PersistentFlags().BoolVarP(&watchInput, "watch", "w", false, "Rerun whenever the input jar changes")
	rootCmd.PersistentFlags().DurationVar(&debounce, "debounce", watch.DefaultDebounce, "Quiet period before a rerun in watch mode")

	addRunFlags(rootCmd)
	rootCmd.Flags().StringVar(&targetClasses, "target-classes", "", "Write the sorted list of removed or altered entries to this file")

	addRunFlags(sourceCmd)
	sourceCmd.Flags().StringVar(&targetClasses, "target-classes", "", "Only inspect members of the classes listed in this file")
	sourceCmd.Flags().StringVar(&manifestPath, "manifest", "", "Manifest whose client/server-only entry lists apply to the sources")

	configCmd.Flags().StringVarP(&configOut, "output", "o", "unmerge.yaml", "Where to write the configuration")

	rootCmd.AddCommand(sourceCmd)
	rootCmd.AddCommand(rulesCmd)
	rootCmd.AddCommand(configCmd)
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&inputPath, "input", "i", "", "Input jar (required)")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output jar (required)")
	cmd.Flags().StringVarP(&distribution, "distribution", "d", "",
		"Distribution to keep, one of "+strings.ToLower(strings.Join(distmarker.DistributionNames(), ", "))+" (required)")
	cmd.Flags().IntVar(&batchSize, "batch-size", runtime.NumCPU(), "Entries processed concurrently per batch")
	cmd.MarkFlagRequired("input")
	cmd.MarkFlagRequired("output")
	cmd.MarkFlagRequired("distribution")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads configuration, applies flag overrides and builds the logger.
func setup(cmd *cobra.Command) error {
	var err error
	cfg, err = config.Load(configPath)
	if err != nil {
		return err
	}
	if f := cmd.Flags().Lookup("batch-size"); f != nil && f.Changed {
		cfg.BatchSize = batchSize
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	logging.Initialize(logger, cfg.Logging)
	return nil
}

// runBinary strips a compiled jar
func runBinary(cmd *cobra.Command, args []string) error {
	dist, err := distmarker.ParseDistribution(distribution)
	if err != nil {
		return err
	}

	engine := distmarker.NewEngine(dist, distmarker.WithLogger(logging.Get(logging.CategoryDecision)))
	transformer := archive.NewClassTransformer(engine, logging.Get(logging.CategoryClassfile))
	return execute(func(ctx context.Context) error {
		stats, err := archive.Run(ctx, archive.Options{
			Input:         inputPath,
			Output:        outputPath,
			Distribution:  dist,
			BatchSize:     cfg.BatchSize,
			TargetClasses: targetClasses,
			Transformer:   transformer,
			Logger:        logging.Get(logging.CategoryArchive),
		})
		if err != nil {
			return fmt.Errorf("unmerge %s: %w", inputPath, err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), renderSummary(dist, outputPath, stats))
		return nil
	})
}

// execute runs job once, or keeps rerunning it on input changes in watch
// mode until interrupted.
func execute(job watch.Job) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !watchInput {
		return job(ctx)
	}
	log := logging.Get(logging.CategoryArchive)
	if err := job(ctx); err != nil {
		log.Error("Initial run failed", zap.Error(err))
	}
	w, err := watch.New(inputPath, debounce, log)
	if err != nil {
		return err
	}
	return w.Run(ctx, job)
}
