package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"unmerge/internal/archive"
	"unmerge/internal/distmarker"
	"unmerge/internal/logging"
	"unmerge/internal/sourcetree"
)

// sourceCmd strips a sources jar
var sourceCmd = &cobra.Command{
	Use:   "source",
	Short: "Strip client-only or server-only code from a sources jar",
	Long: `Applies the same rules to Java sources. Removed declarations, along with
a Javadoc comment directly above them, are deleted from the text; everything
else is left as written.

--target-classes takes the list written by a binary run. When given, only
the members of listed classes are inspected; class-level annotations are
always honored.

Example:
  unmerge --input merged.jar --output server.jar -d server --target-classes targets.txt
  unmerge source --input merged-sources.jar --output server-sources.jar -d server \
    --target-classes targets.txt --manifest MANIFEST.MF`,
	RunE: runSource,
}

func runSource(cmd *cobra.Command, args []string) error {
	dist, err := distmarker.ParseDistribution(distribution)
	if err != nil {
		return err
	}

	var opts []sourcetree.Option
	if targetClasses != "" {
		targets, err := archive.ReadTargets(targetClasses)
		if err != nil {
			return err
		}
		opts = append(opts, sourcetree.WithTargets(targets))
	}
	var extra []string
	if manifestPath != "" {
		if extra, err = manifestExclusions(manifestPath, dist); err != nil {
			return err
		}
	}

	engine := distmarker.NewEngine(dist, distmarker.WithLogger(logging.Get(logging.CategoryDecision)))
	opts = append(opts, sourcetree.WithLogger(logging.Get(logging.CategorySource)))
	transformer := sourcetree.New(engine, opts...)
	return execute(func(ctx context.Context) error {
		stats, err := archive.Run(ctx, archive.Options{
			Input:           inputPath,
			Output:          outputPath,
			Distribution:    dist,
			BatchSize:       cfg.BatchSize,
			Transformer:     transformer,
			ExtraExclusions: extra,
			Logger:          logging.Get(logging.CategoryArchive),
		})
		if err != nil {
			return fmt.Errorf("unmerge sources %s: %w", inputPath, err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), renderSummary(dist, outputPath, stats))
		return nil
	})
}

func manifestExclusions(path string, dist distmarker.Distribution) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	defer f.Close()
	m, err := archive.ParseManifest(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m.Exclusions(dist), nil
}
