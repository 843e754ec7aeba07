package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/artyom/imgmatch/internal/config"
	"github.com/artyom/imgmatch/internal/report"
	"github.com/artyom/imgmatch/internal/scan"
)

type scanOptions struct {
	threshold      int
	minRatio       float64
	workers        int
	hash           string
	backend        string
	maxFeatures    int
	extensions     []string
	followSymlinks bool
	partial        bool

	format     string
	output     string
	top        int
	maxScore   float64
	noProgress bool

	quarantine bool
	dryRun     bool
	yes        bool
}

func newScanCommand(ctx *commandContext) *cobra.Command {
	var opts scanOptions

	cmd := &cobra.Command{
		Use:   "scan <query-image> <directory>",
		Short: "Rank images under a directory by similarity to a query image",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			scanCfg := cfg.Scan
			applyScanFlags(cmd, &scanCfg, opts)
			return runScan(cmd, ctx, cfg, scanCfg, opts, args[0], args[1])
		},
	}

	flags := cmd.Flags()
	flags.IntVarP(&opts.threshold, "threshold", "t", 0, "Maximum fingerprint Hamming distance (0-64)")
	flags.Float64Var(&opts.minRatio, "min-ratio", 0, "Advisory minimum descriptor match ratio (0-1)")
	flags.IntVarP(&opts.workers, "workers", "w", 0, "Worker count (1-64)")
	flags.StringVar(&opts.hash, "hash", "", "Fingerprint algorithm (dct, goimagehash)")
	flags.StringVar(&opts.backend, "backend", "", "Descriptor backend (go, opencv)")
	flags.IntVar(&opts.maxFeatures, "max-features", 0, "Maximum keypoints per image")
	flags.StringSliceVar(&opts.extensions, "ext", nil, "Image extensions to scan (repeatable)")
	flags.BoolVar(&opts.followSymlinks, "follow-symlinks", false, "Descend into symlinked directories")
	flags.BoolVar(&opts.partial, "partial", false, "Keep results gathered before an interrupt")
	flags.StringVarP(&opts.format, "format", "f", report.FormatTable, "Output format ("+strings.Join(report.Formats, ", ")+")")
	flags.StringVarP(&opts.output, "output", "o", "", "Write the report to a file instead of stdout")
	flags.IntVar(&opts.top, "top", 0, "Keep only the N best results (0 keeps all)")
	flags.Float64Var(&opts.maxScore, "max-score", 0, "Drop results with a score above this value (0 keeps all)")
	flags.BoolVar(&opts.noProgress, "no-progress", false, "Disable the progress indicator")
	flags.BoolVar(&opts.quarantine, "quarantine", false, "Move the reported matches into the quarantine folder")
	flags.BoolVar(&opts.dryRun, "dry-run", false, "With --quarantine, print the planned moves only")
	flags.BoolVarP(&opts.yes, "yes", "y", false, "With --quarantine, do not ask for confirmation")
	return cmd
}

// applyScanFlags overlays explicitly set flags on the file configuration.
func applyScanFlags(cmd *cobra.Command, cfg *config.Scan, opts scanOptions) {
	flags := cmd.Flags()
	if flags.Changed("threshold") {
		cfg.HashThreshold = opts.threshold
	}
	if flags.Changed("min-ratio") {
		cfg.MinRatio = opts.minRatio
	}
	if flags.Changed("workers") {
		cfg.Workers = opts.workers
	}
	if flags.Changed("hash") {
		cfg.HashAlgorithm = strings.ToLower(opts.hash)
	}
	if flags.Changed("backend") {
		cfg.DescriptorBackend = strings.ToLower(opts.backend)
	}
	if flags.Changed("max-features") {
		cfg.MaxFeatures = opts.maxFeatures
	}
	if flags.Changed("ext") {
		cfg.Extensions = opts.extensions
	}
	if flags.Changed("follow-symlinks") {
		cfg.FollowSymlinks = opts.followSymlinks
	}
	if flags.Changed("partial") {
		cfg.PartialOnCancel = opts.partial
	}
}

func runScan(cmd *cobra.Command, ctx *commandContext, cfg *config.Config, scanCfg config.Scan, opts scanOptions, queryPath, root string) error {
	if opts.top < 0 {
		return fmt.Errorf("--top must not be negative")
	}
	if opts.maxScore < 0 || opts.maxScore > 1 {
		return fmt.Errorf("--max-score must be within [0, 1]")
	}
	format := strings.ToLower(strings.TrimSpace(opts.format))
	if !isFormat(format) {
		return fmt.Errorf("unknown output format %q (want one of %s)", opts.format, strings.Join(report.Formats, ", "))
	}

	logger, err := ctx.logger(cmd, "scan")
	if err != nil {
		return err
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", root, err)
	}

	sessionOpts := []scan.Option{
		scan.WithLogger(logger),
		scan.WithSkipDirs(cfg.Quarantine.DirName),
	}
	bar := newProgress(cmd.ErrOrStderr(), opts.noProgress)
	if bar != nil {
		sessionOpts = append(sessionOpts, scan.WithProgress(func(p scan.Progress) {
			_ = bar.Set64(p.Processed)
		}))
	}
	session := scan.NewSession(scanCfg, sessionOpts...)

	runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	results, err := session.Run(runCtx, queryPath, absRoot)
	if bar != nil {
		_ = bar.Finish()
	}
	if err != nil {
		return err
	}

	cancelled := session.State() == scan.StateCancelled
	if cancelled {
		fmt.Fprintln(cmd.ErrOrStderr(), "Scan cancelled.")
		if len(results) == 0 {
			return context.Canceled
		}
	}

	results = trimResults(results, opts.top, opts.maxScore)
	if err := writeReport(cmd.OutOrStdout(), opts.output, format, report.Records(results)); err != nil {
		return err
	}
	if cancelled {
		return context.Canceled
	}
	progress := session.Progress()
	fmt.Fprintf(cmd.ErrOrStderr(), "Scanned %d files: %d matched, %d pruned, %d unreadable.\n",
		progress.Processed, progress.Matched, progress.Pruned, progress.Failed)

	if !opts.quarantine || len(results) == 0 {
		return nil
	}
	paths := make([]string, len(results))
	for i, r := range results {
		paths[i] = r.Path
	}
	return quarantinePaths(cmd, logger, paths, filepath.Join(absRoot, cfg.Quarantine.DirName), opts.dryRun, opts.yes)
}

func isFormat(format string) bool {
	for _, f := range report.Formats {
		if f == format {
			return true
		}
	}
	return false
}

// trimResults applies the --max-score and --top filters to ranked results.
func trimResults(results []scan.Result, top int, maxScore float64) []scan.Result {
	if maxScore > 0 {
		kept := results[:0:0]
		for _, r := range results {
			if r.Score <= maxScore {
				kept = append(kept, r)
			}
		}
		results = kept
	}
	if top > 0 && len(results) > top {
		results = results[:top]
	}
	return results
}

func writeReport(stdout io.Writer, output, format string, records []report.Record) error {
	if output == "" {
		return report.Write(stdout, format, records)
	}
	f, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	if err := report.Write(f, format, records); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close report: %w", err)
	}
	fmt.Fprintf(stdout, "Wrote %d results to %s\n", len(records), output)
	return nil
}

// newProgress returns a spinner on terminals, nil elsewhere.
func newProgress(w io.Writer, disabled bool) *progressbar.ProgressBar {
	if disabled || !isTerminal(w) {
		return nil
	}
	return progressbar.NewOptions64(-1,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("scanning"),
		progressbar.OptionShowCount(),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionClearOnFinish(),
	)
}
