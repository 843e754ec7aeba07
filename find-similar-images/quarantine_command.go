package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/artyom/imgmatch/internal/quarantine"
	"github.com/artyom/imgmatch/internal/report"
)

var errAborted = errors.New("quarantine aborted")

func newQuarantineCommand(ctx *commandContext) *cobra.Command {
	var (
		root    string
		trash   string
		fromCSV string
		dryRun  bool
		yes     bool
	)

	cmd := &cobra.Command{
		Use:   "quarantine [paths...]",
		Short: "Move files into the quarantine folder instead of deleting them",
		Long: "Move the given files, or the path column of an exported CSV report, into " +
			"<root>/<quarantine.dir_name>. Name clashes get a __N suffix.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.logger(cmd, "quarantine")
			if err != nil {
				return err
			}

			paths := append([]string(nil), args...)
			if fromCSV != "" {
				f, err := os.Open(fromCSV)
				if err != nil {
					return fmt.Errorf("open report: %w", err)
				}
				csvPaths, err := report.ReadPaths(f)
				f.Close()
				if err != nil {
					return fmt.Errorf("read report %s: %w", fromCSV, err)
				}
				paths = append(paths, csvPaths...)
			}
			if len(paths) == 0 {
				return errors.New("no files given (pass paths or --from-csv)")
			}

			target := strings.TrimSpace(trash)
			if target == "" {
				if strings.TrimSpace(root) == "" {
					return errors.New("either --root or --trash is required")
				}
				target = filepath.Join(root, cfg.Quarantine.DirName)
			}
			target, err = filepath.Abs(target)
			if err != nil {
				return fmt.Errorf("resolve quarantine dir: %w", err)
			}
			return quarantinePaths(cmd, logger, paths, target, dryRun, yes)
		},
	}

	cmd.Flags().StringVarP(&root, "root", "r", "", "Scanned directory; the quarantine folder is created inside it")
	cmd.Flags().StringVar(&trash, "trash", "", "Explicit quarantine directory (overrides --root)")
	cmd.Flags().StringVar(&fromCSV, "from-csv", "", "Read paths from the path column of a CSV report")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the planned moves without touching any file")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

func quarantinePaths(cmd *cobra.Command, logger zerolog.Logger, paths []string, trashRoot string, dryRun, yes bool) error {
	out := cmd.OutOrStdout()
	if dryRun {
		plan := quarantine.Plan(paths, trashRoot)
		for _, mv := range plan.Moves {
			fmt.Fprintf(out, "would move %s -> %s\n", mv.From, mv.To)
		}
		printFailures(cmd, plan.Errors())
		fmt.Fprintf(out, "Dry run: %d of %d files would be moved to %s\n", plan.Moved, len(paths), trashRoot)
		return nil
	}

	if !yes {
		if !confirm(cmd, fmt.Sprintf("Move %d files to %s?", len(paths), trashRoot)) {
			return errAborted
		}
	}

	summary, err := quarantine.New(logger).Move(paths, trashRoot)
	if err != nil {
		return err
	}
	printFailures(cmd, summary.Errors())
	fmt.Fprintf(out, "Moved %d files to %s\n", summary.Moved, trashRoot)
	if len(summary.Failures) > 0 {
		return fmt.Errorf("%d files could not be moved", len(summary.Failures))
	}
	return nil
}

// printFailures lists at most ten failures, then a count of the rest.
func printFailures(cmd *cobra.Command, errs []string) {
	const limit = 10
	w := cmd.ErrOrStderr()
	for i, e := range errs {
		if i == limit {
			fmt.Fprintf(w, "... and %d more errors\n", len(errs)-limit)
			break
		}
		fmt.Fprintf(w, "error: %s\n", e)
	}
}

func confirm(cmd *cobra.Command, prompt string) bool {
	fmt.Fprintf(cmd.OutOrStdout(), "%s [y/N] ", prompt)
	line, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}
