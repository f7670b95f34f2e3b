package cmd

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/khanhnv2901/seca-posture/internal/checker"
	"github.com/khanhnv2901/seca-posture/internal/domain/posture"
	consts "github.com/khanhnv2901/seca-posture/internal/shared/constants"
	sharedErrors "github.com/khanhnv2901/seca-posture/internal/shared/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// batchResult is one row of a batch run. Exactly one of Report and Error is set.
type batchResult struct {
	Input  string          `json:"input"`
	Report *posture.Report `json:"report,omitempty"`
	Error  string          `json:"error,omitempty"`
}

func (r batchResult) ok() bool {
	return r.Error == ""
}

var batchCmd = &cobra.Command{
	Use:   "batch [domain...]",
	Short: "Scan a list of domains with bounded concurrency",
	Long: `Scan many domains, one full posture scan each. Targets come from --file
(one per line, blank lines and # comments ignored) and/or positional arguments.
Concurrency and start rate only pace this command's own list.`,
	Example: `  posture batch --file prospects.txt --concurrency 8 --rate 4
  posture batch example.com example.org --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		appCtx := getAppContext(cmd)
		file, _ := cmd.Flags().GetString("file")
		asJSON, _ := cmd.Flags().GetBool("json")
		showProgress, _ := cmd.Flags().GetBool("progress")
		outputPath, _ := cmd.Flags().GetString("output")

		targets := append([]string(nil), args...)
		if file != "" {
			fromFile, err := readTargetsFile(file)
			if err != nil {
				return err
			}
			targets = append(targets, fromFile...)
		}
		if len(targets) == 0 {
			return fmt.Errorf("no targets given: %w", sharedErrors.ErrEmptyTarget)
		}

		cfg := appCtx.Config.Batch
		runner := &checker.Runner{
			Concurrency: cfg.Concurrency,
			RateLimit:   cfg.RateLimit,
			Timeout:     cfg.Timeout,
		}

		var progress *progressPrinter
		if showProgress && !asJSON {
			progress = newProgressPrinter(cmd.ErrOrStderr(), len(targets), "batch")
			progress.Start()
		}

		results := runBatch(commandContext(cmd), runner, newScanner(appCtx), targets, appCtx.Logger, progress)
		if progress != nil {
			progress.Stop()
		}

		if outputPath != "" {
			if err := writeBatchFile(outputPath, results); err != nil {
				return err
			}
		}

		if asJSON {
			return writeJSONOutput(cmd.OutOrStdout(), results)
		}
		renderBatch(cmd.OutOrStdout(), results)
		if outputPath != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", colorInfo("Results:"), outputPath)
		}
		return nil
	},
}

// runBatch scans targets through the runner; results keep input order.
func runBatch(ctx context.Context, runner *checker.Runner, scanner domainScanner, targets []string, logger *zap.Logger, progress *progressPrinter) []batchResult {
	if logger == nil {
		logger = zap.NewNop()
	}

	check := func(ctx context.Context, target string) batchResult {
		report, err := scanner.Scan(ctx, target)
		if err != nil {
			return batchResult{Input: target, Error: err.Error()}
		}
		return batchResult{Input: target, Report: report}
	}

	audit := func(target string, result batchResult, duration float64) error {
		logger.Debug("batch_target_done",
			zap.String("target", target),
			zap.Bool("ok", result.ok()),
			zap.Float64("duration_seconds", duration),
		)
		if progress != nil {
			progress.Increment(result.ok(), duration)
		}
		return nil
	}

	skip := func(target string, err error) batchResult {
		return batchResult{Input: target, Error: fmt.Sprintf("not scanned: %v", err)}
	}

	return checker.RunChecksWithSkip(ctx, runner, targets, check, skip, audit)
}

// readTargetsFile reads one target per line, skipping blanks and # comments.
func readTargetsFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &TargetFileError{Path: path, Err: err}
	}
	return parseTargets(path, bytes.NewReader(data))
}

func parseTargets(name string, r io.Reader) ([]string, error) {
	var targets []string
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		targets = append(targets, text)
	}
	if err := scanner.Err(); err != nil {
		return nil, &TargetFileError{Path: name, Line: line, Err: err}
	}
	if len(targets) == 0 {
		return nil, &TargetFileError{Path: name, Err: sharedErrors.ErrEmptyTarget}
	}
	return targets, nil
}

func writeBatchFile(path string, results []batchResult) error {
	var buf bytes.Buffer
	if err := writeJSONOutput(&buf, results); err != nil {
		return fmt.Errorf("encode results: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), consts.DefaultFilePerm); err != nil {
		return fmt.Errorf("write results: %w", err)
	}
	return nil
}

func renderBatch(w io.Writer, results []batchResult) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TARGET\tSCORE\tISSUES\tPLATFORM\tSTATUS")

	okCount := 0
	for _, r := range results {
		if !r.ok() {
			fmt.Fprintf(tw, "%s\t-\t-\t-\t%s\n", r.Input, formatStatusWithColor("error"))
			continue
		}
		okCount++
		platform, found := r.Report.CMS()
		if !found {
			platform = "-"
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t%s\n", r.Report.Domain(), r.Report.Score(), len(r.Report.Issues()), platform, formatStatusWithColor("ok"))
	}
	_ = tw.Flush()

	for _, r := range results {
		if !r.ok() {
			fmt.Fprintf(w, "%s %s: %s\n", colorWarn("!"), r.Input, r.Error)
		}
	}
	fmt.Fprintf(w, "Summary: %d OK, %d Errors (out of %d targets)\n", okCount, len(results)-okCount, len(results))
}

func init() {
	batchCmd.Flags().StringP("file", "f", "", "File with one target per line")
	batchCmd.Flags().IntVar(&cliConfig.Batch.Concurrency, "concurrency", cliConfig.Batch.Concurrency, "Maximum concurrent scans")
	batchCmd.Flags().IntVar(&cliConfig.Batch.RateLimit, "rate", cliConfig.Batch.RateLimit, "Scan starts per second (0 = unlimited)")
	batchCmd.Flags().DurationVar(&cliConfig.Batch.Timeout, "timeout", cliConfig.Batch.Timeout, "Overall deadline per target (0 = none)")
	batchCmd.Flags().Bool("json", false, "Print results as JSON")
	batchCmd.Flags().Bool("progress", false, "Show live progress on stderr")
	batchCmd.Flags().StringP("output", "O", "", "Also write JSON results to this file")
}
