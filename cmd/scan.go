package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/khanhnv2901/seca-posture/internal/application/scan"
	"github.com/khanhnv2901/seca-posture/internal/domain/posture"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// domainScanner is satisfied by *scan.Orchestrator.
type domainScanner interface {
	Scan(ctx context.Context, raw string) (*posture.Report, error)
}

// newScanner builds the orchestrator for a command; tests replace it.
var newScanner = func(appCtx *AppContext) domainScanner {
	return scan.NewDefault(appCtx.Config.Scan.ProbeConfig(), appCtx.Logger)
}

// lossOptions carries the optional --industry/--employees pair.
type lossOptions struct {
	Industry  string
	Employees int
}

func (o lossOptions) enabled() bool {
	return o.Industry != ""
}

// scanOutput is the --json shape of a single scan.
type scanOutput struct {
	Report        *posture.Report `json:"report"`
	Advisory      string          `json:"advisory"`
	EstimatedLoss *int64          `json:"estimated_loss,omitempty"`
	Industry      string          `json:"industry,omitempty"`
	Employees     *int            `json:"employees,omitempty"`
}

var scanCmd = &cobra.Command{
	Use:   "scan <domain>",
	Short: "Scan one domain and print its posture report",
	Example: `  posture scan example.com
  posture scan https://www.example.com/shop --json
  posture scan example.com --industry finance --employees 40`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		appCtx := getAppContext(cmd)
		asJSON, _ := cmd.Flags().GetBool("json")
		industry, _ := cmd.Flags().GetString("industry")
		employees, _ := cmd.Flags().GetInt("employees")
		opts := lossOptions{Industry: industry, Employees: employees}

		// Validate estimator input before spending time on the network.
		var ind posture.Industry
		if opts.enabled() {
			parsed, err := posture.ParseIndustry(opts.Industry)
			if err != nil {
				return err
			}
			if _, err := posture.EstimateLoss(parsed, opts.Employees, posture.MaxScore); err != nil {
				return err
			}
			ind = parsed
		}

		report, err := newScanner(appCtx).Scan(commandContext(cmd), args[0])
		if err != nil {
			return &InvalidTargetError{Input: args[0], Err: err}
		}

		out := buildScanOutput(report, ind, opts)
		if asJSON {
			return writeJSONOutput(cmd.OutOrStdout(), out)
		}
		renderReport(cmd.OutOrStdout(), out)
		return nil
	},
}

func buildScanOutput(report *posture.Report, ind posture.Industry, opts lossOptions) scanOutput {
	platform, ok := report.CMS()
	if !ok {
		platform = posture.UnknownPlatform
	}
	out := scanOutput{Report: report, Advisory: posture.Advisory(platform)}

	if ind != "" {
		// Inputs were validated up front and the score is always in range.
		if loss, err := posture.EstimateLoss(ind, opts.Employees, report.Score()); err == nil {
			employees := opts.Employees
			out.EstimatedLoss = &loss
			out.Industry = string(ind)
			out.Employees = &employees
		}
	}
	return out
}

func writeJSONOutput(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// renderReport prints the human-readable report.
func renderReport(w io.Writer, out scanOutput) {
	report := out.Report
	border := strings.Repeat("=", 60)

	fmt.Fprintln(w, colorInfo(border))
	fmt.Fprintf(w, "%s %s\n", colorInfo("Posture report:"), report.Domain())
	fmt.Fprintf(w, "%s %s\n", colorInfo("Score:"), formatScore(report.Score()))
	fmt.Fprintln(w, colorInfo(border))

	issues := report.Issues()
	fmt.Fprintf(w, "\n%s (%d)\n", colorWarn("Issues"), len(issues))
	for _, line := range issues {
		fmt.Fprintf(w, "  %s %s\n", colorError("✗"), line)
	}

	passes := report.Passes()
	fmt.Fprintf(w, "\n%s (%d)\n", colorSuccess("Passed"), len(passes))
	for _, line := range passes {
		fmt.Fprintf(w, "  %s %s\n", colorSuccess("✓"), line)
	}

	fmt.Fprintln(w)
	if cms, ok := report.CMS(); ok {
		fmt.Fprintf(w, "%s %s\n", colorInfo("Platform:"), cms)
	} else {
		fmt.Fprintf(w, "%s not identified\n", colorInfo("Platform:"))
	}
	fmt.Fprintf(w, "%s %s\n", colorInfo("Advisory:"), out.Advisory)

	if out.EstimatedLoss != nil {
		fmt.Fprintf(w, "%s %s (%s, %d employees)\n",
			colorWarn("Estimated loss exposure:"), formatAmount(*out.EstimatedLoss), out.Industry, *out.Employees)
	}

	fmt.Fprintf(w, "\nScanned %s in %s\n", report.ScannedAt().UTC().Format("2006-01-02 15:04:05 MST"), report.Duration().Round(time.Millisecond))
}

// formatScore colors the score by band: 80+ green, 50+ yellow, else red.
func formatScore(score int) string {
	text := fmt.Sprintf("%d/%d", score, posture.MaxScore)
	switch {
	case score >= 80:
		return colorSuccess(text)
	case score >= 50:
		return colorWarn(text)
	default:
		return colorError(text)
	}
}

var amountPrinter = message.NewPrinter(language.English)

// formatAmount groups thousands, e.g. 1,250,000.
func formatAmount(v int64) string {
	return amountPrinter.Sprintf("%d", v)
}

func init() {
	scanCmd.Flags().Bool("json", false, "Print the report as JSON")
	scanCmd.Flags().String("industry", "", "Industry for the loss estimate (marketing, finance, retail, manufacturing, other)")
	scanCmd.Flags().Int("employees", 0, "Headcount for the loss estimate")
}
