package cmd

import (
	"fmt"

	"github.com/khanhnv2901/seca-posture/internal/domain/posture"
	"github.com/spf13/cobra"
)

type estimateOutput struct {
	Industry       string  `json:"industry"`
	Employees      int     `json:"employees"`
	Score          int     `json:"score"`
	BaseCost       int64   `json:"base_cost"`
	RiskMultiplier float64 `json:"risk_multiplier"`
	EstimatedLoss  int64   `json:"estimated_loss"`
}

var estimateCmd = &cobra.Command{
	Use:   "estimate",
	Short: "Estimate financial loss exposure from a posture score",
	Example: `  posture estimate --industry finance --employees 5 --score 45
  posture estimate --list`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		list, _ := cmd.Flags().GetBool("list")
		if list {
			fmt.Fprintln(out, colorInfo("Industry cost profiles:"))
			for _, ind := range posture.Industries() {
				p, _ := posture.Profile(ind)
				fmt.Fprintf(out, "  %-14s base %s  multiplier %.1f\n", ind, formatAmount(p.BaseCost), p.RiskMultiplier)
			}
			return nil
		}

		industry, _ := cmd.Flags().GetString("industry")
		employees, _ := cmd.Flags().GetInt("employees")
		score, _ := cmd.Flags().GetInt("score")
		asJSON, _ := cmd.Flags().GetBool("json")

		ind, err := posture.ParseIndustry(industry)
		if err != nil {
			return err
		}
		loss, err := posture.EstimateLoss(ind, employees, score)
		if err != nil {
			return err
		}

		if asJSON {
			profile, _ := posture.Profile(ind)
			return writeJSONOutput(out, estimateOutput{
				Industry:       string(ind),
				Employees:      employees,
				Score:          score,
				BaseCost:       profile.BaseCost,
				RiskMultiplier: profile.RiskMultiplier,
				EstimatedLoss:  loss,
			})
		}

		fmt.Fprintf(out, "%s %s\n", colorWarn("Estimated loss exposure:"), formatAmount(loss))
		fmt.Fprintf(out, "  industry %s, %d employees, score %s\n", ind, employees, formatScore(score))
		return nil
	},
}

func init() {
	estimateCmd.Flags().String("industry", "other", "Industry (marketing, finance, retail, manufacturing, other)")
	estimateCmd.Flags().Int("employees", 0, "Headcount")
	estimateCmd.Flags().Int("score", posture.MaxScore, "Posture score (0-100)")
	estimateCmd.Flags().Bool("json", false, "Print the estimate as JSON")
	estimateCmd.Flags().Bool("list", false, "List industry cost profiles")
}
