package cmd

import (
	"fmt"

	"github.com/khanhnv2901/seca-posture/internal/domain/posture"
	"github.com/spf13/cobra"
)

var advisoryCmd = &cobra.Command{
	Use:   "advisory [platform]",
	Short: "Print platform-specific security advice",
	Long:  "Print the advisory for a detected platform (wordpress, shopify, squarespace, wix, joomla, drupal). Unknown or omitted platforms get the generic advice.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		platform := posture.UnknownPlatform
		if len(args) == 1 {
			platform = args[0]
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", colorInfo(platform+":"), posture.Advisory(platform))
		return nil
	},
}
