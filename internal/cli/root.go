package cli

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "beamdec",
	Short:         "Beam-pruned Viterbi decoding over weighted graphs",
	Long:          "beamdec decodes per-frame acoustic costs against a weighted finite-state graph and prints the best path.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(decodeCmd)
	rootCmd.AddCommand(compileCmd)
}
