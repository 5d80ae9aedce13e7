package main

import (
	"github.com/cottand/qlub/cmd"
	"github.com/spf13/cobra"
	"os"
)

func main() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "qlub [subcommand]",
	Short:        "qlub computes least upper bounds of qualified types",
	Args:         cobra.MinimumNArgs(1),
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(cmd.LubCmd)
	rootCmd.AddCommand(cmd.LatticeCmd)
}
