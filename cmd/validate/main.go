package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	strictFlag bool
	formatFlag string
)

var rootCmd = &cobra.Command{
	Use:   "validate <manifest.yaml>",
	Short: "Check a loop game's dialogue corpus",
	Long: "Loads a manifest and its dialogue collections, then reports rejected rows, " +
		"requirements nothing grants, dead-end flags and the flags each loop requires.",
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		rep, err := buildReport(args[0])
		if err != nil {
			return err
		}
		if err := rep.write(cmd.OutOrStdout(), formatFlag); err != nil {
			return err
		}
		if strictFlag && rep.Problems > 0 {
			return fmt.Errorf("%d problems found", rep.Problems)
		}
		return nil
	},
}

func init() {
	rootCmd.Flags().BoolVar(&strictFlag, "strict", false, "Exit non-zero on any warning")
	rootCmd.Flags().StringVarP(&formatFlag, "format", "f", "text", "Output format: text or json")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
