package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gide-search/backend/pkg/crate"
	"github.com/gide-search/backend/pkg/profile"
)

var validateCmd = &cobra.Command{
	Use:   "validate <file>...",
	Short: "Validate crate files against the metadata profile",
	Long: `Parse one or more RO-Crate metadata files and check them against
the metadata profile. Every violation is reported; a file with any
violation fails the command.

Examples:
  gide validate ./crates/study-a/ro-crate-metadata.json
  gide validate ./crates/*/ro-crate-metadata.json`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		failures := 0
		for _, path := range args {
			data, err := os.ReadFile(path)
			if err != nil {
				fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
				failures++
				continue
			}

			g, err := crate.Parse(data)
			if err != nil {
				fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
				failures++
				continue
			}

			report := profile.Validate(g)
			if report.OK() {
				fmt.Printf("%s: ok\n", path)
				continue
			}

			failures++
			fmt.Printf("%s: %d violations\n", path, len(report.Violations))
			for _, v := range report.Violations {
				fmt.Printf("  - %s\n", v.String())
			}
		}

		if failures > 0 {
			return fmt.Errorf("%d of %d files failed validation", failures, len(args))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
