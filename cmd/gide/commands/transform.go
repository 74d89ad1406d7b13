package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gide-search/backend/pkg/adapter"
	apiadapter "github.com/gide-search/backend/pkg/adapter/api"
	"github.com/gide-search/backend/pkg/adapter/rdf"
	"github.com/gide-search/backend/pkg/adapter/rocrate"
	"github.com/gide-search/backend/pkg/adapter/tabular"
	"github.com/gide-search/backend/pkg/resolve"
	"github.com/gide-search/backend/pkg/study"
)

var (
	transformSource   string
	transformPath     string
	transformQuery    string
	transformPageSize int
	transformParallel int
	transformOut      string
)

var transformCmd = &cobra.Command{
	Use:   "transform",
	Short: "Harvest one source and emit flattened records",
	Long: `Harvest one source, validate every record against the metadata
profile, and flatten the survivors into canonical study records.

Records are written as JSON lines, one study per line. Rejected
records are reported on stderr and never abort the batch.

Examples:
  gide transform --source idr --path ./idr-metadata --out studies.jsonl
  gide transform --source bia --query microscopy --page-size 50
  gide transform --source external --path ./crates`,
	RunE: func(cmd *cobra.Command, args []string) error {
		source := study.Source(strings.ToUpper(transformSource))
		if !source.Valid() {
			return fmt.Errorf("unknown source %q", transformSource)
		}

		ad, err := cliAdapter(source)
		if err != nil {
			return err
		}

		records, err := ad.Records(cmd.Context())
		if err != nil {
			return fmt.Errorf("harvest %s: %w", source, err)
		}

		inputs := make([]resolve.Input, 0, len(records))
		for _, r := range records {
			inputs = append(inputs, resolve.Input{
				Source: adapter.RecordSource(ad, r),
				Suffix: r.Suffix,
				Graph:  r.Graph,
			})
		}

		summary := resolve.Run(cmd.Context(), inputs, transformParallel)

		out := os.Stdout
		if transformOut != "" {
			f, err := os.Create(transformOut)
			if err != nil {
				return err
			}
			defer f.Close()
			out = f
		}

		enc := json.NewEncoder(out)
		for _, s := range summary.Studies() {
			if err := enc.Encode(s); err != nil {
				return err
			}
		}

		for _, o := range summary.Outcomes {
			if o.Err != nil {
				fmt.Fprintf(os.Stderr, "rejected %s: %v\n", o.ID, o.Err)
			}
		}
		fmt.Fprintf(os.Stderr, "%d accepted, %d rejected\n", summary.Succeeded, summary.Failed)
		return nil
	},
}

func cliAdapter(source study.Source) (adapter.Adapter, error) {
	switch source {
	case study.SourceIDR:
		return tabular.New(transformPath), nil
	case study.SourceSSBD:
		return rdf.New(transformPath), nil
	case study.SourceBIA:
		return apiadapter.New(transformQuery, transformPageSize), nil
	case study.SourceExternal:
		return rocrate.New(transformPath), nil
	}
	return nil, fmt.Errorf("no adapter for source %q", source)
}

func init() {
	transformCmd.Flags().StringVar(&transformSource, "source", "", "source to harvest (idr, ssbd, bia, external)")
	transformCmd.Flags().StringVar(&transformPath, "path", "", "input directory or file for file-based sources")
	transformCmd.Flags().StringVar(&transformQuery, "query", "", "harvest query for the BIA API source")
	transformCmd.Flags().IntVar(&transformPageSize, "page-size", 100, "page size for the BIA API source")
	transformCmd.Flags().IntVar(&transformParallel, "parallel", 4, "records transformed in parallel")
	transformCmd.Flags().StringVar(&transformOut, "out", "", "output file (default stdout)")
	transformCmd.MarkFlagRequired("source")

	rootCmd.AddCommand(transformCmd)
}
