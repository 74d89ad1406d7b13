package commands

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/gide-search/backend/pkg/search"
)

var (
	searchSources        []string
	searchOrganisms      []string
	searchImagingMethods []string
	searchYearFrom       int
	searchYearTo         int
	searchSize           int
	searchOffset         int
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Run a federated search against the index",
	Long: `Run a federated search and print the response as JSON.

The query string supports quoted phrases, trailing-* prefixes,
AND/OR/NOT operators, +required and -excluded terms, and field
scopes such as title:, organism:, or year:.

Examples:
  gide search "organism:mouse microscopy"
  gide search '"light sheet" -retina' --source IDR --source BIA
  gide search mito* --year-from 2020 --year-to 2023 --size 5`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := search.Request{
			Sources:        searchSources,
			Organisms:      searchOrganisms,
			ImagingMethods: searchImagingMethods,
			Size:           searchSize,
			Offset:         searchOffset,
		}
		if len(args) == 1 {
			req.Query = args[0]
		}
		if cmd.Flags().Changed("year-from") {
			req.YearFrom = &searchYearFrom
		}
		if cmd.Flags().Changed("year-to") {
			req.YearTo = &searchYearTo
		}

		engine, pool, err := openEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer pool.Close()

		resp, err := search.Search(cmd.Context(), engine, req)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	},
}

func init() {
	searchCmd.Flags().StringArrayVar(&searchSources, "source", nil, "filter by source (repeatable)")
	searchCmd.Flags().StringArrayVar(&searchOrganisms, "organism", nil, "filter by organism (repeatable)")
	searchCmd.Flags().StringArrayVar(&searchImagingMethods, "imaging-method", nil, "filter by imaging method (repeatable)")
	searchCmd.Flags().IntVar(&searchYearFrom, "year-from", 0, "earliest release year, inclusive")
	searchCmd.Flags().IntVar(&searchYearTo, "year-to", 0, "latest release year, inclusive")
	searchCmd.Flags().IntVar(&searchSize, "size", 0, "page size")
	searchCmd.Flags().IntVar(&searchOffset, "offset", 0, "page offset")

	rootCmd.AddCommand(searchCmd)
}
