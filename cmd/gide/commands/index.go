package commands

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gide-search/backend/pkg/study"
)

var indexFile string

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Store flattened records in the search index",
	Long: `Read canonical study records as JSON lines and store them in the
search index. Indexing is idempotent per record id: re-running the
command overwrites, never duplicates.

Examples:
  gide index --file studies.jsonl
  gide transform --source idr --path ./idr-metadata | gide index`,
	RunE: func(cmd *cobra.Command, args []string) error {
		in := os.Stdin
		if indexFile != "" {
			f, err := os.Open(indexFile)
			if err != nil {
				return err
			}
			defer f.Close()
			in = f
		}

		var studies []study.Study
		scanner := bufio.NewScanner(in)
		scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
		for scanner.Scan() {
			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}
			var s study.Study
			if err := json.Unmarshal(line, &s); err != nil {
				return fmt.Errorf("parse study record: %w", err)
			}
			studies = append(studies, s)
		}
		if err := scanner.Err(); err != nil {
			return err
		}
		if len(studies) == 0 {
			return fmt.Errorf("no study records to index")
		}

		engine, pool, err := openEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer pool.Close()

		if err := engine.EnsureIndex(cmd.Context()); err != nil {
			return err
		}

		stored, failed, err := engine.BulkIndex(cmd.Context(), studies)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "%d stored, %d failed\n", stored, failed)
		if failed > 0 {
			return fmt.Errorf("%d records failed to index", failed)
		}
		return nil
	},
}

var createIndexCmd = &cobra.Command{
	Use:   "create-index",
	Short: "Create the index schema if it does not exist",
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, pool, err := openEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer pool.Close()
		return engine.EnsureIndex(cmd.Context())
	},
}

var dropIndexCmd = &cobra.Command{
	Use:   "drop-index",
	Short: "Drop the index schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, pool, err := openEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer pool.Close()
		return engine.DeleteIndex(cmd.Context())
	},
}

func init() {
	indexCmd.Flags().StringVar(&indexFile, "file", "", "input file of JSON-line study records (default stdin)")

	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(createIndexCmd)
	rootCmd.AddCommand(dropIndexCmd)
}
