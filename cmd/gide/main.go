// Package main provides the gide command line tool.
//
// Usage:
//
//	gide <command> [flags]
//
// Commands:
//
//	transform    - Harvest one source and emit flattened records
//	index        - Store flattened records in the search index
//	create-index - Create the index schema if it does not exist
//	drop-index   - Drop the index schema
//	search       - Run a federated search against the index
//	validate     - Validate crate files against the metadata profile
package main

import (
	"fmt"
	"os"

	"github.com/gide-search/backend/cmd/gide/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
