package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/gide-search/backend/internal/util"
	"github.com/gide-search/backend/pkg/index/postgres"
	"github.com/gide-search/backend/pkg/logger"
	"github.com/gide-search/backend/pkg/logger/console"

	"github.com/jackc/pgx/v5/pgxpool"
)

var rootCmd = &cobra.Command{
	Use:   "gide",
	Short: "Federated imaging-metadata search toolkit",
	Long: `gide - harvest, validate, and search biological imaging metadata.

Sources are harvested into RO-Crate entity graphs, validated against
the metadata profile, flattened into canonical study records, and
stored in the search index.

Examples:
  gide transform --source idr --path ./idr-metadata --out studies.jsonl
  gide index --file studies.jsonl
  gide search "organism:mouse microscopy" --size 10
  gide validate ./crates/study-a/ro-crate-metadata.json`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		util.LoadEnv()
		debug := util.GetEnvBool("DEBUG", false)
		logger.Init(console.NewConsoleLogger(console.ConsoleLoggerParams{
			Debug: debug,
		}))
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// openEngine connects to the index backend named by DATABASE_URL. The
// caller owns the returned pool.
func openEngine(ctx context.Context) (*postgres.Engine, *pgxpool.Pool, error) {
	databaseURL := util.GetEnv("DATABASE_URL")
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, nil, err
	}
	return postgres.New(pool, databaseURL), pool, nil
}
